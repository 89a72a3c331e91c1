package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/database"
	"pg-lifecycle/internal/lifecycle"
	"pg-lifecycle/internal/logging"
)

// Options control a single backup run.
type Options struct {
	Format      Format
	Scope       Scope
	Compression CompressionType
	// Passphrase enables at-rest encryption of the finished backup when
	// non-empty.
	Passphrase string
	// OutputPath overrides the default deterministic file name.
	OutputPath string
}

// Engine produces checksummed backups of an environment. It never leaves a
// partial file behind: dumps go to a temporary path, the checksum is
// computed over the completed file, and only then is the file renamed into
// the backup directory.
type Engine struct {
	dir    string
	dump   DumpProvider
	locker database.Locker
	logger *logging.Logger

	mu   sync.Mutex
	last time.Time
}

// NewEngine creates a backup engine writing into dir.
func NewEngine(dir string, dump DumpProvider, locker database.Locker, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Engine{
		dir:    dir,
		dump:   dump,
		locker: locker,
		logger: logger,
	}
}

// Backup snapshots the environment under the requested format and scope and
// returns the immutable record for the finished file.
func (e *Engine) Backup(ctx context.Context, env config.Environment, opts Options) (*Record, error) {
	const op = "backup"
	start := time.Now()

	if opts.Format == "" {
		opts.Format = FormatCustom
	}
	if opts.Scope.Kind == "" {
		opts.Scope.Kind = ScopeFull
	}
	if opts.Compression == "" {
		opts.Compression = CompressionNone
	}
	if opts.Compression != CompressionNone && opts.Format == FormatCustom {
		return nil, fmt.Errorf("custom-format dumps are already compressed; --compress applies to plain format only")
	}

	release, err := e.locker.Acquire(ctx, env, op)
	if err != nil {
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	createdAt := e.nextTimestamp()
	finalPath := opts.OutputPath
	if finalPath == "" {
		finalPath = filepath.Join(e.dir, e.fileName(env, opts, createdAt))
	}

	tmp, err := os.CreateTemp(filepath.Dir(finalPath), ".pglc-*.partial")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := e.dump.Dump(ctx, env, opts.Format, opts.Scope, tmpPath); err != nil {
		e.logger.LogBackup(env.Name, opts.Scope.String(), finalPath, 0, time.Since(start), err)
		return nil, err
	}

	if opts.Compression != CompressionNone {
		compressed := tmpPath + opts.Compression.Extension()
		if err := CompressFile(tmpPath, compressed, opts.Compression); err != nil {
			os.Remove(compressed)
			return nil, err
		}
		os.Remove(tmpPath)
		tmpPath = compressed
		defer os.Remove(tmpPath)
	}

	if opts.Passphrase != "" {
		encrypted := tmpPath + EncryptedExt
		if err := EncryptFile(tmpPath, encrypted, opts.Passphrase); err != nil {
			os.Remove(encrypted)
			return nil, err
		}
		os.Remove(tmpPath)
		tmpPath = encrypted
		defer os.Remove(tmpPath)
	}

	checksum, err := FileChecksum(tmpPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup file: %w", err)
	}

	// Checksum first, rename second: a record never references a partial
	// or corrupt file.
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, fmt.Errorf("failed to move backup into place: %w", err)
	}
	if err := WriteSidecar(finalPath, checksum); err != nil {
		os.Remove(finalPath)
		return nil, err
	}

	record := &Record{
		ID:          uuid.NewString(),
		Environment: env.Name,
		CreatedAt:   createdAt,
		Format:      opts.Format,
		Scope:       opts.Scope,
		Path:        finalPath,
		Size:        info.Size(),
		Checksum:    checksum,
		Compression: string(opts.Compression),
		Encrypted:   opts.Passphrase != "",
	}

	e.logger.LogBackup(env.Name, opts.Scope.String(), finalPath, info.Size(), time.Since(start), nil)
	return record, nil
}

// Verify checks a backup file against its checksum sidecar.
func (e *Engine) Verify(path string) error {
	const op = "verify"
	verified, err := VerifyFile(op, path)
	if err != nil {
		return err
	}
	if !verified {
		return lifecycle.NewValidationFailedError(op,
			fmt.Sprintf("no checksum sidecar for %s; backup is unverified", filepath.Base(path)))
	}
	return nil
}

// fileName builds the deterministic backup file name
// <environment>_<scope>_<timestamp>.<ext>, plus compression and encryption
// extensions.
func (e *Engine) fileName(env config.Environment, opts Options, createdAt time.Time) string {
	name := fmt.Sprintf("%s_%s_%s.%s",
		env.Name, opts.Scope.fileLabel(), createdAt.UTC().Format("20060102T150405Z"), opts.Format.Extension())
	name += opts.Compression.Extension()
	if opts.Passphrase != "" {
		name += EncryptedExt
	}
	return name
}

// nextTimestamp returns a wall-clock timestamp that strictly increases
// within the process, so two backups in the same second still sort
// correctly.
func (e *Engine) nextTimestamp() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	// File names carry one-second resolution, so advance in whole seconds.
	now := time.Now().Truncate(time.Second)
	if !now.After(e.last) {
		now = e.last.Add(time.Second)
	}
	e.last = now
	return now
}
