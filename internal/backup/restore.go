package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/database"
	"pg-lifecycle/internal/lifecycle"
	"pg-lifecycle/internal/logging"
)

// RestoreOptions control a single restore run.
type RestoreOptions struct {
	// Drop clears the target schema before applying. Without it the dump is
	// applied onto the existing schema, which only works when the schemas
	// are compatible; a conflict leaves the target in whatever partial state
	// the apply reached.
	Drop bool
	// Table restricts the restore to a single table of a custom-format
	// archive.
	Table string
	// Passphrase decrypts an encrypted backup before applying.
	Passphrase string
	// AllowUnverified permits restoring a backup that has no checksum
	// sidecar. Off by default: an unverified backup is never silently
	// trusted.
	AllowUnverified bool
}

// RestoreReport summarizes a completed restore.
type RestoreReport struct {
	Environment string        `json:"environment" yaml:"environment"`
	Path        string        `json:"path" yaml:"path"`
	Format      Format        `json:"format" yaml:"format"`
	Dropped     bool          `json:"dropped" yaml:"dropped"`
	Verified    bool          `json:"verified" yaml:"verified"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// RestoreEngine applies backup files onto an environment.
type RestoreEngine struct {
	restore RestoreProvider
	locker  database.Locker
	logger  *logging.Logger
}

// NewRestoreEngine creates a restore engine.
func NewRestoreEngine(restore RestoreProvider, locker database.Locker, logger *logging.Logger) *RestoreEngine {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RestoreEngine{
		restore: restore,
		locker:  locker,
		logger:  logger,
	}
}

// Restore applies the backup at path onto the environment. The checksum
// sidecar is verified before the target is touched; a mismatch aborts with
// the target untouched.
func (e *RestoreEngine) Restore(ctx context.Context, env config.Environment, path string, opts RestoreOptions) (*RestoreReport, error) {
	const op = "restore"
	start := time.Now()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("backup file not found: %w", err)
	}

	verified, err := VerifyFile(op, path)
	if err != nil {
		e.logger.LogRestore(env.Name, path, opts.Drop, time.Since(start), err)
		return nil, err
	}
	if !verified && !opts.AllowUnverified {
		return nil, lifecycle.NewValidationFailedError(op,
			fmt.Sprintf("backup %s has no checksum sidecar; pass --allow-unverified to restore it anyway",
				filepath.Base(path))).
			WithContext("path", path)
	}

	applyPath := path
	if IsEncryptedPath(path) {
		if opts.Passphrase == "" {
			return nil, fmt.Errorf("backup %s is encrypted and no passphrase was provided", filepath.Base(path))
		}
		decrypted, err := os.CreateTemp(filepath.Dir(path), ".pglc-*.plain")
		if err != nil {
			return nil, fmt.Errorf("failed to create temporary file: %w", err)
		}
		decrypted.Close()
		defer os.Remove(decrypted.Name())
		if err := DecryptFile(path, decrypted.Name(), opts.Passphrase); err != nil {
			return nil, err
		}
		applyPath = decrypted.Name()
	}

	if c := CompressionForPath(strings.TrimSuffix(path, EncryptedExt)); c != CompressionNone {
		plain, err := os.CreateTemp(filepath.Dir(path), ".pglc-*.plain")
		if err != nil {
			return nil, fmt.Errorf("failed to create temporary file: %w", err)
		}
		plain.Close()
		defer os.Remove(plain.Name())
		if err := DecompressFile(applyPath, plain.Name(), c); err != nil {
			return nil, err
		}
		applyPath = plain.Name()
	}

	format := formatForPath(path)
	if opts.Table != "" && format != FormatCustom {
		return nil, fmt.Errorf("single-table restore requires a custom-format backup")
	}

	release, err := e.locker.Acquire(ctx, env, op)
	if err != nil {
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	if err := e.restore.Restore(ctx, env, format, applyPath, opts.Drop, opts.Table); err != nil {
		e.logger.LogRestore(env.Name, path, opts.Drop, time.Since(start), err)
		return nil, err
	}

	report := &RestoreReport{
		Environment: env.Name,
		Path:        path,
		Format:      format,
		Dropped:     opts.Drop,
		Verified:    verified,
		Duration:    time.Since(start),
	}
	e.logger.LogRestore(env.Name, path, opts.Drop, report.Duration, nil)
	return report, nil
}

// formatForPath infers the dump format from the backup file name, stripping
// compression and encryption extensions first.
func formatForPath(path string) Format {
	name := strings.TrimSuffix(path, EncryptedExt)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".lz4")
	if strings.HasSuffix(name, ".dump") {
		return FormatCustom
	}
	return FormatPlain
}
