package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/lifecycle"
)

// fakeRestoreProvider records calls instead of running pg_restore/psql.
type fakeRestoreProvider struct {
	err     error
	calls   int
	lastCmd struct {
		format Format
		path   string
		drop   bool
		table  string
	}
	applied []byte
}

func (f *fakeRestoreProvider) Restore(ctx context.Context, env config.Environment, format Format, path string, drop bool, table string) error {
	f.calls++
	f.lastCmd.format = format
	f.lastCmd.path = path
	f.lastCmd.drop = drop
	f.lastCmd.table = table
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f.applied = data
	return nil
}

func writeBackupFixture(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	checksum, err := FileChecksum(path)
	require.NoError(t, err)
	require.NoError(t, WriteSidecar(path, checksum))
	return path
}

func TestRestoreVerifiesChecksumFirst(t *testing.T) {
	dir := t.TempDir()
	path := writeBackupFixture(t, dir, "dev_full_20250101T000000Z.sql", []byte("SELECT 1;\n"))

	provider := &fakeRestoreProvider{}
	engine := NewRestoreEngine(provider, &fakeLocker{}, nil)

	report, err := engine.Restore(context.Background(), devEnv(), path, RestoreOptions{Drop: true})
	require.NoError(t, err)
	assert.True(t, report.Verified)
	assert.True(t, report.Dropped)
	assert.Equal(t, FormatPlain, report.Format)
	assert.Equal(t, 1, provider.calls)
	assert.True(t, provider.lastCmd.drop)
}

func TestRestoreChecksumMismatchAbortsUntouched(t *testing.T) {
	dir := t.TempDir()
	path := writeBackupFixture(t, dir, "dev_full_20250101T000000Z.sql", []byte("SELECT 1;\n"))
	require.NoError(t, os.WriteFile(path, []byte("corrupted"), 0o644))

	provider := &fakeRestoreProvider{}
	engine := NewRestoreEngine(provider, &fakeLocker{}, nil)

	_, err := engine.Restore(context.Background(), devEnv(), path, RestoreOptions{Drop: true})
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindChecksumMismatch, lifecycle.KindOf(err))
	assert.Equal(t, 0, provider.calls, "target must not be touched")
}

func TestRestoreUnverifiedBackupRejectedByDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dev_full_20250101T000000Z.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT 1;\n"), 0o644))

	provider := &fakeRestoreProvider{}
	engine := NewRestoreEngine(provider, &fakeLocker{}, nil)

	_, err := engine.Restore(context.Background(), devEnv(), path, RestoreOptions{})
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindValidationFailed, lifecycle.KindOf(err))
	assert.Equal(t, 0, provider.calls)

	report, err := engine.Restore(context.Background(), devEnv(), path, RestoreOptions{AllowUnverified: true})
	require.NoError(t, err)
	assert.False(t, report.Verified)
	assert.Equal(t, 1, provider.calls)
}

func TestRestoreSchemaConflictSurfaced(t *testing.T) {
	dir := t.TempDir()
	path := writeBackupFixture(t, dir, "dev_full_20250101T000000Z.sql", []byte("CREATE TABLE t ();\n"))

	provider := &fakeRestoreProvider{
		err: lifecycle.NewSchemaConflictError("restore", "relation t already exists", nil),
	}
	engine := NewRestoreEngine(provider, &fakeLocker{}, nil)

	_, err := engine.Restore(context.Background(), devEnv(), path, RestoreOptions{})
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindSchemaConflict, lifecycle.KindOf(err))
}

func TestRestoreCustomFormatSingleTable(t *testing.T) {
	dir := t.TempDir()
	path := writeBackupFixture(t, dir, "dev_table-users_20250101T000000Z.dump", []byte{0x50, 0x47})

	provider := &fakeRestoreProvider{}
	engine := NewRestoreEngine(provider, &fakeLocker{}, nil)

	report, err := engine.Restore(context.Background(), devEnv(), path, RestoreOptions{Table: "users"})
	require.NoError(t, err)
	assert.Equal(t, FormatCustom, report.Format)
	assert.Equal(t, "users", provider.lastCmd.table)
}

func TestRestoreSingleTableRequiresCustomFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeBackupFixture(t, dir, "dev_full_20250101T000000Z.sql", []byte("SELECT 1;\n"))

	engine := NewRestoreEngine(&fakeRestoreProvider{}, &fakeLocker{}, nil)
	_, err := engine.Restore(context.Background(), devEnv(), path, RestoreOptions{Table: "users"})
	require.Error(t, err)
}

func TestRestoreDecryptsAndDecompresses(t *testing.T) {
	dir := t.TempDir()
	content := []byte("INSERT INTO t VALUES (42);\n")

	plain := filepath.Join(dir, "stage.sql")
	require.NoError(t, os.WriteFile(plain, content, 0o644))
	compressed := filepath.Join(dir, "stage.sql.gz")
	require.NoError(t, CompressFile(plain, compressed, CompressionGzip))
	final := filepath.Join(dir, "dev_full_20250101T000000Z.sql.gz.enc")
	require.NoError(t, EncryptFile(compressed, final, "hunter2"))
	checksum, err := FileChecksum(final)
	require.NoError(t, err)
	require.NoError(t, WriteSidecar(final, checksum))

	provider := &fakeRestoreProvider{}
	engine := NewRestoreEngine(provider, &fakeLocker{}, nil)

	report, err := engine.Restore(context.Background(), devEnv(), final, RestoreOptions{Passphrase: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, FormatPlain, report.Format)
	assert.Equal(t, content, provider.applied, "provider must see the plain dump")
}

func TestRestoreBusyEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := writeBackupFixture(t, dir, "dev_full_20250101T000000Z.sql", []byte("SELECT 1;\n"))

	engine := NewRestoreEngine(&fakeRestoreProvider{}, &fakeLocker{busy: true}, nil)
	_, err := engine.Restore(context.Background(), devEnv(), path, RestoreOptions{})
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindEnvironmentBusy, lifecycle.KindOf(err))
}
