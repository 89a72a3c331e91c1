package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAgedBackup(t *testing.T, dir string, age time.Duration, seq int) string {
	t.Helper()
	ts := time.Now().Add(-age).UTC().Format("20060102T150405Z")
	name := fmt.Sprintf("dev_full_%s.sql", ts)
	path := writeBackupFixture(t, dir, name, []byte(fmt.Sprintf("-- backup %d\n", seq)))
	return path
}

func countBackups(t *testing.T, dir string) int {
	t.Helper()
	records, err := List(dir)
	require.NoError(t, err)
	return len(records)
}

func TestCleanupDeletesExpiredBackups(t *testing.T) {
	dir := t.TempDir()
	old1 := writeAgedBackup(t, dir, 40*24*time.Hour, 1)
	old2 := writeAgedBackup(t, dir, 35*24*time.Hour, 2)
	fresh := writeAgedBackup(t, dir, 24*time.Hour, 3)

	manager := NewRetentionManager(nil)
	deleted, err := manager.Cleanup(dir, 30, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	assert.NoFileExists(t, old1)
	assert.NoFileExists(t, old1+ChecksumExt)
	assert.NoFileExists(t, old2)
	assert.FileExists(t, fresh)
	assert.FileExists(t, fresh+ChecksumExt)
}

func TestCleanupNeverGoesBelowMinKeep(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 8; i++ {
		writeAgedBackup(t, dir, time.Duration(60+i)*24*time.Hour, i)
	}

	manager := NewRetentionManager(nil)
	deleted, err := manager.Cleanup(dir, 30, 5)
	require.NoError(t, err)

	assert.Equal(t, 3, deleted)
	assert.Equal(t, 5, countBackups(t, dir),
		"minKeep backups must survive even when all are expired")
}

func TestCleanupKeepsNewestWhenAllExpired(t *testing.T) {
	dir := t.TempDir()
	oldest := writeAgedBackup(t, dir, 90*24*time.Hour, 1)
	newest := writeAgedBackup(t, dir, 60*24*time.Hour, 2)

	manager := NewRetentionManager(nil)
	deleted, err := manager.Cleanup(dir, 30, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, deleted)
	assert.NoFileExists(t, oldest)
	assert.FileExists(t, newest, "the most recent backup survives")
}

func TestCleanupNothingExpired(t *testing.T) {
	dir := t.TempDir()
	writeAgedBackup(t, dir, 24*time.Hour, 1)
	writeAgedBackup(t, dir, 48*time.Hour, 2)

	manager := NewRetentionManager(nil)
	deleted, err := manager.Cleanup(dir, 30, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
	assert.Equal(t, 2, countBackups(t, dir))
}

func TestCleanupEmptyDirectory(t *testing.T) {
	manager := NewRetentionManager(nil)
	deleted, err := manager.Cleanup(filepath.Join(t.TempDir(), "missing"), 30, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestCleanupRejectsNegativeArguments(t *testing.T) {
	manager := NewRetentionManager(nil)
	_, err := manager.Cleanup(t.TempDir(), -1, 5)
	require.Error(t, err)
	_, err = manager.Cleanup(t.TempDir(), 30, -1)
	require.Error(t, err)
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	writeAgedBackup(t, dir, 72*time.Hour, 1)
	writeAgedBackup(t, dir, 24*time.Hour, 2)
	writeAgedBackup(t, dir, 48*time.Hour, 3)
	// Sidecars and hidden temp files must not appear as records.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pglc-123.partial"), []byte("x"), 0o644))

	records, err := List(dir)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.True(t, records[0].CreatedAt.After(records[1].CreatedAt))
	assert.True(t, records[1].CreatedAt.After(records[2].CreatedAt))
	for _, r := range records {
		assert.Equal(t, "dev", r.Environment)
		assert.True(t, r.Verified())
	}
}

func TestListParsesNameComponents(t *testing.T) {
	dir := t.TempDir()
	writeBackupFixture(t, dir, "prod_table-users_20250601T120000Z.dump", []byte("x"))
	writeBackupFixture(t, dir, "my_env_data-only_20250601T130000Z.sql.gz", []byte("y"))

	records, err := List(dir)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "my_env", records[0].Environment, "underscores in environment names survive")
	assert.Equal(t, ScopeDataOnly, records[0].Scope.Kind)
	assert.Equal(t, string(CompressionGzip), records[0].Compression)

	assert.Equal(t, "prod", records[1].Environment)
	assert.Equal(t, ScopeTable, records[1].Scope.Kind)
	assert.Equal(t, "users", records[1].Scope.Table)
	assert.Equal(t, FormatCustom, records[1].Format)
}
