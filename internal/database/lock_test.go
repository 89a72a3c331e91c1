package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/lifecycle"
)

func TestLockKeyStable(t *testing.T) {
	assert.Equal(t, LockKey("prod"), LockKey("prod"))
	assert.NotEqual(t, LockKey("prod"), LockKey("dev"))
}

func TestAcquireEnvironmentLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	env := config.Environment{Name: "prod"}
	key := LockKey("prod")

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(key).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(key).
		WillReturnResult(sqlmock.NewResult(0, 0))

	lock, err := AcquireEnvironmentLock(context.Background(), db, env, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "prod", lock.Environment())

	require.NoError(t, lock.Release(context.Background()))
	require.NoError(t, lock.Release(context.Background()), "release is idempotent")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireEnvironmentLockBusy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	env := config.Environment{Name: "prod"}

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(LockKey("prod")).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	_, err = AcquireEnvironmentLock(context.Background(), db, env, "migrate")
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindEnvironmentBusy, lifecycle.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
