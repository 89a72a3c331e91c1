package database

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"

	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/lifecycle"
)

// EnvironmentLock is an advisory, environment-scoped lock held on the target
// database itself. Destructive operations (backup, restore, migrate, the
// orchestrator) hold it for their duration so two of them never interleave
// on the same environment; a concurrent attempt fails fast instead of
// waiting. The lock lives in the server session, so it is released even if
// the holding process dies.
type EnvironmentLock struct {
	environment string
	key         int64
	conn        *sql.Conn
}

// LockKey derives the advisory lock key for an environment name. The key
// must be stable across processes, so it is a plain FNV-64a hash of the
// name.
func LockKey(environment string) int64 {
	h := fnv.New64a()
	h.Write([]byte(environment))
	return int64(h.Sum64())
}

// AcquireEnvironmentLock takes the advisory lock for env on db. It pins a
// single connection for the lock's lifetime; advisory locks are
// session-scoped and would vanish if the pool recycled the session.
func AcquireEnvironmentLock(ctx context.Context, db *sql.DB, env config.Environment, op string) (*EnvironmentLock, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, lifecycle.NewConnectivityError(op,
			fmt.Sprintf("cannot open lock session for environment %q", env.Name), err)
	}

	key := LockKey(env.Name)

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, lifecycle.NewConnectivityError(op,
			fmt.Sprintf("cannot acquire lock for environment %q", env.Name), err)
	}
	if !acquired {
		conn.Close()
		return nil, lifecycle.NewEnvironmentBusyError(op, env.Name)
	}

	return &EnvironmentLock{
		environment: env.Name,
		key:         key,
		conn:        conn,
	}, nil
}

// Release unlocks and returns the pinned connection to the pool. Safe to
// call more than once.
func (l *EnvironmentLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("releasing lock for environment %q: %w", l.environment, err)
	}
	return closeErr
}

// Environment returns the name of the locked environment.
func (l *EnvironmentLock) Environment() string {
	return l.environment
}
