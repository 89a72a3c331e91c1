package database

import (
	"context"

	"pg-lifecycle/internal/config"
)

// ReleaseFunc releases a held environment lock. Safe to call more than once.
type ReleaseFunc func(ctx context.Context) error

// Locker serializes destructive operations per environment. The production
// implementation takes a PostgreSQL advisory lock on the target database;
// tests substitute an in-memory fake.
type Locker interface {
	Acquire(ctx context.Context, env config.Environment, op string) (ReleaseFunc, error)
}

// NopLocker is a Locker for callers that already hold the environment lock.
// Advisory locks are session-scoped, so a second acquisition from another
// session would report the environment busy; engines composed under a
// lock-holding coordinator use this instead.
type NopLocker struct{}

// Acquire trivially succeeds.
func (NopLocker) Acquire(ctx context.Context, env config.Environment, op string) (ReleaseFunc, error) {
	return func(ctx context.Context) error { return nil }, nil
}

// AdvisoryLocker implements Locker with pg_try_advisory_lock on a dedicated
// connection to the target database.
type AdvisoryLocker struct {
	connections Connector
}

// NewAdvisoryLocker creates the advisory-lock-backed Locker.
func NewAdvisoryLocker(connections Connector) *AdvisoryLocker {
	return &AdvisoryLocker{connections: connections}
}

// Acquire connects to the environment and takes its advisory lock. The
// returned release function unlocks and closes the connection.
func (l *AdvisoryLocker) Acquire(ctx context.Context, env config.Environment, op string) (ReleaseFunc, error) {
	db, err := l.connections.Connect(ctx, env)
	if err != nil {
		return nil, err
	}

	lock, err := AcquireEnvironmentLock(ctx, db, env, op)
	if err != nil {
		db.Close()
		return nil, err
	}

	released := false
	return func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true
		err := lock.Release(ctx)
		closeErr := db.Close()
		if err != nil {
			return err
		}
		return closeErr
	}, nil
}
