package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/lifecycle"
)

// Connector opens database connections for resolved environments. Tests
// substitute a fake; ConnectionManager is the production implementation.
type Connector interface {
	Connect(ctx context.Context, env config.Environment) (*sql.DB, error)
}

// ConnectionManager opens and verifies database connections for resolved
// environments. Connections are opened per operation and closed by the
// caller; nothing is cached across invocations.
type ConnectionManager struct{}

// NewConnectionManager creates a new connection manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{}
}

// Connect opens a connection to the environment's database and verifies it
// with a ping. Failures are classified as connectivity or permission errors.
func (m *ConnectionManager) Connect(ctx context.Context, env config.Environment) (*sql.DB, error) {
	const op = "connect"

	db, err := sql.Open("pgx", env.DSN())
	if err != nil {
		return nil, lifecycle.NewConnectivityError(op,
			fmt.Sprintf("invalid connection settings for environment %q", env.Name), err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	pingCtx := ctx
	if env.Timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, env.Timeout)
		defer cancel()
	}

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, ClassifyError(op, env, err)
	}

	return db, nil
}

// ClassifyError maps a driver error to the typed taxonomy: authentication
// and privilege failures become permission errors, everything else a
// connectivity error.
func ClassifyError(op string, env config.Environment, err error) *lifecycle.Error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		// 28000 invalid_authorization_specification, 28P01 invalid_password,
		// 42501 insufficient_privilege
		case "28000", "28P01", "42501":
			return lifecycle.NewPermissionError(op,
				fmt.Sprintf("access to environment %q denied", env.Name), err).
				WithContext("environment", env.Name).
				WithContext("code", pgErr.Code)
		}
	}
	return lifecycle.NewConnectivityError(op,
		fmt.Sprintf("cannot reach environment %q at %s:%d", env.Name, env.Host, env.Port), err).
		WithContext("environment", env.Name)
}
