package migration

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/database"
	"pg-lifecycle/internal/lifecycle"
	"pg-lifecycle/internal/logging"
)

// Result summarizes a completed migration run.
type Result struct {
	Environment  string        `json:"environment" yaml:"environment"`
	FromRevision Revision      `json:"from_revision" yaml:"from_revision"`
	ToRevision   Revision      `json:"to_revision" yaml:"to_revision"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
}

// Runner drives the migration tool against resolved environments. Each
// revision step is treated as atomic: a mid-upgrade failure is surfaced with
// the last successfully applied revision, never partially cleaned up here.
type Runner struct {
	tool        Tool
	connections database.Connector
	locker      database.Locker
	logger      *logging.Logger
}

// NewRunner creates a migration runner.
func NewRunner(tool Tool, connections database.Connector, locker database.Locker, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Runner{
		tool:        tool,
		connections: connections,
		locker:      locker,
		logger:      logger,
	}
}

// CurrentRevision reads the environment's current revision. Read-only, no
// environment lock required.
func (r *Runner) CurrentRevision(ctx context.Context, env config.Environment) (Revision, error) {
	const op = "current-revision"

	db, err := r.connections.Connect(ctx, env)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	current, err := r.tool.Current(ctx, db)
	if err != nil {
		return 0, lifecycle.NewMigrationExecutionError(op, "failed to read current revision", err).
			WithContext("environment", env.Name)
	}
	return current, nil
}

// ResolveTarget resolves an upgrade target flag value ("head" or a numeric
// revision) against the migrations directory.
func (r *Runner) ResolveTarget(env config.Environment, target string) (Revision, error) {
	const op = "migrate"

	available, err := r.tool.Available(env.MigrationsDir)
	if err != nil {
		return 0, lifecycle.NewMigrationExecutionError(op, "failed to list available revisions", err).
			WithContext("environment", env.Name)
	}
	if len(available) == 0 {
		return 0, lifecycle.NewMigrationExecutionError(op,
			fmt.Sprintf("no migrations found in %s", env.MigrationsDir), nil).
			WithContext("environment", env.Name)
	}

	if target == "" || target == RevisionHead {
		return available[len(available)-1], nil
	}

	parsed, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target revision %q: %w", target, err)
	}
	for _, rev := range available {
		if rev == Revision(parsed) {
			return rev, nil
		}
	}
	return 0, lifecycle.NewMigrationExecutionError(op,
		fmt.Sprintf("target revision %d is not defined in %s", parsed, env.MigrationsDir), nil).
		WithContext("environment", env.Name)
}

// Upgrade migrates the environment forward to target ("head" or a numeric
// revision). On failure the error carries the last successfully applied
// revision, read back from the version table.
func (r *Runner) Upgrade(ctx context.Context, env config.Environment, target string) (*Result, error) {
	const op = "migrate"
	start := time.Now()

	targetRev, err := r.ResolveTarget(env, target)
	if err != nil {
		return nil, err
	}

	release, err := r.locker.Acquire(ctx, env, op)
	if err != nil {
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	db, err := r.connections.Connect(ctx, env)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	from, err := r.tool.Current(ctx, db)
	if err != nil {
		return nil, lifecycle.NewMigrationExecutionError(op, "failed to read current revision", err).
			WithContext("environment", env.Name)
	}

	if err := r.tool.UpTo(ctx, db, env.MigrationsDir, targetRev); err != nil {
		lastApplied, readErr := r.tool.Current(ctx, db)
		migErr := lifecycle.NewMigrationExecutionError(op,
			fmt.Sprintf("upgrade of environment %q towards revision %d failed", env.Name, targetRev), err).
			WithContext("environment", env.Name).
			WithContext("target_revision", int64(targetRev))
		if readErr == nil {
			migErr = migErr.WithContext("last_applied", int64(lastApplied))
		}
		r.logger.LogMigration(env.Name, "up", fmt.Sprint(targetRev), time.Since(start), err)
		return nil, migErr
	}

	r.logger.LogMigration(env.Name, "up", fmt.Sprint(targetRev), time.Since(start), nil)
	return &Result{
		Environment:  env.Name,
		FromRevision: from,
		ToRevision:   targetRev,
		Duration:     time.Since(start),
	}, nil
}

// Downgrade reverts the environment by the given number of revision steps.
// A step without a defined inverse fails with NoDowngradePathError rather
// than guessing.
func (r *Runner) Downgrade(ctx context.Context, env config.Environment, steps int) (*Result, error) {
	const op = "rollback"
	start := time.Now()

	if steps <= 0 {
		return nil, fmt.Errorf("downgrade requires at least one step")
	}

	release, err := r.locker.Acquire(ctx, env, op)
	if err != nil {
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	db, err := r.connections.Connect(ctx, env)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	from, err := r.tool.Current(ctx, db)
	if err != nil {
		return nil, lifecycle.NewMigrationExecutionError(op, "failed to read current revision", err).
			WithContext("environment", env.Name)
	}

	for i := 0; i < steps; i++ {
		if err := r.tool.Down(ctx, db, env.MigrationsDir); err != nil {
			if err == ErrNoDownPath {
				noPathErr := lifecycle.NewNoDowngradePathError(op,
					fmt.Sprintf("environment %q has no downgrade path after %d of %d steps", env.Name, i, steps)).
					WithContext("environment", env.Name).
					WithContext("completed_steps", i)
				r.logger.LogMigration(env.Name, "down", "", time.Since(start), noPathErr)
				return nil, noPathErr
			}
			lastApplied, readErr := r.tool.Current(ctx, db)
			migErr := lifecycle.NewMigrationExecutionError(op,
				fmt.Sprintf("downgrade of environment %q failed after %d of %d steps", env.Name, i, steps), err).
				WithContext("environment", env.Name)
			if readErr == nil {
				migErr = migErr.WithContext("last_applied", int64(lastApplied))
			}
			r.logger.LogMigration(env.Name, "down", "", time.Since(start), err)
			return nil, migErr
		}
	}

	to, err := r.tool.Current(ctx, db)
	if err != nil {
		return nil, lifecycle.NewMigrationExecutionError(op, "failed to read revision after downgrade", err).
			WithContext("environment", env.Name)
	}

	r.logger.LogMigration(env.Name, "down", fmt.Sprint(to), time.Since(start), nil)
	return &Result{
		Environment:  env.Name,
		FromRevision: from,
		ToRevision:   to,
		Duration:     time.Since(start),
	}, nil
}

// History lists the environment's known revisions with their applied state.
// Read-only, no environment lock required.
func (r *Runner) History(ctx context.Context, env config.Environment) ([]Entry, error) {
	const op = "history"

	db, err := r.connections.Connect(ctx, env)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	entries, err := r.tool.History(ctx, db, env.MigrationsDir)
	if err != nil {
		return nil, lifecycle.NewMigrationExecutionError(op, "failed to read migration history", err).
			WithContext("environment", env.Name)
	}
	return entries, nil
}
