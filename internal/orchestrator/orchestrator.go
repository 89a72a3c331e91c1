package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"pg-lifecycle/internal/backup"
	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/database"
	"pg-lifecycle/internal/lifecycle"
	"pg-lifecycle/internal/logging"
	"pg-lifecycle/internal/migration"
	"pg-lifecycle/internal/schema"
)

// BackupEngine snapshots an environment before the migration runs.
type BackupEngine interface {
	Backup(ctx context.Context, env config.Environment, opts backup.Options) (*backup.Record, error)
}

// RestoreEngine applies a backup during rollback.
type RestoreEngine interface {
	Restore(ctx context.Context, env config.Environment, path string, opts backup.RestoreOptions) (*backup.RestoreReport, error)
}

// Migrator drives migrations on the target.
type Migrator interface {
	CurrentRevision(ctx context.Context, env config.Environment) (migration.Revision, error)
	ResolveTarget(env config.Environment, target string) (migration.Revision, error)
	Upgrade(ctx context.Context, env config.Environment, target string) (*migration.Result, error)
}

// SchemaSource extracts snapshots and row counts from environments.
type SchemaSource interface {
	Snapshot(ctx context.Context, env config.Environment) (*schema.Snapshot, error)
	RowCounts(ctx context.Context, env config.Environment) (map[string]int64, error)
}

// ConfirmFunc is the operator gate between COMPARE and MIGRATE. It receives
// the surfaced diff and returns whether to proceed.
type ConfirmFunc func(diff *schema.DiffResult) (bool, error)

// Orchestrator composes the engines into the guarded update state machine:
// BACKUP, COMPARE, CONFIRM, MIGRATE, VALIDATE, then SUCCEEDED, ROLLED_BACK
// or FAILED. It is the only component that reacts to an error with a
// compensating action: a failed migration or failed validation triggers an
// automatic restore of the pre-migration backup.
//
// The orchestrator holds the environment lock for the whole session. Its
// engines must therefore be composed with database.NopLocker, since a second
// advisory-lock acquisition from another session would report the
// environment busy.
type Orchestrator struct {
	backups   BackupEngine
	restores  RestoreEngine
	migrator  Migrator
	source    SchemaSource
	validator *Validator
	locker    database.Locker
	confirm   ConfirmFunc
	logger    *logging.Logger
}

// New creates an orchestrator.
func New(backups BackupEngine, restores RestoreEngine, migrator Migrator, source SchemaSource, locker database.Locker, confirm ConfirmFunc, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Orchestrator{
		backups:   backups,
		restores:  restores,
		migrator:  migrator,
		source:    source,
		validator: NewValidator(migrator, source),
		locker:    locker,
		confirm:   confirm,
		logger:    logger,
	}
}

// Run performs a guarded update of target, using reference as the schema the
// target is compared against for operator review. It returns the session
// report together with the error that ended the session, if any; the report
// is non-nil even on failure so callers can show what happened.
func (o *Orchestrator) Run(ctx context.Context, reference, target config.Environment) (*Report, error) {
	const op = "update-prod"
	session := NewSession(target.Name, reference.Name)

	release, err := o.locker.Acquire(ctx, target, op)
	if err != nil {
		session.Phase = PhaseFailed
		return session.report(), err
	}
	defer release(context.WithoutCancel(ctx))

	// BACKUP: no session proceeds without a verified full backup.
	record, err := o.backups.Backup(ctx, target, backup.Options{
		Format: backup.FormatCustom,
		Scope:  backup.Scope{Kind: backup.ScopeFull},
	})
	if err != nil {
		return o.fail(session, err)
	}
	session.PreBackup = record

	session.PreRevision, err = o.migrator.CurrentRevision(ctx, target)
	if err != nil {
		return o.fail(session, err)
	}
	session.PreCounts, err = o.source.RowCounts(ctx, target)
	if err != nil {
		return o.fail(session, err)
	}
	session.TargetRevision, err = o.migrator.ResolveTarget(target, migration.RevisionHead)
	if err != nil {
		return o.fail(session, err)
	}

	// COMPARE: surface the structural difference for operator review.
	session.Phase = PhaseCompare
	targetSnap, err := o.source.Snapshot(ctx, target)
	if err != nil {
		return o.fail(session, err)
	}
	refSnap, err := o.source.Snapshot(ctx, reference)
	if err != nil {
		return o.fail(session, err)
	}
	session.Diff = schema.Compare(targetSnap, refSnap)

	// CONFIRM: never proceed past this point without an affirmative signal.
	session.Phase = PhaseConfirm
	approved, err := o.confirm(session.Diff)
	if err != nil {
		return o.fail(session, err)
	}
	if !approved {
		return o.fail(session, lifecycle.NewValidationFailedError(op,
			fmt.Sprintf("update of environment %q declined by operator", target.Name)).
			WithContext("environment", target.Name))
	}

	// MIGRATE: a failure here triggers the automatic rollback.
	session.Phase = PhaseMigrate
	if _, err := o.migrator.Upgrade(ctx, target, migration.RevisionHead); err != nil {
		return o.rollback(ctx, session, target, err)
	}

	// VALIDATE: a failure after a successful migration rolls back too.
	session.Phase = PhaseValidate
	if err := o.validator.Validate(ctx, target, session.TargetRevision, session.PreCounts); err != nil {
		return o.rollback(ctx, session, target, err)
	}

	session.Phase = PhaseSucceeded
	o.logger.WithFields(map[string]interface{}{
		"operation":   "update",
		"session":     session.ID,
		"environment": target.Name,
		"revision":    int64(session.TargetRevision),
	}).Info("Guarded update succeeded")
	return session.report(), nil
}

func (o *Orchestrator) fail(session *Session, err error) (*Report, error) {
	session.Phase = PhaseFailed
	o.logger.WithFields(map[string]interface{}{
		"operation":   "update",
		"session":     session.ID,
		"environment": session.Environment,
		"error":       err.Error(),
	}).Error("Guarded update failed")
	return session.report(), err
}

// rollback restores the pre-migration backup after a MIGRATE or VALIDATE
// failure. The original error is reported, marked with the rollback
// outcome.
func (o *Orchestrator) rollback(ctx context.Context, session *Session, target config.Environment, cause error) (*Report, error) {
	rollbackErr := o.Rollback(ctx, target, session.PreBackup)

	var lcErr *lifecycle.Error
	if !errors.As(cause, &lcErr) {
		lcErr = lifecycle.NewError(lifecycle.KindOf(cause), "update-prod", cause.Error(), cause)
	}

	if rollbackErr != nil {
		// The target could not be restored; report both errors and leave
		// the session FAILED so the operator knows manual recovery is
		// needed.
		session.Phase = PhaseFailed
		lcErr = lcErr.WithContext("rollback_error", rollbackErr.Error())
		o.logger.WithFields(map[string]interface{}{
			"operation":   "rollback",
			"session":     session.ID,
			"environment": session.Environment,
			"error":       rollbackErr.Error(),
		}).Error("Rollback failed; environment requires manual recovery")
		return session.report(), lcErr
	}

	session.Phase = PhaseRolledBack
	lcErr = lifecycle.MarkRolledBack(lcErr)
	o.logger.WithFields(map[string]interface{}{
		"operation":   "rollback",
		"session":     session.ID,
		"environment": session.Environment,
		"backup":      session.PreBackup.Path,
	}).Warn("Migration reverted from pre-update backup")
	return session.report(), lcErr
}

// Rollback restores the environment from the given pre-update backup. It is
// idempotent: restoring the same backup twice yields the same end state,
// so operator retries after a reported rollback are safe.
func (o *Orchestrator) Rollback(ctx context.Context, target config.Environment, record *backup.Record) error {
	if record == nil {
		return fmt.Errorf("no pre-update backup to roll back to")
	}
	_, err := o.restores.Restore(ctx, target, record.Path, backup.RestoreOptions{Drop: true})
	return err
}
