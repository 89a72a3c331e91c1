package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/lifecycle"
)

// DumpProvider produces a database dump file. The production implementation
// shells out to pg_dump; tests substitute an in-memory fake.
type DumpProvider interface {
	Dump(ctx context.Context, env config.Environment, format Format, scope Scope, outputPath string) error
}

// RestoreProvider applies a dump file onto a database. The production
// implementation shells out to pg_restore or psql depending on format.
type RestoreProvider interface {
	Restore(ctx context.Context, env config.Environment, format Format, path string, drop bool, table string) error
}

// PgDumpProvider runs the pg_dump utility.
type PgDumpProvider struct{}

// NewPgDumpProvider creates the pg_dump-backed provider.
func NewPgDumpProvider() *PgDumpProvider {
	return &PgDumpProvider{}
}

// Dump runs pg_dump writing the dump to outputPath.
func (p *PgDumpProvider) Dump(ctx context.Context, env config.Environment, format Format, scope Scope, outputPath string) error {
	const op = "backup"

	args := []string{"--no-password", "--file", outputPath}
	if format == FormatCustom {
		args = append(args, "--format", "custom")
	} else {
		args = append(args, "--format", "plain")
	}

	switch scope.Kind {
	case ScopeDataOnly:
		args = append(args, "--data-only")
	case ScopeSchemaOnly:
		args = append(args, "--schema-only")
	case ScopeTable:
		args = append(args, "--table", scope.Table)
	}

	return runPGCommand(ctx, op, env, "pg_dump", args)
}

// PgRestoreProvider runs pg_restore for custom-format archives and psql for
// plain SQL scripts.
type PgRestoreProvider struct{}

// NewPgRestoreProvider creates the pg_restore/psql-backed provider.
func NewPgRestoreProvider() *PgRestoreProvider {
	return &PgRestoreProvider{}
}

// Restore applies the dump at path onto the environment's database. With
// drop, the public schema is dropped and recreated first so the apply starts
// from a clean slate. A non-empty table restricts a custom-format restore to
// that single table.
func (p *PgRestoreProvider) Restore(ctx context.Context, env config.Environment, format Format, path string, drop bool, table string) error {
	const op = "restore"

	if drop {
		if err := p.resetSchema(ctx, env); err != nil {
			return err
		}
	}

	if format == FormatCustom {
		args := []string{"--no-password", "--dbname", env.Database, "--exit-on-error"}
		if table != "" {
			args = append(args, "--table", table)
		}
		args = append(args, path)
		return runPGCommand(ctx, op, env, "pg_restore", args)
	}

	if table != "" {
		return fmt.Errorf("single-table restore requires a custom-format backup")
	}
	args := []string{"--no-password", "--dbname", env.Database,
		"--set", "ON_ERROR_STOP=1", "--file", path}
	return runPGCommand(ctx, op, env, "psql", args)
}

// resetSchema drops and recreates the public schema in one psql invocation,
// so an interrupted reset leaves either the old schema or an empty one.
func (p *PgRestoreProvider) resetSchema(ctx context.Context, env config.Environment) error {
	const op = "restore"
	args := []string{"--no-password", "--dbname", env.Database,
		"--set", "ON_ERROR_STOP=1",
		"--command", "DROP SCHEMA public CASCADE; CREATE SCHEMA public;"}
	return runPGCommand(ctx, op, env, "psql", args)
}

// runPGCommand executes one of the PostgreSQL client utilities with the
// environment's connection variables and classifies its failure.
func runPGCommand(ctx context.Context, op string, env config.Environment, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env.PGEnv()...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return classifyToolError(op, env, name, stderr.String(), err)
	}
	return nil
}

// classifyToolError maps a pg tool failure onto the error taxonomy from its
// stderr output.
func classifyToolError(op string, env config.Environment, tool, stderr string, cause error) *lifecycle.Error {
	message := fmt.Sprintf("%s failed for environment %q", tool, env.Name)
	detail := strings.TrimSpace(stderr)
	lower := strings.ToLower(detail)

	var err *lifecycle.Error
	switch {
	case strings.Contains(lower, "already exists"):
		err = lifecycle.NewSchemaConflictError(op,
			message+": conflicting objects exist on the target; the target may be in a partial state", cause)
	case strings.Contains(lower, "password authentication failed"),
		strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "must be owner"):
		err = lifecycle.NewPermissionError(op, message, cause)
	default:
		err = lifecycle.NewConnectivityError(op, message, cause)
	}

	err = err.WithContext("environment", env.Name).WithContext("tool", tool)
	if detail != "" {
		err = err.WithContext("stderr", detail)
	}
	return err
}
