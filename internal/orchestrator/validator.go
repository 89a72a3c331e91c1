package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/lifecycle"
	"pg-lifecycle/internal/migration"
)

// Validator runs the post-migration sanity checks: the revision reached the
// requested target, and the configured critical tables still exist and are
// non-empty wherever they were non-empty before the migration. It catches
// destructive accidents before a session is declared successful.
type Validator struct {
	migrator Migrator
	source   SchemaSource
}

// NewValidator creates a validator.
func NewValidator(migrator Migrator, source SchemaSource) *Validator {
	return &Validator{migrator: migrator, source: source}
}

// Validate checks the environment after a migration. preCounts are the row
// counts captured before the migration ran.
func (v *Validator) Validate(ctx context.Context, env config.Environment, target migration.Revision, preCounts map[string]int64) error {
	const op = "validate"

	current, err := v.migrator.CurrentRevision(ctx, env)
	if err != nil {
		return err
	}
	if current != target {
		return lifecycle.NewValidationFailedError(op,
			fmt.Sprintf("environment %q is at revision %d, expected %d", env.Name, current, target)).
			WithContext("environment", env.Name).
			WithContext("current_revision", int64(current)).
			WithContext("target_revision", int64(target))
	}

	if len(env.CriticalTables) == 0 {
		return nil
	}

	counts, err := v.source.RowCounts(ctx, env)
	if err != nil {
		return err
	}

	var problems []string
	for _, table := range env.CriticalTables {
		count, exists := counts[table]
		if !exists {
			problems = append(problems, fmt.Sprintf("critical table %q no longer exists", table))
			continue
		}
		if pre, had := preCounts[table]; had && pre > 0 && count == 0 {
			problems = append(problems, fmt.Sprintf("critical table %q was emptied (%d rows before)", table, pre))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return lifecycle.NewValidationFailedError(op, strings.Join(problems, "; ")).
			WithContext("environment", env.Name)
	}
	return nil
}
