package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

// ErrNoDownPath is returned by Tool.Down when the current revision has no
// defined inverse, or there is nothing left to revert.
var ErrNoDownPath = errors.New("no downgrade path from current revision")

var gooseDialect sync.Once

// GooseTool is the production Tool implementation backed by
// github.com/pressly/goose.
type GooseTool struct{}

// NewGooseTool creates a goose-backed migration tool.
func NewGooseTool() (*GooseTool, error) {
	var err error
	gooseDialect.Do(func() {
		err = goose.SetDialect("postgres")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return &GooseTool{}, nil
}

// Current reads the current revision from the goose version table. A
// database without the version table reports revision 0.
func (t *GooseTool) Current(ctx context.Context, db *sql.DB) (Revision, error) {
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("failed to read current revision: %w", err)
	}
	return Revision(version), nil
}

// UpTo applies pending migrations up to and including target.
func (t *GooseTool) UpTo(ctx context.Context, db *sql.DB, dir string, target Revision) error {
	if err := goose.UpToContext(ctx, db, dir, int64(target)); err != nil {
		return err
	}
	return nil
}

// Down reverts the most recently applied migration.
func (t *GooseTool) Down(ctx context.Context, db *sql.DB, dir string) error {
	err := goose.DownContext(ctx, db, dir)
	if err == nil {
		return nil
	}
	if errors.Is(err, goose.ErrNoCurrentVersion) || errors.Is(err, goose.ErrNoNextVersion) ||
		strings.Contains(err.Error(), "no migration") ||
		strings.Contains(err.Error(), "empty Down") {
		return ErrNoDownPath
	}
	return err
}

// Available lists the revisions defined in dir, ascending.
func (t *GooseTool) Available(dir string) ([]Revision, error) {
	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory %s: %w", dir, err)
	}
	revisions := make([]Revision, 0, len(migrations))
	for _, m := range migrations {
		revisions = append(revisions, Revision(m.Version))
	}
	return revisions, nil
}

// History lists all known revisions with their applied state, read from the
// goose version table.
func (t *GooseTool) History(ctx context.Context, db *sql.DB, dir string) ([]Entry, error) {
	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory %s: %w", dir, err)
	}

	applied := make(map[int64]bool)
	rows, err := db.QueryContext(ctx,
		"SELECT version_id FROM goose_db_version WHERE is_applied ORDER BY version_id")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var version int64
			if err := rows.Scan(&version); err != nil {
				return nil, fmt.Errorf("failed to scan version row: %w", err)
			}
			applied[version] = true
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	entries := make([]Entry, 0, len(migrations))
	for _, m := range migrations {
		entries = append(entries, Entry{
			Revision: Revision(m.Version),
			Source:   m.Source,
			Applied:  applied[m.Version],
		})
	}
	return entries, nil
}
