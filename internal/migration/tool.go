package migration

import (
	"context"
	"database/sql"
)

// Revision is one migration step identifier. Revision 0 means no migration
// has been applied.
type Revision int64

// RevisionHead is the symbolic upgrade target meaning "latest available
// revision".
const RevisionHead = "head"

// Entry describes one known migration revision and whether the target
// database has applied it.
type Entry struct {
	Revision Revision `json:"revision" yaml:"revision"`
	Source   string   `json:"source" yaml:"source"`
	Applied  bool     `json:"applied" yaml:"applied"`
}

// Tool is the versioned migration tool, treated as a black box executing
// one revision step atomically. The production implementation wraps goose;
// tests substitute an in-memory fake.
type Tool interface {
	// Current reads the current revision from the database's version table.
	Current(ctx context.Context, db *sql.DB) (Revision, error)
	// UpTo applies pending migrations from dir up to and including target.
	UpTo(ctx context.Context, db *sql.DB, dir string, target Revision) error
	// Down reverts the most recently applied migration. ErrNoDownPath is
	// returned when the current revision has no defined inverse or there is
	// nothing to revert.
	Down(ctx context.Context, db *sql.DB, dir string) error
	// Available lists the revisions defined in dir, ascending.
	Available(dir string) ([]Revision, error)
	// History lists all known revisions with their applied state.
	History(ctx context.Context, db *sql.DB, dir string) ([]Entry, error)
}
