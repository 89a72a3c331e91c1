package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/lifecycle"
)

// Extractor builds schema snapshots from a live PostgreSQL database.
// Extraction is read-only introspection, safe to run against a live
// environment without taking the environment lock.
type Extractor struct{}

// NewExtractor creates a new schema extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractSnapshot extracts the structural metadata of the public schema.
func (e *Extractor) ExtractSnapshot(ctx context.Context, db *sql.DB, env config.Environment) (*Snapshot, error) {
	const op = "extract-schema"

	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	snapshot := &Snapshot{
		Environment: env.Name,
		Tables:      make(map[string]Table),
	}

	tableNames, err := e.extractTableNames(ctx, db)
	if err != nil {
		return nil, lifecycle.NewConnectivityError(op, "failed to list tables", err).
			WithContext("environment", env.Name)
	}

	for _, name := range tableNames {
		table := Table{Name: name}

		table.Columns, err = e.extractColumns(ctx, db, name)
		if err != nil {
			return nil, lifecycle.NewConnectivityError(op,
				fmt.Sprintf("failed to extract columns for table %s", name), err).
				WithContext("environment", env.Name)
		}

		table.Constraints, err = e.extractConstraints(ctx, db, name)
		if err != nil {
			return nil, lifecycle.NewConnectivityError(op,
				fmt.Sprintf("failed to extract constraints for table %s", name), err).
				WithContext("environment", env.Name)
		}

		table.Indexes, err = e.extractIndexes(ctx, db, name)
		if err != nil {
			return nil, lifecycle.NewConnectivityError(op,
				fmt.Sprintf("failed to extract indexes for table %s", name), err).
				WithContext("environment", env.Name)
		}

		snapshot.Tables[name] = table
	}

	return snapshot, nil
}

func (e *Extractor) extractTableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (e *Extractor) extractColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable, column_default, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			col        Column
			isNullable string
			colDefault sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.Type, &isNullable, &colDefault, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col.Nullable = isNullable == "YES"
		col.Default = colDefault.String
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (e *Extractor) extractConstraints(ctx context.Context, db *sql.DB, tableName string) ([]Constraint, error) {
	query := `
		SELECT tc.constraint_name, tc.constraint_type, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = 'public' AND tc.table_name = $1
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`

	rows, err := db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query constraints: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]*Constraint)
	var order []string
	for rows.Next() {
		var name, kind, column string
		if err := rows.Scan(&name, &kind, &column); err != nil {
			return nil, fmt.Errorf("failed to scan constraint: %w", err)
		}
		c, ok := byName[name]
		if !ok {
			c = &Constraint{Kind: kind, Name: name}
			byName[name] = c
			order = append(order, name)
		}
		c.Columns = append(c.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Strings(order)
	constraints := make([]Constraint, 0, len(order))
	for _, name := range order {
		constraints = append(constraints, *byName[name])
	}
	return constraints, nil
}

func (e *Extractor) extractIndexes(ctx context.Context, db *sql.DB, tableName string) ([]Index, error) {
	query := `
		SELECT i.relname, ix.indisunique, a.attname
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE n.nspname = 'public' AND t.relname = $1 AND NOT ix.indisprimary
		ORDER BY i.relname, a.attnum
	`

	rows, err := db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]*Index)
	var order []string
	for rows.Next() {
		var (
			name, column string
			unique       bool
		)
		if err := rows.Scan(&name, &unique, &column); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		ix, ok := byName[name]
		if !ok {
			ix = &Index{Name: name, Unique: unique}
			byName[name] = ix
			order = append(order, name)
		}
		ix.Columns = append(ix.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Strings(order)
	indexes := make([]Index, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *byName[name])
	}
	return indexes, nil
}

// RowCounts returns the exact row count of every table in the public schema,
// used by validation and data round-trip checks.
func (e *Extractor) RowCounts(ctx context.Context, db *sql.DB, env config.Environment) (map[string]int64, error) {
	const op = "row-counts"

	names, err := e.extractTableNames(ctx, db)
	if err != nil {
		return nil, lifecycle.NewConnectivityError(op, "failed to list tables", err).
			WithContext("environment", env.Name)
	}

	counts := make(map[string]int64, len(names))
	for _, name := range names {
		var count int64
		query := fmt.Sprintf(`SELECT COUNT(*) FROM public.%q`, name)
		if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, lifecycle.NewConnectivityError(op,
				fmt.Sprintf("failed to count rows in table %s", name), err).
				WithContext("environment", env.Name)
		}
		counts[name] = count
	}
	return counts, nil
}
