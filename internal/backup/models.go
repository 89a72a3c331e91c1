package backup

import (
	"fmt"
	"strings"
	"time"
)

// Format is the dump format of a backup file.
type Format string

const (
	// FormatPlain is a plain SQL script, restored with psql.
	FormatPlain Format = "plain"
	// FormatCustom is the compressed archive format, restored with
	// pg_restore.
	FormatCustom Format = "custom"
)

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	if f == FormatCustom {
		return "dump"
	}
	return "sql"
}

// ParseFormat parses a format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPlain, FormatCustom:
		return Format(s), nil
	case "":
		return FormatCustom, nil
	default:
		return "", fmt.Errorf("unsupported format %q (expected plain or custom)", s)
	}
}

// ScopeKind is the portion of a database captured by a backup.
type ScopeKind string

const (
	ScopeFull       ScopeKind = "full"
	ScopeDataOnly   ScopeKind = "data-only"
	ScopeSchemaOnly ScopeKind = "schema-only"
	ScopeTable      ScopeKind = "table"
)

// Scope selects what a backup captures. For ScopeTable, Table names the
// single target table.
type Scope struct {
	Kind  ScopeKind
	Table string
}

// ParseScope parses a scope flag value: full, data-only, schema-only or
// table:<name>.
func ParseScope(s string) (Scope, error) {
	switch ScopeKind(s) {
	case ScopeFull, "":
		return Scope{Kind: ScopeFull}, nil
	case ScopeDataOnly:
		return Scope{Kind: ScopeDataOnly}, nil
	case ScopeSchemaOnly:
		return Scope{Kind: ScopeSchemaOnly}, nil
	}
	if name, ok := strings.CutPrefix(s, "table:"); ok {
		if name == "" {
			return Scope{}, fmt.Errorf("table scope requires a table name (table:<name>)")
		}
		return Scope{Kind: ScopeTable, Table: name}, nil
	}
	return Scope{}, fmt.Errorf("unsupported scope %q (expected full, data-only, schema-only or table:<name>)", s)
}

// String returns the flag representation of the scope.
func (s Scope) String() string {
	if s.Kind == ScopeTable {
		return "table:" + s.Table
	}
	return string(s.Kind)
}

// fileLabel returns the scope part of a backup file name. Colons do not
// survive every filesystem, so table scopes are flattened.
func (s Scope) fileLabel() string {
	if s.Kind == ScopeTable {
		return "table-" + s.Table
	}
	return string(s.Kind)
}

// Record describes one completed backup. Records are immutable after
// creation: the directory plus checksum sidecars is the source of truth, no
// separate database is kept.
type Record struct {
	ID          string    `json:"id" yaml:"id"`
	Environment string    `json:"environment" yaml:"environment"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	Format      Format    `json:"format" yaml:"format"`
	Scope       Scope     `json:"scope" yaml:"scope"`
	Path        string    `json:"path" yaml:"path"`
	Size        int64     `json:"size" yaml:"size"`
	Checksum    string    `json:"checksum" yaml:"checksum"`
	Compression string    `json:"compression,omitempty" yaml:"compression,omitempty"`
	Encrypted   bool      `json:"encrypted,omitempty" yaml:"encrypted,omitempty"`
}

// Verified reports whether the record carries a recorded checksum. A record
// without one must never be silently trusted by restore.
func (r *Record) Verified() bool {
	return r.Checksum != ""
}
