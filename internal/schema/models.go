package schema

// Column describes one table column. Position preserves the ordinal order in
// which columns were defined.
type Column struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
	Default  string `json:"default,omitempty" yaml:"default,omitempty"`
	Position int    `json:"-" yaml:"-"`
}

// Constraint describes a table constraint. Identity for comparison purposes
// is structural (kind plus columns); the name is reported but never
// compared, so autogenerated name suffixes do not produce false diffs.
type Constraint struct {
	Kind    string   `json:"kind" yaml:"kind"` // PRIMARY KEY, FOREIGN KEY, UNIQUE, CHECK
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

// Index describes a table index. Like constraints, identity is structural
// (columns plus uniqueness).
type Index struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Unique  bool     `json:"unique" yaml:"unique"`
}

// Table is the structural description of one table.
type Table struct {
	Name        string       `json:"name" yaml:"name"`
	Columns     []Column     `json:"columns" yaml:"columns"`
	Constraints []Constraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Indexes     []Index      `json:"indexes,omitempty" yaml:"indexes,omitempty"`
}

// Snapshot is the extracted structural metadata of one environment's schema
// at a point in time. Built fresh per comparison and never persisted.
type Snapshot struct {
	Environment string           `json:"environment" yaml:"environment"`
	Tables      map[string]Table `json:"tables" yaml:"tables"`
}

// ColumnChange records a column present on both sides with differing
// definition.
type ColumnChange struct {
	Name string `json:"name" yaml:"name"`
	Old  Column `json:"old" yaml:"old"`
	New  Column `json:"new" yaml:"new"`
}

// TableDiff collects the differences for one table present on both sides.
type TableDiff struct {
	ColumnsAdded       []Column       `json:"columns_added,omitempty" yaml:"columns_added,omitempty"`
	ColumnsRemoved     []Column       `json:"columns_removed,omitempty" yaml:"columns_removed,omitempty"`
	ColumnsChanged     []ColumnChange `json:"columns_changed,omitempty" yaml:"columns_changed,omitempty"`
	ConstraintsAdded   []Constraint   `json:"constraints_added,omitempty" yaml:"constraints_added,omitempty"`
	ConstraintsRemoved []Constraint   `json:"constraints_removed,omitempty" yaml:"constraints_removed,omitempty"`
	IndexesAdded       []Index        `json:"indexes_added,omitempty" yaml:"indexes_added,omitempty"`
	IndexesRemoved     []Index        `json:"indexes_removed,omitempty" yaml:"indexes_removed,omitempty"`
}

// Empty reports whether the table diff records no differences.
func (d TableDiff) Empty() bool {
	return len(d.ColumnsAdded) == 0 &&
		len(d.ColumnsRemoved) == 0 &&
		len(d.ColumnsChanged) == 0 &&
		len(d.ConstraintsAdded) == 0 &&
		len(d.ConstraintsRemoved) == 0 &&
		len(d.IndexesAdded) == 0 &&
		len(d.IndexesRemoved) == 0
}

// DiffResult is the deterministic structural difference between two
// snapshots. "Added" means present in the second snapshot only, "removed"
// present in the first only. All slices are sorted lexicographically so the
// result is reproducible and itself diffable.
type DiffResult struct {
	Source         string               `json:"source" yaml:"source"`
	Target         string               `json:"target" yaml:"target"`
	TablesAdded    []string             `json:"tables_added,omitempty" yaml:"tables_added,omitempty"`
	TablesRemoved  []string             `json:"tables_removed,omitempty" yaml:"tables_removed,omitempty"`
	TablesModified map[string]TableDiff `json:"tables_modified,omitempty" yaml:"tables_modified,omitempty"`
}

// Empty reports whether the two snapshots were structurally identical.
func (d *DiffResult) Empty() bool {
	return len(d.TablesAdded) == 0 &&
		len(d.TablesRemoved) == 0 &&
		len(d.TablesModified) == 0
}

// ChangeCount returns the total number of recorded differences, for summary
// display.
func (d *DiffResult) ChangeCount() int {
	count := len(d.TablesAdded) + len(d.TablesRemoved)
	for _, td := range d.TablesModified {
		count += len(td.ColumnsAdded) + len(td.ColumnsRemoved) + len(td.ColumnsChanged) +
			len(td.ConstraintsAdded) + len(td.ConstraintsRemoved) +
			len(td.IndexesAdded) + len(td.IndexesRemoved)
	}
	return count
}
