package schema

import (
	"sort"
	"strings"
)

// Compare computes the structural difference between two snapshots. It is a
// pure function: Compare(x, x) is always empty, and Compare(a, b) is the
// structural inverse of Compare(b, a).
func Compare(a, b *Snapshot) *DiffResult {
	result := &DiffResult{
		Source:         a.Environment,
		Target:         b.Environment,
		TablesModified: make(map[string]TableDiff),
	}

	for name := range b.Tables {
		if _, ok := a.Tables[name]; !ok {
			result.TablesAdded = append(result.TablesAdded, name)
		}
	}
	for name := range a.Tables {
		if _, ok := b.Tables[name]; !ok {
			result.TablesRemoved = append(result.TablesRemoved, name)
		}
	}
	sort.Strings(result.TablesAdded)
	sort.Strings(result.TablesRemoved)

	for name, tableA := range a.Tables {
		tableB, ok := b.Tables[name]
		if !ok {
			continue
		}
		diff := compareTables(tableA, tableB)
		if !diff.Empty() {
			result.TablesModified[name] = diff
		}
	}
	if len(result.TablesModified) == 0 {
		result.TablesModified = nil
	}

	return result
}

func compareTables(a, b Table) TableDiff {
	var diff TableDiff

	colsA := columnsByName(a.Columns)
	colsB := columnsByName(b.Columns)

	for name, col := range colsB {
		if _, ok := colsA[name]; !ok {
			diff.ColumnsAdded = append(diff.ColumnsAdded, col)
		}
	}
	for name, col := range colsA {
		if _, ok := colsB[name]; !ok {
			diff.ColumnsRemoved = append(diff.ColumnsRemoved, col)
		}
	}
	for name, colA := range colsA {
		colB, ok := colsB[name]
		if !ok {
			continue
		}
		if !sameColumn(colA, colB) {
			diff.ColumnsChanged = append(diff.ColumnsChanged, ColumnChange{
				Name: name,
				Old:  colA,
				New:  colB,
			})
		}
	}

	sortColumns(diff.ColumnsAdded)
	sortColumns(diff.ColumnsRemoved)
	sort.Slice(diff.ColumnsChanged, func(i, j int) bool {
		return diff.ColumnsChanged[i].Name < diff.ColumnsChanged[j].Name
	})

	diff.ConstraintsAdded, diff.ConstraintsRemoved = diffConstraints(a.Constraints, b.Constraints)
	diff.IndexesAdded, diff.IndexesRemoved = diffIndexes(a.Indexes, b.Indexes)

	return diff
}

// sameColumn compares column definitions ignoring ordinal position, so
// column reordering alone never reports a change.
func sameColumn(a, b Column) bool {
	return a.Type == b.Type && a.Nullable == b.Nullable && a.Default == b.Default
}

func columnsByName(cols []Column) map[string]Column {
	m := make(map[string]Column, len(cols))
	for _, c := range cols {
		m[c.Name] = c
	}
	return m
}

func sortColumns(cols []Column) {
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
}

// constraintIdentity is the structural identity of a constraint: kind and
// column set, never the name. Autogenerated name suffixes differ between
// environments and must not produce false positives.
func constraintIdentity(c Constraint) string {
	cols := append([]string(nil), c.Columns...)
	sort.Strings(cols)
	return c.Kind + "|" + strings.Join(cols, ",")
}

func diffConstraints(a, b []Constraint) (added, removed []Constraint) {
	inA := make(map[string]Constraint, len(a))
	for _, c := range a {
		inA[constraintIdentity(c)] = c
	}
	inB := make(map[string]Constraint, len(b))
	for _, c := range b {
		inB[constraintIdentity(c)] = c
	}

	for id, c := range inB {
		if _, ok := inA[id]; !ok {
			added = append(added, c)
		}
	}
	for id, c := range inA {
		if _, ok := inB[id]; !ok {
			removed = append(removed, c)
		}
	}

	sortConstraints(added)
	sortConstraints(removed)
	return added, removed
}

func sortConstraints(cs []Constraint) {
	sort.Slice(cs, func(i, j int) bool {
		return constraintIdentity(cs[i]) < constraintIdentity(cs[j])
	})
}

func indexIdentity(ix Index) string {
	cols := append([]string(nil), ix.Columns...)
	sort.Strings(cols)
	unique := "nonunique"
	if ix.Unique {
		unique = "unique"
	}
	return unique + "|" + strings.Join(cols, ",")
}

func diffIndexes(a, b []Index) (added, removed []Index) {
	inA := make(map[string]Index, len(a))
	for _, ix := range a {
		inA[indexIdentity(ix)] = ix
	}
	inB := make(map[string]Index, len(b))
	for _, ix := range b {
		inB[indexIdentity(ix)] = ix
	}

	for id, ix := range inB {
		if _, ok := inA[id]; !ok {
			added = append(added, ix)
		}
	}
	for id, ix := range inA {
		if _, ok := inB[id]; !ok {
			removed = append(removed, ix)
		}
	}

	sortIndexes(added)
	sortIndexes(removed)
	return added, removed
}

func sortIndexes(ixs []Index) {
	sort.Slice(ixs, func(i, j int) bool {
		return indexIdentity(ixs[i]) < indexIdentity(ixs[j])
	})
}
