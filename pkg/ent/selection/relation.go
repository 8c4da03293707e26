package selection

import "strings"

// Relation is a foreign key that connects columns of a table to
// a unique set of columns of another (or the same) table.
type Relation struct {
	// Name is the name of the foreign key constraint.
	Name string

	// Table is the referencing table.
	Table string

	// Columns are the referencing columns of the Table.
	Columns []string

	// ForeignTable is the referenced table.
	ForeignTable string

	// ForeignColumns are the referenced columns, in the same order as
	// Columns.
	ForeignColumns []string
}

// IsRecursive is true for foreign keys that point to the table they
// belong to.
func (r Relation) IsRecursive() bool {
	return r.Table == r.ForeignTable
}

// String gives a human readable form of the relation.
func (r Relation) String() string {
	return r.Table + "(" + strings.Join(r.Columns, ", ") + ") -> " +
		r.ForeignTable + "(" + strings.Join(r.ForeignColumns, ", ") + ")"
}

// Partial is a table that is dumped only partially, with the rows
// returned by Query.
type Partial struct {
	// Table is the name of the table.
	Table string

	// Query is a SELECT statement that returns rows of the Table with all
	// its columns.
	Query string
}

// Order sorts tables so referenced tables go before tables that reference
// them. Self-references are ignored. When tables reference each other in
// a cycle, one table of the cycle is released first.
func Order(tables []string, rels []Relation) []string {
	tables = uniq(tables)
	inSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		inSet[t] = true
	}

	deps := make(map[string][]string, len(tables))
	for _, r := range rels {
		if r.IsRecursive() || !inSet[r.Table] || !inSet[r.ForeignTable] {
			continue
		}
		deps[r.Table] = append(deps[r.Table], r.ForeignTable)
	}

	res := make([]string, 0, len(tables))
	done := make(map[string]bool, len(tables))
	for len(res) < len(tables) {
		progress := false
		for _, t := range tables {
			if done[t] || pending(deps[t], done) != "" {
				continue
			}
			done[t] = true
			res = append(res, t)
			progress = true
		}
		if progress {
			continue
		}
		t := inCycle(tables, deps, done)
		done[t] = true
		res = append(res, t)
	}
	return res
}

// pending returns the first dependency that is not done yet.
func pending(deps []string, done map[string]bool) string {
	for _, d := range deps {
		if !done[d] {
			return d
		}
	}
	return ""
}

// inCycle walks pending dependencies from the first unfinished table
// until it comes back to a table it saw, that table belongs to a cycle.
func inCycle(
	tables []string,
	deps map[string][]string,
	done map[string]bool,
) string {
	var t string
	for _, t = range tables {
		if !done[t] {
			break
		}
	}
	seen := make(map[string]bool)
	for !seen[t] {
		seen[t] = true
		t = pending(deps[t], done)
	}
	return t
}
