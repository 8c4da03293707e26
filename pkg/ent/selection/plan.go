package selection

import (
	"fmt"
	"strings"

	"github.com/xdump/xdump/internal/str"
)

// TempPrefix is prepended to names of temporary tables that keep selected
// rows during a dump.
const TempPrefix = "xdump_"

// Plan describes how to select rows for a dump. Full tables are exported
// as they are. Rows of other tables are collected in temporary tables:
// Setup statements create and seed them, Steps statements add rows
// referenced by already selected rows. Steps have to be repeated until
// a complete pass over them inserts nothing.
type Plan struct {
	// Full are tables dumped with all their rows.
	Full []string

	// Partial are tables dumped with rows returned by user queries.
	Partial []string

	// Related are tables dumped only with rows referenced by other dumped
	// rows.
	Related []string

	// Setup creates temporary tables and fills them with partial rows.
	Setup []string

	// Steps add referenced rows to temporary tables.
	Steps []string

	// Ignored are partial tables that are also full, their queries are not
	// used.
	Ignored []string

	full     map[string]bool
	selected map[string]bool
}

// New creates a Plan for given relations, full and partial tables.
// The order of relations defines the order of Steps.
func New(rels []Relation, full []string, partials []Partial) Plan {
	res := Plan{
		Full:     uniq(full),
		full:     make(map[string]bool),
		selected: make(map[string]bool),
	}
	for _, t := range res.Full {
		res.full[t] = true
	}

	for _, p := range partials {
		if res.full[p.Table] {
			res.Ignored = append(res.Ignored, p.Table)
			continue
		}
		if res.selected[p.Table] {
			continue
		}
		res.selected[p.Table] = true
		res.Partial = append(res.Partial, p.Table)
	}

	res.Related = res.discover(rels)

	for _, t := range res.Selected() {
		res.Setup = append(res.Setup, createTemp(t))
	}
	seeded := make(map[string]bool)
	for _, p := range partials {
		if res.full[p.Table] || seeded[p.Table] {
			continue
		}
		seeded[p.Table] = true
		res.Setup = append(res.Setup, seedTemp(p))
	}

	for _, r := range rels {
		src := r.Table
		if !res.full[src] && !res.selected[src] {
			continue
		}
		if !res.selected[r.ForeignTable] {
			continue
		}
		res.Steps = append(res.Steps, res.step(r))
	}
	return res
}

// Selected returns tables that are collected in temporary tables.
func (p Plan) Selected() []string {
	res := make([]string, 0, len(p.Partial)+len(p.Related))
	res = append(res, p.Partial...)
	return append(res, p.Related...)
}

// Tables returns all tables of the dump in the order they are written.
func (p Plan) Tables() []string {
	res := make([]string, 0, len(p.Full)+len(p.Partial)+len(p.Related))
	res = append(res, p.Full...)
	return append(res, p.Selected()...)
}

// IsFull is true if the table is dumped with all its rows.
func (p Plan) IsFull(table string) bool {
	return p.full[table]
}

// Query returns SELECT statement that exports rows of a table.
func (p Plan) Query(table string) string {
	if p.selected[table] {
		return "SELECT * FROM " + TempName(table)
	}
	return "SELECT * FROM " + str.QuoteIdent(table)
}

// TempName returns the quoted name of the temporary table for a table.
func TempName(table string) string {
	return str.QuoteIdent(TempPrefix + table)
}

// discover finds tables reachable by foreign keys from full and partial
// tables. Full tables are never included.
func (p Plan) discover(rels []Relation) []string {
	var res []string
	queue := make([]string, 0, len(p.Full)+len(p.Partial))
	queue = append(queue, p.Full...)
	queue = append(queue, p.Partial...)
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		for _, r := range rels {
			if r.Table != t {
				continue
			}
			ft := r.ForeignTable
			if p.full[ft] || p.selected[ft] {
				continue
			}
			p.selected[ft] = true
			res = append(res, ft)
			queue = append(queue, ft)
		}
	}
	return res
}

func createTemp(table string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s AS SELECT * FROM %s WHERE 1 = 0",
		TempName(table), str.QuoteIdent(table))
}

func seedTemp(p Partial) string {
	q := strings.TrimRight(strings.TrimSpace(p.Query), ";")
	return fmt.Sprintf("INSERT INTO %s SELECT * FROM (%s\n) AS xdump_partial",
		TempName(p.Table), q)
}

// step generates a statement that adds to the referenced table's
// selection all rows that are referenced by the selection of the
// referencing table and are not selected yet. Referenced columns are
// unique, so a key that is already selected means its row is selected.
func (p Plan) step(r Relation) string {
	src := str.QuoteIdent(r.Table)
	if p.selected[r.Table] {
		src = TempName(r.Table)
	}
	fCols := columns("t", r.ForeignColumns)
	q := `INSERT INTO %[1]s
SELECT * FROM %[2]s AS t
WHERE %[3]s IN (SELECT %[4]s FROM %[5]s AS s WHERE %[6]s)
  AND %[3]s NOT IN (SELECT %[7]s FROM %[1]s AS d WHERE %[8]s)`
	return fmt.Sprintf(q,
		TempName(r.ForeignTable),
		str.QuoteIdent(r.ForeignTable),
		tuple(fCols),
		strings.Join(columns("s", r.Columns), ", "),
		src,
		notNull(columns("s", r.Columns)),
		strings.Join(columns("d", r.ForeignColumns), ", "),
		notNull(columns("d", r.ForeignColumns)),
	)
}

func columns(alias string, cols []string) []string {
	res := make([]string, len(cols))
	for i := range cols {
		res[i] = alias + "." + str.QuoteIdent(cols[i])
	}
	return res
}

func tuple(cols []string) string {
	if len(cols) == 1 {
		return cols[0]
	}
	return "(" + strings.Join(cols, ", ") + ")"
}

func notNull(cols []string) string {
	res := make([]string, len(cols))
	for i := range cols {
		res[i] = cols[i] + " IS NOT NULL"
	}
	return strings.Join(res, " AND ")
}

func uniq(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	res := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		res = append(res, s)
	}
	return res
}
