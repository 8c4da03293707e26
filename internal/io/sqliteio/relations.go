package sqliteio

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/xdump/xdump/internal/str"
	"github.com/xdump/xdump/pkg/ent/selection"
)

type fkColumn struct {
	id    int
	table string
	from  string
	to    sql.NullString
}

// relations reads foreign keys of every table in the main database.
func relations(ctx context.Context, q querier) ([]selection.Relation, error) {
	tables, err := tableNames(ctx, q)
	if err != nil {
		slog.Error("Cannot read tables", "error", err)
		return nil, err
	}

	var res []selection.Relation
	for _, t := range tables {
		rels, err := tableRelations(ctx, q, t)
		if err != nil {
			slog.Error("Cannot read foreign keys", "table", t, "error", err)
			return nil, err
		}
		res = append(res, rels...)
	}
	return res, nil
}

func tableNames(ctx context.Context, q querier) ([]string, error) {
	query := `SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
ORDER BY rowid`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []string
	var name string
	for rows.Next() {
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		res = append(res, name)
	}
	return res, rows.Err()
}

func tableRelations(
	ctx context.Context,
	q querier,
	table string,
) ([]selection.Relation, error) {
	fks, err := foreignKeyList(ctx, q, table)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]*selection.Relation)
	var ids []int
	for _, fk := range fks {
		rel, ok := byID[fk.id]
		if !ok {
			rel = &selection.Relation{
				Name:         fmt.Sprintf("%s_fk_%d", table, fk.id),
				Table:        table,
				ForeignTable: fk.table,
			}
			byID[fk.id] = rel
			ids = append(ids, fk.id)
		}
		rel.Columns = append(rel.Columns, fk.from)
		if fk.to.Valid {
			rel.ForeignColumns = append(rel.ForeignColumns, fk.to.String)
		}
	}
	sort.Ints(ids)

	res := make([]selection.Relation, 0, len(ids))
	for _, id := range ids {
		rel := byID[id]
		// reference without columns points to the primary key
		if len(rel.ForeignColumns) != len(rel.Columns) {
			pk, err := primaryKey(ctx, q, rel.ForeignTable)
			if err != nil {
				return nil, err
			}
			if len(pk) != len(rel.Columns) {
				slog.Warn("Skipping foreign key to rowid", "relation", rel.Name)
				continue
			}
			rel.ForeignColumns = pk
		}
		res = append(res, *rel)
	}
	return res, nil
}

func foreignKeyList(ctx context.Context, q querier, table string) ([]fkColumn, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, seq, \"table\", \"from\", \"to\" FROM pragma_foreign_key_list("+
			str.QuoteString(table)+") ORDER BY id, seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []fkColumn
	for rows.Next() {
		var fk fkColumn
		var seq int
		if err = rows.Scan(&fk.id, &seq, &fk.table, &fk.from, &fk.to); err != nil {
			return nil, err
		}
		res = append(res, fk)
	}
	return res, rows.Err()
}

func primaryKey(ctx context.Context, q querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT name FROM pragma_table_info("+str.QuoteString(table)+
			") WHERE pk > 0 ORDER BY pk")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []string
	var name string
	for rows.Next() {
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		res = append(res, name)
	}
	return res, rows.Err()
}
