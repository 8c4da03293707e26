package pgio

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/xdump/xdump/pkg/ent/selection"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// relationsSQL pairs referencing and referenced columns of every foreign
// key by their position in the constraint.
const relationsSQL = `
SELECT
    c.conname::text,
    cl.relname::text,
    array_agg(a.attname::text ORDER BY k.n),
    fcl.relname::text,
    array_agg(fa.attname::text ORDER BY k.n)
FROM pg_constraint c
    JOIN pg_class cl ON cl.oid = c.conrelid
    JOIN pg_class fcl ON fcl.oid = c.confrelid
    CROSS JOIN LATERAL unnest(c.conkey, c.confkey)
        WITH ORDINALITY AS k(attnum, fattnum, n)
    JOIN pg_attribute a
        ON a.attrelid = c.conrelid AND a.attnum = k.attnum
    JOIN pg_attribute fa
        ON fa.attrelid = c.confrelid AND fa.attnum = k.fattnum
WHERE
    c.contype = 'f' AND
    pg_table_is_visible(c.conrelid) AND
    pg_table_is_visible(c.confrelid)
GROUP BY c.oid, c.conname, cl.relname, fcl.relname
ORDER BY cl.relname, c.conname`

func relations(ctx context.Context, q querier) ([]selection.Relation, error) {
	rows, err := q.Query(ctx, relationsSQL)
	if err != nil {
		slog.Error("Cannot read foreign keys", "error", err)
		return nil, err
	}
	defer rows.Close()

	var res []selection.Relation
	for rows.Next() {
		var r selection.Relation
		err = rows.Scan(&r.Name, &r.Table, &r.Columns, &r.ForeignTable, &r.ForeignColumns)
		if err != nil {
			slog.Error("Cannot scan foreign key", "error", err)
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}
