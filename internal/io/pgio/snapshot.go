package pgio

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/xdump/xdump/internal/ent/backend"
	"github.com/xdump/xdump/pkg/config"
	"github.com/xdump/xdump/pkg/ent/selection"
	"golang.org/x/sync/errgroup"
)

const selectableTablesSQL = `
SELECT table_name::text
FROM information_schema.tables
WHERE
    table_schema NOT IN ('pg_catalog', 'information_schema') AND
    table_schema NOT LIKE 'pg_toast%' AND
    table_schema NOT LIKE 'pg_temp%' AND
    has_table_privilege(format('%I.%I', table_schema, table_name), 'SELECT')
ORDER BY table_name`

const sequencesSQL = `
SELECT relname::text
FROM pg_class
WHERE relkind = 'S' AND relpersistence <> 't' AND pg_table_is_visible(oid)
ORDER BY oid`

type snapshot struct {
	cfg config.Config
	tx  pgx.Tx
	id  string
}

// Schema runs pg_dump twice in the snapshot of the transaction: for DDL of
// selectable tables and sequences, and for states of sequences.
func (s *snapshot) Schema(ctx context.Context) (backend.Schema, error) {
	var res backend.Schema
	tables, err := s.names(ctx, selectableTablesSQL)
	if err != nil {
		slog.Error("Cannot read selectable tables", "error", err)
		return res, err
	}
	seqs, err := s.names(ctx, sequencesSQL)
	if err != nil {
		slog.Error("Cannot read sequences", "error", err)
		return res, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		objects := make([]string, 0, len(tables)+len(seqs))
		objects = append(objects, tables...)
		objects = append(objects, seqs...)
		var err error
		res.SQL, err = pgDump(ctx, s.cfg, s.id, schemaArgs(objects)...)
		return err
	})
	g.Go(func() error {
		var err error
		res.Sequences, err = pgDump(ctx, s.cfg, s.id, sequencesArgs(seqs)...)
		return err
	})
	if err = g.Wait(); err != nil {
		return backend.Schema{}, err
	}
	return res, nil
}

func (s *snapshot) names(ctx context.Context, query string) ([]string, error) {
	rows, err := s.tx.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Relations returns foreign keys visible in the snapshot.
func (s *snapshot) Relations(ctx context.Context) ([]selection.Relation, error) {
	return relations(ctx, s.tx)
}

// Exec runs a statement in the transaction.
func (s *snapshot) Exec(ctx context.Context, query string) (int64, error) {
	tag, err := s.tx.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExportCSV copies the result of the query as CSV.
func (s *snapshot) ExportCSV(
	ctx context.Context,
	query string,
	w io.Writer,
) (int64, error) {
	return copyTo(ctx, s.tx.Conn(), query, w)
}

// Close rolls back the transaction and drops temporary tables with it.
func (s *snapshot) Close(ctx context.Context) error {
	err := s.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
