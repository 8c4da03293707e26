package sqliteio

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"

	"github.com/xdump/xdump/internal/ent/backend"
	"github.com/xdump/xdump/pkg/ent/selection"
)

type snapshot struct {
	tx *sql.Tx
}

// Schema collects SQL of tables, indices, views and triggers. SQLite has
// no sequences, AUTOINCREMENT counters follow the loaded rows.
func (s *snapshot) Schema(ctx context.Context) (backend.Schema, error) {
	q := `SELECT sql FROM sqlite_master
WHERE sql IS NOT NULL AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
ORDER BY CASE type
  WHEN 'table' THEN 0 WHEN 'index' THEN 1 WHEN 'view' THEN 2 ELSE 3
END, rowid`
	rows, err := s.tx.QueryContext(ctx, q)
	if err != nil {
		slog.Error("Cannot read schema", "error", err)
		return backend.Schema{}, err
	}
	defer rows.Close()

	var buf bytes.Buffer
	var stmt string
	for rows.Next() {
		if err = rows.Scan(&stmt); err != nil {
			return backend.Schema{}, err
		}
		buf.WriteString(stmt)
		buf.WriteString(";\n")
	}
	if err = rows.Err(); err != nil {
		return backend.Schema{}, err
	}
	return backend.Schema{SQL: buf.Bytes()}, nil
}

// Relations returns foreign keys of all tables.
func (s *snapshot) Relations(ctx context.Context) ([]selection.Relation, error) {
	return relations(ctx, s.tx)
}

// Exec runs a statement inside of the snapshot.
func (s *snapshot) Exec(ctx context.Context, query string) (int64, error) {
	res, err := s.tx.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExportCSV writes the result of the query as CSV.
func (s *snapshot) ExportCSV(
	ctx context.Context,
	query string,
	w io.Writer,
) (int64, error) {
	return exportCSV(ctx, s.tx, query, w)
}

// Close rolls back the transaction, temporary tables disappear with it.
func (s *snapshot) Close(_ context.Context) error {
	err := s.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
