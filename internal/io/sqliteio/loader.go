package sqliteio

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	"github.com/xdump/xdump/internal/str"
	"github.com/xdump/xdump/pkg/ent/selection"
)

type txer interface {
	querier
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type loader struct {
	tx *sql.Tx
}

// ExecScript runs all statements of the script.
func (l *loader) ExecScript(ctx context.Context, script string) error {
	if _, err := l.tx.ExecContext(ctx, script); err != nil {
		slog.Error("Cannot execute script", "error", err)
		return err
	}
	return nil
}

// Relations returns foreign keys of all tables.
func (l *loader) Relations(ctx context.Context) ([]selection.Relation, error) {
	return relations(ctx, l.tx)
}

// Truncate deletes all rows of the tables and resets their AUTOINCREMENT
// counters.
func (l *loader) Truncate(ctx context.Context, tables []string) error {
	for _, t := range tables {
		if _, err := l.tx.ExecContext(ctx, "DELETE FROM "+str.QuoteIdent(t)); err != nil {
			slog.Error("Cannot truncate table", "table", t, "error", err)
			return err
		}
	}

	var n int
	q := "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'"
	if err := l.tx.QueryRowContext(ctx, q).Scan(&n); err != nil || n == 0 {
		return err
	}
	for _, t := range tables {
		_, err := l.tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", t)
		if err != nil {
			return err
		}
	}
	return nil
}

// CopyCSV inserts CSV rows into the table. Unquoted empty fields are NULL,
// quoted ones are empty strings.
func (l *loader) CopyCSV(ctx context.Context, table string, r io.Reader) (int64, error) {
	count, err := importCSV(ctx, l.tx, table, r)
	if err != nil {
		slog.Error("Cannot load table", "table", table, "error", err)
	}
	return count, err
}

// Commit makes loaded data permanent.
func (l *loader) Commit(_ context.Context) error {
	return l.tx.Commit()
}

// Close rolls back the transaction if it was not committed.
func (l *loader) Close(_ context.Context) error {
	err := l.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
