package pgio

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/xdump/xdump/internal/str"
	"github.com/xdump/xdump/pkg/ent/selection"
)

type loader struct {
	tx pgx.Tx
}

// ExecScript sends the script to the server as one simple query. psql
// meta-commands are removed first, and search_path is reset after,
// because pg_dump scripts empty it for the session.
func (l *loader) ExecScript(ctx context.Context, script string) error {
	_, err := l.tx.Conn().PgConn().Exec(ctx, str.StripMetaCommands(script)).ReadAll()
	if err != nil {
		slog.Error("Cannot execute script", "error", err)
		return err
	}
	_, err = l.tx.Exec(ctx, "RESET search_path")
	return err
}

// Relations returns foreign keys of the database.
func (l *loader) Relations(ctx context.Context) ([]selection.Relation, error) {
	return relations(ctx, l.tx)
}

// Truncate empties the tables and restarts their identities.
func (l *loader) Truncate(ctx context.Context, tables []string) error {
	if len(tables) == 0 {
		return nil
	}
	q := "TRUNCATE " + str.QuoteIdents(tables) + " RESTART IDENTITY CASCADE"
	if _, err := l.tx.Exec(ctx, q); err != nil {
		slog.Error("Cannot truncate tables", "error", err)
		return err
	}
	return nil
}

// CopyCSV loads CSV with a header into the table.
func (l *loader) CopyCSV(ctx context.Context, table string, r io.Reader) (int64, error) {
	q := "COPY " + str.QuoteIdent(table) + " FROM STDIN WITH CSV HEADER"
	tag, err := l.tx.Conn().PgConn().CopyFrom(ctx, r, q)
	if err != nil {
		slog.Error("Cannot load table", "table", table, "error", err)
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Commit makes loaded data permanent.
func (l *loader) Commit(ctx context.Context) error {
	return l.tx.Commit(ctx)
}

// Close rolls back the transaction if it is not committed.
func (l *loader) Close(ctx context.Context) error {
	err := l.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
