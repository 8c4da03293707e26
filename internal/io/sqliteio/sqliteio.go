// Package sqliteio implements the backend for SQLite database files.
package sqliteio

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	"github.com/xdump/xdump/internal/ent/backend"
	"github.com/xdump/xdump/pkg/config"

	_ "github.com/mattn/go-sqlite3"
)

const driver = "sqlite3"

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqliteio struct {
	path string
	db   *sql.DB
}

// New opens the SQLite database file from the configuration. The file is
// created if it does not exist.
func New(cfg config.Config) (backend.Backend, error) {
	res := sqliteio{path: cfg.SqlitePath}
	db, err := open(res.path)
	if err != nil {
		return nil, err
	}
	res.db = db
	return &res, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn(path))
	if err != nil {
		slog.Error("Cannot open SQLite database", "path", path, "error", err)
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		slog.Error("Cannot connect to SQLite database", "path", path, "error", err)
		return nil, err
	}
	return db, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}

// Name returns the type of the backend.
func (s *sqliteio) Name() string {
	return config.SQLite
}

// Snapshot starts a transaction and makes a read that fixes its view of
// the database.
func (s *sqliteio) Snapshot(ctx context.Context) (backend.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("Cannot start transaction", "error", err)
		return nil, err
	}
	var n int
	err = tx.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n)
	if err != nil {
		tx.Rollback()
		slog.Error("Cannot start snapshot", "error", err)
		return nil, err
	}
	return &snapshot{tx: tx}, nil
}

// Loader starts a write transaction.
func (s *sqliteio) Loader(ctx context.Context) (backend.Loader, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("Cannot start transaction", "error", err)
		return nil, err
	}
	return &loader{tx: tx}, nil
}

// Run executes a query and returns rows as maps.
func (s *sqliteio) Run(
	ctx context.Context,
	query string,
	args ...any,
) ([]map[string]any, error) {
	return run(ctx, s.db, query, args...)
}

// ExportCSV writes the result of the query as CSV.
func (s *sqliteio) ExportCSV(
	ctx context.Context,
	query string,
	w io.Writer,
) (int64, error) {
	return exportCSV(ctx, s.db, query, w)
}

// Close closes the database.
func (s *sqliteio) Close() error {
	return s.db.Close()
}

func run(
	ctx context.Context,
	q querier,
	query string,
	args ...any,
) ([]map[string]any, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals, ptrs := scanTargets(len(cols))
	var res []map[string]any
	for rows.Next() {
		if err = rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

func scanTargets(n int) ([]any, []any) {
	vals := make([]any, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	return vals, ptrs
}
