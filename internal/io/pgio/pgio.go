// Package pgio implements the backend for PostgreSQL. Reads of a dump
// happen in one REPEATABLE READ transaction, pg_dump shares its snapshot.
package pgio

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xdump/xdump/internal/ent/backend"
	"github.com/xdump/xdump/pkg/config"
)

type pgio struct {
	cfg  config.Config
	pool *pgxpool.Pool
}

// New connects to the PostgreSQL database from the configuration.
func New(ctx context.Context, cfg config.Config) (backend.Backend, error) {
	pool, err := pgxPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res := pgio{cfg: cfg, pool: pool}
	return &res, nil
}

// Name returns the type of the backend.
func (p *pgio) Name() string {
	return config.Postgres
}

// Snapshot starts a REPEATABLE READ transaction and exports its snapshot
// for pg_dump.
func (p *pgio) Snapshot(ctx context.Context) (backend.Snapshot, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		slog.Error("Cannot start transaction", "error", err)
		return nil, err
	}

	var id string
	err = tx.QueryRow(ctx, "SELECT pg_export_snapshot()").Scan(&id)
	if err != nil {
		tx.Rollback(ctx)
		slog.Error("Cannot export snapshot", "error", err)
		return nil, err
	}
	res := snapshot{cfg: p.cfg, tx: tx, id: id}
	return &res, nil
}

// Loader starts a transaction for loading of a dump.
func (p *pgio) Loader(ctx context.Context) (backend.Loader, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		slog.Error("Cannot start transaction", "error", err)
		return nil, err
	}
	return &loader{tx: tx}, nil
}

// Run executes a query and returns rows as maps.
func (p *pgio) Run(
	ctx context.Context,
	query string,
	args ...any,
) ([]map[string]any, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToMap)
}

// ExportCSV copies the result of the query as CSV.
func (p *pgio) ExportCSV(
	ctx context.Context,
	query string,
	w io.Writer,
) (int64, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()
	return copyTo(ctx, conn.Conn(), query, w)
}

// Close closes all connections of the pool.
func (p *pgio) Close() error {
	p.pool.Close()
	return nil
}

func copyTo(ctx context.Context, conn *pgx.Conn, query string, w io.Writer) (int64, error) {
	q := strings.TrimRight(strings.TrimSpace(query), ";")
	tag, err := conn.PgConn().CopyTo(ctx, w, "COPY ("+q+") TO STDOUT WITH CSV HEADER")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
