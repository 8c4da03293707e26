package pgio

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// maintenance runs fn on a connection to the maintenance database, a
// database cannot be created or dropped while connected to it.
func (p *pgio) maintenance(ctx context.Context, fn func(*pgx.Conn) error) error {
	conn, err := pgxConn(ctx, p.cfg, p.cfg.PgMaintenanceDB)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	return fn(conn)
}

// DropConnections terminates all sessions connected to the database.
func (p *pgio) DropConnections(ctx context.Context, name string) error {
	q := `SELECT pg_terminate_backend(pid)
FROM pg_stat_activity
WHERE datname = $1 AND pid <> pg_backend_pid()`
	return p.maintenance(ctx, func(conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, q, name); err != nil {
			slog.Error("Cannot drop connections", "database", name, "error", err)
			return err
		}
		return nil
	})
}

// DropDatabase removes the database if it exists.
func (p *pgio) DropDatabase(ctx context.Context, name string) error {
	q := "DROP DATABASE IF EXISTS " + pgx.Identifier{name}.Sanitize()
	return p.maintenance(ctx, func(conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, q); err != nil {
			slog.Error("Cannot drop database", "database", name, "error", err)
			return err
		}
		return nil
	})
}

// CreateDatabase creates an empty database that belongs to the owner.
func (p *pgio) CreateDatabase(ctx context.Context, name, owner string) error {
	q := "CREATE DATABASE " + pgx.Identifier{name}.Sanitize()
	if owner != "" {
		q += " OWNER " + pgx.Identifier{owner}.Sanitize()
	}
	return p.maintenance(ctx, func(conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, q); err != nil {
			slog.Error("Cannot create database", "database", name, "error", err)
			return err
		}
		return nil
	})
}

// RecreateDatabase drops the configured database with all its sessions
// and creates it again owned by the configured user. The pool is reopened
// even when recreation fails.
func (p *pgio) RecreateDatabase(ctx context.Context) (err error) {
	name := p.cfg.PgDB
	p.pool.Close()
	defer func() {
		pool, perr := pgxPool(ctx, p.cfg)
		if perr != nil {
			err = errors.Join(err, perr)
			return
		}
		p.pool = pool
	}()

	if err = p.DropConnections(ctx, name); err != nil {
		return err
	}
	if err = p.DropDatabase(ctx, name); err != nil {
		return err
	}
	return p.CreateDatabase(ctx, name, p.cfg.PgUser)
}
