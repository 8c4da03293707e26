package pgio

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xdump/xdump/pkg/config"
)

func pgxPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig("sslmode=disable")
	if err != nil {
		slog.Error("Cannot parse pgx config", "error", err)
		return nil, err
	}
	setConnConfig(pgxCfg.ConnConfig, cfg, cfg.PgDB)
	pgxCfg.MaxConns = 4

	db, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		slog.Error("Cannot connect to database", "error", err)
		return nil, err
	}
	return db, nil
}

// pgxConn connects to the given database with credentials from the
// configuration.
func pgxConn(ctx context.Context, cfg config.Config, dbName string) (*pgx.Conn, error) {
	pgxCfg, err := pgx.ParseConfig("sslmode=disable")
	if err != nil {
		slog.Error("Cannot parse pgx config", "error", err)
		return nil, err
	}
	setConnConfig(pgxCfg, cfg, dbName)

	conn, err := pgx.ConnectConfig(ctx, pgxCfg)
	if err != nil {
		slog.Error("Cannot connect to database", "database", dbName, "error", err)
		return nil, err
	}
	return conn, nil
}

func setConnConfig(pgxCfg *pgx.ConnConfig, cfg config.Config, dbName string) {
	pgxCfg.Host = cfg.PgHost
	pgxCfg.Port = uint16(cfg.PgPort)
	pgxCfg.User = cfg.PgUser
	pgxCfg.Password = cfg.PgPass
	pgxCfg.Database = dbName
}
