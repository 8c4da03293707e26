package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xdump/xdump/internal/ent/backend"
	"github.com/xdump/xdump/internal/io/pgio"
	"github.com/xdump/xdump/internal/io/sqliteio"
	"github.com/xdump/xdump/pkg/config"
	"github.com/xdump/xdump/pkg/ent/selection"
)

// newConfig combines settings from the configuration file, persistent
// flags and command options, later ones win.
func newConfig(cmd *cobra.Command, extra ...config.Option) config.Config {
	o := slices.Clone(opts)
	o = append(o, flagOpts(cmd)...)
	o = append(o, extra...)
	cfg := config.New(o...)

	// --db means a file for SQLite and a database name for PostgreSQL
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		if cfg.Backend == config.SQLite {
			o = append(o, config.OptSqlitePath(db))
		} else {
			o = append(o, config.OptPgDB(db))
		}
		cfg = config.New(o...)
	}
	return cfg
}

func flagOpts(cmd *cobra.Command) []config.Option {
	var res []config.Option
	f := cmd.Flags()
	if s, _ := f.GetString("backend"); s != "" {
		res = append(res, config.OptBackend(s))
	}
	if s, _ := f.GetString("host"); s != "" {
		res = append(res, config.OptPgHost(s))
	}
	if i, _ := f.GetInt("port"); i != 0 {
		res = append(res, config.OptPgPort(i))
	}
	if s, _ := f.GetString("user"); s != "" {
		res = append(res, config.OptPgUser(s))
	}
	if s, _ := f.GetString("password"); s != "" {
		res = append(res, config.OptPgPass(s))
	}
	return res
}

func newBackend(ctx context.Context, cfg config.Config) (backend.Backend, error) {
	switch cfg.Backend {
	case config.Postgres:
		if cfg.PgDB == "" {
			return nil, fmt.Errorf("PostgreSQL database is not set")
		}
		return pgio.New(ctx, cfg)
	case config.SQLite:
		return sqliteio.New(cfg)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// parsePartials converts "table=query" strings to partial tables.
func parsePartials(ss []string) ([]selection.Partial, error) {
	res := make([]selection.Partial, 0, len(ss))
	for _, s := range ss {
		t, q, ok := strings.Cut(s, "=")
		t, q = strings.TrimSpace(t), strings.TrimSpace(q)
		if !ok || t == "" || q == "" {
			return nil, fmt.Errorf("partial table needs 'table=query' form: %q", s)
		}
		res = append(res, selection.Partial{Table: t, Query: q})
	}
	return res, nil
}
