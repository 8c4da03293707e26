package xdump

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/xdump/xdump/internal/ent/backend"
	"github.com/xdump/xdump/internal/io/archio"
	"github.com/xdump/xdump/pkg/ent/selection"
)

// Load restores an archive. The schema goes first, then tables in the
// order of their foreign keys and sequences last. With Truncate the
// tables exist already: the schema is skipped and tables are emptied.
func (x *xdump) Load(ctx context.Context, b backend.Backend, path string) error {
	r, err := archio.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	slog.Info("Loading dump", "backend", b.Name(), "archive", path)
	l, err := b.Loader(ctx)
	if err != nil {
		return fmt.Errorf("cannot start loading: %w", err)
	}
	defer l.Close(ctx)

	if !x.cfg.NoSchema && !x.cfg.Truncate {
		if err = execEntry(ctx, r, l, archio.SchemaPath); err != nil {
			return err
		}
	}

	rels, err := l.Relations(ctx)
	if err != nil {
		return fmt.Errorf("cannot read relations: %w", err)
	}
	tables := selection.Order(r.Tables(), rels)

	if x.cfg.Truncate {
		rev := slices.Clone(tables)
		slices.Reverse(rev)
		if err = l.Truncate(ctx, rev); err != nil {
			return err
		}
	}

	if !x.cfg.NoData {
		for _, t := range tables {
			if err = loadTable(ctx, r, l, t); err != nil {
				return err
			}
		}
	}

	if !x.cfg.NoSchema {
		if err = execEntry(ctx, r, l, archio.SequencesPath); err != nil {
			return err
		}
	}

	if err = l.Commit(ctx); err != nil {
		slog.Error("Cannot commit loaded data", "error", err)
		return err
	}
	slog.Info("Dump is loaded", "archive", path, "tables", len(tables))
	return nil
}

// execEntry runs an SQL file of the archive if it is present and not
// empty.
func execEntry(
	ctx context.Context,
	r *archio.Reader,
	l backend.Loader,
	name string,
) error {
	if !r.Has(name) {
		return nil
	}
	script, err := r.ReadFile(name)
	if err != nil {
		return err
	}
	if len(script) == 0 {
		return nil
	}
	if err = l.ExecScript(ctx, string(script)); err != nil {
		return fmt.Errorf("cannot execute %s: %w", name, err)
	}
	return nil
}

func loadTable(
	ctx context.Context,
	r *archio.Reader,
	l backend.Loader,
	table string,
) error {
	rc, err := r.Open(archio.DataPath(table))
	if err != nil {
		return err
	}
	defer rc.Close()

	n, err := l.CopyCSV(ctx, table, rc)
	if err != nil {
		return fmt.Errorf("cannot load %s: %w", table, err)
	}
	slog.Info("Table is loaded", "table", table, "rows", humanize.Comma(n))
	return nil
}
