package xdump

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xdump/xdump/internal/ent/backend"
	"github.com/xdump/xdump/internal/io/archio"
	"github.com/xdump/xdump/pkg/ent/report"
	"github.com/xdump/xdump/pkg/ent/selection"
)

// Dump creates an archive with the schema and selected data of the
// database. A failed dump leaves no archive behind.
func (x *xdump) Dump(
	ctx context.Context,
	b backend.Backend,
	path string,
) (report.Report, error) {
	start := time.Now()
	res := report.Report{Archive: path, Backend: b.Name()}

	c, err := archio.NewCompression(x.cfg.Compression)
	if err != nil {
		return res, err
	}

	slog.Info("Creating dump", "backend", b.Name(), "archive", path)
	snap, err := b.Snapshot(ctx)
	if err != nil {
		return res, fmt.Errorf("cannot start snapshot: %w", err)
	}
	defer snap.Close(ctx)

	w, err := archio.Create(path, c)
	if err != nil {
		return res, err
	}

	if err = x.dump(ctx, snap, w, &res); err != nil {
		if abortErr := w.Abort(); abortErr != nil {
			slog.Warn("Cannot remove unfinished archive", "path", path, "error", abortErr)
		}
		return res, err
	}
	if err = w.Close(); err != nil {
		slog.Error("Cannot close archive", "path", path, "error", err)
		_ = os.Remove(path)
		return res, err
	}

	if fi, err := os.Stat(path); err == nil {
		res.Size = fi.Size()
	}
	res.Duration = time.Since(start)
	slog.Info("Dump is created",
		"archive", path,
		"tables", len(res.Tables),
		"rows", humanize.Comma(res.Rows()),
		"size", humanize.Bytes(uint64(res.Size)),
		"duration", res.Duration.Round(time.Millisecond),
	)
	return res, nil
}

func (x *xdump) dump(
	ctx context.Context,
	snap backend.Snapshot,
	w *archio.Writer,
	res *report.Report,
) error {
	if !x.cfg.NoSchema {
		if err := writeSchema(ctx, snap, w); err != nil {
			return err
		}
	}
	if x.cfg.NoData {
		return nil
	}

	rels, err := snap.Relations(ctx)
	if err != nil {
		return fmt.Errorf("cannot read relations: %w", err)
	}
	plan := selection.New(rels, x.cfg.FullTables, x.cfg.PartialTables)
	for _, t := range plan.Ignored {
		slog.Warn("Table is dumped fully, its partial query is ignored", "table", t)
	}

	if err = selectRows(ctx, snap, plan); err != nil {
		return err
	}

	for _, t := range plan.Tables() {
		tbl, err := writeTable(ctx, snap, w, plan, t)
		if err != nil {
			return err
		}
		res.Tables = append(res.Tables, tbl)
	}
	return nil
}

func writeSchema(ctx context.Context, snap backend.Snapshot, w *archio.Writer) error {
	schema, err := snap.Schema(ctx)
	if err != nil {
		return fmt.Errorf("cannot dump schema: %w", err)
	}
	if err = w.WriteFile(archio.SchemaPath, schema.SQL); err != nil {
		return err
	}
	if len(schema.Sequences) == 0 {
		return nil
	}
	return w.WriteFile(archio.SequencesPath, schema.Sequences)
}

// selectRows fills temporary tables with partial rows and then repeats
// steps until they stop finding referenced rows.
func selectRows(ctx context.Context, snap backend.Snapshot, plan selection.Plan) error {
	for _, q := range plan.Setup {
		if _, err := snap.Exec(ctx, q); err != nil {
			slog.Error("Cannot prepare selection", "query", q, "error", err)
			return err
		}
	}

	for pass := 1; ; pass++ {
		var added int64
		for _, q := range plan.Steps {
			n, err := snap.Exec(ctx, q)
			if err != nil {
				slog.Error("Cannot select related rows", "query", q, "error", err)
				return err
			}
			added += n
		}
		slog.Debug("Related rows are selected", "pass", pass, "rows", added)
		if added == 0 {
			return nil
		}
	}
}

func writeTable(
	ctx context.Context,
	snap backend.Snapshot,
	w *archio.Writer,
	plan selection.Plan,
	table string,
) (report.Table, error) {
	res := report.Table{Name: table, Full: plan.IsFull(table)}
	ew, err := w.Create(archio.DataPath(table))
	if err != nil {
		return res, err
	}
	res.Rows, err = snap.ExportCSV(ctx, plan.Query(table), ew)
	if err != nil {
		slog.Error("Cannot export table", "table", table, "error", err)
		return res, err
	}
	slog.Info("Table is dumped",
		"table", table, "full", res.Full, "rows", humanize.Comma(res.Rows))
	return res, nil
}
