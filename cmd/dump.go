package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/xdump/xdump/internal/io/metricsio"
	"github.com/xdump/xdump/internal/io/storageio"
	xdump "github.com/xdump/xdump/pkg"
	"github.com/xdump/xdump/pkg/config"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump ARCHIVE",
	Short: "Creates a dump of the database in a zip archive",
	Example: `  xdump dump shop.zip --db shop --full groups \
    --partial 'employees=SELECT * FROM employees ORDER BY id DESC LIMIT 10'`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f := cmd.Flags()
		var extra []config.Option
		if full, _ := f.GetStringSlice("full"); len(full) > 0 {
			extra = append(extra, config.OptFullTables(full))
		}
		if ss, _ := f.GetStringArray("partial"); len(ss) > 0 {
			ps, err := parsePartials(ss)
			if err != nil {
				slog.Error("Cannot parse partial tables", "error", err)
				os.Exit(1)
			}
			extra = append(extra, config.OptPartialTables(ps))
		}
		if c, _ := f.GetString("compression"); c != "" {
			extra = append(extra, config.OptCompression(c))
		}
		if b, _ := f.GetBool("no-schema"); b {
			extra = append(extra, config.OptNoSchema(true))
		}
		if b, _ := f.GetBool("no-data"); b {
			extra = append(extra, config.OptNoData(true))
		}
		upload, _ := f.GetBool("upload")
		copyTo, _ := f.GetString("copy-to")

		cfg := newConfig(cmd, extra...)
		if err := runDump(cmd.Context(), cfg, args[0], upload, copyTo); err != nil {
			slog.Error("Cannot create dump", "error", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().StringSliceP("full", "f", nil, "tables to dump with all rows")
	dumpCmd.Flags().StringArrayP("partial", "P", nil,
		"table to dump partially as 'table=SELECT ...', repeatable")
	dumpCmd.Flags().StringP("compression", "c", "", "deflate, store or zstd")
	dumpCmd.Flags().Bool("no-schema", false, "do not dump schema and sequences")
	dumpCmd.Flags().Bool("no-data", false, "do not dump data of tables")
	dumpCmd.Flags().Bool("upload", false, "upload the archive to the S3 bucket")
	dumpCmd.Flags().String("copy-to", "", "copy the archive to a directory")
}

func runDump(
	ctx context.Context,
	cfg config.Config,
	path string,
	upload bool,
	copyTo string,
) error {
	b, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	m := metricsio.New(cfg.Backend)
	xd := xdump.New(cfg)
	rep, err := xd.Dump(ctx, b, path)
	if err != nil {
		m.Fail()
		pushMetrics(ctx, cfg, m)
		return err
	}
	m.Observe(rep)
	pushMetrics(ctx, cfg, m)

	if copyTo != "" {
		st, err := storageio.NewLocal(copyTo)
		if err != nil {
			return err
		}
		loc, err := st.Upload(ctx, path, storageio.Key("", path))
		if err != nil {
			return err
		}
		slog.Info("Archive is copied", "location", loc)
	}

	if upload {
		st, err := storageio.NewS3(ctx, cfg, cfg.S3Bucket)
		if err != nil {
			return fmt.Errorf("cannot upload: %w", err)
		}
		loc, err := st.Upload(ctx, path, storageio.Key(cfg.S3Prefix, path))
		if err != nil {
			return err
		}
		slog.Info("Archive is uploaded", "location", loc)
	}
	return nil
}

// pushMetrics sends metrics when Pushgateway is configured. Failures are
// logged, they do not fail the dump.
func pushMetrics(ctx context.Context, cfg config.Config, m *metricsio.Metrics) {
	if cfg.PushGateway == "" {
		return
	}
	_ = m.Push(ctx, cfg.PushGateway)
}
