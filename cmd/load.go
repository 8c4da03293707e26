package cmd

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/gnames/gnsys"
	"github.com/spf13/cobra"
	"github.com/xdump/xdump/internal/io/storageio"
	xdump "github.com/xdump/xdump/pkg"
	"github.com/xdump/xdump/pkg/config"
)

// loadCmd represents the load command
var loadCmd = &cobra.Command{
	Use:   "load ARCHIVE",
	Short: "Loads a dump into the database",
	Long: `Loads a dump into the database. ARCHIVE is a local file or an
s3://bucket/key location, remote archives are downloaded to WorkDir first.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f := cmd.Flags()
		var extra []config.Option
		if b, _ := f.GetBool("truncate"); b {
			extra = append(extra, config.OptTruncate(true))
		}
		if b, _ := f.GetBool("no-schema"); b {
			extra = append(extra, config.OptNoSchema(true))
		}
		if b, _ := f.GetBool("no-data"); b {
			extra = append(extra, config.OptNoData(true))
		}
		recreate, _ := f.GetBool("recreate")

		cfg := newConfig(cmd, extra...)
		if err := runLoad(cmd.Context(), cfg, args[0], recreate); err != nil {
			slog.Error("Cannot load dump", "error", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().BoolP("recreate", "r", false, "drop and create the database first")
	loadCmd.Flags().BoolP("truncate", "t", false,
		"load into existing tables, emptying them first")
	loadCmd.Flags().Bool("no-schema", false, "do not load schema and sequences")
	loadCmd.Flags().Bool("no-data", false, "do not load data of tables")
}

func runLoad(ctx context.Context, cfg config.Config, loc string, recreate bool) error {
	archive, err := fetch(ctx, cfg, loc)
	if err != nil {
		return err
	}

	b, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if recreate {
		slog.Info("Recreating database")
		if err = b.RecreateDatabase(ctx); err != nil {
			return err
		}
	}
	return xdump.New(cfg).Load(ctx, b, archive)
}

// fetch returns a local path of the archive, downloading remote archives
// to the work directory.
func fetch(ctx context.Context, cfg config.Config, loc string) (string, error) {
	if !storageio.IsRemote(loc) {
		return loc, nil
	}
	bucket, key, err := storageio.ParseS3(loc)
	if err != nil {
		return "", err
	}
	if err = gnsys.MakeDir(cfg.WorkDir); err != nil {
		return "", err
	}
	st, err := storageio.NewS3(ctx, cfg, bucket)
	if err != nil {
		return "", err
	}
	res := filepath.Join(cfg.WorkDir, path.Base(key))
	slog.Info("Downloading archive", "location", loc, "path", res)
	if err = st.Download(ctx, key, res); err != nil {
		return "", err
	}
	return res, nil
}
