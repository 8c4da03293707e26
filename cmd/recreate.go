package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// recreateCmd represents the recreate command
var recreateCmd = &cobra.Command{
	Use:   "recreate",
	Short: "Drops the database and creates it empty",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		cfg := newConfig(cmd)
		b, err := newBackend(ctx, cfg)
		if err != nil {
			slog.Error("Cannot connect to database", "error", err)
			os.Exit(1)
		}
		defer b.Close()

		if err = b.RecreateDatabase(ctx); err != nil {
			slog.Error("Cannot recreate database", "error", err)
			os.Exit(1)
		}
		slog.Info("Database is recreated", "backend", b.Name())
	},
}

func init() {
	rootCmd.AddCommand(recreateCmd)
}
