package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gnames/gnfmt"
	"github.com/spf13/cobra"
	xdump "github.com/xdump/xdump/pkg"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect ARCHIVE",
	Short: "Lists files of a dump archive",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")
		es, err := xdump.New(newConfig(cmd)).Inspect(args[0])
		if err != nil {
			slog.Error("Cannot read archive", "error", err)
			os.Exit(1)
		}

		if asJSON {
			enc := gnfmt.GNjson{Pretty: true}
			res, err := enc.Encode(es)
			if err != nil {
				slog.Error("Cannot encode archive entries", "error", err)
				os.Exit(1)
			}
			fmt.Println(string(res))
			return
		}

		for _, e := range es {
			fmt.Printf("%-40s %10s %10s %-8s %s\n", e.Name,
				humanize.Bytes(e.Size), humanize.Bytes(e.CompressedSize), e.Method,
				humanize.Time(e.Modified))
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolP("json", "j", false, "output in JSON format")
}
