// Copyright © 2020 Dmitry Mozzherin <dmozzherin@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gnames/gnsys"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	xdump "github.com/xdump/xdump/pkg"
	"github.com/xdump/xdump/pkg/config"
	"github.com/xdump/xdump/pkg/ent/selection"
)

//go:embed xdump.yaml
var configText string

var (
	opts []config.Option
)

type partialData struct {
	Table string
	Query string
}

type cfgData struct {
	Backend         string
	WorkDir         string
	PgHost          string
	PgPort          int
	PgUser          string
	PgPass          string
	PgDB            string
	PgMaintenanceDB string
	SqlitePath      string
	FullTables      []string
	PartialTables   []partialData
	Compression     string
	S3Bucket        string
	S3Prefix        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	PushGateway     string
}

// envVars maps configuration keys to environment variables that override
// the configuration file.
var envVars = map[string]string{
	"Backend":         "XDUMP_BACKEND",
	"WorkDir":         "XDUMP_WORK_DIR",
	"PgHost":          "XDUMP_PG_HOST",
	"PgPort":          "XDUMP_PG_PORT",
	"PgUser":          "XDUMP_PG_USER",
	"PgPass":          "XDUMP_PG_PASS",
	"PgDB":            "XDUMP_PG_DB",
	"PgMaintenanceDB": "XDUMP_PG_MAINTENANCE_DB",
	"SqlitePath":      "XDUMP_SQLITE_PATH",
	"Compression":     "XDUMP_COMPRESSION",
	"S3Bucket":        "XDUMP_S3_BUCKET",
	"S3Prefix":        "XDUMP_S3_PREFIX",
	"S3Region":        "XDUMP_S3_REGION",
	"S3Endpoint":      "XDUMP_S3_ENDPOINT",
	"S3AccessKey":     "XDUMP_S3_ACCESS_KEY",
	"S3SecretKey":     "XDUMP_S3_SECRET_KEY",
	"PushGateway":     "XDUMP_PUSH_GATEWAY",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xdump",
	Short: "Creates and loads consistent partial dumps of databases",
	Long: `xdump dumps PostgreSQL and SQLite databases into zip archives.

Tables are dumped fully or partially, by SQL queries. Rows referenced
through foreign keys by dumped rows are added automatically, so the
archive always loads into an empty database.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		initLogger(verbose)
	},
	Run: func(cmd *cobra.Command, args []string) {
		version, err := cmd.Flags().GetBool("version")
		if err != nil {
			slog.Error("Cannot get flag", "error", err)
			os.Exit(1)
		}
		if version {
			fmt.Printf("\nversion: %s\nbuild: %s\n\n", xdump.Version, xdump.Build)
			os.Exit(0)
		}

		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().BoolP("version", "V", false, "Returns version and build date")

	pf := rootCmd.PersistentFlags()
	pf.StringP("backend", "b", "", "database type: postgres or sqlite")
	pf.StringP("db", "d", "", "PostgreSQL database name or SQLite file path")
	pf.StringP("host", "H", "", "PostgreSQL host")
	pf.IntP("port", "p", 0, "PostgreSQL port")
	pf.StringP("user", "U", "", "PostgreSQL user")
	pf.StringP("password", "W", "", "PostgreSQL password")
	pf.BoolP("verbose", "v", false, "show debug messages")
}

func initLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})
	slog.SetDefault(slog.New(handler))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	var homeDir, cfgDir string
	configFile := "xdump"

	// Find home directory.
	homeDir, err = os.UserHomeDir()
	if err != nil {
		slog.Error("Cannot find home dir", "error", err)
		os.Exit(1)
	}
	cfgDir = filepath.Join(homeDir, ".config")

	// Search config in home directory with name "xdump" (without extension).
	viper.AddConfigPath(cfgDir)
	viper.SetConfigName(configFile)

	for k, v := range envVars {
		_ = viper.BindEnv(k, v)
	}

	configPath := filepath.Join(cfgDir, fmt.Sprintf("%s.yaml", configFile))
	touchConfigFile(configPath)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		slog.Error("Config file xdump.yaml not found", "error", err)
		os.Exit(1)
	}
	opts = getOpts()
}

// getOpts imports data from the configuration file and environment.
// Some of the settings can be overriden by command line flags.
func getOpts() []config.Option {
	var res []config.Option
	cfg := cfgData{}
	err := viper.Unmarshal(&cfg)
	if err != nil {
		slog.Error("Cannot unmarshal config file", "error", err)
	}

	if cfg.Backend != "" {
		res = append(res, config.OptBackend(cfg.Backend))
	}
	if cfg.WorkDir != "" {
		res = append(res, config.OptWorkDir(cfg.WorkDir))
	}
	if cfg.PgHost != "" {
		res = append(res, config.OptPgHost(cfg.PgHost))
	}
	if cfg.PgPort != 0 {
		res = append(res, config.OptPgPort(cfg.PgPort))
	}
	if cfg.PgUser != "" {
		res = append(res, config.OptPgUser(cfg.PgUser))
	}
	if cfg.PgPass != "" {
		res = append(res, config.OptPgPass(cfg.PgPass))
	}
	if cfg.PgDB != "" {
		res = append(res, config.OptPgDB(cfg.PgDB))
	}
	if cfg.PgMaintenanceDB != "" {
		res = append(res, config.OptPgMaintenanceDB(cfg.PgMaintenanceDB))
	}
	if cfg.SqlitePath != "" {
		res = append(res, config.OptSqlitePath(cfg.SqlitePath))
	}
	if len(cfg.FullTables) > 0 {
		res = append(res, config.OptFullTables(cfg.FullTables))
	}
	if len(cfg.PartialTables) > 0 {
		ps := make([]selection.Partial, len(cfg.PartialTables))
		for i, p := range cfg.PartialTables {
			ps[i] = selection.Partial{Table: p.Table, Query: p.Query}
		}
		res = append(res, config.OptPartialTables(ps))
	}
	if cfg.Compression != "" {
		res = append(res, config.OptCompression(cfg.Compression))
	}
	if cfg.S3Bucket != "" {
		res = append(res, config.OptS3Bucket(cfg.S3Bucket))
	}
	if cfg.S3Prefix != "" {
		res = append(res, config.OptS3Prefix(cfg.S3Prefix))
	}
	if cfg.S3Region != "" {
		res = append(res, config.OptS3Region(cfg.S3Region))
	}
	if cfg.S3Endpoint != "" {
		res = append(res, config.OptS3Endpoint(cfg.S3Endpoint))
	}
	if cfg.S3AccessKey != "" {
		res = append(res, config.OptS3Credentials(cfg.S3AccessKey, cfg.S3SecretKey))
	}
	if cfg.PushGateway != "" {
		res = append(res, config.OptPushGateway(cfg.PushGateway))
	}
	return res
}

// touchConfigFile checks if config file exists, and if not, it gets created.
func touchConfigFile(configPath string) {
	fileExists, _ := gnsys.FileExists(configPath)
	if fileExists {
		return
	}

	slog.Info("Creating config file", "path", configPath)
	createConfig(configPath)
}

// createConfig creates config file.
func createConfig(path string) {
	err := gnsys.MakeDir(filepath.Dir(path))
	if err != nil {
		slog.Error("Cannot create config dir", "error", err)
		os.Exit(1)
	}

	err = os.WriteFile(path, []byte(configText), 0644)
	if err != nil {
		slog.Error("Cannot write to config file", "error", err)
		os.Exit(1)
	}
}
