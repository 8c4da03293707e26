package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/xdump/xdump/pkg/ent/selection"
)

const (
	// Postgres backend works with PostgreSQL servers.
	Postgres = "postgres"

	// SQLite backend works with SQLite database files.
	SQLite = "sqlite"
)

// Config is a struct that holds configuration parameters for the package.
type Config struct {
	// Backend is a type of the database: "postgres" or "sqlite".
	Backend string

	// WorkDir is a directory for temporary files, for example archives
	// downloaded from remote storage.
	WorkDir string

	// PgHost is a host name for PostgreSQL.
	PgHost string

	// PgPort is a port of PostgreSQL.
	PgPort int

	// PgUser is a user name for PostgreSQL.
	PgUser string

	// PgPass is a password for PostgreSQL.
	PgPass string

	// PgDB is a database name for PostgreSQL.
	PgDB string

	// PgMaintenanceDB is a database used to create and drop PgDB.
	PgMaintenanceDB string

	// SqlitePath is a path to SQLite database file.
	SqlitePath string

	// FullTables are tables dumped with all their rows.
	FullTables []string

	// PartialTables are tables dumped with rows selected by queries.
	PartialTables []selection.Partial

	// Compression is a compression method of archive entries: "deflate",
	// "store" or "zstd".
	Compression string

	// NoSchema skips schema and sequences in dumps.
	NoSchema bool

	// NoData skips tables data in dumps.
	NoData bool

	// Truncate empties tables before data is loaded.
	Truncate bool

	// S3Bucket is a bucket for uploads of archives.
	S3Bucket string

	// S3Prefix is prepended to names of uploaded archives.
	S3Prefix string

	// S3Region is a region of the S3 bucket.
	S3Region string

	// S3Endpoint is an URL of S3-compatible storage, empty for AWS.
	S3Endpoint string

	// S3AccessKey and S3SecretKey are static credentials for S3. When they
	// are empty, the default AWS credentials chain is used.
	S3AccessKey string
	S3SecretKey string

	// PushGateway is an URL of Prometheus Pushgateway that receives dump
	// metrics.
	PushGateway string
}

// Option type allows to change settings for Config.
type Option func(*Config)

// OptBackend sets the type of the database.
func OptBackend(b string) Option {
	return func(cfg *Config) {
		cfg.Backend = strings.ToLower(b)
	}
}

// OptWorkDir sets a directory for temporary files.
func OptWorkDir(d string) Option {
	return func(cfg *Config) {
		cfg.WorkDir = ExpandPath(d)
	}
}

// OptPgHost sets host name for PostgreSQL
func OptPgHost(h string) Option {
	return func(cfg *Config) {
		cfg.PgHost = h
	}
}

// OptPgPort sets port for PostgreSQL
func OptPgPort(p int) Option {
	return func(cfg *Config) {
		cfg.PgPort = p
	}
}

// OptPgUser sets user for PostgreSQL
func OptPgUser(u string) Option {
	return func(cfg *Config) {
		cfg.PgUser = u
	}
}

// OptPgPass sets password for PostgreSQL
func OptPgPass(p string) Option {
	return func(cfg *Config) {
		cfg.PgPass = p
	}
}

// OptPgDB sets database name for PostgreSQL
func OptPgDB(d string) Option {
	return func(cfg *Config) {
		cfg.PgDB = d
	}
}

// OptPgMaintenanceDB sets the database used for creating and dropping
// of PgDB.
func OptPgMaintenanceDB(d string) Option {
	return func(cfg *Config) {
		cfg.PgMaintenanceDB = d
	}
}

// OptSqlitePath sets a path to SQLite file.
func OptSqlitePath(p string) Option {
	return func(cfg *Config) {
		cfg.SqlitePath = ExpandPath(p)
	}
}

// OptFullTables sets tables to dump completely.
func OptFullTables(ts []string) Option {
	return func(cfg *Config) {
		cfg.FullTables = ts
	}
}

// OptPartialTables sets tables to dump partially.
func OptPartialTables(ps []selection.Partial) Option {
	return func(cfg *Config) {
		cfg.PartialTables = ps
	}
}

// OptCompression sets compression method of archives.
func OptCompression(c string) Option {
	return func(cfg *Config) {
		cfg.Compression = c
	}
}

// OptNoSchema skips schema in dumps.
func OptNoSchema(b bool) Option {
	return func(cfg *Config) {
		cfg.NoSchema = b
	}
}

// OptNoData skips data in dumps.
func OptNoData(b bool) Option {
	return func(cfg *Config) {
		cfg.NoData = b
	}
}

// OptTruncate empties tables before loading.
func OptTruncate(b bool) Option {
	return func(cfg *Config) {
		cfg.Truncate = b
	}
}

// OptS3Bucket sets S3 bucket for uploads.
func OptS3Bucket(b string) Option {
	return func(cfg *Config) {
		cfg.S3Bucket = b
	}
}

// OptS3Prefix sets a prefix for S3 keys.
func OptS3Prefix(p string) Option {
	return func(cfg *Config) {
		cfg.S3Prefix = p
	}
}

// OptS3Region sets S3 region.
func OptS3Region(r string) Option {
	return func(cfg *Config) {
		cfg.S3Region = r
	}
}

// OptS3Endpoint sets URL of S3-compatible storage.
func OptS3Endpoint(e string) Option {
	return func(cfg *Config) {
		cfg.S3Endpoint = e
	}
}

// OptS3Credentials sets static credentials for S3.
func OptS3Credentials(key, secret string) Option {
	return func(cfg *Config) {
		cfg.S3AccessKey = key
		cfg.S3SecretKey = secret
	}
}

// OptPushGateway sets URL of Prometheus Pushgateway.
func OptPushGateway(u string) Option {
	return func(cfg *Config) {
		cfg.PushGateway = u
	}
}

// New creates Config with default values modified by options.
func New(opts ...Option) Config {
	workDir, err := os.UserCacheDir()
	if err != nil {
		workDir = os.TempDir()
	}
	workDir = filepath.Join(workDir, "xdump")

	res := Config{
		Backend:         Postgres,
		WorkDir:         workDir,
		PgHost:          "127.0.0.1",
		PgPort:          5432,
		PgUser:          "postgres",
		PgMaintenanceDB: "postgres",
		SqlitePath:      "xdump.sqlite",
		Compression:     "deflate",
	}

	for _, opt := range opts {
		opt(&res)
	}

	return res
}

// ExpandPath replaces leading '~' of a path with the home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	res, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return res
}
