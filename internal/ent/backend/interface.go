package backend

import (
	"context"
	"io"

	"github.com/xdump/xdump/pkg/ent/selection"
)

// Schema is DDL of a database and the state of its sequences.
type Schema struct {
	// SQL recreates tables, indices, views etc.
	SQL []byte

	// Sequences restores sequences values. It is empty for databases
	// without sequences.
	Sequences []byte
}

// Backend is the interface to a database that can be dumped and loaded.
type Backend interface {
	// Name returns the type of the backend.
	Name() string

	// Snapshot starts a consistent read view of the database. Everything
	// read through the Snapshot sees the database as it was at the start.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Loader starts a transaction that loads a dump into the database.
	Loader(ctx context.Context) (Loader, error)

	// Run executes a query and returns its rows as column-value maps.
	Run(ctx context.Context, query string, args ...any) ([]map[string]any, error)

	// ExportCSV writes the result of the query in CSV format with a header
	// row and returns the number of exported rows.
	ExportCSV(ctx context.Context, query string, w io.Writer) (int64, error)

	// CreateDatabase creates a new database.
	CreateDatabase(ctx context.Context, name, owner string) error

	// DropDatabase removes a database, it is not an error if the database
	// does not exist.
	DropDatabase(ctx context.Context, name string) error

	// RecreateDatabase drops the configured database and creates it again
	// empty.
	RecreateDatabase(ctx context.Context) error

	// Close releases connections to the database.
	Close() error
}

// Snapshot reads data for a dump.
type Snapshot interface {
	// Schema returns DDL of the database and sequences states.
	Schema(ctx context.Context) (Schema, error)

	// Relations returns foreign keys of the database.
	Relations(ctx context.Context) ([]selection.Relation, error)

	// Exec runs a statement and returns the number of affected rows. It is
	// used for temporary tables that hold selected rows.
	Exec(ctx context.Context, query string) (int64, error)

	// ExportCSV writes the result of the query in CSV format with a header
	// row and returns the number of exported rows.
	ExportCSV(ctx context.Context, query string, w io.Writer) (int64, error)

	// Close ends the snapshot, nothing done through it is kept.
	Close(ctx context.Context) error
}

// Loader writes a dump into the database in one transaction.
type Loader interface {
	// ExecScript runs an SQL script.
	ExecScript(ctx context.Context, script string) error

	// Relations returns foreign keys of the database.
	Relations(ctx context.Context) ([]selection.Relation, error)

	// Truncate removes all rows from the tables.
	Truncate(ctx context.Context, tables []string) error

	// CopyCSV loads CSV data with a header row into a table and returns
	// the number of loaded rows.
	CopyCSV(ctx context.Context, table string, r io.Reader) (int64, error)

	// Commit makes loaded data permanent.
	Commit(ctx context.Context) error

	// Close discards the transaction if it was not committed.
	Close(ctx context.Context) error
}
