package xdump

import (
	"context"

	"github.com/xdump/xdump/internal/ent/backend"
	"github.com/xdump/xdump/internal/io/archio"
	"github.com/xdump/xdump/pkg/ent/report"
)

// XDump is an interface for creating and loading partial database dumps.
type XDump interface {
	// Dump writes schema, sequences and data of the database into an
	// archive at the path. Everything is read in one snapshot.
	Dump(ctx context.Context, b backend.Backend, path string) (report.Report, error)

	// Load restores the archive into the database in one transaction.
	Load(ctx context.Context, b backend.Backend, path string) error

	// Inspect describes files of an archive.
	Inspect(path string) ([]archio.Entry, error)
}
