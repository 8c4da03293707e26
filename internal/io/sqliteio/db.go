package sqliteio

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gnames/gnsys"
)

// CreateDatabase creates an empty database file. Owner is ignored, SQLite
// has no users.
func (s *sqliteio) CreateDatabase(_ context.Context, name, _ string) error {
	if err := gnsys.MakeDir(filepath.Dir(name)); err != nil {
		slog.Error("Cannot create database directory", "path", name, "error", err)
		return err
	}
	db, err := open(name)
	if err != nil {
		return err
	}
	return db.Close()
}

// DropDatabase removes the database file with its WAL and shared memory
// files.
func (s *sqliteio) DropDatabase(_ context.Context, name string) error {
	for _, path := range []string{name, name + "-wal", name + "-shm"} {
		exists, _ := gnsys.FileExists(path)
		if !exists {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Error("Cannot remove database file", "path", path, "error", err)
			return err
		}
	}
	return nil
}

// RecreateDatabase replaces the configured database file with an empty
// one.
func (s *sqliteio) RecreateDatabase(ctx context.Context) error {
	if err := s.db.Close(); err != nil {
		return err
	}
	if err := s.DropDatabase(ctx, s.path); err != nil {
		return err
	}
	db, err := open(s.path)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}
