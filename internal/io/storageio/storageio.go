// Package storageio keeps archives in a local directory or in S3
// compatible object storage.
package storageio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gnames/gnsys"
	"github.com/xdump/xdump/internal/ent/storage"
)

const s3Scheme = "s3://"

// IsRemote is true for locations in object storage.
func IsRemote(loc string) bool {
	return strings.HasPrefix(loc, s3Scheme)
}

// ParseS3 splits an s3://bucket/key location.
func ParseS3(loc string) (bucket, key string, err error) {
	if !IsRemote(loc) {
		return "", "", fmt.Errorf("not an S3 location: %s", loc)
	}
	bucket, key, _ = strings.Cut(strings.TrimPrefix(loc, s3Scheme), "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("S3 location needs bucket and key: %s", loc)
	}
	return bucket, key, nil
}

// Key joins a prefix and the file name of the archive.
func Key(prefix, file string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return filepath.Base(file)
	}
	return path.Join(prefix, filepath.Base(file))
}

type local struct {
	dir string
}

// NewLocal creates a storage in a local directory.
func NewLocal(dir string) (storage.Storage, error) {
	if err := gnsys.MakeDir(dir); err != nil {
		slog.Error("Cannot create storage directory", "dir", dir, "error", err)
		return nil, err
	}
	return &local{dir: dir}, nil
}

// Upload copies the archive to the directory.
func (l *local) Upload(_ context.Context, src, key string) (string, error) {
	dst := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := gnsys.MakeDir(filepath.Dir(dst)); err != nil {
		return "", err
	}
	if err := copyFile(src, dst); err != nil {
		slog.Error("Cannot copy archive", "path", dst, "error", err)
		return "", err
	}
	return dst, nil
}

// Download copies the archive from the directory.
func (l *local) Download(_ context.Context, key, dst string) error {
	src := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := copyFile(src, dst); err != nil {
		slog.Error("Cannot copy archive", "path", src, "error", err)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFile(dst, in)
}

// writeFile writes data to a temporary file next to the destination and
// renames it, readers never see a partial archive.
func writeFile(dst string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".xdump-*")
	if err != nil {
		return err
	}
	if _, err = io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
