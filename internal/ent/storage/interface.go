package storage

import "context"

// Storage keeps archives outside of the machine that creates them.
type Storage interface {
	// Upload copies a local archive to the storage under the key and
	// returns its location.
	Upload(ctx context.Context, path, key string) (string, error)

	// Download copies an archive from the storage to a local path.
	Download(ctx context.Context, key, path string) error
}
