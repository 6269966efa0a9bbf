// Package filestore defines the object storage seam used to materialise
// SQLite databases that live in a bucket rather than on local disk.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	err = filestore.Download(ctx, store, "warehouse", "sales.db", "/var/cache/vizly/sales.db")
package filestore

import "context"

// Store is the single interface all file storage providers must implement.
// Scoped to the read operations remote databases need.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources (connections, goroutines, etc.).
	Close() error

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata for the object at key inside bucket
	// without downloading its content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
}
