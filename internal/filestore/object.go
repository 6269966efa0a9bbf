package filestore

import (
	"io"
	"strings"
	"time"
)

// ObjectScheme prefixes database locations that live in object storage.
const ObjectScheme = "s3://"

// ObjectInfo describes a single object stored in a bucket.
type ObjectInfo struct {
	// Key is the full object path within the bucket (e.g. "exports/sales.db").
	Key string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	// ContentType is the MIME type.
	ContentType string

	// ETag is the object's entity tag / hash, as returned by the backend.
	ETag string

	// LastModified is when the object was last written.
	LastModified time.Time
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// IsObjectURL reports whether loc names an object rather than a local path.
func IsObjectURL(loc string) bool {
	return strings.HasPrefix(loc, ObjectScheme)
}

// ParseObjectURL splits "s3://bucket/key" into its parts. ok is false when
// loc is not an object URL or either part is empty.
func ParseObjectURL(loc string) (bucket, key string, ok bool) {
	if !IsObjectURL(loc) {
		return "", "", false
	}
	bucket, key, found := strings.Cut(strings.TrimPrefix(loc, ObjectScheme), "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
