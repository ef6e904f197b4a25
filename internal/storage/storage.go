package storage

import (
	"context"
	"io"
)

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// PutObject writes size bytes from body under objectKey.
	PutObject(ctx context.Context, objectKey, contentType string, body io.Reader, size int64) error

	// ObjectURL returns a URL that retrieves the object. With a public base
	// URL configured it is stable; otherwise it is a short-lived presigned
	// GET. Callers resolve it when serving a read and never store it.
	ObjectURL(ctx context.Context, objectKey string) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}
