// Package objectstore provides a uniform interface over the backing blob
// store, including the multipart upload surface used by chunked uploads.
package objectstore

import (
	"context"
	"io"
	"time"
)

// Part identifies one uploaded part of a multipart upload. Index is 0-based;
// the adapter translates to whatever numbering the backing store uses.
type Part struct {
	Index int
	ETag  string
	Size  int64
}

// Store is the blob-store contract the rest of the system depends on.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	GetRange(ctx context.Context, key string, start, end int64) ([]byte, error)
	Delete(ctx context.Context, key string) error

	CreateMultipart(ctx context.Context, key, contentType string) (uploadID string, err error)
	UploadPart(ctx context.Context, key, uploadID string, partIndex int, r io.Reader, size int64) (Part, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []Part) (size int64, err error)
	AbortMultipart(ctx context.Context, key, uploadID string) error

	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
}
