package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"
)

// MinIOStore adapts a minio client to the Store interface. Multipart
// operations go through minio.Core, the low-level API that exposes the raw
// multipart protocol.
type MinIOStore struct {
	client *minio.Client
	core   minio.Core
	bucket string
}

// NewMinIOStore constructs an adapter bound to one bucket.
func NewMinIOStore(client *minio.Client, bucket string) *MinIOStore {
	return &MinIOStore{
		client: client,
		core:   minio.Core{Client: client},
		bucket: bucket,
	}
}

func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *MinIOStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return obj, nil
}

func (s *MinIOStore) GetRange(ctx context.Context, key string, start, end int64) ([]byte, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, end); err != nil {
		return nil, fmt.Errorf("set range for %s: %w", key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("get object range %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object range %s: %w", key, err)
	}
	return data, nil
}

func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

func (s *MinIOStore) CreateMultipart(ctx context.Context, key, contentType string) (string, error) {
	uploadID, err := s.core.NewMultipartUpload(ctx, s.bucket, key, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("create multipart upload for %s: %w", key, err)
	}
	return uploadID, nil
}

func (s *MinIOStore) UploadPart(ctx context.Context, key, uploadID string, partIndex int, r io.Reader, size int64) (Part, error) {
	// minio part numbers are 1-based
	objPart, err := s.core.PutObjectPart(ctx, s.bucket, key, uploadID, partIndex+1, r, size, minio.PutObjectPartOptions{})
	if err != nil {
		return Part{}, fmt.Errorf("upload part %d for %s: %w", partIndex, key, err)
	}
	return Part{Index: partIndex, ETag: objPart.ETag, Size: objPart.Size}, nil
}

func (s *MinIOStore) CompleteMultipart(ctx context.Context, key, uploadID string, parts []Part) (int64, error) {
	sorted := make([]Part, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	completeParts := make([]minio.CompletePart, 0, len(sorted))
	for _, p := range sorted {
		completeParts = append(completeParts, minio.CompletePart{
			PartNumber: p.Index + 1,
			ETag:       p.ETag,
		})
	}

	info, err := s.core.CompleteMultipartUpload(ctx, s.bucket, key, uploadID, completeParts, minio.PutObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("complete multipart upload for %s: %w", key, err)
	}
	return info.Size, nil
}

func (s *MinIOStore) AbortMultipart(ctx context.Context, key, uploadID string) error {
	if err := s.core.AbortMultipartUpload(ctx, s.bucket, key, uploadID); err != nil {
		return fmt.Errorf("abort multipart upload for %s: %w", key, err)
	}
	return nil
}

func (s *MinIOStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("presign get for %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *MinIOStore) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	if err != nil {
		return "", fmt.Errorf("presign put for %s: %w", key, err)
	}
	return u.String(), nil
}
