// Package storage stores uploaded objects (post images, avatars) in named buckets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"photofeed/internal/config"
)

var (
	// ErrObjectExists is returned by a non-upsert Put when the key is taken.
	ErrObjectExists = errors.New("the resource already exists")
	// ErrObjectNotFound is returned when a key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrBucketNotFound is returned when a bucket has not been created.
	ErrBucketNotFound = errors.New("bucket not found")
)

// Object is a stored blob with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// Storage is the object store used by the storage API.
type Storage interface {
	EnsureBuckets(ctx context.Context, buckets ...string) error
	Put(ctx context.Context, bucket, key string, data []byte, contentType string, upsert bool) error
	Get(ctx context.Context, bucket, key string) (*Object, error)
	Remove(ctx context.Context, bucket, key string) error
}

// New builds the store selected by STORAGE_DRIVER and creates the configured buckets.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	var (
		s   Storage
		err error
	)
	switch cfg.StorageDriver {
	case "memory", "":
		s = NewMemoryStorage()
	case "minio":
		s, err = NewMinioStorage(MinioConfig{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			UseSSL:    cfg.StorageUseSSL,
		})
	default:
		err = fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBuckets(ctx, cfg.Buckets()...); err != nil {
		return nil, fmt.Errorf("ensure buckets: %w", err)
	}
	return s, nil
}

// ValidKey rejects empty keys and path traversal.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
