package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"photofeed/internal/models"
	"photofeed/internal/observability"
	"photofeed/internal/storage"

	"go.opentelemetry.io/otel/attribute"
)

type UploadInput struct {
	UserID      string
	Bucket      string
	Key         string
	Data        []byte
	ContentType string
	Upsert      bool
}

// MediaService applies the bucket policy: anyone may read, and a user may
// only write keys under their own id ("<uid>/..." or "<uid>.<ext>").
type MediaService struct {
	store    storage.Storage
	buckets  []string
	maxBytes int64
}

func NewMediaService(store storage.Storage, buckets []string, maxUploadMB int) *MediaService {
	return &MediaService{
		store:    store,
		buckets:  buckets,
		maxBytes: int64(maxUploadMB) << 20,
	}
}

func ownsKey(userID, key string) bool {
	first, _, nested := strings.Cut(key, "/")
	if nested {
		return first == userID
	}
	return strings.TrimSuffix(first, path.Ext(first)) == userID
}

func (s *MediaService) checkTarget(bucket, key string) error {
	if !slices.Contains(s.buckets, bucket) {
		return models.NewNotFoundError("Bucket", bucket)
	}
	if !storage.ValidKey(key) {
		return models.NewValidationError("invalid object key")
	}
	return nil
}

// Upload stores the object and returns its "<bucket>/<key>" path.
func (s *MediaService) Upload(ctx context.Context, in UploadInput) (path string, err error) {
	ctx, span := observability.StartSpan(ctx, "MediaService.Upload",
		attribute.String("storage.bucket", in.Bucket),
		attribute.Int("storage.size", len(in.Data)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err := s.checkTarget(in.Bucket, in.Key); err != nil {
		return "", err
	}
	if !ownsKey(in.UserID, in.Key) {
		return "", models.NewForbiddenError("new row violates row-level security policy")
	}
	if len(in.Data) == 0 {
		return "", models.NewValidationError("empty upload")
	}
	if s.maxBytes > 0 && int64(len(in.Data)) > s.maxBytes {
		return "", models.NewValidationError(fmt.Sprintf("object exceeds the maximum allowed size of %d bytes", s.maxBytes))
	}
	if !strings.HasPrefix(in.ContentType, "image/") {
		return "", models.NewValidationError("only image uploads are accepted")
	}

	err = s.store.Put(ctx, in.Bucket, in.Key, in.Data, in.ContentType, in.Upsert)
	if errors.Is(err, storage.ErrObjectExists) {
		return "", models.NewConflictError("The resource already exists")
	}
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", in.Bucket, in.Key, err)
	}
	return in.Bucket + "/" + in.Key, nil
}

func (s *MediaService) Remove(ctx context.Context, userID, bucket, key string) error {
	if err := s.checkTarget(bucket, key); err != nil {
		return err
	}
	if !ownsKey(userID, key) {
		return models.NewForbiddenError("you can only remove your own objects")
	}
	if err := s.store.Remove(ctx, bucket, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("remove %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *MediaService) Get(ctx context.Context, bucket, key string) (*storage.Object, error) {
	if err := s.checkTarget(bucket, key); err != nil {
		return nil, err
	}
	obj, err := s.store.Get(ctx, bucket, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, models.NewNotFoundError("Object", key)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}
