package storage

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"photofeed/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_PutGetRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.EnsureBuckets(ctx, "posts", "avatars"))

	require.NoError(t, s.Put(ctx, "posts", "u1/1.jpg", []byte("jpeg"), "image/jpeg", false))

	obj, err := s.Get(ctx, "posts", "u1/1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), obj.Data)
	assert.Equal(t, "image/jpeg", obj.ContentType)

	t.Run("No Overwrite Without Upsert", func(t *testing.T) {
		err := s.Put(ctx, "posts", "u1/1.jpg", []byte("other"), "image/jpeg", false)
		assert.ErrorIs(t, err, ErrObjectExists)
	})

	t.Run("Upsert Replaces", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "posts", "u1/1.jpg", []byte("v2"), "image/jpeg", true))
		obj, err := s.Get(ctx, "posts", "u1/1.jpg")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), obj.Data)
	})

	t.Run("Unknown Bucket", func(t *testing.T) {
		assert.ErrorIs(t, s.Put(ctx, "nope", "k", nil, "", true), ErrBucketNotFound)
		_, err := s.Get(ctx, "nope", "k")
		assert.ErrorIs(t, err, ErrBucketNotFound)
	})

	require.NoError(t, s.Remove(ctx, "posts", "u1/1.jpg"))
	_, err = s.Get(ctx, "posts", "u1/1.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.NoError(t, s.Remove(ctx, "posts", "u1/1.jpg"))
}

func TestMemoryStorage_CopiesInput(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.EnsureBuckets(ctx, "avatars"))

	data := []byte("abc")
	require.NoError(t, s.Put(ctx, "avatars", "u.jpg", data, "image/jpeg", true))
	data[0] = 'z'

	obj, err := s.Get(ctx, "avatars", "u.jpg")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(obj.Data))
}

func TestNew_MemoryCreatesBuckets(t *testing.T) {
	s, err := New(context.Background(), &config.Config{StorageDriver: "memory", StorageBuckets: "posts,avatars"})
	require.NoError(t, err)
	assert.NoError(t, s.Put(context.Background(), "avatars", "a.jpg", []byte{1}, "image/jpeg", false))

	_, err = New(context.Background(), &config.Config{StorageDriver: "ftp"})
	assert.Error(t, err)
}

func TestValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"u1/1700000000000.jpg", true},
		{"abc.jpg", true},
		{"", false},
		{"/abs.jpg", false},
		{"a/../b.jpg", false},
		{"a//b.jpg", false},
		{"./a.jpg", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidKey(tt.key))
		})
	}
}

func TestTranslateMinioErrors(t *testing.T) {
	assert.ErrorIs(t, translate(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}), ErrObjectNotFound)
	assert.ErrorIs(t, translate(minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}), ErrBucketNotFound)
	assert.NoError(t, translate(nil))

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))

	assert.True(t, isNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.False(t, isNoSuchKey(minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}))
}

func TestNewMinioStorage_AcceptsSchemeEndpoint(t *testing.T) {
	s, err := NewMinioStorage(MinioConfig{Endpoint: "http://localhost:9000", AccessKey: "minio", SecretKey: "minio123"})
	require.NoError(t, err)
	assert.NotNil(t, s.client)
}
