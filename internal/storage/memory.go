package storage

import (
	"context"
	"sync"

	"photofeed/internal/observability"
)

// MemoryStorage keeps objects in process memory. Used in development and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	buckets map[string]map[string]Object
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{buckets: make(map[string]map[string]Object)}
}

func (m *MemoryStorage) EnsureBuckets(_ context.Context, buckets ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range buckets {
		if _, ok := m.buckets[b]; !ok {
			m.buckets[b] = make(map[string]Object)
		}
	}
	return nil
}

func (m *MemoryStorage) Put(_ context.Context, bucket, key string, data []byte, contentType string, upsert bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return ErrBucketNotFound
	}
	if _, exists := objects[key]; exists && !upsert {
		return ErrObjectExists
	}
	objects[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	observability.StorageBytes.WithLabelValues(bucket).Add(float64(len(data)))
	return nil
}

func (m *MemoryStorage) Get(_ context.Context, bucket, key string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, ErrBucketNotFound
	}
	obj, ok := objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &obj, nil
}

// Remove is a no-op for missing keys.
func (m *MemoryStorage) Remove(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return ErrBucketNotFound
	}
	delete(objects, key)
	return nil
}
