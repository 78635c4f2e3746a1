package feed

import (
	"context"
	"sync"

	"photofeed/internal/session"
	"photofeed/pkg/client"

	"github.com/stretchr/testify/mock"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) ListPosts(ctx context.Context) ([]client.Post, error) {
	args := m.Called(ctx)
	posts, _ := args.Get(0).([]client.Post)
	return posts, args.Error(1)
}

func (m *mockClient) ListPostsBy(ctx context.Context, userID string) ([]client.Post, error) {
	args := m.Called(ctx, userID)
	posts, _ := args.Get(0).([]client.Post)
	return posts, args.Error(1)
}

func (m *mockClient) LikedPostIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockClient) InsertPost(ctx context.Context, imageURL, caption string) (*client.Post, error) {
	args := m.Called(ctx, imageURL, caption)
	p, _ := args.Get(0).(*client.Post)
	return p, args.Error(1)
}

func (m *mockClient) UpdatePost(ctx context.Context, id, caption string) (*client.Post, error) {
	args := m.Called(ctx, id, caption)
	p, _ := args.Get(0).(*client.Post)
	return p, args.Error(1)
}

func (m *mockClient) DeletePost(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockClient) LikePost(ctx context.Context, postID string) (*client.LikeResult, error) {
	args := m.Called(ctx, postID)
	res, _ := args.Get(0).(*client.LikeResult)
	return res, args.Error(1)
}

func (m *mockClient) UnlikePost(ctx context.Context, postID string) (*client.LikeResult, error) {
	args := m.Called(ctx, postID)
	res, _ := args.Get(0).(*client.LikeResult)
	return res, args.Error(1)
}

func (m *mockClient) Upload(ctx context.Context, bucket, key string, data []byte, contentType string, upsert bool) (string, error) {
	args := m.Called(ctx, bucket, key, data, contentType, upsert)
	return args.String(0), args.Error(1)
}

func (m *mockClient) PublicURL(bucket, key string) string {
	return m.Called(bucket, key).String(0)
}

// identities is a settable IdentitySource.
type identities struct {
	mu       sync.Mutex
	current  *session.Identity
	observer func(*session.Identity)
}

func (i *identities) Identity() *session.Identity {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

func (i *identities) OnIdentityChange(fn func(*session.Identity)) func() {
	i.mu.Lock()
	i.observer = fn
	i.mu.Unlock()
	return func() {
		i.mu.Lock()
		i.observer = nil
		i.mu.Unlock()
	}
}

func (i *identities) set(id *session.Identity) {
	i.mu.Lock()
	i.current = id
	fn := i.observer
	i.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}
