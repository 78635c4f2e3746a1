package session

import (
	"context"

	"photofeed/pkg/client"

	"github.com/stretchr/testify/mock"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) GetSession(ctx context.Context) (*client.Session, error) {
	args := m.Called(ctx)
	sess, _ := args.Get(0).(*client.Session)
	return sess, args.Error(1)
}

func (m *mockBackend) OnAuthStateChange(fn func(client.AuthEvent)) func() {
	args := m.Called(fn)
	return args.Get(0).(func())
}

func (m *mockBackend) SignInWithPassword(ctx context.Context, email, password string) (*client.Session, error) {
	args := m.Called(ctx, email, password)
	sess, _ := args.Get(0).(*client.Session)
	return sess, args.Error(1)
}

func (m *mockBackend) SignUp(ctx context.Context, email, password string, data map[string]any) (*client.User, error) {
	args := m.Called(ctx, email, password, data)
	user, _ := args.Get(0).(*client.User)
	return user, args.Error(1)
}

func (m *mockBackend) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBackend) ResetPasswordForEmail(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockBackend) GetProfile(ctx context.Context, id string) (*client.Profile, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*client.Profile)
	return p, args.Error(1)
}

func (m *mockBackend) InsertProfile(ctx context.Context, in client.ProfileInsert) (*client.Profile, error) {
	args := m.Called(ctx, in)
	p, _ := args.Get(0).(*client.Profile)
	return p, args.Error(1)
}

func (m *mockBackend) UpdateProfile(ctx context.Context, id string, update client.ProfileUpdate) (*client.Profile, error) {
	args := m.Called(ctx, id, update)
	p, _ := args.Get(0).(*client.Profile)
	return p, args.Error(1)
}

func (m *mockBackend) Upload(ctx context.Context, bucket, key string, data []byte, contentType string, upsert bool) (string, error) {
	args := m.Called(ctx, bucket, key, data, contentType, upsert)
	return args.String(0), args.Error(1)
}

func (m *mockBackend) PublicURL(bucket, key string) string {
	return m.Called(bucket, key).String(0)
}

func (m *mockBackend) Remove(ctx context.Context, bucket string, keys ...string) error {
	return m.Called(ctx, bucket, keys).Error(0)
}
