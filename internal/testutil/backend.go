// Package testutil provides shared fixtures for tests that need a running API.
package testutil

import (
	"context"
	"net"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"photofeed/internal/config"
	"photofeed/internal/database"
	"photofeed/internal/server"
	"photofeed/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Backend is an API server listening on a loopback port with in-memory
// SQLite, miniredis and memory object storage behind it.
type Backend struct {
	URL     string
	Config  *config.Config
	Server  *server.Server
	App     *fiber.App
	Redis   *miniredis.Miniredis
	Objects *storage.MemoryStorage
	Mailer  *Mailer
}

// Option adjusts the backend configuration before the server is built.
type Option func(*config.Config)

// WithEmailConfirmation makes sign-in wait for the emailed confirmation link.
func WithEmailConfirmation() Option {
	return func(c *config.Config) { c.RequireEmailConfirmation = true }
}

// Config returns the configuration used by test backends.
func Config() *config.Config {
	return &config.Config{
		Port:            "0",
		Env:             "test",
		PublicURL:       "http://api.test",
		ServiceName:     "photofeed-test",
		JWTSecret:       "test-secret-that-is-long-enough-0000000",
		JWTIssuer:       "photofeed-api",
		JWTAudience:     "photofeed-client",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		DBDriver:        "sqlite",
		SQLitePath:      ":memory:",
		StorageDriver:   "memory",
		StorageBuckets:  "posts,avatars",
		MaxUploadSizeMB: 5,
		AllowedOrigins:  "*",
	}
}

// NewBackend starts a backend and stops it when the test ends.
func NewBackend(t testing.TB, opts ...Option) *Backend {
	t.Helper()
	cfg := Config()
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := database.Connect(cfg)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	objects := storage.NewMemoryStorage()
	require.NoError(t, objects.EnsureBuckets(context.Background(), cfg.Buckets()...))

	mailer := &Mailer{}
	srv, err := server.NewServerWithDeps(cfg, db, rdb, objects, mailer)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv.Wire(ctx)

	app := srv.NewApp()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()

	t.Cleanup(func() {
		cancel()
		_ = app.ShutdownWithTimeout(2 * time.Second)
		_ = rdb.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &Backend{
		URL:     "http://" + ln.Addr().String(),
		Config:  cfg,
		Server:  srv,
		App:     app,
		Redis:   mr,
		Objects: objects,
		Mailer:  mailer,
	}
}

// Mailer records outgoing mail instead of sending it.
type Mailer struct {
	mu   sync.Mutex
	sent []Mail
}

// Mail is one recorded message.
type Mail struct {
	To, Subject, Body string
}

// Send records the message.
func (m *Mailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Mail{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of every recorded message.
func (m *Mailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.sent...)
}

// Token returns the verify token from the latest link mailed to email for purpose
// ("signup" or "recovery").
func (m *Mailer) Token(t testing.TB, email, purpose string) string {
	t.Helper()
	sent := m.Sent()
	for i := len(sent) - 1; i >= 0; i-- {
		if !strings.EqualFold(sent[i].To, email) {
			continue
		}
		idx := strings.Index(sent[i].Body, "http")
		if idx < 0 {
			continue
		}
		link, err := url.Parse(strings.TrimSpace(sent[i].Body[idx:]))
		require.NoError(t, err)
		if link.Query().Get("type") == purpose {
			return link.Query().Get("token")
		}
	}
	t.Fatalf("no %s mail sent to %s", purpose, email)
	return ""
}

// JPEG is a stand-in image body. The API only checks the declared content type.
var JPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xFF, 0xD9}
