package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"photofeed/internal/auth"
	"photofeed/internal/config"
	"photofeed/internal/database"
	"photofeed/internal/models"
	"photofeed/internal/notifications"
	"photofeed/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                      "test",
		PublicURL:                "http://api.test",
		JWTSecret:                "service-test-secret-long-enough-000000",
		JWTIssuer:                "photofeed-api",
		JWTAudience:              "photofeed-client",
		AccessTokenTTL:           time.Hour,
		RefreshTokenTTL:          24 * time.Hour,
		RequireEmailConfirmation: true,
		DBDriver:                 "sqlite",
		SQLitePath:               ":memory:",
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(testConfig())
	require.NoError(t, err)
	return db
}

// recordingMailer keeps every message it was asked to send.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	To, Subject, Body string
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type authFixture struct {
	svc      *AuthService
	accounts repository.AccountRepository
	store    *auth.Store
	mailer   *recordingMailer
	notifier *notifications.Notifier
	events   chan notifications.AuthEvent
}

func newAuthFixture(t *testing.T, cfg *config.Config) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	accounts := repository.NewAccountRepository(newTestDB(t))
	store := auth.NewStore(rdb, cfg.RefreshTokenTTL)
	mailer := &recordingMailer{}

	notifier := notifications.NewNotifier(nil)
	events := make(chan notifications.AuthEvent, 8)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, notifier.StartAuthSubscriber(ctx, func(_, payload string) {
		var ev notifications.AuthEvent
		if err := json.Unmarshal([]byte(payload), &ev); err == nil {
			events <- ev
		}
	}))

	svc := NewAuthService(accounts, store, auth.NewTokenIssuer(cfg), notifier, mailer, cfg)
	return &authFixture{svc: svc, accounts: accounts, store: store, mailer: mailer, notifier: notifier, events: events}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}
