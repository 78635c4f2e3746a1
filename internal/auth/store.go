package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidOTP          = errors.New("token has expired or is invalid")
)

// One-time token purposes.
const (
	PurposeSignup   = "signup"
	PurposeRecovery = "recovery"
)

const otpTTL = 24 * time.Hour

type refreshEntry struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// Store keeps session state in Redis:
//
//	refresh:<token>       -> {user_id, session_id}
//	session:<sid>         -> current refresh token
//	user_sessions:<uid>   -> set of session ids
//	blacklist:<jti>       -> revoked access token
//	otp:<purpose>:<token> -> user id
type Store struct {
	rdb        *redis.Client
	refreshTTL time.Duration
}

func NewStore(rdb *redis.Client, refreshTTL time.Duration) *Store {
	return &Store{rdb: rdb, refreshTTL: refreshTTL}
}

func refreshKey(token string) string { return "refresh:" + token }
func sessionKey(sid string) string { return "session:" + sid }
func userSessionsKey(uid string) string { return "user_sessions:" + uid }
func blacklistKey(jti string) string { return "blacklist:" + jti }
func otpKey(purpose, token string) string {
	return "otp:" + purpose + ":" + token
}

func newOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Store) putRefresh(ctx context.Context, userID, sessionID string) (string, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	entry, err := json.Marshal(refreshEntry{UserID: userID, SessionID: sessionID})
	if err != nil {
		return "", err
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, refreshKey(token), entry, s.refreshTTL)
		p.Set(ctx, sessionKey(sessionID), token, s.refreshTTL)
		p.SAdd(ctx, userSessionsKey(userID), sessionID)
		p.Expire(ctx, userSessionsKey(userID), s.refreshTTL)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// CreateSession starts a new session for userID and returns its id and refresh token.
func (s *Store) CreateSession(ctx context.Context, userID string) (sessionID, refreshToken string, err error) {
	sessionID = uuid.NewString()
	refreshToken, err = s.putRefresh(ctx, userID, sessionID)
	return sessionID, refreshToken, err
}

// Rotate consumes refreshToken and issues its replacement within the same session.
// A token can be used once.
func (s *Store) Rotate(ctx context.Context, refreshToken string) (userID, sessionID, next string, err error) {
	raw, err := s.rdb.GetDel(ctx, refreshKey(refreshToken)).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", "", fmt.Errorf("consume refresh token: %w", err)
	}
	var entry refreshEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return "", "", "", ErrInvalidRefreshToken
	}

	next, err = s.putRefresh(ctx, entry.UserID, entry.SessionID)
	if err != nil {
		return "", "", "", err
	}
	return entry.UserID, entry.SessionID, next, nil
}

// SessionActive reports whether the session has not been revoked.
func (s *Store) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, sessionKey(sessionID)).Result()
	return n > 0, err
}

// RevokeSession drops the session and its refresh token.
func (s *Store) RevokeSession(ctx context.Context, userID, sessionID string) error {
	token, err := s.rdb.GetDel(ctx, sessionKey(sessionID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("revoke session: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	if token != "" {
		pipe.Del(ctx, refreshKey(token))
	}
	pipe.SRem(ctx, userSessionsKey(userID), sessionID)
	_, err = pipe.Exec(ctx)
	return err
}

// RevokeUser drops every session of userID and returns their ids.
func (s *Store) RevokeUser(ctx context.Context, userID string) ([]string, error) {
	sids, err := s.rdb.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for _, sid := range sids {
		if err := s.RevokeSession(ctx, userID, sid); err != nil {
			return nil, err
		}
	}
	return sids, nil
}

// Blacklist marks an access token id revoked until it would have expired anyway.
func (s *Store) Blacklist(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, blacklistKey(jti), "1", ttl).Err()
}

func (s *Store) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, blacklistKey(jti)).Result()
	return n > 0, err
}

// IssueOTP creates a single-use token for purpose that resolves to userID.
func (s *Store) IssueOTP(ctx context.Context, purpose, userID string) (string, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("generate %s token: %w", purpose, err)
	}
	if err := s.rdb.Set(ctx, otpKey(purpose, token), userID, otpTTL).Err(); err != nil {
		return "", fmt.Errorf("store %s token: %w", purpose, err)
	}
	return token, nil
}

// ConsumeOTP resolves and deletes a one-time token.
func (s *Store) ConsumeOTP(ctx context.Context, purpose, token string) (string, error) {
	userID, err := s.rdb.GetDel(ctx, otpKey(purpose, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidOTP
	}
	if err != nil {
		return "", fmt.Errorf("consume %s token: %w", purpose, err)
	}
	return userID, nil
}
