// Package service holds the business rules between the HTTP handlers and the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"photofeed/internal/auth"
	"photofeed/internal/config"
	"photofeed/internal/models"
	"photofeed/internal/notifications"
	"photofeed/internal/observability"
	"photofeed/internal/repository"
	"photofeed/internal/validation"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

// Session is what a successful sign-in, refresh or verification returns.
type Session struct {
	AccessToken  string          `json:"access_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int             `json:"expires_in"`
	ExpiresAt    int64           `json:"expires_at"`
	RefreshToken string          `json:"refresh_token"`
	SessionID    string          `json:"session_id"`
	User         *models.Account `json:"user"`
}

type SignUpInput struct {
	Email    string
	Password string
	Data     map[string]any
}

type VerifyInput struct {
	Type     string
	Token    string
	Password string
}

type AuthService struct {
	accounts            repository.AccountRepository
	store               *auth.Store
	tokens              *auth.TokenIssuer
	notifier            *notifications.Notifier
	mailer              Mailer
	requireConfirmation bool
	publicURL           string
	now                 func() time.Time
}

func NewAuthService(
	accounts repository.AccountRepository,
	store *auth.Store,
	tokens *auth.TokenIssuer,
	notifier *notifications.Notifier,
	mailer Mailer,
	cfg *config.Config,
) *AuthService {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AuthService{
		accounts:            accounts,
		store:               store,
		tokens:              tokens,
		notifier:            notifier,
		mailer:              mailer,
		requireConfirmation: cfg.RequireEmailConfirmation,
		publicURL:           strings.TrimRight(cfg.PublicURL, "/"),
		now:                 time.Now,
	}
}

var errInvalidCredentials = models.NewUnauthorizedError("Invalid login credentials")

// SignUp creates an account. It never creates a profile or a session.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (acct *models.Account, err error) {
	defer func() { observability.RecordAuthEvent("signup", err) }()

	if err := validation.Email(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.Password(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	metadata := datatypes.JSONMap{}
	for k, v := range in.Data {
		metadata[k] = v
	}
	if raw, ok := metadata["username"].(string); ok {
		username, err := validation.Username(raw)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		metadata["username"] = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	acct = &models.Account{
		Email:        in.Email,
		PasswordHash: string(hash),
		UserMetadata: metadata,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, err
	}

	if !s.requireConfirmation {
		now := s.now().UTC()
		if err := s.accounts.MarkConfirmed(ctx, acct.ID, now); err != nil {
			return nil, err
		}
		acct.EmailConfirmedAt = &now
		return acct, nil
	}

	token, err := s.store.IssueOTP(ctx, auth.PurposeSignup, acct.ID)
	if err != nil {
		return nil, err
	}
	link := s.verifyLink(auth.PurposeSignup, token)
	if err := s.mailer.Send(ctx, acct.Email, "Confirm your signup", "Follow this link to confirm your account: "+link); err != nil {
		return nil, fmt.Errorf("send confirmation email: %w", err)
	}
	return acct, nil
}

func (s *AuthService) verifyLink(purpose, token string) string {
	q := url.Values{"type": {purpose}, "token": {token}}
	return s.publicURL + "/auth/v1/verify?" + q.Encode()
}

// SignInWithPassword checks credentials and starts a session.
func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (sess *Session, err error) {
	defer func() { observability.RecordAuthEvent("signin", err) }()

	if err := validation.Credentials(email, password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return nil, errInvalidCredentials
	}
	if s.requireConfirmation && !acct.Confirmed() {
		return nil, models.NewUnauthorizedError("Email not confirmed")
	}
	return s.startSession(ctx, acct)
}

func (s *AuthService) startSession(ctx context.Context, acct *models.Account) (*Session, error) {
	sid, refresh, err := s.store.CreateSession(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.accounts.RecordSignIn(ctx, acct.ID, now); err != nil {
		return nil, err
	}
	acct.LastSignInAt = &now
	return s.session(acct, sid, refresh)
}

func (s *AuthService) session(acct *models.Account, sid, refresh string) (*Session, error) {
	access, claims, err := s.tokens.Issue(acct.ID, acct.Email, sid)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int(s.tokens.TTL().Seconds()),
		ExpiresAt:    claims.ExpiresAt.Unix(),
		RefreshToken: refresh,
		SessionID:    sid,
		User:         acct,
	}, nil
}

// Refresh rotates a refresh token and mints a new access token for the same session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (sess *Session, err error) {
	defer func() { observability.RecordAuthEvent("refresh", err) }()

	if refreshToken == "" {
		return nil, models.NewValidationError("refresh_token is required")
	}
	userID, sid, next, err := s.store.Rotate(ctx, refreshToken)
	if errors.Is(err, auth.ErrInvalidRefreshToken) {
		return nil, models.NewUnauthorizedError("Invalid Refresh Token")
	}
	if err != nil {
		return nil, err
	}
	acct, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.session(acct, sid, next)
}

// Authenticate validates an access token and checks it has not been revoked.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	revoked, err := s.store.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check token blacklist: %w", err)
	}
	if revoked {
		return nil, models.NewUnauthorizedError("Token has been revoked")
	}
	active, err := s.store.SessionActive(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !active {
		return nil, models.NewUnauthorizedError("Session has ended")
	}
	return claims, nil
}

// SignOut revokes the caller's access token and session and tells their other connections.
func (s *AuthService) SignOut(ctx context.Context, claims *auth.Claims) (err error) {
	defer func() { observability.RecordAuthEvent("signout", err) }()

	if claims.ExpiresAt != nil {
		if err := s.store.Blacklist(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return err
		}
	}
	if err := s.store.RevokeSession(ctx, claims.Subject, claims.SessionID); err != nil {
		return err
	}
	s.publish(ctx, notifications.AuthEvent{
		Type:      notifications.EventSignedOut,
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
	})
	return nil
}

func (s *AuthService) publish(ctx context.Context, ev notifications.AuthEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishAuthEvent(ctx, ev); err != nil {
		observability.Logger.WarnContext(ctx, "failed to publish auth event",
			"type", ev.Type, "error", err)
	}
}

// Recover mails a password recovery link. Unknown emails succeed silently.
func (s *AuthService) Recover(ctx context.Context, email string) (err error) {
	defer func() { observability.RecordAuthEvent("recover", err) }()

	if err := validation.Email(email); err != nil {
		return models.NewValidationError(err.Error())
	}
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil || acct == nil {
		return err
	}
	token, err := s.store.IssueOTP(ctx, auth.PurposeRecovery, acct.ID)
	if err != nil {
		return err
	}
	link := s.verifyLink(auth.PurposeRecovery, token)
	return s.mailer.Send(ctx, acct.Email, "Reset your password", "Follow this link to reset your password: "+link)
}

// Verify redeems a signup confirmation or recovery token and signs the user in.
// Recovery also sets the new password and ends every other session.
func (s *AuthService) Verify(ctx context.Context, in VerifyInput) (sess *Session, err error) {
	defer func() { observability.RecordAuthEvent("verify", err) }()

	switch in.Type {
	case auth.PurposeSignup, auth.PurposeRecovery:
	default:
		return nil, models.NewValidationError("type must be one of [signup recovery]")
	}
	if in.Type == auth.PurposeRecovery {
		if err := validation.Password(in.Password); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	userID, err := s.store.ConsumeOTP(ctx, in.Type, in.Token)
	if errors.Is(err, auth.ErrInvalidOTP) {
		return nil, models.NewUnauthorizedError(err.Error())
	}
	if err != nil {
		return nil, err
	}
	acct, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !acct.Confirmed() {
		now := s.now().UTC()
		if err := s.accounts.MarkConfirmed(ctx, acct.ID, now); err != nil {
			return nil, err
		}
		acct.EmailConfirmedAt = &now
	}

	if in.Type == auth.PurposeRecovery {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if err := s.accounts.UpdatePassword(ctx, acct.ID, string(hash)); err != nil {
			return nil, err
		}
		if _, err := s.store.RevokeUser(ctx, acct.ID); err != nil {
			return nil, err
		}
		s.publish(ctx, notifications.AuthEvent{Type: notifications.EventSignedOut, UserID: acct.ID})
	}

	return s.startSession(ctx, acct)
}

// CurrentUser returns the account behind an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.Account, error) {
	return s.accounts.GetByID(ctx, userID)
}
