package client

import (
	"context"
	"errors"
	"fmt"
)

// AuthChangeEvent names a transition of the client's auth state.
type AuthChangeEvent string

const (
	EventSignedIn         AuthChangeEvent = "SIGNED_IN"
	EventSignedOut        AuthChangeEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthChangeEvent = "TOKEN_REFRESHED"
	EventUserUpdated      AuthChangeEvent = "USER_UPDATED"
	EventPasswordRecovery AuthChangeEvent = "PASSWORD_RECOVERY"
)

// AuthEvent is delivered to OnAuthStateChange listeners. Session is nil after sign-out.
type AuthEvent struct {
	Event   AuthChangeEvent
	Session *Session
}

// OnAuthStateChange registers fn for every auth state change and returns a
// function that removes it. Listeners run synchronously on the goroutine that
// caused the change.
func (c *Client) OnAuthStateChange(fn func(AuthEvent)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(event AuthChangeEvent, sess *Session) {
	c.mu.RLock()
	fns := make([]func(AuthEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(AuthEvent{Event: event, Session: sess.clone()})
	}
}

// setSession replaces the local session and persists it.
func (c *Client) setSession(sess *Session) error {
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	if c.storage == nil {
		return nil
	}
	if sess == nil {
		return c.storage.Clear()
	}
	return c.storage.Save(sess)
}

func (c *Client) currentSession() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.clone()
}

// GetSession returns the current session, refreshing the access token when it is
// about to expire. It returns nil without error when nobody is signed in or the
// refresh token has been revoked.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	sess := c.currentSession()
	if sess == nil || !sess.Expired(c.now(), refreshMargin) {
		return sess, nil
	}

	next, refreshed, err := c.rotate(ctx, false)
	if errors.Is(err, ErrUnauthorized) {
		c.clearLocal()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if refreshed {
		c.emit(EventTokenRefreshed, next)
	}
	return next, nil
}

// RefreshSession rotates the refresh token now regardless of expiry.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	next, _, err := c.rotate(ctx, true)
	if errors.Is(err, ErrUnauthorized) {
		c.clearLocal()
	}
	if err != nil {
		return nil, err
	}
	c.emit(EventTokenRefreshed, next)
	return next, nil
}

// rotate exchanges the refresh token under refreshMu. Unless force is set it
// skips the exchange when another caller already refreshed.
func (c *Client) rotate(ctx context.Context, force bool) (sess *Session, refreshed bool, err error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	sess = c.currentSession()
	if sess == nil {
		if force {
			return nil, false, ErrNoSession
		}
		return nil, false, nil
	}
	if !force && !sess.Expired(c.now(), refreshMargin) {
		return sess, false, nil
	}

	next, err := c.refresh(ctx, sess.RefreshToken)
	if err != nil {
		return nil, false, err
	}
	if err := c.setSession(next); err != nil {
		return nil, false, err
	}
	return next.clone(), true, nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var next Session
	err := check(c.request(ctx).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&next).
		Post("/auth/v1/token"))
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// SignInWithPassword starts a session for the given credentials.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var sess Session
	err := check(c.request(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&sess).
		Post("/auth/v1/token"))
	if err != nil {
		return nil, err
	}
	if err := c.setSession(&sess); err != nil {
		return nil, err
	}
	c.emit(EventSignedIn, &sess)
	return sess.clone(), nil
}

// SignUp registers an account. data becomes the account's user metadata.
// No session is started; the user confirms by email and then signs in.
func (c *Client) SignUp(ctx context.Context, email, password string, data map[string]any) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	err := check(c.request(ctx).
		SetBody(map[string]any{"email": email, "password": password, "data": data}).
		SetResult(&out).
		Post("/auth/v1/signup"))
	if err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, errors.New("signup response had no user")
	}
	return out.User, nil
}

// SignOut revokes the session on the server and clears it locally. The local
// state is cleared even when the server call fails; that error is returned.
func (c *Client) SignOut(ctx context.Context) error {
	sess := c.currentSession()
	var remoteErr error
	if sess != nil {
		remoteErr = check(c.request(ctx).
			SetAuthToken(sess.AccessToken).
			Post("/auth/v1/logout"))
	}
	c.clearLocal()
	if remoteErr != nil {
		return fmt.Errorf("sign out: %w", remoteErr)
	}
	return nil
}

// clearLocal drops the session, closes the realtime socket and emits SIGNED_OUT.
func (c *Client) clearLocal() {
	c.closeRealtime()
	_ = c.setSession(nil)
	c.emit(EventSignedOut, nil)
}

// ResetPasswordForEmail asks the API to mail a password recovery link.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email string) error {
	return check(c.request(ctx).
		SetBody(map[string]string{"email": email}).
		Post("/auth/v1/recover"))
}

// VerifyOTP redeems an emailed token. typ is "signup" or "recovery"; recovery
// also needs the new password. A session starts on success.
func (c *Client) VerifyOTP(ctx context.Context, typ, token, password string) (*Session, error) {
	var sess Session
	err := check(c.request(ctx).
		SetBody(map[string]string{"type": typ, "token": token, "password": password}).
		SetResult(&sess).
		Post("/auth/v1/verify"))
	if err != nil {
		return nil, err
	}
	if err := c.setSession(&sess); err != nil {
		return nil, err
	}
	event := EventSignedIn
	if typ == "recovery" {
		event = EventPasswordRecovery
	}
	c.emit(event, &sess)
	return sess.clone(), nil
}

// GetUser fetches the signed-in account from the API.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	var user User
	if err := check(req.SetResult(&user).Get("/auth/v1/user")); err != nil {
		return nil, err
	}
	return &user, nil
}
