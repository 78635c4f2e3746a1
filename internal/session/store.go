// Package session keeps the signed-in identity and its profile in sync with
// the backend's auth state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"photofeed/internal/observability"
	"photofeed/pkg/client"
)

// SignUpMessage is returned with every successful sign-up.
const SignUpMessage = "Please check your email to confirm your account before signing in."

// AvatarBucket holds one avatar per user at <user id>.jpg.
const AvatarBucket = client.BucketAvatars

// ErrNotAuthenticated is returned before any network call when nobody is signed in.
var ErrNotAuthenticated = errors.New("not authenticated")

// AuthClient is the auth half of the backend SDK.
type AuthClient interface {
	GetSession(ctx context.Context) (*client.Session, error)
	OnAuthStateChange(fn func(client.AuthEvent)) (unsubscribe func())
	SignInWithPassword(ctx context.Context, email, password string) (*client.Session, error)
	SignUp(ctx context.Context, email, password string, data map[string]any) (*client.User, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email string) error
}

// ProfileClient reads and writes rows of the users table.
type ProfileClient interface {
	GetProfile(ctx context.Context, id string) (*client.Profile, error)
	InsertProfile(ctx context.Context, in client.ProfileInsert) (*client.Profile, error)
	UpdateProfile(ctx context.Context, id string, update client.ProfileUpdate) (*client.Profile, error)
}

// ObjectClient is the object storage half of the SDK.
type ObjectClient interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string, upsert bool) (string, error)
	PublicURL(bucket, key string) string
	Remove(ctx context.Context, bucket string, keys ...string) error
}

// Backend is everything the store needs. *client.Client satisfies it.
type Backend interface {
	AuthClient
	ProfileClient
	ObjectClient
}

// Identity is the authenticated principal.
type Identity struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func identityFrom(sess *client.Session) *Identity {
	if sess == nil || sess.User == nil {
		return nil
	}
	id := &Identity{
		UserID:       sess.User.ID,
		Email:        sess.User.Email,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	}
	if sess.ExpiresAt != 0 {
		id.ExpiresAt = time.Unix(sess.ExpiresAt, 0)
	}
	return id
}

// SignUpResult is what SignUp hands back to the caller.
type SignUpResult struct {
	User    *client.User
	Message string
}

// DefaultUsername is the username given to a profile created on first sign-in.
func DefaultUsername(userID string) string {
	if len(userID) > 8 {
		userID = userID[:8]
	}
	return "user_" + userID
}

// Store owns the current identity and profile. It is safe for concurrent use.
type Store struct {
	backend Backend

	// seq numbers every state resolution; applied is the highest one written.
	seq     atomic.Uint64
	mu      sync.RWMutex
	applied uint64

	identity *Identity
	profile  *client.Profile
	loading  bool

	obsMu     sync.Mutex
	observers map[int]func(*Identity)
	nextObs   int

	ctx         context.Context
	unsubscribe func()
}

// NewStore returns a store that reports Loading until the first EstablishSession resolves.
func NewStore(backend Backend) *Store {
	return &Store{
		backend:   backend,
		loading:   true,
		observers: make(map[int]func(*Identity)),
		ctx:       context.Background(),
	}
}

// Start subscribes to auth state changes and resolves the current session.
// Every auth event re-runs EstablishSession with ctx.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	unsubscribe := s.backend.OnAuthStateChange(func(ev client.AuthEvent) {
		if err := s.EstablishSession(s.listenerContext()); err != nil {
			observability.Logger.WarnContext(ctx, "session: establish after auth event failed",
				"event", string(ev.Event), "error", err)
		}
	})
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	return s.EstablishSession(ctx)
}

func (s *Store) listenerContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// Close stops listening for auth events.
func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// EstablishSession resolves the identity from the auth client and fetches or
// creates its profile. When several calls overlap, only the most recently
// started one is applied.
func (s *Store) EstablishSession(ctx context.Context) error {
	n := s.seq.Add(1)

	sess, err := s.backend.GetSession(ctx)
	if err != nil {
		s.apply(n, nil, nil)
		return fmt.Errorf("get session: %w", err)
	}
	identity := identityFrom(sess)
	if identity == nil {
		s.apply(n, nil, nil)
		return nil
	}

	profile, err := s.fetchOrCreateProfile(ctx, identity.UserID)
	s.apply(n, identity, profile)
	return err
}

func (s *Store) fetchOrCreateProfile(ctx context.Context, userID string) (*client.Profile, error) {
	profile, err := s.backend.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, client.ErrNoRows) {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	profile, err = s.backend.InsertProfile(ctx, client.ProfileInsert{
		ID:       userID,
		Username: DefaultUsername(userID),
	})
	if errors.Is(err, client.ErrConflict) {
		// created by an overlapping call
		profile, err = s.backend.GetProfile(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return profile, nil
}

// apply writes a resolution unless a later-started one has already been written.
// Identity observers run after the lock is released when the user changed.
func (s *Store) apply(n uint64, identity *Identity, profile *client.Profile) bool {
	s.mu.Lock()
	if n < s.applied {
		s.mu.Unlock()
		return false
	}
	s.applied = n
	prev := s.identity
	s.identity = identity
	s.profile = profile
	s.loading = false
	s.mu.Unlock()

	if userOf(prev) != userOf(identity) {
		s.notify(identity)
	}
	return true
}

func userOf(id *Identity) string {
	if id == nil {
		return ""
	}
	return id.UserID
}

// SignIn authenticates. The profile is filled in by the auth event that follows.
func (s *Store) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	sess, err := s.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return identityFrom(sess), nil
}

// SignUp registers an account with username in its metadata. No profile row is
// created; it appears on the first sign-in.
func (s *Store) SignUp(ctx context.Context, email, password, username string) (*SignUpResult, error) {
	user, err := s.backend.SignUp(ctx, email, password, map[string]any{"username": username})
	if err != nil {
		return nil, err
	}
	return &SignUpResult{User: user, Message: SignUpMessage}, nil
}

// UpdateProfile applies update to the signed-in user's profile and replaces the
// local copy with the stored row.
func (s *Store) UpdateProfile(ctx context.Context, update client.ProfileUpdate) (*client.Profile, error) {
	identity := s.Identity()
	if identity == nil {
		return nil, ErrNotAuthenticated
	}

	profile, err := s.backend.UpdateProfile(ctx, identity.UserID, update)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if userOf(s.identity) == identity.UserID {
		s.profile = cloneProfile(profile)
	}
	s.mu.Unlock()
	return cloneProfile(profile), nil
}

// ChangeAvatar uploads image as the user's avatar and points the profile at it.
func (s *Store) ChangeAvatar(ctx context.Context, image []byte) (*client.Profile, error) {
	identity := s.Identity()
	if identity == nil {
		return nil, ErrNotAuthenticated
	}

	key := identity.UserID + ".jpg"
	if _, err := s.backend.Upload(ctx, AvatarBucket, key, image, "image/jpeg", true); err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	url := s.backend.PublicURL(AvatarBucket, key)
	return s.UpdateProfile(ctx, client.ProfileUpdate{AvatarURL: &url})
}

// RemoveAvatar deletes the avatar object, if any, and clears avatar_url.
func (s *Store) RemoveAvatar(ctx context.Context) (*client.Profile, error) {
	identity := s.Identity()
	if identity == nil {
		return nil, ErrNotAuthenticated
	}

	if err := s.backend.Remove(ctx, AvatarBucket, identity.UserID+".jpg"); err != nil {
		observability.Logger.WarnContext(ctx, "session: avatar object not removed", "user_id", identity.UserID, "error", err)
	}
	return s.UpdateProfile(ctx, client.ProfileUpdate{ClearAvatar: true})
}

// SignOut revokes the session remotely and always clears the local identity
// and profile. The remote error, if any, is returned.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.backend.SignOut(ctx)
	s.apply(s.seq.Add(1), nil, nil)
	return err
}

// ResetPassword asks the backend to email a reset link. Local state is untouched.
func (s *Store) ResetPassword(ctx context.Context, email string) error {
	return s.backend.ResetPasswordForEmail(ctx, email)
}

// Identity returns a copy of the current identity, or nil.
func (s *Store) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

// Profile returns a copy of the current profile, or nil.
func (s *Store) Profile() *client.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProfile(s.profile)
}

// Loading reports whether the first session resolution is still outstanding.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// OnIdentityChange calls fn whenever the signed-in user changes, with nil on sign-out.
func (s *Store) OnIdentityChange(fn func(*Identity)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) notify(identity *Identity) {
	s.obsMu.Lock()
	fns := make([]func(*Identity), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		var cp *Identity
		if identity != nil {
			c := *identity
			cp = &c
		}
		fn(cp)
	}
}

func cloneProfile(p *client.Profile) *client.Profile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.AvatarURL != nil {
		url := *p.AvatarURL
		cp.AvatarURL = &url
	}
	return &cp
}
