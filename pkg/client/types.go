package client

import (
	"encoding/json"
	"time"
)

// User is the account behind a session.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	UserMetadata     map[string]any `json:"user_metadata"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Session is an access token, its refresh token and the signed-in user.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"session_id"`
	User         *User  `json:"user"`
}

// Expired reports whether the access token expires within margin of now.
func (s *Session) Expired(now time.Time, margin time.Duration) bool {
	return s.ExpiresAt != 0 && !now.Add(margin).Before(time.Unix(s.ExpiresAt, 0))
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.User != nil {
		u := *s.User
		cp.User = &u
	}
	return &cp
}

// Profile is the public per-user row.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileInsert creates the caller's profile row.
type ProfileInsert struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// ProfileUpdate is a partial profile update. Nil fields are left alone;
// ClearAvatar sets avatar_url to null.
type ProfileUpdate struct {
	Username    *string
	AvatarURL   *string
	ClearAvatar bool
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.AvatarURL == nil && !u.ClearAvatar
}

// MarshalJSON sends only the fields being changed.
func (u ProfileUpdate) MarshalJSON() ([]byte, error) {
	body := map[string]any{}
	if u.Username != nil {
		body["username"] = *u.Username
	}
	switch {
	case u.ClearAvatar:
		body["avatar_url"] = nil
	case u.AvatarURL != nil:
		body["avatar_url"] = *u.AvatarURL
	}
	return json.Marshal(body)
}

// Post is a feed entry with its author embedded.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ImageURL  string    `json:"image_url"`
	Caption   string    `json:"caption"`
	LikeCount int       `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Author    *Profile  `json:"author,omitempty"`
}

// LikeResult is the outcome of like_post / unlike_post. Changed is false when
// the post was already in the requested state.
type LikeResult struct {
	PostID    string `json:"post_id"`
	Liked     bool   `json:"liked"`
	LikeCount int    `json:"like_count"`
	Changed   bool   `json:"changed"`
}
