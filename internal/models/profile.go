package models

import "time"

// DefaultUsernamePrefix prefixes generated usernames.
const DefaultUsernamePrefix = "user_"

// Profile is the public per-user record stored in the users table.
type Profile struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName maps profiles onto the users table.
func (Profile) TableName() string { return "users" }

// DefaultUsername derives the generated username for a user id: "user_" plus its first 8 characters.
func DefaultUsername(userID string) string {
	prefix := userID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return DefaultUsernamePrefix + prefix
}
