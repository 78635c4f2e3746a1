package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account is the credential record behind an identity. Its ID is shared with the Profile row.
type Account struct {
	ID               string            `gorm:"type:uuid;primaryKey" json:"id"`
	Email            string            `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash     string            `gorm:"not null" json:"-"`
	UserMetadata     datatypes.JSONMap `json:"user_metadata"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time        `json:"last_sign_in_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// TableName keeps credentials out of the public users table.
func (Account) TableName() string { return "accounts" }

// BeforeCreate assigns a UUID when none is set.
func (a *Account) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Confirmed reports whether the account's email has been confirmed.
func (a *Account) Confirmed() bool {
	return a.EmailConfirmedAt != nil
}

// MetadataString returns a string entry from user metadata, or "".
func (a *Account) MetadataString(key string) string {
	if a.UserMetadata == nil {
		return ""
	}
	s, _ := a.UserMetadata[key].(string)
	return s
}
