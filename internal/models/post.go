package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxCaptionLength is the maximum caption length in characters.
const MaxCaptionLength = 500

// Post represents an image post with a caption.
type Post struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;index;not null" json:"user_id"`
	ImageURL  string    `gorm:"not null" json:"image_url"`
	Caption   string    `gorm:"size:500;not null" json:"caption"`
	LikeCount int       `gorm:"not null;default:0" json:"like_count"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Author *Profile `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
}

// BeforeCreate assigns a UUID when none is set.
func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Like records that a user liked a post. The composite key makes a second like a conflict.
type Like struct {
	PostID    string    `gorm:"type:uuid;primaryKey" json:"post_id"`
	UserID    string    `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LikeResult is the outcome of an atomic like or unlike.
type LikeResult struct {
	PostID    string `json:"post_id"`
	Liked     bool   `json:"liked"`
	LikeCount int    `json:"like_count"`
	Changed   bool   `json:"changed"`
}
