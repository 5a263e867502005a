package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one signed-in device. The access token names it by ID and the
// refresh token is stored only as a hash.
type Session struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	RefreshTokenHash string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt        time.Time `gorm:"not null" json:"expires_at"`
	Revoked          bool      `gorm:"default:false" json:"revoked"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	User             User      `gorm:"foreignKey:UserID" json:"-"`
}

func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
