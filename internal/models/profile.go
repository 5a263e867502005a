package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is keyed by the owning user's id; there is at most one per user.
type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Nome      string    `gorm:"type:text;not null" json:"nome"`
	Descricao string    `gorm:"type:text;not null" json:"descricao"`
	Foto      *string   `gorm:"type:text" json:"foto"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
