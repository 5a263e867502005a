package models

import (
	"time"

	"github.com/google/uuid"
)

// ProfileEvent is an outbox row written in the same transaction as the
// profile change it describes.
type ProfileEvent struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Topic       string     `gorm:"size:100;not null;index" json:"topic"`
	Key         string     `gorm:"size:64;not null" json:"key"`
	Payload     []byte     `gorm:"not null" json:"payload"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	PublishedAt *time.Time `gorm:"index" json:"published_at"`
}
