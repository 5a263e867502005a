// Package events relays profile changes recorded in the outbox table to Kafka.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const TopicProfileUpdated = "profile.updated"

// ProfileUpdated is the payload published after every successful save.
type ProfileUpdated struct {
	UserID    uuid.UUID `json:"user_id"`
	Nome      string    `json:"nome"`
	Descricao string    `json:"descricao"`
	Foto      *string   `json:"foto"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e ProfileUpdated) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
