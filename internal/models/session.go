package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the polling context for one live video. At most one session per
// video may be open (ended_at IS NULL) at a time.
type Session struct {
	ID         uuid.UUID  `json:"id"`
	VideoID    string     `json:"video_id"`
	LiveChatID string     `json:"live_chat_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}
