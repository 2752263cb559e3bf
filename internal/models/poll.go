package models

import (
	"time"

	"github.com/google/uuid"
)

// Poll is one timed question round within a session. CorrectOption is nil
// until the operator designates the answer.
type Poll struct {
	ID                  uuid.UUID  `json:"id"`
	SessionID           uuid.UUID  `json:"session_id"`
	StartedAt           time.Time  `json:"started_at"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
	Duration            int        `json:"duration"`
	VideoStartTimestamp int        `json:"video_start_timestamp"`
	VideoEndTimestamp   *int       `json:"video_end_timestamp,omitempty"`
	CorrectOption       *string    `json:"correct_option,omitempty"` // "A".."D"
}
