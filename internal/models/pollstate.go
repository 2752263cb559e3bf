package models

import (
	"time"

	"github.com/google/uuid"
)

// OptionCounts maps each poll option to its vote count. The option set is
// closed (A-D), so the mapping is a fixed struct rather than an open map.
type OptionCounts struct {
	A int `json:"A"`
	B int `json:"B"`
	C int `json:"C"`
	D int `json:"D"`
}

// OptionResponders maps each option to the display names of users who chose
// it, in arrival order. Append-only; a name appears at most once per option.
type OptionResponders struct {
	A []string `json:"A"`
	B []string `json:"B"`
	C []string `json:"C"`
	D []string `json:"D"`
}

// PollState is the externally visible snapshot for a session: tally,
// first responders, UI selection and the ingestion fetching flag.
// Exactly one row per session, upserted in place.
type PollState struct {
	ID              uuid.UUID        `json:"id"`
	SessionID       uuid.UUID        `json:"session_id"`
	LiveChatID      string           `json:"live_chat_id"`
	Tally           OptionCounts     `json:"tally"`
	FirstResponders OptionResponders `json:"first_responders"`
	SelectedOption  *string          `json:"selected_option"`
	IsFetching      bool             `json:"is_fetching"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
