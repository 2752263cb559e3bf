package pollstate

import (
	"testing"

	"github.com/google/uuid"
)

func TestUpdateRequestToState(t *testing.T) {
	sessionID := uuid.New()
	selected := "B"

	req := &UpdateRequest{
		LiveChatID: "chat123",
		Tally:      map[string]int{"A": 3, "B": 7},
		FirstResponders: map[string][]string{
			"B": {"alice", "bob"},
		},
		SelectedOption: &selected,
		IsFetching:     true,
	}

	st, err := req.toState(sessionID)
	if err != nil {
		t.Fatalf("toState: %v", err)
	}
	if st.SessionID != sessionID || st.LiveChatID != "chat123" || !st.IsFetching {
		t.Errorf("snapshot identity fields wrong: %+v", st)
	}
	if st.Tally.A != 3 || st.Tally.B != 7 || st.Tally.C != 0 || st.Tally.D != 0 {
		t.Errorf("tally = %+v, want A=3 B=7 C=0 D=0", st.Tally)
	}
	if len(st.FirstResponders.B) != 2 || st.FirstResponders.B[0] != "alice" {
		t.Errorf("responders B = %v", st.FirstResponders.B)
	}
	// Missing option keys default to empty, not nil.
	if st.FirstResponders.A == nil || len(st.FirstResponders.A) != 0 {
		t.Errorf("responders A = %#v, want empty slice", st.FirstResponders.A)
	}
	if st.SelectedOption == nil || *st.SelectedOption != "B" {
		t.Errorf("selected option = %v, want B", st.SelectedOption)
	}
}

func TestUpdateRequestToStateRejectsBadInput(t *testing.T) {
	sessionID := uuid.New()
	badOption := "X"

	tests := []struct {
		name string
		req  *UpdateRequest
	}{
		{"unknown tally key", &UpdateRequest{
			LiveChatID:      "chat123",
			Tally:           map[string]int{"E": 1},
			FirstResponders: map[string][]string{},
		}},
		{"negative count", &UpdateRequest{
			LiveChatID:      "chat123",
			Tally:           map[string]int{"A": -1},
			FirstResponders: map[string][]string{},
		}},
		{"unknown responders key", &UpdateRequest{
			LiveChatID:      "chat123",
			Tally:           map[string]int{},
			FirstResponders: map[string][]string{"Z": {"alice"}},
		}},
		{"invalid selected option", &UpdateRequest{
			LiveChatID:      "chat123",
			Tally:           map[string]int{},
			FirstResponders: map[string][]string{},
			SelectedOption:  &badOption,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.req.toState(sessionID); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
