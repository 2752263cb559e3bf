package leaderboard

import "testing"

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", defaultLimit},
		{"25", 25},
		{"1", 1},
		{"0", defaultLimit},
		{"-5", defaultLimit},
		{"junk", defaultLimit},
		{"5000", maxLimit},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.raw); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
