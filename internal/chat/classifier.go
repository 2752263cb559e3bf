package chat

import "strings"

// Options is the closed set of poll choices.
var Options = []string{"A", "B", "C", "D"}

// ParseOption classifies a raw chat message as a poll vote. The text is
// trimmed and uppercased; it must then be exactly one of A, B, C or D.
func ParseOption(text string) (string, bool) {
	t := strings.ToUpper(strings.TrimSpace(text))
	switch t {
	case "A", "B", "C", "D":
		return t, true
	}
	return "", false
}

// IsOption reports whether s is exactly one of the four poll options.
func IsOption(s string) bool {
	switch s {
	case "A", "B", "C", "D":
		return true
	}
	return false
}
