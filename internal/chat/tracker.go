package chat

import "github.com/google/uuid"

// awardTable holds bonus points by arrival rank of distinct correct
// responders: first gets 5, second 3, third 1, everyone after 0.
var awardTable = [...]int{5, 3, 1}

// ScoreResult is the scoring decision for one answer.
type ScoreResult struct {
	Correct      bool
	FirstCorrect bool // first time this user answered correctly in this poll
	Points       int  // bonus points; 0 when incorrect or unranked
}

// tracker ranks distinct correct responders for a single poll. It is owned
// by one poller and rebuilt at every poll start, so rank state never leaks
// across polls or sessions.
type tracker struct {
	pollID        uuid.UUID
	correctOption string // "" until the operator designates the answer
	seenCorrect   map[string]bool
}

func newTracker(pollID uuid.UUID, correctOption string) *tracker {
	return &tracker{
		pollID:        pollID,
		correctOption: correctOption,
		seenCorrect:   make(map[string]bool),
	}
}

// evaluate scores an answer against the correct option known right now,
// without mutating rank state. Callers commit after the answer is persisted.
func (t *tracker) evaluate(userID, answer string) ScoreResult {
	if t.correctOption == "" || answer != t.correctOption {
		return ScoreResult{}
	}
	if t.seenCorrect[userID] {
		return ScoreResult{Correct: true}
	}
	rank := len(t.seenCorrect)
	points := 0
	if rank < len(awardTable) {
		points = awardTable[rank]
	}
	return ScoreResult{Correct: true, FirstCorrect: true, Points: points}
}

// commit records the user's correct-responder rank after a successful write.
func (t *tracker) commit(userID string, res ScoreResult) {
	if res.FirstCorrect {
		t.seenCorrect[userID] = true
	}
}

// setCorrectOption updates the designated answer. Only answers arriving
// after the change are scored against it; nothing is granted retroactively.
func (t *tracker) setCorrectOption(option string) {
	t.correctOption = option
}
