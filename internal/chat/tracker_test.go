package chat

import (
	"testing"

	"github.com/google/uuid"
)

func TestTrackerBonusLadder(t *testing.T) {
	tr := newTracker(uuid.New(), "B")

	wantPoints := []int{5, 3, 1, 0}
	for i, user := range []string{"u1", "u2", "u3", "u4"} {
		res := tr.evaluate(user, "B")
		if !res.Correct || !res.FirstCorrect {
			t.Fatalf("user %s: got %+v, want correct first answer", user, res)
		}
		if res.Points != wantPoints[i] {
			t.Errorf("user %s: points = %d, want %d", user, res.Points, wantPoints[i])
		}
		tr.commit(user, res)
	}
}

func TestTrackerIncorrectAnswer(t *testing.T) {
	tr := newTracker(uuid.New(), "A")

	res := tr.evaluate("u1", "C")
	if res.Correct || res.FirstCorrect || res.Points != 0 {
		t.Errorf("incorrect answer scored: %+v", res)
	}

	// A wrong answer must not consume a rank.
	res = tr.evaluate("u2", "A")
	tr.commit("u2", res)
	if res.Points != 5 {
		t.Errorf("first correct after a wrong answer: points = %d, want 5", res.Points)
	}
}

func TestTrackerRepeatCorrectNotDoubleAwarded(t *testing.T) {
	tr := newTracker(uuid.New(), "D")

	first := tr.evaluate("u1", "D")
	tr.commit("u1", first)
	if first.Points != 5 {
		t.Fatalf("first answer points = %d, want 5", first.Points)
	}

	again := tr.evaluate("u1", "D")
	tr.commit("u1", again)
	if !again.Correct || again.FirstCorrect || again.Points != 0 {
		t.Errorf("repeated correct answer: got %+v, want correct with no award", again)
	}

	// The next distinct user still takes rank two.
	second := tr.evaluate("u2", "D")
	if second.Points != 3 {
		t.Errorf("second distinct user points = %d, want 3", second.Points)
	}
}

func TestTrackerNoCorrectOptionDesignated(t *testing.T) {
	tr := newTracker(uuid.New(), "")

	res := tr.evaluate("u1", "A")
	if res.Correct || res.Points != 0 {
		t.Errorf("answer scored with no designated option: %+v", res)
	}
}

func TestTrackerSetCorrectOptionMidPoll(t *testing.T) {
	tr := newTracker(uuid.New(), "")

	// Answers before the designation earn nothing, even if they match.
	early := tr.evaluate("u1", "B")
	tr.commit("u1", early)
	if early.Correct || early.Points != 0 {
		t.Fatalf("pre-designation answer scored: %+v", early)
	}

	tr.setCorrectOption("B")

	late := tr.evaluate("u2", "B")
	tr.commit("u2", late)
	if late.Points != 5 {
		t.Errorf("first post-designation answer points = %d, want 5", late.Points)
	}
}

func TestTrackerEvaluateIsPure(t *testing.T) {
	tr := newTracker(uuid.New(), "A")

	// Evaluate twice without committing: both see rank zero.
	r1 := tr.evaluate("u1", "A")
	r2 := tr.evaluate("u2", "A")
	if r1.Points != 5 || r2.Points != 5 {
		t.Errorf("uncommitted evaluates consumed rank: %d, %d", r1.Points, r2.Points)
	}

	tr.commit("u1", r1)
	r3 := tr.evaluate("u2", "A")
	if r3.Points != 3 {
		t.Errorf("post-commit evaluate points = %d, want 3", r3.Points)
	}
}
