package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ytpoll/backend/internal/models"
)

type fakeSource struct {
	mu     sync.Mutex
	pages  []*models.ChatPage
	tokens []string
	err    error
}

func (f *fakeSource) ListMessages(ctx context.Context, liveChatID, pageToken string) (*models.ChatPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, pageToken)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) > 0 {
		p := f.pages[0]
		f.pages = f.pages[1:]
		return p, nil
	}
	return &models.ChatPage{}, nil
}

func (f *fakeSource) seenTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

type fakeRecorder struct {
	mu    sync.Mutex
	votes []VoteRecord
	err   error
}

func (f *fakeRecorder) RecordVote(ctx context.Context, rec VoteRecord) (RecordOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return RecordOutcome{}, f.err
	}
	f.votes = append(f.votes, rec)
	return RecordOutcome{IsNew: true}, nil
}

func (f *fakeRecorder) recorded() []VoteRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]VoteRecord(nil), f.votes...)
}

type fakeFlags struct {
	mu     sync.Mutex
	states []bool
}

func (f *fakeFlags) SetFetching(ctx context.Context, sessionID uuid.UUID, fetching bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, fetching)
	return nil
}

func (f *fakeFlags) last() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return false, false
	}
	return f.states[len(f.states)-1], true
}

func newTestPoller(src *fakeSource, rec *fakeRecorder, flags *fakeFlags) *Poller {
	return NewPoller(PollerConfig{
		SessionID:  uuid.New(),
		VideoID:    "vid123",
		LiveChatID: "chat123",
		Source:     src,
		Recorder:   rec,
		States:     flags,
		Interval:   10 * time.Millisecond,
		Logger:     zap.NewNop(),
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func recvMessage(t *testing.T, ch <-chan models.ChatMessage) models.ChatMessage {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("message channel closed unexpectedly")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return models.ChatMessage{}
}

func TestPollerRecordsVotesAndForwardsAll(t *testing.T) {
	future := time.Now().Add(time.Minute)
	src := &fakeSource{pages: []*models.ChatPage{{
		Messages: []models.ChatMessage{
			{Author: "alice", AuthorChannelID: "ch-alice", Text: " a ", PublishedAt: future},
			{Author: "bob", AuthorChannelID: "ch-bob", Text: "hello everyone", PublishedAt: future},
		},
	}}}
	rec := &fakeRecorder{}
	flags := &fakeFlags{}

	p := newTestPoller(src, rec, flags)
	p.StartPoll(uuid.New(), "A")
	_, ch := p.Subscribe()
	p.Start()
	defer p.Stop()

	// Both messages reach the stream, vote-shaped or not.
	m1 := recvMessage(t, ch)
	m2 := recvMessage(t, ch)
	if m1.Author != "alice" || m2.Author != "bob" {
		t.Errorf("forwarded authors = %q, %q", m1.Author, m2.Author)
	}

	waitFor(t, "vote recorded", func() bool { return len(rec.recorded()) == 1 })
	v := rec.recorded()[0]
	if v.UserID != "ch-alice" || v.Answer != "A" || v.Score.Points != 5 {
		t.Errorf("recorded vote = %+v", v)
	}
}

func TestPollerIgnoresMessagesBeforePollStart(t *testing.T) {
	src := &fakeSource{pages: []*models.ChatPage{{
		Messages: []models.ChatMessage{
			{Author: "stale", AuthorChannelID: "ch-stale", Text: "A", PublishedAt: time.Now().Add(-time.Minute)},
			{Author: "fresh", AuthorChannelID: "ch-fresh", Text: "A", PublishedAt: time.Now().Add(time.Minute)},
		},
	}}}
	rec := &fakeRecorder{}

	p := newTestPoller(src, rec, &fakeFlags{})
	p.StartPoll(uuid.New(), "A")
	_, ch := p.Subscribe()
	p.Start()
	defer p.Stop()

	msg := recvMessage(t, ch)
	if msg.Author != "fresh" {
		t.Errorf("forwarded author = %q, want fresh", msg.Author)
	}
	waitFor(t, "vote recorded", func() bool { return len(rec.recorded()) == 1 })
	if got := rec.recorded()[0].UserID; got != "ch-fresh" {
		t.Errorf("recorded user = %q, want ch-fresh", got)
	}
}

func TestPollerAdvancesPageToken(t *testing.T) {
	src := &fakeSource{pages: []*models.ChatPage{
		{NextPageToken: "tok-1"},
		{NextPageToken: "tok-2"},
	}}

	p := newTestPoller(src, &fakeRecorder{}, &fakeFlags{})
	p.StartPoll(uuid.New(), "")
	p.Start()
	defer p.Stop()

	waitFor(t, "three fetches", func() bool { return len(src.seenTokens()) >= 3 })
	tokens := src.seenTokens()
	if tokens[0] != "" || tokens[1] != "tok-1" || tokens[2] != "tok-2" {
		t.Errorf("cursor sequence = %v", tokens[:3])
	}
}

func TestPollerStopsOnFetchError(t *testing.T) {
	src := &fakeSource{err: errors.New("quota exceeded")}
	flags := &fakeFlags{}

	p := newTestPoller(src, &fakeRecorder{}, flags)
	p.StartPoll(uuid.New(), "A")
	_, ch := p.Subscribe()
	p.Start()

	// No retry: the loop shuts down and the stream closes.
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("got a message from a failed poller")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after fetch failure")
	}

	waitFor(t, "fetching flag cleared", func() bool {
		last, ok := flags.last()
		return ok && !last
	})

	// Only the initial fetch happened.
	if n := len(src.seenTokens()); n != 1 {
		t.Errorf("fetch attempts = %d, want 1", n)
	}
}

func TestPollerRecorderFailureKeepsLoopAlive(t *testing.T) {
	future := time.Now().Add(time.Minute)
	src := &fakeSource{pages: []*models.ChatPage{{
		Messages: []models.ChatMessage{
			{Author: "alice", AuthorChannelID: "ch-alice", Text: "B", PublishedAt: future},
		},
	}}}
	rec := &fakeRecorder{err: errors.New("db down")}

	p := newTestPoller(src, rec, &fakeFlags{})
	p.StartPoll(uuid.New(), "B")
	_, ch := p.Subscribe()
	p.Start()
	defer p.Stop()

	// The message is still forwarded even though scoring failed.
	msg := recvMessage(t, ch)
	if msg.Author != "alice" {
		t.Errorf("forwarded author = %q", msg.Author)
	}
	waitFor(t, "loop keeps fetching", func() bool { return len(src.seenTokens()) >= 2 })
}

func TestPollerStopsWhenLastSubscriberLeaves(t *testing.T) {
	flags := &fakeFlags{}
	p := newTestPoller(&fakeSource{}, &fakeRecorder{}, flags)
	p.StartPoll(uuid.New(), "")
	id, _ := p.Subscribe()
	p.Start()

	waitFor(t, "fetching flag set", func() bool {
		last, ok := flags.last()
		return ok && last
	})

	p.Unsubscribe(id)

	waitFor(t, "fetching flag cleared", func() bool {
		last, ok := flags.last()
		return ok && !last
	})

	// A new subscriber after shutdown gets a closed channel.
	_, late := p.Subscribe()
	select {
	case _, ok := <-late:
		if ok {
			t.Fatal("got a message from a stopped poller")
		}
	case <-time.After(time.Second):
		t.Fatal("late subscription channel not closed")
	}
}

func TestPollerStopIsIdempotent(t *testing.T) {
	p := newTestPoller(&fakeSource{}, &fakeRecorder{}, &fakeFlags{})
	p.StartPoll(uuid.New(), "")
	p.Start()
	p.Stop()
	p.Stop()
}

func TestPollerStartPollResetsRanks(t *testing.T) {
	future := time.Now().Add(time.Minute)
	src := &fakeSource{pages: []*models.ChatPage{{
		Messages: []models.ChatMessage{
			{Author: "alice", AuthorChannelID: "ch-alice", Text: "C", PublishedAt: future},
		},
	}}}
	rec := &fakeRecorder{}

	p := newTestPoller(src, rec, &fakeFlags{})
	p.StartPoll(uuid.New(), "C")
	p.Start()
	defer p.Stop()

	waitFor(t, "first vote", func() bool { return len(rec.recorded()) == 1 })
	if rec.recorded()[0].Score.Points != 5 {
		t.Fatalf("first round points = %d, want 5", rec.recorded()[0].Score.Points)
	}

	// New round: the same user is first again.
	nextPoll := uuid.New()
	p.StartPoll(nextPoll, "C")
	src.mu.Lock()
	src.pages = []*models.ChatPage{{
		Messages: []models.ChatMessage{
			{Author: "alice", AuthorChannelID: "ch-alice", Text: "C", PublishedAt: time.Now().Add(time.Minute)},
		},
	}}
	src.mu.Unlock()

	waitFor(t, "second vote", func() bool { return len(rec.recorded()) == 2 })
	second := rec.recorded()[1]
	if second.PollID != nextPoll || second.Score.Points != 5 {
		t.Errorf("second round vote = %+v, want rank reset with 5 points", second)
	}
}
