package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ytpoll/backend/internal/models"
)

// ChatSource fetches pages of live chat messages with cursor pagination.
type ChatSource interface {
	ListMessages(ctx context.Context, liveChatID, pageToken string) (*models.ChatPage, error)
}

// VoteRecorder persists one classified vote atomically.
type VoteRecorder interface {
	RecordVote(ctx context.Context, rec VoteRecord) (RecordOutcome, error)
}

// FetchFlagStore maintains the snapshot's is_fetching flag.
type FetchFlagStore interface {
	SetFetching(ctx context.Context, sessionID uuid.UUID, fetching bool) error
}

// StateBroadcaster pushes poll state events to connected UI clients.
type StateBroadcaster interface {
	BroadcastToSessionAndPublish(sessionID uuid.UUID, event string, payload interface{})
}

const subscriberBuffer = 64

// PollerConfig configures a session's ingestion loop.
type PollerConfig struct {
	SessionID  uuid.UUID
	VideoID    string
	LiveChatID string
	Source     ChatSource
	Recorder   VoteRecorder
	States     FetchFlagStore
	Hub        StateBroadcaster // optional
	Interval   time.Duration
	Logger     *zap.Logger
}

// Poller runs the ingestion loop for one session: an immediate fetch, then
// one fetch every interval until an explicit stop, the last stream consumer
// disconnecting, or a fetch failure. Messages published before the current
// poll started are ignored. Each accepted message is classified, vote-shaped
// ones are recorded, and every message is forwarded to subscribers.
type Poller struct {
	sessionID  uuid.UUID
	videoID    string
	liveChatID string
	source     ChatSource
	recorder   VoteRecorder
	states     FetchFlagStore
	hub        StateBroadcaster
	interval   time.Duration
	logger     *zap.Logger
	onStop     func()

	mu            sync.Mutex
	cancel        context.CancelFunc
	done          chan struct{}
	stopped       bool
	tracker       *tracker
	startTime     time.Time
	pageToken     string
	subs          map[string]chan models.ChatMessage
	hadSubscriber bool
}

// NewPoller creates an ingestion loop for a session. Call Start to run it.
func NewPoller(cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		sessionID:  cfg.SessionID,
		videoID:    cfg.VideoID,
		liveChatID: cfg.LiveChatID,
		source:     cfg.Source,
		recorder:   cfg.Recorder,
		states:     cfg.States,
		hub:        cfg.Hub,
		interval:   interval,
		logger:     logger,
		done:       make(chan struct{}),
		subs:       make(map[string]chan models.ChatMessage),
		startTime:  time.Now(),
	}
}

// SessionID returns the owning session's id.
func (p *Poller) SessionID() uuid.UUID { return p.sessionID }

// VideoID returns the owning session's video id.
func (p *Poller) VideoID() string { return p.videoID }

// Start begins the ingestion loop. Call Stop to release resources.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.cancel != nil || p.stopped {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx)
	p.logger.Info("chat poller started",
		zap.String("session_id", p.sessionID.String()),
		zap.String("live_chat_id", p.liveChatID),
		zap.Duration("interval", p.interval),
	)
}

// Stop cancels the loop and waits for it to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-p.done
}

// StartPoll resets per-poll state for a new round: a fresh rank tracker and
// a new publish-time cutoff. Votes for the previous poll stop counting.
func (p *Poller) StartPoll(pollID uuid.UUID, correctOption string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker = newTracker(pollID, correctOption)
	p.startTime = time.Now()
}

// SetCorrectOption updates the designated answer for the current poll.
// Answers already processed are not rescored.
func (p *Poller) SetCorrectOption(option string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tracker != nil {
		p.tracker.setCorrectOption(option)
	}
}

// Subscribe attaches a consumer to the normalized message feed. The channel
// is closed when the loop stops.
func (p *Poller) Subscribe() (string, <-chan models.ChatMessage) {
	ch := make(chan models.ChatMessage, subscriberBuffer)
	id := uuid.New().String()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		close(ch)
		return id, ch
	}
	p.subs[id] = ch
	p.hadSubscriber = true
	return id, ch
}

// Unsubscribe detaches a consumer. When the last consumer disconnects the
// loop stops: consumer disconnect is a primary cancellation trigger.
func (p *Poller) Unsubscribe(id string) {
	p.mu.Lock()
	if ch, ok := p.subs[id]; ok {
		delete(p.subs, id)
		close(ch)
	}
	stopNow := p.hadSubscriber && len(p.subs) == 0 && !p.stopped
	p.mu.Unlock()
	if stopNow {
		p.Stop()
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.shutdown()

	if p.states != nil {
		if err := p.states.SetFetching(ctx, p.sessionID, true); err != nil {
			p.logger.Warn("set fetching flag", zap.Error(err))
		}
	}

	if err := p.fetchCycle(ctx); err != nil {
		p.logger.Error("chat fetch failed, stopping poller",
			zap.String("live_chat_id", p.liveChatID), zap.Error(err))
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.fetchCycle(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				// Upstream failures are not retried: a revoked or
				// rate-limited credential should surface, not loop.
				p.logger.Error("chat fetch failed, stopping poller",
					zap.String("live_chat_id", p.liveChatID), zap.Error(err))
				return
			}
		}
	}
}

// shutdown releases all loop resources exactly once: closes subscriber
// channels, clears the fetching flag and notifies the registry.
func (p *Poller) shutdown() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.cancel = nil
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
	onStop := p.onStop
	p.mu.Unlock()

	ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCtx()
	if p.states != nil {
		if err := p.states.SetFetching(ctx, p.sessionID, false); err != nil {
			p.logger.Warn("clear fetching flag", zap.Error(err))
		}
	}
	close(p.done)
	if onStop != nil {
		onStop()
	}
	p.logger.Info("chat poller stopped", zap.String("session_id", p.sessionID.String()))
}

// fetchCycle requests one page of messages and processes it. Messages are
// handled strictly in delivery order; no new cycle starts until this one,
// including all storage mutations, has finished.
func (p *Poller) fetchCycle(ctx context.Context) error {
	page, err := p.source.ListMessages(ctx, p.liveChatID, p.pageToken)
	if err != nil {
		return err
	}
	if page.NextPageToken != "" {
		p.pageToken = page.NextPageToken
	}

	p.mu.Lock()
	cutoff := p.startTime
	p.mu.Unlock()

	for _, msg := range page.Messages {
		if msg.PublishedAt.Before(cutoff) {
			continue
		}
		p.processVote(ctx, msg)
		p.forward(msg)
	}
	return nil
}

// processVote runs the classification and scoring chain for one message.
// A storage failure drops the message's scoring effects but keeps the loop
// alive; the message is still forwarded to subscribers.
func (p *Poller) processVote(ctx context.Context, msg models.ChatMessage) {
	option, ok := ParseOption(msg.Text)
	if !ok || msg.AuthorChannelID == "" {
		return
	}

	p.mu.Lock()
	t := p.tracker
	if t == nil {
		p.mu.Unlock()
		return
	}
	score := t.evaluate(msg.AuthorChannelID, option)
	pollID := t.pollID
	p.mu.Unlock()

	out, err := p.recorder.RecordVote(ctx, VoteRecord{
		SessionID: p.sessionID,
		PollID:    pollID,
		VideoID:   p.videoID,
		UserID:    msg.AuthorChannelID,
		UserName:  msg.Author,
		UserImage: msg.AuthorImage,
		Answer:    option,
		Score:     score,
	})
	if err != nil {
		p.logger.Warn("record vote failed, skipping message",
			zap.String("user_id", msg.AuthorChannelID),
			zap.String("answer", option),
			zap.Error(err),
		)
		return
	}

	p.mu.Lock()
	if p.tracker == t {
		t.commit(msg.AuthorChannelID, score)
	}
	p.mu.Unlock()

	if score.Points > 0 {
		p.logger.Info("bonus points awarded",
			zap.String("user", msg.Author),
			zap.Int("points", score.Points),
		)
	}
	if p.hub != nil {
		p.hub.BroadcastToSessionAndPublish(p.sessionID, "vote_recorded", map[string]interface{}{
			"option":   option,
			"previous": out.PreviousAnswer,
			"author":   msg.Author,
			"points":   score.Points,
			"is_new":   out.IsNew,
		})
	}
}

// forward delivers a normalized message to all subscribers. Slow consumers
// are skipped rather than blocking the loop.
func (p *Poller) forward(msg models.ChatMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}
