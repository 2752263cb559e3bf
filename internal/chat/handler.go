package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ytpoll/backend/internal/models"
	"github.com/ytpoll/backend/internal/pollstate"
	"github.com/ytpoll/backend/internal/sessions"
	"github.com/ytpoll/backend/internal/youtube"
	"github.com/ytpoll/backend/pkg/response"
)

// LiveChatResolver resolves a video id to its active live chat id.
type LiveChatResolver interface {
	ResolveLiveChatID(ctx context.Context, videoID string) (string, error)
}

// StartRequest is the body for POST /chat/start. live_chat_id is resolved
// from the video when omitted.
type StartRequest struct {
	VideoID        string  `json:"video_id" binding:"required"`
	LiveChatID     string  `json:"live_chat_id"`
	Duration       int     `json:"duration" binding:"required,min=1"`
	VideoTimestamp int     `json:"video_timestamp"`
	CorrectOption  *string `json:"correct_option" binding:"omitempty,oneof=A B C D"`
}

// StopRequest is the body for POST /chat/stop.
type StopRequest struct {
	LiveChatID     string `json:"live_chat_id" binding:"required"`
	VideoTimestamp *int   `json:"video_timestamp"`
}

// NewPollRequest is the body for POST /sessions/:id/poll.
type NewPollRequest struct {
	Duration       int     `json:"duration" binding:"required,min=1"`
	VideoTimestamp int     `json:"video_timestamp"`
	CorrectOption  *string `json:"correct_option" binding:"omitempty,oneof=A B C D"`
}

// CorrectOptionRequest is the body for PATCH /sessions/:id/correct-option.
type CorrectOptionRequest struct {
	CorrectOption string `json:"correct_option" binding:"required,oneof=A B C D"`
}

// Handler handles chat ingestion lifecycle and the SSE message stream.
type Handler struct {
	registry *Registry
	sessions *sessions.Repository
	states   *pollstate.Repository
	recorder VoteRecorder
	source   ChatSource
	resolver LiveChatResolver
	hub      StateBroadcaster
	interval time.Duration
	logger   *zap.Logger
}

// NewHandler creates a chat handler. source and resolver may be nil when the
// YouTube API is not configured; lifecycle endpoints then return 503.
func NewHandler(
	registry *Registry,
	sessionsRepo *sessions.Repository,
	statesRepo *pollstate.Repository,
	recorder VoteRecorder,
	source ChatSource,
	resolver LiveChatResolver,
	hub StateBroadcaster,
	interval time.Duration,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		registry: registry,
		sessions: sessionsRepo,
		states:   statesRepo,
		recorder: recorder,
		source:   source,
		resolver: resolver,
		hub:      hub,
		interval: interval,
		logger:   logger,
	}
}

// Start handles POST /chat/start: creates a session and its first poll, then
// boots the ingestion loop for the live chat.
func (h *Handler) Start(c *gin.Context) {
	if h.source == nil {
		response.ServiceUnavailable(c, "youtube api not configured")
		return
	}
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	liveChatID := req.LiveChatID
	if liveChatID == "" {
		var err error
		liveChatID, err = h.resolver.ResolveLiveChatID(ctx, req.VideoID)
		if err != nil {
			h.respondResolveError(c, err)
			return
		}
	}

	existing, err := h.sessions.GetOpenByVideo(ctx, req.VideoID)
	if err != nil {
		h.logger.Error("lookup open session", zap.Error(err))
		response.Internal(c, "failed to start chat session")
		return
	}
	if existing != nil {
		response.Conflict(c, "a session for this video is already open")
		return
	}

	session, err := h.sessions.Create(ctx, req.VideoID, liveChatID)
	if err != nil {
		h.logger.Error("create session", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}

	poll := &models.Poll{
		SessionID:           session.ID,
		Duration:            req.Duration,
		VideoStartTimestamp: req.VideoTimestamp,
		CorrectOption:       req.CorrectOption,
	}
	if err := h.sessions.CreatePoll(ctx, poll); err != nil {
		h.logger.Error("create poll", zap.Error(err))
		response.Internal(c, "failed to create poll")
		return
	}
	if err := h.states.Init(ctx, session.ID, liveChatID); err != nil {
		h.logger.Error("init poll state", zap.Error(err))
		response.Internal(c, "failed to initialize poll state")
		return
	}

	p := h.registry.Start(liveChatID, func() *Poller {
		return NewPoller(PollerConfig{
			SessionID:  session.ID,
			VideoID:    session.VideoID,
			LiveChatID: liveChatID,
			Source:     h.source,
			Recorder:   h.recorder,
			States:     h.states,
			Hub:        h.hub,
			Interval:   h.interval,
			Logger:     h.logger,
		})
	})
	correct := ""
	if req.CorrectOption != nil {
		correct = *req.CorrectOption
	}
	p.StartPoll(poll.ID, correct)

	response.Created(c, gin.H{
		"session_id":   session.ID,
		"poll_id":      poll.ID,
		"live_chat_id": liveChatID,
	})
}

// Stop handles POST /chat/stop: closes the latest open poll and session and
// stops the ingestion loop.
func (h *Handler) Stop(c *gin.Context) {
	var req StopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	session, err := h.sessions.GetOpenByLiveChat(ctx, req.LiveChatID)
	if err != nil {
		h.logger.Error("lookup session", zap.Error(err))
		response.Internal(c, "failed to stop chat session")
		return
	}
	if session == nil {
		response.NotFound(c, "no open session for this live chat")
		return
	}

	if err := h.sessions.CloseOpenPolls(ctx, session.ID, req.VideoTimestamp); err != nil {
		h.logger.Error("close polls", zap.Error(err))
		response.Internal(c, "failed to close polls")
		return
	}
	if err := h.sessions.End(ctx, session.ID); err != nil {
		h.logger.Error("end session", zap.Error(err))
		response.Internal(c, "failed to end session")
		return
	}
	h.registry.Stop(req.LiveChatID)

	response.OK(c, gin.H{"session_id": session.ID, "stopped": true})
}

// StartPoll handles POST /sessions/:id/poll: closes the current poll and
// opens a new round with a zeroed tally baseline.
func (h *Handler) StartPoll(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req NewPollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	session, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		h.logger.Error("lookup session", zap.Error(err))
		response.Internal(c, "failed to start poll")
		return
	}
	if session == nil {
		response.NotFound(c, "session not found")
		return
	}
	if session.EndedAt != nil {
		response.BadRequest(c, "session has ended")
		return
	}

	if err := h.sessions.CloseOpenPolls(ctx, session.ID, nil); err != nil {
		h.logger.Error("close polls", zap.Error(err))
		response.Internal(c, "failed to close previous poll")
		return
	}
	poll := &models.Poll{
		SessionID:           session.ID,
		Duration:            req.Duration,
		VideoStartTimestamp: req.VideoTimestamp,
		CorrectOption:       req.CorrectOption,
	}
	if err := h.sessions.CreatePoll(ctx, poll); err != nil {
		h.logger.Error("create poll", zap.Error(err))
		response.Internal(c, "failed to create poll")
		return
	}
	if err := h.states.ResetTally(ctx, session.ID); err != nil {
		h.logger.Error("reset tally", zap.Error(err))
		response.Internal(c, "failed to reset poll state")
		return
	}

	if p := h.registry.GetBySession(session.ID); p != nil {
		correct := ""
		if req.CorrectOption != nil {
			correct = *req.CorrectOption
		}
		p.StartPoll(poll.ID, correct)
	}
	if h.hub != nil {
		h.hub.BroadcastToSessionAndPublish(session.ID, "poll_started", gin.H{"poll_id": poll.ID})
	}

	response.Created(c, poll)
}

// SetCorrectOption handles PATCH /sessions/:id/correct-option: designates
// the answer for the session's current poll. Only answers arriving after
// the change are scored against it.
func (h *Handler) SetCorrectOption(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req CorrectOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: correct_option must be A, B, C, or D")
		return
	}
	ctx := c.Request.Context()

	session, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		h.logger.Error("lookup session", zap.Error(err))
		response.Internal(c, "failed to set correct option")
		return
	}
	if session == nil {
		response.NotFound(c, "session not found")
		return
	}
	poll, err := h.sessions.CurrentPoll(ctx, session.ID)
	if err != nil {
		h.logger.Error("lookup current poll", zap.Error(err))
		response.Internal(c, "failed to set correct option")
		return
	}
	if poll == nil {
		response.NotFound(c, "poll not found")
		return
	}
	if err := h.sessions.SetCorrectOption(ctx, poll.ID, req.CorrectOption); err != nil {
		h.logger.Error("set correct option", zap.Error(err))
		response.Internal(c, "failed to set correct option")
		return
	}
	if p := h.registry.GetBySession(session.ID); p != nil {
		p.SetCorrectOption(req.CorrectOption)
	}

	response.OK(c, gin.H{"poll_id": poll.ID, "correct_option": req.CorrectOption})
}

// Stream handles GET /chat/stream?live_chat_id=...: a long-lived SSE feed
// of normalized chat messages. The stream closes when the ingestion loop
// stops; the client disconnecting detaches the consumer (and stops the loop
// when it was the last one).
func (h *Handler) Stream(c *gin.Context) {
	liveChatID := c.Query("live_chat_id")
	if liveChatID == "" {
		response.BadRequest(c, "live_chat_id is required")
		return
	}
	p := h.registry.Get(liveChatID)
	if p == nil {
		response.NotFound(c, "no active polling for this live chat")
		return
	}
	subID, ch := p.Subscribe()
	defer p.Unsubscribe(subID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	fmt.Fprint(c.Writer, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	c.Writer.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	ctx := c.Request.Context()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", data)
			c.Writer.Flush()
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		}
	}
}

func (h *Handler) respondResolveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, youtube.ErrVideoNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, youtube.ErrVideoNotLive), errors.Is(err, youtube.ErrChatNotAvailable):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("resolve live chat id", zap.Error(err))
		response.Internal(c, "failed to resolve live chat id")
	}
}
