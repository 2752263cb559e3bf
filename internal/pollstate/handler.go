package pollstate

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ytpoll/backend/internal/models"
	"github.com/ytpoll/backend/pkg/response"
)

// UpdateRequest is the body for PUT /sessions/:id/state: a full snapshot
// replacement. Tally and responders must use only the four option keys.
type UpdateRequest struct {
	LiveChatID      string              `json:"liveChatId" binding:"required"`
	Tally           map[string]int      `json:"tally" binding:"required"`
	FirstResponders map[string][]string `json:"firstResponders" binding:"required"`
	SelectedOption  *string             `json:"selectedOption"`
	IsFetching      bool                `json:"isFetching"`
}

// Broadcaster pushes snapshot updates to connected UI clients.
type Broadcaster interface {
	BroadcastToSessionAndPublish(sessionID uuid.UUID, event string, payload interface{})
}

// Handler handles poll state snapshot endpoints.
type Handler struct {
	repo   *Repository
	hub    Broadcaster // optional
	logger *zap.Logger
}

// NewHandler creates a poll state handler.
func NewHandler(repo *Repository, hub Broadcaster, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, hub: hub, logger: logger}
}

// Get handles GET /sessions/:id/state.
func (h *Handler) Get(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	st, err := h.repo.Get(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("get poll state", zap.Error(err))
		response.Internal(c, "failed to load poll state")
		return
	}
	if st == nil {
		response.NotFound(c, "poll state not found")
		return
	}
	response.OK(c, st)
}

// Update handles PUT /sessions/:id/state (full snapshot replacement).
func (h *Handler) Update(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	st, err := req.toState(sessionID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.repo.Upsert(c.Request.Context(), st); err != nil {
		h.logger.Error("update poll state", zap.Error(err))
		response.Internal(c, "failed to update poll state")
		return
	}
	// Keep other UI tabs watching this session in sync.
	if h.hub != nil {
		h.hub.BroadcastToSessionAndPublish(sessionID, "poll_state", st)
	}
	response.OK(c, gin.H{"updated": true})
}

// toState validates the fixed four-option shape and converts the request to
// a snapshot. Unknown option keys and negative counts are rejected; options
// missing from the maps default to zero values.
func (req *UpdateRequest) toState(sessionID uuid.UUID) (*models.PollState, error) {
	st := &models.PollState{
		SessionID:  sessionID,
		LiveChatID: req.LiveChatID,
		IsFetching: req.IsFetching,
		FirstResponders: models.OptionResponders{
			A: []string{}, B: []string{}, C: []string{}, D: []string{},
		},
	}
	for opt, n := range req.Tally {
		if !isValidOption(opt) {
			return nil, fmt.Errorf("tally: unknown option %q", opt)
		}
		if n < 0 {
			return nil, fmt.Errorf("tally: negative count for option %s", opt)
		}
		switch opt {
		case "A":
			st.Tally.A = n
		case "B":
			st.Tally.B = n
		case "C":
			st.Tally.C = n
		case "D":
			st.Tally.D = n
		}
	}
	for opt, names := range req.FirstResponders {
		if !isValidOption(opt) {
			return nil, fmt.Errorf("firstResponders: unknown option %q", opt)
		}
		if names == nil {
			names = []string{}
		}
		switch opt {
		case "A":
			st.FirstResponders.A = names
		case "B":
			st.FirstResponders.B = names
		case "C":
			st.FirstResponders.C = names
		case "D":
			st.FirstResponders.D = names
		}
	}
	if req.SelectedOption != nil {
		if !isValidOption(*req.SelectedOption) {
			return nil, fmt.Errorf("selectedOption: must be one of A, B, C, D")
		}
		st.SelectedOption = req.SelectedOption
	}
	return st, nil
}

func isValidOption(s string) bool {
	switch s {
	case "A", "B", "C", "D":
		return true
	}
	return false
}
