package youtube

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ytpoll/backend/pkg/response"
)

// Handler exposes live chat id resolution over HTTP.
type Handler struct {
	client *Client
	logger *zap.Logger
}

// NewHandler creates a YouTube handler. client may be nil when no API key is
// configured; the endpoint then returns 503.
func NewHandler(client *Client, logger *zap.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// ResolveLiveChatID handles GET /youtube/live-chat-id?video_id=...
func (h *Handler) ResolveLiveChatID(c *gin.Context) {
	if h.client == nil {
		response.ServiceUnavailable(c, "youtube api not configured")
		return
	}
	videoID := c.Query("video_id")
	if videoID == "" {
		response.BadRequest(c, "video_id is required")
		return
	}

	liveChatID, err := h.client.ResolveLiveChatID(c.Request.Context(), videoID)
	if err != nil {
		switch {
		case errors.Is(err, ErrVideoNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, ErrVideoNotLive), errors.Is(err, ErrChatNotAvailable):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("resolve live chat id", zap.Error(err))
			response.Internal(c, "failed to resolve live chat id")
		}
		return
	}

	response.OK(c, gin.H{"video_id": videoID, "live_chat_id": liveChatID})
}
