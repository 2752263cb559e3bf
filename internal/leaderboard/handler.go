package leaderboard

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ytpoll/backend/pkg/response"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Top handles GET /leaderboard/top?video_id=...&limit=...
func (h *Handler) Top(c *gin.Context) {
	videoID := c.Query("video_id")
	if videoID == "" {
		response.BadRequest(c, "video_id is required")
		return
	}
	limit := parseLimit(c.Query("limit"))

	users, err := h.repo.TopByVideo(c.Request.Context(), videoID, limit)
	if err != nil {
		h.logger.Error("fetch leaderboard", zap.String("video_id", videoID), zap.Error(err))
		response.Internal(c, "failed to fetch leaderboard")
		return
	}
	response.OK(c, gin.H{"video_id": videoID, "users": users})
}

// Videos handles GET /leaderboard/videos?limit=...
func (h *Handler) Videos(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))

	summaries, err := h.repo.VideoSummaries(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("fetch video summaries", zap.Error(err))
		response.Internal(c, "failed to fetch video leaderboards")
		return
	}
	response.OK(c, gin.H{"videos": summaries})
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
