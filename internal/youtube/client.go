package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/ytpoll/backend/internal/models"
)

// Errors surfaced when resolving a live chat for a video.
var (
	ErrVideoNotFound    = errors.New("video not found")
	ErrVideoNotLive     = errors.New("video is not currently live")
	ErrChatNotAvailable = errors.New("live chat is not available for this video")
)

// Client wraps the YouTube Data API v3 for live chat access.
type Client struct {
	svc      *youtube.Service
	pageSize int64
	logger   *zap.Logger
}

// NewClient creates a YouTube Data API client authenticated with an API key.
func NewClient(ctx context.Context, apiKey string, pageSize int, logger *zap.Logger) (*Client, error) {
	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	if pageSize <= 0 || pageSize > 2000 {
		pageSize = 200
	}
	return &Client{svc: svc, pageSize: int64(pageSize), logger: logger}, nil
}

// ResolveLiveChatID returns the active live chat id for a video.
// Fails if the video does not exist, is not live, or has chat disabled.
func (c *Client) ResolveLiveChatID(ctx context.Context, videoID string) (string, error) {
	resp, err := c.svc.Videos.
		List([]string{"snippet", "liveStreamingDetails"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("videos.list: %w", err)
	}
	if len(resp.Items) == 0 {
		return "", ErrVideoNotFound
	}
	video := resp.Items[0]
	if video.Snippet == nil || video.Snippet.LiveBroadcastContent != "live" {
		return "", ErrVideoNotLive
	}
	if video.LiveStreamingDetails == nil || video.LiveStreamingDetails.ActiveLiveChatId == "" {
		return "", ErrChatNotAvailable
	}
	c.logger.Debug("resolved live chat id",
		zap.String("video_id", videoID),
		zap.String("live_chat_id", video.LiveStreamingDetails.ActiveLiveChatId),
	)
	return video.LiveStreamingDetails.ActiveLiveChatId, nil
}

// ListMessages fetches one page of live chat messages. An empty pageToken
// starts from the head of the chat; the returned cursor continues from there.
func (c *Client) ListMessages(ctx context.Context, liveChatID, pageToken string) (*models.ChatPage, error) {
	call := c.svc.LiveChatMessages.
		List(liveChatID, []string{"snippet", "authorDetails"}).
		MaxResults(c.pageSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("liveChatMessages.list: %w", err)
	}

	page := &models.ChatPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.Snippet == nil {
			continue
		}
		publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			continue
		}
		msg := models.ChatMessage{
			Text:        item.Snippet.DisplayMessage,
			PublishedAt: publishedAt,
		}
		if item.AuthorDetails != nil {
			msg.Author = item.AuthorDetails.DisplayName
			msg.AuthorImage = item.AuthorDetails.ProfileImageUrl
			msg.AuthorChannelID = item.AuthorDetails.ChannelId
		}
		page.Messages = append(page.Messages, msg)
	}
	return page, nil
}
