package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ytpoll/backend/internal/models"
)

// Repository handles session and poll persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create opens a session for a video. Fails on the partial unique index if
// an open session for the video already exists.
func (r *Repository) Create(ctx context.Context, videoID, liveChatID string) (*models.Session, error) {
	const q = `INSERT INTO sessions (id, youtube_video_id, live_chat_id, started_at)
		VALUES (gen_random_uuid(), $1, $2, NOW())
		RETURNING id, youtube_video_id, live_chat_id, started_at, ended_at`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, videoID, liveChatID).
		Scan(&s.ID, &s.VideoID, &s.LiveChatID, &s.StartedAt, &s.EndedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID returns a session by id, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `SELECT id, youtube_video_id, live_chat_id, started_at, ended_at
		FROM sessions WHERE id = $1`
	return r.scanOne(ctx, q, id)
}

// GetOpenByVideo returns the open (not ended) session for a video, or nil.
func (r *Repository) GetOpenByVideo(ctx context.Context, videoID string) (*models.Session, error) {
	const q = `SELECT id, youtube_video_id, live_chat_id, started_at, ended_at
		FROM sessions WHERE youtube_video_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1`
	return r.scanOne(ctx, q, videoID)
}

// GetOpenByLiveChat returns the open session for a live chat, or nil.
func (r *Repository) GetOpenByLiveChat(ctx context.Context, liveChatID string) (*models.Session, error) {
	const q = `SELECT id, youtube_video_id, live_chat_id, started_at, ended_at
		FROM sessions WHERE live_chat_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1`
	return r.scanOne(ctx, q, liveChatID)
}

func (r *Repository) scanOne(ctx context.Context, q string, arg interface{}) (*models.Session, error) {
	var s models.Session
	err := r.pool.QueryRow(ctx, q, arg).
		Scan(&s.ID, &s.VideoID, &s.LiveChatID, &s.StartedAt, &s.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// End soft-closes a session.
func (r *Repository) End(ctx context.Context, sessionID uuid.UUID) error {
	const q = `UPDATE sessions SET ended_at = NOW() WHERE id = $1 AND ended_at IS NULL`
	_, err := r.pool.Exec(ctx, q, sessionID)
	return err
}

// CreatePoll inserts a new poll; the id and start time are filled in.
func (r *Repository) CreatePoll(ctx context.Context, p *models.Poll) error {
	const q = `INSERT INTO polls (id, session_id, started_at, duration, video_start_timestamp, correct_option)
		VALUES (gen_random_uuid(), $1, NOW(), $2, $3, $4)
		RETURNING id, started_at`
	return r.pool.QueryRow(ctx, q, p.SessionID, p.Duration, p.VideoStartTimestamp, p.CorrectOption).
		Scan(&p.ID, &p.StartedAt)
}

// CurrentPoll returns the session's current poll: the most recently started
// open poll, or the most recent overall when all are closed. Nil when the
// session has no polls.
func (r *Repository) CurrentPoll(ctx context.Context, sessionID uuid.UUID) (*models.Poll, error) {
	const q = `SELECT id, session_id, started_at, ended_at, duration, video_start_timestamp, video_end_timestamp, correct_option
		FROM polls WHERE session_id = $1
		ORDER BY (ended_at IS NULL) DESC, started_at DESC LIMIT 1`
	var p models.Poll
	err := r.pool.QueryRow(ctx, q, sessionID).
		Scan(&p.ID, &p.SessionID, &p.StartedAt, &p.EndedAt, &p.Duration, &p.VideoStartTimestamp, &p.VideoEndTimestamp, &p.CorrectOption)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// CloseOpenPolls ends all open polls for a session, optionally recording the
// video playback timestamp at close.
func (r *Repository) CloseOpenPolls(ctx context.Context, sessionID uuid.UUID, videoEndTimestamp *int) error {
	const q = `UPDATE polls SET ended_at = NOW(), video_end_timestamp = COALESCE($2, video_end_timestamp)
		WHERE session_id = $1 AND ended_at IS NULL`
	_, err := r.pool.Exec(ctx, q, sessionID, videoEndTimestamp)
	return err
}

// SetCorrectOption designates the answer for a poll.
func (r *Repository) SetCorrectOption(ctx context.Context, pollID uuid.UUID, option string) error {
	const q = `UPDATE polls SET correct_option = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, option, pollID)
	return err
}
