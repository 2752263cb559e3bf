package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TopUser is one aggregated leaderboard row for a video: per-poll rows
// summed for the same user.
type TopUser struct {
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
	UserImage      string    `json:"user_image"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalAnswers   int       `json:"total_answers"`
	Points         int       `json:"points"`
	LastAnsweredAt time.Time `json:"last_answered_at"`
}

// VideoSummary aggregates one video's leaderboard: overall counts plus its
// top participants.

type VideoSummary struct {
	VideoID      string    `json:"video_id"`
	Participants int       `json:"participants"`
	TotalAnswers int       `json:"total_answers"`
	TotalPoints  int       `json:"total_points"`
	LastActivity time.Time `json:"last_activity"`
	TopUsers     []TopUser `json:"top_users"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TopByVideo returns the highest scoring users for one video. Per-poll rows
// are summed per user; ties on points break toward more correct answers,
// then earlier last activity.
func (r *Repository) TopByVideo(ctx context.Context, videoID string, limit int) ([]TopUser, error) {
	const q = `
		SELECT user_id,
		       MAX(user_name) AS user_name,
		       COALESCE(MAX(user_image), '') AS user_image,
		       SUM(correct_answers)::int,
		       SUM(total_answers)::int,
		       SUM(points)::int,
		       MAX(last_answered_at)
		FROM leaderboard
		WHERE video_id = $1
		GROUP BY user_id
		ORDER BY SUM(points) DESC, SUM(correct_answers) DESC, MAX(last_answered_at) ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, q, videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("query top users: %w", err)
	}
	defer rows.Close()

	users := make([]TopUser, 0, limit)
	for rows.Next() {
		var u TopUser
		if err := rows.Scan(&u.UserID, &u.UserName, &u.UserImage,
			&u.CorrectAnswers, &u.TotalAnswers, &u.Points, &u.LastAnsweredAt); err != nil {
			return nil, fmt.Errorf("scan top user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// VideoSummaries returns per-video leaderboard aggregates for the most
// recently active videos, each with its top three participants.
func (r *Repository) VideoSummaries(ctx context.Context, limit int) ([]VideoSummary, error) {
	const q = `
		SELECT video_id,
		       COUNT(DISTINCT user_id)::int,
		       SUM(total_answers)::int,
		       SUM(points)::int,
		       MAX(last_answered_at)
		FROM leaderboard
		GROUP BY video_id
		ORDER BY MAX(last_answered_at) DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query video summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]VideoSummary, 0, limit)
	for rows.Next() {
		var s VideoSummary
		if err := rows.Scan(&s.VideoID, &s.Participants, &s.TotalAnswers,
			&s.TotalPoints, &s.LastActivity); err != nil {
			return nil, fmt.Errorf("scan video summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		top, err := r.TopByVideo(ctx, summaries[i].VideoID, 3)
		if err != nil {
			return nil, err
		}
		summaries[i].TopUsers = top
	}
	return summaries, nil
}
