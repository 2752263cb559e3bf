package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VoteRecord carries everything needed to persist one classified vote.
type VoteRecord struct {
	SessionID uuid.UUID
	PollID    uuid.UUID
	VideoID   string
	UserID    string
	UserName  string
	UserImage string
	Answer    string // "A".."D", validated by the classifier
	Score     ScoreResult
}

// RecordOutcome reports the dedup ledger's view of a recorded vote.
type RecordOutcome struct {
	IsNew          bool
	PreviousAnswer string // set when the vote replaced an earlier answer
}

// Repository persists classified votes. The vote upsert, the snapshot tally
// and first-responder update, and the leaderboard upsert happen in a single
// transaction: either all effects of a message are visible or none are.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat vote repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordVote applies one vote atomically. A first vote per (user, poll)
// inserts the response and increments the tally; a changed vote updates the
// response in place, decrements the old option's tally and increments the
// new one. total_answers moves only on the first vote.
func (r *Repository) RecordVote(ctx context.Context, rec VoteRecord) (RecordOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return RecordOutcome{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var out RecordOutcome
	var prev string
	err = tx.QueryRow(ctx,
		`SELECT answer FROM poll_responses WHERE user_id = $1 AND poll_id = $2 FOR UPDATE`,
		rec.UserID, rec.PollID,
	).Scan(&prev)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		out.IsNew = true
		_, err = tx.Exec(ctx,
			`INSERT INTO poll_responses (id, poll_id, user_id, user_name, user_image, answer, responded_at)
			 VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NOW())`,
			rec.PollID, rec.UserID, rec.UserName, rec.UserImage, rec.Answer,
		)
		if err != nil {
			return RecordOutcome{}, fmt.Errorf("insert response: %w", err)
		}
	case err != nil:
		return RecordOutcome{}, fmt.Errorf("lookup response: %w", err)
	default:
		out.PreviousAnswer = prev
		_, err = tx.Exec(ctx,
			`UPDATE poll_responses SET answer = $1, user_name = $2, user_image = $3, responded_at = NOW()
			 WHERE user_id = $4 AND poll_id = $5`,
			rec.Answer, rec.UserName, rec.UserImage, rec.UserID, rec.PollID,
		)
		if err != nil {
			return RecordOutcome{}, fmt.Errorf("update response: %w", err)
		}
	}

	if err := r.applyTally(ctx, tx, rec, out); err != nil {
		return RecordOutcome{}, err
	}
	if err := r.applyLeaderboard(ctx, tx, rec, out); err != nil {
		return RecordOutcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return RecordOutcome{}, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (r *Repository) applyTally(ctx context.Context, tx pgx.Tx, rec VoteRecord, out RecordOutcome) error {
	cur := tallyColumn(rec.Answer)
	switch {
	case out.IsNew:
		_, err := tx.Exec(ctx, fmt.Sprintf(
			`UPDATE poll_state SET %s = %s + 1, updated_at = NOW() WHERE session_id = $1`, cur, cur),
			rec.SessionID,
		)
		if err != nil {
			return fmt.Errorf("increment tally: %w", err)
		}
	case out.PreviousAnswer != rec.Answer:
		old := tallyColumn(out.PreviousAnswer)
		_, err := tx.Exec(ctx, fmt.Sprintf(
			`UPDATE poll_state SET %s = GREATEST(%s - 1, 0), %s = %s + 1, updated_at = NOW() WHERE session_id = $1`,
			old, old, cur, cur),
			rec.SessionID,
		)
		if err != nil {
			return fmt.Errorf("move tally: %w", err)
		}
	default:
		// same answer resubmitted; tally unchanged
		return nil
	}

	// Append-only first-responder list, no duplicate names per option.
	col := respondersColumn(rec.Answer)
	_, err := tx.Exec(ctx, fmt.Sprintf(
		`UPDATE poll_state SET %s = array_append(%s, $2) WHERE session_id = $1 AND NOT ($2 = ANY(%s))`,
		col, col, col),
		rec.SessionID, rec.UserName,
	)
	if err != nil {
		return fmt.Errorf("append first responder: %w", err)
	}
	return nil
}

func (r *Repository) applyLeaderboard(ctx context.Context, tx pgx.Tx, rec VoteRecord, out RecordOutcome) error {
	correctDelta := 0
	if rec.Score.FirstCorrect {
		correctDelta = 1
	}
	totalDelta := 0
	if out.IsNew {
		totalDelta = 1
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO leaderboard (id, user_id, user_name, user_image, video_id, poll_id, correct_answers, total_answers, points, last_answered_at)
		 VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (user_id, poll_id) DO UPDATE SET
		   correct_answers = leaderboard.correct_answers + EXCLUDED.correct_answers,
		   total_answers = leaderboard.total_answers + EXCLUDED.total_answers,
		   points = leaderboard.points + EXCLUDED.points,
		   user_name = EXCLUDED.user_name,
		   user_image = EXCLUDED.user_image,
		   last_answered_at = NOW()`,
		rec.UserID, rec.UserName, rec.UserImage, rec.VideoID, rec.PollID,
		correctDelta, totalDelta, rec.Score.Points,
	)
	if err != nil {
		return fmt.Errorf("upsert leaderboard: %w", err)
	}
	return nil
}

// Column names are fixed per option; answers reach here already validated.
func tallyColumn(option string) string {
	switch option {
	case "A":
		return "tally_a"
	case "B":
		return "tally_b"
	case "C":
		return "tally_c"
	default:
		return "tally_d"
	}
}

func respondersColumn(option string) string {
	switch option {
	case "A":
		return "first_responders_a"
	case "B":
		return "first_responders_b"
	case "C":
		return "first_responders_c"
	default:
		return "first_responders_d"
	}
}
