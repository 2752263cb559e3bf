package pollstate

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ytpoll/backend/internal/models"
)

// Repository handles poll state snapshot persistence. One row per session;
// writes are all-or-nothing single statements, so readers never observe a
// torn snapshot.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a poll state repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `id, session_id, live_chat_id,
	tally_a, tally_b, tally_c, tally_d,
	first_responders_a, first_responders_b, first_responders_c, first_responders_d,
	selected_option, is_fetching, updated_at`

// Get returns the snapshot for a session, or nil when none exists yet.
func (r *Repository) Get(ctx context.Context, sessionID uuid.UUID) (*models.PollState, error) {
	q := `SELECT ` + selectColumns + ` FROM poll_state WHERE session_id = $1`
	var st models.PollState
	err := r.pool.QueryRow(ctx, q, sessionID).Scan(
		&st.ID, &st.SessionID, &st.LiveChatID,
		&st.Tally.A, &st.Tally.B, &st.Tally.C, &st.Tally.D,
		&st.FirstResponders.A, &st.FirstResponders.B, &st.FirstResponders.C, &st.FirstResponders.D,
		&st.SelectedOption, &st.IsFetching, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// Upsert replaces the whole snapshot for a session, creating the row on
// first write. Idempotent: a repeated identical write leaves the stored
// snapshot unchanged apart from updated_at.
func (r *Repository) Upsert(ctx context.Context, st *models.PollState) error {
	const q = `INSERT INTO poll_state
		(id, session_id, live_chat_id, tally_a, tally_b, tally_c, tally_d,
		 first_responders_a, first_responders_b, first_responders_c, first_responders_d,
		 selected_option, is_fetching, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (session_id) DO UPDATE SET
		 live_chat_id = EXCLUDED.live_chat_id,
		 tally_a = EXCLUDED.tally_a, tally_b = EXCLUDED.tally_b,
		 tally_c = EXCLUDED.tally_c, tally_d = EXCLUDED.tally_d,
		 first_responders_a = EXCLUDED.first_responders_a,
		 first_responders_b = EXCLUDED.first_responders_b,
		 first_responders_c = EXCLUDED.first_responders_c,
		 first_responders_d = EXCLUDED.first_responders_d,
		 selected_option = EXCLUDED.selected_option,
		 is_fetching = EXCLUDED.is_fetching,
		 updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q,
		st.SessionID, st.LiveChatID,
		st.Tally.A, st.Tally.B, st.Tally.C, st.Tally.D,
		emptyIfNil(st.FirstResponders.A), emptyIfNil(st.FirstResponders.B),
		emptyIfNil(st.FirstResponders.C), emptyIfNil(st.FirstResponders.D),
		st.SelectedOption, st.IsFetching,
	)
	return err
}

// Init ensures a zeroed snapshot row exists for a session without touching
// an existing one (first write wins; the poller updates it afterwards).
func (r *Repository) Init(ctx context.Context, sessionID uuid.UUID, liveChatID string) error {
	const q = `INSERT INTO poll_state (id, session_id, live_chat_id, updated_at)
		VALUES (gen_random_uuid(), $1, $2, NOW())
		ON CONFLICT (session_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, sessionID, liveChatID)
	return err
}

// ResetTally zeroes the tally and first-responder lists for a session,
// establishing the baseline for a new poll.
func (r *Repository) ResetTally(ctx context.Context, sessionID uuid.UUID) error {
	const q = `UPDATE poll_state SET
		tally_a = 0, tally_b = 0, tally_c = 0, tally_d = 0,
		first_responders_a = '{}', first_responders_b = '{}',
		first_responders_c = '{}', first_responders_d = '{}',
		selected_option = NULL, updated_at = NOW()
		WHERE session_id = $1`
	_, err := r.pool.Exec(ctx, q, sessionID)
	return err
}

// SetFetching flips the snapshot's fetching flag.
func (r *Repository) SetFetching(ctx context.Context, sessionID uuid.UUID, fetching bool) error {
	const q = `UPDATE poll_state SET is_fetching = $2, updated_at = NOW() WHERE session_id = $1`
	_, err := r.pool.Exec(ctx, q, sessionID, fetching)
	return err
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
