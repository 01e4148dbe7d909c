package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/hangplan/hangout-server/internal/database"
	"github.com/hangplan/hangout-server/internal/model"
)

type HangoutRepository interface {
	FindByID(ctx context.Context, id string) (*model.Hangout, error)
	// AdvanceDue moves every non-concluded hangout whose next step is due
	// forward one stage in a single set-based statement and reports the
	// touched rows with their new stage.
	AdvanceDue(ctx context.Context, nowMillis int64) ([]model.StageTransition, error)
	// ConcludeVotingBySuggestionCount force-concludes hangouts sitting at
	// the voting stage with exactly the given number of suggestions.
	ConcludeVotingBySuggestionCount(ctx context.Context, nowMillis int64, count int) ([]string, error)
	// DeleteMemberless removes hangouts with zero members, whatever their stage.
	DeleteMemberless(ctx context.Context) ([]string, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) HangoutRepository
}

type hangoutRepo struct {
	db database.DBTX
}

func NewHangoutRepository(db *sqlx.DB) HangoutRepository {
	return &hangoutRepo{db: db}
}

func (r *hangoutRepo) WithTx(tx *sqlx.Tx) HangoutRepository {
	return &hangoutRepo{db: tx}
}

func (r *hangoutRepo) FindByID(ctx context.Context, id string) (*model.Hangout, error) {
	var hangout model.Hangout
	err := r.db.GetContext(ctx, &hangout, `
		SELECT * FROM hangouts WHERE id = $1
	`, id)
	return HandleNotFound(&hangout, err)
}

// One bulk statement rather than per-row application logic: avoids N+1
// round-trips and read-then-write races against concurrent leader-initiated
// stage changes. Every CASE arm leaves next_step_timestamp either NULL or
// strictly past $1 (step durations are positive), so a second pass with the
// same clock value matches nothing.
const advanceDueQuery = `
	UPDATE hangouts SET
		current_stage = LEAST(current_stage + 1, 4),
		stage_control_timestamp = $1,
		next_step_timestamp = CASE current_stage
			WHEN 1 THEN $1 + suggestions_step
			WHEN 2 THEN $1 + voting_step
			ELSE NULL
		END,
		is_concluded = current_stage + 1 >= 4,
		conclusion_timestamp = CASE
			WHEN current_stage + 1 >= 4 THEN $1
			ELSE conclusion_timestamp
		END
	WHERE is_concluded = FALSE
	AND next_step_timestamp IS NOT NULL
	AND next_step_timestamp <= $1
	RETURNING id, current_stage
`

func (r *hangoutRepo) AdvanceDue(ctx context.Context, nowMillis int64) ([]model.StageTransition, error) {
	var transitions []model.StageTransition
	err := r.db.SelectContext(ctx, &transitions, advanceDueQuery, nowMillis)
	if err != nil {
		return nil, err
	}
	return transitions, nil
}

func (r *hangoutRepo) ConcludeVotingBySuggestionCount(ctx context.Context, nowMillis int64, count int) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		UPDATE hangouts SET
			current_stage = 4,
			is_concluded = TRUE,
			next_step_timestamp = NULL,
			conclusion_timestamp = $1,
			stage_control_timestamp = $1
		WHERE current_stage = 3
		AND is_concluded = FALSE
		AND (SELECT COUNT(*) FROM suggestions s WHERE s.hangout_id = hangouts.id) = $2
		RETURNING id
	`, nowMillis, count)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *hangoutRepo) DeleteMemberless(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		DELETE FROM hangouts
		WHERE NOT EXISTS (
			SELECT 1 FROM hangout_members m WHERE m.hangout_id = hangouts.id
		)
		RETURNING id
	`)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
