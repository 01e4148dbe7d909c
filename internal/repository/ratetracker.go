package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/hangplan/hangout-server/internal/database"
	"github.com/hangplan/hangout-server/internal/model"
)

type RateTrackerRepository interface {
	// CheckAndIncrement charges one request against the class counter for
	// the token, creating the row on first sight, and reports whether the
	// request is allowed. The check is a strict greater-than against the
	// limit before the increment, so the first over-limit request passes
	// once; the counter is incremented regardless of the outcome.
	CheckAndIncrement(ctx context.Context, token string, class model.RequestClass, limit int, nowMillis int64) (bool, error)
	// Decay subtracts the given amounts from every counter whose decay
	// window opened at or before the cutoff, clamped at zero, and opens a
	// fresh window at nowMillis. The window only ever advances here, never
	// on requests, so steady traffic cannot outrun replenishment.
	Decay(ctx context.Context, nowMillis, cutoffMillis int64, generalDecay, chatDecay int) (int64, error)
	// DeleteIdle removes rows with no request since the cutoff and both
	// counters at zero.
	DeleteIdle(ctx context.Context, cutoffMillis int64) (int64, error)
	Find(ctx context.Context, token string) (*model.RateTrackerEntry, error)
	WithTx(tx *sqlx.Tx) RateTrackerRepository
}

type rateTrackerRepo struct {
	db database.DBTX
}

func NewRateTrackerRepository(db *sqlx.DB) RateTrackerRepository {
	return &rateTrackerRepo{db: db}
}

func (r *rateTrackerRepo) WithTx(tx *sqlx.Tx) RateTrackerRepository {
	return &rateTrackerRepo{db: tx}
}

// The conflict branch must not touch window_timestamp: refreshing the decay
// window per request would keep an active token permanently out of Decay's
// reach, so its counters could only grow. Activity is tracked separately in
// last_request_timestamp, which feeds the idle GC.
const checkAndIncrementQuery = `
	INSERT INTO rate_tracker (token, general_count, chat_count, window_timestamp, last_request_timestamp)
	VALUES ($1, CASE WHEN $2 = 'general' THEN 1 ELSE 0 END, CASE WHEN $2 = 'chat' THEN 1 ELSE 0 END, $3, $3)
	ON CONFLICT (token) DO UPDATE SET
		general_count = rate_tracker.general_count + CASE WHEN $2 = 'general' THEN 1 ELSE 0 END,
		chat_count = rate_tracker.chat_count + CASE WHEN $2 = 'chat' THEN 1 ELSE 0 END,
		last_request_timestamp = $3
	RETURNING `

const decayQuery = `
	UPDATE rate_tracker SET
		general_count = GREATEST(general_count - $3, 0),
		chat_count = GREATEST(chat_count - $4, 0),
		window_timestamp = $1
	WHERE window_timestamp <= $2
`

const deleteIdleQuery = `
	DELETE FROM rate_tracker
	WHERE last_request_timestamp <= $1
	AND general_count = 0
	AND chat_count = 0
`

// allowAfterIncrement applies the admission rule to the post-increment
// counter value. The pre-increment comparison is a strict greater-than
// against the limit, so the request that first crosses the limit is let
// through once and every later one is rejected.
func allowAfterIncrement(after, limit int) bool {
	return after <= limit+1
}

// A single upsert keeps check-plus-increment to one round trip. The returned
// value is the post-increment counter. Concurrent requests from one token
// may race the counter slightly; that is acceptable for a rate limiter and
// not worth a transaction.
func (r *rateTrackerRepo) CheckAndIncrement(ctx context.Context, token string, class model.RequestClass, limit int, nowMillis int64) (bool, error) {
	column := "general_count"
	if class == model.RequestClassChat {
		column = "chat_count"
	}

	var after int
	err := r.db.GetContext(ctx, &after, checkAndIncrementQuery+column, token, string(class), nowMillis)
	if err != nil {
		return false, err
	}
	return allowAfterIncrement(after, limit), nil
}

func (r *rateTrackerRepo) Decay(ctx context.Context, nowMillis, cutoffMillis int64, generalDecay, chatDecay int) (int64, error) {
	result, err := r.db.ExecContext(ctx, decayQuery, nowMillis, cutoffMillis, generalDecay, chatDecay)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *rateTrackerRepo) DeleteIdle(ctx context.Context, cutoffMillis int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, deleteIdleQuery, cutoffMillis)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *rateTrackerRepo) Find(ctx context.Context, token string) (*model.RateTrackerEntry, error) {
	var entry model.RateTrackerEntry
	err := r.db.GetContext(ctx, &entry, `
		SELECT * FROM rate_tracker WHERE token = $1
	`, token)
	return HandleNotFound(&entry, err)
}
