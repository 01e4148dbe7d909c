package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/hangplan/hangout-server/internal/database"
	"github.com/hangplan/hangout-server/internal/model"
)

type EventLogRepository interface {
	// Append writes one append-only event row for a hangout.
	Append(ctx context.Context, hangoutID string, eventType model.HangoutEventType, detail string, nowMillis int64) error
	FindByHangoutID(ctx context.Context, hangoutID string) ([]model.HangoutEvent, error)
	WithTx(tx *sqlx.Tx) EventLogRepository
}

type eventLogRepo struct {
	db database.DBTX
}

func NewEventLogRepository(db *sqlx.DB) EventLogRepository {
	return &eventLogRepo{db: db}
}

func (r *eventLogRepo) WithTx(tx *sqlx.Tx) EventLogRepository {
	return &eventLogRepo{db: tx}
}

func (r *eventLogRepo) Append(ctx context.Context, hangoutID string, eventType model.HangoutEventType, detail string, nowMillis int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_log (hangout_id, event_type, detail, created_at)
		VALUES ($1, $2, $3, $4)
	`, hangoutID, eventType, detail, nowMillis)
	return err
}

func (r *eventLogRepo) FindByHangoutID(ctx context.Context, hangoutID string) ([]model.HangoutEvent, error) {
	var events []model.HangoutEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT * FROM event_log WHERE hangout_id = $1 ORDER BY created_at ASC
	`, hangoutID)
	if err != nil {
		return nil, err
	}
	return events, nil
}
