package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/hangplan/hangout-server/internal/database"
)

// ErrorLogRepository persists unexpected internal failures so they stay
// auditable after the request or tick that hit them has moved on.
type ErrorLogRepository interface {
	Append(ctx context.Context, source, message string, nowMillis int64) error
	DeleteOlderThan(ctx context.Context, cutoffMillis int64) (int64, error)
	WithTx(tx *sqlx.Tx) ErrorLogRepository
}

type errorLogRepo struct {
	db database.DBTX
}

func NewErrorLogRepository(db *sqlx.DB) ErrorLogRepository {
	return &errorLogRepo{db: db}
}

func (r *errorLogRepo) WithTx(tx *sqlx.Tx) ErrorLogRepository {
	return &errorLogRepo{db: tx}
}

func (r *errorLogRepo) Append(ctx context.Context, source, message string, nowMillis int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO error_log (source, message, created_at)
		VALUES ($1, $2, $3)
	`, source, message, nowMillis)
	return err
}

func (r *errorLogRepo) DeleteOlderThan(ctx context.Context, cutoffMillis int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM error_log WHERE created_at < $1
	`, cutoffMillis)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
