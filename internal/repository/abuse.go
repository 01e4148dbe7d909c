package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/hangplan/hangout-server/internal/database"
	"github.com/hangplan/hangout-server/internal/model"
)

type AbuseRepository interface {
	// RecordViolation upserts the abuse ledger row for the IP, bumping the
	// violation count and latest timestamp.
	RecordViolation(ctx context.Context, ip string, nowMillis int64) error
	// DeleteForgiven drops light abusers: rows at or below maxCount that
	// have been quiet since the cutoff. Heavier or recently-active abusers
	// are retained.
	DeleteForgiven(ctx context.Context, maxCount int, cutoffMillis int64) (int64, error)
	Find(ctx context.Context, ip string) (*model.AbusiveUser, error)
	WithTx(tx *sqlx.Tx) AbuseRepository
}

type abuseRepo struct {
	db database.DBTX
}

func NewAbuseRepository(db *sqlx.DB) AbuseRepository {
	return &abuseRepo{db: db}
}

func (r *abuseRepo) WithTx(tx *sqlx.Tx) AbuseRepository {
	return &abuseRepo{db: tx}
}

func (r *abuseRepo) RecordViolation(ctx context.Context, ip string, nowMillis int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO abusive_users (ip, rate_limit_reached_count, first_abuse_timestamp, latest_abuse_timestamp)
		VALUES ($1, 1, $2, $2)
		ON CONFLICT (ip) DO UPDATE SET
			rate_limit_reached_count = abusive_users.rate_limit_reached_count + 1,
			latest_abuse_timestamp = $2
	`, ip, nowMillis)
	return err
}

func (r *abuseRepo) DeleteForgiven(ctx context.Context, maxCount int, cutoffMillis int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM abusive_users
		WHERE rate_limit_reached_count <= $1
		AND latest_abuse_timestamp <= $2
	`, maxCount, cutoffMillis)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *abuseRepo) Find(ctx context.Context, ip string) (*model.AbusiveUser, error) {
	var entry model.AbusiveUser
	err := r.db.GetContext(ctx, &entry, `
		SELECT * FROM abusive_users WHERE ip = $1
	`, ip)
	return HandleNotFound(&entry, err)
}
