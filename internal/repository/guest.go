package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hangplan/hangout-server/internal/database"
	"github.com/hangplan/hangout-server/internal/model"
)

type GuestRepository interface {
	Create(ctx context.Context, displayName string, nowMillis int64) (*model.Guest, error)
	// SelectPurgeable lists guests with no remaining hangout membership.
	// Callers that intend to act on the set must run inside a serializable
	// transaction via WithTx.
	SelectPurgeable(ctx context.Context) ([]int64, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	WithTx(tx *sqlx.Tx) GuestRepository
}

type guestRepo struct {
	db database.DBTX
}

func NewGuestRepository(db *sqlx.DB) GuestRepository {
	return &guestRepo{db: db}
}

func (r *guestRepo) WithTx(tx *sqlx.Tx) GuestRepository {
	return &guestRepo{db: tx}
}

func (r *guestRepo) Create(ctx context.Context, displayName string, nowMillis int64) (*model.Guest, error) {
	var guest model.Guest
	err := r.db.GetContext(ctx, &guest, `
		INSERT INTO guests (display_name, created_at)
		VALUES ($1, $2)
		RETURNING *
	`, displayName, nowMillis)
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

func (r *guestRepo) SelectPurgeable(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `
		SELECT g.id FROM guests g
		WHERE NOT EXISTS (
			SELECT 1 FROM hangout_members m
			WHERE m.user_type = 'guest' AND m.user_id = g.id
		)
	`)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *guestRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM guests WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
