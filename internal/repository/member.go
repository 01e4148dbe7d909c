package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/hangplan/hangout-server/internal/database"
	"github.com/hangplan/hangout-server/internal/model"
)

type MemberRepository interface {
	// ExistsMembership reports whether the given member row belongs to the
	// given hangout and is owned by the given identity. This is the join the
	// websocket handshake trusts.
	ExistsMembership(ctx context.Context, memberID int64, hangoutID string, identity model.Identity) (bool, error)
	FindByID(ctx context.Context, memberID int64) (*model.HangoutMember, error)
	WithTx(tx *sqlx.Tx) MemberRepository
}

type memberRepo struct {
	db database.DBTX
}

func NewMemberRepository(db *sqlx.DB) MemberRepository {
	return &memberRepo{db: db}
}

func (r *memberRepo) WithTx(tx *sqlx.Tx) MemberRepository {
	return &memberRepo{db: tx}
}

func (r *memberRepo) ExistsMembership(ctx context.Context, memberID int64, hangoutID string, identity model.Identity) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM hangout_members
			WHERE id = $1
			AND hangout_id = $2
			AND user_id = $3
			AND user_type = $4
		)
	`, memberID, hangoutID, identity.UserID, identity.Kind)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *memberRepo) FindByID(ctx context.Context, memberID int64) (*model.HangoutMember, error) {
	var member model.HangoutMember
	err := r.db.GetContext(ctx, &member, `
		SELECT * FROM hangout_members WHERE id = $1
	`, memberID)
	return HandleNotFound(&member, err)
}
