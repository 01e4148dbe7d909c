package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hangplan/hangout-server/internal/database"
	"github.com/hangplan/hangout-server/internal/model"
)

type SessionRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error)
	// CountLive counts sessions for the identity that are not yet past
	// expiry at the given millisecond timestamp.
	CountLive(ctx context.Context, identity model.Identity, nowMillis int64) (int, error)
	Create(ctx context.Context, params model.CreateSessionParams) error
	// RotateOldest overwrites the oldest session row (by creation time) for
	// the identity with a fresh token hash and expiry, keeping the table
	// bounded at the per-identity cap.
	RotateOldest(ctx context.Context, identity model.Identity, tokenHash string, nowMillis, expiresAt int64) (int64, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteByIdentity(ctx context.Context, identity model.Identity) (int64, error)
	// DeleteByKindAndUserIDs bulk-purges sessions for many identities of one
	// kind; used by guest retention inside its serializable transaction.
	DeleteByKindAndUserIDs(ctx context.Context, kind model.UserKind, userIDs []int64) (int64, error)
	DeleteExpired(ctx context.Context, nowMillis int64) (int64, error)
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error) {
	var session model.AuthSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) CountLive(ctx context.Context, identity model.Identity, nowMillis int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM sessions
		WHERE user_id = $1 AND user_type = $2 AND expires_at > $3
	`, identity.UserID, identity.Kind, nowMillis)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, user_type, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, params.TokenHash, params.UserID, params.UserType, params.CreatedAt, params.ExpiresAt)
	return err
}

func (r *sessionRepo) RotateOldest(ctx context.Context, identity model.Identity, tokenHash string, nowMillis, expiresAt int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			token_hash = $3,
			created_at = $4,
			expires_at = $5
		WHERE id = (
			SELECT id FROM sessions
			WHERE user_id = $1 AND user_type = $2
			ORDER BY created_at ASC
			LIMIT 1
		)
	`, identity.UserID, identity.Kind, tokenHash, nowMillis, expiresAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE token_hash = $1
	`, tokenHash)
	return err
}

func (r *sessionRepo) DeleteByIdentity(ctx context.Context, identity model.Identity) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE user_id = $1 AND user_type = $2
	`, identity.UserID, identity.Kind)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) DeleteByKindAndUserIDs(ctx context.Context, kind model.UserKind, userIDs []int64) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE user_type = $1 AND user_id = ANY($2)
	`, kind, pq.Array(userIDs))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, nowMillis int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at <= $1
	`, nowMillis)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
