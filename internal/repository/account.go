package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/hangplan/hangout-server/internal/database"
	"github.com/hangplan/hangout-server/internal/model"
)

type AccountRepository interface {
	FindByUsername(ctx context.Context, username string) (*model.Account, error)
	FindByID(ctx context.Context, id int64) (*model.Account, error)
	WithTx(tx *sqlx.Tx) AccountRepository
}

type accountRepo struct {
	db database.DBTX
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) WithTx(tx *sqlx.Tx) AccountRepository {
	return &accountRepo{db: tx}
}

func (r *accountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts WHERE username = $1
	`, username)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) FindByID(ctx context.Context, id int64) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts WHERE id = $1
	`, id)
	return HandleNotFound(&account, err)
}
