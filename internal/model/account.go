package model

type Account struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	IsLocked     bool   `db:"is_locked" json:"isLocked"`
	CreatedAt    int64  `db:"created_at" json:"createdAt"`
}

type Guest struct {
	ID          int64  `db:"id" json:"id"`
	DisplayName string `db:"display_name" json:"displayName"`
	CreatedAt   int64  `db:"created_at" json:"createdAt"`
}
