package model

type AuthSession struct {
	ID        int64    `db:"id" json:"id"`
	TokenHash string   `db:"token_hash" json:"-"`
	UserID    int64    `db:"user_id" json:"userId"`
	UserType  UserKind `db:"user_type" json:"userType"`
	CreatedAt int64    `db:"created_at" json:"createdAt"`
	ExpiresAt int64    `db:"expires_at" json:"expiresAt"`
}

func (s *AuthSession) Identity() Identity {
	return Identity{UserID: s.UserID, Kind: s.UserType}
}

// Expired reports whether the session is past its expiry at the given
// millisecond timestamp. Expiry is soft at the store layer, so every
// authenticating code path must call this itself.
func (s *AuthSession) Expired(nowMillis int64) bool {
	return s.ExpiresAt <= nowMillis
}

type CreateSessionParams struct {
	TokenHash string
	UserID    int64
	UserType  UserKind
	CreatedAt int64
	ExpiresAt int64
}
