package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hangplan/hangout-server/internal/config"
	"github.com/hangplan/hangout-server/internal/model"
	"github.com/hangplan/hangout-server/internal/repository"
	"github.com/hangplan/hangout-server/internal/util"
)

// CreateSessionResult carries the raw token back to the handler, which turns
// it into the cookie pair. Only the hash ever reaches the store.
type CreateSessionResult struct {
	Token  string
	MaxAge time.Duration
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	now         func() time.Time
}

func NewSessionService(sessionRepo repository.SessionRepository) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		now:         time.Now,
	}
}

// Create issues a session for the identity. An identity holds at most
// three live sessions; the fourth creation rotates the oldest row in place
// instead of inserting, keeping the table bounded. attempt is the collision
// retry counter and starts at 1.
func (s *SessionService) Create(ctx context.Context, identity model.Identity, keepSignedIn bool, attempt int) (*CreateSessionResult, error) {
	if attempt > config.MaxSessionCreateAttempts {
		return nil, fmt.Errorf("session creation failed after %d attempts", config.MaxSessionCreateAttempts)
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	maxAge := config.SessionMaxAgeDefault
	if keepSignedIn {
		maxAge = config.SessionMaxAgeKeepSignedIn
	}

	now := s.now().UnixMilli()
	expiresAt := now + maxAge.Milliseconds()
	tokenHash := util.HashToken(token)

	count, err := s.sessionRepo.CountLive(ctx, identity, now)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	if count < config.MaxSessionsPerIdentity {
		if err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
			TokenHash: tokenHash,
			UserID:    identity.UserID,
			UserType:  identity.Kind,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		}); err != nil {
			// Token hashes are unique; a collision is astronomically rare
			// but cheap to retry.
			log.Warn().Err(err).Int("attempt", attempt).Msg("session insert failed, retrying")
			return s.Create(ctx, identity, keepSignedIn, attempt+1)
		}
	} else {
		rotated, err := s.sessionRepo.RotateOldest(ctx, identity, tokenHash, now, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("rotate session: %w", err)
		}
		if rotated == 0 {
			return nil, fmt.Errorf("rotate session: no row rotated")
		}
		log.Info().
			Int64("userId", identity.UserID).
			Str("userKind", string(identity.Kind)).
			Msg("session cap reached, rotated oldest")
	}

	return &CreateSessionResult{Token: token, MaxAge: maxAge}, nil
}

// Destroy removes exactly the session behind the given raw token.
func (s *SessionService) Destroy(ctx context.Context, token string) error {
	return s.sessionRepo.DeleteByTokenHash(ctx, util.HashToken(token))
}

// Purge removes every session of the identity at once. Used on security
// events that must invalidate all standing sessions: account lock, password
// change, deletion.
func (s *SessionService) Purge(ctx context.Context, identity model.Identity) (int64, error) {
	count, err := s.sessionRepo.DeleteByIdentity(ctx, identity)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	log.Info().
		Int64("userId", identity.UserID).
		Str("userKind", string(identity.Kind)).
		Int64("count", count).
		Msg("sessions purged")
	return count, nil
}

// DeleteExpired sweeps rows past their expiry. Expiry is otherwise soft:
// authenticating code paths check it themselves.
func (s *SessionService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.sessionRepo.DeleteExpired(ctx, s.now().UnixMilli())
}
