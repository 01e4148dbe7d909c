package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/hangplan/hangout-server/internal/database"
	"github.com/hangplan/hangout-server/internal/model"
	"github.com/hangplan/hangout-server/internal/repository"
)

// RetentionService reclaims rows that no longer belong to anything: guests
// whose memberships are all gone, along with their sessions.
type RetentionService struct {
	db          *database.DB
	guestRepo   repository.GuestRepository
	sessionRepo repository.SessionRepository
}

func NewRetentionService(db *database.DB, guestRepo repository.GuestRepository, sessionRepo repository.SessionRepository) *RetentionService {
	return &RetentionService{
		db:          db,
		guestRepo:   guestRepo,
		sessionRepo: sessionRepo,
	}
}

// PurgeOrphanedGuests deletes guests with no remaining hangout membership,
// together with their sessions. The read and the deletes share one
// serializable transaction: the delete must act on exactly the set that was
// read, without a membership insert sneaking in between. This is the only
// isolation escalation in the codebase.
func (s *RetentionService) PurgeOrphanedGuests(ctx context.Context) (int64, error) {
	var purged int64
	err := s.db.WithSerializableTx(ctx, func(tx *sqlx.Tx) error {
		guests := s.guestRepo.WithTx(tx)
		sessions := s.sessionRepo.WithTx(tx)

		ids, err := guests.SelectPurgeable(ctx)
		if err != nil {
			return fmt.Errorf("select purgeable guests: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		if _, err := sessions.DeleteByKindAndUserIDs(ctx, model.UserKindGuest, ids); err != nil {
			return fmt.Errorf("delete guest sessions: %w", err)
		}

		purged, err = guests.DeleteByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("delete guests: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if purged > 0 {
		log.Info().Int64("count", purged).Msg("orphaned guests purged")
	}
	return purged, nil
}
