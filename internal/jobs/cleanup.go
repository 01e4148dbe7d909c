package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hangplan/hangout-server/internal/config"
	"github.com/hangplan/hangout-server/internal/repository"
)

// GuestPurger is the retention operation run on the daily pass.
type GuestPurger interface {
	PurgeOrphanedGuests(ctx context.Context) (int64, error)
}

// RegistryPurger drops emptied websocket registries.
type RegistryPurger interface {
	PurgeEmpty() int
}

// CleanupJob owns the recurring maintenance passes: the 30-second rate
// counter replenishment, the hourly session sweep, and the daily
// guest/abuse/error-log cleanup.
type CleanupJob struct {
	rateRepo    repository.RateTrackerRepository
	abuseRepo   repository.AbuseRepository
	sessionRepo repository.SessionRepository
	errorRepo   repository.ErrorLogRepository
	guests      GuestPurger
	registry    RegistryPurger

	generalLimit int
	chatLimit    int
	now          func() time.Time
}

func NewCleanupJob(
	rateRepo repository.RateTrackerRepository,
	abuseRepo repository.AbuseRepository,
	sessionRepo repository.SessionRepository,
	errorRepo repository.ErrorLogRepository,
	guests GuestPurger,
	registry RegistryPurger,
	generalLimit, chatLimit int,
) *CleanupJob {
	return &CleanupJob{
		rateRepo:     rateRepo,
		abuseRepo:    abuseRepo,
		sessionRepo:  sessionRepo,
		errorRepo:    errorRepo,
		guests:       guests,
		registry:     registry,
		generalLimit: generalLimit,
		chatLimit:    chatLimit,
		now:          time.Now,
	}
}

// ReplenishRateCounters is the 30-second pass: stale counters lose half
// their class limit (a smoothing decay, not a reset), then rows idle for a
// minute with nothing left to decay are garbage collected.
func (j *CleanupJob) ReplenishRateCounters(ctx context.Context) {
	now := j.now()

	decayCutoff := now.Add(-config.RateDecayWindow).UnixMilli()
	j.runCleanup(ctx, "rate counter decay", func(ctx context.Context) (int64, error) {
		return j.rateRepo.Decay(ctx, now.UnixMilli(), decayCutoff, j.generalLimit/2, j.chatLimit/2)
	})

	idleCutoff := now.Add(-config.RateIdleTTL).UnixMilli()
	j.runCleanup(ctx, "idle rate counters", func(ctx context.Context) (int64, error) {
		return j.rateRepo.DeleteIdle(ctx, idleCutoff)
	})
}

// Hourly sweeps expired sessions and emptied websocket registries.
func (j *CleanupJob) Hourly(ctx context.Context) {
	nowMillis := j.now().UnixMilli()
	j.runCleanup(ctx, "expired sessions", func(ctx context.Context) (int64, error) {
		return j.sessionRepo.DeleteExpired(ctx, nowMillis)
	})

	if purged := j.registry.PurgeEmpty(); purged > 0 {
		log.Info().Int("count", purged).Msg("cleaned up empty ws registries")
	}
}

// Daily forgives light abusers, trims the retained error log, and purges
// orphaned guests.
func (j *CleanupJob) Daily(ctx context.Context) {
	now := j.now()

	abuseCutoff := now.Add(-config.AbuseQuietPeriod).UnixMilli()
	j.runCleanup(ctx, "forgiven abuse records", func(ctx context.Context) (int64, error) {
		return j.abuseRepo.DeleteForgiven(ctx, config.AbuseForgiveCount, abuseCutoff)
	})

	errorCutoff := now.Add(-config.ErrorLogRetention).UnixMilli()
	j.runCleanup(ctx, "retained error log", func(ctx context.Context) (int64, error) {
		return j.errorRepo.DeleteOlderThan(ctx, errorCutoff)
	})

	j.runCleanup(ctx, "orphaned guests", j.guests.PurgeOrphanedGuests)
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
