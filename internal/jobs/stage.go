package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hangplan/hangout-server/internal/model"
	"github.com/hangplan/hangout-server/internal/observability"
	"github.com/hangplan/hangout-server/internal/repository"
	"github.com/hangplan/hangout-server/internal/ws"
)

// Broadcaster is the fan-out surface StageJob pushes notifications through.
type Broadcaster interface {
	Broadcast(hangoutID string, env ws.Envelope)
}

// StageJob is the hangout state machine. Each tick runs four independent
// operations in order; one failing does not block the rest, and the next
// tick retries naturally.
type StageJob struct {
	hangoutRepo repository.HangoutRepository
	eventRepo   repository.EventLogRepository
	errorRepo   repository.ErrorLogRepository
	broadcaster Broadcaster
	now         func() time.Time
}

func NewStageJob(
	hangoutRepo repository.HangoutRepository,
	eventRepo repository.EventLogRepository,
	errorRepo repository.ErrorLogRepository,
	broadcaster Broadcaster,
) *StageJob {
	return &StageJob{
		hangoutRepo: hangoutRepo,
		eventRepo:   eventRepo,
		errorRepo:   errorRepo,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

func (j *StageJob) Tick(ctx context.Context) {
	j.runTask(ctx, "advance stages", j.advanceStages)
	j.runTask(ctx, "conclude zero-suggestion hangouts", func(ctx context.Context) error {
		return j.concludeBySuggestionCount(ctx, 0, model.EventConcludedNoOptions)
	})
	j.runTask(ctx, "conclude single-suggestion hangouts", func(ctx context.Context) error {
		return j.concludeBySuggestionCount(ctx, 1, model.EventConcludedOneOption)
	})
	j.runTask(ctx, "reap memberless hangouts", j.reapMemberless)
}

// runTask is the failure boundary around one tick operation. Errors are
// logged and persisted for audit, never propagated to sibling tasks.
func (j *StageJob) runTask(ctx context.Context, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("job", name).Msg("stage tick task failed")
		if logErr := j.errorRepo.Append(ctx, name, err.Error(), j.now().UnixMilli()); logErr != nil {
			log.Error().Err(logErr).Str("job", name).Msg("failed to persist error log entry")
		}
	}
}

// advanceStages moves every due hangout forward one stage in a single bulk
// statement. Every transition broadcasts so dashboard timers stay current;
// transitions landing on the final stage additionally get an event-log row
// and a conclusion broadcast.
func (j *StageJob) advanceStages(ctx context.Context) error {
	now := j.now().UnixMilli()

	transitions, err := j.hangoutRepo.AdvanceDue(ctx, now)
	if err != nil {
		return fmt.Errorf("advance due hangouts: %w", err)
	}

	for _, t := range transitions {
		observability.IncStageTransition(strconv.Itoa(int(t.NewStage)))

		if t.Concluded() {
			j.logAndAnnounceConclusion(ctx, t.HangoutID, model.EventAutoConcluded, "voting stage elapsed", now)
			continue
		}

		j.broadcaster.Broadcast(t.HangoutID, ws.Envelope{
			Type:   ws.TypeNewData,
			Reason: ws.ReasonStageChange,
			Data: map[string]any{
				"hangoutId":    t.HangoutID,
				"currentStage": int(t.NewStage),
			},
		})
	}

	if len(transitions) > 0 {
		log.Info().Int("count", len(transitions)).Msg("hangout stages advanced")
	}
	return nil
}

// concludeBySuggestionCount force-concludes voting-stage hangouts whose
// suggestion count makes voting pointless: nothing to vote on, or a single
// candidate that wins by default.
func (j *StageJob) concludeBySuggestionCount(ctx context.Context, count int, eventType model.HangoutEventType) error {
	now := j.now().UnixMilli()

	ids, err := j.hangoutRepo.ConcludeVotingBySuggestionCount(ctx, now, count)
	if err != nil {
		return fmt.Errorf("conclude hangouts with %d suggestions: %w", count, err)
	}

	for _, id := range ids {
		observability.IncStageTransition(strconv.Itoa(int(model.StageConcluded)))
		j.logAndAnnounceConclusion(ctx, id, eventType, fmt.Sprintf("voting skipped with %d suggestions", count), now)
	}

	if len(ids) > 0 {
		log.Info().Int("count", len(ids)).Int("suggestions", count).Msg("hangouts force-concluded")
	}
	return nil
}

func (j *StageJob) reapMemberless(ctx context.Context) error {
	ids, err := j.hangoutRepo.DeleteMemberless(ctx)
	if err != nil {
		return fmt.Errorf("delete memberless hangouts: %w", err)
	}
	if len(ids) > 0 {
		log.Info().Int("count", len(ids)).Msg("memberless hangouts deleted")
	}
	return nil
}

// logAndAnnounceConclusion writes exactly one event-log row and sends
// exactly one broadcast for a concluded hangout.
func (j *StageJob) logAndAnnounceConclusion(ctx context.Context, hangoutID string, eventType model.HangoutEventType, detail string, nowMillis int64) {
	if err := j.eventRepo.Append(ctx, hangoutID, eventType, detail, nowMillis); err != nil {
		log.Error().Err(err).Str("hangoutId", hangoutID).Msg("failed to append conclusion event")
	}

	j.broadcaster.Broadcast(hangoutID, ws.Envelope{
		Type:   ws.TypeNewData,
		Reason: ws.ReasonHangoutConcluded,
		Data: map[string]any{
			"hangoutId":           hangoutID,
			"currentStage":        int(model.StageConcluded),
			"conclusionTimestamp": nowMillis,
		},
	})
}
