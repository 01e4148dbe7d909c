package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// JobFunc is one scheduled unit of work. Implementations own their error
// handling; a failed run is retried naturally on the next cadence.
type JobFunc func(ctx context.Context)

// Scheduler registers recurring jobs. It exists so job logic stays testable
// without wall-clock coupling to any one timer implementation.
type Scheduler interface {
	Register(name string, interval time.Duration, fn JobFunc)
	Start()
	Stop()
}

type tickerJob struct {
	name     string
	interval time.Duration
	fn       JobFunc
}

// TickerScheduler runs each registered job on its own ticker, once
// immediately on start and then on cadence, each run under a bounded context.
type TickerScheduler struct {
	jobs    []tickerJob
	timeout time.Duration
	done    chan struct{}
	wg      sync.WaitGroup
	started bool
}

func NewTickerScheduler(runTimeout time.Duration) *TickerScheduler {
	return &TickerScheduler{
		timeout: runTimeout,
		done:    make(chan struct{}),
	}
}

func (s *TickerScheduler) Register(name string, interval time.Duration, fn JobFunc) {
	s.jobs = append(s.jobs, tickerJob{name: name, interval: interval, fn: fn})
}

func (s *TickerScheduler) Start() {
	if s.started {
		return
	}
	s.started = true

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.run(job)
		log.Info().Str("job", job.name).Dur("interval", job.interval).Msg("job registered")
	}
}

func (s *TickerScheduler) Stop() {
	if !s.started {
		return
	}
	close(s.done)
	s.wg.Wait()
	log.Info().Msg("scheduler stopped")
}

func (s *TickerScheduler) run(job tickerJob) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()

	s.invoke(job)

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.invoke(job)
		}
	}
}

func (s *TickerScheduler) invoke(job tickerJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	job.fn(ctx)
}
