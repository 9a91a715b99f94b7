package archive

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eraguess/eraguess/internal/adapters/hotstore"
	"github.com/eraguess/eraguess/internal/domain/model"
	"github.com/eraguess/eraguess/pkg/logger"
	"github.com/eraguess/eraguess/pkg/metrics"
)

const (
	defaultSweepInterval    = 15 * time.Minute
	defaultAgeThresholdDays = 2
)

// Scheduler periodically sweeps challenges old enough to archive. Each sweep
// walks every challenge dated before today minus the age threshold:
// collecting challenges are finalized, finalized ones have pending deltas
// flushed. Failures are isolated per challenge so one bad date never blocks
// the rest.
type Scheduler struct {
	archiver *Archiver
	store    hotstore.Store

	interval time.Duration
	ageDays  int
	nowFn    func() time.Time
	logger   logger.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// SchedulerOption applies a configuration option to the Scheduler.
type SchedulerOption func(*Scheduler)

// WithSweepInterval sets how often the sweep runs.
func WithSweepInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithAgeThresholdDays sets how many days old a challenge must be before it
// is swept.
func WithAgeThresholdDays(days int) SchedulerOption {
	return func(s *Scheduler) {
		if days >= 0 {
			s.ageDays = days
		}
	}
}

// WithSchedulerLogger sets a custom logger.
func WithSchedulerLogger(l logger.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// withNow overrides the clock. Used by tests.
func withNow(fn func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.nowFn = fn
	}
}

// NewScheduler creates a Scheduler. Call Start to begin sweeping.
func NewScheduler(archiver *Archiver, store hotstore.Store, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		archiver: archiver,
		store:    store,
		interval: defaultSweepInterval,
		ageDays:  defaultAgeThresholdDays,
		nowFn:    time.Now,
		logger:   logger.Get().Named("archive-sweep"),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the periodic sweep goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop terminates the sweep goroutine and waits for an in-flight sweep to
// finish. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunSweep(ctx); err != nil {
				s.logger.Error(ctx, "archival sweep failed", logger.Error(err))
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunSweep performs one sweep pass and returns the number of challenges it
// transitioned or flushed. A failure on one challenge is logged and counted
// but does not stop the pass; only a failure to list challenges is returned.
func (s *Scheduler) RunSweep(ctx context.Context) (int, error) {
	start := time.Now()
	metrics.RecordSweepRun()

	cutoff := s.nowFn().UTC().AddDate(0, 0, -s.ageDays).Format(model.DateLayout)
	challenges, err := s.store.ListChallengesBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, ch := range challenges {
		if err := s.sweepOne(ctx, ch); err != nil {
			metrics.RecordSweepChallengeFailure()
			s.logger.Error(ctx, "challenge sweep failed",
				logger.String("date", ch.Date),
				logger.Error(err),
			)
			continue
		}
		processed++
	}

	metrics.RecordSweepDuration(float64(time.Since(start).Milliseconds()))
	s.logger.Info(ctx, "archival sweep complete",
		logger.String("cutoff", cutoff),
		logger.Int("candidates", len(challenges)),
		logger.Int("processed", processed),
	)
	return processed, nil
}

func (s *Scheduler) sweepOne(ctx context.Context, ch model.Challenge) error {
	if !ch.RoundStatsFinalized {
		err := s.archiver.Finalize(ctx, ch.Date)
		if errors.Is(err, ErrStaleState) {
			// Finalized between the listing and now; flush deltas instead.
			return s.archiver.ArchiveDeltas(ctx, ch.Date)
		}
		return err
	}
	return s.archiver.ArchiveDeltas(ctx, ch.Date)
}
