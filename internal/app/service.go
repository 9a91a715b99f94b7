// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eraguess/eraguess/internal/adapters/coldstore"
	"github.com/eraguess/eraguess/internal/adapters/hotstore"
	eventqueue "github.com/eraguess/eraguess/internal/adapters/mq/queue"
	workerpool "github.com/eraguess/eraguess/internal/adapters/mq/worker"
	"github.com/eraguess/eraguess/internal/archive"
	"github.com/eraguess/eraguess/internal/domain/curve"
	"github.com/eraguess/eraguess/internal/domain/distcache"
	"github.com/eraguess/eraguess/internal/domain/guesses"
	"github.com/eraguess/eraguess/internal/domain/model"
	"github.com/eraguess/eraguess/internal/domain/stats"
	"github.com/eraguess/eraguess/pkg/logger"
	"github.com/eraguess/eraguess/pkg/metrics"
)

// Service wires the hot store, cold storage, statistics, and archival
// components behind the operations the HTTP API needs.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       *hotstore.BadgerStore
	archive     coldstore.Archive
	cache       *distcache.Cache
	accumulator *stats.Accumulator
	aggregator  *guesses.Aggregator
	archiver    *archive.Archiver
	scheduler   *archive.Scheduler
	guessQueue  *eventqueue.InMemoryQueue
	workerPool  *workerpool.Pool

	// Configuration
	workerCount          int
	queueSize            int
	hotStorePath         string
	hotStoreInMemory     bool
	archiveBucket        string
	archivePrefix        string
	gcsCredentialsFile   string
	roundCount           int
	curveStrategy        string
	curvePointCount      int
	cacheTTL             time.Duration
	cacheSweepInterval   time.Duration
	sweepInterval        time.Duration
	ageThresholdDays     int
	emergencyCompletions int64

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of guess persistence workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the guess event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithHotStorePath sets the on-disk BadgerDB directory.
func WithHotStorePath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.hotStorePath = path
		}
	}
}

// WithInMemoryHotStore runs the hot store without persistence.
func WithInMemoryHotStore(inMemory bool) Option {
	return func(s *Service) {
		s.hotStoreInMemory = inMemory
	}
}

// WithArchiveBucket sets the cold storage bucket. When empty, archived
// batches are kept in an in-process archive.
func WithArchiveBucket(bucket string) Option {
	return func(s *Service) {
		s.archiveBucket = bucket
	}
}

// WithArchivePrefix sets the object key prefix used in cold storage.
func WithArchivePrefix(prefix string) Option {
	return func(s *Service) {
		if prefix != "" {
			s.archivePrefix = prefix
		}
	}
}

// WithGCSCredentialsFile points the archive client at a service account key.
func WithGCSCredentialsFile(path string) Option {
	return func(s *Service) {
		s.gcsCredentialsFile = path
	}
}

// WithRoundCount sets the number of rounds per challenge.
func WithRoundCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.roundCount = count
		}
	}
}

// WithCurveStrategy selects the distribution synthesizer: "bucketed" or "kde".
func WithCurveStrategy(strategy string) Option {
	return func(s *Service) {
		if strategy != "" {
			s.curveStrategy = strategy
		}
	}
}

// WithCurvePointCount sets the target point count for the bucketed strategy.
func WithCurvePointCount(count int) Option {
	return func(s *Service) {
		if count > 1 {
			s.curvePointCount = count
		}
	}
}

// WithCacheTTL tunes the distribution read cache.
func WithCacheTTL(ttl, sweepInterval time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
		if sweepInterval > 0 {
			s.cacheSweepInterval = sweepInterval
		}
	}
}

// WithSweepSchedule tunes the archival sweep.
func WithSweepSchedule(interval time.Duration, ageThresholdDays int) Option {
	return func(s *Service) {
		if interval > 0 {
			s.sweepInterval = interval
		}
		if ageThresholdDays >= 0 {
			s.ageThresholdDays = ageThresholdDays
		}
	}
}

// WithEmergencyCompletions sets the completions count that triggers inline
// archival. Zero disables the trigger.
func WithEmergencyCompletions(count int64) Option {
	return func(s *Service) {
		if count >= 0 {
			s.emergencyCompletions = count
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:          runtime.NumCPU() * 4,
		queueSize:            100000,
		hotStorePath:         "data/hotstore",
		archivePrefix:        "challenges",
		roundCount:           5,
		curveStrategy:        "bucketed",
		curvePointCount:      15,
		cacheTTL:             30 * time.Second,
		cacheSweepInterval:   10 * time.Second,
		sweepInterval:        15 * time.Minute,
		ageThresholdDays:     2,
		emergencyCompletions: 1_000_000,
		logger:               nil, // Will be replaced when service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting challenge stats service...")

	store, err := hotstore.NewBadgerStore(
		hotstore.WithPath(s.hotStorePath),
		hotstore.WithInMemory(s.hotStoreInMemory),
	)
	if err != nil {
		return fmt.Errorf("open hot store: %w", err)
	}
	s.store = store

	if s.archiveBucket != "" {
		var gcsOpts []coldstore.GCSOption
		if s.gcsCredentialsFile != "" {
			gcsOpts = append(gcsOpts, coldstore.WithCredentialsFile(s.gcsCredentialsFile))
		}
		arch, err := coldstore.NewGCSArchive(ctx, s.archiveBucket, gcsOpts...)
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("open archive bucket: %w", err)
		}
		s.archive = arch
		s.logger.Info(ctx, "using gcs archive", logger.String("bucket", s.archiveBucket))
	} else {
		s.archive = coldstore.NewMemoryArchive()
		s.logger.Warn(ctx, "no archive bucket configured, archived batches are not durable")
	}

	var synth curve.Synthesizer
	switch s.curveStrategy {
	case "kde":
		synth = curve.NewKDESynthesizer()
	default:
		synth = curve.NewBucketedSynthesizer(curve.WithPointCount(s.curvePointCount))
	}

	s.cache = distcache.New(
		distcache.WithTTL(s.cacheTTL),
		distcache.WithSweepInterval(s.cacheSweepInterval),
	)
	s.accumulator = stats.New(store, synth, stats.WithCache(s.cache))
	s.aggregator = guesses.NewAggregator(store, guesses.WithRoundCount(s.roundCount))
	s.archiver = archive.New(store, s.archive, s.aggregator, archive.WithPrefix(s.archivePrefix))
	s.scheduler = archive.NewScheduler(s.archiver, store,
		archive.WithSweepInterval(s.sweepInterval),
		archive.WithAgeThresholdDays(s.ageThresholdDays),
	)

	s.guessQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithBufferSize(s.queueSize),
	)
	s.workerPool = workerpool.NewPool(s.workerCount, s.guessQueue, store)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.workerPool.Start(runCtx)
	s.scheduler.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "challenge stats service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("curveStrategy", s.curveStrategy),
		logger.Int("roundCount", s.roundCount),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping challenge stats service...")

	// Close the queue first so the workers drain what is left
	if s.guessQueue != nil {
		_ = s.guessQueue.Close()
	}
	if s.workerPool != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		_ = s.workerPool.Shutdown(shutdownCtx)
		cancel()
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.cache != nil {
		s.cache.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if closer, ok := s.archive.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "challenge stats service stopped")
}

// CreateChallenge registers a new challenge for date.
func (s *Service) CreateChallenge(ctx context.Context, date string) error {
	if _, err := model.ParseDate(date); err != nil {
		return fmt.Errorf("%w: bad date %q: %w", stats.ErrValidation, date, err)
	}
	err := s.store.CreateChallenge(ctx, model.Challenge{
		Date:   date,
		Active: true,
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "challenge created", logger.String("date", date))
	return nil
}

// SubmitScore folds one completion into the challenge for date and returns
// the refreshed statistics. When the day's completions reach the emergency
// threshold the full archival transition runs inline on this request.
func (s *Service) SubmitScore(ctx context.Context, date string, score int) (stats.Result, error) {
	result, err := s.accumulator.SubmitScore(ctx, date, score)
	if err != nil {
		return stats.Result{}, err
	}

	if s.emergencyCompletions > 0 && result.Completions >= s.emergencyCompletions {
		s.archiveEmergency(ctx, date, result.Completions)
	}

	return result, nil
}

// archiveEmergency runs the archival transition inline. Failures are logged,
// not surfaced: the score submission itself already succeeded, and the sweep
// retries archival later.
func (s *Service) archiveEmergency(ctx context.Context, date string, completions int64) {
	err := s.archiver.Finalize(ctx, date)
	switch {
	case err == nil:
		metrics.RecordEmergencyFinalization()
		s.logger.Warn(ctx, "emergency archival completed",
			logger.String("date", date),
			logger.Int64("completions", completions),
		)
	case errors.Is(err, archive.ErrStaleState):
		// Already finalized, nothing to do.
	default:
		s.logger.Error(ctx, "emergency archival failed",
			logger.String("date", date),
			logger.Error(err),
		)
	}
}

// GetDistribution returns the synthesized distribution for date. A non-nil
// userScore adds that caller's percentile rank to the response.
func (s *Service) GetDistribution(ctx context.Context, date string, userScore *int, pointCount int) (model.ProcessedDistribution, error) {
	if pointCount <= 0 {
		pointCount = s.curvePointCount
	}
	return s.accumulator.GetDistribution(ctx, date, userScore, pointCount)
}

// EnqueueGuess validates and stages one year guess for asynchronous
// persistence. Returns the assigned event ID.
func (s *Service) EnqueueGuess(ctx context.Context, date string, roundIndex, guessedYear int) (string, error) {
	if _, err := model.ParseDate(date); err != nil {
		return "", fmt.Errorf("%w: bad date %q: %w", stats.ErrValidation, date, err)
	}
	if roundIndex < 0 || roundIndex >= s.roundCount {
		return "", fmt.Errorf("%w: round index %d out of range [0, %d)", stats.ErrValidation, roundIndex, s.roundCount)
	}
	if guessedYear < model.MinGuessYear || guessedYear > model.MaxGuessYear {
		return "", fmt.Errorf("%w: guessed year %d out of range [%d, %d]",
			stats.ErrValidation, guessedYear, model.MinGuessYear, model.MaxGuessYear)
	}

	ev := model.RawGuessEvent{
		ID:            uuid.NewString(),
		ChallengeDate: date,
		RoundIndex:    roundIndex,
		GuessedYear:   guessedYear,
		CreatedAt:     time.Now().UTC(),
	}
	if !s.guessQueue.Enqueue(ctx, ev) {
		return "", ErrQueueFull
	}
	return ev.ID, nil
}

// RecomputeRoundStats rebuilds the per-round guess curves for date from the
// currently staged events.
func (s *Service) RecomputeRoundStats(ctx context.Context, date string) error {
	return s.aggregator.Recompute(ctx, date)
}

// ArchiveChallenge runs the full archival transition for date immediately.
func (s *Service) ArchiveChallenge(ctx context.Context, date string) error {
	return s.archiver.Finalize(ctx, date)
}

// RunArchivalSweep triggers one sweep pass immediately and returns the
// number of challenges processed.
func (s *Service) RunArchivalSweep(ctx context.Context) (int, error) {
	return s.scheduler.RunSweep(ctx)
}

// GetChallenge returns the stored challenge document for date.
func (s *Service) GetChallenge(ctx context.Context, date string) (model.Challenge, error) {
	return s.store.GetChallenge(ctx, date)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	st := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"curveStrategy": s.curveStrategy,
		"roundCount":    s.roundCount,
	}

	if s.started {
		queueLen := s.guessQueue.Len(ctx)
		st["queueLength"] = queueLen

		if pending, err := s.store.CountGuesses(ctx); err == nil {
			st["pendingGuesses"] = pending
			metrics.UpdateGuessesPending(pending)
		}

		if challenges, err := s.store.ListChallengesBefore(ctx, "9999-12-31"); err == nil {
			active := 0
			for _, ch := range challenges {
				if ch.Active && !ch.RoundStatsFinalized {
					active++
				}
			}
			st["activeChallenges"] = active
			metrics.UpdateActiveChallenges(active)
		}
	}

	return st
}
