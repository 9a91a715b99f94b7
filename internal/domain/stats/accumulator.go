// Package stats implements the online score accumulator: atomic histogram
// updates on submission followed by a lock-free recompute of the derived
// distribution view.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/eraguess/eraguess/internal/adapters/hotstore"
	"github.com/eraguess/eraguess/internal/domain/curve"
	"github.com/eraguess/eraguess/internal/domain/model"
	"github.com/eraguess/eraguess/pkg/logger"
	"github.com/eraguess/eraguess/pkg/metrics"
)

// Result is the submission response payload.
type Result struct {
	AverageScore float64                     `json:"average_score"`
	Completions  int64                       `json:"completions"`
	Distribution model.ProcessedDistribution `json:"processed_distribution"`
}

// Cache holds synthesized distributions for the read path. Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(date string, pointCount int) (model.ProcessedDistribution, bool)
	Set(date string, pointCount int, pd model.ProcessedDistribution)
	Invalidate(date string)
}

// Accumulator folds score submissions into the challenge histogram and keeps
// the derived distribution view fresh.
type Accumulator struct {
	store  hotstore.Store
	synth  curve.Synthesizer
	cache  Cache
	logger logger.Logger
}

// Option applies a configuration option to the Accumulator.
type Option func(*Accumulator)

// WithCache sets the distribution cache used by the read path.
func WithCache(c Cache) Option {
	return func(a *Accumulator) {
		if c != nil {
			a.cache = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Accumulator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Accumulator over store using synth for curve synthesis.
func New(store hotstore.Store, synth curve.Synthesizer, opts ...Option) *Accumulator {
	a := &Accumulator{
		store:  store,
		synth:  synth,
		logger: logger.Get().Named("stats"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SubmitScore validates and applies one submission. The counter increments
// are atomic in the store; the subsequent average and curve recompute is a
// plain read-modify-write, so under concurrent submissions the persisted
// derived view reflects whichever recompute wrote last. Only the counters
// are correctness-critical.
func (a *Accumulator) SubmitScore(ctx context.Context, date string, score int) (Result, error) {
	if score < 0 || score > model.MaxScore {
		metrics.RecordScoreError()
		return Result{}, fmt.Errorf("%w: score %d out of range [0, %d]", ErrValidation, score, model.MaxScore)
	}
	normalized, err := model.ParseDate(date)
	if err != nil {
		metrics.RecordScoreError()
		return Result{}, fmt.Errorf("%w: bad date %q: %w", ErrValidation, date, err)
	}

	ch, err := a.store.ApplyScore(ctx, normalized, score)
	if err != nil {
		metrics.RecordScoreError()
		return Result{}, err
	}

	hist := histogramOf(ch)
	avg := averageScore(hist, ch.Stats.Completions)
	pd := a.synthesize(hist, 0)

	if err := a.store.SaveDerivedStats(ctx, normalized, avg, &pd); err != nil {
		metrics.RecordScoreError()
		return Result{}, err
	}
	if a.cache != nil {
		a.cache.Invalidate(normalized)
	}

	// The returned view carries the submitter's rank; the persisted cache
	// stays user-independent.
	out := pd
	if rank := curve.PercentileRank(hist, score); rank != nil {
		out.PercentileRank = rank
		metrics.RecordPercentileShown()
	} else {
		metrics.RecordPercentileHidden()
	}

	metrics.RecordScoreSubmitted()
	metrics.UpdateCompletionsTotal(ch.Stats.Completions)

	return Result{
		AverageScore: avg,
		Completions:  ch.Stats.Completions,
		Distribution: out,
	}, nil
}

// GetDistribution synthesizes the current distribution view. userScore, when
// supplied, adds the caller's percentile rank; pointCount <= 0 selects the
// synthesizer default. Rankless reads are served from the cache when warm.
func (a *Accumulator) GetDistribution(ctx context.Context, date string, userScore *int, pointCount int) (model.ProcessedDistribution, error) {
	normalized, err := model.ParseDate(date)
	if err != nil {
		return model.ProcessedDistribution{}, fmt.Errorf("%w: bad date %q: %w", ErrValidation, date, err)
	}
	if userScore != nil && (*userScore < 0 || *userScore > model.MaxScore) {
		return model.ProcessedDistribution{}, fmt.Errorf("%w: score %d out of range [0, %d]", ErrValidation, *userScore, model.MaxScore)
	}
	metrics.RecordDistributionRead()

	if userScore == nil && a.cache != nil {
		if pd, ok := a.cache.Get(normalized, pointCount); ok {
			return pd, nil
		}
	}

	ch, err := a.store.GetChallenge(ctx, normalized)
	if err != nil {
		return model.ProcessedDistribution{}, err
	}

	hist := histogramOf(ch)
	pd := a.synthesize(hist, pointCount)

	if userScore == nil {
		if a.cache != nil {
			a.cache.Set(normalized, pointCount, pd)
		}
		return pd, nil
	}

	pd.PercentileRank = curve.PercentileRank(hist, *userScore)
	return pd, nil
}

func (a *Accumulator) synthesize(hist curve.Histogram, pointCount int) model.ProcessedDistribution {
	start := time.Now()
	pd := a.synth.Synthesize(hist, pointCount)
	metrics.RecordSynthesisLatency(float64(time.Since(start).Milliseconds()))
	return pd
}

// histogramOf flattens the challenge's score buckets into a histogram.
func histogramOf(ch model.Challenge) curve.Histogram {
	hist := make(curve.Histogram, len(ch.Stats.Distributions))
	for _, b := range ch.Stats.Distributions {
		hist[b.Score] += b.Count
	}
	return hist
}

// averageScore recomputes the mean from the histogram counters.
func averageScore(hist curve.Histogram, completions int64) float64 {
	if completions <= 0 {
		return 0
	}
	var sum int64
	for score, count := range hist {
		sum += int64(score) * count
	}
	return float64(sum) / float64(completions)
}
