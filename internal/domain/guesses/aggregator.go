// Package guesses recomputes per-round guess-frequency curves from the raw
// events staged in the hot store.
package guesses

import (
	"context"
	"sort"

	"github.com/eraguess/eraguess/internal/adapters/hotstore"
	"github.com/eraguess/eraguess/internal/domain/model"
	"github.com/eraguess/eraguess/pkg/logger"
)

// defaultRoundCount is the number of rounds per challenge.
const defaultRoundCount = 5

// Aggregator rebuilds the round guess distributions for a challenge.
type Aggregator struct {
	store      hotstore.Store
	roundCount int
	logger     logger.Logger
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithRoundCount sets the number of rounds per challenge.
func WithRoundCount(r int) Option {
	return func(a *Aggregator) {
		if r > 0 {
			a.roundCount = r
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator creates an Aggregator over store.
func NewAggregator(store hotstore.Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:      store,
		roundCount: defaultRoundCount,
		logger:     logger.Get().Named("guesses"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recompute fully rebuilds and overwrites the stored per-round array from
// whatever raw events currently exist. Calling it again on an unchanged
// event set produces identical output, so late arrivals are folded in by
// simply re-invoking it.
func (a *Aggregator) Recompute(ctx context.Context, date string) error {
	events, err := a.store.ListGuesses(ctx, date)
	if err != nil {
		return err
	}
	rounds := ComputeRounds(events, a.roundCount)
	return a.store.SaveRoundStats(ctx, date, rounds)
}

// ComputeRounds groups events by round index and summarizes each round that
// received at least one guess. Rounds with zero guesses are omitted, not
// zero-filled. Events with an out-of-range round index are dropped.
func ComputeRounds(events []model.RawGuessEvent, roundCount int) []model.RoundGuessDistribution {
	byRound := make([][]int, roundCount)
	for _, ev := range events {
		if ev.RoundIndex < 0 || ev.RoundIndex >= roundCount {
			continue
		}
		byRound[ev.RoundIndex] = append(byRound[ev.RoundIndex], ev.GuessedYear)
	}

	var out []model.RoundGuessDistribution
	for idx, years := range byRound {
		if len(years) == 0 {
			continue
		}
		out = append(out, summarizeRound(idx, years))
	}
	return out
}

func summarizeRound(idx int, years []int) model.RoundGuessDistribution {
	sort.Ints(years)
	total := len(years)

	counts := make(map[int]int)
	for _, y := range years {
		counts[y]++
	}
	distinct := make([]int, 0, len(counts))
	for y := range counts {
		distinct = append(distinct, y)
	}
	sort.Ints(distinct)

	points := make([]model.GuessCurvePoint, len(distinct))
	for i, y := range distinct {
		points[i] = model.GuessCurvePoint{
			GuessedYear: y,
			Density:     float64(counts[y]) / float64(total),
		}
	}

	return model.RoundGuessDistribution{
		RoundIndex:   idx,
		CurvePoints:  points,
		TotalGuesses: total,
		MinGuess:     years[0],
		MaxGuess:     years[total-1],
		MedianGuess:  medianYears(years),
	}
}

// medianYears computes the median over the full expanded guess list: the
// mean of the two middle elements when the count is even.
func medianYears(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
