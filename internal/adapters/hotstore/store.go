// Package hotstore defines the mutable challenge store contract and its
// BadgerDB implementation. The hot store holds live Challenge aggregates and
// the append-only raw guess events pending archival.
package hotstore

import (
	"context"

	"github.com/eraguess/eraguess/internal/domain/model"
)

// Store provides read/write access to challenges and staged guess events.
//
// Counter mutations (ApplyScore) are atomic under arbitrary interleaving.
// Derived-cache writes (SaveDerivedStats) are last-writer-wins by contract:
// the persisted derived snapshot may momentarily lag the counters.
type Store interface {
	// CreateChallenge inserts a new challenge for its date.
	// Returns ErrAlreadyExists when the date is taken.
	CreateChallenge(ctx context.Context, ch model.Challenge) error

	// GetChallenge returns the challenge for date.
	// Returns ErrNotFound when absent.
	GetChallenge(ctx context.Context, date string) (model.Challenge, error)

	// ApplyScore atomically increments completions and the matching score
	// bucket (inserting the bucket when absent) and returns the
	// post-increment document. Returns ErrNotFound when no active
	// challenge exists for date.
	ApplyScore(ctx context.Context, date string, score int) (model.Challenge, error)

	// SaveDerivedStats overwrites the derived average and processed
	// distribution. Not serialized against concurrent submitters.
	SaveDerivedStats(ctx context.Context, date string, avg float64, pd *model.ProcessedDistribution) error

	// SaveRoundStats fully overwrites the per-round guess distributions.
	SaveRoundStats(ctx context.Context, date string, rounds []model.RoundGuessDistribution) error

	// MarkFinalized flips the challenge's round stats to finalized.
	MarkFinalized(ctx context.Context, date string) error

	// AppendGuess stages one raw guess event. An empty event ID is
	// assigned on write.
	AppendGuess(ctx context.Context, ev model.RawGuessEvent) error

	// ListGuesses returns a snapshot of all staged events for date,
	// ordered by creation time then ID.
	ListGuesses(ctx context.Context, date string) ([]model.RawGuessEvent, error)

	// DeleteGuesses removes exactly the events with the given IDs for
	// date. Events not named are never touched.
	DeleteGuesses(ctx context.Context, date string, ids []string) error

	// ListChallengesBefore returns all challenges with a date strictly
	// before cutoff (YYYY-MM-DD).
	ListChallengesBefore(ctx context.Context, cutoff string) ([]model.Challenge, error)
}
