// Package model contains domain models passed between layers.
package model

import (
	"time"
)

// DateLayout is the canonical challenge date format (one challenge per day).
const DateLayout = "2006-01-02"

// MaxScore bounds the score domain. Scores are integers in [0, MaxScore].
const MaxScore = 5000

// MinGuessYear and MaxGuessYear bound the year domain for round guesses.
const (
	MinGuessYear = 1000
	MaxGuessYear = 5000
)

// ParseDate validates and normalizes a challenge date string.
func ParseDate(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// Challenge is the per-day aggregate and the single source of truth for
// derived stats. Raw guess events are staging data owned by the challenge
// that shares their date.
type Challenge struct {
	Date                string         `json:"date"`
	Active              bool           `json:"active"`
	RoundStatsFinalized bool           `json:"round_stats_finalized"`
	Stats               ChallengeStats `json:"stats"`
}

// ChallengeStats holds the per-challenge counters and derived caches.
type ChallengeStats struct {
	// Distributions maps score -> count, at most one bucket per score.
	// Invariant: sum of Counts equals Completions.
	Distributions []ScoreBucket `json:"distributions"`

	Completions  int64   `json:"completions"`
	AverageScore float64 `json:"average_score"`

	// ProcessedDistribution is a derived cache, recomputed after every
	// submission; never independently authoritative.
	ProcessedDistribution *ProcessedDistribution `json:"processed_distribution,omitempty"`

	// RoundGuessDistributions holds one entry per round index that received
	// at least one guess; rounds with zero guesses are omitted.
	RoundGuessDistributions []RoundGuessDistribution `json:"round_guess_distributions,omitempty"`
}

// ScoreBucket is one histogram entry.
type ScoreBucket struct {
	Score int   `json:"score"`
	Count int64 `json:"count"`
}

// BucketCount returns the count recorded for score, or zero.
func (s *ChallengeStats) BucketCount(score int) int64 {
	for _, b := range s.Distributions {
		if b.Score == score {
			return b.Count
		}
	}
	return 0
}

// CurvePoint is one sample of the score distribution's display curve.
type CurvePoint struct {
	Score      int     `json:"score"`
	Count      int64   `json:"count"`
	Density    float64 `json:"density"`
	Percentile float64 `json:"percentile"`
}

// ProcessedDistribution is the derived view of the score histogram.
type ProcessedDistribution struct {
	// PercentileRank is the "top X%" rank for a user-supplied score.
	// Only populated when a score was supplied and the rank is 50 or better.
	PercentileRank *int `json:"percentile_rank,omitempty"`

	Curve             []CurvePoint `json:"curve"`
	TotalParticipants int64        `json:"total_participants"`
	MinScore          int          `json:"min_score"`
	MaxScore          int          `json:"max_score"`
	MedianScore       int          `json:"median_score"`
}

// RawGuessEvent is one per-round year guess, appended by the gameplay layer.
// It exists in the hot store only until archived.
type RawGuessEvent struct {
	ID            string    `json:"id"`
	ChallengeDate string    `json:"challenge_date"`
	RoundIndex    int       `json:"round_index"`
	GuessedYear   int       `json:"guessed_year"`
	CreatedAt     time.Time `json:"created_at"`
}

// GuessCurvePoint is one sample of a round's guess-frequency curve.
type GuessCurvePoint struct {
	GuessedYear int     `json:"guessed_year"`
	Density     float64 `json:"density"`
}

// RoundGuessDistribution summarizes the year guesses of one round.
type RoundGuessDistribution struct {
	RoundIndex   int               `json:"round_index"`
	CurvePoints  []GuessCurvePoint `json:"curve_points"`
	TotalGuesses int               `json:"total_guesses"`
	MinGuess     int               `json:"min_guess"`
	MaxGuess     int               `json:"max_guess"`
	MedianGuess  float64           `json:"median_guess"`
}
