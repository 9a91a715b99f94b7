// Package curve turns score histograms into percentile ranks and display
// curves. Two synthesis strategies exist behind one interface: bucketed
// selection and kernel density estimation. They are alternatives, selected
// by configuration, and are never blended.
package curve

import (
	"math"
	"sort"

	"github.com/eraguess/eraguess/internal/domain/model"
)

// Domain bounds for the score axis.
const (
	DomainMin = 0
	DomainMax = model.MaxScore
)

// Histogram maps a score to its occurrence count.
type Histogram map[int]int64

// Synthesizer computes the derived distribution view from a histogram.
// pointCount is advisory; implementations with a fixed sampling grid may
// ignore it. pointCount <= 0 selects the implementation default.
type Synthesizer interface {
	Synthesize(hist Histogram, pointCount int) model.ProcessedDistribution
}

// PercentileRank computes the displayed "top X%" rank for score against the
// post-increment histogram. below counts entries strictly less, equal counts
// the score's own bucket. The raw rank rounds half-up; only ranks of 50 or
// better are surfaced, worse ranks return nil.
func PercentileRank(hist Histogram, score int) *int {
	var below, equal, total int64
	for s, c := range hist {
		total += c
		switch {
		case s < score:
			below += c
		case s == score:
			equal += c
		}
	}
	if total == 0 {
		return nil
	}
	raw := int(math.Floor((float64(below)+float64(equal)/2)/float64(total)*100 + 0.5))
	displayed := 100 - raw
	if displayed > 50 {
		return nil
	}
	return &displayed
}

// sortedBuckets flattens the histogram into buckets ordered by score.
func sortedBuckets(hist Histogram) []model.ScoreBucket {
	buckets := make([]model.ScoreBucket, 0, len(hist))
	for s, c := range hist {
		if c <= 0 {
			continue
		}
		buckets = append(buckets, model.ScoreBucket{Score: s, Count: c})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Score < buckets[j].Score })
	return buckets
}

func totalCount(buckets []model.ScoreBucket) int64 {
	var t int64
	for _, b := range buckets {
		t += b.Count
	}
	return t
}

// medianScore is the first score whose cumulative count reaches half the
// population (floor division).
func medianScore(buckets []model.ScoreBucket, total int64) int {
	half := total / 2
	var cum int64
	for _, b := range buckets {
		cum += b.Count
		if cum >= half {
			return b.Score
		}
	}
	if len(buckets) > 0 {
		return buckets[len(buckets)-1].Score
	}
	return 0
}

// baseline is the two-point curve returned for an empty histogram.
func baseline() model.ProcessedDistribution {
	return model.ProcessedDistribution{
		Curve: []model.CurvePoint{
			{Score: DomainMin, Percentile: 0},
			{Score: DomainMax, Percentile: 100},
		},
	}
}
