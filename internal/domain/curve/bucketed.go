package curve

import (
	"math"
	"sort"

	"github.com/eraguess/eraguess/internal/domain/model"
)

// defaultPointCount is the target number of curve points for the bucketed
// strategy.
const defaultPointCount = 15

// BucketedSynthesizer selects K representative histogram buckets: the global
// min and max are always kept, the remaining slots are filled with the
// buckets whose cumulative percentiles sit closest to evenly spaced targets,
// then the selection is padded up to K points. When the histogram holds at
// most twice K buckets, the full set is thinned down to K instead by
// dropping the points that deviate least from their neighbors' linear
// interpolation.
type BucketedSynthesizer struct {
	pointCount int
}

// NewBucketedSynthesizer creates a bucketed synthesizer with options.
func NewBucketedSynthesizer(opts ...BucketedOption) *BucketedSynthesizer {
	s := &BucketedSynthesizer{
		pointCount: defaultPointCount,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BucketedOption applies a configuration option to the BucketedSynthesizer.
type BucketedOption func(*BucketedSynthesizer)

// WithPointCount sets the default target point count.
func WithPointCount(k int) BucketedOption {
	return func(s *BucketedSynthesizer) {
		if k >= 2 {
			s.pointCount = k
		}
	}
}

// rankedBucket carries a bucket plus its cumulative percentile.
type rankedBucket struct {
	score      int
	count      int64
	percentile float64
}

// Synthesize implements Synthesizer.
func (s *BucketedSynthesizer) Synthesize(hist Histogram, pointCount int) model.ProcessedDistribution {
	k := pointCount
	if k < 2 {
		k = s.pointCount
	}

	buckets := sortedBuckets(hist)
	total := totalCount(buckets)
	if total == 0 {
		return baseline()
	}

	ranked := make([]rankedBucket, len(buckets))
	var cum int64
	for i, b := range buckets {
		cum += b.Count
		ranked[i] = rankedBucket{
			score:      b.Score,
			count:      b.Count,
			percentile: float64(cum) / float64(total) * 100,
		}
	}

	var chosen []rankedBucket
	if len(ranked) <= 2*k {
		// Close to the target: start from every bucket and drop the ones
		// carrying the least shape information until k remain.
		chosen = thinToCount(append([]rankedBucket(nil), ranked...), k)
	} else {
		chosen = selectBuckets(ranked, k)
		chosen = padToCount(ranked, chosen, k)
	}

	points := make([]model.CurvePoint, len(chosen))
	for i, rb := range chosen {
		points[i] = model.CurvePoint{
			Score:      rb.score,
			Count:      rb.count,
			Percentile: rb.percentile,
		}
	}

	return model.ProcessedDistribution{
		Curve:             points,
		TotalParticipants: total,
		MinScore:          buckets[0].Score,
		MaxScore:          buckets[len(buckets)-1].Score,
		MedianScore:       medianScore(buckets, total),
	}
}

// selectBuckets keeps the endpoints and, for k-2 evenly spaced percentile
// targets, the bucket whose cumulative percentile is closest to each target.
// Duplicate picks collapse to a single point per score.
func selectBuckets(ranked []rankedBucket, k int) []rankedBucket {
	picked := make(map[int]rankedBucket)
	picked[ranked[0].score] = ranked[0]
	picked[ranked[len(ranked)-1].score] = ranked[len(ranked)-1]

	for i := 1; i <= k-2; i++ {
		target := float64(i) * 100 / float64(k-1)
		best := ranked[0]
		bestDist := math.Abs(best.percentile - target)
		for _, rb := range ranked[1:] {
			if d := math.Abs(rb.percentile - target); d < bestDist {
				best = rb
				bestDist = d
			}
		}
		picked[best.score] = best
	}

	out := make([]rankedBucket, 0, len(picked))
	for _, rb := range picked {
		out = append(out, rb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score < out[j].score })
	return out
}

// padToCount fills the selection up to k points by repeatedly finding the
// widest score gap between adjacent chosen points and inserting the real
// bucket closest to that gap's midpoint. Stops early when every bucket is
// already chosen.
func padToCount(ranked, chosen []rankedBucket, k int) []rankedBucket {
	inSet := make(map[int]bool, len(chosen))
	for _, rb := range chosen {
		inSet[rb.score] = true
	}

	for len(chosen) < k && len(chosen) < len(ranked) {
		gapIdx, gapWidth := -1, -1
		for i := 0; i+1 < len(chosen); i++ {
			if w := chosen[i+1].score - chosen[i].score; w > gapWidth {
				gapIdx, gapWidth = i, w
			}
		}
		if gapIdx < 0 {
			break
		}
		mid := float64(chosen[gapIdx].score+chosen[gapIdx+1].score) / 2

		var best *rankedBucket
		bestDist := math.Inf(1)
		for i := range ranked {
			rb := ranked[i]
			if inSet[rb.score] {
				continue
			}
			if d := math.Abs(float64(rb.score) - mid); d < bestDist {
				best = &ranked[i]
				bestDist = d
			}
		}
		if best == nil {
			break
		}
		inSet[best.score] = true
		chosen = append(chosen, *best)
		sort.Slice(chosen, func(i, j int) bool { return chosen[i].score < chosen[j].score })
	}
	return chosen
}

// thinToCount drops points down to k by repeatedly removing the non-endpoint
// point whose count deviates least from the linear interpolation of its
// neighbors, i.e. the point carrying the least shape information.
func thinToCount(chosen []rankedBucket, k int) []rankedBucket {
	for len(chosen) > k {
		dropIdx := -1
		dropDev := math.Inf(1)
		for i := 1; i+1 < len(chosen); i++ {
			prev, cur, next := chosen[i-1], chosen[i], chosen[i+1]
			span := float64(next.score - prev.score)
			var expected float64
			if span == 0 {
				expected = float64(prev.count)
			} else {
				frac := float64(cur.score-prev.score) / span
				expected = float64(prev.count) + frac*float64(next.count-prev.count)
			}
			if dev := math.Abs(float64(cur.count) - expected); dev < dropDev {
				dropIdx = i
				dropDev = dev
			}
		}
		if dropIdx < 0 {
			break
		}
		chosen = append(chosen[:dropIdx], chosen[dropIdx+1:]...)
	}
	return chosen
}
