package curve

import (
	"math"

	"github.com/eraguess/eraguess/internal/domain/model"
)

// KDE sampling constants. The grid and bandwidth are fixed so curves from
// different challenges stay directly comparable.
const (
	defaultKDEStep      = 50
	defaultKDEBandwidth = 150.0
)

// KDESynthesizer evaluates a Gaussian kernel density estimate over the full
// score domain at a fixed step, normalizes the samples so the peak density
// equals 1.0, and annotates each sample with the cumulative empirical
// percentile of the underlying histogram.
type KDESynthesizer struct {
	step      int
	bandwidth float64
}

// KDEOption applies a configuration option to the KDESynthesizer.
type KDEOption func(*KDESynthesizer)

// WithStep sets the sampling step across the score domain.
func WithStep(step int) KDEOption {
	return func(s *KDESynthesizer) {
		if step > 0 {
			s.step = step
		}
	}
}

// WithBandwidth sets the Gaussian kernel bandwidth.
func WithBandwidth(h float64) KDEOption {
	return func(s *KDESynthesizer) {
		if h > 0 {
			s.bandwidth = h
		}
	}
}

// NewKDESynthesizer creates a KDE synthesizer with options.
func NewKDESynthesizer(opts ...KDEOption) *KDESynthesizer {
	s := &KDESynthesizer{
		step:      defaultKDEStep,
		bandwidth: defaultKDEBandwidth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize implements Synthesizer. pointCount is ignored: the sampling
// grid is fixed by step and domain.
func (s *KDESynthesizer) Synthesize(hist Histogram, _ int) model.ProcessedDistribution {
	buckets := sortedBuckets(hist)
	total := totalCount(buckets)
	if total == 0 {
		return baseline()
	}

	sampleCount := (DomainMax-DomainMin)/s.step + 1
	densities := make([]float64, sampleCount)
	peak := 0.0
	for i := 0; i < sampleCount; i++ {
		x := float64(DomainMin + i*s.step)
		var d float64
		for _, b := range buckets {
			u := (x - float64(b.Score)) / s.bandwidth
			d += float64(b.Count) * math.Exp(-0.5*u*u)
		}
		densities[i] = d
		if d > peak {
			peak = d
		}
	}

	// Walk the sorted histogram in lockstep with the domain scan so each
	// sample carries the cumulative percentile at its position.
	points := make([]model.CurvePoint, sampleCount)
	var cum int64
	next := 0
	for i := 0; i < sampleCount; i++ {
		x := DomainMin + i*s.step
		for next < len(buckets) && buckets[next].Score <= x {
			cum += buckets[next].Count
			next++
		}
		density := 0.0
		if peak > 0 {
			density = densities[i] / peak
		}
		points[i] = model.CurvePoint{
			Score:      x,
			Density:    density,
			Percentile: float64(cum) / float64(total) * 100,
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
