package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/scorefuse/scorefuse/schema"
)

// Boundary is a sampler-derived threshold with a multiplicity weight.
// Weighted-order AUC binarizes the target at each boundary value and
// averages the partial AUCs using these weights.
type Boundary struct {
	Value  float64
	Weight float64
}

// Sampler produces stratification boundaries for a target column.
type Sampler interface {
	Kind() schema.SamplerKind
	Boundaries() []Boundary
}

// FrequencyOptions configures NewFrequencySampler.
type FrequencyOptions struct {
	SampleSize int      // Number of interior percentile boundaries, required
	SliceFrom  *float64 // Optional lower bound filter on values
	SliceTo    *float64 // Optional upper bound filter on values
	LogScale   bool     // Treat values as log-space: boundaries are exponentiated
	Laplace    bool     // Subtract 1 from boundaries after un-logging
}

// frequencySampler stratifies by equally spaced percentiles of the observed
// value distribution. Duplicate percentile values collapse into a single
// boundary whose weight is its multiplicity.
type frequencySampler struct {
	boundaries []Boundary
}

// NewFrequencySampler builds a percentile-based sampler over values.
func NewFrequencySampler(values []float64, opts FrequencyOptions) (Sampler, error) {
	if opts.SampleSize < 1 {
		return nil, fmt.Errorf("%w: sample size must be >= 1, got %d", schema.ErrConfig, opts.SampleSize)
	}
	filtered := filterRange(values, opts.SliceFrom, opts.SliceTo)
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: no values remain after slicing", schema.ErrConfig)
	}
	sorted := make([]float64, len(filtered))
	copy(sorted, filtered)
	sort.Float64s(sorted)

	raw := make([]float64, 0, opts.SampleSize)
	// Interior points of an even split into SampleSize+1 segments.
	for k := 1; k <= opts.SampleSize; k++ {
		q := float64(k) / float64(opts.SampleSize+1)
		b := quantile(sorted, q)
		if opts.LogScale {
			b = math.Exp(b)
		}
		if opts.Laplace {
			b -= 1
		}
		raw = append(raw, b)
	}
	return &frequencySampler{boundaries: collapseBoundaries(raw)}, nil
}

func (s *frequencySampler) Kind() schema.SamplerKind { return schema.FrequencySampler }
func (s *frequencySampler) Boundaries() []Boundary   { return s.boundaries }

// GiniOptions configures NewGiniSampler.
type GiniOptions struct {
	SampleSize int // Number of boundaries, required
	Resolution int // Candidate quantile grid size, defaults to 100
}

// giniSampler stratifies by equidistant steps of the Gini coefficient: each
// boundary is the candidate quantile whose prefix Gini is closest to an
// evenly spaced Gini level. Dense low-value mass therefore gets finer
// stratification than a plain percentile split.
type giniSampler struct {
	boundaries []Boundary
}

// NewGiniSampler builds a Lorenz-curve-based sampler over values.
// Values must be non-negative.
func NewGiniSampler(values []float64, opts GiniOptions) (Sampler, error) {
	if opts.SampleSize < 1 {
		return nil, fmt.Errorf("%w: sample size must be >= 1, got %d", schema.ErrConfig, opts.SampleSize)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no values to sample", schema.ErrConfig)
	}
	resolution := opts.Resolution
	if resolution <= 0 {
		resolution = 100
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if sorted[0] < 0 {
		return nil, fmt.Errorf("%w: gini sampling requires non-negative values", schema.ErrDomain)
	}

	// Candidate boundaries with the Gini of each prefix.
	type candidate struct {
		value float64
		gini  float64
	}
	candidates := make([]candidate, 0, resolution)
	for k := 1; k <= resolution; k++ {
		q := float64(k) / float64(resolution)
		v := quantile(sorted, q)
		end := sort.SearchFloat64s(sorted, v)
		for end < len(sorted) && sorted[end] <= v {
			end++
		}
		if end < 2 {
			continue
		}
		candidates = append(candidates, candidate{value: v, gini: giniSorted(sorted[:end])})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: gini sampling needs at least two values", schema.ErrMetric)
	}

	lo := candidates[0].gini
	hi := candidates[len(candidates)-1].gini
	raw := make([]float64, 0, opts.SampleSize)
	for k := 1; k <= opts.SampleSize; k++ {
		level := lo + (hi-lo)*float64(k)/float64(opts.SampleSize+1)
		best := candidates[0]
		for _, c := range candidates[1:] {
			if math.Abs(c.gini-level) < math.Abs(best.gini-level) {
				best = c
			}
		}
		raw = append(raw, best.value)
	}
	return &giniSampler{boundaries: collapseBoundaries(raw)}, nil
}

func (s *giniSampler) Kind() schema.SamplerKind { return schema.GiniSampler }
func (s *giniSampler) Boundaries() []Boundary   { return s.boundaries }

// Gini returns the Gini coefficient of a non-negative value distribution.
// Zero means perfect equality, values near one mean the mass concentrates
// in a few rows.
func Gini(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return giniSorted(sorted)
}

func giniSorted(sorted []float64) float64 {
	n := len(sorted)
	var total, weighted float64
	for i, v := range sorted {
		total += v
		weighted += float64(i+1) * v
	}
	if total == 0 {
		return 0
	}
	return (2*weighted - float64(n+1)*total) / (float64(n) * total)
}

// LorenzCurve returns the cumulative population and value shares of a
// non-negative distribution, sorted ascending. Both slices have len(values)+1
// entries starting at 0 and ending at 1. Consumers plot these externally.
func LorenzCurve(values []float64) (popShare, valueShare []float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var total float64
	for _, v := range sorted {
		total += v
	}
	n := len(sorted)
	popShare = make([]float64, n+1)
	valueShare = make([]float64, n+1)
	var cum float64
	for i, v := range sorted {
		cum += v
		popShare[i+1] = float64(i+1) / float64(n)
		if total > 0 {
			valueShare[i+1] = cum / total
		} else {
			valueShare[i+1] = popShare[i+1]
		}
	}
	return popShare, valueShare
}

// quantile interpolates linearly between order statistics, matching the
// common linear interpolation convention. sorted must be ascending and
// non-empty.
func quantile(sorted []float64, q float64) float64 {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func filterRange(values []float64, from, to *float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if from != nil && v < *from {
			continue
		}
		if to != nil && v > *to {
			continue
		}
		out = append(out, v)
	}
	return out
}

// collapseBoundaries merges duplicate boundary values, accumulating their
// multiplicity as the weight, and returns them sorted ascending.
func collapseBoundaries(raw []float64) []Boundary {
	counts := make(map[float64]float64, len(raw))
	for _, v := range raw {
		counts[v]++
	}
	out := make([]Boundary, 0, len(counts))
	for v, c := range counts {
		out = append(out, Boundary{Value: v, Weight: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}
