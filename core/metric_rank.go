package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/scorefuse/scorefuse/schema"
)

// KendallTau returns the Kendall rank correlation between score and target
// after equal-frequency binning, normalized from [-1, 1] to [0, 1] via
// tau/2 + 0.5. Binning caps the pair comparison cost and absorbs noise in
// near-tied values; numBins defaults to 100 when zero.
func KendallTau(score, target []float64, numBins int) (float64, error) {
	if err := checkPair(score, target); err != nil {
		return 0, err
	}
	if numBins == 0 {
		numBins = 100
	}
	if numBins < 2 {
		return 0, fmt.Errorf("%w: tau needs at least 2 bins, got %d", schema.ErrConfig, numBins)
	}
	tau, err := tauB(mapToBins(score, numBins), mapToBins(target, numBins))
	if err != nil {
		return 0, err
	}
	return tau/2 + 0.5, nil
}

// mapToBins assigns each value an equal-frequency bin index in [0, numBins).
// Zeros stay pinned to bin 0 so that sparse count-like columns keep their
// mass point intact.
func mapToBins(values []float64, numBins int) []float64 {
	positive := make([]float64, 0, len(values))
	for _, v := range values {
		if v != 0 {
			positive = append(positive, v)
		}
	}
	sort.Float64s(positive)

	out := make([]float64, len(values))
	for i, v := range values {
		if v == 0 || len(positive) == 0 {
			out[i] = 0
			continue
		}
		// Rank of v among non-zero values, scaled into 1..numBins-1.
		rank := sort.SearchFloat64s(positive, v)
		bin := 1 + int(float64(rank)/float64(len(positive))*float64(numBins-1))
		if bin > numBins-1 {
			bin = numBins - 1
		}
		out[i] = float64(bin)
	}
	return out
}

// tauB computes Kendall's tau-b with tie correction over all pairs.
func tauB(xs, ys []float64) (float64, error) {
	n := len(xs)
	var concordant, discordant, tiesX, tiesY float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := xs[i] - xs[j]
			dy := ys[i] - ys[j]
			switch {
			case dx == 0 && dy == 0:
				// Joint tie, excluded from both denominator terms.
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case dx*dy > 0:
				concordant++
			default:
				discordant++
			}
		}
	}
	denom := math.Sqrt((concordant + discordant + tiesX) * (concordant + discordant + tiesY))
	if denom == 0 {
		return 0, fmt.Errorf("%w: all pairs tied, tau undefined", schema.ErrMetric)
	}
	return (concordant - discordant) / denom, nil
}

// InversePairs returns the weighted count of rank inversions between the
// score order and the target order: pairs where the higher-target row gets
// the lower score. Lower is better, zero means score order never contradicts
// target order.
//
// Weighting controls the penalty per inverted pair with score gap g:
// count adds 1, linear adds g, exponential adds 1-exp(-g).
func InversePairs(score, target []float64, weighting schema.PairWeighting) (float64, error) {
	if err := checkPair(score, target); err != nil {
		return 0, err
	}
	if weighting == "" {
		weighting = schema.CountWeighting
	}
	if _, ok := schema.ValidPairWeightings[weighting]; !ok {
		return 0, fmt.Errorf("%w: unknown pair weighting %q", schema.ErrConfig, weighting)
	}

	// Order rows by ascending target, stable. Within that order, any later
	// row has target >= any earlier row, so an earlier score strictly above
	// a later score is an inversion (target ties excluded).
	n := len(score)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return target[idx[a]] < target[idx[b]] })

	if weighting == schema.CountWeighting {
		return countInversions(score, target, idx), nil
	}

	var acc float64
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			i, j := idx[a], idx[b]
			if target[i] == target[j] {
				continue
			}
			g := score[i] - score[j]
			if g <= 0 {
				continue
			}
			if weighting == schema.LinearWeighting {
				acc += g
			} else {
				acc += 1 - math.Exp(-g)
			}
		}
	}
	return acc, nil
}

// countInversions counts strict inversions with a merge sort over the score
// sequence in target order, skipping pairs whose targets tie.
type pairEntry struct {
	score  float64
	target float64
}

func countInversions(score, target []float64, order []int) float64 {
	seq := make([]pairEntry, len(order))
	for pos, i := range order {
		seq[pos] = pairEntry{score: score[i], target: target[i]}
	}

	// Subtract same-target inversions: the merge count treats the sequence
	// uniformly, but pairs inside one target group are not contradictions.
	// The group scan must run first, since mergeCount sorts its input.
	var sameGroup float64
	for start := 0; start < len(seq); {
		end := start
		for end < len(seq) && seq[end].target == seq[start].target {
			end++
		}
		group := make([]pairEntry, end-start)
		copy(group, seq[start:end])
		sameGroup += mergeCount(group)
		start = end
	}
	return mergeCount(seq) - sameGroup
}

func mergeCount(seq []pairEntry) float64 {
	if len(seq) < 2 {
		return 0
	}
	mid := len(seq) / 2
	left := make([]pairEntry, mid)
	right := make([]pairEntry, len(seq)-mid)
	copy(left, seq[:mid])
	copy(right, seq[mid:])

	count := mergeCount(left) + mergeCount(right)
	i, j := 0, 0
	for k := 0; k < len(seq); k++ {
		switch {
		case i < len(left) && (j >= len(right) || left[i].score <= right[j].score):
			seq[k] = left[i]
			i++
		default:
			// Every remaining left element strictly exceeds this right
			// element: all of them are inversions.
			count += float64(len(left) - i)
			seq[k] = right[j]
			j++
		}
	}
	return count
}
