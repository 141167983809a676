package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/scorefuse/scorefuse/schema"
)

// AUC returns the area under the ROC curve of score against a binary label
// column, computed from the Mann-Whitney U statistic with average ranks so
// that tied scores are handled exactly.
func AUC(score, label []float64) (float64, error) {
	if err := checkPair(score, label); err != nil {
		return 0, err
	}
	if err := checkBinary(label); err != nil {
		return 0, err
	}
	ranks := averageRanks(score)
	var nPos, rankSum float64
	for i, l := range label {
		if l == 1 {
			nPos++
			rankSum += ranks[i]
		}
	}
	nNeg := float64(len(label)) - nPos
	if nPos == 0 || nNeg == 0 {
		return 0, fmt.Errorf("%w: labels are all %v", schema.ErrMetric, label[0])
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// WeightedOrderAUC measures rank consistency between score and a continuous
// or ordinal target. The target is binarized at each boundary (label = target
// >= boundary) and the partial AUCs are averaged with the boundary weights.
//
// With a nil boundary set, the distinct target values above the minimum are
// used with unit weights; on a binary {0,1} target this degenerates to the
// single boundary 1 and reproduces plain AUC exactly.
func WeightedOrderAUC(score, target []float64, boundaries []Boundary) (float64, error) {
	if err := checkPair(score, target); err != nil {
		return 0, err
	}
	if boundaries == nil {
		boundaries = defaultBoundaries(target)
	}
	labels := make([]float64, len(target))
	var weighted, weightSum float64
	for _, b := range boundaries {
		for i, t := range target {
			if t >= b.Value {
				labels[i] = 1
			} else {
				labels[i] = 0
			}
		}
		partial, err := AUC(score, labels)
		if err != nil {
			// Degenerate split at this boundary, skip it.
			continue
		}
		weighted += b.Weight * partial
		weightSum += b.Weight
	}
	if weightSum == 0 {
		return 0, fmt.Errorf("%w: no boundary splits the target", schema.ErrMetric)
	}
	return weighted / weightSum, nil
}

// defaultBoundaries returns the distinct target values above the minimum,
// each with unit weight.
func defaultBoundaries(target []float64) []Boundary {
	distinct := make([]float64, 0, len(target))
	seen := make(map[float64]struct{}, len(target))
	minVal := math.Inf(1)
	for _, t := range target {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			distinct = append(distinct, t)
		}
		minVal = math.Min(minVal, t)
	}
	sort.Float64s(distinct)
	out := make([]Boundary, 0, len(distinct))
	for _, v := range distinct {
		if v == minVal {
			continue
		}
		out = append(out, Boundary{Value: v, Weight: 1})
	}
	return out
}

// NegativeRankRatio returns the mean normalized rank of positive labels when
// rows are ordered by descending score. A perfect ranker that places every
// positive at the top approaches (p+1)/(2n-p+1); the worst ordering yields
// exactly 1. Lower is better.
func NegativeRankRatio(score, label []float64) (float64, error) {
	if err := checkPair(score, label); err != nil {
		return 0, err
	}
	if err := checkBinary(label); err != nil {
		return 0, err
	}
	n := len(score)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return score[idx[a]] > score[idx[b]] })

	var nPos, rankSum float64
	for pos, i := range idx {
		if label[i] == 1 {
			nPos++
			rankSum += float64(pos + 1)
		}
	}
	if nPos == 0 {
		return 0, fmt.Errorf("%w: no positive labels", schema.ErrMetric)
	}
	// Normalized so that positives packed at the bottom score exactly 1.
	return 2 * rankSum / ((2*float64(n) - nPos + 1) * nPos), nil
}
