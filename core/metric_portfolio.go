package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/scorefuse/scorefuse/schema"
)

// topFraction returns the row indexes of the top ceil(coverage*n) rows by
// descending score. Ties keep their original row order.
func topFraction(score []float64, coverage float64) []int {
	n := len(score)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return score[idx[a]] > score[idx[b]] })
	k := int(math.Ceil(coverage * float64(n)))
	if k > n {
		k = n
	}
	return idx[:k]
}

// PortfolioConcentration returns the fraction of total target mass captured
// by the top coverage fraction of rows ranked by score. Coverage 1.0 always
// yields 1.0. Higher is better: a good score column concentrates the target
// mass into its top ranks.
func PortfolioConcentration(score, target []float64, coverage float64) (float64, error) {
	if err := checkPair(score, target); err != nil {
		return 0, err
	}
	if coverage <= 0 || coverage > 1 {
		return 0, fmt.Errorf("%w: coverage ratio must be in (0, 1], got %v", schema.ErrConfig, coverage)
	}
	var total float64
	for _, t := range target {
		total += t
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: total target mass is %v", schema.ErrMetric, total)
	}
	var captured float64
	for _, i := range topFraction(score, coverage) {
		captured += target[i]
	}
	return captured / total, nil
}

// DistinctPortfolioConcentration is the distinct-count variant: the fraction
// of unique target values present in the top coverage fraction of rows.
func DistinctPortfolioConcentration(score, target []float64, coverage float64) (float64, error) {
	if err := checkPair(score, target); err != nil {
		return 0, err
	}
	if coverage <= 0 || coverage > 1 {
		return 0, fmt.Errorf("%w: coverage ratio must be in (0, 1], got %v", schema.ErrConfig, coverage)
	}
	all := make(map[float64]struct{}, len(target))
	for _, t := range target {
		all[t] = struct{}{}
	}
	top := make(map[float64]struct{})
	for _, i := range topFraction(score, coverage) {
		top[target[i]] = struct{}{}
	}
	return float64(len(top)) / float64(len(all)), nil
}
