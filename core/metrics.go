package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/scorefuse/scorefuse/schema"
)

// checkPair validates the shared metric input contract: equal lengths and
// non-empty input.
func checkPair(score, target []float64) error {
	if len(score) != len(target) {
		return fmt.Errorf("%w: score has %d rows, target has %d", schema.ErrMetric, len(score), len(target))
	}
	if len(score) == 0 {
		return fmt.Errorf("%w: empty input", schema.ErrMetric)
	}
	return nil
}

// checkBinary verifies that labels take only the values 0 and 1.
func checkBinary(labels []float64) error {
	for i, v := range labels {
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: label at row %d is %v, want 0 or 1", schema.ErrInvalidTarget, i, v)
		}
	}
	return nil
}

// averageRanks returns 1-based ascending ranks with ties assigned the
// average of their positions.
func averageRanks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j+2) / 2 // mean of 1-based positions i+1..j+1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// LogMSE returns the mean squared error between log1p(target) and
// log1p(score). Targets must be non-negative; negative scores clamp to zero
// before the log.
func LogMSE(score, target []float64) (float64, error) {
	if err := checkPair(score, target); err != nil {
		return 0, err
	}
	var acc float64
	for i, t := range target {
		if t < 0 {
			return 0, fmt.Errorf("%w: target at row %d is negative (%v)", schema.ErrDomain, i, t)
		}
		s := math.Max(score[i], 0)
		d := math.Log1p(t) - math.Log1p(s)
		acc += d * d
	}
	return acc / float64(len(target)), nil
}

// Correlation returns the Pearson correlation coefficient between score and
// target. A zero-variance input is degenerate.
func Correlation(score, target []float64) (float64, error) {
	if err := checkPair(score, target); err != nil {
		return 0, err
	}
	n := float64(len(score))
	var meanS, meanT float64
	for i := range score {
		meanS += score[i]
		meanT += target[i]
	}
	meanS /= n
	meanT /= n

	var cov, varS, varT float64
	for i := range score {
		ds := score[i] - meanS
		dt := target[i] - meanT
		cov += ds * dt
		varS += ds * ds
		varT += dt * dt
	}
	if varS == 0 || varT == 0 {
		return 0, fmt.Errorf("%w: zero variance input for correlation", schema.ErrMetric)
	}
	return cov / math.Sqrt(varS*varT), nil
}
