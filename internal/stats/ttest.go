// Package stats provides the significance test used to compare model
// configurations.
package stats

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// TTestResult holds the paired two-sided t-test outcome.
type TTestResult struct {
	T        float64 // t statistic
	P        float64 // two-sided p-value
	MeanDiff float64 // mean of x-y
	DF       int     // degrees of freedom
}

// PairedTTest tests whether the paired samples x and y have the same
// mean, two-sided. Identical samples (zero differences throughout)
// return t=0, p=1.
func PairedTTest(x, y []float64) (*TTestResult, error) {
	if len(x) != len(y) {
		return nil, errors.Errorf("paired t-test: sample sizes differ: %d vs %d", len(x), len(y))
	}
	if len(x) < 2 {
		return nil, errors.Errorf("paired t-test: need at least 2 pairs, got %d", len(x))
	}

	n := float64(len(x))
	meanDiff := 0.0
	for i := range x {
		meanDiff += x[i] - y[i]
	}
	meanDiff /= n

	variance := 0.0
	for i := range x {
		d := x[i] - y[i] - meanDiff
		variance += d * d
	}
	variance /= n - 1

	result := &TTestResult{MeanDiff: meanDiff, DF: len(x) - 1}
	if variance == 0 {
		if meanDiff == 0 {
			result.P = 1
			return result, nil
		}
		return nil, errors.New("paired t-test: zero variance with nonzero mean difference")
	}

	result.T = meanDiff / math.Sqrt(variance/n)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 1}
	result.P = 2 * dist.CDF(-math.Abs(result.T))
	return result, nil
}
