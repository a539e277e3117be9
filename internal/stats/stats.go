// Package stats provides the small regression and correlation toolkit the
// flux fitting engine is built on: ordinary least squares, degree-2
// polynomial, Huber-weighted robust linear and log-linear exponential fits,
// plus Pearson correlation and the residual summary statistics shared by all
// model kinds.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// RSquared computes the coefficient of determination from observations and
// predictions. Returns false when fewer than two points or when y has no
// variance.
func RSquared(y, yHat []float64) (float64, bool) {
	if len(y) != len(yHat) || len(y) < 2 {
		return 0, false
	}
	yMean := stat.Mean(y, nil)
	var ssRes, ssTot float64
	for i, yi := range y {
		d := yi - yHat[i]
		ssRes += d * d
		t := yi - yMean
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0, false
	}
	return 1 - ssRes/ssTot, true
}

// AdjustedRSquared penalizes r² for the number of predictors k. With too few
// points to adjust it returns r² unchanged.
func AdjustedRSquared(r2 float64, n, k int) float64 {
	if n <= k+1 {
		return r2
	}
	return 1 - (1-r2)*(float64(n)-1)/(float64(n)-float64(k)-1)
}

// RMSE computes the root mean square error of predictions. Returns false on
// empty or mismatched input.
func RMSE(y, yHat []float64) (float64, bool) {
	if len(y) != len(yHat) || len(y) == 0 {
		return 0, false
	}
	var sumSq float64
	for i, yi := range y {
		d := yi - yHat[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(y))), true
}

// AICFromRSS computes the Akaike Information Criterion from a residual sum
// of squares with k fitted parameters. A zero or negative RSS yields +Inf so
// degenerate fits never win model selection.
func AICFromRSS(rss float64, n, k int) float64 {
	if rss <= 0 || n == 0 {
		return math.Inf(1)
	}
	return float64(n)*math.Log(rss/float64(n)) + 2*float64(k)
}

// TwoSidedPValue returns the two-sided p-value of a t statistic with the
// given degrees of freedom. Returns false for non-finite input or
// non-positive degrees of freedom.
func TwoSidedPValue(tStat, dof float64) (float64, bool) {
	if !isFinite(tStat) || dof <= 0 {
		return 0, false
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}
	return 2 * (1 - dist.CDF(math.Abs(tStat))), true
}

// Pearson returns the absolute Pearson correlation coefficient. Fewer than
// five points, mismatched lengths, non-finite values or zero variance all
// report false: short windows do not carry meaningful correlation.
func Pearson(x, y []float64) (float64, bool) {
	if len(x) < 5 || len(x) != len(y) {
		return 0, false
	}
	for i := range x {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			return 0, false
		}
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return math.Abs(r), true
}

// Median computes the median, skipping NaNs. NaN on empty input.
func Median(data []float64) float64 {
	sorted := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// mad is the median absolute deviation scaled to be consistent with the
// standard deviation of a normal distribution, floored to avoid division by
// zero in weight computation.
func mad(residuals []float64) float64 {
	res := make([]float64, len(residuals))
	med := Median(residuals)
	for i, r := range residuals {
		res[i] = math.Abs(r - med)
	}
	m := Median(res) / 0.6745
	if m < 1e-12 {
		return 1e-12
	}
	return m
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
