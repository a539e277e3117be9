package stats

import (
	"math"
	"sort"
)

// RobReg is a robust linear fit y = intercept + slope*x using iteratively
// reweighted least squares with Huber weights, seeded from a trimmed OLS fit
// so a single gross outlier cannot poison the starting point.
type RobReg struct {
	Intercept float64
	Slope     float64
}

// FitRobReg fits the robust line. k is the Huber tuning constant in units of
// the MAD residual scale. Returns false when the data is too short or
// degenerate (no variance in x after weighting).
func FitRobReg(x, y []float64, k float64, maxIter int) (RobReg, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return RobReg{}, false
	}

	// Normalize x for numerical stability.
	x0 := x[0]
	xNorm := make([]float64, len(x))
	for i, xi := range x {
		xNorm[i] = xi - x0
	}

	slope, intercept, ok := trimmedOLS(xNorm, y, 0.1)
	if !ok {
		return RobReg{}, false
	}

	for iter := 0; iter < maxIter; iter++ {
		residuals := make([]float64, len(y))
		for i, xi := range xNorm {
			residuals[i] = y[i] - (intercept + slope*xi)
		}
		scale := mad(residuals)

		weights := make([]float64, len(residuals))
		var wSum float64
		for i, r := range residuals {
			weights[i] = huberWeight(r/scale, k)
			wSum += weights[i]
		}

		var xwMean, ywMean float64
		for i := range xNorm {
			xwMean += xNorm[i] * weights[i]
			ywMean += y[i] * weights[i]
		}
		xwMean /= wSum
		ywMean /= wSum

		var sxxW, sxyW float64
		for i := range xNorm {
			dx := xNorm[i] - xwMean
			sxxW += weights[i] * dx * dx
			sxyW += weights[i] * dx * (y[i] - ywMean)
		}
		if math.Abs(sxxW) < 1e-12 {
			return RobReg{}, false
		}

		slope = sxyW / sxxW
		intercept = ywMean - slope*xwMean
	}

	return RobReg{Intercept: intercept, Slope: slope}, true
}

// Calculate evaluates the line at x.
func (r RobReg) Calculate(x float64) float64 {
	return r.Intercept + r.Slope*x
}

func huberWeight(r, k float64) float64 {
	absR := math.Abs(r)
	if absR <= k {
		return 1
	}
	return k / absR
}

// trimmedOLS runs OLS, drops the trimFrac largest-residual points from each
// tail, and refits on the remainder.
func trimmedOLS(x, y []float64, trimFrac float64) (slope, intercept float64, ok bool) {
	n := len(x)
	if n != len(y) || n < 3 {
		return 0, 0, false
	}
	if trimFrac < 0 || trimFrac >= 0.5 {
		return 0, 0, false
	}
	for i := range x {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			return 0, 0, false
		}
	}

	slope, intercept, ok = ols(x, y)
	if !ok {
		return 0, 0, false
	}

	type point struct {
		x, y, resid float64
	}
	points := make([]point, n)
	for i := range x {
		yHat := intercept + slope*x[i]
		points[i] = point{x: x[i], y: y[i], resid: math.Abs(y[i] - yHat)}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].resid < points[j].resid })

	trimN := int(math.Floor(float64(n) * trimFrac))
	if trimN*2 >= n {
		return 0, 0, false
	}
	trimmed := points[trimN : n-trimN]
	if len(trimmed) < 2 {
		return 0, 0, false
	}

	xVals := make([]float64, len(trimmed))
	yVals := make([]float64, len(trimmed))
	for i, p := range trimmed {
		xVals[i] = p.x
		yVals[i] = p.y
	}
	return ols(xVals, yVals)
}

func ols(x, y []float64) (slope, intercept float64, ok bool) {
	n := float64(len(x))
	var xMean, yMean float64
	for i := range x {
		xMean += x[i]
		yMean += y[i]
	}
	xMean /= n
	yMean /= n

	var sxx, sxy float64
	for i := range x {
		dx := x[i] - xMean
		sxx += dx * dx
		sxy += dx * (y[i] - yMean)
	}
	if math.Abs(sxx) < 1e-12 {
		return 0, 0, false
	}
	slope = sxy / sxx
	return slope, yMean - slope*xMean, true
}
