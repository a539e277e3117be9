package stats

import "gonum.org/v1/gonum/stat"

// LinReg is an ordinary least-squares line y = intercept + slope*x.
type LinReg struct {
	Intercept float64
	Slope     float64
}

// FitLinReg fits the line by OLS. x and y must have equal length.
func FitLinReg(x, y []float64) LinReg {
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return LinReg{Intercept: alpha, Slope: beta}
}

// Calculate evaluates the line at x.
func (l LinReg) Calculate(x float64) float64 {
	return l.Intercept + l.Slope*x
}
