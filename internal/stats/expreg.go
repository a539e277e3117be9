package stats

import "math"

// ExpReg is an exponential fit y = a * exp(b*x), trained on the log-linear
// transform ln(y) = ln(a) + b*x.
type ExpReg struct {
	A float64
	B float64
}

// FitExpReg fits the exponential. All y must be strictly positive; returns
// false otherwise.
func FitExpReg(x, y []float64) (ExpReg, bool) {
	if len(x) != len(y) || len(x) == 0 {
		return ExpReg{}, false
	}
	lnY := make([]float64, len(y))
	for i, v := range y {
		if v <= 0 {
			return ExpReg{}, false
		}
		lnY[i] = math.Log(v)
	}
	lin := FitLinReg(x, lnY)
	return ExpReg{A: math.Exp(lin.Intercept), B: lin.Slope}, true
}

// Calculate evaluates y = a*exp(b*x).
func (e ExpReg) Calculate(x float64) float64 {
	return e.A * math.Exp(e.B*x)
}

// Derivative evaluates dy/dx = a*b*exp(b*x).
func (e ExpReg) Derivative(x float64) float64 {
	return e.A * e.B * math.Exp(e.B*x)
}
