package stats

import "gonum.org/v1/gonum/mat"

// PolyReg is a degree-2 polynomial y = a0 + a1*x + a2*x².
type PolyReg struct {
	A0 float64
	A1 float64
	A2 float64
}

// FitPolyReg solves the degree-2 normal equations. Returns false with fewer
// than three points or a singular system (e.g. no variance in x).
func FitPolyReg(x, y []float64) (PolyReg, bool) {
	if len(x) < 3 || len(x) != len(y) {
		return PolyReg{}, false
	}

	n := float64(len(x))
	var sumX, sumX2, sumX3, sumX4 float64
	var sumY, sumXY, sumX2Y float64
	for i, xi := range x {
		yi := y[i]
		xi2 := xi * xi
		xi3 := xi2 * xi
		xi4 := xi3 * xi

		sumX += xi
		sumX2 += xi2
		sumX3 += xi3
		sumX4 += xi4

		sumY += yi
		sumXY += xi * yi
		sumX2Y += xi2 * yi
	}

	a := mat.NewDense(3, 3, []float64{
		n, sumX, sumX2,
		sumX, sumX2, sumX3,
		sumX2, sumX3, sumX4,
	})
	b := mat.NewVecDense(3, []float64{sumY, sumXY, sumX2Y})

	var coef mat.VecDense
	if err := coef.SolveVec(a, b); err != nil {
		return PolyReg{}, false
	}
	return PolyReg{A0: coef.AtVec(0), A1: coef.AtVec(1), A2: coef.AtVec(2)}, true
}

// Calculate evaluates the polynomial at x.
func (p PolyReg) Calculate(x float64) float64 {
	return p.A0 + p.A1*x + p.A2*x*x
}

// Derivative evaluates dy/dx at x.
func (p PolyReg) Derivative(x float64) float64 {
	return p.A1 + 2*p.A2*x
}
