package stats

import (
	"math"
	"testing"
)

func TestRSquared(t *testing.T) {
	tests := []struct {
		name     string
		y        []float64
		yHat     []float64
		expected float64
		ok       bool
	}{
		{"perfect fit", []float64{1, 2, 3, 4}, []float64{1, 2, 3, 4}, 1.0, true},
		{"no variance in y", []float64{2, 2, 2}, []float64{1, 2, 3}, 0, false},
		{"length mismatch", []float64{1, 2}, []float64{1}, 0, false},
		{"empty", nil, nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RSquared(tt.y, tt.yHat)
			if ok != tt.ok {
				t.Fatalf("RSquared ok = %v, want %v", ok, tt.ok)
			}
			if ok && math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("RSquared = %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestRSquaredHalfExplained(t *testing.T) {
	y := []float64{0, 1, 2, 3, 4}
	yHat := []float64{0.5, 1, 2, 3, 3.5}
	got, ok := RSquared(y, yHat)
	if !ok {
		t.Fatal("RSquared not ok")
	}
	if got <= 0.9 || got >= 1.0 {
		t.Errorf("RSquared = %f, want in (0.9, 1.0)", got)
	}
}

func TestAdjustedRSquared(t *testing.T) {
	// With one predictor the adjustment shrinks r2 toward zero.
	r2 := 0.9
	adj := AdjustedRSquared(r2, 10, 1)
	if adj >= r2 {
		t.Errorf("AdjustedRSquared = %f, want < %f", adj, r2)
	}
	// More predictors shrink harder.
	adj2 := AdjustedRSquared(r2, 10, 2)
	if adj2 >= adj {
		t.Errorf("AdjustedRSquared k=2 = %f, want < %f", adj2, adj)
	}
}

func TestRMSE(t *testing.T) {
	y := []float64{0, 0, 0, 0}
	yHat := []float64{2, 2, 2, 2}
	got, ok := RMSE(y, yHat)
	if !ok {
		t.Fatal("RMSE not ok")
	}
	if math.Abs(got-2) > 1e-12 {
		t.Errorf("RMSE = %f, want 2", got)
	}
}

func TestAICFromRSS(t *testing.T) {
	// Lower RSS must give lower AIC at fixed n, k.
	lo := AICFromRSS(1.0, 100, 2)
	hi := AICFromRSS(10.0, 100, 2)
	if lo >= hi {
		t.Errorf("AIC(rss=1) = %f, want < AIC(rss=10) = %f", lo, hi)
	}

	// More parameters at the same RSS cost AIC.
	k2 := AICFromRSS(1.0, 100, 2)
	k3 := AICFromRSS(1.0, 100, 3)
	if k3-k2 != 2 {
		t.Errorf("AIC parameter penalty = %f, want 2", k3-k2)
	}

	// Degenerate RSS is never preferred.
	if !math.IsInf(AICFromRSS(0, 100, 2), 1) {
		t.Error("AIC(rss=0) should be +Inf")
	}
	if !math.IsInf(AICFromRSS(-1, 100, 2), 1) {
		t.Error("AIC(rss<0) should be +Inf")
	}
}

func TestTwoSidedPValue(t *testing.T) {
	// A huge t statistic gives a tiny p; t=0 gives p=1.
	p, ok := TwoSidedPValue(50, 30)
	if !ok {
		t.Fatal("TwoSidedPValue not ok")
	}
	if p > 1e-6 {
		t.Errorf("p(t=50) = %g, want < 1e-6", p)
	}

	p0, ok := TwoSidedPValue(0, 30)
	if !ok {
		t.Fatal("TwoSidedPValue not ok")
	}
	if math.Abs(p0-1) > 1e-9 {
		t.Errorf("p(t=0) = %f, want 1", p0)
	}

	if _, ok := TwoSidedPValue(1, 0); ok {
		t.Error("TwoSidedPValue with dof=0 should not be ok")
	}
}

func TestPearson(t *testing.T) {
	tests := []struct {
		name     string
		x        []float64
		y        []float64
		expected float64
		ok       bool
	}{
		{"perfect positive", []float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10}, 1.0, true},
		{"perfect negative reported absolute", []float64{1, 2, 3, 4, 5}, []float64{10, 8, 6, 4, 2}, 1.0, true},
		{"too few points", []float64{1, 2, 3, 4}, []float64{1, 2, 3, 4}, 0, false},
		{"constant y", []float64{1, 2, 3, 4, 5}, []float64{3, 3, 3, 3, 3}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Pearson(tt.x, tt.y)
			if ok != tt.ok {
				t.Fatalf("Pearson ok = %v, want %v", ok, tt.ok)
			}
			if ok && math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Pearson = %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		expected float64
	}{
		{"odd count", []float64{3, 1, 2}, 2},
		{"even count", []float64{4, 1, 3, 2}, 2.5},
		{"skips NaN", []float64{1, math.NaN(), 3}, 2},
		{"single", []float64{7}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Median(tt.data)
			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("Median = %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestFitLinReg(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{1, 3, 5, 7, 9} // y = 1 + 2x
	l := FitLinReg(x, y)
	if math.Abs(l.Slope-2) > 1e-9 {
		t.Errorf("Slope = %f, want 2", l.Slope)
	}
	if math.Abs(l.Intercept-1) > 1e-9 {
		t.Errorf("Intercept = %f, want 1", l.Intercept)
	}
	if got := l.Calculate(10); math.Abs(got-21) > 1e-9 {
		t.Errorf("Calculate(10) = %f, want 21", got)
	}
}

func TestFitPolyReg(t *testing.T) {
	// y = 2 + 0.5x + 0.25x^2
	x := []float64{0, 1, 2, 3, 4, 5}
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = 2 + 0.5*xi + 0.25*xi*xi
	}

	p, ok := FitPolyReg(x, y)
	if !ok {
		t.Fatal("FitPolyReg not ok")
	}
	if math.Abs(p.A0-2) > 1e-6 || math.Abs(p.A1-0.5) > 1e-6 || math.Abs(p.A2-0.25) > 1e-6 {
		t.Errorf("coefficients = (%f, %f, %f), want (2, 0.5, 0.25)", p.A0, p.A1, p.A2)
	}
	// derivative at x=2 is 0.5 + 2*0.25*2 = 1.5
	if got := p.Derivative(2); math.Abs(got-1.5) > 1e-6 {
		t.Errorf("Derivative(2) = %f, want 1.5", got)
	}

	if _, ok := FitPolyReg([]float64{1, 2}, []float64{1, 2}); ok {
		t.Error("FitPolyReg with 2 points should not be ok")
	}
}

func TestFitRobRegIgnoresOutlier(t *testing.T) {
	// Clean line y = 5 + 0.1x with one gross outlier.
	var x, y []float64
	for i := 0; i < 30; i++ {
		x = append(x, float64(i))
		y = append(y, 5+0.1*float64(i))
	}
	y[15] = 500

	r, ok := FitRobReg(x, y, 1.0, 10)
	if !ok {
		t.Fatal("FitRobReg not ok")
	}
	if math.Abs(r.Slope-0.1) > 0.01 {
		t.Errorf("Slope = %f, want ~0.1 despite outlier", r.Slope)
	}

	if _, ok := FitRobReg([]float64{1}, []float64{1}, 1.0, 10); ok {
		t.Error("FitRobReg with 1 point should not be ok")
	}
}

func TestFitExpReg(t *testing.T) {
	// y = 2 * exp(0.3x)
	var x, y []float64
	for i := 0; i < 10; i++ {
		x = append(x, float64(i))
		y = append(y, 2*math.Exp(0.3*float64(i)))
	}

	e, ok := FitExpReg(x, y)
	if !ok {
		t.Fatal("FitExpReg not ok")
	}
	if math.Abs(e.A-2) > 1e-6 || math.Abs(e.B-0.3) > 1e-6 {
		t.Errorf("fit = (%f, %f), want (2, 0.3)", e.A, e.B)
	}
	// derivative at 0 is A*B
	if got := e.Derivative(0); math.Abs(got-0.6) > 1e-6 {
		t.Errorf("Derivative(0) = %f, want 0.6", got)
	}

	if _, ok := FitExpReg([]float64{0, 1}, []float64{1, -1}); ok {
		t.Error("FitExpReg with non-positive y should not be ok")
	}
}
