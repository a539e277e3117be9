package flux

import (
	"errors"
	"fmt"
	"math"

	"github.com/kootepe/fluxrs-sub001/internal/gas"
	"github.com/kootepe/fluxrs-sub001/internal/stats"
)

// Fit failures. A failed fit leaves the (channel, kind) slot empty; the
// cycle stays usable with whatever kinds did converge.
var (
	ErrLengthMismatch = errors.New("x and y have different lengths")
	ErrTooFewPoints   = errors.New("not enough points")
	ErrNonPositiveY   = errors.New("exponential model requires all y > 0")
	ErrDegenerate     = errors.New("degenerate fit")
)

// optStat is an optional statistic. The zero value is absent; absence must
// propagate through model selection and validity checks, never collapse to
// a numeric stand-in.
type optStat struct {
	value float64
	valid bool
}

func someStat(v float64) optStat { return optStat{value: v, valid: true} }

func (o optStat) get() (float64, bool) { return o.value, o.valid }

// Fit is one fitted regression model for one gas channel, together with its
// derived statistics. Any statistic may be absent for a given model/data
// combination; accessors report presence explicitly.
type Fit struct {
	Kind       ModelKind
	Channel    gas.Channel
	RangeStart float64
	RangeEnd   float64

	// fitted parameter payload, one of these per Kind
	lin     stats.LinReg
	poly    stats.PolyReg
	rob     stats.RobReg
	exp     stats.ExpReg
	xOffset float64

	flux   optStat
	r2     optStat
	adjR2  optStat
	sigma  optStat
	pValue optStat
	aic    optStat
	rmse   optStat
	cv     optStat
}

// Flux returns the estimated flux in µmol m⁻² s⁻¹.
func (f *Fit) Flux() (float64, bool) { return f.flux.get() }

// R2 returns the coefficient of determination.
func (f *Fit) R2() (float64, bool) { return f.r2.get() }

// AdjR2 returns the adjusted coefficient of determination.
func (f *Fit) AdjR2() (float64, bool) { return f.adjR2.get() }

// Sigma returns the residual standard error.
func (f *Fit) Sigma() (float64, bool) { return f.sigma.get() }

// PValue returns the two-sided slope p-value. Only the linear and
// exponential kinds carry a closed-form test statistic.
func (f *Fit) PValue() (float64, bool) { return f.pValue.get() }

// AIC returns the Akaike Information Criterion; lower is better.
func (f *Fit) AIC() (float64, bool) { return f.aic.get() }

// RMSE returns the root mean square error.
func (f *Fit) RMSE() (float64, bool) { return f.rmse.get() }

// CV returns the coefficient of variation (RMSE over the mean response).
func (f *Fit) CV() (float64, bool) { return f.cv.get() }

// Intercept returns the fitted curve's value at the window start. For the
// exponential kind this is the coefficient a of y = a·exp(b·x).
func (f *Fit) Intercept() (float64, bool) {
	switch f.Kind {
	case Linear:
		return f.lin.Intercept, true
	case Poly:
		return f.poly.A0, true
	case RobLin:
		return f.rob.Intercept, true
	case Exponential:
		return f.exp.A, true
	}
	return 0, false
}

// Slope returns the fitted curve's initial slope: the line slope for the
// linear kinds, the derivative at the window start for polynomial, and a·b
// for exponential.
func (f *Fit) Slope() (float64, bool) {
	switch f.Kind {
	case Linear:
		return f.lin.Slope, true
	case Poly:
		return f.poly.A1, true
	case RobLin:
		return f.rob.Slope, true
	case Exponential:
		return f.exp.A * f.exp.B, true
	}
	return 0, false
}

// Predict evaluates the fitted curve at absolute sample time x. Time is
// normalized to the window start internally, matching the normalization
// applied during fitting.
func (f *Fit) Predict(x float64) (float64, bool) {
	switch f.Kind {
	case Linear:
		return f.lin.Calculate(x - f.RangeStart), true
	case Poly:
		return f.poly.Calculate(x - f.xOffset), true
	case RobLin:
		return f.rob.Calculate(x - f.RangeStart), true
	case Exponential:
		return f.exp.Calculate(x - f.RangeStart), true
	}
	return 0, false
}

// FitModel dispatches to the fitter for the given kind.
func FitModel(kind ModelKind, ch gas.Channel, x, y []float64, start, end float64, env Env) (*Fit, error) {
	switch kind {
	case Linear:
		return FitLinear(ch, x, y, start, end, env)
	case Poly:
		return FitPoly(ch, x, y, start, end, env)
	case RobLin:
		return FitRobLin(ch, x, y, start, end, env)
	case Exponential:
		return FitExponential(ch, x, y, start, end, env)
	}
	return nil, fmt.Errorf("unknown model kind %v", kind)
}

// FitLinear fits an ordinary least-squares line and derives the full
// statistics set including a Student's-t slope p-value.
func FitLinear(ch gas.Channel, x, y []float64, start, end float64, env Env) (*Fit, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(y))
	}
	if len(x) < 3 {
		return nil, fmt.Errorf("%w: got %d, need at least 3", ErrTooFewPoints, len(x))
	}

	xNorm := normalize(x)
	n := float64(len(x))

	model := stats.FitLinReg(xNorm, y)

	yHat := make([]float64, len(xNorm))
	for i, xi := range xNorm {
		yHat[i] = model.Calculate(xi)
	}
	rss := residualSS(y, yHat)

	var xMean float64
	for _, xi := range xNorm {
		xMean += xi
	}
	xMean /= n
	var ssXX float64
	for _, xi := range xNorm {
		d := xi - xMean
		ssXX += d * d
	}
	if !finite(ssXX) || ssXX <= math.SmallestNonzeroFloat64 {
		return nil, fmt.Errorf("%w: no variance in x", ErrDegenerate)
	}

	sigma := math.Sqrt(rss / (n - 2))
	if !finite(sigma) {
		return nil, fmt.Errorf("%w: non-finite sigma", ErrDegenerate)
	}
	seSlope := sigma / math.Sqrt(ssXX)
	if !finite(seSlope) || seSlope <= 0 {
		return nil, fmt.Errorf("%w: non-positive standard error of slope", ErrDegenerate)
	}
	tStat := model.Slope / seSlope
	pValue, pOK := stats.TwoSidedPValue(tStat, n-2)
	if !pOK {
		return nil, fmt.Errorf("%w: non-finite t statistic", ErrDegenerate)
	}

	f := &Fit{
		Kind:       Linear,
		Channel:    ch,
		RangeStart: start,
		RangeEnd:   end,
		lin:        model,
		sigma:      someStat(sigma),
		pValue:     someStat(pValue),
		aic:        someStat(stats.AICFromRSS(rss, len(x), 2)),
		flux:       someStat(UmolM2S(ch, model.Slope, env)),
	}
	f.fillResidualStats(y, yHat, 1)
	return f, nil
}

// FitPoly fits a degree-2 polynomial. The flux derives from the curve's
// slope at the window start; no p-value is produced.
func FitPoly(ch gas.Channel, x, y []float64, start, end float64, env Env) (*Fit, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(y))
	}
	if len(x) < 3 {
		return nil, fmt.Errorf("%w: got %d, need at least 3", ErrTooFewPoints, len(x))
	}

	x0 := x[0]
	xNorm := normalize(x)
	n := len(x)

	model, ok := stats.FitPolyReg(xNorm, y)
	if !ok {
		return nil, fmt.Errorf("%w: singular polynomial system", ErrDegenerate)
	}

	yHat := make([]float64, len(xNorm))
	for i, xi := range xNorm {
		yHat[i] = model.Calculate(xi)
	}
	rss := residualSS(y, yHat)

	const k = 2 // predictors: x and x²
	slope := model.Derivative(start - x0)

	f := &Fit{
		Kind:       Poly,
		Channel:    ch,
		RangeStart: start,
		RangeEnd:   end,
		poly:       model,
		xOffset:    x0,
		sigma:      someStat(math.Sqrt(rss / (float64(n) - k - 1))),
		aic:        someStat(stats.AICFromRSS(rss, n, k+1)),
		flux:       someStat(UmolM2S(ch, slope, env)),
	}
	f.fillResidualStats(y, yHat, k)
	return f, nil
}

// FitRobLin fits a Huber-weighted robust line; no p-value is produced.
func FitRobLin(ch gas.Channel, x, y []float64, start, end float64, env Env) (*Fit, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(y))
	}
	if len(x) < 3 {
		return nil, fmt.Errorf("%w: got %d, need at least 3", ErrTooFewPoints, len(x))
	}

	xNorm := normalize(x)
	n := float64(len(x))

	model, ok := stats.FitRobReg(xNorm, y, 1.0, 10)
	if !ok {
		return nil, fmt.Errorf("%w: robust fit did not converge", ErrDegenerate)
	}

	yHat := make([]float64, len(xNorm))
	for i, xi := range xNorm {
		yHat[i] = model.Calculate(xi)
	}
	rss := residualSS(y, yHat)

	f := &Fit{
		Kind:       RobLin,
		Channel:    ch,
		RangeStart: start,
		RangeEnd:   end,
		rob:        model,
		sigma:      someStat(math.Sqrt(rss / (n - 2))),
		aic:        someStat(stats.AICFromRSS(rss, len(x), 2)),
		flux:       someStat(UmolM2S(ch, model.Slope, env)),
	}
	f.fillResidualStats(y, yHat, 2)
	return f, nil
}

// FitExponential fits y = a·exp(b·x). R², AIC and RMSE are computed in the
// original response space; the p-value for b comes from the log-linear fit.
// The flux derives from the initial derivative a·b.
func FitExponential(ch gas.Channel, x, y []float64, start, end float64, env Env) (*Fit, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(y))
	}
	if len(x) < 3 {
		return nil, fmt.Errorf("%w: got %d, need at least 3", ErrTooFewPoints, len(x))
	}
	for _, v := range y {
		if v <= 0 {
			return nil, ErrNonPositiveY
		}
	}

	xNorm := normalize(x)
	n := float64(len(x))

	model, ok := stats.FitExpReg(xNorm, y)
	if !ok {
		return nil, fmt.Errorf("%w: exponential fit failed", ErrDegenerate)
	}

	yHat := make([]float64, len(xNorm))
	for i, xi := range xNorm {
		yHat[i] = model.Calculate(xi)
	}
	rss := residualSS(y, yHat)
	sigma := math.Sqrt(rss / (n - 2))

	// p-value for b from the log-linear fit ln(y) = ln(a) + b·x.
	lnY := make([]float64, len(y))
	for i, v := range y {
		lnY[i] = math.Log(v)
	}
	lnModel := stats.FitLinReg(xNorm, lnY)
	lnYHat := make([]float64, len(xNorm))
	for i, xi := range xNorm {
		lnYHat[i] = lnModel.Calculate(xi)
	}
	rssLn := residualSS(lnY, lnYHat)
	sigmaLn := math.Sqrt(rssLn / (n - 2))
	if !finite(sigmaLn) {
		return nil, fmt.Errorf("%w: non-finite log-space sigma", ErrDegenerate)
	}

	var xMean float64
	for _, xi := range xNorm {
		xMean += xi
	}
	xMean /= n
	var ssXX float64
	for _, xi := range xNorm {
		d := xi - xMean
		ssXX += d * d
	}
	if !finite(ssXX) || ssXX <= math.SmallestNonzeroFloat64 {
		return nil, fmt.Errorf("%w: no variance in x", ErrDegenerate)
	}
	seB := sigmaLn / math.Sqrt(ssXX)
	if !finite(seB) || seB <= 0 {
		return nil, fmt.Errorf("%w: non-positive standard error of b", ErrDegenerate)
	}
	pValue, pOK := stats.TwoSidedPValue(lnModel.Slope/seB, n-2)
	if !pOK {
		return nil, fmt.Errorf("%w: non-finite t statistic", ErrDegenerate)
	}

	f := &Fit{
		Kind:       Exponential,
		Channel:    ch,
		RangeStart: start,
		RangeEnd:   end,
		exp:        model,
		sigma:      someStat(sigma),
		pValue:     someStat(pValue),
		aic:        someStat(stats.AICFromRSS(rss, len(x), 2)),
		flux:       someStat(UmolM2S(ch, model.A*model.B, env)),
	}
	f.fillResidualStats(y, yHat, 2)
	return f, nil
}

// fillResidualStats sets the residual-derived statistics shared by every
// kind: R², adjusted R² with k predictors, RMSE and CV.
func (f *Fit) fillResidualStats(y, yHat []float64, k int) {
	if r2, ok := stats.RSquared(y, yHat); ok {
		f.r2 = someStat(r2)
		f.adjR2 = someStat(stats.AdjustedRSquared(r2, len(y), k))
	}
	if rmse, ok := stats.RMSE(y, yHat); ok {
		f.rmse = someStat(rmse)
		var yMean float64
		for _, yi := range y {
			yMean += yi
		}
		yMean /= float64(len(y))
		if yMean != 0 {
			f.cv = someStat(rmse / yMean)
		}
	}
}

func normalize(x []float64) []float64 {
	x0 := x[0]
	out := make([]float64, len(x))
	for i, xi := range x {
		out[i] = xi - x0
	}
	return out
}

func residualSS(y, yHat []float64) float64 {
	var rss float64
	for i, yi := range y {
		d := yi - yHat[i]
		rss += d * d
	}
	return rss
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
