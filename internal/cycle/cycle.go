// Package cycle implements the chamber measurement cycle engine: the
// timing/calculation-window state machine, the per-cycle fit bookkeeping and
// validity determination, and the filtered navigator used to traverse
// cycles during interactive validation.
package cycle

import (
	"math"

	"github.com/kootepe/fluxrs-sub001/internal/flux"
	"github.com/kootepe/fluxrs-sub001/internal/gas"
	"github.com/kootepe/fluxrs-sub001/internal/monitoring"
	"github.com/kootepe/fluxrs-sub001/internal/stats"
)

// mainRThreshold is the measurement R² below which the main channel trips
// the low-r error.
const mainRThreshold = 0.98

// FitKey addresses one fitted model: a gas channel and a model kind.
type FitKey struct {
	Key  gas.Key
	Kind flux.ModelKind
}

// Cycle is one closed-chamber measurement interval: its timing state, the
// per-channel concentration series, the fitted flux models and the validity
// bookkeeping. Recomputation is pull-based; nothing refits automatically
// when the window moves, callers invoke ComputeAllFluxes explicitly.
type Cycle struct {
	ID        int64
	ChamberID string
	ProjectID int64

	MainGas          gas.Type
	MainInstrumentID int64

	Env flux.Env

	Timing *Timing

	ErrorCode ErrorMask
	// IsValid is the computed validity; OverrideValid, when non-nil, is a
	// manual override and ManualValid records that an override is active.
	IsValid        bool
	OverrideValid  *bool
	ManualValid    bool
	ManualAdjusted bool
	// Dirty marks the cycle as mutated since the last persistence write.
	Dirty bool

	Gases    []gas.Key
	channels map[gas.Key]gas.Channel

	// raw series: one time axis and diagnostic-flag vector per instrument,
	// one concentration vector per channel. Missing concentrations are NaN.
	timeAxes map[int64][]float64
	concs    map[gas.Key][]float64
	diags    map[int64][]int64

	fits          map[FitKey]*flux.Fit
	measurementR2 map[gas.Key]float64
	calcR2        map[gas.Key]float64
	t0            map[gas.Key]float64
	minY          map[gas.Key]float64
	maxY          map[gas.Key]float64
}

// MainKey returns the key of the main gas channel, the one error checking
// and visibility filtering evaluate.
func (c *Cycle) MainKey() gas.Key {
	return gas.Key{Gas: c.MainGas, InstrumentID: c.MainInstrumentID}
}

// Channel returns the channel description for a key.
func (c *Cycle) Channel(key gas.Key) (gas.Channel, bool) {
	ch, ok := c.channels[key]
	return ch, ok
}

// TimeAxis returns the instrument's sample timestamps.
func (c *Cycle) TimeAxis(instrumentID int64) []float64 {
	return c.timeAxes[instrumentID]
}

// Concentrations returns the channel's raw concentration series; missing
// samples are NaN.
func (c *Cycle) Concentrations(key gas.Key) []float64 {
	return c.concs[key]
}

// Diagnostics returns the instrument's diagnostic-flag series.
func (c *Cycle) Diagnostics(instrumentID int64) []int64 {
	return c.diags[instrumentID]
}

// Fit returns the fitted model for a (channel, kind) pair, if one exists.
func (c *Cycle) Fit(key gas.Key, kind flux.ModelKind) (*flux.Fit, bool) {
	f, ok := c.fits[FitKey{Key: key, Kind: kind}]
	return f, ok
}

// Fits returns all fitted models.
func (c *Cycle) Fits() map[FitKey]*flux.Fit {
	return c.fits
}

// MeasurementR2 returns the channel's measurement-window R², if computed.
func (c *Cycle) MeasurementR2(key gas.Key) (float64, bool) {
	v, ok := c.measurementR2[key]
	return v, ok
}

// CalcR2 returns the channel's calculation-window R², if computed.
func (c *Cycle) CalcR2(key gas.Key) (float64, bool) {
	v, ok := c.calcR2[key]
	return v, ok
}

// T0Concentration returns the channel's concentration at chamber closure,
// if computed.
func (c *Cycle) T0Concentration(key gas.Key) (float64, bool) {
	v, ok := c.t0[key]
	return v, ok
}

// MinY returns the channel's minimum concentration, if computed.
func (c *Cycle) MinY(key gas.Key) (float64, bool) {
	v, ok := c.minY[key]
	return v, ok
}

// MaxY returns the channel's maximum concentration, if computed.
func (c *Cycle) MaxY(key gas.Key) (float64, bool) {
	v, ok := c.maxY[key]
	return v, ok
}

// StartTS returns the cycle's start timestamp in epoch seconds.
func (c *Cycle) StartTS() int64 { return c.Timing.StartTS() }

// MeasurementData returns the (time, concentration) samples inside the
// adjusted measurement window [close, open).
func (c *Cycle) MeasurementData(key gas.Key) (x, y []float64) {
	return c.windowData(key, c.Timing.AdjustedClose(), c.Timing.AdjustedOpen())
}

// CalcData returns the (time, concentration) samples inside the channel's
// calculation window.
func (c *Cycle) CalcData(key gas.Key) (x, y []float64) {
	return c.windowData(key, c.Timing.CalcStart(key), c.Timing.CalcEnd(key))
}

func (c *Cycle) windowData(key gas.Key, startTime, endTime float64) (x, y []float64) {
	times := c.timeAxes[key.InstrumentID]
	conc, ok := c.concs[key]
	if !ok {
		return nil, nil
	}
	for i, t := range times {
		if t >= startTime && t < endTime {
			x = append(x, t)
			v := math.NaN()
			if i < len(conc) {
				v = conc[i]
			}
			y = append(y, v)
		}
	}
	return x, y
}

// measurementDiag returns the diagnostic flags inside the measurement
// window.
func (c *Cycle) measurementDiag(key gas.Key) []int64 {
	startTime := c.Timing.AdjustedClose()
	endTime := c.Timing.AdjustedOpen()

	times := c.timeAxes[key.InstrumentID]
	diag := c.diags[key.InstrumentID]

	var out []int64
	for i, t := range times {
		if t >= startTime && t < endTime {
			var v int64
			if i < len(diag) {
				v = diag[i]
			}
			out = append(out, v)
		}
	}
	return out
}

// ComputeAllFluxes refits every model kind on every channel's current
// calculation window.
func (c *Cycle) ComputeAllFluxes() {
	for _, key := range c.Gases {
		c.ComputeFlux(key)
	}
}

// ComputeFlux refits every model kind for one channel. Kinds that fail to
// fit leave their slot empty; earlier results for the pair are replaced or
// dropped.
func (c *Cycle) ComputeFlux(key gas.Key) {
	x, y := c.CalcData(key)
	ch, ok := c.channels[key]
	if !ok {
		return
	}

	var start, end float64
	if len(x) > 0 {
		start = x[0]
		end = x[len(x)-1]
	}

	for _, kind := range flux.Kinds() {
		fit, err := flux.FitModel(kind, ch, x, y, start, end, c.Env)
		if err != nil {
			monitoring.Logf("cycle %d: %v fit skipped for %s: %v", c.ID, kind, key, err)
			delete(c.fits, FitKey{Key: key, Kind: kind})
			continue
		}
		c.fits[FitKey{Key: key, Kind: kind}] = fit
	}
	c.Dirty = true
}

// BestModelByAIC selects the model kind with the smallest defined AIC for
// the channel. Ties break toward the earlier kind in declaration order,
// making selection deterministic. Reports false when no kind produced a
// defined AIC.
func (c *Cycle) BestModelByAIC(key gas.Key) (flux.ModelKind, bool) {
	best := flux.Linear
	bestAIC := math.Inf(1)
	found := false
	for _, kind := range flux.Kinds() {
		fit, ok := c.fits[FitKey{Key: key, Kind: kind}]
		if !ok {
			continue
		}
		aic, ok := fit.AIC()
		if !ok {
			continue
		}
		if !found || aic < bestAIC {
			best = kind
			bestAIC = aic
			found = true
		}
	}
	return best, found
}

// IsValidByThreshold combines the four threshold checks for one (channel,
// kind) pair: p-value below, measurement R² above, RMSE below and t0
// concentration below their thresholds. Every check is conjunctive, and an
// undefined statistic fails its check rather than passing.
func (c *Cycle) IsValidByThreshold(key gas.Key, kind flux.ModelKind, th Thresholds) bool {
	fit, ok := c.fits[FitKey{Key: key, Kind: kind}]
	if !ok {
		return false
	}

	pVal, ok := fit.PValue()
	if !ok {
		return false
	}
	rmse, ok := fit.RMSE()
	if !ok {
		return false
	}
	r2, ok := c.measurementR2[key]
	if !ok {
		return false
	}
	t0, ok := c.t0[key]
	if !ok {
		return false
	}

	return pVal < th.PValue && r2 > th.R2 && rmse < th.RMSE && t0 < th.T0
}

// HasError reports whether the error bit is set.
func (c *Cycle) HasError(code ErrorCode) bool {
	return c.ErrorCode.Contains(code)
}

// AddError sets an error bit; any set bit invalidates the cycle.
func (c *Cycle) AddError(code ErrorCode) {
	c.ErrorCode.Add(code)
	c.IsValid = false
	c.Dirty = true
}

// RemoveError clears an error bit; a clean mask revalidates the cycle.
func (c *Cycle) RemoveError(code ErrorCode) {
	c.ErrorCode.Remove(code)
	if c.ErrorCode == 0 {
		c.IsValid = true
	}
	c.Dirty = true
}

// SetAutomaticValid applies computed validity unless a manual override is
// active. Error bits always force invalidity.
func (c *Cycle) SetAutomaticValid(valid bool) {
	if c.OverrideValid == nil {
		c.IsValid = valid && c.ErrorCode == 0
	}
}

// ToggleManualValid flips the cycle's validity by hand. The first toggle
// installs an override opposite to the current state; toggling again
// removes it. A manual invalid sets the corresponding error bit, a manual
// valid wipes the error mask.
func (c *Cycle) ToggleManualValid() {
	beforeValid := c.IsValid
	beforeOverride := c.OverrideValid
	beforeErrors := c.ErrorCode

	if c.OverrideValid != nil {
		c.OverrideValid = nil
	} else {
		v := !c.IsValid
		c.OverrideValid = &v
	}

	c.IsValid = !c.IsValid
	c.ManualValid = c.OverrideValid != nil

	if c.ManualValid && c.OverrideValid != nil && !*c.OverrideValid {
		c.AddError(ErrManualInvalid)
	} else {
		c.RemoveError(ErrManualInvalid)
	}
	if c.ManualValid && c.OverrideValid != nil && *c.OverrideValid {
		c.ErrorCode = 0
		c.IsValid = true
	}

	if beforeValid != c.IsValid || beforeOverride != c.OverrideValid || beforeErrors != c.ErrorCode {
		c.ManualAdjusted = true
	}
	c.Dirty = true
}

// RestoreStatistics reinstates persisted per-channel statistics without
// recomputing them; nil pointers leave the slot absent.
func (c *Cycle) RestoreStatistics(key gas.Key, measurementR2, calcR2, t0 *float64) {
	if measurementR2 != nil {
		c.measurementR2[key] = *measurementR2
	}
	if calcR2 != nil {
		c.calcR2[key] = *calcR2
	}
	if t0 != nil {
		c.t0[key] = *t0
	}
}

// CalculateT0Concentrations records each channel's first concentration
// inside the measurement window, the extrapolation anchor for the
// t0 threshold check.
func (c *Cycle) CalculateT0Concentrations() {
	for _, key := range c.Gases {
		_, y := c.MeasurementData(key)
		if len(y) == 0 {
			c.t0[key] = 0
			continue
		}
		c.t0[key] = y[0]
	}
}

// CalculateMeasurementR2s computes each channel's squared Pearson
// correlation over the measurement window. Channels with undefined
// correlation record zero.
func (c *Cycle) CalculateMeasurementR2s() {
	for _, key := range c.Gases {
		x, y := c.MeasurementData(key)
		r, ok := stats.Pearson(x, y)
		if !ok {
			r = 0
		}
		c.measurementR2[key] = r * r
	}
}

// CalculateCalcR2 computes one channel's squared Pearson correlation over
// its calculation window.
func (c *Cycle) CalculateCalcR2(key gas.Key) {
	x, y := c.CalcData(key)
	r, ok := stats.Pearson(x, y)
	if !ok {
		r = 0
	}
	c.calcR2[key] = r * r
}

// CalculateCalcR2s computes CalculateCalcR2 for every channel.
func (c *Cycle) CalculateCalcR2s() {
	for _, key := range c.Gases {
		c.CalculateCalcR2(key)
	}
}

// CalculateMinMaxY records each channel's concentration extremes, skipping
// missing samples.
func (c *Cycle) CalculateMinMaxY() {
	for key, conc := range c.concs {
		minV := math.Inf(1)
		maxV := math.Inf(-1)
		for _, v := range conc {
			if math.IsNaN(v) {
				continue
			}
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}
		c.minY[key] = minV
		c.maxY[key] = maxV
	}
}

// CheckMainR trips the low-r error when the main channel's measurement R²
// is below the fixed threshold or undefined.
func (c *Cycle) CheckMainR() {
	r2, ok := c.measurementR2[c.MainKey()]
	if !ok || r2 < mainRThreshold {
		c.AddError(ErrLowR)
		return
	}
	c.RemoveError(ErrLowR)
}

// CheckMeasurementDiag trips the diagnostics error when any sample inside
// the measurement window carries a nonzero diagnostic flag.
func (c *Cycle) CheckMeasurementDiag() bool {
	var nonzero int
	for _, v := range c.measurementDiag(c.MainKey()) {
		if v != 0 {
			nonzero++
		}
	}
	if nonzero > 0 {
		c.AddError(ErrDiagInMeasurement)
		return true
	}
	c.RemoveError(ErrDiagInMeasurement)
	return false
}

// CheckMissing trips the too-few-measurements error when the main channel
// is missing more than 30% of its expected samples, or the series is
// shorter than 99% of the cycle length.
func (c *Cycle) CheckMissing() {
	conc, ok := c.concs[c.MainKey()]
	if !ok {
		c.AddError(ErrTooFewPoints)
		return
	}
	var validCount int
	for _, v := range conc {
		if !math.IsNaN(v) {
			validCount++
		}
	}
	endOffset := float64(c.Timing.EndOffset())
	tooSparse := float64(validCount) < endOffset*0.7
	tooShort := float64(len(conc)) < endOffset*0.99
	if tooSparse || tooShort {
		c.AddError(ErrTooFewPoints)
		return
	}
	c.RemoveError(ErrTooFewPoints)
}

// CheckErrors runs the automatic error checks and settles validity.
func (c *Cycle) CheckErrors() {
	c.CheckMainR()
	c.CheckMeasurementDiag()
	c.CheckMissing()
	if c.ErrorCode == 0 || (c.OverrideValid != nil && *c.OverrideValid) {
		c.IsValid = true
	}
}

// SetCalcRanges positions every channel's calculation window immediately
// after its deadband at the minimum length, the AfterDeadband placement.
func (c *Cycle) SetCalcRanges() {
	for _, key := range c.Gases {
		start := c.Timing.MeasurementStart() + c.Timing.Deadband(key)
		end := start + c.Timing.MinCalcLen()
		c.Timing.SetCalcStart(key, start)
		c.Timing.SetCalcEnd(key, end)
	}
	c.Dirty = true
}

// ResetDeadbands sets every channel's deadband to the project default.
func (c *Cycle) ResetDeadbands(deadband float64) {
	for _, key := range c.Gases {
		c.Timing.SetDeadband(key, deadband)
	}
	c.Dirty = true
}

// SetDeadband changes one channel's deadband and runs the dependent
// recomputation: window re-clamp with deadband growth, error checks,
// measurement statistics and a full refit.
func (c *Cycle) SetDeadband(key gas.Key, deadband float64) {
	c.Timing.SetDeadband(key, deadband)
	c.Timing.AdjustCalcRangeAllDeadband(c.Gases)
	c.CheckErrors()
	c.CalculateMeasurementR2s()
	c.ComputeAllFluxes()
}

// SearchOpenLag positions the open lag at the concentration peak in the
// last quarter of the channel's trace. Short traces (under two minutes of
// samples) are left alone. Returns the peak time when one was found.
func (c *Cycle) SearchOpenLag(key gas.Key) (float64, bool) {
	conc, ok := c.concs[key]
	if !ok || len(conc) < 120 {
		return 0, false
	}
	times := c.timeAxes[key.InstrumentID]

	searchLen := len(conc) / 4
	startIndex := len(conc) - searchLen
	if startIndex < 0 {
		startIndex = 0
	}

	maxIdx := -1
	maxVal := math.Inf(-1)
	for i := startIndex; i < len(conc); i++ {
		v := conc[i]
		if math.IsNaN(v) {
			continue
		}
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	if maxIdx < 0 || maxIdx >= len(times) {
		return 0, false
	}

	peakTime := times[maxIdx]
	openLag := peakTime - float64(c.StartTS()+c.Timing.OpenOffset())
	c.Timing.SetOpenLag(openLag)
	c.Dirty = true
	return peakTime, true
}

// Init runs the load-time pipeline: reset lags and deadbands, search the
// open lag, position the calculation windows per the selection mode, then
// compute every derived statistic and check for errors.
func (c *Cycle) Init(mode Mode, deadband float64) {
	c.ManualAdjusted = false
	c.Timing.SetCloseLag(0)
	c.Timing.SetOpenLag(0)
	c.ResetDeadbands(deadband)

	c.CheckMissing()
	if c.HasError(ErrDiagInMeasurement) && c.HasError(ErrTooFewPoints) {
		return
	}

	c.SearchOpenLag(c.MainKey())
	if mode == BestPearsonsR {
		c.FindBestRWindows()
	} else {
		c.SetCalcRanges()
	}
	c.CheckMeasurementDiag()
	c.CalculateT0Concentrations()
	c.CalculateMeasurementR2s()
	c.CheckMainR()
	c.ComputeAllFluxes()
	c.CalculateMinMaxY()
	c.CheckErrors()
}
