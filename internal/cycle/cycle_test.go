package cycle

import (
	"math"
	"testing"
	"time"

	"github.com/kootepe/fluxrs-sub001/internal/flux"
	"github.com/kootepe/fluxrs-sub001/internal/gas"
)

const cycleStartTS = 100000

// rampSeries builds a 1 Hz trace: flat baseline before closeIdx, a linear
// rise up to peakIdx, then a steeper fall. Alternating noise keeps the
// regressions away from zero-residual degeneracy.
func rampSeries(n, closeIdx, peakIdx int) Series {
	s := Series{
		Time: make([]float64, n),
		Conc: make([]float64, n),
		Diag: make([]int64, n),
	}
	for i := 0; i < n; i++ {
		s.Time[i] = float64(cycleStartTS + i)
		var v float64
		switch {
		case i < closeIdx:
			v = 2.0
		case i <= peakIdx:
			v = 2.0 + 0.01*float64(i-closeIdx)
		default:
			peak := 2.0 + 0.01*float64(peakIdx-closeIdx)
			v = peak - 0.05*float64(i-peakIdx)
		}
		noise := 0.002
		if i%2 == 0 {
			noise = -noise
		}
		s.Conc[i] = v + noise
	}
	return s
}

// buildTestCycle assembles a single-channel CH4 cycle over a 360s interval
// with a 60s close and 300s open offset.
func buildTestCycle(t *testing.T, s Series) *Cycle {
	t.Helper()
	b := NewBuilder("AC1", time.Unix(cycleStartTS, 0))
	b.CloseOffset = 60
	b.OpenOffset = 300
	b.EndOffset = 360
	b.MainGas = gas.CH4
	b.MainInstrumentID = 1
	b.AirTemperatureC = 10
	b.AirPressureHPa = 1000
	b.Deadband = 30
	b.MinCalcLen = 60
	b.AddChannel(gas.NewChannel(gas.CH4, gas.PPM, 1), s)

	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return c
}

func TestMeasurementData(t *testing.T) {
	c := buildTestCycle(t, rampSeries(360, 60, 300))

	x, y := c.MeasurementData(testKey)
	if len(x) != 240 || len(y) != 240 {
		t.Fatalf("measurement window has %d/%d samples, want 240", len(x), len(y))
	}
	approx(t, x[0], cycleStartTS+60, 0, "first sample at adjusted close")
	approx(t, x[len(x)-1], cycleStartTS+299, 0, "last sample before adjusted open")
}

func TestSetCalcRanges(t *testing.T) {
	c := buildTestCycle(t, rampSeries(360, 60, 300))
	c.Timing.DragMain(testKey, 100)

	c.SetCalcRanges()
	approx(t, c.Timing.CalcStart(testKey), cycleStartTS+90, 0, "start after deadband")
	approx(t, c.Timing.CalcEnd(testKey), cycleStartTS+150, 0, "end at min length")
	if !c.Dirty {
		t.Error("SetCalcRanges should mark the cycle dirty")
	}
}

func TestInitComputesStatisticsAndFits(t *testing.T) {
	c := buildTestCycle(t, rampSeries(360, 60, 300))
	c.Init(AfterDeadband, 30)

	if c.ErrorCode != 0 {
		t.Fatalf("clean cycle has errors: %v", c.ErrorCode)
	}
	if !c.IsValid {
		t.Error("clean cycle should be valid")
	}

	// The peak sits exactly at the open offset, so the searched lag is zero.
	approx(t, c.Timing.OpenLag(), 0, 1e-9, "open lag at peak")

	r2, ok := c.MeasurementR2(testKey)
	if !ok || r2 < 0.98 {
		t.Errorf("measurement R² = %f, %v; want > 0.98", r2, ok)
	}

	t0, ok := c.T0Concentration(testKey)
	if !ok {
		t.Fatal("t0 concentration not computed")
	}
	approx(t, t0, 2.0, 0.01, "t0 at baseline")

	for _, kind := range flux.Kinds() {
		if _, ok := c.Fit(testKey, kind); !ok {
			t.Errorf("no %v fit after Init", kind)
		}
	}

	minY, ok := c.MinY(testKey)
	if !ok || minY > 2.1 {
		t.Errorf("MinY = %f, %v", minY, ok)
	}
	maxY, ok := c.MaxY(testKey)
	if !ok || maxY < 4.3 {
		t.Errorf("MaxY = %f, %v", maxY, ok)
	}

	fit, ok := c.Fit(testKey, flux.Linear)
	if !ok {
		t.Fatal("no linear fit")
	}
	slope, ok := fit.Slope()
	if !ok {
		t.Fatal("linear fit has no slope")
	}
	approx(t, slope, 0.01, 0.001, "linear slope over calc window")
}

func TestInitSkipsComputationOnBadData(t *testing.T) {
	// Sparse trace plus a pre-existing diagnostics error short-circuits the
	// pipeline before any fitting.
	s := rampSeries(360, 60, 300)
	for i := range s.Conc {
		if i%2 == 0 {
			s.Conc[i] = math.NaN()
		}
	}
	c := buildTestCycle(t, s)
	c.AddError(ErrDiagInMeasurement)

	c.Init(AfterDeadband, 30)
	if !c.HasError(ErrTooFewPoints) {
		t.Error("sparse trace should trip the too-few-points error")
	}
	if len(c.Fits()) != 0 {
		t.Errorf("expected no fits, got %d", len(c.Fits()))
	}
}

func TestBestModelByAIC(t *testing.T) {
	c := buildTestCycle(t, rampSeries(360, 60, 300))

	if _, found := c.BestModelByAIC(testKey); found {
		t.Error("no fits yet, best model should not be found")
	}

	c.Init(AfterDeadband, 30)
	best, found := c.BestModelByAIC(testKey)
	if !found {
		t.Fatal("best model not found after Init")
	}
	bestFit, ok := c.Fit(testKey, best)
	if !ok {
		t.Fatalf("winning kind %v has no fit", best)
	}
	bestAIC, ok := bestFit.AIC()
	if !ok {
		t.Fatalf("winning kind %v has no AIC", best)
	}
	for fk, fit := range c.Fits() {
		if aic, ok := fit.AIC(); ok && aic < bestAIC {
			t.Errorf("%v has AIC %f below winner's %f", fk.Kind, aic, bestAIC)
		}
	}
}

func TestIsValidByThreshold(t *testing.T) {
	c := buildTestCycle(t, rampSeries(360, 60, 300))
	th := DefaultThresholds()

	if c.IsValidByThreshold(testKey, flux.Linear, th) {
		t.Error("cycle with no fits should fail the threshold check")
	}

	c.Init(AfterDeadband, 30)
	if !c.IsValidByThreshold(testKey, flux.Linear, th) {
		t.Error("clean linear fit should pass default thresholds")
	}

	// Kinds without a p-value fail rather than pass.
	if c.IsValidByThreshold(testKey, flux.Poly, th) {
		t.Error("polynomial fit has no p-value and should fail")
	}

	// A missing statistic fails its check.
	delete(c.t0, testKey)
	if c.IsValidByThreshold(testKey, flux.Linear, th) {
		t.Error("absent t0 should fail the threshold check")
	}
}

func TestErrorMaskDrivesValidity(t *testing.T) {
	c := buildTestCycle(t, rampSeries(360, 60, 300))
	if !c.IsValid {
		t.Fatal("fresh cycle should be valid")
	}

	c.AddError(ErrLowR)
	if c.IsValid {
		t.Error("cycle with an error should be invalid")
	}
	if !c.HasError(ErrLowR) {
		t.Error("error bit not set")
	}

	c.AddError(ErrTooFewPoints)
	c.RemoveError(ErrLowR)
	if c.IsValid {
		t.Error("one remaining error should keep the cycle invalid")
	}

	c.RemoveError(ErrTooFewPoints)
	if !c.IsValid {
		t.Error("clean mask should revalidate the cycle")
	}
}

func TestSetAutomaticValid(t *testing.T) {
	c := buildTestCycle(t, rampSeries(360, 60, 300))

	c.SetAutomaticValid(false)
	if c.IsValid {
		t.Error("automatic invalid not applied")
	}
	c.SetAutomaticValid(true)
	if !c.IsValid {
		t.Error("automatic valid not applied")
	}

	// Error bits always force invalidity.
	c.AddError(ErrLowR)
	c.SetAutomaticValid(true)
	if c.IsValid {
		t.Error("errors must override automatic validity")
	}
	c.RemoveError(ErrLowR)

	// An active manual override blocks automatic updates.
	c.ToggleManualValid()
	wasValid := c.IsValid
	c.SetAutomaticValid(!wasValid)
	if c.IsValid != wasValid {
		t.Error("automatic validity applied over a manual override")
	}
}

func TestToggleManualValid(t *testing.T) {
	t.Run("invalidate a valid cycle and back", func(t *testing.T) {
		c := buildTestCycle(t, rampSeries(360, 60, 300))

		c.ToggleManualValid()
		if c.IsValid {
			t.Error("first toggle should invalidate")
		}
		if c.OverrideValid == nil || *c.OverrideValid {
			t.Error("override should be installed as invalid")
		}
		if !c.HasError(ErrManualInvalid) {
			t.Error("manual invalid should set its error bit")
		}
		if !c.ManualAdjusted {
			t.Error("toggle should mark the cycle manually adjusted")
		}

		c.ToggleManualValid()
		if !c.IsValid {
			t.Error("second toggle should restore validity")
		}
		if c.OverrideValid != nil || c.ManualValid {
			t.Error("second toggle should remove the override")
		}
		if c.HasError(ErrManualInvalid) {
			t.Error("manual invalid bit should be cleared")
		}
	})

	t.Run("validate an invalid cycle wipes its errors", func(t *testing.T) {
		c := buildTestCycle(t, rampSeries(360, 60, 300))
		c.AddError(ErrLowR)

		c.ToggleManualValid()
		if !c.IsValid {
			t.Error("manual valid should force validity")
		}
		if c.OverrideValid == nil || !*c.OverrideValid {
			t.Error("override should be installed as valid")
		}
		if c.ErrorCode != 0 {
			t.Errorf("manual valid should wipe the error mask, got %v", c.ErrorCode)
		}
	})
}

func TestCheckMissing(t *testing.T) {
	t.Run("complete trace passes", func(t *testing.T) {
		c := buildTestCycle(t, rampSeries(360, 60, 300))
		c.CheckMissing()
		if c.HasError(ErrTooFewPoints) {
			t.Error("complete trace should not trip too-few-points")
		}
	})

	t.Run("sparse trace fails", func(t *testing.T) {
		s := rampSeries(360, 60, 300)
		for i := range s.Conc {
			if i%2 == 0 {
				s.Conc[i] = math.NaN()
			}
		}
		c := buildTestCycle(t, s)
		c.CheckMissing()
		if !c.HasError(ErrTooFewPoints) {
			t.Error("half-missing trace should trip too-few-points")
		}
	})

	t.Run("truncated trace fails", func(t *testing.T) {
		c := buildTestCycle(t, rampSeries(300, 60, 290))
		c.CheckMissing()
		if !c.HasError(ErrTooFewPoints) {
			t.Error("truncated trace should trip too-few-points")
		}
	})
}

func TestCheckMeasurementDiag(t *testing.T) {
	t.Run("flag inside the window trips", func(t *testing.T) {
		s := rampSeries(360, 60, 300)
		s.Diag[100] = 1
		c := buildTestCycle(t, s)
		if !c.CheckMeasurementDiag() {
			t.Error("diagnostic flag inside the measurement window should trip")
		}
		if !c.HasError(ErrDiagInMeasurement) {
			t.Error("error bit not set")
		}
	})

	t.Run("flag outside the window is ignored", func(t *testing.T) {
		s := rampSeries(360, 60, 300)
		s.Diag[10] = 1
		s.Diag[350] = 1
		c := buildTestCycle(t, s)
		if c.CheckMeasurementDiag() {
			t.Error("flags outside the measurement window should not trip")
		}
	})
}

func TestCheckMainR(t *testing.T) {
	c := buildTestCycle(t, rampSeries(360, 60, 300))

	// No measurement R² yet counts as low.
	c.CheckMainR()
	if !c.HasError(ErrLowR) {
		t.Error("absent measurement R² should trip low-r")
	}

	c.CalculateMeasurementR2s()
	c.CheckMainR()
	if c.HasError(ErrLowR) {
		t.Error("strong linear rise should clear low-r")
	}
}

func TestSearchOpenLag(t *testing.T) {
	t.Run("short trace is left alone", func(t *testing.T) {
		c := buildTestCycle(t, rampSeries(100, 20, 80))
		if _, ok := c.SearchOpenLag(testKey); ok {
			t.Error("traces under 120 samples should not be searched")
		}
	})

	t.Run("late peak shifts the open lag", func(t *testing.T) {
		c := buildTestCycle(t, rampSeries(360, 60, 310))
		peakTime, ok := c.SearchOpenLag(testKey)
		if !ok {
			t.Fatal("peak not found")
		}
		approx(t, peakTime, cycleStartTS+310, 0, "peak time")
		approx(t, c.Timing.OpenLag(), 10, 1e-9, "open lag")
	})
}

func TestCalculateT0Concentrations(t *testing.T) {
	c := buildTestCycle(t, rampSeries(360, 60, 300))
	c.CalculateT0Concentrations()

	t0, ok := c.T0Concentration(testKey)
	if !ok {
		t.Fatal("t0 not recorded")
	}
	approx(t, t0, 2.0, 0.01, "t0 is the first sample after close")
}

func TestRestoreStatistics(t *testing.T) {
	c := buildTestCycle(t, rampSeries(360, 60, 300))

	r2 := 0.99
	c.RestoreStatistics(testKey, &r2, nil, nil)

	got, ok := c.MeasurementR2(testKey)
	if !ok || got != 0.99 {
		t.Errorf("MeasurementR2 = %f, %v; want 0.99", got, ok)
	}
	if _, ok := c.CalcR2(testKey); ok {
		t.Error("nil calc R² pointer should leave the slot absent")
	}
	if _, ok := c.T0Concentration(testKey); ok {
		t.Error("nil t0 pointer should leave the slot absent")
	}
}
