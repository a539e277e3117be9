package report

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kootepe/fluxrs-sub001/internal/cycle"
	"github.com/kootepe/fluxrs-sub001/internal/flux"
	"github.com/kootepe/fluxrs-sub001/internal/gas"
)

func plotTestCycle(t *testing.T, computeFluxes bool) *cycle.Cycle {
	t.Helper()
	const startTS = 100000

	s := cycle.Series{
		Time: make([]float64, 360),
		Conc: make([]float64, 360),
		Diag: make([]int64, 360),
	}
	for i := 0; i < 360; i++ {
		s.Time[i] = float64(startTS + i)
		noise := 0.002
		if i%2 == 0 {
			noise = -noise
		}
		s.Conc[i] = 2.0 + 0.01*float64(i) + noise
	}

	b := cycle.NewBuilder("AC1", time.Unix(startTS, 0))
	b.CloseOffset, b.OpenOffset, b.EndOffset = 60, 300, 360
	b.MainGas, b.MainInstrumentID = gas.CH4, 1
	b.AirTemperatureC, b.AirPressureHPa = 10, 1000
	b.Deadband, b.MinCalcLen = 30, 60
	b.AddChannel(gas.NewChannel(gas.CH4, gas.PPM, 1), s)

	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if computeFluxes {
		c.ComputeAllFluxes()
	}
	return c
}

func TestPlotCycle(t *testing.T) {
	c := plotTestCycle(t, true)
	dir := filepath.Join(t.TempDir(), "cycles")
	cp := &CyclePlotter{OutputDir: dir, Kind: flux.Linear}

	if err := cp.PlotCycle(c); err != nil {
		t.Fatalf("PlotCycle failed: %v", err)
	}

	file := filepath.Join(dir, fmt.Sprintf("cycle_%d_ch4_1.png", c.StartTS()))
	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("plot file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("plot file is empty")
	}
}

func TestPlotCycleWithoutFit(t *testing.T) {
	// A channel with no fitted models still produces the raw trace.
	c := plotTestCycle(t, false)
	dir := t.TempDir()
	cp := &CyclePlotter{OutputDir: dir, Kind: flux.Linear}

	if err := cp.PlotCycle(c); err != nil {
		t.Fatalf("PlotCycle failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("cycle_%d_ch4_1.png", c.StartTS()))); err != nil {
		t.Fatalf("plot file missing: %v", err)
	}
}
