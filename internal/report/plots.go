package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kootepe/fluxrs-sub001/internal/cycle"
	"github.com/kootepe/fluxrs-sub001/internal/flux"
	"github.com/kootepe/fluxrs-sub001/internal/gas"
	"github.com/kootepe/fluxrs-sub001/internal/monitoring"
)

// CyclePlotter renders per-cycle concentration traces with the fitted
// model overlaid, one PNG per channel.
type CyclePlotter struct {
	OutputDir string
	// Kind selects which fitted model to overlay.
	Kind flux.ModelKind
}

// PlotCycle writes one PNG per channel of the cycle: the raw trace inside
// the measurement window as points, the calculation window's fit as a
// line. Channels without a fit still get the trace.
func (cp *CyclePlotter) PlotCycle(c *cycle.Cycle) error {
	if err := os.MkdirAll(cp.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	for _, key := range c.Gases {
		if err := cp.plotChannel(c, key); err != nil {
			return err
		}
	}
	return nil
}

func (cp *CyclePlotter) plotChannel(c *cycle.Cycle, key gas.Key) error {
	x, y := c.MeasurementData(key)
	if len(x) == 0 {
		monitoring.Logf("cycle %d: no measurement data for %s, skipping plot", c.ID, key)
		return nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s %s @ %d", c.ChamberID, key.Gas, c.StartTS())
	p.X.Label.Text = "seconds since chamber close"
	p.Y.Label.Text = key.Gas.String()

	x0 := x[0]
	tracePts := make(plotter.XYs, 0, len(x))
	for i := range x {
		if math.IsNaN(y[i]) {
			continue
		}
		tracePts = append(tracePts, plotter.XY{X: x[i] - x0, Y: y[i]})
	}

	trace, err := plotter.NewScatter(tracePts)
	if err != nil {
		return fmt.Errorf("failed to build trace scatter: %w", err)
	}
	trace.GlyphStyle.Radius = vg.Points(1.5)
	trace.GlyphStyle.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	p.Add(trace)
	p.Legend.Add("trace", trace)

	if fit, ok := c.Fit(key, cp.Kind); ok {
		fitPts := make(plotter.XYs, 0, 128)
		step := (fit.RangeEnd - fit.RangeStart) / 127
		if step <= 0 {
			step = 1
		}
		for fx := fit.RangeStart; fx <= fit.RangeEnd; fx += step {
			fy, ok := fit.Predict(fx)
			if !ok {
				break
			}
			fitPts = append(fitPts, plotter.XY{X: fx - x0, Y: fy})
		}
		if len(fitPts) > 1 {
			line, err := plotter.NewLine(fitPts)
			if err != nil {
				return fmt.Errorf("failed to build fit line: %w", err)
			}
			line.Width = vg.Points(1.5)
			line.Color = color.RGBA{R: 220, G: 50, B: 47, A: 255}
			p.Add(line)
			p.Legend.Add(cp.Kind.Label(), line)
		}
	}

	file := filepath.Join(cp.OutputDir,
		fmt.Sprintf("cycle_%d_%s_%d.png", c.StartTS(), key.Gas.ColumnName(), key.InstrumentID))
	if err := p.Save(10*vg.Inch, 5*vg.Inch, file); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", file, err)
	}
	return nil
}
