// Package report renders the analysis output: an interactive HTML flux
// time series per gas and static per-cycle concentration plots.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kootepe/fluxrs-sub001/internal/db"
	"github.com/kootepe/fluxrs-sub001/internal/flux"
	"github.com/kootepe/fluxrs-sub001/internal/gas"
)

// FluxReport bundles the inputs of the HTML time-series report.
type FluxReport struct {
	Title string
	// Model filters the rows to one fitted kind; empty means linear.
	Model string
	Unit  flux.Unit
	Rows  []db.FluxRow
}

// RenderHTML writes the flux time series as one scatter chart per gas on a
// single page.
func (r *FluxReport) RenderHTML(w io.Writer) error {
	model := r.Model
	if model == "" {
		model = flux.Linear.String()
	}

	// group rows per gas, preserving time order
	byGas := make(map[gas.Type][]db.FluxRow)
	var order []gas.Type
	for _, row := range r.Rows {
		if row.Model != model || !row.Flux.Valid {
			continue
		}
		if _, seen := byGas[row.Gas]; !seen {
			order = append(order, row.Gas)
		}
		byGas[row.Gas] = append(byGas[row.Gas], row)
	}
	if len(order) == 0 {
		return fmt.Errorf("no %s flux rows to report", model)
	}

	page := components.NewPage()
	page.PageTitle = r.Title

	for _, g := range order {
		rows := byGas[g]
		data := make([]opts.ScatterData, 0, len(rows))
		for _, row := range rows {
			value := r.Unit.FromUmolM2S(row.Flux.Float64, g)
			ts := time.Unix(row.StartTime, 0).UTC().Format("2006-01-02 15:04")
			data = append(data, opts.ScatterData{Value: []interface{}{ts, value}})
		}

		scatter := charts.NewScatter()
		scatter.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: r.Title, Width: "1400px", Height: "400px"}),
			charts.WithTitleOpts(opts.Title{
				Title:    fmt.Sprintf("%s flux", g),
				Subtitle: fmt.Sprintf("model=%s unit=%s n=%d", model, r.Unit.Suffix(), len(data)),
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "time"}),
			charts.WithYAxisOpts(opts.YAxis{Name: r.Unit.Suffix(), NameLocation: "middle", NameGap: 45}),
			charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		)
		scatter.AddSeries(g.String(), data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

		page.AddCharts(scatter)
	}

	return page.Render(w)
}

// WriteHTMLFile renders the report into a file.
func (r *FluxReport) WriteHTMLFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := r.RenderHTML(f); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}
