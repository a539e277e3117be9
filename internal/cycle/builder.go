package cycle

import (
	"fmt"
	"sort"
	"time"

	"github.com/kootepe/fluxrs-sub001/internal/chamber"
	"github.com/kootepe/fluxrs-sub001/internal/flux"
	"github.com/kootepe/fluxrs-sub001/internal/gas"
)

// Series is one channel's raw samples handed to the builder. Time and Conc
// run in parallel; missing concentrations are NaN. Diag carries the
// instrument's diagnostic flags, parallel to Time, and may be nil.
type Series struct {
	Time []float64
	Conc []float64
	Diag []int64
}

// Builder assembles a Cycle from ingested data. Zero-value fields fall
// back to sensible defaults in Build.
type Builder struct {
	ID        int64
	ChamberID string
	ProjectID int64

	StartTime   time.Time
	CloseOffset int64
	OpenOffset  int64
	EndOffset   int64

	MainGas          gas.Type
	MainInstrumentID int64

	AirTemperatureC float64
	AirPressureHPa  float64
	Chamber         chamber.Chamber

	Deadband   float64
	MinCalcLen float64

	channels map[gas.Key]gas.Channel
	series   map[gas.Key]Series
}

// NewBuilder starts a cycle for one chamber closure.
func NewBuilder(chamberID string, start time.Time) *Builder {
	return &Builder{
		ChamberID: chamberID,
		StartTime: start,
		Chamber:   chamber.Default(),
		channels:  make(map[gas.Key]gas.Channel),
		series:    make(map[gas.Key]Series),
	}
}

// AddChannel registers one gas channel and its raw samples. Registering
// the same key twice replaces the earlier series.
func (b *Builder) AddChannel(ch gas.Channel, s Series) *Builder {
	b.channels[ch.Key()] = ch
	b.series[ch.Key()] = s
	return b
}

// Build validates the assembled inputs and produces the cycle. The
// channel key set is sorted for deterministic iteration; timing defaults
// apply before any Init run.
func (b *Builder) Build() (*Cycle, error) {
	if len(b.channels) == 0 {
		return nil, fmt.Errorf("build cycle %s: no channels", b.ChamberID)
	}
	if b.StartTime.IsZero() {
		return nil, fmt.Errorf("build cycle %s: no start time", b.ChamberID)
	}
	if b.CloseOffset > b.OpenOffset || b.OpenOffset > b.EndOffset {
		return nil, fmt.Errorf("build cycle %s: offsets out of order (close=%d open=%d end=%d)",
			b.ChamberID, b.CloseOffset, b.OpenOffset, b.EndOffset)
	}
	mainKey := gas.Key{Gas: b.MainGas, InstrumentID: b.MainInstrumentID}
	if _, ok := b.channels[mainKey]; !ok {
		return nil, fmt.Errorf("build cycle %s: main channel %s not registered", b.ChamberID, mainKey)
	}
	for key, s := range b.series {
		if len(s.Time) != len(s.Conc) {
			return nil, fmt.Errorf("build cycle %s: channel %s has %d timestamps for %d samples",
				b.ChamberID, key, len(s.Time), len(s.Conc))
		}
	}

	keys := make([]gas.Key, 0, len(b.channels))
	for key := range b.channels {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	minCalcLen := b.MinCalcLen
	if minCalcLen <= 0 {
		minCalcLen = 120
	}
	timing := NewTiming(b.StartTime, b.CloseOffset, b.OpenOffset, b.EndOffset, minCalcLen)
	for _, key := range keys {
		timing.SetDeadband(key, b.Deadband)
	}

	c := &Cycle{
		ID:               b.ID,
		ChamberID:        b.ChamberID,
		ProjectID:        b.ProjectID,
		MainGas:          b.MainGas,
		MainInstrumentID: b.MainInstrumentID,
		Env: flux.Env{
			AirTemperatureC: b.AirTemperatureC,
			AirPressureHPa:  b.AirPressureHPa,
			Chamber:         b.Chamber,
		},
		Timing:        timing,
		IsValid:       true,
		Gases:         keys,
		channels:      make(map[gas.Key]gas.Channel, len(keys)),
		timeAxes:      make(map[int64][]float64),
		concs:         make(map[gas.Key][]float64, len(keys)),
		diags:         make(map[int64][]int64),
		fits:          make(map[FitKey]*flux.Fit),
		measurementR2: make(map[gas.Key]float64, len(keys)),
		calcR2:        make(map[gas.Key]float64, len(keys)),
		t0:            make(map[gas.Key]float64, len(keys)),
		minY:          make(map[gas.Key]float64, len(keys)),
		maxY:          make(map[gas.Key]float64, len(keys)),
	}
	for _, key := range keys {
		c.channels[key] = b.channels[key]
		s := b.series[key]
		c.concs[key] = s.Conc
		// one time axis and diag vector per instrument; channels on the
		// same instrument share them
		if _, ok := c.timeAxes[key.InstrumentID]; !ok {
			c.timeAxes[key.InstrumentID] = s.Time
			c.diags[key.InstrumentID] = s.Diag
		}
	}

	c.SetCalcRanges()
	c.Dirty = false
	return c, nil
}
