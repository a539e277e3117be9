package gas

import "fmt"

// Key identifies one gas channel: a species measured by one instrument.
// It is a comparable value type used as a map key throughout the cycle
// engine. Two keys are equal iff both fields match.
type Key struct {
	Gas          Type
	InstrumentID int64
}

// NewKey builds a channel key.
func NewKey(g Type, instrumentID int64) Key {
	return Key{Gas: g, InstrumentID: instrumentID}
}

func (k Key) String() string {
	return fmt.Sprintf("%s, %d", k.Gas, k.InstrumentID)
}

// Less orders keys by gas then instrument, giving a total order for
// deterministic iteration.
func (k Key) Less(other Key) bool {
	if k.Gas != other.Gas {
		return k.Gas < other.Gas
	}
	return k.InstrumentID < other.InstrumentID
}

// Channel carries the reporting unit of one gas channel, needed to turn an
// instrument-native regression slope into ppm/s.
type Channel struct {
	Gas          Type
	Unit         ConcentrationUnit
	InstrumentID int64
}

// NewChannel builds a channel description.
func NewChannel(g Type, unit ConcentrationUnit, instrumentID int64) Channel {
	return Channel{Gas: g, Unit: unit, InstrumentID: instrumentID}
}

// Key returns the map key for this channel.
func (c Channel) Key() Key {
	return Key{Gas: c.Gas, InstrumentID: c.InstrumentID}
}

// SlopePPMPerS converts a slope in the instrument's native units per second
// into ppm/s.
func (c Channel) SlopePPMPerS(slopeRawPerS float64) float64 {
	return slopeRawPerS * c.Unit.ToPPMFactor()
}
