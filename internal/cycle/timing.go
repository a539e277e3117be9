package cycle

import (
	"math"
	"time"

	"github.com/kootepe/fluxrs-sub001/internal/gas"
)

// eps matches the 64-bit machine epsilon used for boundary comparisons in
// the interval algorithms.
const eps = 2.220446049250313e-16

// Timing owns one cycle's clock anchor, fixed chamber offsets, adjustable
// lags and the derived per-channel calculation windows. All positions are
// absolute epoch seconds as float64 so fractional lags compose directly
// with sample timestamps.
//
// Every operation is total: out-of-range requests are silently clamped to
// the nearest valid state, never rejected, so the window stays draggable
// and the structure stays renderable.
type Timing struct {
	startTime time.Time

	// fixed offsets from startTime in seconds
	closeOffset int64
	openOffset  int64
	endOffset   int64

	// adjustable lag corrections in seconds
	startLag float64
	closeLag float64
	openLag  float64
	endLag   float64

	minCalcLen float64

	deadbands map[gas.Key]float64
	calcStart map[gas.Key]float64
	calcEnd   map[gas.Key]float64
}

// NewTiming builds a Timing from the ingestion-time fields: the absolute
// start anchor, the fixed close/open/end offsets and the minimum
// calculation window length. Lags start at zero.
func NewTiming(start time.Time, closeOffset, openOffset, endOffset int64, minCalcLen float64) *Timing {
	return &Timing{
		startTime:   start,
		closeOffset: closeOffset,
		openOffset:  openOffset,
		endOffset:   endOffset,
		minCalcLen:  minCalcLen,
		deadbands:   make(map[gas.Key]float64),
		calcStart:   make(map[gas.Key]float64),
		calcEnd:     make(map[gas.Key]float64),
	}
}

// StartTime returns the absolute cycle anchor.
func (t *Timing) StartTime() time.Time { return t.startTime }

// StartTS returns the anchor as epoch seconds.
func (t *Timing) StartTS() int64 { return t.startTime.Unix() }

// EndTS returns the cycle end as epoch seconds.
func (t *Timing) EndTS() int64 { return t.StartTS() + t.endOffset }

// Start returns the lag-adjusted cycle start.
func (t *Timing) Start() float64 { return float64(t.StartTS()) + t.startLag }

// End returns the lag-adjusted cycle end.
func (t *Timing) End() float64 { return float64(t.StartTS()+t.endOffset) + t.endLag }

// Close returns the unadjusted chamber-close instant.
func (t *Timing) Close() float64 { return float64(t.StartTS() + t.closeOffset) }

// Open returns the unadjusted chamber-open instant.
func (t *Timing) Open() float64 { return float64(t.StartTS() + t.openOffset) }

// AdjustedClose returns the measurement start: close offset plus the open
// and close lags.
func (t *Timing) AdjustedClose() float64 {
	return float64(t.StartTS()+t.closeOffset) + t.openLag + t.closeLag
}

// AdjustedOpen returns the measurement end: open offset plus the open lag.
func (t *Timing) AdjustedOpen() float64 {
	return float64(t.StartTS()+t.openOffset) + t.openLag
}

// MeasurementStart is an alias for AdjustedClose.
func (t *Timing) MeasurementStart() float64 { return t.AdjustedClose() }

// MeasurementEnd is an alias for AdjustedOpen.
func (t *Timing) MeasurementEnd() float64 { return t.AdjustedOpen() }

// CloseOffset returns the fixed close offset in seconds.
func (t *Timing) CloseOffset() int64 { return t.closeOffset }

// OpenOffset returns the fixed open offset in seconds.
func (t *Timing) OpenOffset() int64 { return t.openOffset }

// EndOffset returns the fixed end offset in seconds.
func (t *Timing) EndOffset() int64 { return t.endOffset }

// StartLag returns the start lag in seconds.
func (t *Timing) StartLag() float64 { return t.startLag }

// CloseLag returns the close lag in seconds.
func (t *Timing) CloseLag() float64 { return t.closeLag }

// OpenLag returns the open lag in seconds.
func (t *Timing) OpenLag() float64 { return t.openLag }

// EndLag returns the end lag in seconds.
func (t *Timing) EndLag() float64 { return t.endLag }

// MinCalcLen returns the minimum calculation window length in seconds.
func (t *Timing) MinCalcLen() float64 { return t.minCalcLen }

// Deadband returns the channel's deadband in seconds, zero if unset.
func (t *Timing) Deadband(key gas.Key) float64 { return t.deadbands[key] }

// CalcStart returns the channel's calculation window start, zero if unset.
func (t *Timing) CalcStart(key gas.Key) float64 { return t.calcStart[key] }

// CalcEnd returns the channel's calculation window end, zero if unset.
func (t *Timing) CalcEnd(key gas.Key) float64 { return t.calcEnd[key] }

// CalcLen returns the channel's current calculation window length.
func (t *Timing) CalcLen(key gas.Key) float64 {
	return t.calcEnd[key] - t.calcStart[key]
}

// BoundsFor returns the hard bounds of the channel's calculation window:
// the deadband-adjusted measurement start and the measurement end.
func (t *Timing) BoundsFor(key gas.Key) (rangeMin, rangeMax float64) {
	return t.MeasurementStart() + t.Deadband(key), t.MeasurementEnd()
}

// SetCalcStart stores the requested window start clamped into the
// channel's valid range.
func (t *Timing) SetCalcStart(key gas.Key, value float64) {
	rangeMin, rangeMax := t.BoundsFor(key)
	t.calcStart[key] = clamp(value, rangeMin, rangeMax)
}

// SetCalcEnd stores the requested window end clamped into the channel's
// valid range.
func (t *Timing) SetCalcEnd(key gas.Key, value float64) {
	rangeMin, rangeMax := t.BoundsFor(key)
	t.calcEnd[key] = clamp(value, rangeMin, rangeMax)
}

// SetDeadband stores a channel deadband, floored at zero.
func (t *Timing) SetDeadband(key gas.Key, deadband float64) {
	t.deadbands[key] = math.Max(deadband, 0)
}

// ShiftDeadbandConstantCalc grows every channel's deadband by x while
// translating the calculation windows by the same amount, so the window
// length stays constant as the deadband moves under it.
func (t *Timing) ShiftDeadbandConstantCalc(gases []gas.Key, x float64) {
	for _, key := range gases {
		t.deadbands[key] = math.Max(t.deadbands[key]+x, 0)
		t.calcStart[key] += x
		t.calcEnd[key] += x
	}
}

// SetStartLag applies a new start lag unless it would push the effective
// start past the adjusted close, in which case the previous value is kept.
func (t *Timing) SetStartLag(newLag float64) {
	oldLag := t.startLag
	t.startLag = newLag
	if t.Start() > t.AdjustedClose() {
		t.startLag = oldLag
	}
}

// SetCloseLag applies a new close lag.
func (t *Timing) SetCloseLag(newLag float64) { t.closeLag = newLag }

// SetOpenLag applies a new open lag.
func (t *Timing) SetOpenLag(newLag float64) { t.openLag = newLag }

// SetEndLag applies a new end lag unless it would pull the cycle end ahead
// of the adjusted open, in which case the previous value is kept.
func (t *Timing) SetEndLag(newLag float64) {
	oldLag := t.endLag
	t.endLag = newLag
	if t.AdjustedOpen() > t.End() {
		t.endLag = oldLag
	}
}

// IncrementStartLag nudges the start lag, with the same rollback rule as
// SetStartLag.
func (t *Timing) IncrementStartLag(delta float64) { t.SetStartLag(t.startLag + delta) }

// IncrementCloseLag nudges the close lag.
func (t *Timing) IncrementCloseLag(delta float64) { t.closeLag += delta }

// IncrementOpenLag nudges the open lag.
func (t *Timing) IncrementOpenLag(delta float64) { t.openLag += delta }

// IncrementEndLag nudges the end lag, with the same rollback rule as
// SetEndLag.
func (t *Timing) IncrementEndLag(delta float64) { t.SetEndLag(t.endLag + delta) }

// DragMain translates the channel's window by dx, clamping the pair as a
// unit so the length is preserved unless a boundary forces truncation.
func (t *Timing) DragMain(key gas.Key, dx float64) {
	rangeMin, rangeMax := t.BoundsFor(key)
	s, e := clampRange(t.calcStart[key]+dx, t.calcEnd[key]+dx, rangeMin, rangeMax, t.minCalcLen)
	t.calcStart[key] = s
	t.calcEnd[key] = e
}

// DragLeftTo resizes the window from its left edge, pinning the right one
// and refusing to shrink below the minimum length.
func (t *Timing) DragLeftTo(key gas.Key, newStart float64) {
	rangeMin, rangeMax := t.BoundsFor(key)
	s, e := clampRange(newStart, t.calcEnd[key], rangeMin, rangeMax, t.minCalcLen)
	t.calcStart[key] = s
	t.calcEnd[key] = e
}

// DragRightTo resizes the window from its right edge, pinning the left one
// and refusing to shrink below the minimum length.
func (t *Timing) DragRightTo(key gas.Key, newEnd float64) {
	rangeMin, rangeMax := t.BoundsFor(key)
	s, e := clampRange(t.calcStart[key], newEnd, rangeMin, rangeMax, t.minCalcLen)
	t.calcStart[key] = s
	t.calcEnd[key] = e
}

// StickCalcToRangeStart repositions the window to start exactly at the
// valid-range minimum, preserving the current length (or the minimum
// length when larger).
func (t *Timing) StickCalcToRangeStart(key gas.Key) {
	rangeMin, rangeMax := t.BoundsFor(key)
	curLen := math.Max(t.CalcLen(key), t.minCalcLen)
	s, e := clampRange(rangeMin, rangeMin+curLen, rangeMin, rangeMax, t.minCalcLen)
	t.calcStart[key] = s
	t.calcEnd[key] = e
}

// StickCalcToRangeStartAll applies StickCalcToRangeStart to every key.
func (t *Timing) StickCalcToRangeStartAll(gases []gas.Key) {
	for _, key := range gases {
		t.StickCalcToRangeStart(key)
	}
}

// CalcAreaCanMove reports whether the window has any slack left to drag:
// false only when it is pinned at both the deadband-adjusted close and the
// open boundary while already at the minimum length.
func (t *Timing) CalcAreaCanMove(key gas.Key) bool {
	s := t.calcStart[key]
	e := t.calcEnd[key]
	rangeMin, rangeMax := t.BoundsFor(key)

	atBounds := s <= rangeMin && e >= rangeMax
	atMinLen := t.minCalcLen >= t.CalcLen(key)
	return !(atBounds && atMinLen)
}

// AdjustCalcRangeAll re-clamps every channel's window against the current
// bounds, run whenever offsets or lags change and the window may now be
// partially or fully out of range. Windows with no stored value fall back
// to the full available range.
func (t *Timing) AdjustCalcRangeAll(gases []gas.Key) {
	for _, key := range gases {
		rangeMin, rangeMax := t.BoundsFor(key)

		start, ok := t.calcStart[key]
		if !ok {
			start = rangeMin
		}
		end, ok := t.calcEnd[key]
		if !ok {
			end = rangeMax
		}

		start, end = adjustInterval(start, end, rangeMin, rangeMax, t.minCalcLen)
		t.calcStart[key] = start
		t.calcEnd[key] = end
	}
}

// AdjustCalcRangeAllDeadband re-clamps like AdjustCalcRangeAll, but when
// the available range has shrunk below the minimum window length it grows
// the channel's deadband negatively (bounded at zero via SetDeadband
// callers) so the window keeps its minimum length without encroaching on
// the open boundary.
func (t *Timing) AdjustCalcRangeAllDeadband(gases []gas.Key) {
	for _, key := range gases {
		deadband := t.Deadband(key)
		rangeMin := t.AdjustedClose() + deadband
		rangeMax := t.AdjustedOpen()
		minLen := t.minCalcLen

		start, ok := t.calcStart[key]
		if !ok {
			start = rangeMin
		}
		end, ok := t.calcEnd[key]
		if !ok {
			end = rangeMax
		}

		available := rangeMax - rangeMin

		// The available range must never be smaller than the minimum window;
		// shrink the deadband to make room, bounded at zero.
		if available < minLen {
			deadband = math.Max(deadband+available-minLen, 0)
			t.deadbands[key] = deadband
			rangeMin = t.AdjustedClose() + deadband
			available = rangeMax - rangeMin
		}

		if start < rangeMin {
			start = rangeMin
		}
		if end > rangeMax {
			end = rangeMax
		}

		if available < minLen {
			// Even a zero deadband cannot hold the minimum length; the
			// window takes the whole remaining range rather than crossing
			// the measurement bounds.
			start = rangeMin
			end = rangeMax
		} else if end-start < minLen {
			needed := minLen - (end - start)
			half := needed / 2

			newStart := math.Max(start-half, rangeMin)
			newEnd := math.Min(end+half, rangeMax)

			if newEnd-newStart >= minLen {
				start = newStart
				end = newEnd
			} else {
				end = start + minLen
				if end > rangeMax {
					start = rangeMax - minLen
					end = rangeMax
				}
			}
		}

		t.calcStart[key] = start
		t.calcEnd[key] = end
	}
}

// clampRange normalizes and clamps a requested [start,end] into
// [rangeMin,rangeMax], growing to minLen from the fixed edge first. Used
// by the drag and resize operations where one edge is authoritative.
func clampRange(start, end, rangeMin, rangeMax, minLen float64) (float64, float64) {
	if end < start {
		start, end = end, start
	}
	if end-start < minLen {
		end = math.Min(start+minLen, rangeMax)
		start = math.Max(end-minLen, rangeMin)
	}
	if start < rangeMin {
		d := rangeMin - start
		start += d
		end += d
	}
	if end > rangeMax {
		d := end - rangeMax
		start -= d
		end -= d
	}
	return start, end
}

// adjustInterval is the general bounded re-clamp: grow an undersized
// window toward its midpoint, or shift an adequately sized one back into
// bounds while preserving length, anchoring to whichever edge it was
// already touching when it must shrink. Centering on growth plus
// edge-anchoring on shrink keeps the window stable across small lag and
// offset perturbations instead of jumping.
func adjustInterval(start, end, rangeMin, rangeMax, minLen float64) (float64, float64) {
	if end < start {
		start, end = end, start
	}
	length := math.Max(end-start, 0)
	available := math.Max(rangeMax-rangeMin, 0)

	// Undersized: grow to min(minLen, available), keeping the midpoint.
	if length < minLen {
		target := math.Min(minLen, available)
		if target <= eps {
			return rangeMin, rangeMin
		}

		center := 0.5 * (rangeMin + rangeMax)
		if length > eps {
			center = 0.5 * (start + end)
		}
		half := 0.5 * target
		center = clamp(center, rangeMin+half, rangeMax-half)
		return center - half, center + half
	}

	// Adequately sized: keep the length if possible.
	keepLen := math.Min(length, available)
	if keepLen <= eps {
		return rangeMin, rangeMin
	}

	if start < rangeMin {
		start = rangeMin
		end = start + keepLen
	}
	if end > rangeMax {
		end = rangeMax
		start = end - keepLen
	}

	// Could not fit at full length; shrink anchored to the touched edge.
	if end-start < keepLen-eps {
		keepLen = available
		switch {
		case start <= rangeMin+eps:
			start = rangeMin
			end = start + keepLen
		case end >= rangeMax-eps:
			end = rangeMax
			start = end - keepLen
		default:
			half := 0.5 * keepLen
			center := clamp(0.5*(start+end), rangeMin+half, rangeMax-half)
			start = center - half
			end = center + half
		}
	}

	// Numerical safety.
	start = clamp(start, rangeMin, rangeMax-keepLen)
	return start, start + keepLen
}

func clamp(v, lo, hi float64) float64 {
	if lo > hi {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
