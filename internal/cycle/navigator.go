package cycle

import "sort"

// badDataMask covers the error bits that mark a cycle's data itself as
// unusable rather than merely failing validity. It spans all three
// data-quality bits, not only too-few-points: cycles with diag flags
// inside the measurement filter as bad data too.
const badDataMask = ErrorMask(ErrDiagInMeasurement) | ErrorMask(ErrTooFewPoints) | ErrorMask(ErrMostlyDiagErrors)

// Filter decides which cycles the navigator exposes.
type Filter struct {
	// VisibleChambers maps chamber IDs to visibility; a nil map shows
	// every chamber.
	VisibleChambers map[string]bool
	ShowValid       bool
	ShowInvalid     bool
	ShowBad         bool
}

// AllVisible shows every cycle.
func AllVisible() Filter {
	return Filter{ShowValid: true, ShowInvalid: true, ShowBad: true}
}

// Matches reports whether the filter admits the cycle.
func (f Filter) Matches(c *Cycle) bool {
	if f.VisibleChambers != nil && !f.VisibleChambers[c.ChamberID] {
		return false
	}
	bad := c.ErrorCode&badDataMask != 0
	switch {
	case bad:
		return f.ShowBad
	case c.IsValid:
		return f.ShowValid
	default:
		return f.ShowInvalid
	}
}

// Navigator walks an ordered cycle list through a visibility filter. The
// cursor indexes into the visible subset and survives refiltering by
// relocating to the cycle nearest in time to the one it pointed at.
type Navigator struct {
	cycles  []*Cycle
	visible []int
	cursor  int
}

// NewNavigator wraps a cycle list, initially showing everything. Cycles
// are expected sorted by start time.
func NewNavigator(cycles []*Cycle) *Navigator {
	n := &Navigator{cycles: cycles}
	n.Refilter(AllVisible())
	return n
}

// Cycles returns the full underlying list.
func (n *Navigator) Cycles() []*Cycle { return n.cycles }

// VisibleCount returns the number of cycles the current filter admits.
func (n *Navigator) VisibleCount() int { return len(n.visible) }

// CurrentIndex returns the cursor position within the visible subset.
func (n *Navigator) CurrentIndex() int { return n.cursor }

// Current returns the cycle under the cursor, or nil when nothing is
// visible.
func (n *Navigator) Current() *Cycle {
	if len(n.visible) == 0 {
		return nil
	}
	if n.cursor >= len(n.visible) {
		n.cursor = len(n.visible) - 1
	}
	return n.cycles[n.visible[n.cursor]]
}

// Refilter recomputes the visible subset and relocates the cursor to the
// visible cycle whose start time is closest to the previously current one.
func (n *Navigator) Refilter(f Filter) {
	var prevStart int64
	havePrev := false
	if cur := n.Current(); cur != nil {
		prevStart = cur.StartTS()
		havePrev = true
	}

	n.visible = n.visible[:0]
	for i, c := range n.cycles {
		if f.Matches(c) {
			n.visible = append(n.visible, i)
		}
	}

	if len(n.visible) == 0 {
		n.cursor = 0
		return
	}
	if !havePrev {
		n.cursor = 0
		return
	}
	n.cursor = n.closestVisible(prevStart)
}

// closestVisible binary-searches the visible subset for the cycle whose
// start time is nearest to ts.
func (n *Navigator) closestVisible(ts int64) int {
	i := sort.Search(len(n.visible), func(i int) bool {
		return n.cycles[n.visible[i]].StartTS() >= ts
	})
	if i == 0 {
		return 0
	}
	if i == len(n.visible) {
		return len(n.visible) - 1
	}
	before := ts - n.cycles[n.visible[i-1]].StartTS()
	after := n.cycles[n.visible[i]].StartTS() - ts
	if before <= after {
		return i - 1
	}
	return i
}

// StepForward advances the cursor, wrapping at the end.
func (n *Navigator) StepForward() *Cycle {
	if len(n.visible) == 0 {
		return nil
	}
	n.cursor = (n.cursor + 1) % len(n.visible)
	return n.Current()
}

// StepBack moves the cursor backwards, wrapping at the start.
func (n *Navigator) StepBack() *Cycle {
	if len(n.visible) == 0 {
		return nil
	}
	n.cursor = (n.cursor - 1 + len(n.visible)) % len(n.visible)
	return n.Current()
}

// JumpTo moves the cursor to the cycle at index i in the full list,
// provided the current filter admits it. Hidden or out-of-range indexes
// leave the cursor in place.
func (n *Navigator) JumpTo(i int) *Cycle {
	if len(n.visible) == 0 {
		return nil
	}
	pos := sort.SearchInts(n.visible, i)
	if pos < len(n.visible) && n.visible[pos] == i {
		n.cursor = pos
	}
	return n.Current()
}

// JumpToNearest places the cursor at the visible cycle closest in start
// time to ts.
func (n *Navigator) JumpToNearest(ts int64) *Cycle {
	if len(n.visible) == 0 {
		return nil
	}
	n.cursor = n.closestVisible(ts)
	return n.Current()
}
