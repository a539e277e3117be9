package cycle

import (
	"math"
	"runtime"
	"sync"

	"github.com/kootepe/fluxrs-sub001/internal/gas"
	"github.com/kootepe/fluxrs-sub001/internal/stats"
)

// maxSampleGapS is the largest tolerated gap between consecutive samples
// inside a candidate window; windows spanning a larger gap are skipped.
const maxSampleGapS = 1.0

// windowResult is the best window one worker found for its slice of window
// sizes.
type windowResult struct {
	start, end float64
	r          float64
	found      bool
}

// FindBestRWindow searches one channel's admissible windows for the
// strongest absolute Pearson correlation and moves the calculation window
// there. Candidate windows start after the deadband, run to the
// measurement end, and span every length from the minimum window up to the
// full trace at one-sample steps. The search fans window sizes out over a
// bounded worker pool.
func (c *Cycle) FindBestRWindow(key gas.Key) bool {
	rangeStart, rangeEnd := c.Timing.BoundsFor(key)
	x, y := c.windowData(key, rangeStart, rangeEnd)

	// drop missing samples so gap detection sees the real spacing
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}

	minLen := int(c.Timing.MinCalcLen())
	if minLen < 2 {
		minLen = 2
	}
	if len(xs) < minLen {
		return false
	}

	workers := runtime.NumCPU()
	if workers > len(xs)-minLen+1 {
		workers = len(xs) - minLen + 1
	}
	if workers < 1 {
		workers = 1
	}

	sizes := make(chan int)
	results := make(chan windowResult, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			best := windowResult{}
			for size := range sizes {
				for i := 0; i+size <= len(xs); i++ {
					wx := xs[i : i+size]
					wy := ys[i : i+size]
					if hasGap(wx) {
						continue
					}
					r, ok := stats.Pearson(wx, wy)
					if !ok {
						continue
					}
					if !best.found || r > best.r {
						best = windowResult{
							start: wx[0],
							end:   wx[len(wx)-1],
							r:     r,
							found: true,
						}
					}
				}
			}
			results <- best
		}()
	}

	go func() {
		for size := minLen; size <= len(xs); size++ {
			sizes <- size
		}
		close(sizes)
	}()

	wg.Wait()
	close(results)

	best := windowResult{}
	for res := range results {
		if res.found && (!best.found || res.r > best.r) {
			best = res
		}
	}
	if !best.found {
		return false
	}

	c.Timing.SetCalcStart(key, best.start)
	c.Timing.SetCalcEnd(key, best.end)
	c.Dirty = true
	return true
}

// FindBestRWindows runs the window search on every channel.
func (c *Cycle) FindBestRWindows() {
	for _, key := range c.Gases {
		c.FindBestRWindow(key)
	}
}

// hasGap reports whether consecutive timestamps are ever further apart
// than the tolerated sample gap.
func hasGap(x []float64) bool {
	for i := 1; i < len(x); i++ {
		if x[i]-x[i-1] > maxSampleGapS {
			return true
		}
	}
	return false
}
