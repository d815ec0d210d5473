package detailed

import "github.com/katalvlaran/vlsiflow/router/grid"

// exclusionSet implements spec §4.5's spatial-exclusion batching: nets
// whose working bounding boxes fall in disjoint bins of side binSize may
// be rerouted concurrently; two nets sharing a bin must not. Claims are
// released at the start of the next batch (the caller builds one fresh
// exclusionSet per batch), mirroring the coarse-grained locking
// core.Graph uses around its adjacency maps, narrowed here to bins
// instead of a single RWMutex.
type exclusionSet struct {
	binSize int
	claimed map[[3]int]bool
}

func newExclusionSet(binSize int) *exclusionSet {
	return &exclusionSet{binSize: binSize, claimed: make(map[[3]int]bool)}
}

// tryClaim reports whether every bin touched by [min,max] is free, and if
// so marks them all claimed. A single net spanning many bins still claims
// them all atomically from the caller's perspective since reroute calls
// tryClaim sequentially while building one batch.
func (e *exclusionSet) tryClaim(min, max grid.Node) bool {
	bins := e.binsFor(min, max)
	for _, b := range bins {
		if e.claimed[b] {
			return false
		}
	}
	for _, b := range bins {
		e.claimed[b] = true
	}
	return true
}

func (e *exclusionSet) binsFor(min, max grid.Node) [][3]int {
	x0, x1 := min.X/e.binSize, max.X/e.binSize
	y0, y1 := min.Y/e.binSize, max.Y/e.binSize
	var out [][3]int
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			out = append(out, [3]int{x, y, 0})
		}
	}
	return out
}
