package verify

import (
	"fmt"
	"sync"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
)

// taggedSegment carries enough context back out of a bucket comparison to
// report a useful SHORT/SELF-SHORT message.
type taggedSegment struct {
	net     netlist.NetID
	netName string
	seg     netlist.RouteSegment
}

type binKey struct {
	x, y  int
	layer netlist.LayerID
}

func segBounds(s netlist.RouteSegment) (geom.Point, geom.Point) {
	minX, maxX := s.A.X, s.B.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := s.A.Y, s.B.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return geom.Point{X: minX, Y: minY}, geom.Point{X: maxX, Y: maxY}
}

// binsFor returns every bin a segment's bounding box overlaps, the same
// multi-bin membership idea as router/detailed's exclusionSet.binsFor,
// narrowed here to read-only bucketing instead of claim/exclude.
func binsFor(min, max geom.Point, layer netlist.LayerID, binSize float64) []binKey {
	x0, x1 := int(min.X/binSize), int(max.X/binSize)
	y0, y1 := int(min.Y/binSize), int(max.Y/binSize)
	out := make([]binKey, 0, (x1-x0+1)*(y1-y0+1))
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			out = append(out, binKey{x, y, layer})
		}
	}
	return out
}

// checkShorts implements spec §4.6's "Shorts and self-loops": bucket every
// RouteSegment by (bin_x, bin_y, layer), then compare all pairs within a
// bin using the orientation test. Bins run in parallel; the Store is only
// read.
func checkShorts(store *netlist.Store, cfg config.Config, fe *firstError) {
	binSize := float64(cfg.VerifyBinSize)
	buckets := make(map[binKey][]taggedSegment)
	for i := range store.Nets {
		net := store.Nets[i]
		for _, seg := range net.Segments {
			min, max := segBounds(seg)
			for _, b := range binsFor(min, max, seg.Layer, binSize) {
				buckets[b] = append(buckets[b], taggedSegment{net: netlist.NetID(i), netName: net.Name, seg: seg})
			}
		}
	}

	var wg sync.WaitGroup
	for _, segs := range buckets {
		segs := segs
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkBin(segs, cfg.VerifyTolerance, fe)
		}()
	}
	wg.Wait()
}

func checkBin(segs []taggedSegment, tol float64, fe *firstError) {
	for i := 0; i < len(segs); i++ {
		for j := i + 1; j < len(segs); j++ {
			a, b := segs[i], segs[j]
			if !geom.SegmentsIntersect(a.seg.A, a.seg.B, b.seg.A, b.seg.B, tol) {
				continue
			}
			if a.net != b.net {
				fe.report(fmt.Sprintf("SHORT: layer %d, nets %q and %q", a.seg.Layer, a.netName, b.netName))
				return
			}
			if sharesEndpoint(a.seg, b.seg, tol) || a.seg.IsViaStub() || b.seg.IsViaStub() {
				continue
			}
			fe.report(fmt.Sprintf("SELF-SHORT: layer %d, net %q", a.seg.Layer, a.netName))
			return
		}
	}
}

func sharesEndpoint(a, b netlist.RouteSegment, tol float64) bool {
	return closeEnough(a.A, b.A, tol) || closeEnough(a.A, b.B, tol) ||
		closeEnough(a.B, b.A, tol) || closeEnough(a.B, b.B, tol)
}

func closeEnough(p, q geom.Point, tol float64) bool {
	return geom.ManhattanDist(p, q) <= tol
}
