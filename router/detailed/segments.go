package detailed

import (
	"sort"

	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
	"github.com/katalvlaran/vlsiflow/router/grid"
)

// pinSnapTolerance is how far a pin's exact world position may drift from
// its snapped grid coordinate before a stitch segment is required.
const pinSnapTolerance = 1e-9

func (r *Router) nodeWorldPos(n grid.Node) geom.Point {
	return geom.Point{
		X: r.store.Die.Min.X + float64(n.X)*r.stepX,
		Y: r.store.Die.Min.Y + float64(n.Y)*r.stepY,
	}
}

func lessNode(a, b grid.Node) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

type nodePair struct{ a, b grid.Node }

func normalizedPair(a, b grid.Node) nodePair {
	if lessNode(b, a) {
		a, b = b, a
	}
	return nodePair{a, b}
}

// netGraph is the undirected multigraph of spec §4.5's "Segment
// extraction": nodes are distinct grid coordinates visited by a net's path
// fragments, edges are the steps between consecutive fragment nodes.
// Parallel edges collapse to one (the A* kernel never revisits an edge
// within a single fragment, and distinct fragments only share tree nodes),
// keeping this the same columnar adjacency-map shape as core.Graph's
// adjacency list, generalised from string ids to grid.Node keys.
type netGraph struct {
	adj map[grid.Node][]grid.Node
}

func buildNetGraph(frags [][]grid.Node) *netGraph {
	g := &netGraph{adj: make(map[grid.Node][]grid.Node)}
	seen := make(map[nodePair]bool)
	addEdge := func(a, b grid.Node) {
		key := normalizedPair(a, b)
		if seen[key] {
			return
		}
		seen[key] = true
		g.adj[a] = append(g.adj[a], b)
		g.adj[b] = append(g.adj[b], a)
	}
	for _, frag := range frags {
		for i := 0; i+1 < len(frag); i++ {
			if frag[i] == frag[i+1] {
				continue
			}
			addEdge(frag[i], frag[i+1])
		}
	}
	return g
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func axisOf(a, b grid.Node) (dx, dy int) {
	return sign(b.X - a.X), sign(b.Y - a.Y)
}

// isStopPoint implements spec §4.5's stop-point predicate: a pin, a
// non-degree-2 node, a node with an incident via, or a corner (the two
// same-layer neighbours of a straight-through node don't lie on the same
// axis).
func (g *netGraph) isStopPoint(n grid.Node, isPin func(grid.Node) bool) bool {
	if isPin(n) {
		return true
	}
	neighbors := g.adj[n]
	if len(neighbors) != 2 {
		return true
	}
	for _, nb := range neighbors {
		if nb.Z != n.Z {
			return true
		}
	}
	dx0, dy0 := axisOf(neighbors[0], n)
	dx1, dy1 := axisOf(n, neighbors[1])
	return dx0 != dx1 || dy0 != dy1
}

// extractChains walks every maximal same-layer straight-line chain between
// stop points and emits one RouteSegment per chain (spec §4.5 bullet 3).
func (r *Router) extractChains(g *netGraph, pinSet map[grid.Node]bool) []netlist.RouteSegment {
	isPin := func(n grid.Node) bool { return pinSet[n] }

	var stopPoints []grid.Node
	for n := range g.adj {
		if g.isStopPoint(n, isPin) {
			stopPoints = append(stopPoints, n)
		}
	}
	sort.Slice(stopPoints, func(i, j int) bool { return lessNode(stopPoints[i], stopPoints[j]) })

	var segs []netlist.RouteSegment
	visitedEdge := make(map[nodePair]bool)

	for _, start := range stopPoints {
		for _, next := range g.adj[start] {
			if next.Z != start.Z {
				continue // via edges are extracted separately
			}
			key := normalizedPair(start, next)
			if visitedEdge[key] {
				continue
			}
			visitedEdge[key] = true

			prev, cur := start, next
			for !g.isStopPoint(cur, isPin) {
				var adv grid.Node
				found := false
				for _, nb := range g.adj[cur] {
					if nb != prev {
						adv = nb
						found = true
						break
					}
				}
				if !found {
					break
				}
				ek := normalizedPair(cur, adv)
				if visitedEdge[ek] {
					break
				}
				visitedEdge[ek] = true
				prev, cur = cur, adv
			}

			segs = append(segs, netlist.RouteSegment{
				Layer: netlist.LayerID(start.Z),
				A:     r.nodeWorldPos(start),
				B:     r.nodeWorldPos(cur),
			})
		}
	}
	return segs
}

// extractVias emits one zero-length marker segment per via edge (spec
// §4.5 bullet 4), at the lower of the two layers it connects.
func (r *Router) extractVias(g *netGraph) []netlist.RouteSegment {
	var segs []netlist.RouteSegment
	seen := make(map[nodePair]bool)
	for n, neighbors := range g.adj {
		for _, nb := range neighbors {
			if nb.Z == n.Z {
				continue
			}
			key := normalizedPair(n, nb)
			if seen[key] {
				continue
			}
			seen[key] = true
			lower := n.Z
			if nb.Z < lower {
				lower = nb.Z
			}
			pos := r.nodeWorldPos(n)
			segs = append(segs, netlist.RouteSegment{Layer: netlist.LayerID(lower), A: pos, B: pos})
		}
	}
	return segs
}

// extractPinStitches implements spec §4.5 bullet 5: when a pin's snapped
// grid position differs from its exact world position, emit a stitch wire
// on the pin's layer plus zero-length via stubs from layer 0 up to that
// layer at the pin's exact position.
func (r *Router) extractPinStitches(net netlist.Net) []netlist.RouteSegment {
	var segs []netlist.RouteSegment
	for _, pid := range net.Pins {
		snapped, err := r.pinGridNode(pid)
		if err != nil {
			continue
		}
		exact, err := r.store.PinWorldPos(pid)
		if err != nil {
			continue
		}
		snappedWorld := r.nodeWorldPos(snapped)
		if geom.ManhattanDist(snappedWorld, exact) <= pinSnapTolerance {
			continue
		}
		segs = append(segs, netlist.RouteSegment{Layer: netlist.LayerID(snapped.Z), A: exact, B: snappedWorld})
		for z := 0; z < snapped.Z; z++ {
			segs = append(segs, netlist.RouteSegment{Layer: netlist.LayerID(z), A: exact, B: exact})
		}
	}
	return segs
}

// ExtractSegments builds id's final RouteSegment list from its routed path
// fragments and pin snapping, per spec §4.5's "Segment extraction".
func (r *Router) ExtractSegments(id netlist.NetID) ([]netlist.RouteSegment, error) {
	net, err := r.store.Net(id)
	if err != nil {
		return nil, err
	}

	pinSet := make(map[grid.Node]bool, len(net.Pins))
	for _, pid := range net.Pins {
		if n, err := r.pinGridNode(pid); err == nil {
			pinSet[n] = true
		}
	}

	g := buildNetGraph(r.frags[id])

	var segs []netlist.RouteSegment
	segs = append(segs, r.extractChains(g, pinSet)...)
	segs = append(segs, r.extractVias(g)...)
	segs = append(segs, r.extractPinStitches(net)...)
	return segs, nil
}

// ExtractAll computes and stores route_segments for every net that was
// given to Route, writing them back into the Store (spec §4.5's final
// output, consumed by the verifier and any downstream DEF writer).
func (r *Router) ExtractAll() error {
	for i := range r.store.Nets {
		id := netlist.NetID(i)
		segs, err := r.ExtractSegments(id)
		if err != nil {
			return err
		}
		if err := r.store.SetSegments(id, segs); err != nil {
			return err
		}
	}
	return nil
}
