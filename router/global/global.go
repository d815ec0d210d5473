// Package global implements the coarse global router of spec §4.4: it
// partitions the die into gcells, routes each net's pins in
// nearest-neighbour order over the shared grid.A* kernel, and runs a
// rip-up-and-reroute (RRR) loop driven by additive history congestion
// costs until every gcell is within capacity (or the iteration budget is
// spent). Its output is, for every net, a guide set the detailed router
// (package router/detailed) treats as a strict routing region in its
// initial pass and a soft (penalised) one during rip-up.
//
// The RRR loop's batched-parallel-then-sequential-apply shape is grounded
// on the teacher's concurrency-test discipline (core/concurrency_test.go:
// fan out over goroutines, collect results, apply under one lock) raised
// to a bounded worker pool via golang.org/x/sync/errgroup, matching spec
// §5's "collect then apply" rule that the shared grid is never mutated
// under parallel load.
package global

import (
	"context"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
	"github.com/katalvlaran/vlsiflow/router/grid"
	"github.com/rs/zerolog"
)

const unboundedCapacity = 999999

// Guide is one net's reserved coarse region: a 2-D halo expanded across
// every layer, per spec §4.4's "Guide construction" rule. An empty Guide
// is allow-all (matches grid.Guide's NoGuide contract).
type Guide map[grid.Node]struct{}

func (g Guide) InGuide(n grid.Node) bool {
	if len(g) == 0 {
		return true
	}
	_, ok := g[n]
	return ok
}

// Report summarises one Route run.
type Report struct {
	Iterations         int
	RemainingConflicts int
	Warnings           []string
}

// Router owns the coarse grid and per-net routing state for one Route call.
type Router struct {
	store *netlist.Store
	cfg   config.Config
	log   zerolog.Logger

	gw, gh, l int
	gcellSize float64
	g         *grid.Grid
	occupancy []int
	capacity  []int

	paths map[netlist.NetID][]grid.Node
}

func gridIndex(w, h, x, y, z int) int { return (z*h+y)*w + x }

// NewRouter builds the coarse grid sized from store.Die and cfg.GRGcellSize.
func NewRouter(store *netlist.Store, cfg config.Config, log zerolog.Logger) *Router {
	gw := int(store.Die.Width()/cfg.GRGcellSize) + 1
	gh := int(store.Die.Height()/cfg.GRGcellSize) + 1
	l := len(store.Layers)
	if l == 0 {
		l = 1
	}
	dirs := make([]grid.Direction, l)
	for i, layer := range store.Layers {
		switch layer.Direction {
		case netlist.Horizontal:
			dirs[i] = grid.DirHorizontal
		case netlist.Vertical:
			dirs[i] = grid.DirVertical
		}
	}

	capacity := make([]int, l)
	for z := range capacity {
		if z == 0 {
			capacity[z] = unboundedCapacity
		} else {
			capacity[z] = cfg.GRCapacity
		}
	}

	return &Router{
		store:     store,
		cfg:       cfg,
		log:       log,
		gw:        gw,
		gh:        gh,
		l:         l,
		gcellSize: cfg.GRGcellSize,
		g:         grid.New(gw, gh, l, dirs),
		occupancy: make([]int, gw*gh*l),
		capacity:  capacity,
		paths:     make(map[netlist.NetID][]grid.Node),
	}
}

func (r *Router) worldToGcell(p geom.Point) grid.Node {
	x := int((p.X - r.store.Die.Min.X) / r.gcellSize)
	y := int((p.Y - r.store.Die.Min.Y) / r.gcellSize)
	if x < 0 {
		x = 0
	}
	if x >= r.gw {
		x = r.gw - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= r.gh {
		y = r.gh - 1
	}
	return grid.Node{X: x, Y: y, Z: 0}
}

// Route runs the initial parallel pass and the RRR loop, returning each
// net's guide set.
func (r *Router) Route(ctx context.Context) (map[netlist.NetID]Guide, Report, error) {
	report := Report{}
	netIDs := make([]netlist.NetID, len(r.store.Nets))
	for i := range r.store.Nets {
		netIDs[i] = netlist.NetID(i)
	}

	if err := r.routeBatch(ctx, netIDs, grid.NoGuide{}, 0); err != nil {
		return nil, report, err
	}
	r.applyAll(netIDs)

	penalty := r.cfg.GRInitialPenalty
	for iter := 0; iter < r.cfg.GRMaxIterations; iter++ {
		conflicts := r.countConflicts()
		if conflicts == 0 {
			report.Iterations = iter
			break
		}
		r.applyHistory()

		reroute := r.internalCongestionNets()
		if len(reroute) == 0 {
			report.Iterations = iter
			break
		}
		rand.Shuffle(len(reroute), func(i, j int) { reroute[i], reroute[j] = reroute[j], reroute[i] })

		for _, id := range reroute {
			r.removeWires(id)
		}
		if err := r.routeBatch(ctx, reroute, grid.NoGuide{}, penalty); err != nil {
			return nil, report, err
		}
		r.applyAll(reroute)

		penalty *= r.cfg.GRPenaltyMult
		report.Iterations = iter + 1

		if iter > 100 && len(reroute) < 10 {
			break
		}
	}
	report.RemainingConflicts = r.countConflicts()
	if report.RemainingConflicts > 0 {
		report.Warnings = append(report.Warnings, "global router: RRR budget exhausted with remaining congestion")
		r.log.Warn().Int("remaining_conflicts", report.RemainingConflicts).Msg("global router did not fully converge")
	}

	return r.buildGuides(), report, nil
}

// routeBatch computes (without mutating shared state) a path for every net
// in ids, running batches of up to 500 concurrently (spec §5), storing the
// fresh path for later sequential application.
func (r *Router) routeBatch(ctx context.Context, ids []netlist.NetID, guide grid.Guide, penalty float64) error {
	const batchSize = 500
	results := make(map[netlist.NetID][]grid.Node, len(ids))

	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		type outcome struct {
			id   netlist.NetID
			path []grid.Node
		}
		outcomes := make([]outcome, len(batch))

		grp, _ := errgroup.WithContext(ctx)
		for i, id := range batch {
			i, id := i, id
			grp.Go(func() error {
				sc := r.g.NewScratch()
				outcomes[i] = outcome{id: id, path: r.routeOneNet(sc, id, guide, penalty)}
				return nil
			})
		}
		if err := grp.Wait(); err != nil {
			return err
		}
		for _, o := range outcomes {
			results[o.id] = o.path
		}
	}

	for id, path := range results {
		r.paths[id] = path
	}
	return nil
}

// routeOneNet is pure with respect to shared grid state: it only reads
// r.g's obstacle/history columns, never occupancy (which is mutated only
// by applyAll under the caller's sequential phase), and writes only into
// the caller-owned sc so concurrent calls never share A* scratch.
func (r *Router) routeOneNet(sc *grid.Scratch, id netlist.NetID, guide grid.Guide, penalty float64) []grid.Node {
	net, err := r.store.Net(id)
	if err != nil || len(net.Pins) == 0 {
		return nil
	}
	order := r.nearestNeighborOrder(net.Pins)
	if len(order) == 0 {
		return nil
	}

	path := []grid.Node{order[0]}
	cur := order[0]
	for _, next := range order[1:] {
		if next == cur {
			continue
		}
		window := r.g.WindowAround([]grid.Node{cur, next}, r.cfg.GRMargin)
		res := r.g.Search(sc, []grid.Node{cur}, next, grid.SearchOptions{
			Window:           window,
			Guide:            guide,
			CollisionPenalty: penalty,
			HeuristicWeight:  r.cfg.GRHeuristicWeight,
			MaxExpansions:    r.cfg.AstarMaxExpansions,
		})
		if !res.Found {
			r.log.Warn().Int("net", int(id)).Msg("global router: no path found for pin pair")
			cur = next
			continue
		}
		path = append(path, res.Path[1:]...)
		cur = next
	}
	return dedupConsecutive(path)
}

// nearestNeighborOrder greedily orders net's pins starting from the
// first, always stepping to the nearest unvisited pin (spec §4.4).
func (r *Router) nearestNeighborOrder(pins []netlist.PinID) []grid.Node {
	if len(pins) == 0 {
		return nil
	}
	nodes := make([]grid.Node, 0, len(pins))
	for _, p := range pins {
		pos, err := r.store.PinWorldPos(p)
		if err != nil {
			continue
		}
		nodes = append(nodes, r.worldToGcell(pos))
	}
	if len(nodes) == 0 {
		return nil
	}

	order := []grid.Node{nodes[0]}
	used := map[int]bool{0: true}
	cur := nodes[0]
	for len(order) < len(nodes) {
		best, bestDist := -1, 0
		for i, n := range nodes {
			if used[i] {
				continue
			}
			d := absI(n.X-cur.X) + absI(n.Y-cur.Y)
			if best == -1 || d < bestDist {
				best, bestDist = i, d
			}
		}
		if best == -1 {
			break
		}
		used[best] = true
		cur = nodes[best]
		order = append(order, cur)
	}
	return order
}

func absI(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func dedupConsecutive(path []grid.Node) []grid.Node {
	out := path[:0:0]
	for i, n := range path {
		if i == 0 || n != path[i-1] {
			out = append(out, n)
		}
	}
	return out
}

// applyAll writes the freshly-computed path for every id in ids into
// shared occupancy, in net-id order (spec §5 "Ordering").
func (r *Router) applyAll(ids []netlist.NetID) {
	sorted := append([]netlist.NetID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		path := r.paths[id]
		seen := make(map[grid.Node]bool, len(path))
		for _, n := range path {
			if seen[n] {
				continue
			}
			seen[n] = true
			r.occupancy[gridIndex(r.gw, r.gh, n.X, n.Y, n.Z)]++
		}
	}
}

func (r *Router) removeWires(id netlist.NetID) {
	path := r.paths[id]
	seen := make(map[grid.Node]bool, len(path))
	for _, n := range path {
		if seen[n] {
			continue
		}
		seen[n] = true
		idx := gridIndex(r.gw, r.gh, n.X, n.Y, n.Z)
		if r.occupancy[idx] > 0 {
			r.occupancy[idx]--
		}
	}
}

func (r *Router) countConflicts() int {
	conflicts := 0
	for z := 0; z < r.l; z++ {
		limit := r.capacity[z]
		for y := 0; y < r.gh; y++ {
			for x := 0; x < r.gw; x++ {
				if r.occupancy[gridIndex(r.gw, r.gh, x, y, z)] > limit {
					conflicts++
				}
			}
		}
	}
	return conflicts
}

// applyHistory implements spec §4.4 step 2: every over-capacity gcell
// accrues additive history proportional to its overflow.
func (r *Router) applyHistory() {
	for z := 0; z < r.l; z++ {
		limit := r.capacity[z]
		for y := 0; y < r.gh; y++ {
			for x := 0; x < r.gw; x++ {
				idx := gridIndex(r.gw, r.gh, x, y, z)
				overflow := r.occupancy[idx] - limit
				if overflow > 0 {
					r.g.AddHistory(grid.Node{X: x, Y: y, Z: z}, float64(overflow)*r.cfg.GRHistoryIncrement*10)
				}
			}
		}
	}
}

// internalCongestionNets finds every net whose path touches a congested
// gcell strictly between its first and last waypoint (spec §4.4 step 3:
// endpoint-only congestion is ignored as unavoidable pin contention).
func (r *Router) internalCongestionNets() []netlist.NetID {
	var out []netlist.NetID
	for id, path := range r.paths {
		if len(path) < 3 {
			continue
		}
		for _, n := range path[1 : len(path)-1] {
			idx := gridIndex(r.gw, r.gh, n.X, n.Y, n.Z)
			if r.occupancy[idx] > r.capacity[n.Z] {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// buildGuides implements spec §4.4's "Guide construction": every gcell on
// a net's final path, plus its 4-connected 2-D neighbours, is added at
// every layer 0..L-1 (z is dropped from the path before the halo expands).
func (r *Router) buildGuides() map[netlist.NetID]Guide {
	guides := make(map[netlist.NetID]Guide, len(r.paths))
	offsets := [5][2]int{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for id, path := range r.paths {
		guide := make(Guide)
		for _, n := range path {
			for _, off := range offsets {
				x, y := n.X+off[0], n.Y+off[1]
				if x < 0 || x >= r.gw || y < 0 || y >= r.gh {
					continue
				}
				for z := 0; z < r.l; z++ {
					guide[grid.Node{X: x, Y: y, Z: z}] = struct{}{}
				}
			}
		}
		guides[id] = guide
	}
	return guides
}
