// Package detailed implements the fine-grid detailed router of spec §4.5:
// it derives a fine x/y grid from the netlist's track definitions,
// rasterises cell footprints as layer-0 obstacles, routes each net's pins
// in nearest-neighbour order under its global guide (package router/global)
// with a strict-then-retry fallback, and runs a stagnation-aware
// rip-up-and-reroute loop with spatial-exclusion batching before handing
// finished paths to segment extraction.
//
// The per-net incremental "route against the whole tree so far" loop and
// the RRR shape are the same collect-then-apply discipline as
// router/global, generalised with the stagnation/kill-zone bookkeeping
// spec §4.5 adds on top. Spatial exclusion during parallel rip-up batches
// is grounded on the teacher's core.Graph RWMutex-guarded shared-state
// discipline, narrowed to per-bounding-box locking instead of a single
// global lock.
package detailed

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
	"github.com/katalvlaran/vlsiflow/router/global"
	"github.com/katalvlaran/vlsiflow/router/grid"
	"github.com/rs/zerolog"
)

const maxGridNodes = 5e7
const exclusionBinSize = 60

// Report summarises one Route run.
type Report struct {
	Iterations int
	Failed     []netlist.NetID
	Warnings   []string
}

// Router owns the fine grid and per-net route state for one Route call.
type Router struct {
	store *netlist.Store
	cfg   config.Config
	log   zerolog.Logger

	w, h, l      int
	stepX, stepY float64
	g            *grid.Grid
	coarseOfX    []int
	coarseOfY    []int
	gcellSize    float64

	guides map[netlist.NetID]global.Guide
	nodes  map[netlist.NetID][]grid.Node   // distinct tree nodes, used as the next search's start set
	frags  map[netlist.NetID][][]grid.Node // path fragments, in creation order, for segment extraction
	failed map[netlist.NetID]bool
}

// guideOracle adapts a coarse global.Guide to the fine grid's coordinate
// space via the precomputed coarseOfX/coarseOfY lookup vectors (spec
// §4.5 "Guide oracle").
type guideOracle struct {
	coarseOfX, coarseOfY []int
	netGuide             global.Guide
}

func (o guideOracle) InGuide(n grid.Node) bool {
	if len(o.netGuide) == 0 {
		return true
	}
	if n.X < 0 || n.X >= len(o.coarseOfX) || n.Y < 0 || n.Y >= len(o.coarseOfY) {
		return false
	}
	return o.netGuide.InGuide(grid.Node{X: o.coarseOfX[n.X], Y: o.coarseOfY[n.Y], Z: n.Z})
}

// NewRouter derives the fine grid from store's track definitions (falling
// back to the first layer's pitch), rasterises cell footprints, and
// prepares the coarse-coordinate lookup vectors for guides built with
// gcellSize (the same value the global router used).
func NewRouter(store *netlist.Store, cfg config.Config, gcellSize float64, guides map[netlist.NetID]global.Guide, log zerolog.Logger) *Router {
	stepX, stepY := trackSteps(store)
	l := len(store.Layers)
	if l == 0 {
		l = 1
	}
	w := int(store.Die.Width()/stepX) + 1
	h := int(store.Die.Height()/stepY) + 1

	if points := float64(w) * float64(h) * float64(l); points > maxGridNodes {
		factor := math.Ceil(math.Sqrt(points / maxGridNodes))
		stepX *= factor
		stepY *= factor
		w = int(store.Die.Width()/stepX) + 1
		h = int(store.Die.Height()/stepY) + 1
		log.Warn().Float64("factor", factor).Msg("detailed router: fine grid exceeded node budget, coarsened")
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
	g := grid.New(w, h, l, dirs)

	for _, c := range store.Cells {
		rasterizeCell(g, store.Die, c, stepX, stepY, w, h)
	}

	coarseOfX := make([]int, w)
	for x := 0; x < w; x++ {
		coarseOfX[x] = int(float64(x) * stepX / gcellSize)
	}
	coarseOfY := make([]int, h)
	for y := 0; y < h; y++ {
		coarseOfY[y] = int(float64(y) * stepY / gcellSize)
	}

	return &Router{
		store:     store,
		cfg:       cfg,
		log:       log,
		w:         w,
		h:         h,
		l:         l,
		stepX:     stepX,
		stepY:     stepY,
		g:         g,
		coarseOfX: coarseOfX,
		coarseOfY: coarseOfY,
		gcellSize: gcellSize,
		guides:    guides,
		nodes:     make(map[netlist.NetID][]grid.Node),
		frags:     make(map[netlist.NetID][][]grid.Node),
		failed:    make(map[netlist.NetID]bool),
	}
}

// trackSteps implements spec §4.5 "Fine grid": x/y steps from the
// netlist's TRACK definitions, falling back to the first layer's pitch.
func trackSteps(store *netlist.Store) (float64, float64) {
	stepX, stepY := 0.0, 0.0
	for _, t := range store.Tracks {
		if t.Step <= 0 {
			continue
		}
		if t.Axis == netlist.Vertical && stepX == 0 {
			stepX = t.Step
		}
		if t.Axis == netlist.Horizontal && stepY == 0 {
			stepY = t.Step
		}
	}
	if stepX == 0 || stepY == 0 {
		fallback := 1.0
		for _, l := range store.Layers {
			if l.Pitch > 0 {
				fallback = l.Pitch
				break
			}
		}
		if stepX == 0 {
			stepX = fallback
		}
		if stepY == 0 {
			stepY = fallback
		}
	}
	return stepX, stepY
}

func (r *Router) worldToFine(p geom.Point) (int, int) {
	x := int((p.X - r.store.Die.Min.X) / r.stepX)
	y := int((p.Y - r.store.Die.Min.Y) / r.stepY)
	return clampIdx(x, r.w), clampIdx(y, r.h)
}

func clampIdx(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

func rasterizeCell(g *grid.Grid, die geom.Rect, c netlist.Cell, stepX, stepY float64, w, h int) {
	if c.Width <= 0 || c.Height <= 0 {
		return
	}
	x0 := clampIdx(int((c.Position.X-die.Min.X)/stepX), w)
	x1 := clampIdx(int((c.Position.X+c.Width-die.Min.X)/stepX), w)
	y0 := clampIdx(int((c.Position.Y-die.Min.Y)/stepY), h)
	y1 := clampIdx(int((c.Position.Y+c.Height-die.Min.Y)/stepY), h)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			g.SetObstacle(grid.Node{X: x, Y: y, Z: 0}, true)
		}
	}
}

// pinGridNode snaps a pin to its grid coordinate per spec §4.5: IO pins
// (die-perimeter) snap to layer 2, internal pins to layer 1, clamped to
// a valid layer.
func (r *Router) pinGridNode(id netlist.PinID) (grid.Node, error) {
	pos, err := r.store.PinWorldPos(id)
	if err != nil {
		return grid.Node{}, err
	}
	x, y := r.worldToFine(pos)
	z := 1
	if r.store.IsIOPin(id) {
		z = 2
	}
	if z >= r.l {
		z = r.l - 1
	}
	n := grid.Node{X: x, Y: y, Z: z}
	if !r.g.InBounds(n) {
		return grid.Node{}, grid.ErrOutOfBounds
	}
	return n, nil
}

// Route runs the initial strict-guide pass then the RRR loop, extracts
// every net's segments into the Store (ExtractAll), and returns the final
// per-net path fragments those segments were built from.
func (r *Router) Route(ctx context.Context) (map[netlist.NetID][][]grid.Node, Report, error) {
	report := Report{}
	netIDs := make([]netlist.NetID, len(r.store.Nets))
	for i := range r.store.Nets {
		netIDs[i] = netlist.NetID(i)
	}

	r.routeSequential(netIDs, true, 1.0)

	lastConflicts := -1
	stagnation := 0
	decayedOnce := false
	penalty := r.cfg.DRInitialPenalty

	for iter := 0; iter < r.cfg.DRMaxIterations; iter++ {
		congestedNodes := r.congestedNodes()
		conflicts := len(congestedNodes) + len(r.failedNets())
		if conflicts == 0 {
			report.Iterations = iter
			break
		}

		if lastConflicts >= 0 {
			threshold := float64(lastConflicts) / 20
			if threshold < 5 {
				threshold = 5
			}
			if float64(lastConflicts-conflicts) < threshold {
				stagnation++
			} else {
				stagnation = 0
			}
		}
		lastConflicts = conflicts
		if stagnation > 2*r.cfg.DRStagnationThreshold {
			report.Warnings = append(report.Warnings, "detailed router: stagnation budget exceeded, bailing")
			r.log.Warn().Int("iter", iter).Msg("detailed router stagnating, stopping RRR")
			break
		}

		forceRipup := false
		increment := r.cfg.DRHistoryIncrement
		if stagnation == r.cfg.DRStagnationThreshold+1 && !decayedOnce {
			r.g.DecayHistory(0.5)
			decayedOnce = true
			forceRipup = true
			increment *= increment
		}
		r.addHistory(congestedNodes, increment)

		reroute := r.markForReroute(congestedNodes, forceRipup, stagnation)
		if len(reroute) == 0 {
			report.Iterations = iter
			break
		}

		if err := r.reroute(ctx, reroute, penalty); err != nil {
			return nil, report, err
		}

		if penalty*r.cfg.DRPenaltyMult < 20000 {
			penalty *= r.cfg.DRPenaltyMult
		} else {
			penalty = 20000
		}
		report.Iterations = iter + 1
	}

	for id := range r.failed {
		report.Failed = append(report.Failed, id)
	}
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i] < report.Failed[j] })

	if err := r.ExtractAll(); err != nil {
		return nil, report, err
	}

	return r.frags, report, nil
}

// routeSequential routes every net in ids one at a time (no shared-state
// contention, so no batching is needed for the initial strict pass).
func (r *Router) routeSequential(ids []netlist.NetID, strict bool, penalty float64) {
	sc := r.g.NewScratch()
	for _, id := range ids {
		r.applyRoute(r.routeOneNet(sc, id, strict, penalty))
	}
}

// netRoute is one net's computed route, produced without touching any
// shared Router state so it can be built concurrently; applyRoute is the
// sole place that writes it back (spec §5 collect-then-apply).
type netRoute struct {
	id     netlist.NetID
	tree   []grid.Node
	frags  [][]grid.Node
	failed bool
}

// routeOneNet computes id's route using sc as its private A* scratch, so
// it is safe to call from multiple goroutines concurrently as long as
// each call is given a distinct Scratch. Each successive pin is routed
// from every node already in the net's tree (spec §4.5), retrying once
// without the guide and a wider window on strict failure.
func (r *Router) routeOneNet(sc *grid.Scratch, id netlist.NetID, strict bool, penalty float64) netRoute {
	net, err := r.store.Net(id)
	if err != nil || len(net.Pins) == 0 {
		return netRoute{id: id}
	}
	order := r.orderPins(net.Pins)
	if len(order) == 0 {
		return netRoute{id: id}
	}
	guide := guideOracle{coarseOfX: r.coarseOfX, coarseOfY: r.coarseOfY, netGuide: r.guides[id]}

	tree := []grid.Node{order[0]}
	var frags [][]grid.Node
	failedAny := false

	for _, target := range order[1:] {
		found := r.search(sc, tree, target, guide, strict, r.cfg.AstarBaseMargin, r.cfg.AstarMaxExpansions, penalty)
		if !found.Found && strict {
			found = r.search(sc, tree, target, grid.NoGuide{}, false, r.cfg.DRAstarWindowMarginMax, 2*r.cfg.AstarMaxExpansions, penalty)
		}
		if !found.Found {
			failedAny = true
			continue
		}
		frags = append(frags, found.Path)
		tree = mergeNodes(tree, found.Path)
	}

	return netRoute{id: id, tree: tree, frags: frags, failed: failedAny}
}

// applyRoute writes a computed netRoute back into Router state. Must only
// be called sequentially (never from within a parallel batch).
func (r *Router) applyRoute(rt netRoute) {
	r.nodes[rt.id] = rt.tree
	r.frags[rt.id] = rt.frags
	if rt.failed {
		r.failed[rt.id] = true
	} else {
		delete(r.failed, rt.id)
	}
}

func (r *Router) search(sc *grid.Scratch, starts []grid.Node, target grid.Node, guide grid.Guide, strict bool, margin, maxExpansions int, penalty float64) grid.Result {
	all := append(append([]grid.Node{}, starts...), target)
	window := r.g.WindowAround(all, margin)
	return r.g.Search(sc, starts, target, grid.SearchOptions{
		Window:           window,
		Guide:            guide,
		StrictGuide:      strict,
		CollisionPenalty: penalty,
		HeuristicWeight:  r.cfg.DRAstarHeuristicWeight,
		MaxExpansions:    maxExpansions,
	})
}

func (r *Router) orderPins(pins []netlist.PinID) []grid.Node {
	var nodes []grid.Node
	for _, p := range pins {
		n, err := r.pinGridNode(p)
		if err != nil {
			continue
		}
		nodes = append(nodes, n)
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

func mergeNodes(tree []grid.Node, path []grid.Node) []grid.Node {
	seen := make(map[grid.Node]bool, len(tree))
	for _, n := range tree {
		seen[n] = true
	}
	out := append([]grid.Node(nil), tree...)
	for _, n := range path {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// congestedNodes finds every fine grid node whose occupancy (count of
// distinct nets whose fragments pass through it) exceeds cfg.DRCapacity.
func (r *Router) congestedNodes() []grid.Node {
	counts := make(map[grid.Node]int)
	for _, tree := range r.nodes {
		for _, n := range tree {
			counts[n]++
		}
	}
	var out []grid.Node
	for n, c := range counts {
		if c > r.cfg.DRCapacity {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

func (r *Router) failedNets() []netlist.NetID {
	var out []netlist.NetID
	for id := range r.failed {
		out = append(out, id)
	}
	return out
}

func (r *Router) addHistory(nodes []grid.Node, increment float64) {
	for _, n := range nodes {
		r.g.AddHistory(n, increment)
	}
}

// markForReroute implements spec §4.5 step 5: failed nets, nets touching
// a congested node, and (if forceRipup) nets passing through a grown kill
// zone around every congested node.
func (r *Router) markForReroute(congested []grid.Node, forceRipup bool, stagnation int) []netlist.NetID {
	marked := make(map[netlist.NetID]bool)
	for id := range r.failed {
		marked[id] = true
	}

	congestedSet := make(map[grid.Node]bool, len(congested))
	for _, n := range congested {
		congestedSet[n] = true
	}

	var killZone map[grid.Node]bool
	if forceRipup {
		radius := r.cfg.DRRipupRadius + stagnation/5
		killZone = make(map[grid.Node]bool)
		for _, c := range congested {
			for dz := -radius; dz <= radius; dz++ {
				for dy := -radius; dy <= radius; dy++ {
					for dx := -radius; dx <= radius; dx++ {
						n := grid.Node{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
						if r.g.InBounds(n) {
							killZone[n] = true
						}
					}
				}
			}
		}
	}

	for id, tree := range r.nodes {
		if marked[id] {
			continue
		}
		for _, n := range tree {
			if congestedSet[n] || (killZone != nil && killZone[n]) {
				marked[id] = true
				break
			}
		}
	}

	out := make([]netlist.NetID, 0, len(marked))
	for id := range marked {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// reroute implements spec §4.5 step 6: remove marked nets' wires, route in
// parallel batches guarded by a spatial-exclusion bitmap (bin size 60) so
// two concurrently-rerouted nets never edit overlapping bounding boxes,
// and add the fresh wires back, collect-then-apply.
func (r *Router) reroute(ctx context.Context, ids []netlist.NetID, penalty float64) error {
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	for _, id := range ids {
		delete(r.nodes, id)
		delete(r.frags, id)
	}

	remaining := append([]netlist.NetID(nil), ids...)

	for len(remaining) > 0 {
		exclusion := newExclusionSet(exclusionBinSize)
		var batch []netlist.NetID
		var deferred []netlist.NetID
		for _, id := range remaining {
			min, max := r.netBBox(id)
			if exclusion.tryClaim(min, max) {
				batch = append(batch, id)
			} else {
				deferred = append(deferred, id)
			}
		}
		if len(batch) == 0 {
			batch, deferred = remaining, nil
		}

		results := make([]netRoute, len(batch))
		grp, _ := errgroup.WithContext(ctx)
		for i, id := range batch {
			i, id := i, id
			grp.Go(func() error {
				sc := r.g.NewScratch()
				results[i] = r.routeOneNet(sc, id, false, penalty)
				return nil
			})
		}
		if err := grp.Wait(); err != nil {
			return err
		}
		sort.Slice(results, func(i, j int) bool { return results[i].id < results[j].id })
		for _, rt := range results {
			r.applyRoute(rt)
		}

		remaining = deferred
	}
	return nil
}

// netBBox estimates a net's working bounding box from its pins, for
// spatial-exclusion purposes; an approximation is sufficient since
// exclusion only needs to prevent overlapping edits, not be exact.
func (r *Router) netBBox(id netlist.NetID) (grid.Node, grid.Node) {
	net, err := r.store.Net(id)
	if err != nil || len(net.Pins) == 0 {
		return grid.Node{}, grid.Node{}
	}
	min, max := grid.Node{X: r.w, Y: r.h}, grid.Node{}
	for _, p := range net.Pins {
		n, err := r.pinGridNode(p)
		if err != nil {
			continue
		}
		if n.X < min.X {
			min.X = n.X
		}
		if n.Y < min.Y {
			min.Y = n.Y
		}
		if n.X > max.X {
			max.X = n.X
		}
		if n.Y > max.Y {
			max.Y = n.Y
		}
	}
	return min, max
}
