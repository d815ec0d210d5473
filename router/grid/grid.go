// Package grid implements the dense 3-D routing grid and the A* kernel
// shared by the global and detailed routers (spec §4.3): a windowed,
// binary-heap A* search with direction- and layer-aware edge costs,
// reusable parent/g-score/visitation-tag arrays, and a guide oracle that
// either masks (soft penalty) or strictly forbids (hard skip) cells
// outside a net's reserved region.
//
// The search loop itself is lvlath's dijkstra.Dijkstra generalised two
// ways: the graph is an implicit 3-D lattice instead of core.Graph edges
// (so neighbours are computed, not stored), and the priority key adds an
// admissible-or-weighted heuristic, turning Dijkstra into A*. The lazy
// decrease-key heap discipline and the runner-struct shape are kept as-is.
package grid

import (
	"errors"
)

// ErrOutOfBounds is returned when a coordinate lies outside the grid.
var ErrOutOfBounds = errors.New("grid: coordinate out of bounds")

const (
	scaleFactor = 100 // spec §4.3: costs accumulated as integers after *100

	baseMoveCost       = 100 // 1.0 * scale
	layerChangeCost    = 1000
	layerChangePinCost = 100
	wrongDirCost       = 2500
	wrongDirPinCost    = 200 // 2*base, pin-access relaxation
	layer0Penalty      = 100000
	guideViolationBase = 50000 // 500 * scale
)

// Node is one address in the dense 3-D grid.
type Node struct {
	X, Y, Z int
}

// Guide decides whether a node is inside a net's reserved region (a soft
// mask) and, when Strict is requested by the caller, whether traversal is
// permitted at all. An empty/nil Guide behaves as NoGuide: every node is
// "in guide".
type Guide interface {
	InGuide(n Node) bool
}

// NoGuide allows every node; used for the global router's first pass and
// any search that should ignore guide masking entirely.
type NoGuide struct{}

func (NoGuide) InGuide(Node) bool { return true }

// Grid is the dense W x H x L lattice of spec §4.3/§5: occupancy, obstacle
// and history columns are flattened row-major (the cached cost is computed
// from history on demand, see CachedCost) (z-major within each
// layer plane, matching the teacher's GridGraph.index row-major scheme
// generalised with an outer Z stride).
//
// Grid's own columns (occupancy/obstacle/history) are read-heavy and
// mutated only during the caller's sequential "apply" phase (spec §5), so
// they need no locking. A* search scratch is deliberately NOT stored here:
// spec §5's "collect then apply" rule means Search is called concurrently
// from many goroutines during a parallel routing batch, and per-call
// scratch reused on the Grid itself would make concurrent searches race
// on the same tag/gScore/parent arrays. Each caller instead holds its own
// *Scratch (see NewScratch), one per goroutine.
type Grid struct {
	W, H, L int

	occupancy []bool
	obstacle  []bool
	history   []float64
	direction []Direction // per-layer preferred routing direction
}

// Direction mirrors netlist.Direction without importing netlist, keeping
// the grid package free of a netlist dependency (it only needs per-layer
// routing preference, not the whole Layer record).
type Direction int

const (
	DirUnknown Direction = iota
	DirHorizontal
	DirVertical
)

// New allocates a Grid of the given dimensions with every layer's
// preferred direction from dirs (len(dirs) must equal L; layers beyond
// len(dirs) default to DirUnknown).
func New(w, h, l int, dirs []Direction) *Grid {
	n := w * h * l
	g := &Grid{
		W: w, H: h, L: l,
		occupancy: make([]bool, n),
		obstacle:  make([]bool, n),
		history:   make([]float64, n),
		direction: make([]Direction, l),
	}
	copy(g.direction, dirs)
	return g
}

func (g *Grid) index(n Node) int { return (n.Z*g.H+n.Y)*g.W + n.X }

// InBounds reports whether n addresses a real grid cell.
func (g *Grid) InBounds(n Node) bool {
	return n.X >= 0 && n.X < g.W && n.Y >= 0 && n.Y < g.H && n.Z >= 0 && n.Z < g.L
}

// SetObstacle marks n as blocked (e.g. a rasterised cell footprint).
func (g *Grid) SetObstacle(n Node, v bool) {
	if g.InBounds(n) {
		g.obstacle[g.index(n)] = v
	}
}

func (g *Grid) IsObstacle(n Node) bool { return g.obstacle[g.index(n)] }

// SetOccupancy marks n occupied or clears it.
func (g *Grid) SetOccupancy(n Node, v bool) {
	if g.InBounds(n) {
		g.occupancy[g.index(n)] = v
	}
}

func (g *Grid) IsOccupied(n Node) bool { return g.occupancy[g.index(n)] }

// AddHistory adds delta to n's accumulated congestion history.
func (g *Grid) AddHistory(n Node, delta float64) {
	if g.InBounds(n) {
		g.history[g.index(n)] += delta
	}
}

// DecayHistory scales every history cell by factor (spec §4.5 step 4).
func (g *Grid) DecayHistory(factor float64) {
	for i := range g.history {
		g.history[i] *= factor
	}
}

// CachedCost returns grid.cached_cost(q) per spec §4.3: 1.0 plus the
// accumulated history at q (so "cached_cost - 1.0" in the edge-cost
// formula recovers exactly the history contribution).
func (g *Grid) CachedCost(n Node) float64 {
	return 1.0 + g.history[g.index(n)]
}

// Scratch holds one goroutine's A* working state: a monotone visitation
// tag (reset via tag bumping rather than per-call zero-fill, spec §5
// "Resources") plus the g-score/parent arrays the search writes into. A
// Scratch belongs to exactly one goroutine at a time; Search never shares
// one across concurrent calls.
type Scratch struct {
	tag    []int32
	curTag int32
	gScore []int
	parent []int32 // index into the flattened array, -1 = none
}

// NewScratch allocates a Scratch sized for g, reusable across many
// sequential Search calls against g.
func (g *Grid) NewScratch() *Scratch {
	n := g.W * g.H * g.L
	return &Scratch{
		tag:    make([]int32, n),
		gScore: make([]int, n),
		parent: make([]int32, n),
	}
}

// nextTag advances the monotone visitation counter, doing a single full
// clear on overflow (spec §5 "Resources").
func (s *Scratch) nextTag() int32 {
	s.curTag++
	if s.curTag == 0 {
		for i := range s.tag {
			s.tag[i] = 0
		}
		s.curTag = 1
	}
	return s.curTag
}

func (s *Scratch) visited(idx int) bool { return s.tag[idx] == s.curTag }

func (s *Scratch) markVisited(idx int) { s.tag[idx] = s.curTag }

// Window is the axis-aligned search window of spec §4.3.
type Window struct {
	MinX, MinY, MinZ int
	MaxX, MaxY, MaxZ int
}

// WindowAround computes the bounding box of nodes (a Steiner-tree start
// set plus the target), expanded by margin cells on every side and
// clipped to the grid.
func (g *Grid) WindowAround(nodes []Node, margin int) Window {
	w := Window{MinX: nodes[0].X, MaxX: nodes[0].X, MinY: nodes[0].Y, MaxY: nodes[0].Y, MinZ: 0, MaxZ: g.L - 1}
	for _, n := range nodes {
		if n.X < w.MinX {
			w.MinX = n.X
		}
		if n.X > w.MaxX {
			w.MaxX = n.X
		}
		if n.Y < w.MinY {
			w.MinY = n.Y
		}
		if n.Y > w.MaxY {
			w.MaxY = n.Y
		}
	}
	w.MinX -= margin
	w.MaxX += margin
	w.MinY -= margin
	w.MaxY += margin
	if w.MinX < 0 {
		w.MinX = 0
	}
	if w.MinY < 0 {
		w.MinY = 0
	}
	if w.MaxX >= g.W {
		w.MaxX = g.W - 1
	}
	if w.MaxY >= g.H {
		w.MaxY = g.H - 1
	}
	return w
}

func (w Window) contains(n Node) bool {
	return n.X >= w.MinX && n.X <= w.MaxX && n.Y >= w.MinY && n.Y <= w.MaxY && n.Z >= w.MinZ && n.Z <= w.MaxZ
}
