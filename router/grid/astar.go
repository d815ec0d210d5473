package grid

import "container/heap"

// SearchOptions configures one Search call (spec §4.3).
type SearchOptions struct {
	Window           Window
	Guide            Guide
	StrictGuide      bool // skip (not penalise) out-of-guide nodes
	CollisionPenalty float64
	HeuristicWeight  float64 // astar_heuristic_weight, >=1
	MaxExpansions    int
	AllowedPins      []Node // pin-access relaxation: equal or Manhattan<=1 same layer
}

// Result is the outcome of one Search call.
type Result struct {
	Path  []Node
	Found bool
}

// astarItem is one entry in the open-set heap: lazy decrease-key, exactly
// the teacher's nodeItem/nodePQ shape, keyed on f = g + h instead of a
// plain distance.
type astarItem struct {
	idx int
	f   int
}

type astarPQ []astarItem

func (pq astarPQ) Len() int            { return len(pq) }
func (pq astarPQ) Less(i, j int) bool  { return pq[i].f < pq[j].f }
func (pq astarPQ) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *astarPQ) Push(x interface{}) { *pq = append(*pq, x.(astarItem)) }
func (pq *astarPQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

func absI(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func heuristic(a, b Node, weight float64) int {
	dx, dy, dz := absI(a.X-b.X), absI(a.Y-b.Y), absI(a.Z-b.Z)
	return int(weight * float64((dx+dy+5*dz)*scaleFactor))
}

func isAllowedPin(n Node, pins []Node) bool {
	for _, p := range pins {
		if p == n {
			return true
		}
		if p.Z == n.Z && absI(p.X-n.X)+absI(p.Y-n.Y) <= 1 {
			return true
		}
	}
	return false
}

var neighborOffsets = [6]Node{
	{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
}

// Search finds a minimum-cost path from any node in starts to target,
// confined to opts.Window, per spec §4.3. Returns Result{Found:false} when
// the heap empties or opts.MaxExpansions is exhausted. sc is the caller's
// own Scratch (see NewScratch) — callers running Search concurrently must
// each supply a distinct Scratch.
func (g *Grid) Search(sc *Scratch, starts []Node, target Node, opts SearchOptions) Result {
	guide := opts.Guide
	if guide == nil {
		guide = NoGuide{}
	}
	sc.nextTag()

	var pq astarPQ
	for _, s := range starts {
		if !opts.Window.contains(s) || !g.InBounds(s) {
			continue
		}
		idx := g.index(s)
		sc.gScore[idx] = 0
		sc.parent[idx] = -1
		sc.markVisited(idx)
		heap.Push(&pq, astarItem{idx: idx, f: heuristic(s, target, opts.HeuristicWeight)})
	}
	if pq.Len() == 0 {
		return Result{}
	}
	heap.Init(&pq)

	targetIdx := g.index(target)
	expansions := 0
	found := false

	for pq.Len() > 0 {
		if opts.MaxExpansions > 0 && expansions >= opts.MaxExpansions {
			break
		}
		item := heap.Pop(&pq).(astarItem)
		cur := item.idx
		if cur == targetIdx {
			found = true
			break
		}
		expansions++

		curNode := g.nodeAt(cur)
		for _, off := range neighborOffsets {
			next := Node{X: curNode.X + off.X, Y: curNode.Y + off.Y, Z: curNode.Z + off.Z}
			if !g.InBounds(next) || !opts.Window.contains(next) {
				continue
			}
			nIdx := g.index(next)

			isTarget := next == target
			if g.IsObstacle(next) && !isTarget && !isAllowedPin(next, opts.AllowedPins) {
				continue
			}
			inGuide := guide.InGuide(next)
			if opts.StrictGuide && !inGuide && !isTarget {
				continue
			}

			step := g.edgeCost(curNode, next, target)
			if !inGuide && !isTarget {
				step += guideViolationBase + int(2*opts.CollisionPenalty*scaleFactor)
			}
			step += int((g.CachedCost(next) - 1.0) * scaleFactor)

			cand := sc.gScore[cur] + step
			if !sc.visited(nIdx) || cand < sc.gScore[nIdx] {
				sc.gScore[nIdx] = cand
				sc.parent[nIdx] = int32(cur)
				sc.markVisited(nIdx)
				heap.Push(&pq, astarItem{idx: nIdx, f: cand + heuristic(next, target, opts.HeuristicWeight)})
			}
		}
	}

	if !found {
		return Result{}
	}
	return Result{Path: sc.reconstruct(g, targetIdx), Found: true}
}

func (g *Grid) nodeAt(idx int) Node {
	z := idx / (g.W * g.H)
	rem := idx % (g.W * g.H)
	y := rem / g.W
	x := rem % g.W
	return Node{X: x, Y: y, Z: z}
}

// edgeCost implements spec §4.3's per-step cost table (base move, layer
// change, wrong-direction step, layer-0 penalty), scaled by 100. target is
// the search's overall destination node, needed for the pin-access
// relaxation ("reduced ... when within Manhattan distance 1 of the
// target") — not p or q themselves, which are always one step apart.
func (g *Grid) edgeCost(p, q, target Node) int {
	cost := baseMoveCost

	if p.Z != q.Z {
		if p.Z == 0 || q.Z == 0 {
			cost = layerChangePinCost
		} else {
			cost = layerChangeCost
		}
		return cost
	}

	layerDir := DirUnknown
	if q.Z >= 0 && q.Z < len(g.direction) {
		layerDir = g.direction[q.Z]
	}
	isHorizontalStep := q.X != p.X
	wrongDirection := (layerDir == DirVertical && isHorizontalStep) || (layerDir == DirHorizontal && !isHorizontalStep && q.Y != p.Y)
	if wrongDirection {
		nearTarget := q.Z == target.Z && absI(q.X-target.X)+absI(q.Y-target.Y) <= 1
		if nearTarget {
			cost = wrongDirPinCost
		} else {
			cost = wrongDirCost
		}
	}

	if q.Z == 0 {
		cost += layer0Penalty
	}
	return cost
}

func (sc *Scratch) reconstruct(g *Grid, targetIdx int) []Node {
	var rev []Node
	cur := int32(targetIdx)
	for cur != -1 {
		rev = append(rev, g.nodeAt(int(cur)))
		cur = sc.parent[cur]
	}
	path := make([]Node, len(rev))
	for i, n := range rev {
		path[len(rev)-1-i] = n
	}
	return path
}
