package verify

import (
	"fmt"
	"sync"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
)

// checkOpens implements spec §4.6's "Opens": per net (parallel over nets),
// build a graph over its RouteSegments, map every pin to its first
// layer-0 segment, and BFS from the first pin to reach every other one.
func checkOpens(store *netlist.Store, cfg config.Config, fe *firstError) {
	var wg sync.WaitGroup
	for i := range store.Nets {
		net := store.Nets[i]
		if len(net.Pins) < 2 {
			continue
		}
		wg.Add(1)
		go func(net netlist.Net) {
			defer wg.Done()
			checkNetOpens(store, net, cfg.VerifyTolerance, fe)
		}(net)
	}
	wg.Wait()
}

// segmentsConnect reports whether a and b lie on the same or adjacent
// layers, the layer half of the net's connectivity test. The caller adds
// the geometric half: the two segments (or their 2-D projections, for a via
// connection between adjacent layers) must intersect or share an endpoint.
func segmentsConnect(a, b netlist.RouteSegment) bool {
	diff := int(a.Layer) - int(b.Layer)
	if diff < -1 || diff > 1 {
		return false
	}
	return true
}

func checkNetOpens(store *netlist.Store, net netlist.Net, tol float64, fe *firstError) {
	segs := net.Segments
	adj := make([][]int, len(segs))
	for i := 0; i < len(segs); i++ {
		for j := i + 1; j < len(segs); j++ {
			if !segmentsConnect(segs[i], segs[j]) {
				continue
			}
			if !geom.SegmentsIntersect(segs[i].A, segs[i].B, segs[j].A, segs[j].B, tol) {
				continue
			}
			adj[i] = append(adj[i], j)
			adj[j] = append(adj[j], i)
		}
	}

	pinSeg := make([]int, len(net.Pins))
	for pi, pid := range net.Pins {
		pinSeg[pi] = -1
		pos, err := store.PinWorldPos(pid)
		if err != nil {
			continue
		}
		for si, s := range segs {
			if s.Layer != 0 {
				continue
			}
			if geom.SegmentsIntersect(s.A, s.B, pos, pos, tol) {
				pinSeg[pi] = si
				break
			}
		}
		if pinSeg[pi] == -1 {
			fe.report(fmt.Sprintf("unrouted-pin: net %q pin %s", net.Name, pinLabel(store, pid)))
			return
		}
	}

	visited := bfsFrom(adj, pinSeg[0])
	for pi := 1; pi < len(pinSeg); pi++ {
		if !visited[pinSeg[pi]] {
			fe.report(fmt.Sprintf("split-net: net %q pin %s unreachable", net.Name, pinLabel(store, net.Pins[pi])))
			return
		}
	}
}

func pinLabel(store *netlist.Store, pid netlist.PinID) string {
	p, err := store.Pin(pid)
	if err != nil || p.Name == "" {
		return fmt.Sprintf("#%d", pid)
	}
	return p.Name
}

// bfsFrom walks adj breadth-first from start, the same queue+visited
// walker shape as the teacher's bfs.BFS, specialised to plain segment
// indices since segments carry no string identity of their own.
func bfsFrom(adj [][]int, start int) []bool {
	visited := make([]bool, len(adj))
	if start < 0 || start >= len(adj) {
		return visited
	}
	visited[start] = true
	queue := []int{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}
