// Package legalizer implements the row-based Abacus legalizer of spec
// §4.2: it snaps a continuous placement onto discrete standard-cell rows
// with no same-row overlap, minimising total displacement. Its cluster
// collapse pass is structurally the same disjoint-run merge as the
// teacher's Kruskal union-find loop (prim_kruskal/kruskal.go): both sweep
// a sorted sequence left to right, merging adjacent groups while a
// predicate holds, until a stable partition remains.
package legalizer

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
	"github.com/rs/zerolog"
)

// ErrNoFit names the condition where a cell cannot be placed in any
// subrow within the search band. Legalize never returns it: in that case
// it force-places the cell at the ideal row's first subrow (spec §7) and
// records a warning in Report instead.
var ErrNoFit = errors.New("legalizer: no subrow fit found within search band")

// Report summarises one Legalize run.
type Report struct {
	TotalDisplacement float64
	ForcedPlacements  int
	Warnings          []string
}

// row is one horizontal band of the legalized placement.
type row struct {
	index   int
	y       float64
	subrows []*subrow
}

// subrow is a maximal free x-interval within a row, after fixed blockages
// (macros, the die boundary) have been carved out.
type subrow struct {
	minX, maxX float64
	usedWidth  float64
	cells      []*placedCell
}

type placedCell struct {
	id     netlist.CellID
	idealX float64
	width  float64
}

// cluster is Abacus's running packing state within one subrow (spec §4.2
// "Within-subrow packing").
type cluster struct {
	x, width, q float64
	weight      float64
	members     []*placedCell
}

// Legalize snaps every non-fixed, non-macro cell in store onto a row,
// leaving macros (cells taller than 1.5x row height) as fixed blockages
// after a coarse pre-placement pass, and mutates store's positions in
// place.
func Legalize(store *netlist.Store, cfg config.Config, logger zerolog.Logger) (Report, error) {
	report := Report{}
	rowH := store.RowHeight()
	if rowH <= 0 {
		return report, nil
	}
	numRows := int(store.Die.Height()/rowH) + 1

	var blockages []blockage

	// Macro pre-placement: snap to nearest row boundary, clamp into die,
	// and record as a blockage in every row it overlaps.
	for i, c := range store.Cells {
		id := netlist.CellID(i)
		if id == netlist.IOCellID || c.IsFixed {
			if c.Width > 0 && c.Height > 0 {
				blockages = append(blockages, blockage{rect: c.Rect()})
			}
			continue
		}
		if c.Height > 1.5*rowH {
			k := roundToRow(c.Position.Y, store.Die.Min.Y, rowH)
			snapped := geom.Point{X: c.Position.X, Y: store.Die.Min.Y + float64(k)*rowH}
			clamped := store.Die.ClampPoint(snapped, geom.Point{X: c.Width, Y: c.Height})
			if err := store.SetPosition(id, clamped); err != nil {
				return report, err
			}
			blockages = append(blockages, blockage{rect: geom.Rect{Min: clamped, Max: geom.Point{X: clamped.X + c.Width, Y: clamped.Y + c.Height}}})
		}
	}

	// Build rows and their subrows from the blockage list.
	rows := make([]*row, numRows)
	for k := 0; k < numRows; k++ {
		rows[k] = &row{index: k, y: store.Die.Min.Y + float64(k)*rowH}
		rows[k].subrows = buildSubrows(store.Die, rowH, rows[k].y, blockages)
	}

	// Collect standard cells, sorted by (ideal row, ideal x) per spec.
	type stdCell struct {
		id     netlist.CellID
		pos    geom.Point
		width  float64
		height float64
	}
	var stdCells []stdCell
	for i, c := range store.Cells {
		id := netlist.CellID(i)
		if id == netlist.IOCellID || c.IsFixed || c.Height > 1.5*rowH {
			continue
		}
		stdCells = append(stdCells, stdCell{id: id, pos: c.Position, width: c.Width, height: c.Height})
	}
	sort.Slice(stdCells, func(i, j int) bool {
		ri := roundToRow(stdCells[i].pos.Y, store.Die.Min.Y, rowH)
		rj := roundToRow(stdCells[j].pos.Y, store.Die.Min.Y, rowH)
		if ri != rj {
			return ri < rj
		}
		return stdCells[i].pos.X < stdCells[j].pos.X
	})

	// Assignment: search +/- RowSearchBand rows outward for a fitting subrow.
	for _, sc := range stdCells {
		idealRow := roundToRow(sc.pos.Y, store.Die.Min.Y, rowH)
		sr, rIdx, ok := findSubrow(rows, idealRow, cfg.RowSearchBand, sc.pos.X, sc.width+cfg.CellPadding)
		if !ok {
			report.ForcedPlacements++
			report.Warnings = append(report.Warnings, fmt.Sprintf("legalizer: cell %d forced into row %d (no fit within band)", sc.id, idealRow))
			logger.Warn().Int("cell", int(sc.id)).Int("row", idealRow).Msg("legalizer non-fit, forcing placement")
			rIdx = clampRowIdx(idealRow, len(rows))
			if len(rows[rIdx].subrows) == 0 {
				rows[rIdx].subrows = append(rows[rIdx].subrows, &subrow{minX: store.Die.Min.X, maxX: store.Die.Max.X})
			}
			sr = rows[rIdx].subrows[0]
		}
		sr.usedWidth += sc.width + cfg.CellPadding
		sr.cells = append(sr.cells, &placedCell{id: sc.id, idealX: sc.pos.X, width: sc.width})
	}

	// Within-subrow packing and final position writes.
	for _, rw := range rows {
		for _, sr := range rw.subrows {
			if len(sr.cells) == 0 {
				continue
			}
			xs := packSubrow(sr, cfg.CellPadding)
			for i, pc := range sr.cells {
				target := geom.Point{X: xs[i], Y: rw.y}
				report.TotalDisplacement += geom.ManhattanDist(target, geom.Point{X: pc.idealX, Y: rw.y})
				if err := store.SetPosition(pc.id, target); err != nil {
					return report, err
				}
			}
		}
	}

	return report, nil
}

func roundToRow(y, dieMinY, rowH float64) int {
	k := int(math.Round((y - dieMinY) / rowH))
	if k < 0 {
		k = 0
	}
	return k
}

func clampRowIdx(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

// blockage is a fixed obstruction (a macro or a fixed cell) recorded
// against whichever rows its footprint overlaps.
type blockage struct {
	rect geom.Rect
}

// buildSubrows sorts every blockage intersecting this row by x, merges
// overlapping intervals, and records the maximal free gaps as subrows.
func buildSubrows(die geom.Rect, rowH, rowY float64, blockages []blockage) []*subrow {
	rowRect := geom.Rect{Min: geom.Point{X: die.Min.X, Y: rowY}, Max: geom.Point{X: die.Max.X, Y: rowY + rowH}}

	type iv struct{ lo, hi float64 }
	var ivs []iv
	for _, b := range blockages {
		if b.rect.Max.Y <= rowRect.Min.Y || b.rect.Min.Y >= rowRect.Max.Y {
			continue
		}
		lo, hi := b.rect.Min.X, b.rect.Max.X
		if lo < die.Min.X {
			lo = die.Min.X
		}
		if hi > die.Max.X {
			hi = die.Max.X
		}
		if hi > lo {
			ivs = append(ivs, iv{lo, hi})
		}
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].lo < ivs[j].lo })

	merged := make([]iv, 0, len(ivs))
	for _, v := range ivs {
		if n := len(merged); n > 0 && v.lo <= merged[n-1].hi {
			if v.hi > merged[n-1].hi {
				merged[n-1].hi = v.hi
			}
			continue
		}
		merged = append(merged, v)
	}

	var subrows []*subrow
	cur := die.Min.X
	for _, v := range merged {
		if v.lo > cur {
			subrows = append(subrows, &subrow{minX: cur, maxX: v.lo})
		}
		if v.hi > cur {
			cur = v.hi
		}
	}
	if cur < die.Max.X {
		subrows = append(subrows, &subrow{minX: cur, maxX: die.Max.X})
	}
	return subrows
}

// findSubrow searches rows[idealRow +/- 0,1,2,...band] alternating outward,
// choosing within each candidate row the subrow whose centre minimises
// |idealX - centre| among those with enough remaining capacity.
func findSubrow(rows []*row, idealRow, band int, idealX, width float64) (*subrow, int, bool) {
	n := len(rows)
	tryRow := func(r int) (*subrow, bool) {
		if r < 0 || r >= n {
			return nil, false
		}
		var best *subrow
		bestDist := 0.0
		for _, sr := range rows[r].subrows {
			if sr.usedWidth+width > sr.maxX-sr.minX {
				continue
			}
			centre := (sr.minX + sr.maxX) / 2
			d := centre - idealX
			if d < 0 {
				d = -d
			}
			if best == nil || d < bestDist {
				best, bestDist = sr, d
			}
		}
		return best, best != nil
	}

	if sr, ok := tryRow(idealRow); ok {
		return sr, idealRow, true
	}
	for delta := 1; delta <= band; delta++ {
		if sr, ok := tryRow(idealRow + delta); ok {
			return sr, idealRow + delta, true
		}
		if sr, ok := tryRow(idealRow - delta); ok {
			return sr, idealRow - delta, true
		}
	}
	return nil, idealRow, false
}

// packSubrow runs Abacus's cluster-collapse packing (spec §4.2) over the
// cells assigned to sr (already sorted by assignment order; re-sorted here
// by ideal x to guarantee the left-to-right scan precondition), and
// returns each cell's final x in the same order as sr.cells.
func packSubrow(sr *subrow, padding float64) []float64 {
	order := make([]int, len(sr.cells))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return sr.cells[order[i]].idealX < sr.cells[order[j]].idealX })

	var clusters []*cluster
	for _, oi := range order {
		pc := sr.cells[oi]
		w := pc.width + padding
		c := &cluster{x: pc.idealX, width: w, weight: 1, q: pc.idealX, members: []*placedCell{pc}}
		clusters = append(clusters, c)

		// Collapse: snap below min_x, then merge back while overlapping.
		for len(clusters) > 0 {
			last := clusters[len(clusters)-1]
			if last.x < sr.minX {
				last.x = sr.minX
			}
			if len(clusters) < 2 {
				break
			}
			prev := clusters[len(clusters)-2]
			if prev.x+prev.width > last.x {
				prev.q += last.q - last.weight*prev.width
				prev.width += last.width
				prev.weight += last.weight
				prev.x = prev.q / prev.weight
				prev.members = append(prev.members, last.members...)
				clusters = clusters[:len(clusters)-1]
				continue
			}
			break
		}
	}

	// Right-limit pass: scan right to left.
	rightLimit := sr.maxX
	for i := len(clusters) - 1; i >= 0; i-- {
		c := clusters[i]
		if c.x+c.width > rightLimit {
			c.x = rightLimit - c.width
		}
		rightLimit = c.x
	}
	// Left-limit pass: scan left to right.
	leftLimit := sr.minX
	for _, c := range clusters {
		if c.x < leftLimit {
			c.x = leftLimit
		}
		if c.x < sr.minX {
			c.x = sr.minX
		}
		leftLimit = c.x + c.width
	}

	// Lay out members inside each cluster at consecutive positions.
	xs := make([]float64, len(sr.cells))
	for _, c := range clusters {
		cursor := c.x
		for _, m := range c.members {
			pos := cursor
			if pos+m.width > sr.maxX {
				pos = sr.maxX - m.width
			}
			xs[indexOf(sr.cells, m)] = pos
			cursor = pos + m.width + padding
		}
	}
	return xs
}

func indexOf(cells []*placedCell, target *placedCell) int {
	for i, c := range cells {
		if c == target {
			return i
		}
	}
	return -1
}
