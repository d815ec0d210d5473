// Package synth builds small synthetic netlists in-process, for the
// cmd/vlsiflow-bench smoke driver and for tests that need more than a
// hand-built two-cell Store. It is not a substitute for the external
// Bookshelf/LEF/DEF benchmark generator excluded by spec §1 — it never
// reads or writes a file, and it is deliberately unexported from the
// module's public surface.
package synth

import (
	"fmt"
	"math/rand"

	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
)

// Params configures a synthetic netlist.
type Params struct {
	DieWidth, DieHeight float64
	NumCells            int
	CellWidth, CellHeight float64
	NumNets             int
	PinsPerNet          int
	NumLayers           int
	Seed                int64
}

// DefaultParams returns a small but non-trivial synthetic design: 100 unit
// standard cells on a 100x100 die, 40 three-pin nets, on a four-layer stack.
func DefaultParams() Params {
	return Params{
		DieWidth: 100, DieHeight: 100,
		NumCells: 100, CellWidth: 1, CellHeight: 1,
		NumNets: 40, PinsPerNet: 3,
		NumLayers: 4,
		Seed:      1,
	}
}

// Build constructs a Store populated per p: alternating-direction metal
// layers, NumCells movable cells placed uniformly at random inside the die,
// and NumNets random nets each connecting PinsPerNet distinct cells' centre
// pins.
func Build(p Params) (*netlist.Store, error) {
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: p.DieWidth, Y: p.DieHeight}})
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(p.Seed))

	for i := 0; i < p.NumLayers; i++ {
		dir := netlist.Horizontal
		if i%2 == 0 {
			dir = netlist.Vertical
		}
		if i == 0 {
			dir = netlist.Unknown // pin-access layer
		}
		s.AddLayer(netlist.Layer{
			Name:      fmt.Sprintf("M%d", i),
			Direction: dir,
			Pitch:     0.2,
			Width:     0.1,
		})
	}

	cellIDs := make([]netlist.CellID, p.NumCells)
	for i := 0; i < p.NumCells; i++ {
		x := rng.Float64() * (p.DieWidth - p.CellWidth)
		y := rng.Float64() * (p.DieHeight - p.CellHeight)
		cellIDs[i] = s.AddCell(netlist.Cell{
			Name:     fmt.Sprintf("c%d", i),
			LibCell:  "INVX1",
			Width:    p.CellWidth,
			Height:   p.CellHeight,
			Position: geom.Point{X: x, Y: y},
		})
	}

	for i := 0; i < p.NumNets; i++ {
		net := s.AddNet(netlist.Net{Name: fmt.Sprintf("n%d", i), Weight: 1})
		k := p.PinsPerNet
		if k > p.NumCells {
			k = p.NumCells
		}
		seen := make(map[int]bool, k)
		for len(seen) < k {
			seen[rng.Intn(p.NumCells)] = true
		}
		for idx := range seen {
			if _, err := s.AddPin(netlist.Pin{
				Name:   "P",
				Offset: geom.Point{X: p.CellWidth / 2, Y: p.CellHeight / 2},
				Cell:   cellIDs[idx],
				Net:    net,
			}); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}
