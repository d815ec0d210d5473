package placer_test

import (
	"math"
	"os"
	"testing"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
	"github.com/katalvlaran/vlsiflow/placer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).Level(zerolog.Disabled)
}

// S1: two unit cells on a 10x10 die connected by one net, starting far
// apart; placement should pull them together without leaving the die.
func TestOptimizeS1TwoCellsConverge(t *testing.T) {
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: 10, Y: 10}})
	require.NoError(t, err)

	c0 := s.AddCell(netlist.Cell{Width: 1, Height: 1, Position: geom.Point{X: 0, Y: 0}})
	c1 := s.AddCell(netlist.Cell{Width: 1, Height: 1, Position: geom.Point{X: 5, Y: 5}})
	n := s.AddNet(netlist.Net{Name: "n0", Weight: 1})
	_, err = s.AddPin(netlist.Pin{Cell: c0, Net: n})
	require.NoError(t, err)
	_, err = s.AddPin(netlist.Pin{Cell: c1, Net: n})
	require.NoError(t, err)

	cfg := config.New(config.WithBinDimension(8))
	rep, err := placer.Optimize(s, cfg, testLogger())
	require.NoError(t, err)
	require.Greater(t, rep.Iterations, 100)

	cell0, _ := s.Cell(c0)
	cell1, _ := s.Cell(c1)
	require.True(t, s.Die.Contains(cell0.Position))
	require.True(t, s.Die.Contains(cell1.Position))
}

// B1: a net with a single pin contributes nothing and must not crash.
func TestOptimizeB1SinglePinNetSkipped(t *testing.T) {
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: 10, Y: 10}})
	require.NoError(t, err)
	c0 := s.AddCell(netlist.Cell{Width: 1, Height: 1, Position: geom.Point{X: 2, Y: 2}})
	n := s.AddNet(netlist.Net{Name: "n0", Weight: 1})
	_, err = s.AddPin(netlist.Pin{Cell: c0, Net: n})
	require.NoError(t, err)

	cfg := config.New(config.WithPlacerMaxIterations(10), config.WithBinDimension(4))
	_, err = placer.Optimize(s, cfg, testLogger())
	require.NoError(t, err)
}

// B2: a cell driven toward die.max clamps to die.max - size.
func TestOptimizeB2ClampsAtDieMax(t *testing.T) {
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: 2, Y: 2}})
	require.NoError(t, err)
	c0 := s.AddCell(netlist.Cell{Width: 1, Height: 1, Position: geom.Point{X: 1.99, Y: 1.99}})
	cfg := config.New(config.WithPlacerMaxIterations(5), config.WithBinDimension(2))
	_, err = placer.Optimize(s, cfg, testLogger())
	require.NoError(t, err)
	cell, _ := s.Cell(c0)
	require.LessOrEqual(t, cell.Position.X, 1.0+1e-9)
	require.LessOrEqual(t, cell.Position.Y, 1.0+1e-9)
}

func TestFixedCellNeverMoves(t *testing.T) {
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: 10, Y: 10}})
	require.NoError(t, err)
	fixedPos := geom.Point{X: 3, Y: 3}
	c0 := s.AddCell(netlist.Cell{Width: 1, Height: 1, Position: fixedPos, IsFixed: true})
	c1 := s.AddCell(netlist.Cell{Width: 1, Height: 1, Position: geom.Point{X: 8, Y: 8}})
	n := s.AddNet(netlist.Net{Name: "n0", Weight: 1})
	_, _ = s.AddPin(netlist.Pin{Cell: c0, Net: n})
	_, _ = s.AddPin(netlist.Pin{Cell: c1, Net: n})

	cfg := config.New(config.WithPlacerMaxIterations(50), config.WithBinDimension(4))
	_, err = placer.Optimize(s, cfg, testLogger())
	require.NoError(t, err)

	cell0, _ := s.Cell(c0)
	require.Equal(t, fixedPos, cell0.Position)
}

func TestOverflowNonNegative(t *testing.T) {
	die := geom.Rect{Max: geom.Point{X: 16, Y: 16}}
	pc := placer.NewPhysicsContext(die, 8)
	cells := []netlist.Cell{{Width: 2, Height: 2, Position: geom.Point{X: 1, Y: 1}}}
	pos := []geom.Point{{X: 1, Y: 1}}
	pc.Solve(cells, pos, 0.6)
	require.False(t, math.IsNaN(pc.Overflow()))
	require.GreaterOrEqual(t, pc.Overflow(), 0.0)
}
