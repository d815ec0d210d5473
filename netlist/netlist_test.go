package netlist_test

import (
	"testing"

	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsEmptyDie(t *testing.T) {
	_, err := netlist.New(geom.Rect{})
	require.ErrorIs(t, err, netlist.ErrEmptyDie)
}

func TestAddCellAndPinWiring(t *testing.T) {
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: 10, Y: 10}})
	require.NoError(t, err)

	n := s.AddNet(netlist.Net{Name: "n0", Weight: 1})
	c := s.AddCell(netlist.Cell{Name: "c0", Width: 1, Height: 1})
	pid, err := s.AddPin(netlist.Pin{Name: "A", Cell: c, Net: n})
	require.NoError(t, err)

	cell, err := s.Cell(c)
	require.NoError(t, err)
	require.Contains(t, cell.Pins, pid)

	net, err := s.Net(n)
	require.NoError(t, err)
	require.Contains(t, net.Pins, pid)
}

func TestAddPinRejectsUnknownCell(t *testing.T) {
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: 10, Y: 10}})
	require.NoError(t, err)
	n := s.AddNet(netlist.Net{Name: "n0"})
	_, err = s.AddPin(netlist.Pin{Cell: netlist.CellID(99), Net: n})
	require.ErrorIs(t, err, netlist.ErrCellNotFound)
}

func TestIOCellReservedAtOrigin(t *testing.T) {
	die := geom.Rect{Min: geom.Point{X: 2, Y: 3}, Max: geom.Point{X: 12, Y: 13}}
	s, err := netlist.New(die)
	require.NoError(t, err)
	io, err := s.Cell(netlist.IOCellID)
	require.NoError(t, err)
	require.Equal(t, die.Min, io.Position)
	require.True(t, io.IsFixed)
}

func TestRowHeightIsMode(t *testing.T) {
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: 100, Y: 100}})
	require.NoError(t, err)
	s.AddCell(netlist.Cell{Height: 2})
	s.AddCell(netlist.Cell{Height: 2})
	s.AddCell(netlist.Cell{Height: 9}) // macro
	require.Equal(t, 2.0, s.RowHeight())
}
