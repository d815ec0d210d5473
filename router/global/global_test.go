package global_test

import (
	"context"
	"os"
	"testing"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
	"github.com/katalvlaran/vlsiflow/router/global"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).Level(zerolog.Disabled)
}

func buildStore(t *testing.T) *netlist.Store {
	t.Helper()
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: 100, Y: 100}})
	require.NoError(t, err)
	s.AddLayer(netlist.Layer{Name: "pin-access", Direction: netlist.Unknown})
	s.AddLayer(netlist.Layer{Name: "M1", Direction: netlist.Horizontal})
	s.AddLayer(netlist.Layer{Name: "M2", Direction: netlist.Vertical})

	c0 := s.AddCell(netlist.Cell{Width: 2, Height: 2, Position: geom.Point{X: 5, Y: 5}})
	c1 := s.AddCell(netlist.Cell{Width: 2, Height: 2, Position: geom.Point{X: 80, Y: 80}})
	n := s.AddNet(netlist.Net{Name: "n0", Weight: 1})
	_, err = s.AddPin(netlist.Pin{Cell: c0, Net: n})
	require.NoError(t, err)
	_, err = s.AddPin(netlist.Pin{Cell: c1, Net: n})
	require.NoError(t, err)
	return s
}

func TestRouteProducesNonEmptyGuideForConnectedNet(t *testing.T) {
	s := buildStore(t)
	cfg := config.New(config.WithGRGcellSize(10))
	r := global.NewRouter(s, cfg, testLogger())

	guides, rep, err := r.Route(context.Background())
	require.NoError(t, err)
	require.NotNil(t, guides)
	require.Greater(t, len(guides[0]), 0)
	require.GreaterOrEqual(t, rep.Iterations, 0)
}

func TestRouteSkipsSinglePinNets(t *testing.T) {
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: 20, Y: 20}})
	require.NoError(t, err)
	s.AddLayer(netlist.Layer{Name: "pin-access"})
	c0 := s.AddCell(netlist.Cell{Width: 1, Height: 1, Position: geom.Point{X: 1, Y: 1}})
	n := s.AddNet(netlist.Net{Name: "n0"})
	_, err = s.AddPin(netlist.Pin{Cell: c0, Net: n})
	require.NoError(t, err)

	cfg := config.New(config.WithGRGcellSize(5))
	r := global.NewRouter(s, cfg, testLogger())
	guides, _, err := r.Route(context.Background())
	require.NoError(t, err)
	require.NotNil(t, guides)
}
