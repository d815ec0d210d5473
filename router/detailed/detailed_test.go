package detailed_test

import (
	"context"
	"os"
	"testing"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
	"github.com/katalvlaran/vlsiflow/router/detailed"
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
	s.AddLayer(netlist.Layer{Name: "pin-access", Direction: netlist.Unknown, Pitch: 1})
	s.AddLayer(netlist.Layer{Name: "M1", Direction: netlist.Horizontal, Pitch: 1})
	s.AddLayer(netlist.Layer{Name: "M2", Direction: netlist.Vertical, Pitch: 1})
	s.AddTrack(netlist.TrackDef{Layer: 1, Axis: netlist.Vertical, Step: 1})
	s.AddTrack(netlist.TrackDef{Layer: 1, Axis: netlist.Horizontal, Step: 1})

	c0 := s.AddCell(netlist.Cell{Width: 2, Height: 2, Position: geom.Point{X: 5, Y: 5}})
	c1 := s.AddCell(netlist.Cell{Width: 2, Height: 2, Position: geom.Point{X: 80, Y: 80}})
	n := s.AddNet(netlist.Net{Name: "n0", Weight: 1})
	_, err = s.AddPin(netlist.Pin{Cell: c0, Net: n})
	require.NoError(t, err)
	_, err = s.AddPin(netlist.Pin{Cell: c1, Net: n})
	require.NoError(t, err)
	return s
}

func TestRouteProducesFragmentsForConnectedNet(t *testing.T) {
	s := buildStore(t)
	cfg := config.New(config.WithGRGcellSize(10))
	gr := global.NewRouter(s, cfg, testLogger())
	guides, _, err := gr.Route(context.Background())
	require.NoError(t, err)

	dr := detailed.NewRouter(s, cfg, cfg.GRGcellSize, guides, testLogger())
	frags, rep, err := dr.Route(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, frags[0])
	require.Empty(t, rep.Failed)
}

func TestRouteHandlesNoTrackDefsViaLayerPitchFallback(t *testing.T) {
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: 20, Y: 20}})
	require.NoError(t, err)
	s.AddLayer(netlist.Layer{Name: "pin-access", Pitch: 1})
	s.AddLayer(netlist.Layer{Name: "M1", Direction: netlist.Horizontal, Pitch: 2})

	c0 := s.AddCell(netlist.Cell{Width: 1, Height: 1, Position: geom.Point{X: 1, Y: 1}})
	c1 := s.AddCell(netlist.Cell{Width: 1, Height: 1, Position: geom.Point{X: 15, Y: 15}})
	n := s.AddNet(netlist.Net{Name: "n0"})
	_, err = s.AddPin(netlist.Pin{Cell: c0, Net: n})
	require.NoError(t, err)
	_, err = s.AddPin(netlist.Pin{Cell: c1, Net: n})
	require.NoError(t, err)

	cfg := config.New(config.WithGRGcellSize(5))
	dr := detailed.NewRouter(s, cfg, cfg.GRGcellSize, map[netlist.NetID]global.Guide{}, testLogger())
	frags, _, err := dr.Route(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, frags[0])
}

func TestRouteWritesSegmentsBackToStore(t *testing.T) {
	s := buildStore(t)
	cfg := config.New(config.WithGRGcellSize(10))
	gr := global.NewRouter(s, cfg, testLogger())
	guides, _, err := gr.Route(context.Background())
	require.NoError(t, err)

	dr := detailed.NewRouter(s, cfg, cfg.GRGcellSize, guides, testLogger())
	_, rep, err := dr.Route(context.Background())
	require.NoError(t, err)
	require.Empty(t, rep.Failed)

	net, err := s.Net(0)
	require.NoError(t, err)
	require.NotEmpty(t, net.Segments)

	var sawWire bool
	for _, seg := range net.Segments {
		if !seg.IsViaStub() {
			sawWire = true
		}
	}
	require.True(t, sawWire, "expected at least one non-zero-length wire segment")
}

func TestRouteSkipsSinglePinNets(t *testing.T) {
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: 20, Y: 20}})
	require.NoError(t, err)
	s.AddLayer(netlist.Layer{Name: "pin-access", Pitch: 1})
	s.AddTrack(netlist.TrackDef{Axis: netlist.Vertical, Step: 1})
	s.AddTrack(netlist.TrackDef{Axis: netlist.Horizontal, Step: 1})
	c0 := s.AddCell(netlist.Cell{Width: 1, Height: 1, Position: geom.Point{X: 1, Y: 1}})
	n := s.AddNet(netlist.Net{Name: "n0"})
	_, err = s.AddPin(netlist.Pin{Cell: c0, Net: n})
	require.NoError(t, err)

	cfg := config.New()
	dr := detailed.NewRouter(s, cfg, 5, map[netlist.NetID]global.Guide{}, testLogger())
	frags, rep, err := dr.Route(context.Background())
	require.NoError(t, err)
	require.NotNil(t, frags)
	require.Empty(t, rep.Failed)
}
