package flow_test

import (
	"context"
	"os"
	"testing"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/katalvlaran/vlsiflow/flow"
	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).Level(zerolog.Disabled)
}

func buildSmallDesign(t *testing.T) *netlist.Store {
	t.Helper()
	s, err := netlist.New(geom.Rect{Max: geom.Point{X: 100, Y: 100}})
	require.NoError(t, err)
	s.AddLayer(netlist.Layer{Name: "pin-access", Pitch: 1})
	s.AddLayer(netlist.Layer{Name: "M1", Direction: netlist.Horizontal, Pitch: 1})
	s.AddLayer(netlist.Layer{Name: "M2", Direction: netlist.Vertical, Pitch: 1})
	s.AddTrack(netlist.TrackDef{Layer: 1, Axis: netlist.Vertical, Step: 1})
	s.AddTrack(netlist.TrackDef{Layer: 1, Axis: netlist.Horizontal, Step: 1})

	c0 := s.AddCell(netlist.Cell{Width: 4, Height: 4, Position: geom.Point{X: 10, Y: 10}})
	c1 := s.AddCell(netlist.Cell{Width: 4, Height: 4, Position: geom.Point{X: 60, Y: 60}})
	n := s.AddNet(netlist.Net{Name: "n0", Weight: 1})
	_, err = s.AddPin(netlist.Pin{Cell: c0, Net: n})
	require.NoError(t, err)
	_, err = s.AddPin(netlist.Pin{Cell: c1, Net: n})
	require.NoError(t, err)
	return s
}

func TestRunExecutesAllStages(t *testing.T) {
	s := buildSmallDesign(t)
	cfg := config.New(
		config.WithGRGcellSize(10),
		config.WithPlacerMaxIterations(10),
	)

	report, err := flow.Run(context.Background(), s, cfg, testLogger())
	require.NoError(t, err)
	require.GreaterOrEqual(t, report.Placer.Iterations, 0)
	require.NotEmpty(t, s.Nets[0].Segments)
}
