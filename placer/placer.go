// Package placer implements the Nesterov-accelerated analytical global
// placer of spec §4.1: it minimises weighted-average wirelength plus an
// electrostatic density penalty computed via a 2-D spectral Poisson solve,
// and mutates a netlist.Store's cell positions in place.
//
// The optimiser never returns a fatal error for numerical divergence (spec
// §7): a diverging run is reported as a warning in Report.Warnings, and the
// last finite positions seen are kept rather than the diverged ones.
package placer

import (
	"math"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
	"github.com/rs/zerolog"
)

// Report summarises one Optimize run.
type Report struct {
	Iterations    int
	Converged     bool
	FinalWL       float64
	FinalOverflow float64
	Warnings      []string
}

// Optimize runs the Nesterov loop over store's cells and nets, mutating
// store's positions in place, and returns clamped-inside-die results (spec
// §4.1 "Public contract"). A store with no cells is a no-op. The only error
// returned is a failure to write a position back to the store; the store's
// layers are not checked, and numerical divergence is never fatal.
func Optimize(store *netlist.Store, cfg config.Config, logger zerolog.Logger) (Report, error) {
	n := len(store.Cells)
	if n == 0 {
		return Report{}, nil
	}

	pos := make([]geom.Point, n)
	fixed := make([]bool, n)
	for i, c := range store.Cells {
		pos[i] = c.Position
		fixed[i] = c.IsFixed || netlist.CellID(i) == netlist.IOCellID
	}

	pc := NewPhysicsContext(store.Die, cfg.BinDimension)
	var precond Preconditioner = IdentityPreconditioner{}

	x := append([]geom.Point(nil), pos...)
	y := append([]geom.Point(nil), pos...)
	a := 1.0
	step := cfg.InitialLearningRate

	report := Report{}
	lastGood := append([]geom.Point(nil), pos...)

	for k := 0; k < cfg.PlacerMaxIterations; k++ {
		grad := make([]geom.Point, n)
		wl := 0.0
		for _, net := range store.Nets {
			wl += netWirelengthGrad(net, func(p netlist.PinID) geom.Point {
				pin, _ := store.Pin(p)
				if pin.Cell == netlist.IOCellID {
					return pin.Offset
				}
				return y[pin.Cell].Add(pin.Offset)
			}, func(p netlist.PinID) int {
				pin, _ := store.Pin(p)
				return int(pin.Cell)
			}, cfg.WAGamma, grad)
		}

		pc.Solve(store.Cells, y, cfg.TargetDensity)
		for id, c := range store.Cells {
			if fixed[id] {
				continue
			}
			center := y[id].Add(geom.Point{X: c.Width / 2, Y: c.Height / 2})
			f := pc.ForceAt(center)
			grad[id].X -= cfg.ElectroForceMult * f.X
			grad[id].Y -= cfg.ElectroForceMult * f.Y
		}
		precond.Apply(grad)

		if !finiteVec(grad) || !finiteVal(wl) {
			report.Warnings = append(report.Warnings, "placer: non-finite gradient encountered, aborting with last known positions")
			logger.Warn().Int("iter", k).Msg("placer divergence detected")
			break
		}

		xNext := make([]geom.Point, n)
		for id, c := range store.Cells {
			if fixed[id] {
				xNext[id] = x[id]
				continue
			}
			cand := y[id].Sub(grad[id].Scale(step))
			xNext[id] = store.Die.ClampPoint(cand, geom.Point{X: c.Width, Y: c.Height})
		}

		aNext := (1 + math.Sqrt(4*a*a+1)) / 2
		m := (a - 1) / aNext

		yNext := make([]geom.Point, n)
		for id, c := range store.Cells {
			if fixed[id] {
				yNext[id] = x[id]
				continue
			}
			cand := xNext[id].Add(xNext[id].Sub(x[id]).Scale(m))
			yNext[id] = store.Die.ClampPoint(cand, geom.Point{X: c.Width, Y: c.Height})
		}

		disp := avgManhattan(xNext, x, fixed)
		overflow := pc.Overflow()

		if k%100 == 0 {
			logger.Debug().Int("iter", k).Float64("wl", wl).Float64("overflow", overflow).
				Float64("step", step).Float64("avg_move", disp).Msg("placer iteration")
		}

		x, y, a = xNext, yNext, aNext
		lastGood = append(lastGood[:0], x...)
		report.FinalWL, report.FinalOverflow = wl, overflow
		report.Iterations = k + 1

		if k >= cfg.PlacerWarmupIters {
			step *= cfg.PlacerStepDecay
		}

		if k > 100 && disp < cfg.ConvergenceThreshold && overflow < 5e4 {
			report.Converged = true
			logger.Info().Int("iter", k).Msg("placer converged")
			break
		}
	}

	for id, c := range store.Cells {
		if netlist.CellID(id) == netlist.IOCellID {
			continue
		}
		final := lastGood[id]
		if !fixed[id] {
			final = store.Die.ClampPoint(final, geom.Point{X: c.Width, Y: c.Height})
		}
		if err := store.SetPosition(netlist.CellID(id), final); err != nil {
			return report, err
		}
	}

	return report, nil
}

func finiteVal(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteVec(v []geom.Point) bool {
	for _, p := range v {
		if !finiteVal(p.X) || !finiteVal(p.Y) {
			return false
		}
	}
	return true
}

func avgManhattan(a, b []geom.Point, fixed []bool) float64 {
	var total float64
	var count int
	for i := range a {
		if fixed[i] {
			continue
		}
		total += geom.ManhattanDist(a[i], b[i])
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
