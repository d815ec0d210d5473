package placer

import (
	"math"

	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
)

// waAxisGrad computes the weighted-average wirelength along one axis for a
// single net and accumulates its gradient into gradAxis, indexed by the
// same cell id used to index positions. Returns the axis's WL contribution
// (spec §4.1, WA wirelength).
//
// Subtracting the axis extremum inside each exponent before exponentiating
// is mandatory for numerical stability (spec §4.1) — without it, exp()
// overflows for any pin far from the origin.
func waAxisGrad(pins []netlist.PinID, coord func(netlist.PinID) (cellIdx int, p float64), gamma float64, gradAxis []float64) float64 {
	n := len(pins)
	if n < 2 {
		return 0
	}

	xs := make([]float64, n)
	idx := make([]int, n)
	xPlus, xMinus := math.Inf(-1), math.Inf(1)
	for i, pin := range pins {
		ci, p := coord(pin)
		xs[i], idx[i] = p, ci
		if p > xPlus {
			xPlus = p
		}
		if p < xMinus {
			xMinus = p
		}
	}

	var numerPlus, denomPlus, numerMinus, denomMinus float64
	ePlus := make([]float64, n)
	eMinus := make([]float64, n)
	for i, p := range xs {
		ePlus[i] = math.Exp((p - xPlus) / gamma)
		eMinus[i] = math.Exp((xMinus - p) / gamma)
		numerPlus += p * ePlus[i]
		denomPlus += ePlus[i]
		numerMinus += p * eMinus[i]
		denomMinus += eMinus[i]
	}
	// denom{Plus,Minus} >= 1 always: the extremum pin itself contributes
	// exp(0)=1 to its own sum (spec P5).
	waPlus := numerPlus / denomPlus
	waMinus := numerMinus / denomMinus

	for i, p := range xs {
		gPlus := (1 + (p-waPlus)/gamma) * ePlus[i] / denomPlus
		gMinus := (1 - (p-waMinus)/gamma) * eMinus[i] / denomMinus
		gradAxis[idx[i]] += gPlus - gMinus
	}

	return waPlus - waMinus
}

// netWirelengthGrad adds net's weighted WA wirelength gradient (both axes)
// to grad, and returns the net's weighted WL cost (for diagnostics). pos
// gives each pin's current world position; cellOf maps a pin to the cell id
// whose gradient entry should receive the contribution (spec: "add WA
// gradient per pin to the owning cell's gradient").
func netWirelengthGrad(net netlist.Net, pos func(netlist.PinID) geom.Point, cellOf func(netlist.PinID) int, gamma float64, grad []geom.Point) float64 {
	if len(net.Pins) < 2 {
		return 0
	}
	gx := make([]float64, len(grad))
	gy := make([]float64, len(grad))

	wlx := waAxisGrad(net.Pins, func(p netlist.PinID) (int, float64) {
		return cellOf(p), pos(p).X
	}, gamma, gx)
	wly := waAxisGrad(net.Pins, func(p netlist.PinID) (int, float64) {
		return cellOf(p), pos(p).Y
	}, gamma, gy)

	for i := range grad {
		grad[i].X += net.Weight * gx[i]
		grad[i].Y += net.Weight * gy[i]
	}
	return net.Weight * (wlx + wly)
}
