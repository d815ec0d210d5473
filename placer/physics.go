package placer

import (
	"math"

	"github.com/katalvlaran/vlsiflow/geom"
	"github.com/katalvlaran/vlsiflow/netlist"
	"gonum.org/v1/gonum/dsp/fourier"
)

// PhysicsContext owns every scratch buffer the electrostatic density
// penalty needs: the B x B density/potential/force grids and the FFT
// plans for the rows and columns of that grid. It is allocated once per
// placer run and reused on every Nesterov iteration (spec §5), exactly the
// way the teacher's ops.Eigen reuses its work matrices across sweeps rather
// than reallocating per iteration.
type PhysicsContext struct {
	bins int
	die  geom.Rect
	binW, binH float64

	rho  []float64 // flattened B*B density minus target, row-major [y*B+x]
	psi  []float64 // flattened B*B potential
	fx   []float64 // force x component per bin
	fy   []float64 // force y component per bin

	rowFFT *fourier.CmplxFFT
	colFFT *fourier.CmplxFFT

	// input staging buffers reused across Coefficients/Sequence calls.
	// Those calls are made with a nil destination, so each one still
	// allocates its output slice.
	rowBuf []complex128
	colBuf []complex128
	spec   [][]complex128 // B x B complex spectrum, row-major access via spec[y][x]

	overflow float64 // last-computed diagnostic, spec §4.1 step 4
}

// NewPhysicsContext allocates a physics context with a bins x bins density
// grid over die.
func NewPhysicsContext(die geom.Rect, bins int) *PhysicsContext {
	pc := &PhysicsContext{
		bins: bins,
		die:  die,
		binW: die.Width() / float64(bins),
		binH: die.Height() / float64(bins),
		rho:  make([]float64, bins*bins),
		psi:  make([]float64, bins*bins),
		fx:   make([]float64, bins*bins),
		fy:   make([]float64, bins*bins),

		rowFFT: fourier.NewCmplxFFT(bins),
		colFFT: fourier.NewCmplxFFT(bins),
		rowBuf: make([]complex128, bins),
		colBuf: make([]complex128, bins),
	}
	pc.spec = make([][]complex128, bins)
	for i := range pc.spec {
		pc.spec[i] = make([]complex128, bins)
	}
	return pc
}

func (pc *PhysicsContext) at(x, y int) int { return y*pc.bins+x }

func (pc *PhysicsContext) binOf(p geom.Point) (int, int) {
	bx := int((p.X - pc.die.Min.X) / pc.binW)
	by := int((p.Y - pc.die.Min.Y) / pc.binH)
	return clampBin(bx, pc.bins), clampBin(by, pc.bins)
}

func clampBin(v, bins int) int {
	if v < 0 {
		return 0
	}
	if v >= bins {
		return bins - 1
	}
	return v
}

// spreadDensity implements spec §4.1 step 1: spread each cell's area into
// the bins it overlaps proportionally to the number of bins covered, then
// convert to density and subtract targetDensity.
func (pc *PhysicsContext) spreadDensity(cells []netlist.Cell, pos []geom.Point, targetDensity float64) {
	for i := range pc.rho {
		pc.rho[i] = 0
	}
	binArea := pc.binW * pc.binH

	for id, c := range cells {
		if c.Width <= 0 || c.Height <= 0 {
			continue // zero-size (e.g. the virtual IO cell) contributes no area
		}
		r := geom.Rect{Min: pos[id], Max: geom.Point{X: pos[id].X + c.Width, Y: pos[id].Y + c.Height}}
		x0, y0 := pc.binOf(r.Min)
		x1, y1 := pc.binOf(geom.Point{X: math.Nextafter(r.Max.X, r.Min.X), Y: math.Nextafter(r.Max.Y, r.Min.Y)})
		if x1 < x0 {
			x1 = x0
		}
		if y1 < y0 {
			y1 = y0
		}
		binsCovered := float64((x1 - x0 + 1) * (y1 - y0 + 1))
		if binsCovered <= 0 {
			binsCovered = 1
		}
		share := c.Width * c.Height / binsCovered
		for by := y0; by <= y1; by++ {
			for bx := x0; bx <= x1; bx++ {
				pc.rho[pc.at(bx, by)] += share
			}
		}
	}

	overflow := 0.0
	for i := range pc.rho {
		rhoHat := pc.rho[i]/binArea - targetDensity
		pc.rho[i] = rhoHat
		if rhoHat > 0 {
			overflow += rhoHat * rhoHat
		}
	}
	pc.overflow = overflow
}

// solvePoisson implements spec §4.1 step 2: solve the periodic Poisson
// equation by 2-D DFT with the DC coefficient zeroed, then normalise the
// inverse transform by 1/bins^2.
func (pc *PhysicsContext) solvePoisson() {
	B := pc.bins

	// Forward 2-D DFT: rows then columns.
	for y := 0; y < B; y++ {
		for x := 0; x < B; x++ {
			pc.rowBuf[x] = complex(pc.rho[pc.at(x, y)], 0)
		}
		out := pc.rowFFT.Coefficients(nil, pc.rowBuf)
		copy(pc.spec[y], out)
	}
	for x := 0; x < B; x++ {
		for y := 0; y < B; y++ {
			pc.colBuf[y] = pc.spec[y][x]
		}
		out := pc.colFFT.Coefficients(nil, pc.colBuf)
		for y := 0; y < B; y++ {
			pc.spec[y][x] = out[y]
		}
	}

	// Apply the spectral Poisson operator: Psi(u,v) = R(u,v) / k^2, DC -> 0.
	for v := 0; v < B; v++ {
		for u := 0; u < B; u++ {
			if u == 0 && v == 0 {
				pc.spec[v][u] = 0
				continue
			}
			ku := 2 * math.Pi * float64(freqIndex(u, B)) / float64(B)
			kv := 2 * math.Pi * float64(freqIndex(v, B)) / float64(B)
			denom := ku*ku + kv*kv
			pc.spec[v][u] /= complex(denom, 0)
		}
	}

	// Inverse 2-D DFT: columns then rows, then normalise by 1/B^2.
	for x := 0; x < B; x++ {
		for y := 0; y < B; y++ {
			pc.colBuf[y] = pc.spec[y][x]
		}
		out := pc.colFFT.Sequence(nil, pc.colBuf)
		for y := 0; y < B; y++ {
			pc.spec[y][x] = out[y]
		}
	}
	for y := 0; y < B; y++ {
		out := pc.rowFFT.Sequence(nil, pc.spec[y])
		for x := 0; x < B; x++ {
			pc.psi[pc.at(x, y)] = real(out[x]) / float64(B*B)
		}
	}
}

// freqIndex maps a DFT bin index in [0,B) to its signed frequency in
// (-B/2, B/2], matching the standard FFT frequency-ordering convention.
func freqIndex(i, B int) int {
	if i > B/2 {
		return i - B
	}
	return i
}

// computeForce implements spec §4.1 step 3: F = -grad(psi) by central
// differences, with Neumann-like boundary replication (an out-of-range
// neighbor reuses the centre cell itself, so an edge bin takes a one-sided
// difference over a single bin width).
func (pc *PhysicsContext) computeForce() {
	B := pc.bins
	get := func(x, y int) float64 {
		if x < 0 || x >= B || y < 0 || y >= B {
			x, y = clampBin(x, B), clampBin(y, B)
		}
		return pc.psi[pc.at(x, y)]
	}
	neumann := func(v, B int) (lo, hi int) {
		lo, hi = v-1, v+1
		if lo < 0 {
			lo = v
		}
		if hi >= B {
			hi = v
		}
		return
	}
	for y := 0; y < B; y++ {
		for x := 0; x < B; x++ {
			xlo, xhi := neumann(x, B)
			ylo, yhi := neumann(y, B)
			dpsidx := (get(xhi, y) - get(xlo, y)) / (float64(xhi-xlo) * pc.binW)
			dpsidy := (get(x, yhi) - get(x, ylo)) / (float64(yhi-ylo) * pc.binH)
			if xhi == xlo {
				dpsidx = 0
			}
			if yhi == ylo {
				dpsidy = 0
			}
			pc.fx[pc.at(x, y)] = -dpsidx
			pc.fy[pc.at(x, y)] = -dpsidy
		}
	}
}

// ForceAt returns the electrostatic force vector at the bin containing p.
func (pc *PhysicsContext) ForceAt(p geom.Point) geom.Point {
	bx, by := pc.binOf(p)
	i := pc.at(bx, by)
	return geom.Point{X: pc.fx[i], Y: pc.fy[i]}
}

// Overflow returns Sigma max(0, rho_hat)^2 from the most recent Solve call
// (spec §4.1 step 4, diagnostic only).
func (pc *PhysicsContext) Overflow() float64 { return pc.overflow }

// Solve runs the full density -> Poisson -> force pipeline for the current
// positions (spec §4.1 steps 1-3).
func (pc *PhysicsContext) Solve(cells []netlist.Cell, pos []geom.Point, targetDensity float64) {
	pc.spreadDensity(cells, pos, targetDensity)
	pc.solvePoisson()
	pc.computeForce()
}
