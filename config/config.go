// Package config holds the single Config record recognised by the flow
// driver (spec §6), built the way the teacher's dijkstra.Options and
// builder.builderConfig are: a DefaultConfig constructor plus functional
// options. Config itself is an exported struct. With* options exist for
// only some tunables (target density, bin dimension, placer iterations, WA
// gamma, electrostatic force multiplier, router capacities, gcell size, and
// the detailed A* heuristic weight); every other field is set directly on
// the struct.
// Option constructors panic on a literal that is obviously invalid at
// construction time (the same convention as dijkstra.WithMaxDistance);
// Validate returns an error for combinations that only make sense to reject
// at run time after all options have been applied.
package config

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Validate.
var (
	ErrBadTargetDensity   = errors.New("config: target_density must be in (0,1]")
	ErrBadBinDimension    = errors.New("config: bin_dimension must be a positive power of two")
	ErrBadIterations      = errors.New("config: iteration counts must be positive")
	ErrBadGamma           = errors.New("config: wa_gamma must be positive")
	ErrBadCapacity        = errors.New("config: router capacities must be positive")
	ErrBadGcellSize       = errors.New("config: gr_gcell_size must be positive")
	ErrBadHeuristicWeight = errors.New("config: heuristic weight must be >= 1")
)

// Config mirrors every recognised option in spec §6, with its documented
// default. Legalizer algorithm is a string so future legalizers can be
// selected without an API break, matching the teacher's habit of plain
// string discriminators over closed enums where the source format already
// used a name (e.g. MemoryMode's sibling idea, but applied to an external
// name).
type Config struct {
	// Placer (§4.1)
	TargetDensity         float64
	BinDimension          int
	PlacerMaxIterations   int
	InitialLearningRate   float64
	ConvergenceThreshold  float64
	WAGamma               float64
	ElectroForceMult      float64
	PlacerWarmupIters     int
	PlacerStepDecay       float64

	// Legalizer (§4.2)
	LegalizerAlgorithm string
	RowSearchBand      int
	CellPadding        float64

	// Global router (§4.4)
	GRGcellSize        float64
	GRMaxIterations    int
	GRHistoryIncrement float64
	GRInitialPenalty   float64
	GRPenaltyMult      float64
	GRCapacity         int
	GRHeuristicWeight  float64
	GRMargin           int

	// Detailed router (§4.5)
	DRMaxIterations       int
	DRHistoryIncrement    float64
	DRInitialPenalty      float64
	DRPenaltyMult         float64
	DRCapacity            int
	DRAstarHeuristicWeight float64
	DRAstarWindowMarginBase int
	DRAstarWindowMarginMax  int
	DRStagnationThreshold   int
	DRRipupRadius           int

	// A* kernel shared knobs (§4.3)
	AstarBaseMargin    int
	AstarMarginMult    int
	AstarMaxExpansions int

	// Verifier (§4.6)
	VerifyBinSize   int
	VerifyTolerance float64
}

// Option mutates a Config during construction.
type Option func(*Config)

// DefaultConfig returns the Config populated with every default literal
// from spec §6.
func DefaultConfig() Config {
	return Config{
		TargetDensity:        0.60,
		BinDimension:         256,
		PlacerMaxIterations:  2000,
		InitialLearningRate:  0.003,
		ConvergenceThreshold: 2e-4,
		WAGamma:              4.0,
		ElectroForceMult:     20.0,
		PlacerWarmupIters:    500,
		PlacerStepDecay:      0.999,

		LegalizerAlgorithm: "abacus",
		RowSearchBand:      50,
		CellPadding:        0.0,

		GRGcellSize:        128,
		GRMaxIterations:    300,
		GRHistoryIncrement: 0.5,
		GRInitialPenalty:   0.5,
		GRPenaltyMult:      1.1,
		GRCapacity:         10,
		GRHeuristicWeight:  1.5,
		GRMargin:           10,

		DRMaxIterations:         2000,
		DRHistoryIncrement:      0.2,
		DRInitialPenalty:        1.5,
		DRPenaltyMult:           1.05,
		DRCapacity:              1,
		DRAstarHeuristicWeight:  5.0,
		DRAstarWindowMarginBase: 20,
		DRAstarWindowMarginMax:  200,
		DRStagnationThreshold:   20,
		DRRipupRadius:           1,

		AstarBaseMargin:    4,
		AstarMarginMult:    2,
		AstarMaxExpansions: 200000,

		VerifyBinSize:   32,
		VerifyTolerance: 0.005, // 5nm, in the die's micron units
	}
}

// New builds a Config from DefaultConfig with opts applied in order; later
// options override earlier ones, matching newBuilderConfig's convention.
func New(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTargetDensity overrides TargetDensity. Panics if d is not in (0,1].
func WithTargetDensity(d float64) Option {
	if d <= 0 || d > 1 {
		panic(ErrBadTargetDensity.Error())
	}
	return func(c *Config) { c.TargetDensity = d }
}

// WithBinDimension overrides BinDimension. Panics if b is not a positive
// power of two.
func WithBinDimension(b int) Option {
	if b <= 0 || b&(b-1) != 0 {
		panic(ErrBadBinDimension.Error())
	}
	return func(c *Config) { c.BinDimension = b }
}

// WithPlacerMaxIterations overrides PlacerMaxIterations. Panics if n <= 0.
func WithPlacerMaxIterations(n int) Option {
	if n <= 0 {
		panic(ErrBadIterations.Error())
	}
	return func(c *Config) { c.PlacerMaxIterations = n }
}

// WithWAGamma overrides WAGamma. Panics if g <= 0.
func WithWAGamma(g float64) Option {
	if g <= 0 {
		panic(ErrBadGamma.Error())
	}
	return func(c *Config) { c.WAGamma = g }
}

// WithElectroForceMultiplier overrides ElectroForceMult.
func WithElectroForceMultiplier(mu float64) Option {
	return func(c *Config) { c.ElectroForceMult = mu }
}

// WithGRCapacity overrides GRCapacity. Panics if cap <= 0.
func WithGRCapacity(cap int) Option {
	if cap <= 0 {
		panic(ErrBadCapacity.Error())
	}
	return func(c *Config) { c.GRCapacity = cap }
}

// WithDRCapacity overrides DRCapacity. Panics if cap <= 0.
func WithDRCapacity(cap int) Option {
	if cap <= 0 {
		panic(ErrBadCapacity.Error())
	}
	return func(c *Config) { c.DRCapacity = cap }
}

// WithGRGcellSize overrides GRGcellSize. Panics if s <= 0.
func WithGRGcellSize(s float64) Option {
	if s <= 0 {
		panic(ErrBadGcellSize.Error())
	}
	return func(c *Config) { c.GRGcellSize = s }
}

// WithDRAstarHeuristicWeight overrides DRAstarHeuristicWeight. Panics if
// w < 1 (an inadmissible-but-valid weighted-A* weight must still expand,
// never contract, the heuristic).
func WithDRAstarHeuristicWeight(w float64) Option {
	if w < 1 {
		panic(ErrBadHeuristicWeight.Error())
	}
	return func(c *Config) { c.DRAstarHeuristicWeight = w }
}

// Validate returns an error describing the first out-of-range field found,
// or nil if cfg is internally consistent. Unlike the option constructors
// above (which guard literals supplied at construction time), Validate
// catches invalid values that arrived through some other path (e.g.
// deserialised from an external config record).
func (c Config) Validate() error {
	switch {
	case c.TargetDensity <= 0 || c.TargetDensity > 1:
		return ErrBadTargetDensity
	case c.BinDimension <= 0 || c.BinDimension&(c.BinDimension-1) != 0:
		return ErrBadBinDimension
	case c.PlacerMaxIterations <= 0 || c.GRMaxIterations <= 0 || c.DRMaxIterations <= 0:
		return ErrBadIterations
	case c.WAGamma <= 0:
		return ErrBadGamma
	case c.GRCapacity <= 0 || c.DRCapacity <= 0:
		return ErrBadCapacity
	case c.GRGcellSize <= 0:
		return ErrBadGcellSize
	case c.GRHeuristicWeight < 1 || c.DRAstarHeuristicWeight < 1:
		return ErrBadHeuristicWeight
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("Config{density=%.2f bins=%d placer_iters=%d gr_iters=%d dr_iters=%d}",
		c.TargetDensity, c.BinDimension, c.PlacerMaxIterations, c.GRMaxIterations, c.DRMaxIterations)
}
