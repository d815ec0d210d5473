// Package netlist is the columnar in-memory database of cells, pins, nets,
// layers, tracks, the die rectangle, and mutable cell positions and routed
// segments described in spec §3. It has no placement or routing logic of
// its own — every other package in this module reads and mutates a Store
// through the accessors here, following the teacher's single-ownership
// arena discipline (core.Graph): integer ids in, integer ids out, no
// back-pointers.
//
// A Store is safe for concurrent reads. Every mutating method takes the
// Store's write lock itself; Store.Lock/Unlock let a caller that writes the
// exported columns directly do so under one critical section, mirroring the
// "collect-then-apply" discipline of spec §5. Calling a mutating method
// while holding Lock deadlocks.
package netlist

import (
	"errors"
	"fmt"
	"sync"

	"github.com/katalvlaran/vlsiflow/geom"
)

// Sentinel errors for netlist operations.
var (
	ErrCellNotFound  = errors.New("netlist: cell not found")
	ErrNetNotFound   = errors.New("netlist: net not found")
	ErrPinNotFound   = errors.New("netlist: pin not found")
	ErrLayerNotFound = errors.New("netlist: layer not found")
	ErrEmptyDie      = errors.New("netlist: die area has zero or negative extent")
	ErrNoLayers      = errors.New("netlist: store has no layers")
)

// Direction is a metal layer's preferred routing direction.
type Direction int

const (
	Unknown Direction = iota
	Horizontal
	Vertical
)

// LayerID, CellID, NetID, PinID are dense zero-based indices into the
// Store's columnar arrays.
type (
	LayerID int
	CellID  int
	NetID   int
	PinID   int
)

// IOCellID is the reserved id of the virtual IO cell (spec I4): zero size,
// fixed at the die origin, owning every top-level IO pin.
const IOCellID CellID = 0

// Layer is one plane of the metal stack, low to high.
type Layer struct {
	Name      string
	Direction Direction
	Pitch     float64
	Width     float64
}

// Cell is an instance of a library macro occupying a rectangle. Position is
// the lower-left corner in world space.
type Cell struct {
	Name     string
	LibCell  string
	Width    float64
	Height   float64
	IsFixed  bool
	IsMacro  bool
	Position geom.Point
	Pins     []PinID
}

// Rect returns the cell's axis-aligned world-space rectangle at its
// current position.
func (c Cell) Rect() geom.Rect {
	return geom.Rect{
		Min: c.Position,
		Max: geom.Point{X: c.Position.X + c.Width, Y: c.Position.Y + c.Height},
	}
}

// Pin is a connection point on a cell: the electrical endpoint of a net.
// Offset is relative to the owning cell's lower-left corner, except for IO
// pins (owned by IOCellID), whose Offset is the absolute perimeter
// coordinate per spec I4.
type Pin struct {
	Name   string
	Offset geom.Point
	Cell   CellID
	Net    NetID
}

// WorldPos returns the pin's absolute world-space location given its
// owning cell's current position. An IO pin's Offset is already absolute,
// so it is returned unchanged.
func (p Pin) WorldPos(owner Cell) geom.Point {
	if p.Cell == IOCellID {
		return p.Offset
	}
	return owner.Position.Add(p.Offset)
}

// RouteSegment is one wire segment of a net. Equal endpoints denote a via
// stub (spec §3).
type RouteSegment struct {
	Layer LayerID
	A, B  geom.Point
}

// IsViaStub reports whether the segment is a zero-length via marker.
func (s RouteSegment) IsViaStub() bool {
	return s.A == s.B
}

// Net is an equivalence class of pins that must be electrically connected.
type Net struct {
	Name     string
	Weight   float64
	Pins     []PinID
	Segments []RouteSegment
}

// TrackDef is an optional per-layer routing grid definition.
type TrackDef struct {
	Layer LayerID
	Axis  Direction
	Start float64
	Count int
	Step  float64
}

// Store is the netlist database: one contiguous column per attribute,
// addressed by the dense ids above. mu guards every mutating method, and
// the by-id getters take its read lock; direct reads of the exported
// columns take no lock and assume the caller is not racing a concurrent
// writer, matching the placer/legalizer/router's single-writer phases in
// spec §5.
type Store struct {
	mu sync.RWMutex

	Die    geom.Rect
	Layers []Layer
	Cells  []Cell
	Nets   []Net
	Pins   []Pin
	Tracks []TrackDef
}

// New creates an empty Store over die, with the reserved IO cell already
// installed as Cells[IOCellID]. Returns ErrEmptyDie if die has zero or
// negative width/height.
func New(die geom.Rect) (*Store, error) {
	if die.Width() <= 0 || die.Height() <= 0 {
		return nil, ErrEmptyDie
	}
	s := &Store{
		Die: die,
		Cells: []Cell{{
			Name:     "__io__",
			Position: die.Min,
			IsFixed:  true,
		}},
	}
	return s, nil
}

// Lock/Unlock expose the Store's writer lock so callers can batch a
// "collect then apply" update (spec §5) of the exported columns under a
// single critical section. The mutating methods below acquire the same
// lock, so they must not be called between Lock and Unlock.
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// AddLayer appends a layer and returns its id.
func (s *Store) AddLayer(l Layer) LayerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Layers = append(s.Layers, l)
	return LayerID(len(s.Layers) - 1)
}

// AddCell appends a movable or fixed cell and returns its id.
func (s *Store) AddCell(c Cell) CellID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cells = append(s.Cells, c)
	return CellID(len(s.Cells) - 1)
}

// AddNet appends an (initially pin-less) net and returns its id.
func (s *Store) AddNet(n Net) NetID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Nets = append(s.Nets, n)
	return NetID(len(s.Nets) - 1)
}

// AddPin appends a pin owned by cell and belonging to net, wiring it into
// both the owning cell's and the owning net's pin lists (maintaining I1).
func (s *Store) AddPin(p Pin) (PinID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(p.Cell) < 0 || int(p.Cell) >= len(s.Cells) {
		return 0, fmt.Errorf("%w: cell %d", ErrCellNotFound, p.Cell)
	}
	if int(p.Net) < 0 || int(p.Net) >= len(s.Nets) {
		return 0, fmt.Errorf("%w: net %d", ErrNetNotFound, p.Net)
	}
	id := PinID(len(s.Pins))
	s.Pins = append(s.Pins, p)
	s.Cells[p.Cell].Pins = append(s.Cells[p.Cell].Pins, id)
	s.Nets[p.Net].Pins = append(s.Nets[p.Net].Pins, id)
	return id, nil
}

// AddTrack records an optional track definition for layer.
func (s *Store) AddTrack(t TrackDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tracks = append(s.Tracks, t)
}

// NumMovable returns the count of non-fixed, non-IO cells.
func (s *Store) NumMovable() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i, c := range s.Cells {
		if CellID(i) == IOCellID {
			continue
		}
		if !c.IsFixed {
			n++
		}
	}
	return n
}

// SetPosition moves cell id to pos. Used by the placer and legalizer.
func (s *Store) SetPosition(id CellID, pos geom.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) < 0 || int(id) >= len(s.Cells) {
		return fmt.Errorf("%w: %d", ErrCellNotFound, id)
	}
	s.Cells[id].Position = pos
	return nil
}

// SetSegments replaces net id's routed segments wholesale. Used by the
// detailed router's collect-then-apply phase.
func (s *Store) SetSegments(id NetID, segs []RouteSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) < 0 || int(id) >= len(s.Nets) {
		return fmt.Errorf("%w: %d", ErrNetNotFound, id)
	}
	s.Nets[id].Segments = segs
	return nil
}

// Cell returns a copy of cell id.
func (s *Store) Cell(id CellID) (Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(s.Cells) {
		return Cell{}, fmt.Errorf("%w: %d", ErrCellNotFound, id)
	}
	return s.Cells[id], nil
}

// Net returns a copy of net id.
func (s *Store) Net(id NetID) (Net, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(s.Nets) {
		return Net{}, fmt.Errorf("%w: %d", ErrNetNotFound, id)
	}
	return s.Nets[id], nil
}

// Pin returns a copy of pin id.
func (s *Store) Pin(id PinID) (Pin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(s.Pins) {
		return Pin{}, fmt.Errorf("%w: %d", ErrPinNotFound, id)
	}
	return s.Pins[id], nil
}

// IsIOPin reports whether pin id belongs to the virtual IO cell (spec I4).
func (s *Store) IsIOPin(id PinID) bool {
	p, err := s.Pin(id)
	if err != nil {
		return false
	}
	return p.Cell == IOCellID
}

// PinWorldPos returns the pin's absolute world-space position, resolving
// the owning cell's current position.
func (s *Store) PinWorldPos(id PinID) (geom.Point, error) {
	p, err := s.Pin(id)
	if err != nil {
		return geom.Point{}, err
	}
	c, err := s.Cell(p.Cell)
	if err != nil {
		return geom.Point{}, err
	}
	return p.WorldPos(c), nil
}

// AddIOPin installs a top-level IO pin at an absolute perimeter coordinate,
// owned by the reserved IO cell, belonging to net. Offset is stored equal
// to the absolute position per I4.
func (s *Store) AddIOPin(name string, at geom.Point, net NetID) (PinID, error) {
	return s.AddPin(Pin{Name: name, Offset: at, Cell: IOCellID, Net: net})
}

// RowHeight returns the most frequent non-zero cell height (mode) among
// all cells, used by the legalizer to define row boundaries (spec §4.2).
func (s *Store) RowHeight() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[float64]int)
	best, bestCount := 0.0, 0
	for i, c := range s.Cells {
		if CellID(i) == IOCellID || c.Height <= 0 {
			continue
		}
		counts[c.Height]++
		if counts[c.Height] > bestCount {
			best, bestCount = c.Height, counts[c.Height]
		}
	}
	return best
}
