// Package geom defines the 2-D and 3-D coordinate primitives shared by the
// placer, legalizer and router: world-space points and rectangles, and the
// router's discrete (x, y, layer) grid coordinate.
//
// All types here are plain values; none hold locks or allocate. Distances
// and areas are expressed in the netlist's native world units (microns in
// practice, but the package never assumes a unit).
package geom

import "math"

// Point is a world-space coordinate in the X/Y plane.
type Point struct {
	X, Y float64
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Scale returns p scaled by s.
func (p Point) Scale(s float64) Point { return Point{p.X * s, p.Y * s} }

// ManhattanDist returns |p.X-q.X| + |p.Y-q.Y|.
func ManhattanDist(p, q Point) float64 {
	return math.Abs(p.X-q.X) + math.Abs(p.Y-q.Y)
}

// Rect is an axis-aligned rectangle in world space, Min inclusive, Max
// exclusive along neither axis (both corners are part of the rectangle).
type Rect struct {
	Min, Max Point
}

// Width returns the rectangle's extent along X.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the rectangle's extent along Y.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Area returns Width*Height.
func (r Rect) Area() float64 { return r.Width() * r.Height() }

// Center returns the rectangle's geometric centre.
func (r Rect) Center() Point {
	return Point{(r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2}
}

// Contains reports whether p lies within r, inclusive of both edges.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Overlaps reports whether r and o share any positive area, modulo tol on
// each axis (an overlap of tol or less on either axis does not count,
// matching the legalizer's 5nm overlap tolerance in spec I3).
func (r Rect) Overlaps(o Rect, tol float64) bool {
	return r.Min.X < o.Max.X-tol && o.Min.X < r.Max.X-tol &&
		r.Min.Y < o.Max.Y-tol && o.Min.Y < r.Max.Y-tol
}

// ClampPoint clamps p so that a size-sized rectangle anchored at p's
// lower-left corner stays inside r.
func (r Rect) ClampPoint(p Point, size Point) Point {
	return Point{
		X: clamp(p.X, r.Min.X, r.Max.X-size.X),
		Y: clamp(p.Y, r.Min.Y, r.Max.Y-size.Y),
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		// degenerate (cell bigger than die on this axis): pin to lo.
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Grid3 is a discrete router-grid coordinate: X and Y index the fine (or
// coarse, in the global router) 2-D plane, Z indexes the metal layer.
type Grid3 struct {
	X, Y, Z int
}

// ManhattanDist3 returns the weighted Manhattan distance between a and b,
// with the Z (layer) component scaled by zWeight (spec §4.3 uses a 5x
// multiplier on layer distance). The router/grid A* kernel computes its
// heuristic with its own helper and does not call this function.
func ManhattanDist3(a, b Grid3, zWeight float64) float64 {
	dx := absInt(a.X - b.X)
	dy := absInt(a.Y - b.Y)
	dz := absInt(a.Z - b.Z)
	return float64(dx+dy) + zWeight*float64(dz)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// orientation classifies the turn from a->b->c: +1 counter-clockwise, -1
// clockwise, 0 collinear within tol. Used by SegmentsIntersect's
// classical orientation test.
func orientation(a, b, c Point, tol float64) int {
	val := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	switch {
	case val > tol:
		return 1
	case val < -tol:
		return -1
	default:
		return 0
	}
}

func onSegment(a, b, p Point, tol float64) bool {
	return p.X >= math.Min(a.X, b.X)-tol && p.X <= math.Max(a.X, b.X)+tol &&
		p.Y >= math.Min(a.Y, b.Y)-tol && p.Y <= math.Max(a.Y, b.Y)+tol
}

// SegmentsIntersect reports whether segment a1-a2 intersects segment
// b1-b2, using the classical general/special-case orientation test with
// tol slack on collinearity and containment (the verifier's 5nm tolerance,
// spec §4.6). Degenerate (zero-length) segments are handled the same way:
// a point "intersects" another segment when it lies on it within tol.
func SegmentsIntersect(a1, a2, b1, b2 Point, tol float64) bool {
	o1 := orientation(a1, a2, b1, tol)
	o2 := orientation(a1, a2, b2, tol)
	o3 := orientation(b1, b2, a1, tol)
	o4 := orientation(b1, b2, a2, tol)

	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(a1, a2, b1, tol) {
		return true
	}
	if o2 == 0 && onSegment(a1, a2, b2, tol) {
		return true
	}
	if o3 == 0 && onSegment(b1, b2, a1, tol) {
		return true
	}
	if o4 == 0 && onSegment(b1, b2, a2, tol) {
		return true
	}
	return false
}
