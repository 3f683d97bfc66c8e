// Package geometry provides pixel-space bounding box primitives used by the
// detection and tracking pipeline. All functions are pure and safe for
// degenerate (zero-extent) boxes.
package geometry

import "math"

// Box is an axis-aligned bounding box in pixel coordinates.
// (X1, Y1) is the top-left corner and (X2, Y2) the bottom-right corner.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// NewBox returns a Box from corner coordinates.
func NewBox(x1, y1, x2, y2 float64) Box {
	return Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area in square pixels, or 0 for degenerate boxes.
func (b Box) Area() float64 {
	w := b.Width()
	h := b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Empty reports whether the box has zero or negative extent.
func (b Box) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Center returns the box centroid.
func (b Box) Center() (x, y float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// AspectRatio returns width/height. The divisor is floored at 1 pixel so
// degenerate boxes do not divide by zero.
func (b Box) AspectRatio() float64 {
	h := b.Height()
	if h < 1 {
		h = 1
	}
	return b.Width() / h
}

// Clamp constrains the box to [0, width] x [0, height].
func (b Box) Clamp(width, height float64) Box {
	return Box{
		X1: math.Max(0, math.Min(b.X1, width)),
		Y1: math.Max(0, math.Min(b.Y1, height)),
		X2: math.Max(0, math.Min(b.X2, width)),
		Y2: math.Max(0, math.Min(b.Y2, height)),
	}
}

// Intersect returns the overlapping region of two boxes. The result may be
// empty; callers should check Empty or Area.
func Intersect(a, b Box) Box {
	return Box{
		X1: math.Max(a.X1, b.X1),
		Y1: math.Max(a.Y1, b.Y1),
		X2: math.Min(a.X2, b.X2),
		Y2: math.Min(a.Y2, b.Y2),
	}
}

// IoU returns the intersection-over-union of two boxes in [0, 1].
// It returns 0 when the boxes do not overlap or when either box is
// degenerate, so there is never a division by zero.
func IoU(a, b Box) float64 {
	inter := Intersect(a, b).Area()
	if inter <= 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// CenterDistance returns the Euclidean distance between box centroids.
func CenterDistance(a, b Box) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	dx := ax - bx
	dy := ay - by
	return math.Sqrt(dx*dx + dy*dy)
}

// Contains reports whether box a fully contains box b.
func Contains(a, b Box) bool {
	return a.X1 <= b.X1 && a.Y1 <= b.Y1 && a.X2 >= b.X2 && a.Y2 >= b.Y2
}
