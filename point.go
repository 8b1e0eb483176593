package preview

import (
	"image"
	"math"
)

// Point represents a 2D point or vector in floating point pixel space.
type Point struct {
	X, Y float64
}

// Pt is a convenience function to create a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns the sum of two points (vector addition).
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the difference of two points (vector subtraction).
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Mul returns the point scaled by a scalar.
func (p Point) Mul(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Round returns the nearest integer point.
func (p Point) Round() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// scaleRect scales an integer rectangle by s, rounding each edge to the
// nearest pixel. Empty or inverted input yields an empty rectangle.
func scaleRect(r image.Rectangle, s float64) image.Rectangle {
	r = r.Canon()
	return image.Rect(
		int(math.Round(float64(r.Min.X)*s)),
		int(math.Round(float64(r.Min.Y)*s)),
		int(math.Round(float64(r.Max.X)*s)),
		int(math.Round(float64(r.Max.Y)*s)),
	)
}
