package preview

import (
	"image"
	"math"
)

// Viewport is the visible window onto one frame: a scroll offset in scaled
// pixels, a scale factor, and a fixed-size visible area over content of a
// fixed unscaled size.
//
// The scroll offset is always clamped so the visible rectangle stays within
// [0, contentSize*scale] on each axis, or pinned to 0 when the scaled content
// is smaller than the visible area. Invalid inputs are clamped, never
// rejected.
//
// Viewport is pure geometry and is not safe for concurrent use.
type Viewport struct {
	width, height    int
	scrollX, scrollY float64
	scale            float64
	content          image.Point
}

// NewViewport creates a viewport over content of the given unscaled size,
// with scale 1, zero size and zero scroll.
func NewViewport(content image.Point) *Viewport {
	return &Viewport{
		scale:   1,
		content: image.Pt(max(content.X, 0), max(content.Y, 0)),
	}
}

// ContentSize returns the unscaled content size.
func (v *Viewport) ContentSize() image.Point {
	return v.content
}

// Size returns the visible area size in pixels.
func (v *Viewport) Size() (width, height int) {
	return v.width, v.height
}

// SetSize changes the visible area size and re-clamps the scroll offset.
func (v *Viewport) SetSize(width, height int) {
	v.width = max(width, 0)
	v.height = max(height, 0)
	v.clamp()
}

// Scale returns the current scale factor. It is always positive.
func (v *Viewport) Scale() float64 {
	return v.scale
}

// Scroll returns the scroll offset in scaled pixels.
func (v *Viewport) Scroll() (x, y float64) {
	return v.scrollX, v.scrollY
}

// SetScroll moves the viewport to (x, y) in scaled pixels, clamped to the
// scrollable range.
func (v *Viewport) SetScroll(x, y float64) {
	v.scrollX = sanitize(x)
	v.scrollY = sanitize(y)
	v.clamp()
}

// ScrollBy offsets the viewport by (dx, dy) and returns the part of the
// delta that was actually applied after clamping.
func (v *Viewport) ScrollBy(dx, dy float64) (appliedX, appliedY float64) {
	oldX, oldY := v.scrollX, v.scrollY
	v.scrollX += sanitize(dx)
	v.scrollY += sanitize(dy)
	v.clamp()
	return v.scrollX - oldX, v.scrollY - oldY
}

// SetScale changes the scale factor keeping the content point at the
// viewport's top-left corner in place, so scroll is rescaled
// proportionally. A zero, negative or non-finite scale is treated as 1.
func (v *Viewport) SetScale(s float64) {
	v.ScaleAt(s, 0, 0)
}

// ScaleAt changes the scale factor keeping the content point under the
// focal point (fx, fy), given in viewport pixels, in place.
func (v *Viewport) ScaleAt(s, fx, fy float64) {
	s = validScale(s)
	ratio := s / v.scale
	v.scrollX = (v.scrollX+fx)*ratio - fx
	v.scrollY = (v.scrollY+fy)*ratio - fy
	v.scale = s
	v.clamp()
}

// ScaledContentSize returns the content size at the current scale, rounded
// to whole pixels.
func (v *Viewport) ScaledContentSize() image.Point {
	return image.Pt(
		int(math.Round(float64(v.content.X)*v.scale)),
		int(math.Round(float64(v.content.Y)*v.scale)),
	)
}

// MaxScroll returns the largest valid scroll offset on each axis.
func (v *Viewport) MaxScroll() (x, y float64) {
	x = math.Max(0, float64(v.content.X)*v.scale-float64(v.width))
	y = math.Max(0, float64(v.content.Y)*v.scale-float64(v.height))
	return x, y
}

// VisibleRect returns the rectangle of scaled content currently on screen.
func (v *Viewport) VisibleRect() image.Rectangle {
	x := int(math.Round(v.scrollX))
	y := int(math.Round(v.scrollY))
	return image.Rect(x, y, x+v.width, y+v.height)
}

// ContentToScreen returns the transform from unscaled content coordinates
// to viewport pixels.
func (v *Viewport) ContentToScreen() Matrix {
	return Translate(-v.scrollX, -v.scrollY).Multiply(Scale(v.scale, v.scale))
}

func (v *Viewport) clamp() {
	maxX, maxY := v.MaxScroll()
	v.scrollX = math.Min(math.Max(v.scrollX, 0), maxX)
	v.scrollY = math.Min(math.Max(v.scrollY, 0), maxY)
}

// validScale maps invalid scale factors to 1.
func validScale(s float64) float64 {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return 1
	}
	return s
}

func sanitize(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
