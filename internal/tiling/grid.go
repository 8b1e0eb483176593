// Package tiling provides the tile grid geometry used by frame bitmap states.
//
// A Grid divides a frame's scaled content into cells of a fixed size. Edge
// cells may be smaller when the content is not evenly divisible by the cell
// size. The grid holds no pixel data: it only maps between pixel rectangles
// and cell coordinates.
package tiling

import (
	"image"
	"math"
)

// Coord addresses one cell of a grid.
type Coord struct {
	Row, Col int
}

// Grid is an immutable tile layout over a scaled content area.
type Grid struct {
	tileW, tileH int
	rows, cols   int
	width        int
	height       int
}

// HalfViewport returns the tile size used for a viewport of the given size:
// half the viewport on each axis, rounded, and never smaller than one pixel.
func HalfViewport(viewW, viewH int) (tileW, tileH int) {
	tileW = int(math.Round(float64(viewW) / 2))
	tileH = int(math.Round(float64(viewH) / 2))
	return max(tileW, 1), max(tileH, 1)
}

// NewGrid creates a grid covering width x height pixels with cells of
// tileW x tileH. Non-positive tile sizes are raised to one pixel; a
// non-positive content size yields an empty grid.
func NewGrid(width, height, tileW, tileH int) Grid {
	tileW = max(tileW, 1)
	tileH = max(tileH, 1)
	if width <= 0 || height <= 0 {
		return Grid{tileW: tileW, tileH: tileH}
	}
	return Grid{
		tileW:  tileW,
		tileH:  tileH,
		cols:   (width + tileW - 1) / tileW,
		rows:   (height + tileH - 1) / tileH,
		width:  width,
		height: height,
	}
}

// Rows returns the number of cell rows.
func (g Grid) Rows() int { return g.rows }

// Cols returns the number of cell columns.
func (g Grid) Cols() int { return g.cols }

// Len returns the total number of cells.
func (g Grid) Len() int { return g.rows * g.cols }

// TileSize returns the nominal cell size.
func (g Grid) TileSize() (w, h int) { return g.tileW, g.tileH }

// Bounds returns the area covered by the grid.
func (g Grid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.width, g.height)
}

// Index returns the row-major index of c, or -1 if c is outside the grid.
func (g Grid) Index(c Coord) int {
	if c.Row < 0 || c.Row >= g.rows || c.Col < 0 || c.Col >= g.cols {
		return -1
	}
	return c.Row*g.cols + c.Col
}

// CellBounds returns the pixel rectangle of cell c, clipped to the content
// area. Edge cells may be smaller than the nominal tile size.
func (g Grid) CellBounds(c Coord) image.Rectangle {
	r := image.Rect(c.Col*g.tileW, c.Row*g.tileH, (c.Col+1)*g.tileW, (c.Row+1)*g.tileH)
	return r.Intersect(g.Bounds())
}

// CellAt returns the cell containing pixel p.
func (g Grid) CellAt(p image.Point) (Coord, bool) {
	if !p.In(g.Bounds()) {
		return Coord{}, false
	}
	return Coord{Row: p.Y / g.tileH, Col: p.X / g.tileW}, true
}

// CellsInRect returns the span of cells intersecting r. The result is empty
// when r lies entirely outside the content area.
func (g Grid) CellsInRect(r image.Rectangle) Span {
	r = r.Intersect(g.Bounds())
	if r.Empty() {
		return Span{}
	}
	return Span{
		Row0: r.Min.Y / g.tileH,
		Col0: r.Min.X / g.tileW,
		Row1: (r.Max.Y-1)/g.tileH + 1,
		Col1: (r.Max.X-1)/g.tileW + 1,
	}
}

// Expand grows s by margin cells on every side, clipped to the grid.
func (g Grid) Expand(s Span, margin int) Span {
	if s.Empty() || margin <= 0 {
		return s
	}
	return Span{
		Row0: max(s.Row0-margin, 0),
		Col0: max(s.Col0-margin, 0),
		Row1: min(s.Row1+margin, g.rows),
		Col1: min(s.Col1+margin, g.cols),
	}
}

// Span is a half-open block of cells: rows [Row0, Row1), columns [Col0, Col1).
type Span struct {
	Row0, Col0 int
	Row1, Col1 int
}

// Empty reports whether the span contains no cells.
func (s Span) Empty() bool {
	return s.Row0 >= s.Row1 || s.Col0 >= s.Col1
}

// Len returns the number of cells in the span.
func (s Span) Len() int {
	if s.Empty() {
		return 0
	}
	return (s.Row1 - s.Row0) * (s.Col1 - s.Col0)
}

// Contains reports whether c lies within the span.
func (s Span) Contains(c Coord) bool {
	return c.Row >= s.Row0 && c.Row < s.Row1 && c.Col >= s.Col0 && c.Col < s.Col1
}

// Center returns the cell at the middle of the span.
func (s Span) Center() Coord {
	return Coord{Row: (s.Row0 + s.Row1 - 1) / 2, Col: (s.Col0 + s.Col1 - 1) / 2}
}

// ForEach calls fn for each cell of the span in row-major order.
func (s Span) ForEach(fn func(c Coord)) {
	if s.Empty() {
		return
	}
	for row := s.Row0; row < s.Row1; row++ {
		for col := s.Col0; col < s.Col1; col++ {
			fn(Coord{Row: row, Col: col})
		}
	}
}
