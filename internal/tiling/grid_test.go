package tiling

import (
	"image"
	"testing"
)

func TestHalfViewport(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"even", 500, 800, 250, 400},
		{"odd rounds half up", 501, 801, 251, 401},
		{"one pixel", 1, 1, 1, 1},
		{"zero", 0, 0, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := HalfViewport(tt.w, tt.h)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("HalfViewport(%d, %d) = (%d, %d), want (%d, %d)",
					tt.w, tt.h, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestNewGrid(t *testing.T) {
	g := NewGrid(1000, 2000, 250, 400)
	if g.Cols() != 4 || g.Rows() != 5 {
		t.Errorf("NewGrid(1000, 2000, 250, 400) = %dx%d cells, want 4x5", g.Cols(), g.Rows())
	}
	if g.Len() != 20 {
		t.Errorf("Len() = %d, want 20", g.Len())
	}

	// Edge cells are clipped.
	g = NewGrid(130, 70, 64, 64)
	if g.Cols() != 3 || g.Rows() != 2 {
		t.Fatalf("NewGrid(130, 70) = %dx%d cells, want 3x2", g.Cols(), g.Rows())
	}
	if got, want := g.CellBounds(Coord{Row: 1, Col: 2}), image.Rect(128, 64, 130, 70); got != want {
		t.Errorf("CellBounds(1,2) = %v, want %v", got, want)
	}
}

func TestNewGridEmpty(t *testing.T) {
	for _, size := range []image.Point{{0, 100}, {100, 0}, {-5, -5}} {
		g := NewGrid(size.X, size.Y, 64, 64)
		if g.Len() != 0 {
			t.Errorf("NewGrid(%v).Len() = %d, want 0", size, g.Len())
		}
		if s := g.CellsInRect(image.Rect(0, 0, 50, 50)); !s.Empty() {
			t.Errorf("CellsInRect on empty grid = %+v, want empty", s)
		}
	}
}

func TestCellsInRect(t *testing.T) {
	g := NewGrid(1000, 2000, 250, 400)

	tests := []struct {
		name string
		r    image.Rectangle
		want Span
	}{
		{"viewport at origin", image.Rect(0, 0, 500, 800), Span{0, 0, 2, 2}},
		{"straddles cells", image.Rect(100, 300, 600, 1100), Span{0, 0, 3, 3}},
		{"exact cell", image.Rect(250, 400, 500, 800), Span{1, 1, 2, 2}},
		{"clipped to content", image.Rect(900, 1900, 1400, 2700), Span{4, 3, 5, 4}},
		{"outside", image.Rect(1200, 0, 1400, 100), Span{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.CellsInRect(tt.r); got != tt.want {
				t.Errorf("CellsInRect(%v) = %+v, want %+v", tt.r, got, tt.want)
			}
		})
	}
}

func TestExpand(t *testing.T) {
	g := NewGrid(1000, 2000, 250, 400)
	s := Span{Row0: 0, Col0: 1, Row1: 2, Col1: 3}

	got := g.Expand(s, 1)
	want := Span{Row0: 0, Col0: 0, Row1: 3, Col1: 4}
	if got != want {
		t.Errorf("Expand(%+v, 1) = %+v, want %+v", s, got, want)
	}
	if got := g.Expand(s, 0); got != s {
		t.Errorf("Expand(%+v, 0) = %+v, want unchanged", s, got)
	}
	if got := g.Expand(Span{}, 2); !got.Empty() {
		t.Errorf("Expand(empty) = %+v, want empty", got)
	}
}

func TestSpanForEach(t *testing.T) {
	s := Span{Row0: 1, Col0: 2, Row1: 3, Col1: 4}
	var got []Coord
	s.ForEach(func(c Coord) { got = append(got, c) })

	want := []Coord{{1, 2}, {1, 3}, {2, 2}, {2, 3}}
	if len(got) != len(want) {
		t.Fatalf("ForEach visited %d cells, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ForEach[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if s.Len() != 4 {
		t.Errorf("Len() = %d, want 4", s.Len())
	}
}

func TestSpanCenter(t *testing.T) {
	tests := []struct {
		s    Span
		want Coord
	}{
		{Span{0, 0, 1, 1}, Coord{0, 0}},
		{Span{0, 0, 2, 2}, Coord{0, 0}},
		{Span{0, 0, 3, 3}, Coord{1, 1}},
		{Span{2, 4, 5, 6}, Coord{3, 4}},
	}
	for _, tt := range tests {
		if got := tt.s.Center(); got != tt.want {
			t.Errorf("%+v.Center() = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestIndexAndCellAt(t *testing.T) {
	g := NewGrid(300, 200, 100, 100)
	if got := g.Index(Coord{Row: 1, Col: 2}); got != 5 {
		t.Errorf("Index(1,2) = %d, want 5", got)
	}
	if got := g.Index(Coord{Row: 2, Col: 0}); got != -1 {
		t.Errorf("Index(2,0) = %d, want -1", got)
	}
	c, ok := g.CellAt(image.Pt(250, 150))
	if !ok || c != (Coord{Row: 1, Col: 2}) {
		t.Errorf("CellAt(250,150) = %v, %v; want {1 2}, true", c, ok)
	}
	if _, ok := g.CellAt(image.Pt(300, 0)); ok {
		t.Error("CellAt(300,0) should be outside the grid")
	}
}
