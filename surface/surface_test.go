// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/gogpu/preview"
	"github.com/gogpu/preview/compositor"
)

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

func solidTile(c color.RGBA, rect image.Rectangle) preview.TileImage {
	img := image.NewRGBA(image.Rectangle{Max: rect.Size()})
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return preview.TileImage{Rect: rect, Image: img}
}

// TestImageSurfaceLifecycle tests Update, State and Release.
func TestImageSurfaceLifecycle(t *testing.T) {
	id := preview.NewFrameID()
	s := NewImageSurface(id)

	if _, ok := s.State(); ok {
		t.Error("State() before Update reported a state")
	}
	s.Update(preview.RenderState{Frame: id, Scale: 2})
	s.Update(preview.RenderState{Frame: id, Scale: 3})
	st, ok := s.State()
	if !ok || st.Scale != 3 {
		t.Errorf("State() = %v, %v, want scale 3", st.Scale, ok)
	}
	if s.Updates() != 2 {
		t.Errorf("Updates() = %d, want 2", s.Updates())
	}

	s.Release()
	s.Release()
	if !s.IsReleased() {
		t.Error("IsReleased() = false after Release")
	}
	s.Update(preview.RenderState{Frame: id, Scale: 4})
	if _, ok := s.State(); ok || s.Updates() != 2 {
		t.Error("Update after Release was applied")
	}
}

// TestImageSurfacePaint tests tile placement through the render matrix.
func TestImageSurfacePaint(t *testing.T) {
	tests := []struct {
		name   string
		matrix preview.Matrix
		tile   image.Rectangle
		origin image.Point
		inside []image.Point
		out    []image.Point
	}{
		{
			name:   "translation",
			matrix: preview.Translate(-15, -15),
			tile:   image.Rect(20, 20, 30, 30),
			inside: []image.Point{{5, 5}, {14, 14}},
			out:    []image.Point{{4, 4}, {15, 15}},
		},
		{
			name:   "translation with origin",
			matrix: preview.Identity(),
			tile:   image.Rect(0, 0, 10, 10),
			origin: image.Pt(30, 40),
			inside: []image.Point{{30, 40}, {39, 49}},
			out:    []image.Point{{29, 40}, {40, 40}},
		},
		{
			name:   "scaled",
			matrix: preview.Scale(2, 2),
			tile:   image.Rect(0, 0, 10, 10),
			inside: []image.Point{{1, 1}, {10, 10}, {18, 18}},
			out:    []image.Point{{25, 25}},
		},
		{
			name:   "scaled and scrolled",
			matrix: preview.Translate(-10, 0).Multiply(preview.Scale(0.5, 0.5)),
			tile:   image.Rect(40, 0, 60, 20),
			inside: []image.Point{{11, 1}, {18, 8}},
			out:    []image.Point{{5, 5}, {25, 5}, {12, 15}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewImageSurface(preview.NewFrameID())
			s.Update(preview.RenderState{
				Visible: true,
				Matrix:  tt.matrix,
				Tiles:   []preview.TileImage{solidTile(red, tt.tile)},
			})
			dst := image.NewRGBA(image.Rect(0, 0, 64, 64))
			if !s.Paint(dst, tt.origin) {
				t.Fatal("Paint() = false")
			}
			for _, p := range tt.inside {
				if got := dst.RGBAAt(p.X, p.Y); got != red {
					t.Errorf("pixel %v = %v, want red", p, got)
				}
			}
			for _, p := range tt.out {
				if got := dst.RGBAAt(p.X, p.Y); got.A != 0 {
					t.Errorf("pixel %v = %v, want untouched", p, got)
				}
			}
		})
	}
}

// TestImageSurfacePaintEmpty tests painting without tiles.
func TestImageSurfacePaintEmpty(t *testing.T) {
	s := NewImageSurface(preview.NewFrameID())
	dst := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if s.Paint(dst, image.Point{}) {
		t.Error("Paint() without state = true")
	}
	s.Update(preview.RenderState{Visible: true, Matrix: preview.Identity()})
	if s.Paint(dst, image.Point{}) {
		t.Error("Paint() without tiles = true")
	}
}

// composerTree wires a root with one child surface and returns both ids.
func composerTree(t *testing.T, c *Composer, childRect image.Rectangle, childVisible bool) (root, child preview.FrameID) {
	t.Helper()
	root, child = preview.NewFrameID(), preview.NewFrameID()
	c.NewSurface(root).Update(preview.RenderState{
		Frame:    root,
		Visible:  true,
		Viewport: image.Rect(0, 0, 100, 100),
		Matrix:   preview.Identity(),
		Tiles:    []preview.TileImage{solidTile(blue, image.Rect(0, 0, 100, 100))},
		SubFrames: []preview.SubFrameLayout{
			{Frame: child, Rect: childRect, Visible: childVisible},
		},
	})
	c.NewSurface(child).Update(preview.RenderState{
		Frame:    child,
		Visible:  childVisible,
		Viewport: image.Rect(0, 0, 40, 40),
		Matrix:   preview.Identity(),
		Tiles:    []preview.TileImage{solidTile(red, image.Rect(0, 0, 40, 40))},
	})
	return root, child
}

// TestComposerNesting tests that sub-frames are painted inside their layout.
func TestComposerNesting(t *testing.T) {
	tests := []struct {
		name    string
		rect    image.Rectangle
		visible bool
		want    map[image.Point]color.RGBA
	}{
		{
			name:    "inside",
			rect:    image.Rect(20, 20, 60, 60),
			visible: true,
			want: map[image.Point]color.RGBA{
				{10, 10}: blue, {30, 30}: red, {59, 59}: red, {70, 70}: blue,
			},
		},
		{
			name:    "clipped by parent",
			rect:    image.Rect(80, 80, 120, 120),
			visible: true,
			want: map[image.Point]color.RGBA{
				{79, 79}: blue, {90, 90}: red, {99, 99}: red, {110, 110}: white,
			},
		},
		{
			name:    "hidden",
			rect:    image.Rect(20, 20, 60, 60),
			visible: false,
			want: map[image.Point]color.RGBA{
				{30, 30}: blue,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewComposer(Options{Background: white})
			root, _ := composerTree(t, c, tt.rect, tt.visible)
			img := c.Snapshot(root, 128, 128)
			for p, want := range tt.want {
				if got := img.RGBAAt(p.X, p.Y); got != want {
					t.Errorf("pixel %v = %v, want %v", p, got, want)
				}
			}
		})
	}
}

// TestComposerPlaceholder tests that missing tiles show the placeholder.
func TestComposerPlaceholder(t *testing.T) {
	c := NewComposer(Options{Placeholder: white})
	id := preview.NewFrameID()
	c.NewSurface(id).Update(preview.RenderState{Frame: id, Visible: true, Matrix: preview.Identity()})
	img := c.Snapshot(id, 16, 16)
	if got := img.RGBAAt(8, 8); got != white {
		t.Errorf("pixel = %v, want placeholder", got)
	}
}

// TestComposerDrawList tests tile placement and clipping of the draw list.
func TestComposerDrawList(t *testing.T) {
	c := NewComposer(Options{Background: white, Placeholder: blue})
	root, _ := composerTree(t, c, image.Rect(80, 80, 120, 120), true)

	bounds := image.Rect(0, 0, 128, 128)
	draws := c.DrawList(root, bounds)
	// background, root placeholder, root tile, child placeholder, child tile
	if len(draws) != 5 {
		t.Fatalf("len(DrawList) = %d, want 5", len(draws))
	}

	bg := draws[0]
	if bg.Clip != bounds || bg.ScaleX != 128 || bg.ScaleY != 128 {
		t.Errorf("background draw = %+v, want a fill over %v", bg, bounds)
	}
	if got := bg.Image.RGBAAt(0, 0); got != white {
		t.Errorf("background color = %v, want %v", got, white)
	}
	if draws[1].Image.RGBAAt(0, 0) != blue || draws[1].Clip != image.Rect(0, 0, 100, 100) {
		t.Errorf("root placeholder = %+v", draws[1])
	}

	child := draws[4]
	if child.OffsetX != 80 || child.OffsetY != 80 || child.ScaleX != 1 || child.ScaleY != 1 {
		t.Errorf("child tile at (%v,%v) scale (%v,%v), want (80,80) scale 1",
			child.OffsetX, child.OffsetY, child.ScaleX, child.ScaleY)
	}
	if want := image.Rect(80, 80, 100, 100); child.Clip != want {
		t.Errorf("child clip = %v, want %v", child.Clip, want)
	}
	if got := child.Image.RGBAAt(0, 0); got != red {
		t.Errorf("child tile color = %v, want %v", got, red)
	}

	if again := c.DrawList(root, bounds); again[0].Image != bg.Image {
		t.Error("fill images are not reused across draw lists")
	}
}

// TestComposerDrawListMatrix tests that scaled tiles keep their offset.
func TestComposerDrawListMatrix(t *testing.T) {
	c := NewComposer(Options{})
	id := preview.NewFrameID()
	m := preview.Matrix{A: 2, E: 2, C: -10, F: 4}
	c.NewSurface(id).Update(preview.RenderState{
		Frame:   id,
		Visible: true,
		Matrix:  m,
		Tiles:   []preview.TileImage{solidTile(red, image.Rect(8, 16, 24, 32))},
	})
	draws := c.DrawList(id, image.Rect(0, 0, 64, 64))
	if len(draws) != 1 {
		t.Fatalf("len(DrawList) = %d, want 1", len(draws))
	}
	d := draws[0]
	if d.OffsetX != 6 || d.OffsetY != 36 || d.ScaleX != 2 || d.ScaleY != 2 {
		t.Errorf("draw = %+v, want offset (6,36) scale 2", d)
	}
}

// TestComposerDebugOverlay tests the frame outline.
func TestComposerDebugOverlay(t *testing.T) {
	c := NewComposer(Options{Background: white, Debug: true})
	root, _ := composerTree(t, c, image.Rect(20, 20, 60, 60), true)
	img := c.Snapshot(root, 100, 100)
	if got := img.RGBAAt(50, 0); got != debugColors[0] {
		t.Errorf("root outline = %v, want %v", got, debugColors[0])
	}
	if got := img.RGBAAt(40, 59); got != debugColors[1] {
		t.Errorf("child outline = %v, want %v", got, debugColors[1])
	}
}

// TestComposerRelease tests that released surfaces are forgotten.
func TestComposerRelease(t *testing.T) {
	c := NewComposer(Options{})
	root, child := composerTree(t, c, image.Rect(0, 0, 10, 10), true)
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	s, _ := c.Surface(child)
	s.Release()
	if _, ok := c.Surface(child); ok {
		t.Error("released surface still registered")
	}
	if _, ok := c.Surface(root); !ok || c.Len() != 1 {
		t.Error("root surface lost")
	}
}

// TestComposerWithPlayer composes a live player over the memory compositor.
func TestComposerWithPlayer(t *testing.T) {
	doc := compositor.Document{Root: &compositor.FrameSpec{
		ID:         preview.NewFrameID(),
		Width:      1000,
		Height:     2000,
		Background: color.RGBA{R: 0xf0, G: 0xf0, B: 0x40, A: 0xff},
	}}
	m, err := compositor.NewMemory(doc)
	if err != nil {
		t.Fatal(err)
	}
	c := NewComposer(Options{Background: white})
	p, err := preview.Load(context.Background(), compositor.NewAsync(m, 2), 500, 400,
		preview.WithSurfaceFactory(c.NewSurface))
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for !p.RequiredTilesLoaded() {
		select {
		case <-p.Ready():
			p.RunPending()
		case <-deadline:
			t.Fatal("tiles never loaded")
		}
	}

	// Content (150, 250) at scale 0.5, clear of the ruled pattern.
	img := c.Snapshot(p.Root().ID(), 500, 400)
	if got := img.RGBAAt(75, 125); got != doc.Root.Background {
		t.Errorf("pixel = %v, want frame background %v", got, doc.Root.Background)
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Close, want 0", c.Len())
	}
}
