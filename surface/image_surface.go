// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"image"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/preview"
)

// ImageSurface is a CPU surface for one frame.
//
// It keeps the last RenderState pushed by the player and paints it on
// demand. Update is called on the player's owner goroutine; Paint and State
// may be called from any goroutine.
//
// Example:
//
//	s := surface.NewImageSurface(id)
//	s.Update(state)
//	dst := image.NewRGBA(state.Viewport.Sub(state.Viewport.Min))
//	s.Paint(dst, dst.Bounds().Min)
type ImageSurface struct {
	mu       sync.Mutex
	id       preview.FrameID
	state    preview.RenderState
	hasState bool
	updates  int
	released bool

	// onRelease is set by the owning Composer.
	onRelease func(preview.FrameID)
}

// NewImageSurface creates a surface for frame id.
func NewImageSurface(id preview.FrameID) *ImageSurface {
	return &ImageSurface{id: id}
}

// ID returns the frame the surface shows.
func (s *ImageSurface) ID() preview.FrameID {
	return s.id
}

// Update implements preview.Surface. Updates after Release are ignored.
func (s *ImageSurface) Update(state preview.RenderState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.state = state
	s.hasState = true
	s.updates++
}

// State returns the last render state and whether one was received.
func (s *ImageSurface) State() (preview.RenderState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.hasState
}

// Updates returns how many render states the surface received.
func (s *ImageSurface) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// Release drops the render state and its tile references. Called by the
// player when the frame is destroyed.
func (s *ImageSurface) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.state = preview.RenderState{}
	s.hasState = false
	fn := s.onRelease
	s.mu.Unlock()

	if fn != nil {
		fn(s.id)
	}
}

// IsReleased reports whether Release was called.
func (s *ImageSurface) IsReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Paint draws the loaded tiles of the frame into dst, with the frame's
// screen origin at origin. Drawing is clipped to dst's bounds. It reports
// whether anything was drawn.
func (s *ImageSurface) Paint(dst draw.Image, origin image.Point) bool {
	st, ok := s.State()
	if !ok || len(st.Tiles) == 0 {
		return false
	}
	for _, t := range st.Tiles {
		paintTile(dst, origin, st.Matrix, t)
	}
	return true
}

// paintTile maps tile pixel (u, v) to dst through
// origin + m * (t.Rect.Min + (u, v)).
func paintTile(dst draw.Image, origin image.Point, m preview.Matrix, t preview.TileImage) {
	if t.Image == nil {
		return
	}
	src := t.Image
	sb := src.Bounds()

	tx := m.A*float64(t.Rect.Min.X-sb.Min.X) + m.C + float64(origin.X)
	ty := m.E*float64(t.Rect.Min.Y-sb.Min.Y) + m.F + float64(origin.Y)

	if m.IsTranslation() && isIntegral(tx) && isIntegral(ty) {
		at := image.Pt(int(tx), int(ty))
		r := image.Rectangle{Min: at.Add(sb.Min), Max: at.Add(sb.Max)}
		draw.Draw(dst, r, src, sb.Min, draw.Over)
		return
	}

	s2d := f64.Aff3{
		m.A, m.B, tx,
		m.D, m.E, ty,
	}
	draw.ApproxBiLinear.Transform(dst, s2d, src, sb, draw.Over, nil)
}

func isIntegral(v float64) bool {
	return math.Abs(v-math.Round(v)) < 1e-9
}
