// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/preview"
)

// Options configures a Composer.
type Options struct {
	// Background fills the destination before frames are painted. Nil
	// leaves the destination untouched.
	Background color.Color

	// Placeholder fills the screen area of every visible frame before its
	// tiles, so missing tiles show up as a flat color. Nil disables it.
	Placeholder color.Color

	// Debug outlines every frame and labels it with its id, scale and tile
	// counts.
	Debug bool
}

// Composer creates ImageSurfaces for a player and composes the whole frame
// tree into one image.
//
// Composer is safe for concurrent use: the player updates surfaces on its
// owner goroutine while Compose may run elsewhere.
type Composer struct {
	opts Options

	// 1x1 images of the fill colors, shared by every DrawList.
	background  *image.RGBA
	placeholder *image.RGBA

	mu       sync.Mutex
	surfaces map[preview.FrameID]*ImageSurface
}

// NewComposer creates a composer.
func NewComposer(opts Options) *Composer {
	return &Composer{
		opts:        opts,
		background:  solid(opts.Background),
		placeholder: solid(opts.Placeholder),
		surfaces:    make(map[preview.FrameID]*ImageSurface),
	}
}

func solid(col color.Color) *image.RGBA {
	if col == nil {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, col)
	return img
}

// Options returns the options the composer was created with.
func (c *Composer) Options() Options {
	return c.opts
}

// NewSurface is a preview.SurfaceFactory. Pass it to
// preview.WithSurfaceFactory.
func (c *Composer) NewSurface(id preview.FrameID) preview.Surface {
	s := NewImageSurface(id)
	s.onRelease = c.forget
	c.mu.Lock()
	c.surfaces[id] = s
	c.mu.Unlock()
	return s
}

// Surface returns the surface of frame id.
func (c *Composer) Surface(id preview.FrameID) (*ImageSurface, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.surfaces[id]
	return s, ok
}

// Len returns the number of live surfaces.
func (c *Composer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.surfaces)
}

func (c *Composer) forget(id preview.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.surfaces, id)
}

// Compose paints the frame tree rooted at root into dst. The root frame's
// screen origin is dst.Bounds().Min.
func (c *Composer) Compose(dst *image.RGBA, root preview.FrameID) {
	if c.opts.Background != nil {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(c.opts.Background), image.Point{}, draw.Src)
	}
	c.composeAt(dst, root, dst.Bounds(), dst.Bounds(), 0)
}

// Snapshot composes the tree into a new width x height image.
func (c *Composer) Snapshot(root preview.FrameID, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1)))
	c.Compose(dst, root)
	return dst
}

// composeAt paints frame id with its screen origin at frameRect.Min,
// clipped to visible and to the frame's viewport size, then recurses into its visible sub-frames. Sub-frame
// layouts are unclipped, so a partly hidden child keeps its layout origin.
func (c *Composer) composeAt(dst *image.RGBA, id preview.FrameID, frameRect, visible image.Rectangle, depth int) {
	s, ok := c.Surface(id)
	if !ok {
		return
	}
	st, ok := s.State()
	if !ok || !st.Visible {
		return
	}
	if !st.Viewport.Empty() {
		visible = visible.Intersect(image.Rectangle{Min: frameRect.Min, Max: frameRect.Min.Add(st.Viewport.Size())})
	}
	clip, ok := dst.SubImage(visible).(*image.RGBA)
	if !ok || clip.Bounds().Empty() {
		return
	}
	if c.opts.Placeholder != nil {
		draw.Draw(clip, clip.Bounds(), image.NewUniform(c.opts.Placeholder), image.Point{}, draw.Src)
	}
	s.Paint(clip, frameRect.Min)

	for _, sf := range st.SubFrames {
		if !sf.Visible {
			continue
		}
		r := sf.Rect.Add(frameRect.Min)
		if v := r.Intersect(visible); !v.Empty() {
			c.composeAt(dst, sf.Frame, r, v, depth+1)
		}
	}

	if c.opts.Debug {
		drawDebug(clip, frameRect.Min, st, depth)
	}
}

// TileDraw places one image on screen: image pixel p lands at
// p*Scale + Offset, clipped to Clip. Fills are 1x1 images scaled over their
// area.
type TileDraw struct {
	Image            *image.RGBA
	ScaleX, ScaleY   float64
	OffsetX, OffsetY float64
	Clip             image.Rectangle
}

// DrawList returns what Compose would paint into a destination with the
// given bounds, in paint order: the background, then for each frame its
// placeholder, its tiles and its sub-frames. Debug overlays are not
// included.
func (c *Composer) DrawList(root preview.FrameID, bounds image.Rectangle) []TileDraw {
	var draws []TileDraw
	if c.background != nil {
		draws = append(draws, fillDraw(c.background, bounds))
	}
	return c.collect(draws, root, bounds, bounds)
}

func fillDraw(img *image.RGBA, r image.Rectangle) TileDraw {
	return TileDraw{
		Image:   img,
		ScaleX:  float64(r.Dx()),
		ScaleY:  float64(r.Dy()),
		OffsetX: float64(r.Min.X),
		OffsetY: float64(r.Min.Y),
		Clip:    r,
	}
}

// collect mirrors composeAt.
func (c *Composer) collect(draws []TileDraw, id preview.FrameID, frameRect, visible image.Rectangle) []TileDraw {
	s, ok := c.Surface(id)
	if !ok {
		return draws
	}
	st, ok := s.State()
	if !ok || !st.Visible {
		return draws
	}
	if !st.Viewport.Empty() {
		visible = visible.Intersect(image.Rectangle{Min: frameRect.Min, Max: frameRect.Min.Add(st.Viewport.Size())})
	}
	if visible.Empty() {
		return draws
	}
	if c.placeholder != nil {
		draws = append(draws, fillDraw(c.placeholder, visible))
	}

	m := st.Matrix
	for _, t := range st.Tiles {
		if t.Image == nil {
			continue
		}
		draws = append(draws, TileDraw{
			Image:   t.Image,
			ScaleX:  m.A,
			ScaleY:  m.E,
			OffsetX: m.A*float64(t.Rect.Min.X) + m.C + float64(frameRect.Min.X),
			OffsetY: m.E*float64(t.Rect.Min.Y) + m.F + float64(frameRect.Min.Y),
			Clip:    visible,
		})
	}

	for _, sf := range st.SubFrames {
		if !sf.Visible {
			continue
		}
		r := sf.Rect.Add(frameRect.Min)
		if v := r.Intersect(visible); !v.Empty() {
			draws = c.collect(draws, sf.Frame, r, v)
		}
	}
	return draws
}

var debugColors = []color.RGBA{
	{R: 0xe5, G: 0x39, B: 0x35, A: 0xff},
	{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff},
	{R: 0x43, G: 0xa0, B: 0x47, A: 0xff},
	{R: 0xfb, G: 0x8c, B: 0x00, A: 0xff},
}

// drawDebug outlines the clipped frame area and labels it at origin.
func drawDebug(dst *image.RGBA, origin image.Point, st preview.RenderState, depth int) {
	col := image.NewUniform(debugColors[depth%len(debugColors)])
	b := dst.Bounds()
	for _, edge := range []image.Rectangle{
		{Min: b.Min, Max: image.Pt(b.Max.X, b.Min.Y+1)},
		{Min: image.Pt(b.Min.X, b.Max.Y-1), Max: b.Max},
		{Min: b.Min, Max: image.Pt(b.Min.X+1, b.Max.Y)},
		{Min: image.Pt(b.Max.X-1, b.Min.Y), Max: b.Max},
	} {
		draw.Draw(dst, edge, col, image.Point{}, draw.Src)
	}

	label := fmt.Sprintf("%s x%.2f %d/%d g%d",
		st.Frame.Short(), st.Scale, st.LoadedTiles, st.RequiredTiles, st.Generation)
	d := font.Drawer{
		Dst:  dst,
		Src:  col,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(origin.X+3, origin.Y+basicfont.Face7x13.Ascent+2),
	}
	d.DrawString(label)
}
