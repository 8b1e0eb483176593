package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/preview"
	"github.com/gogpu/preview/internal/lru"
)

// Document describes a synthetic captured page.
type Document struct {
	Root *FrameSpec
}

// FrameSpec describes one frame of a Document.
type FrameSpec struct {
	ID     preview.FrameID
	Width  int
	Height int
	// Scroll is the initial scroll offset in content pixels.
	Scroll image.Point

	Background color.RGBA
	// Picture, when set, is stretched over the frame's content. Otherwise
	// a ruled pattern with row labels is generated.
	Picture image.Image

	Links     []Link
	SubFrames []SubFrameSpec
}

// Link is a clickable area in content coordinates.
type Link struct {
	Rect image.Rectangle
	URL  *url.URL
}

// SubFrameSpec places a child frame inside its parent.
type SubFrameSpec struct {
	Clip  image.Rectangle
	Frame *FrameSpec
}

// MemoryOption configures a Memory renderer.
type MemoryOption func(*Memory)

// WithRenderDelay makes every Render wait d before drawing, simulating
// decode latency. A cancelled context interrupts the wait.
func WithRenderDelay(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.delay = d
	}
}

// WithPictureBudget bounds the memory, in bytes, used to keep rasterized
// frame pictures between renders.
func WithPictureBudget(bytes int64) MemoryOption {
	return func(m *Memory) {
		m.pictures = lru.New[preview.FrameID, *image.RGBA](bytes)
	}
}

// Memory renders tiles of an in-memory Document.
//
// Each frame is rasterized once at scale 1 and kept in a cost-bounded LRU
// cache; tiles are resampled from it with bilinear filtering.
//
// Thread safety: Memory is safe for concurrent use.
type Memory struct {
	root     *preview.FrameNode
	frames   map[preview.FrameID]*FrameSpec
	pictures *lru.Cache[preview.FrameID, *image.RGBA]
	delay    time.Duration
}

// NewMemory validates doc and returns a renderer for it. Every frame must
// have a unique non-zero ID and appear only once in the tree.
func NewMemory(doc Document, opts ...MemoryOption) (*Memory, error) {
	if doc.Root == nil {
		return nil, fmt.Errorf("compositor: %w", &preview.StatusError{Status: preview.StatusInvalidRootFrame})
	}
	m := &Memory{
		frames:   make(map[preview.FrameID]*FrameSpec),
		pictures: lru.New[preview.FrameID, *image.RGBA](256 << 20),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.pictures.OnEvict(func(id preview.FrameID, _ *image.RGBA) {
		preview.Logger().Debug("compositor: picture evicted", "frame", id.Short())
	})

	var build func(spec *FrameSpec) (*preview.FrameNode, error)
	build = func(spec *FrameSpec) (*preview.FrameNode, error) {
		if spec == nil || spec.ID.IsZero() {
			return nil, fmt.Errorf("compositor: frame without id: %w",
				&preview.StatusError{Status: preview.StatusDeserializationError})
		}
		if _, dup := m.frames[spec.ID]; dup {
			return nil, fmt.Errorf("compositor: frame %s listed twice: %w", spec.ID.Short(),
				&preview.StatusError{Status: preview.StatusDeserializationError})
		}
		m.frames[spec.ID] = spec
		node := &preview.FrameNode{
			ID:            spec.ID,
			ContentSize:   image.Pt(spec.Width, spec.Height),
			InitialScroll: spec.Scroll,
		}
		for _, sf := range spec.SubFrames {
			child, err := build(sf.Frame)
			if err != nil {
				return nil, err
			}
			node.SubFrames = append(node.SubFrames, preview.SubFrame{Clip: sf.Clip, Frame: child})
		}
		return node, nil
	}
	root, err := build(doc.Root)
	if err != nil {
		return nil, err
	}
	m.root = root
	return m, nil
}

// Hierarchy returns the flattened frame tree of the document.
func (m *Memory) Hierarchy(ctx context.Context) (*preview.RawHierarchy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return preview.Flatten(m.root), nil
}

// Render draws the tile req.Clip of a frame at req.Scale.
func (m *Memory) Render(ctx context.Context, req preview.BitmapRequest) (*image.RGBA, error) {
	spec, ok := m.frames[req.Frame]
	if !ok {
		return nil, fmt.Errorf("compositor: unknown frame %s: %w", req.Frame.Short(),
			&preview.StatusError{Status: preview.StatusInvalidRequest})
	}
	if req.Clip.Empty() || req.Scale <= 0 {
		return nil, fmt.Errorf("compositor: empty tile %v at scale %v: %w", req.Clip, req.Scale,
			&preview.StatusError{Status: preview.StatusInvalidRequest})
	}
	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	pic, err := m.pictures.GetOrCreate(spec.ID, func() (*image.RGBA, int64, error) {
		p := rasterize(spec)
		return p, int64(len(p.Pix)), nil
	})
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, req.Clip.Dx(), req.Clip.Dy()))
	s := req.Scale
	s2d := f64.Aff3{
		s, 0, -float64(req.Clip.Min.X),
		0, s, -float64(req.Clip.Min.Y),
	}
	draw.ApproxBiLinear.Transform(dst, s2d, pic, pic.Bounds(), draw.Src, nil)
	return dst, nil
}

// OnClick returns the topmost link of frame containing (x, y).
func (m *Memory) OnClick(frame preview.FrameID, x, y int) *url.URL {
	spec, ok := m.frames[frame]
	if !ok {
		return nil
	}
	p := image.Pt(x, y)
	for i := len(spec.Links) - 1; i >= 0; i-- {
		l := spec.Links[i]
		if p.In(l.Rect) && l.URL != nil {
			u := *l.URL
			return &u
		}
	}
	return nil
}

// Close drops the cached pictures.
func (m *Memory) Close() error {
	m.pictures.Clear()
	return nil
}

// PictureStats returns statistics of the picture cache.
func (m *Memory) PictureStats() lru.Stats {
	return m.pictures.Stats()
}

const ruleSpacing = 100

// rasterize draws a frame at scale 1.
func rasterize(spec *FrameSpec) *image.RGBA {
	w, h := max(spec.Width, 1), max(spec.Height, 1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := spec.Background
	if bg.A == 0 {
		bg = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	if spec.Picture != nil {
		draw.ApproxBiLinear.Scale(img, img.Bounds(), spec.Picture, spec.Picture.Bounds(), draw.Over, nil)
	} else {
		drawRules(img, bg)
	}

	linkColor := image.NewUniform(color.RGBA{R: 0x1a, G: 0x73, B: 0xe8, A: 0x60})
	for _, l := range spec.Links {
		draw.Draw(img, l.Rect.Intersect(img.Bounds()), linkColor, image.Point{}, draw.Over)
	}
	return img
}

// drawRules draws a horizontal rule with a y label every ruleSpacing
// pixels and alternating column bands, so scrolling and scaling are easy
// to follow.
func drawRules(img *image.RGBA, bg color.RGBA) {
	b := img.Bounds()
	band := image.NewUniform(shade(bg, 0x10))
	for x := 0; x < b.Dx(); x += 2 * ruleSpacing {
		draw.Draw(img, image.Rect(x, 0, x+ruleSpacing, b.Dy()).Intersect(b), band, image.Point{}, draw.Src)
	}

	rule := image.NewUniform(shade(bg, 0x60))
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(shade(bg, 0xa0)),
		Face: basicfont.Face7x13,
	}
	for y := 0; y < b.Dy(); y += ruleSpacing {
		draw.Draw(img, image.Rect(0, y, b.Dx(), y+2).Intersect(b), rule, image.Point{}, draw.Src)
		d.Dot = fixed.P(4, y+15)
		d.DrawString("y=" + strconv.Itoa(y))
	}
}

// shade darkens c by d on each channel.
func shade(c color.RGBA, d uint8) color.RGBA {
	sub := func(v uint8) uint8 {
		if v < d {
			return 0
		}
		return v - d
	}
	return color.RGBA{R: sub(c.R), G: sub(c.G), B: sub(c.B), A: 0xff}
}
