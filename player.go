package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"net/url"
	"time"

	"github.com/gogpu/preview/sequence"
)

// Player presents a captured frame tree as an interactively scrollable and
// zoomable image.
//
// A Player and everything it owns are confined to one owner goroutine: all
// methods must be called there, and tile completions are marshalled back to
// it through the configured Executor. Without WithExecutor, completions are
// queued internally and applied when the caller runs RunPending.
type Player struct {
	opts       options
	compositor Compositor
	hierarchy  *Hierarchy
	exec       Executor
	queue      *sequence.Queue
	cancel     context.CancelFunc

	root   *FrameCoordinator
	frames map[FrameID]*FrameCoordinator
	closed bool
}

// Load asks src for the captured frame tree and builds a player showing it
// in a width x height viewport. Any failure to obtain or parse the tree is
// reported wrapped in ErrUnrenderable; the caller is expected to fall back
// to the live page.
func Load(ctx context.Context, src Source, width, height int, opts ...Option) (*Player, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrUnrenderable)
	}
	raw, err := src.Hierarchy(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnrenderable, err)
	}
	h, err := ParseHierarchy(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnrenderable, err)
	}
	return NewPlayer(src, h, width, height, opts...)
}

// NewPlayer builds a player for the frame tree h, rendered by c, in a
// width x height viewport. The root frame is scaled to fit its content
// width and tiles for the initial viewport are requested immediately.
func NewPlayer(c Compositor, h *Hierarchy, width, height int, opts ...Option) (*Player, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil compositor", ErrUnrenderable)
	}
	if h == nil || h.Root == nil {
		return nil, fmt.Errorf("%w: no root frame", ErrUnrenderable)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := &Player{
		compositor: c,
		hierarchy:  h,
		exec:       o.executor,
		frames:     make(map[FrameID]*FrameCoordinator, h.Len()),
	}
	if p.exec == nil {
		p.queue = sequence.NewQueue()
		p.exec = p.queue
	}
	o.ctx, p.cancel = context.WithCancel(o.ctx)
	p.opts = o

	env := &frameEnv{opts: &p.opts, compositor: c, exec: p.exec}
	p.root = newFrameCoordinator(h.Root, env, true)
	p.root.walk(func(fc *FrameCoordinator) {
		p.frames[fc.ID()] = fc
	})

	Logger().Info("preview: player created",
		slog.String("root", h.Root.ID.Short()),
		slog.Int("frames", len(p.frames)),
		slog.Int("width", width),
		slog.Int("height", height))

	p.root.mediator.SetLayoutDimensions(width, height)
	return p, nil
}

// Root returns the coordinator of the root frame.
func (p *Player) Root() *FrameCoordinator { return p.root }

// Hierarchy returns the frame tree the player was built from.
func (p *Player) Hierarchy() *Hierarchy { return p.hierarchy }

// Frame returns the coordinator of the frame with the given ID.
func (p *Player) Frame(id FrameID) (*FrameCoordinator, bool) {
	fc, ok := p.frames[id]
	return fc, ok
}

// RunPending applies queued tile completions and returns how many ran. It
// always returns 0 when the player was created WithExecutor.
func (p *Player) RunPending() int {
	if p.queue == nil {
		return 0
	}
	return p.queue.RunPending()
}

// Ready returns a channel that receives a value when tile completions are
// waiting for RunPending, or nil when the player was created WithExecutor.
func (p *Player) Ready() <-chan struct{} {
	if p.queue == nil {
		return nil
	}
	return p.queue.Ready()
}

// SetViewportSize resizes the root viewport.
func (p *Player) SetViewportSize(width, height int) error {
	if p.closed {
		return ErrPlayerClosed
	}
	p.root.mediator.SetLayoutDimensions(width, height)
	return nil
}

// ScrollBy scrolls the deepest frame under (x, y) by (dx, dy) screen
// pixels. Whatever part of the delta a frame cannot consume is passed to
// its parent. It reports whether anything moved.
func (p *Player) ScrollBy(x, y, dx, dy float64) bool {
	if p.closed {
		return false
	}
	moved := false
	path := p.root.pathAt(x, y)
	for i := len(path) - 1; i >= 0; i-- {
		cx, cy := path[i].scroll.ScrollBy(dx, dy)
		if cx != 0 || cy != 0 {
			moved = true
		}
		dx -= cx
		dy -= cy
		if math.Abs(dx) < 0.5 && math.Abs(dy) < 0.5 {
			break
		}
	}
	return moved
}

// Fling starts a fling on the deepest frame under (x, y) that can still
// scroll in the direction of (vx, vy), given in pixels per second in the
// direction the scroll offset moves. It reports whether a fling started.
func (p *Player) Fling(x, y, vx, vy float64) bool {
	if p.closed {
		return false
	}
	p.root.stopFlings()
	path := p.root.pathAt(x, y)
	for i := len(path) - 1; i > 0; i-- {
		if canScroll(path[i].mediator.Viewport(), vx, vy) {
			return path[i].scroll.Fling(vx, vy)
		}
	}
	return p.root.scroll.Fling(vx, vy)
}

func canScroll(vp *Viewport, vx, vy float64) bool {
	sx, sy := vp.Scroll()
	mx, my := vp.MaxScroll()
	return (vx > 0 && sx < mx) || (vx < 0 && sx > 0) ||
		(vy > 0 && sy < my) || (vy < 0 && sy > 0)
}

// Advance steps every running fling by dt and reports whether any fling is
// still running.
func (p *Player) Advance(dt time.Duration) bool {
	if p.closed {
		return false
	}
	return p.root.advance(dt)
}

// BeginScale starts a zoom gesture. Bitmaps are frozen and stretched until
// EndScale.
func (p *Player) BeginScale() bool {
	if p.closed || p.root.scale == nil {
		return false
	}
	return p.root.scale.OnScaleBegin()
}

// ScaleBy multiplies the root scale by factor around the focal point
// (fx, fy), in screen pixels. The scale is bounded to the initial
// fit-width scale and the configured maximum.
func (p *Player) ScaleBy(factor, fx, fy float64) bool {
	if p.closed || p.root.scale == nil {
		return false
	}
	return p.root.scale.OnScale(factor, fx, fy)
}

// EndScale finishes a zoom gesture and starts loading bitmaps at the final
// scale.
func (p *Player) EndScale() {
	if p.closed || p.root.scale == nil {
		return
	}
	p.root.scale.OnScaleEnd()
}

// Tap resolves a tap at (x, y), in screen pixels, against the deepest frame
// under it and returns the link target.
func (p *Player) Tap(x, y float64) (*url.URL, bool) {
	if p.closed || !p.root.scroll.AcceptsUserInput() {
		return nil, false
	}
	u := p.root.mediator.OnTap(x, y)
	return u, u != nil
}

// SetAcceptUserInput enables or disables gestures on every frame.
func (p *Player) SetAcceptUserInput(accept bool) {
	if p.closed {
		return
	}
	if !accept && p.root.scale != nil {
		p.root.scale.OnScaleEnd()
	}
	p.root.SetAcceptUserInput(accept)
}

// ScrollPosition returns the root scroll offset in content pixels.
func (p *Player) ScrollPosition() image.Point {
	return p.root.ScrollPosition()
}

// Scale returns the root scale factor.
func (p *Player) Scale() float64 {
	return p.root.mediator.Viewport().Scale()
}

// RequiredTilesLoaded reports whether every visible frame shows a complete
// bitmap generation.
func (p *Player) RequiredTilesLoaded() bool {
	return !p.closed && p.root.RequiredTilesLoaded()
}

// Close cancels outstanding tile requests, releases all bitmap memory and
// surfaces, and closes the compositor if it implements io.Closer. Close is
// idempotent.
func (p *Player) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.cancel()
	p.root.Destroy()
	Logger().Info("preview: player closed", slog.String("root", p.root.ID().Short()))

	if c, ok := p.compositor.(io.Closer); ok {
		if err := c.Close(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("preview: close compositor: %w", err)
		}
	}
	return nil
}
