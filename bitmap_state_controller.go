package preview

import (
	"context"
	"log/slog"

	"github.com/gogpu/preview/internal/tiling"
)

// controllerDelegate is implemented by the mediator that owns a controller.
type controllerDelegate interface {
	// updateBitmapMatrix is called when the visible state gained tiles.
	updateBitmapMatrix()
	// onSwapState is called after a new generation became visible.
	onSwapState()
}

// BitmapStateController double-buffers the bitmap generations of one frame.
//
// It holds at most one visible state, which is safe to paint, and at most
// one loading state being populated for a new scale. The visible state is
// only replaced by a loading state that reports IsReadyToShow, so old tiles
// stay on screen until the new generation is complete. Starting a new
// generation always clears the previous loading one.
type BitmapStateController struct {
	frame    FrameID
	viewport *Viewport
	delegate controllerDelegate

	compositor Compositor
	exec       Executor
	ctx        context.Context
	prefetch   int
	policy     FirstPaintPolicy
	onError    func(BitmapRequest, error)

	visible    *BitmapState
	loading    *BitmapState
	generation uint64
}

type controllerParams struct {
	frame      FrameID
	viewport   *Viewport
	delegate   controllerDelegate
	compositor Compositor
	exec       Executor
	ctx        context.Context
	prefetch   int
	policy     FirstPaintPolicy
	onError    func(BitmapRequest, error)
}

func newBitmapStateController(p controllerParams) *BitmapStateController {
	return &BitmapStateController{
		frame:      p.frame,
		viewport:   p.viewport,
		delegate:   p.delegate,
		compositor: p.compositor,
		exec:       p.exec,
		ctx:        p.ctx,
		prefetch:   p.prefetch,
		policy:     p.policy,
		onError:    p.onError,
	}
}

// Visible returns the state currently painted, or nil.
func (c *BitmapStateController) Visible() *BitmapState { return c.visible }

// Loading returns the state being populated, or nil.
func (c *BitmapStateController) Loading() *BitmapState { return c.loading }

// Generation returns the number of the most recently created state.
func (c *BitmapStateController) Generation() uint64 { return c.generation }

// BitmapState returns the state tile requests should go to.
//
// Without a scale change the active state (loading if one exists, visible
// otherwise) is reused. On a scale change, or when no state exists, the
// loading state is replaced by a new generation sized for the current
// viewport. The first generation of a frame is swapped in immediately.
func (c *BitmapStateController) BitmapState(scaleChanged bool) *BitmapState {
	active := c.loading
	if active == nil {
		active = c.visible
	}
	if !scaleChanged && active != nil {
		return active
	}

	c.invalidateLoading()

	w, h := c.viewport.Size()
	tileW, tileH := tiling.HalfViewport(w, h)
	c.generation++
	c.loading = newBitmapState(bitmapStateParams{
		frame:      c.frame,
		generation: c.generation,
		scale:      c.viewport.Scale(),
		content:    c.viewport.ContentSize(),
		tileW:      tileW,
		tileH:      tileH,
		prefetch:   c.prefetch,
		policy:     c.policy,
		parent:     c.ctx,
		compositor: c.compositor,
		exec:       c.exec,
		observer:   c,
		onError:    c.onError,
	})
	Logger().Debug("preview: bitmap state created",
		slog.String("frame", c.frame.Short()),
		slog.Uint64("generation", c.generation),
		slog.Float64("scale", c.loading.Scale()),
		slog.Int("tileW", tileW),
		slog.Int("tileH", tileH))

	if c.visible == nil {
		c.loading.skipWaitingForVisibleBitmaps()
		c.swap(c.loading)
		return c.visible
	}
	return c.loading
}

// stateUpdated is called on the owner goroutine whenever s gained a tile.
func (c *BitmapStateController) stateUpdated(s *BitmapState) {
	switch {
	case s == c.visible:
		c.delegate.updateBitmapMatrix()
	case s != c.loading || s.generation != c.generation:
		// Superseded generation.
		Logger().Debug("preview: stale bitmap state update dropped",
			slog.String("frame", c.frame.Short()),
			slog.Uint64("generation", s.generation))
	case !s.IsReadyToShow():
	default:
		c.swap(s)
	}
}

// swap promotes s, which must be the loading state, to visible.
func (c *BitmapStateController) swap(s *BitmapState) {
	if s != c.loading {
		return
	}
	if c.visible != nil {
		c.visible.Clear()
	}
	c.visible = s
	c.loading = nil
	Logger().Debug("preview: bitmap state swapped",
		slog.String("frame", c.frame.Short()),
		slog.Uint64("generation", s.generation))
	c.delegate.onSwapState()
}

// OnStartScaling is called when an interactive scale gesture begins. Any
// loading generation is discarded and the visible one is locked so tiles
// are neither requested nor evicted until the gesture ends.
func (c *BitmapStateController) OnStartScaling() {
	c.invalidateLoading()
	if c.visible != nil {
		c.visible.Lock()
	}
}

// OnEndScaling is called when the scale gesture ends. The visible state is
// unlocked; if the scale changed, the caller starts a new generation and the
// visible state stays on screen until it is replaced.
func (c *BitmapStateController) OnEndScaling() {
	if c.visible != nil {
		c.visible.Unlock()
	}
}

func (c *BitmapStateController) invalidateLoading() {
	if c.loading == nil {
		return
	}
	c.loading.Clear()
	c.loading = nil
}

// Destroy clears both states.
func (c *BitmapStateController) Destroy() {
	c.invalidateLoading()
	if c.visible != nil {
		c.visible.Clear()
		c.visible = nil
	}
}
