package preview

import (
	"image"
	"log/slog"
	"math"
	"time"
)

// frameEnv carries what every coordinator of one player shares.
type frameEnv struct {
	opts       *options
	compositor Compositor
	exec       Executor
}

// FrameCoordinator composes one frame: its mediator, its rendering surface,
// its scroll controller and the coordinators of its sub-frames. The
// coordinators of a player form a strict tree owned by the root.
type FrameCoordinator struct {
	node     *FrameNode
	mediator *FrameMediator
	surface  Surface
	scroll   *ScrollController
	scale    *ScaleController
	children []*FrameCoordinator
}

// newFrameCoordinator builds the coordinator for node and, recursively, for
// all of its sub-frames.
func newFrameCoordinator(node *FrameNode, env *frameEnv, root bool) *FrameCoordinator {
	var surface Surface = nopSurface{}
	if env.opts.surfaces != nil {
		if s := env.opts.surfaces(node.ID); s != nil {
			surface = s
		}
	}

	var onFirstPaint func()
	if root {
		onFirstPaint = env.opts.onFirstPaint
	}
	m := newFrameMediator(mediatorParams{
		node:           node,
		compositor:     env.compositor,
		surface:        surface,
		maxScaleFactor: env.opts.maxScaleFactor,
		onFirstPaint:   onFirstPaint,
		controller: controllerParams{
			compositor: env.compositor,
			exec:       env.exec,
			ctx:        env.opts.ctx,
			prefetch:   env.opts.prefetch,
			policy:     env.opts.policy,
			onError:    env.opts.onTileError,
		},
	})

	c := &FrameCoordinator{
		node:     node,
		mediator: m,
		surface:  surface,
		scroll:   newScrollController(m, env.opts.flingFriction),
	}
	if root && env.opts.rootZoom {
		c.scale = newScaleController(m, c.stopFlings)
	}
	for _, sf := range node.SubFrames {
		c.AddSubFrame(sf.Clip, newFrameCoordinator(sf.Frame, env, false))
	}
	return c
}

// AddSubFrame attaches child as occupying clip in this frame's content
// space.
func (c *FrameCoordinator) AddSubFrame(clip image.Rectangle, child *FrameCoordinator) {
	c.children = append(c.children, child)
	c.mediator.AddSubFrame(clip, child.mediator)
}

// ID returns the frame ID.
func (c *FrameCoordinator) ID() FrameID { return c.node.ID }

// Node returns the hierarchy node the coordinator was built from.
func (c *FrameCoordinator) Node() *FrameNode { return c.node }

// Mediator returns the frame's mediator.
func (c *FrameCoordinator) Mediator() *FrameMediator { return c.mediator }

// Surface returns the frame's rendering surface.
func (c *FrameCoordinator) Surface() Surface { return c.surface }

// ScrollController returns the frame's scroll controller.
func (c *FrameCoordinator) ScrollController() *ScrollController { return c.scroll }

// ScaleController returns the frame's scale controller, or nil for
// sub-frames and when zoom is disabled.
func (c *FrameCoordinator) ScaleController() *ScaleController { return c.scale }

// Children returns the coordinators of the sub-frames, in clip order.
func (c *FrameCoordinator) Children() []*FrameCoordinator { return c.children }

// SetAcceptUserInput enables or disables gestures for the whole subtree.
func (c *FrameCoordinator) SetAcceptUserInput(accept bool) {
	c.scroll.SetAcceptUserInput(accept)
	if c.scale != nil {
		c.scale.SetAcceptUserInput(accept)
	}
	for _, child := range c.children {
		child.SetAcceptUserInput(accept)
	}
}

// ScrollPosition returns the scroll offset in unscaled content pixels.
func (c *FrameCoordinator) ScrollPosition() image.Point {
	vp := c.mediator.Viewport()
	scale := vp.Scale()
	if scale == 0 {
		scale = 1
	}
	x, y := vp.Scroll()
	return image.Pt(int(math.Round(x/scale)), int(math.Round(y/scale)))
}

// RequiredTilesLoaded reports whether every visible frame of the subtree
// shows a complete generation.
func (c *FrameCoordinator) RequiredTilesLoaded() bool {
	if c.mediator.IsVisible() && !c.mediator.RequiredTilesLoaded() {
		return false
	}
	for _, child := range c.children {
		if !child.RequiredTilesLoaded() {
			return false
		}
	}
	return true
}

// pathAt returns the coordinators under (x, y), given in this frame's
// screen space, from this frame down to the deepest visible sub-frame.
func (c *FrameCoordinator) pathAt(x, y float64) []*FrameCoordinator {
	path := []*FrameCoordinator{c}
	for cur := c; ; {
		i, lx, ly, ok := cur.mediator.subFrameAt(x, y)
		if !ok {
			return path
		}
		cur = cur.children[i]
		path = append(path, cur)
		x, y = lx, ly
	}
}

// advance steps every fling in the subtree and reports whether any is
// still running.
func (c *FrameCoordinator) advance(dt time.Duration) bool {
	running := c.scroll.Advance(dt)
	for _, child := range c.children {
		if child.advance(dt) {
			running = true
		}
	}
	return running
}

func (c *FrameCoordinator) stopFlings() {
	c.scroll.Stop()
	for _, child := range c.children {
		child.stopFlings()
	}
}

// walk calls fn for c and every coordinator below it, parents first.
func (c *FrameCoordinator) walk(fn func(*FrameCoordinator)) {
	fn(c)
	for _, child := range c.children {
		child.walk(fn)
	}
}

// Destroy tears the subtree down top-down: outstanding tile requests are
// cancelled, bitmap memory is released and surfaces implementing
// Release are released.
func (c *FrameCoordinator) Destroy() {
	c.scroll.Stop()
	c.mediator.destroy()
	releaseSurface(c.surface)
	Logger().Debug("preview: frame destroyed", slog.String("frame", c.node.ID.Short()))
	for _, child := range c.children {
		child.Destroy()
	}
}
