package preview

import (
	"math"
	"time"
)

// minFlingVelocity is the speed, in pixels per second, below which a fling
// stops.
const minFlingVelocity = 20.0

type scrollTarget interface {
	ScrollBy(dx, dy float64) (consumedX, consumedY float64)
}

// ScrollController turns scroll deltas and fling velocities into bounded
// viewport moves of one frame.
//
// A fling decays exponentially: after t seconds the velocity is
// v*exp(-k*t), where k is the friction. The displacement over a step of dt
// is therefore v/k*(1-exp(-k*dt)), independent of how the fling is sliced
// into steps. An axis stops as soon as it hits the scroll bounds.
type ScrollController struct {
	target   scrollTarget
	friction float64
	accept   bool

	vx, vy   float64
	flinging bool
}

func newScrollController(target scrollTarget, friction float64) *ScrollController {
	if friction <= 0 {
		friction = 4
	}
	return &ScrollController{target: target, friction: friction, accept: true}
}

// SetAcceptUserInput enables or disables scrolling. Disabling stops any
// fling in progress.
func (c *ScrollController) SetAcceptUserInput(accept bool) {
	c.accept = accept
	if !accept {
		c.Stop()
	}
}

// AcceptsUserInput reports whether scrolling is enabled.
func (c *ScrollController) AcceptsUserInput() bool { return c.accept }

// ScrollBy scrolls by (dx, dy) pixels and returns the consumed delta. Any
// fling in progress is stopped.
func (c *ScrollController) ScrollBy(dx, dy float64) (consumedX, consumedY float64) {
	if !c.accept {
		return 0, 0
	}
	c.Stop()
	return c.target.ScrollBy(dx, dy)
}

// Fling starts a fling with velocity (vx, vy) in pixels per second, in the
// direction the scroll offset moves. It reports whether a fling started.
func (c *ScrollController) Fling(vx, vy float64) bool {
	if !c.accept || math.Hypot(sanitize(vx), sanitize(vy)) < minFlingVelocity {
		return false
	}
	c.vx, c.vy = sanitize(vx), sanitize(vy)
	c.flinging = true
	return true
}

// IsFlinging reports whether a fling is in progress.
func (c *ScrollController) IsFlinging() bool { return c.flinging }

// Stop ends any fling in progress.
func (c *ScrollController) Stop() {
	c.flinging = false
	c.vx, c.vy = 0, 0
}

// Advance moves an in-progress fling forward by dt and reports whether the
// fling continues.
func (c *ScrollController) Advance(dt time.Duration) bool {
	if !c.flinging || dt <= 0 {
		return c.flinging
	}
	k := c.friction
	decay := math.Exp(-k * dt.Seconds())
	dx := c.vx / k * (1 - decay)
	dy := c.vy / k * (1 - decay)

	ax, ay := c.target.ScrollBy(dx, dy)
	c.vx *= decay
	c.vy *= decay
	if ax == 0 && dx != 0 {
		c.vx = 0
	}
	if ay == 0 && dy != 0 {
		c.vy = 0
	}
	if math.Hypot(c.vx, c.vy) < minFlingVelocity {
		c.Stop()
	}
	return c.flinging
}
