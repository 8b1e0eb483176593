package preview

type scaleTarget interface {
	beginScale()
	scaleBy(factor, fx, fy float64) bool
	endScale()
}

// ScaleController drives a pinch-zoom gesture on the root frame.
//
// OnScaleBegin freezes the frame's bitmaps, OnScale stretches them through
// the render matrix, and OnScaleEnd starts loading bitmaps at the final
// scale.
type ScaleController struct {
	target  scaleTarget
	accept  bool
	active  bool
	onBegin func()
}

func newScaleController(target scaleTarget, onBegin func()) *ScaleController {
	return &ScaleController{target: target, accept: true, onBegin: onBegin}
}

// SetAcceptUserInput enables or disables scale gestures. A gesture already
// in progress can still end.
func (c *ScaleController) SetAcceptUserInput(accept bool) {
	c.accept = accept
}

// IsScaling reports whether a gesture is in progress.
func (c *ScaleController) IsScaling() bool { return c.active }

// OnScaleBegin starts a gesture and reports whether it was accepted.
func (c *ScaleController) OnScaleBegin() bool {
	if !c.accept {
		return false
	}
	if c.active {
		return true
	}
	c.active = true
	if c.onBegin != nil {
		c.onBegin()
	}
	c.target.beginScale()
	return true
}

// OnScale multiplies the scale by factor around the focal point (fx, fy),
// in screen pixels. It reports whether the scale changed.
func (c *ScaleController) OnScale(factor, fx, fy float64) bool {
	if !c.accept || !c.active {
		return false
	}
	return c.target.scaleBy(factor, sanitize(fx), sanitize(fy))
}

// OnScaleEnd finishes the gesture.
func (c *ScaleController) OnScaleEnd() {
	if !c.active {
		return
	}
	c.active = false
	c.target.endScale()
}
