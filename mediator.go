package preview

import (
	"image"
	"log/slog"
	"math"
	"net/url"
)

type subFrameEntry struct {
	clip     image.Rectangle // in parent content space
	mediator *FrameMediator
	layout   image.Rectangle // in parent screen space
	visible  bool
}

// FrameMediator bridges gestures, the viewport and the bitmap cache of one
// frame.
//
// It owns the frame's Viewport and BitmapStateController, re-issues tile
// requests as the viewport moves, pushes a RenderState to the frame's
// surface on every change, and lays out its sub-frames proportionally to
// their clip rects. Sub-frames follow the root's scale; only the root
// receives scale gestures directly.
type FrameMediator struct {
	id         FrameID
	viewport   *Viewport
	controller *BitmapStateController
	compositor Compositor
	surface    Surface
	subFrames  []subFrameEntry

	initialScroll  image.Point
	initialScale   float64
	maxScaleFactor float64

	laidOut bool
	visible bool
	scaling bool
	// gestureScale is the scale at beginScale.
	gestureScale float64
	// dirty records a size or scale change not yet turned into a new
	// bitmap generation, because the frame was hidden or a scale gesture
	// was in progress.
	dirty bool

	onFirstPaint func()
	firstPainted bool
}

type mediatorParams struct {
	node           *FrameNode
	compositor     Compositor
	surface        Surface
	maxScaleFactor float64
	onFirstPaint   func()
	controller     controllerParams
}

func newFrameMediator(p mediatorParams) *FrameMediator {
	m := &FrameMediator{
		id:             p.node.ID,
		viewport:       NewViewport(p.node.ContentSize),
		compositor:     p.compositor,
		surface:        p.surface,
		initialScroll:  p.node.InitialScroll,
		initialScale:   1,
		maxScaleFactor: max(p.maxScaleFactor, 1),
		onFirstPaint:   p.onFirstPaint,
	}
	if m.surface == nil {
		m.surface = nopSurface{}
	}
	cp := p.controller
	cp.frame = m.id
	cp.viewport = m.viewport
	cp.delegate = m
	m.controller = newBitmapStateController(cp)
	return m
}

// ID returns the frame ID.
func (m *FrameMediator) ID() FrameID { return m.id }

// Viewport returns the frame's viewport. Callers must not mutate it.
func (m *FrameMediator) Viewport() *Viewport { return m.viewport }

// Controller returns the frame's bitmap state controller.
func (m *FrameMediator) Controller() *BitmapStateController { return m.controller }

// IsVisible reports whether any part of the frame is on screen.
func (m *FrameMediator) IsVisible() bool { return m.visible }

// InitialScale returns the scale the frame was first laid out at. For the
// root this is the fit-width scale, which is also the minimum zoom.
func (m *FrameMediator) InitialScale() float64 { return m.initialScale }

// AddSubFrame registers child as occupying clip, in this frame's content
// space. Sub-frames are attached once, before the first layout.
func (m *FrameMediator) AddSubFrame(clip image.Rectangle, child *FrameMediator) {
	m.subFrames = append(m.subFrames, subFrameEntry{clip: clip.Canon(), mediator: child})
}

// SetLayoutDimensions sets the on-screen size of the root frame. On the
// first call the frame is scaled to fit its content width and scrolled to
// its initial offset.
func (m *FrameMediator) SetLayoutDimensions(width, height int) {
	oldW, oldH := m.viewport.Size()
	m.visible = true
	m.viewport.SetSize(width, height)
	if !m.laidOut {
		m.laidOut = true
		if cw := m.viewport.ContentSize().X; cw > 0 && width > 0 {
			m.initialScale = float64(width) / float64(cw)
		}
		m.viewport.SetScale(m.initialScale)
		m.applyInitialScroll()
		m.updateVisuals(true)
		return
	}
	if width == oldW && height == oldH {
		m.updateVisuals(false)
		return
	}
	// The tile size follows the viewport, so a resize starts a new
	// generation.
	m.updateVisuals(true)
}

func (m *FrameMediator) applyInitialScroll() {
	s := m.viewport.Scale()
	m.viewport.SetScroll(float64(m.initialScroll.X)*s, float64(m.initialScroll.Y)*s)
}

// setSubFrameLayout is called by the parent whenever the child's on-screen
// rectangle or scale changes. transient is set during a scale gesture.
func (m *FrameMediator) setSubFrameLayout(width, height int, scale float64, visible, transient bool) {
	oldW, oldH := m.viewport.Size()
	if width != oldW || height != oldH {
		m.dirty = true
	}
	m.visible = visible
	m.viewport.SetSize(width, height)
	if !m.laidOut {
		m.laidOut = true
		m.initialScale = validScale(scale)
		m.viewport.SetScale(scale)
		m.applyInitialScroll()
		m.dirty = true
	} else if scale != m.viewport.Scale() {
		m.viewport.SetScale(scale)
		m.dirty = true
	}

	if transient {
		m.layoutSubFrames(true)
		m.redraw()
		return
	}
	m.updateVisuals(false)
}

// updateVisuals requests tiles for the current viewport, lays out the
// sub-frames and redraws.
func (m *FrameMediator) updateVisuals(scaleChanged bool) {
	if !m.laidOut || m.scaling {
		return
	}
	if m.visible {
		st := m.controller.BitmapState(scaleChanged || m.dirty)
		m.dirty = false
		st.RequestTilesForViewport(m.stateRect(st))
	} else if scaleChanged {
		m.dirty = true
	}
	m.layoutSubFrames(false)
	m.redraw()
}

// stateRect returns the visible rectangle in the pixel space of st.
func (m *FrameMediator) stateRect(st *BitmapState) image.Rectangle {
	return scaleRect(m.viewport.VisibleRect(), st.Scale()/m.viewport.Scale())
}

func (m *FrameMediator) layoutSubFrames(transient bool) {
	if len(m.subFrames) == 0 {
		return
	}
	w, h := m.viewport.Size()
	screen := image.Rect(0, 0, w, h)
	scale := m.viewport.Scale()
	sx, sy := m.viewport.Scroll()
	origin := Pt(sx, sy).Round()

	for i := range m.subFrames {
		sf := &m.subFrames[i]
		r := scaleRect(sf.clip, scale).Sub(origin)
		sf.layout = r
		sf.visible = m.visible && r.Overlaps(screen)
		sf.mediator.setSubFrameLayout(r.Dx(), r.Dy(), scale, sf.visible, transient)
	}
}

// ScrollBy scrolls the frame by (dx, dy) screen pixels and returns the part
// of the delta that was consumed. The rest may be applied to an ancestor.
func (m *FrameMediator) ScrollBy(dx, dy float64) (consumedX, consumedY float64) {
	consumedX, consumedY = m.viewport.ScrollBy(dx, dy)
	if consumedX == 0 && consumedY == 0 {
		return 0, 0
	}
	if m.scaling {
		m.layoutSubFrames(true)
		m.redraw()
	} else {
		m.updateVisuals(false)
	}
	return consumedX, consumedY
}

// beginScale starts a scale gesture on this frame and all its sub-frames.
func (m *FrameMediator) beginScale() {
	if m.scaling {
		return
	}
	m.scaling = true
	m.gestureScale = m.viewport.Scale()
	m.controller.OnStartScaling()
	for _, sf := range m.subFrames {
		sf.mediator.beginScale()
	}
}

// scaleBy multiplies the scale by factor around the focal point (fx, fy),
// in screen pixels, bounded to [initial, initial*maxScaleFactor]. The
// visible generation is stretched through the render matrix until the
// gesture ends.
func (m *FrameMediator) scaleBy(factor, fx, fy float64) bool {
	if !m.scaling || !m.laidOut {
		return false
	}
	lo := m.initialScale
	hi := m.initialScale * m.maxScaleFactor
	s := m.viewport.Scale() * validScale(factor)
	s = math.Min(math.Max(s, lo), hi)
	if s == m.viewport.Scale() {
		return false
	}
	m.viewport.ScaleAt(s, fx, fy)
	m.layoutSubFrames(true)
	m.redraw()
	return true
}

// endScale finishes the scale gesture. If the scale changed, a generation
// at the final scale starts loading; otherwise the unlocked visible state
// is reused.
func (m *FrameMediator) endScale() {
	if !m.scaling {
		return
	}
	changed := m.viewport.Scale() != m.gestureScale
	m.clearScaling()
	m.updateVisuals(changed)
}

// clearScaling ends the gesture on this frame and its sub-frames. Sub-frames
// whose scale changed were marked dirty by the transient layout.
func (m *FrameMediator) clearScaling() {
	m.scaling = false
	m.controller.OnEndScaling()
	for _, sf := range m.subFrames {
		sf.mediator.clearScaling()
	}
}

// subFrameAt returns the topmost visible sub-frame containing (x, y), given
// in this frame's screen space, and the point translated into the
// sub-frame's screen space.
func (m *FrameMediator) subFrameAt(x, y float64) (index int, lx, ly float64, ok bool) {
	p := image.Pt(int(math.Floor(x)), int(math.Floor(y)))
	for i := len(m.subFrames) - 1; i >= 0; i-- {
		sf := m.subFrames[i]
		if !sf.visible || !p.In(sf.layout) {
			continue
		}
		return i, x - float64(sf.layout.Min.X), y - float64(sf.layout.Min.Y), true
	}
	return -1, 0, 0, false
}

// OnTap resolves a tap at (x, y), in this frame's screen space, against the
// deepest frame under it and returns the link target, or nil.
func (m *FrameMediator) OnTap(x, y float64) *url.URL {
	if i, lx, ly, ok := m.subFrameAt(x, y); ok {
		return m.subFrames[i].mediator.OnTap(lx, ly)
	}
	cx, cy := m.screenToContent(x, y)
	target := m.compositor.OnClick(m.id, cx, cy)
	Logger().Debug("preview: tap",
		slog.String("frame", m.id.Short()),
		slog.Int("x", cx),
		slog.Int("y", cy),
		slog.Bool("hit", target != nil))
	return target
}

func (m *FrameMediator) screenToContent(x, y float64) (int, int) {
	inv := m.viewport.ContentToScreen().Invert()
	p := inv.TransformPoint(Pt(x, y)).Round()
	return p.X, p.Y
}

// updateBitmapMatrix is called when the visible generation gained tiles.
func (m *FrameMediator) updateBitmapMatrix() {
	m.redraw()
}

// onSwapState is called when a new generation became visible.
func (m *FrameMediator) onSwapState() {
	m.redraw()
}

// RenderState builds the frame's current paintable state.
func (m *FrameMediator) RenderState() RenderState {
	vp := m.viewport.VisibleRect()
	rs := RenderState{
		Frame:    m.id,
		Visible:  m.visible,
		Viewport: vp,
		Scale:    m.viewport.Scale(),
		Matrix:   Identity(),
	}
	if st := m.controller.Visible(); st != nil {
		r := m.viewport.Scale() / st.Scale()
		sx, sy := m.viewport.Scroll()
		rs.Matrix = Translate(-sx, -sy).Multiply(Scale(r, r))
		rs.BitmapScale = st.Scale()
		rs.Generation = st.Generation()
		rs.Tiles = st.Tiles(scaleRect(vp, 1/r))
		rs.RequiredTiles = st.RequiredCount()
		rs.LoadedTiles = st.RequiredLoadedCount()
	}
	if len(m.subFrames) > 0 {
		rs.SubFrames = make([]SubFrameLayout, len(m.subFrames))
		for i, sf := range m.subFrames {
			rs.SubFrames[i] = SubFrameLayout{Frame: sf.mediator.id, Rect: sf.layout, Visible: sf.visible}
		}
	}
	return rs
}

func (m *FrameMediator) redraw() {
	m.surface.Update(m.RenderState())
	if m.firstPainted || m.onFirstPaint == nil {
		return
	}
	if st := m.controller.Visible(); st != nil && st.firstPaintDone() {
		m.firstPainted = true
		Logger().Info("preview: first paint", slog.String("frame", m.id.Short()))
		m.onFirstPaint()
	}
}

// RequiredTilesLoaded reports whether every tile under the viewport of the
// visible generation has loaded.
func (m *FrameMediator) RequiredTilesLoaded() bool {
	st := m.controller.Visible()
	return st != nil && m.controller.Loading() == nil && st.RequiredTilesLoaded()
}

// destroy releases the bitmap memory of this frame. Children are destroyed
// by their coordinators.
func (m *FrameMediator) destroy() {
	m.controller.Destroy()
	m.laidOut = false
	m.visible = false
}
