package preview

import (
	"context"
	"image"
	"net/url"
	"sync"
	"testing"

	"github.com/gogpu/preview/sequence"
)

// fakeRequest is one tile request captured by fakeCompositor.
type fakeRequest struct {
	ctx       context.Context
	req       BitmapRequest
	done      func(*image.RGBA, error)
	completed bool
}

type clickCall struct {
	frame FrameID
	x, y  int
}

// fakeCompositor records tile requests and completes them only when the
// test says so.
type fakeCompositor struct {
	mu     sync.Mutex
	reqs   []*fakeRequest
	clicks []clickCall
	link   *url.URL
	closed int
	// hierarchy and hierarchyErr are returned by Hierarchy.
	hierarchy    *RawHierarchy
	hierarchyErr error
}

func (f *fakeCompositor) RequestBitmap(ctx context.Context, req BitmapRequest, done func(*image.RGBA, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, &fakeRequest{ctx: ctx, req: req, done: done})
}

func (f *fakeCompositor) OnClick(frame FrameID, x, y int) *url.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, clickCall{frame: frame, x: x, y: y})
	return f.link
}

func (f *fakeCompositor) Hierarchy(context.Context) (*RawHierarchy, error) {
	return f.hierarchy, f.hierarchyErr
}

func (f *fakeCompositor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// requests returns every request made so far.
func (f *fakeCompositor) requests() []*fakeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeRequest(nil), f.reqs...)
}

// pending returns the requests not completed yet.
func (f *fakeCompositor) pending() []*fakeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeRequest
	for _, r := range f.reqs {
		if !r.completed {
			out = append(out, r)
		}
	}
	return out
}

// pendingFor returns the uncompleted requests of one frame at one scale.
func (f *fakeCompositor) pendingFor(frame FrameID, scale float64) []*fakeRequest {
	var out []*fakeRequest
	for _, r := range f.pending() {
		if r.req.Frame == frame && r.req.Scale == scale {
			out = append(out, r)
		}
	}
	return out
}

// completeAll delivers a bitmap for every pending request and returns how
// many were completed.
func (f *fakeCompositor) completeAll() int {
	reqs := f.pending()
	for _, r := range reqs {
		r.complete()
	}
	return len(reqs)
}

func (r *fakeRequest) complete() {
	r.completed = true
	r.done(image.NewRGBA(image.Rect(0, 0, r.req.Clip.Dx(), r.req.Clip.Dy())), nil)
}

func (r *fakeRequest) fail(err error) {
	r.completed = true
	r.done(nil, err)
}

// fakeDelegate counts controller notifications.
type fakeDelegate struct {
	matrixUpdates int
	swaps         int
}

func (d *fakeDelegate) updateBitmapMatrix() { d.matrixUpdates++ }
func (d *fakeDelegate) onSwapState()        { d.swaps++ }

// recordingSurface keeps every render state it receives.
type recordingSurface struct {
	states   []RenderState
	released bool
}

func (s *recordingSurface) Update(rs RenderState) { s.states = append(s.states, rs) }
func (s *recordingSurface) Release()              { s.released = true }

func (s *recordingSurface) last() RenderState {
	if len(s.states) == 0 {
		return RenderState{}
	}
	return s.states[len(s.states)-1]
}

// testController builds a controller over a viewport of the given size.
func testController(comp Compositor, q *sequence.Queue, content image.Point, w, h int, prefetch int) (*BitmapStateController, *Viewport, *fakeDelegate) {
	vp := NewViewport(content)
	vp.SetSize(w, h)
	d := &fakeDelegate{}
	c := newBitmapStateController(controllerParams{
		frame:      NewFrameID(),
		viewport:   vp,
		delegate:   d,
		compositor: comp,
		exec:       q,
		ctx:        context.Background(),
		prefetch:   prefetch,
		policy:     FirstPaintCenterTile,
	})
	return c, vp, d
}

// settle completes requests and drains the queue until nothing is left.
func settle(t *testing.T, comp *fakeCompositor, run func() int) {
	t.Helper()
	for range 50 {
		n := comp.completeAll()
		m := run()
		if n == 0 && m == 0 {
			return
		}
	}
	t.Fatal("settle: requests still arriving after 50 rounds")
}

func mustFrameID(t *testing.T, s string) FrameID {
	t.Helper()
	id, err := ParseFrameID(s)
	if err != nil {
		t.Fatalf("ParseFrameID(%q): %v", s, err)
	}
	return id
}
