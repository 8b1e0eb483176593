package preview

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"github.com/gogpu/preview/internal/tiling"
)

type tileStatus uint8

const (
	tileAbsent tileStatus = iota
	tilePending
	tileLoaded
	tileFailed
)

type tileSlot struct {
	status tileStatus
	img    *image.RGBA
	// seq identifies the request of a pending tile; cancel aborts it.
	seq    uint64
	cancel context.CancelFunc
}

// stateObserver is notified whenever a bitmap state gains a tile.
type stateObserver interface {
	stateUpdated(s *BitmapState)
}

// BitmapState is one generation of tiles for a frame: an immutable
// (scale, content size, tile size) snapshot and the tiles fetched for it.
//
// A state requests tiles for the rectangles it is asked about, tracks each
// tile as absent, pending, loaded or failed, and reports readiness once every
// tile intersecting the last requested rectangle has settled. Clear cancels
// the generation: outstanding completions become no-ops and tile memory is
// released.
//
// BitmapState is confined to the player's owner goroutine.
type BitmapState struct {
	frame      FrameID
	generation uint64
	scale      float64
	content    image.Point
	grid       tiling.Grid
	tiles      []tileSlot

	required    tiling.Span
	hasRequired bool
	prefetch    int
	policy      FirstPaintPolicy
	skipWaiting bool
	locked      bool
	cleared     bool

	loaded  int
	pending int
	seq     uint64

	ctx        context.Context
	cancel     context.CancelFunc
	compositor Compositor
	exec       Executor
	observer   stateObserver
	onError    func(BitmapRequest, error)
}

// bitmapStateParams gathers the inputs of newBitmapState.
type bitmapStateParams struct {
	frame      FrameID
	generation uint64
	scale      float64
	content    image.Point
	tileW      int
	tileH      int
	prefetch   int
	policy     FirstPaintPolicy
	parent     context.Context
	compositor Compositor
	exec       Executor
	observer   stateObserver
	onError    func(BitmapRequest, error)
}

func newBitmapState(p bitmapStateParams) *BitmapState {
	scale := validScale(p.scale)
	scaledW := int(float64(p.content.X)*scale + 0.5)
	scaledH := int(float64(p.content.Y)*scale + 0.5)
	grid := tiling.NewGrid(scaledW, scaledH, p.tileW, p.tileH)

	parent := p.parent
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	return &BitmapState{
		frame:      p.frame,
		generation: p.generation,
		scale:      scale,
		content:    p.content,
		grid:       grid,
		tiles:      make([]tileSlot, grid.Len()),
		prefetch:   max(p.prefetch, 0),
		policy:     p.policy,
		ctx:        ctx,
		cancel:     cancel,
		compositor: p.compositor,
		exec:       p.exec,
		observer:   p.observer,
		onError:    p.onError,
	}
}

// Frame returns the ID of the frame this state belongs to.
func (s *BitmapState) Frame() FrameID { return s.frame }

// Generation returns the generation number assigned by the controller.
func (s *BitmapState) Generation() uint64 { return s.generation }

// Scale returns the scale factor the tiles of this state are rendered at.
func (s *BitmapState) Scale() float64 { return s.scale }

// TileSize returns the nominal tile size in bitmap pixels.
func (s *BitmapState) TileSize() (w, h int) { return s.grid.TileSize() }

// GridSize returns the number of tile rows and columns.
func (s *BitmapState) GridSize() (rows, cols int) { return s.grid.Rows(), s.grid.Cols() }

// IsCleared reports whether Clear has been called.
func (s *BitmapState) IsCleared() bool { return s.cleared }

// IsLocked reports whether Lock has been called.
func (s *BitmapState) IsLocked() bool { return s.locked }

// RequestTilesForViewport requests every tile intersecting rect, given in
// this state's bitmap pixel space, followed by a ring of prefetch tiles
// around it. Tiles already pending or loaded are not requested again, and
// failed tiles are retried. Tiles outside the requested region are released.
//
// The call returns immediately; tiles arrive asynchronously. It is a no-op
// on a cleared or locked state.
func (s *BitmapState) RequestTilesForViewport(rect image.Rectangle) {
	if s.cleared || s.locked {
		return
	}

	required := s.grid.CellsInRect(rect)
	s.required = required
	s.hasRequired = true

	required.ForEach(s.requestTile)
	wide := s.grid.Expand(required, s.prefetch)
	wide.ForEach(func(c tiling.Coord) {
		if !required.Contains(c) {
			s.requestTile(c)
		}
	})
	s.evictOutside(wide)

	if s.IsReadyToShow() {
		s.observer.stateUpdated(s)
	}
}

func (s *BitmapState) requestTile(c tiling.Coord) {
	i := s.grid.Index(c)
	if i < 0 {
		return
	}
	slot := &s.tiles[i]
	if slot.status == tilePending || slot.status == tileLoaded {
		return
	}
	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(s.ctx)
	*slot = tileSlot{status: tilePending, seq: seq, cancel: cancel}
	s.pending++

	req := BitmapRequest{Frame: s.frame, Clip: s.grid.CellBounds(c), Scale: s.scale}
	exec := s.exec
	s.compositor.RequestBitmap(ctx, req, func(img *image.RGBA, err error) {
		exec.Post(func() { s.onTile(c, seq, req, img, err) })
	})
}

// onTile applies one completion on the owner goroutine.
func (s *BitmapState) onTile(c tiling.Coord, seq uint64, req BitmapRequest, img *image.RGBA, err error) {
	if s.cleared {
		return
	}
	i := s.grid.Index(c)
	if i < 0 || s.tiles[i].status != tilePending || s.tiles[i].seq != seq {
		// Evicted, re-requested since, or a duplicate completion.
		return
	}
	slot := &s.tiles[i]
	s.pending--
	slot.cancel()
	slot.cancel = nil

	if err == nil && img == nil {
		err = errors.New("compositor returned no bitmap")
	}
	if err != nil {
		slot.status = tileFailed
		if !errors.Is(err, context.Canceled) {
			Logger().Warn("preview: tile request failed",
				slog.String("frame", s.frame.Short()),
				slog.Any("clip", req.Clip),
				slog.Float64("scale", req.Scale),
				slog.Any("error", err))
			if s.onError != nil {
				s.onError(req, err)
			}
		}
	} else {
		slot.status = tileLoaded
		slot.img = img
		s.loaded++
	}
	s.observer.stateUpdated(s)
}

// evictOutside releases tiles outside keep. Pending tiles have their
// requests canceled and are forgotten, so late completions are dropped.
func (s *BitmapState) evictOutside(keep tiling.Span) {
	for row := range s.grid.Rows() {
		for col := range s.grid.Cols() {
			c := tiling.Coord{Row: row, Col: col}
			if keep.Contains(c) {
				continue
			}
			slot := &s.tiles[s.grid.Index(c)]
			switch slot.status {
			case tileLoaded:
				s.loaded--
			case tilePending:
				s.pending--
				slot.cancel()
			case tileAbsent:
				continue
			}
			*slot = tileSlot{}
		}
	}
}

// IsReadyToShow reports whether this state may replace the visible one:
// every tile intersecting the last requested rectangle has loaded (or
// failed). A state marked to skip waiting is ready as soon as its
// first-paint policy is met.
func (s *BitmapState) IsReadyToShow() bool {
	if s.cleared || !s.hasRequired {
		return false
	}
	if s.skipWaiting && s.firstPaintSatisfied() {
		return true
	}
	return s.requiredSettled()
}

// RequiredTilesLoaded reports whether every required tile has loaded.
func (s *BitmapState) RequiredTilesLoaded() bool {
	if s.cleared || !s.hasRequired {
		return false
	}
	ok := true
	s.required.ForEach(func(c tiling.Coord) {
		if s.tiles[s.grid.Index(c)].status != tileLoaded {
			ok = false
		}
	})
	return ok
}

func (s *BitmapState) requiredSettled() bool {
	ok := true
	s.required.ForEach(func(c tiling.Coord) {
		switch s.tiles[s.grid.Index(c)].status {
		case tileLoaded, tileFailed:
		default:
			ok = false
		}
	})
	return ok
}

func (s *BitmapState) firstPaintSatisfied() bool {
	if s.required.Empty() {
		return true
	}
	switch s.policy {
	case FirstPaintAnyTile:
		any := false
		s.required.ForEach(func(c tiling.Coord) {
			if s.tiles[s.grid.Index(c)].status == tileLoaded {
				any = true
			}
		})
		return any
	case FirstPaintCenterTile:
		return s.tiles[s.grid.Index(s.required.Center())].status == tileLoaded
	default:
		return s.requiredSettled()
	}
}

// skipWaitingForVisibleBitmaps relaxes readiness to the first-paint policy.
// Used for the first generation of a frame, which has nothing to replace.
func (s *BitmapState) skipWaitingForVisibleBitmaps() {
	s.skipWaiting = true
}

// Lock freezes the state: further tile requests are ignored and tiles are
// no longer evicted. Used while an interactive scale gesture is in progress.
func (s *BitmapState) Lock() {
	s.locked = true
}

// Unlock lifts Lock. The next RequestTilesForViewport fills in whatever the
// viewport moved to while the state was locked.
func (s *BitmapState) Unlock() {
	s.locked = false
}

// Clear cancels outstanding requests and releases all tiles. Completions
// arriving afterwards are ignored. Clear is idempotent.
func (s *BitmapState) Clear() {
	if s.cleared {
		return
	}
	s.cleared = true
	s.cancel()
	s.tiles = nil
	s.loaded = 0
	s.pending = 0
	Logger().Debug("preview: bitmap state cleared",
		slog.String("frame", s.frame.Short()),
		slog.Uint64("generation", s.generation))
}

// LoadedCount returns the number of loaded tiles.
func (s *BitmapState) LoadedCount() int { return s.loaded }

// PendingCount returns the number of tiles requested but not yet delivered.
func (s *BitmapState) PendingCount() int { return s.pending }

// RequiredCount returns the number of tiles intersecting the last requested
// rectangle.
func (s *BitmapState) RequiredCount() int { return s.required.Len() }

// RequiredLoadedCount returns how many of the required tiles have loaded.
func (s *BitmapState) RequiredLoadedCount() int {
	if s.cleared {
		return 0
	}
	n := 0
	s.required.ForEach(func(c tiling.Coord) {
		if s.tiles[s.grid.Index(c)].status == tileLoaded {
			n++
		}
	})
	return n
}

// Tiles returns the loaded tiles intersecting rect, in bitmap pixel space.
func (s *BitmapState) Tiles(rect image.Rectangle) []TileImage {
	if s.cleared {
		return nil
	}
	span := s.grid.CellsInRect(rect)
	out := make([]TileImage, 0, span.Len())
	span.ForEach(func(c tiling.Coord) {
		slot := s.tiles[s.grid.Index(c)]
		if slot.status != tileLoaded {
			return
		}
		out = append(out, TileImage{
			Coord: TileCoord{Row: c.Row, Col: c.Col},
			Rect:  s.grid.CellBounds(c),
			Image: slot.img,
		})
	})
	return out
}

// firstPaintDone reports whether the last requested region satisfies the
// first-paint policy.
func (s *BitmapState) firstPaintDone() bool {
	return !s.cleared && s.hasRequired && s.firstPaintSatisfied()
}
