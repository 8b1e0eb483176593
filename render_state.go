package preview

import "image"

// Surface receives the render state of one frame every time it changes.
// Implementations paint the tiles through the supplied matrix and position
// sub-frame surfaces at the given layouts.
//
// Update is always called on the player's owner goroutine. A Surface that
// also implements interface{ Release() } is released when its frame is
// destroyed.
type Surface interface {
	Update(state RenderState)
}

// SurfaceFactory creates the rendering surface for a frame.
type SurfaceFactory func(id FrameID) Surface

// RenderState is the complete paintable state of one frame, pushed from the
// frame's mediator to its surface.
type RenderState struct {
	Frame FrameID

	// Visible is false when the frame is scrolled out of its parent.
	Visible bool

	// Viewport is the visible rectangle of scaled content, in pixels at Scale.
	Viewport image.Rectangle
	Scale    float64

	// Matrix maps tile pixel coordinates (at BitmapScale) to frame-local
	// screen coordinates.
	Matrix      Matrix
	BitmapScale float64
	Generation  uint64

	// Tiles are the loaded tiles of the visible bitmap generation that
	// intersect the viewport.
	Tiles []TileImage

	// SubFrames lay out the children in frame-local screen coordinates.
	SubFrames []SubFrameLayout

	RequiredTiles int
	LoadedTiles   int
}

// TileCoord addresses a tile within a bitmap generation.
type TileCoord struct {
	Row, Col int
}

// TileImage is one loaded tile ready to paint.
type TileImage struct {
	Coord TileCoord
	// Rect is the tile area in bitmap pixel space; Image covers it exactly.
	Rect  image.Rectangle
	Image *image.RGBA
}

// SubFrameLayout places a child frame within its parent's screen area.
type SubFrameLayout struct {
	Frame   FrameID
	Rect    image.Rectangle
	Visible bool
}

type nopSurface struct{}

func (nopSurface) Update(RenderState) {}

func releaseSurface(s Surface) {
	if r, ok := s.(interface{ Release() }); ok {
		r.Release()
	}
}
