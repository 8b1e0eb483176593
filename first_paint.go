package preview

import "fmt"

// FirstPaintPolicy decides how many tiles of a frame's very first bitmap
// generation must arrive before the frame counts as painted.
//
// The first generation of a frame is shown immediately, before any tile has
// arrived, so the user sees tiles as they land instead of a blank frame. The
// policy controls when that generation is considered ready and when the
// first-paint listener fires.
type FirstPaintPolicy int

const (
	// FirstPaintAnyTile is satisfied by the first required tile.
	FirstPaintAnyTile FirstPaintPolicy = iota

	// FirstPaintCenterTile is satisfied once the tile under the center of the
	// viewport has arrived.
	FirstPaintCenterTile

	// FirstPaintRequiredTiles waits for every tile intersecting the viewport.
	FirstPaintRequiredTiles
)

// String returns the policy name.
func (p FirstPaintPolicy) String() string {
	switch p {
	case FirstPaintAnyTile:
		return "any-tile"
	case FirstPaintCenterTile:
		return "center-tile"
	case FirstPaintRequiredTiles:
		return "required-tiles"
	default:
		return fmt.Sprintf("FirstPaintPolicy(%d)", int(p))
	}
}
