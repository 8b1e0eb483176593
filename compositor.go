package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
)

// BitmapRequest asks the compositor for one tile of a frame.
//
// Clip is expressed in the frame's scaled pixel space: content coordinates
// multiplied by Scale. The returned bitmap covers exactly Clip.
type BitmapRequest struct {
	Frame FrameID
	Clip  image.Rectangle
	Scale float64
}

// Compositor decodes a captured preview and produces bitmaps on demand.
//
// RequestBitmap is asynchronous: it must return promptly and call done at
// most once, from any goroutine, with either a bitmap or an error. A request
// may never complete; callers tolerate that. Cancelling ctx signals that the
// result is no longer wanted, but a compositor may still deliver it.
//
// OnClick performs a synchronous hit test at content coordinates (x, y) of
// frame and returns the link target, or nil when nothing was hit.
//
// A Compositor is shared by every frame of one player and must be safe for
// concurrent use.
type Compositor interface {
	RequestBitmap(ctx context.Context, req BitmapRequest, done func(*image.RGBA, error))
	OnClick(frame FrameID, x, y int) *url.URL
}

// Source is a Compositor that can also describe the captured frame tree.
// Hierarchy is called once, at player startup.
type Source interface {
	Compositor
	Hierarchy(ctx context.Context) (*RawHierarchy, error)
}

// CompositorStatus is the compositor-level outcome of opening a capture.
type CompositorStatus int

const (
	StatusOK CompositorStatus = iota
	StatusNoCapture
	StatusDeserializationError
	StatusServiceDisconnect
	StatusInvalidRootFrame
	StatusInvalidRequest
	StatusCaptureExpired
	StatusOldVersion
)

// String returns a human-readable name for the status.
func (s CompositorStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoCapture:
		return "no capture"
	case StatusDeserializationError:
		return "deserialization error"
	case StatusServiceDisconnect:
		return "compositor service disconnected"
	case StatusInvalidRootFrame:
		return "invalid root frame"
	case StatusInvalidRequest:
		return "invalid request"
	case StatusCaptureExpired:
		return "capture expired"
	case StatusOldVersion:
		return "old capture version"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StatusError reports a compositor-level failure.
type StatusError struct {
	Status CompositorStatus
}

func (e *StatusError) Error() string {
	return "preview: compositor: " + e.Status.String()
}

// Common errors returned by the player.
var (
	// ErrUnrenderable is returned when the root frame cannot be presented.
	// The caller is expected to fall back to the live page.
	ErrUnrenderable = errors.New("preview: capture is unrenderable")

	// ErrMalformedHierarchy is returned when the frame hierarchy payload is
	// internally inconsistent.
	ErrMalformedHierarchy = errors.New("preview: malformed frame hierarchy")

	// ErrPlayerClosed is returned when operations are attempted on a closed player.
	ErrPlayerClosed = errors.New("preview: player is closed")
)
