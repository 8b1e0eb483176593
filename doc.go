// Package preview renders a captured paint preview of a web page as an
// interactively scrollable and zoomable image.
//
// # Overview
//
// A paint preview is a tree of rectangular frames: the main frame plus
// nested sub-frames such as iframes, each with a fixed content size and a
// clip rectangle inside its parent. The pixels themselves come from a
// Compositor, which decodes the capture and produces bitmap tiles on
// demand. The player owns everything between the compositor and the
// screen: viewports, tile caches, double-buffered bitmap generations and
// the frame tree.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/preview"
//	    "github.com/gogpu/preview/compositor"
//	    "github.com/gogpu/preview/surface"
//	)
//
//	comp := compositor.NewMemory(doc)
//	composer := surface.NewComposer()
//	p, err := preview.Load(ctx, comp, 800, 600,
//	    preview.WithSurfaceFactory(composer.NewSurface))
//	if err != nil {
//	    // fall back to the live page
//	}
//	defer p.Close()
//
//	for !p.RequiredTilesLoaded() {
//	    <-p.Ready()
//	    p.RunPending()
//	}
//	img := composer.Snapshot(p.Root().ID(), 800, 600)
//
// # Architecture
//
// Leaves first:
//   - Viewport: scroll offset, scale and visible size of one frame.
//   - BitmapState: the tiles of one generation, at one fixed scale.
//   - BitmapStateController: the visible and loading generations of a
//     frame and the swap between them.
//   - FrameMediator: bridges gestures to the viewport and the tile cache,
//     lays out sub-frames and pushes a RenderState to the frame's Surface.
//   - FrameCoordinator: one node of the frame tree, owning its mediator,
//     surface, scroll and scale controllers and child coordinators.
//   - Player: the root coordinator plus gesture routing.
//
// # Threading
//
// All player state is confined to one owner goroutine. Compositors run
// tile work elsewhere and deliver results through an Executor, which runs
// them back on the owner goroutine. A completion for a generation that has
// been superseded or cleared is dropped silently.
//
// # Coordinate System
//
// Content coordinates are unscaled frame pixels. Bitmap coordinates are
// content coordinates multiplied by the scale a generation was rendered
// at. Screen coordinates are relative to the top-left corner of a frame's
// on-screen rectangle. The origin is at the top-left and Y increases down.
package preview
