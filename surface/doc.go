// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface provides software rendering surfaces for the preview
// player.
//
// An ImageSurface receives the RenderState of one frame and paints its
// tiles into an *image.RGBA. A Composer owns the surfaces of a whole frame
// tree and composes them, nesting every visible sub-frame inside its
// parent's screen area.
//
// # Usage
//
//	composer := surface.NewComposer(surface.Options{Background: color.White})
//	p, err := preview.Load(ctx, src, 800, 600,
//	    preview.WithSurfaceFactory(composer.NewSurface))
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	// On the owner goroutine, after tiles have arrived:
//	p.RunPending()
//	img := composer.Snapshot(p.Root().ID(), 800, 600)
//
// # Painting
//
// Tiles are mapped to the screen through RenderState.Matrix. When the
// matrix is an integral translation, tiles are copied with draw.Draw;
// otherwise they are resampled with draw.ApproxBiLinear, which is what a
// bitmap generation looks like while the next one is still loading after
// a zoom.
//
// # Debug Overlay
//
// With Options.Debug set, every frame is outlined and labelled with its
// id, scale and loaded/required tile counts, drawn with basicfont.
package surface
