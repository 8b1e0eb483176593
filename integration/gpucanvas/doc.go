// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpucanvas presents a composed preview in a GPU-accelerated
// window.
//
// The data flow is:
//
//	preview.Player -> surface.Composer -> Canvas -> GPU Texture -> Window
//
// The composer paints on the CPU unless the provider shares its HAL device,
// in which case Canvas renders the composer's draw list on the GPU.
//
// # Usage
//
//	canvas, err := gpucanvas.New(app.GPUContextProvider(), 800, 600)
//	if err != nil {
//	    return err
//	}
//	defer canvas.Close()
//
//	app.OnDraw(func(dc *gogpu.Context) {
//	    player.RunPending()
//	    canvas.Compose(composer, player.Root().ID())
//	    canvas.RenderTo(dc, 0, 0)
//	})
//
// # Pixel Order
//
// Composed images are premultiplied RGBA. When the provider's surface
// format is BGRA8Unorm, pixels are swizzled during upload so the texture
// matches the swapchain.
//
// # Composite Shader
//
// When the provider also exposes HalDevice() any and HalQueue() any
// returning a hal.Device and hal.Queue, New compiles the tile composite
// shader with naga and builds a render pipeline around it. Compose then
// uploads each tile once as a texture, draws one clipped quad per tile
// into an offscreen target and reads the frame back into the upload
// buffer. Pixel reads stay identical for the caller; only where the tiles
// are blended changes.
//
// # Thread Safety
//
// Canvas is NOT safe for concurrent use. Use it from the render goroutine.
package gpucanvas
