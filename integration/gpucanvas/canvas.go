// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpucanvas

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/preview"
	"github.com/gogpu/preview/surface"
)

// Common errors returned by Canvas operations.
var (
	// ErrCanvasClosed is returned when operations are attempted on a closed canvas.
	ErrCanvasClosed = errors.New("gpucanvas: canvas is closed")

	// ErrInvalidDimensions is returned when width or height is invalid.
	ErrInvalidDimensions = errors.New("gpucanvas: invalid dimensions")

	// ErrNilProvider is returned when a nil DeviceProvider is passed.
	ErrNilProvider = errors.New("gpucanvas: nil DeviceProvider")

	// ErrNilTarget is returned when RenderTo gets no target.
	ErrNilTarget = errors.New("gpucanvas: nil render target")
)

// Target creates and draws textures. A gogpu draw context satisfies it.
type Target interface {
	NewTextureFromRGBA(width, height int, data []byte) (any, error)
	DrawTexture(tex any, x, y float32) error
}

// textureDestroyer matches the gogpu texture Destroy signature.
type textureDestroyer interface {
	Destroy()
}

// halProvider is implemented by providers that share their HAL device and
// queue.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// Canvas owns the GPU texture a composed preview is shown through.
type Canvas struct {
	provider gpucontext.DeviceProvider
	width    int
	height   int
	bgra     bool

	// frame is the composition target, pixels the upload buffer in the
	// texture's channel order.
	frame  *image.RGBA
	pixels []byte

	texture     any
	oldTexture  any // replaced texture awaiting destruction
	dirty       bool
	sizeChanged bool

	// gpu composes tiles on the provider's HAL device; nil composes on
	// the CPU.
	gpu *compositePipeline

	closed bool
}

// New creates a canvas for the provider's device. When the provider shares
// its HAL device and queue, tiles are composed by the composite shader on
// that device; otherwise, or when the pipeline cannot be created, they are
// composed on the CPU.
func New(provider gpucontext.DeviceProvider, width, height int) (*Canvas, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, width, height)
	}

	c := &Canvas{
		provider: provider,
		bgra:     isBGRA(provider.SurfaceFormat()),
		dirty:    true,
	}
	c.allocate(width, height)

	if device, queue, ok := halDeviceQueue(provider); ok {
		gpu, err := newCompositePipeline(device, queue)
		if err != nil {
			preview.Logger().Warn("gpucanvas: composite pipeline unavailable, composing on CPU",
				slog.Any("error", err))
		} else {
			c.gpu = gpu
		}
	}
	return c, nil
}

func isBGRA(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatBGRA8Unorm
}

func (c *Canvas) allocate(width, height int) {
	c.width = width
	c.height = height
	c.frame = image.NewRGBA(image.Rect(0, 0, width, height))
	c.pixels = make([]byte, width*height*4)
}

func halDeviceQueue(provider gpucontext.DeviceProvider) (hal.Device, hal.Queue, bool) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, nil, false
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, false
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, false
	}
	return device, queue, true
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int {
	return c.width
}

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int {
	return c.height
}

// IsBGRA reports whether uploads are swizzled to BGRA.
func (c *Canvas) IsBGRA() bool {
	return c.bgra
}

// IsDirty reports whether new pixels are waiting for upload.
func (c *Canvas) IsDirty() bool {
	return c.dirty
}

// ShaderModule returns the tile composite shader module, or nil when tiles
// are composed on the CPU.
func (c *Canvas) ShaderModule() hal.ShaderModule {
	if c.gpu == nil {
		return nil
	}
	return c.gpu.shader
}

// UsesGPU reports whether Compose draws tiles on the HAL device.
func (c *Canvas) UsesGPU() bool {
	return c.gpu != nil
}

// Compose composes the frame tree rooted at root into the canvas.
//
// On the GPU path the composer's draw list is rendered by the composite
// shader and read back into the upload buffer. Debug overlays need the CPU
// composer. A GPU failure is logged, the pipeline is released and this and
// later frames are composed on the CPU.
func (c *Canvas) Compose(composer *surface.Composer, root preview.FrameID) error {
	if c.closed {
		return ErrCanvasClosed
	}
	if c.gpu != nil && !composer.Options().Debug {
		draws := composer.DrawList(root, image.Rect(0, 0, c.width, c.height))
		err := c.gpu.render(draws, c.width, c.height, c.pixels, c.bgra)
		if err == nil {
			c.dirty = true
			return nil
		}
		preview.Logger().Warn("gpucanvas: GPU compose failed, falling back to CPU",
			slog.Int("draws", len(draws)),
			slog.Any("error", err))
		c.gpu.destroy()
		c.gpu = nil
	}
	composer.Compose(c.frame, root)
	return c.Upload(c.frame)
}

// Upload copies img into the upload buffer. Pixels outside the canvas are
// dropped; canvas pixels outside img become transparent.
func (c *Canvas) Upload(img *image.RGBA) error {
	if c.closed {
		return ErrCanvasClosed
	}
	clear(c.pixels)
	b := img.Bounds()
	w := min(b.Dx(), c.width)
	h := min(b.Dy(), c.height)
	for y := 0; y < h; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):][:w*4]
		dst := c.pixels[y*c.width*4:][:w*4]
		if !c.bgra {
			copy(dst, src)
			continue
		}
		for i := 0; i < len(src); i += 4 {
			dst[i+0] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+0]
			dst[i+3] = src[i+3]
		}
	}
	c.dirty = true
	return nil
}

// Pixels returns the upload buffer. It is only valid until the next Upload.
func (c *Canvas) Pixels() []byte {
	return c.pixels
}

// Resize changes the canvas dimensions and clears it.
func (c *Canvas) Resize(width, height int) error {
	if c.closed {
		return ErrCanvasClosed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, width, height)
	}
	if c.width == width && c.height == height {
		return nil
	}
	c.allocate(width, height)
	c.sizeChanged = true
	c.dirty = true
	return nil
}

// Flush makes the texture current. The texture is created lazily by the
// first RenderTo; later flushes update it in place through
// gpucontext.TextureUpdater.
func (c *Canvas) Flush() (any, error) {
	if c.closed {
		return nil, ErrCanvasClosed
	}

	// The old texture may still be referenced by in-flight command buffers;
	// it is destroyed after the replacement has been written.
	if c.sizeChanged {
		if c.texture != nil {
			destroyTexture(c.oldTexture)
			c.oldTexture = c.texture
			c.texture = nil
		}
		c.sizeChanged = false
	}

	if !c.dirty && c.texture != nil {
		return c.texture, nil
	}
	if c.texture == nil {
		return nil, nil
	}
	if updater, ok := c.texture.(gpucontext.TextureUpdater); ok {
		if err := updater.UpdateData(c.pixels); err != nil {
			return nil, fmt.Errorf("gpucanvas: texture update failed: %w", err)
		}
	}
	c.dirty = false
	return c.texture, nil
}

// Texture returns the current texture without flushing.
func (c *Canvas) Texture() any {
	return c.texture
}

// RenderTo flushes the canvas and draws its texture at (x, y).
func (c *Canvas) RenderTo(target Target, x, y float32) error {
	if c.closed {
		return ErrCanvasClosed
	}
	if target == nil {
		return ErrNilTarget
	}

	tex, err := c.Flush()
	if err != nil {
		return err
	}
	if tex == nil {
		tex, err = target.NewTextureFromRGBA(c.width, c.height, c.pixels)
		if err != nil {
			return fmt.Errorf("gpucanvas: create texture: %w", err)
		}
		// Composed pixels are premultiplied.
		if pt, ok := tex.(interface{ SetPremultiplied(bool) }); ok {
			pt.SetPremultiplied(true)
		}
		c.texture = tex
		c.dirty = false

		destroyTexture(c.oldTexture)
		c.oldTexture = nil
	}
	return target.DrawTexture(tex, x, y)
}

// Close releases the textures and the composite pipeline. Close is
// idempotent.
func (c *Canvas) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	destroyTexture(c.oldTexture)
	destroyTexture(c.texture)
	c.oldTexture, c.texture = nil, nil

	if c.gpu != nil {
		c.gpu.destroy()
		c.gpu = nil
	}
	c.provider = nil
	c.frame, c.pixels = nil, nil
	return nil
}

func destroyTexture(tex any) {
	if d, ok := tex.(textureDestroyer); ok {
		d.Destroy()
	}
}
