// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpucanvas

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/preview"
	"github.com/gogpu/preview/surface"
)

// mockDevice implements gpucontext.Device for testing.
type mockDevice struct{}

func (m *mockDevice) Poll(wait bool) {}
func (m *mockDevice) Destroy()       {}

// mockQueue implements gpucontext.Queue for testing.
type mockQueue struct{}

// mockAdapter implements gpucontext.Adapter for testing.
type mockAdapter struct{}

// mockProvider implements gpucontext.DeviceProvider for testing.
type mockProvider struct {
	format gputypes.TextureFormat
}

func newMockProvider(format gputypes.TextureFormat) *mockProvider {
	return &mockProvider{format: format}
}

func (m *mockProvider) Device() gpucontext.Device             { return &mockDevice{} }
func (m *mockProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return m.format }

// foreignHalProvider exposes a HAL device of the wrong type.
type foreignHalProvider struct {
	mockProvider
}

func (p *foreignHalProvider) HalDevice() any { return "not a device" }
func (p *foreignHalProvider) HalQueue() any  { return nil }

// mockTexture implements gpucontext.TextureUpdater for testing.
type mockTexture struct {
	width, height int
	data          []byte
	updated       int
	destroyed     bool
	premultiplied bool
	failUpdate    bool
}

func (m *mockTexture) UpdateData(data []byte) error {
	if m.failUpdate {
		return errors.New("mock update failed")
	}
	m.data = append(m.data[:0], data...)
	m.updated++
	return nil
}

func (m *mockTexture) Destroy()                  { m.destroyed = true }
func (m *mockTexture) SetPremultiplied(pre bool) { m.premultiplied = pre }

// mockTarget implements Target for testing.
type mockTarget struct {
	textures  []*mockTexture
	drawn     any
	x, y      float32
	drawCount int
	failNext  bool
}

func (m *mockTarget) NewTextureFromRGBA(width, height int, data []byte) (any, error) {
	if m.failNext {
		m.failNext = false
		return nil, errors.New("mock texture creation failed")
	}
	tex := &mockTexture{width: width, height: height, data: append([]byte(nil), data...)}
	m.textures = append(m.textures, tex)
	return tex, nil
}

func (m *mockTarget) DrawTexture(tex any, x, y float32) error {
	m.drawn = tex
	m.x, m.y = x, y
	m.drawCount++
	return nil
}

// TestNew tests canvas creation.
func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		provider gpucontext.DeviceProvider
		width    int
		height   int
		wantErr  error
		wantBGRA bool
	}{
		{"rgba surface", newMockProvider(gputypes.TextureFormatRGBA8Unorm), 800, 600, nil, false},
		{"bgra surface", newMockProvider(gputypes.TextureFormatBGRA8Unorm), 800, 600, nil, true},
		{"foreign hal device", &foreignHalProvider{mockProvider{format: gputypes.TextureFormatRGBA8Unorm}}, 10, 10, nil, false},
		{"nil provider", nil, 800, 600, ErrNilProvider, false},
		{"zero width", newMockProvider(gputypes.TextureFormatRGBA8Unorm), 0, 600, ErrInvalidDimensions, false},
		{"negative height", newMockProvider(gputypes.TextureFormatRGBA8Unorm), 800, -1, ErrInvalidDimensions, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.provider, tt.width, tt.height)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error = %v", err)
			}
			defer c.Close()

			if c.Width() != tt.width || c.Height() != tt.height {
				t.Errorf("size = %dx%d, want %dx%d", c.Width(), c.Height(), tt.width, tt.height)
			}
			if c.IsBGRA() != tt.wantBGRA {
				t.Errorf("IsBGRA() = %v, want %v", c.IsBGRA(), tt.wantBGRA)
			}
			if !c.IsDirty() {
				t.Error("IsDirty() = false, want true (newly created)")
			}
			if c.ShaderModule() != nil {
				t.Error("ShaderModule() != nil without a HAL device")
			}
		})
	}
}

// TestUploadChannelOrder tests RGBA and BGRA uploads.
func TestUploadChannelOrder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 40, G: 50, B: 60, A: 255})

	tests := []struct {
		format gputypes.TextureFormat
		want   []byte
	}{
		{gputypes.TextureFormatRGBA8Unorm, []byte{10, 20, 30, 255, 40, 50, 60, 255}},
		{gputypes.TextureFormatBGRA8Unorm, []byte{30, 20, 10, 255, 60, 50, 40, 255}},
	}
	for _, tt := range tests {
		c, _ := New(newMockProvider(tt.format), 2, 1)
		if err := c.Upload(img); err != nil {
			t.Fatal(err)
		}
		got := c.Pixels()
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("format %v: pixels = %v, want %v", tt.format, got, tt.want)
				break
			}
		}
		c.Close()
	}
}

// TestUploadClipsToCanvas tests uploads of mismatched sizes.
func TestUploadClipsToCanvas(t *testing.T) {
	c, _ := New(newMockProvider(gputypes.TextureFormatRGBA8Unorm), 4, 4)
	defer c.Close()

	big := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range big.Pix {
		big.Pix[i] = 0xff
	}
	if err := c.Upload(big); err != nil {
		t.Fatal(err)
	}
	if len(c.Pixels()) != 4*4*4 {
		t.Fatalf("len(Pixels()) = %d, want 64", len(c.Pixels()))
	}

	// A smaller, offset sub-image leaves the rest transparent.
	small := big.SubImage(image.Rect(2, 2, 4, 4)).(*image.RGBA)
	if err := c.Upload(small); err != nil {
		t.Fatal(err)
	}
	px := c.Pixels()
	if px[0] != 0xff || px[(1*4+1)*4] != 0xff {
		t.Error("sub-image pixels not copied")
	}
	if px[2*4] != 0 || px[(3*4+3)*4+3] != 0 {
		t.Error("pixels outside the upload were not cleared")
	}
}

// TestRenderTo tests lazy texture creation and reuse.
func TestRenderTo(t *testing.T) {
	c, _ := New(newMockProvider(gputypes.TextureFormatRGBA8Unorm), 8, 8)
	defer c.Close()
	target := &mockTarget{}

	if err := c.RenderTo(target, 5, 7); err != nil {
		t.Fatalf("RenderTo() = %v", err)
	}
	if len(target.textures) != 1 {
		t.Fatalf("created %d textures, want 1", len(target.textures))
	}
	tex := target.textures[0]
	if tex.width != 8 || tex.height != 8 || !tex.premultiplied {
		t.Errorf("texture = %dx%d premultiplied=%v", tex.width, tex.height, tex.premultiplied)
	}
	if target.drawn != tex || target.x != 5 || target.y != 7 {
		t.Errorf("drew %v at (%v, %v)", target.drawn, target.x, target.y)
	}
	if c.IsDirty() {
		t.Error("IsDirty() = true after RenderTo")
	}

	// Clean canvas: no update.
	if err := c.RenderTo(target, 0, 0); err != nil {
		t.Fatal(err)
	}
	if tex.updated != 0 || len(target.textures) != 1 {
		t.Errorf("clean render updated %d times, created %d textures", tex.updated, len(target.textures))
	}

	// Dirty canvas: update in place.
	c.Upload(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if err := c.RenderTo(target, 0, 0); err != nil {
		t.Fatal(err)
	}
	if tex.updated != 1 || len(target.textures) != 1 {
		t.Errorf("dirty render updated %d times, created %d textures", tex.updated, len(target.textures))
	}
}

// TestRenderToErrors tests failure paths.
func TestRenderToErrors(t *testing.T) {
	c, _ := New(newMockProvider(gputypes.TextureFormatRGBA8Unorm), 8, 8)
	if err := c.RenderTo(nil, 0, 0); !errors.Is(err, ErrNilTarget) {
		t.Errorf("RenderTo(nil) = %v, want ErrNilTarget", err)
	}
	target := &mockTarget{failNext: true}
	if err := c.RenderTo(target, 0, 0); err == nil {
		t.Error("RenderTo() with failing creator = nil")
	}
	if err := c.RenderTo(target, 0, 0); err != nil {
		t.Errorf("RenderTo() retry = %v", err)
	}

	target.textures[0].failUpdate = true
	c.Upload(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if err := c.RenderTo(target, 0, 0); err == nil {
		t.Error("RenderTo() with failing update = nil")
	}

	c.Close()
	if err := c.RenderTo(target, 0, 0); !errors.Is(err, ErrCanvasClosed) {
		t.Errorf("RenderTo() after Close = %v, want ErrCanvasClosed", err)
	}
	if err := c.Upload(image.NewRGBA(image.Rect(0, 0, 1, 1))); !errors.Is(err, ErrCanvasClosed) {
		t.Errorf("Upload() after Close = %v, want ErrCanvasClosed", err)
	}
}

// TestResize tests texture replacement on resize.
func TestResize(t *testing.T) {
	c, _ := New(newMockProvider(gputypes.TextureFormatRGBA8Unorm), 8, 8)
	defer c.Close()
	target := &mockTarget{}
	c.RenderTo(target, 0, 0)

	if err := c.Resize(0, 4); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Resize(0, 4) = %v, want ErrInvalidDimensions", err)
	}
	if err := c.Resize(8, 8); err != nil || c.IsDirty() {
		t.Errorf("Resize to the same size = %v, dirty %v", err, c.IsDirty())
	}
	if err := c.Resize(16, 4); err != nil {
		t.Fatal(err)
	}
	if len(c.Pixels()) != 16*4*4 {
		t.Errorf("len(Pixels()) = %d after resize", len(c.Pixels()))
	}
	if err := c.RenderTo(target, 0, 0); err != nil {
		t.Fatal(err)
	}
	if len(target.textures) != 2 {
		t.Fatalf("created %d textures, want 2", len(target.textures))
	}
	if !target.textures[0].destroyed {
		t.Error("old texture not destroyed")
	}
	if nt := target.textures[1]; nt.width != 16 || nt.height != 4 {
		t.Errorf("new texture = %dx%d, want 16x4", nt.width, nt.height)
	}
}

// TestClose tests resource release.
func TestClose(t *testing.T) {
	c, _ := New(newMockProvider(gputypes.TextureFormatRGBA8Unorm), 8, 8)
	target := &mockTarget{}
	c.RenderTo(target, 0, 0)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if !target.textures[0].destroyed {
		t.Error("texture not destroyed")
	}
	if c.Texture() != nil {
		t.Error("Texture() != nil after Close")
	}
}

// TestCompose tests composing a frame tree into the canvas.
func TestCompose(t *testing.T) {
	c, _ := New(newMockProvider(gputypes.TextureFormatBGRA8Unorm), 4, 4)
	defer c.Close()

	composer := surface.NewComposer(surface.Options{Background: color.RGBA{R: 0xff, A: 0xff}})
	id := preview.NewFrameID()
	composer.NewSurface(id).Update(preview.RenderState{Frame: id, Visible: true, Matrix: preview.Identity()})

	if err := c.Compose(composer, id); err != nil {
		t.Fatal(err)
	}
	px := c.Pixels()
	// Red in BGRA order.
	if px[0] != 0 || px[2] != 0xff || px[3] != 0xff {
		t.Errorf("first pixel = %v, want BGRA red", px[:4])
	}
}
