// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpucanvas

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/preview/surface"
)

// tileParamsSize is the byte size of the TileParams uniform:
// transform, sizes, clip and extra, one vec4<f32> each.
const tileParamsSize = 64

// copyRowAlignment is the required bytes-per-row alignment of
// texture-to-buffer copies.
const copyRowAlignment = 256

// gpuWaitTimeout bounds the wait for one composed frame.
const gpuWaitTimeout = 5 * time.Second

// compositePipeline draws a surface.DrawList through the tile composite
// shader into an offscreen BGRA texture and reads the result back.
//
// Tile textures are cached by image and destroyed once a frame no longer
// draws them. Tile images are immutable after delivery, so a cached
// texture never goes stale.
type compositePipeline struct {
	device hal.Device
	queue  hal.Queue

	shader     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	sampler    hal.Sampler

	target        hal.Texture
	targetView    hal.TextureView
	width, height uint32

	textures map[*image.RGBA]*tileTexture
}

type tileTexture struct {
	tex  hal.Texture
	view hal.TextureView
	used bool
}

// newCompositePipeline compiles the composite shader and creates the
// render pipeline. Render targets are created by the first render.
func newCompositePipeline(device hal.Device, queue hal.Queue) (*compositePipeline, error) {
	p := &compositePipeline{
		device:   device,
		queue:    queue,
		textures: make(map[*image.RGBA]*tileTexture),
	}
	if err := p.createPipeline(); err != nil {
		p.destroy()
		return nil, err
	}
	return p, nil
}

func (p *compositePipeline) createPipeline() error {
	spirv, err := CompileCompositeShader()
	if err != nil {
		return err
	}
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "preview_tile_composite",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("gpucanvas: create shader module: %w", err)
	}
	p.shader = shader

	layout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "preview_tile_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("gpucanvas: create bind group layout: %w", err)
	}
	p.layout = layout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "preview_tile_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.layout},
	})
	if err != nil {
		return fmt.Errorf("gpucanvas: create pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	sampler, err := p.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "preview_tile_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("gpucanvas: create sampler: %w", err)
	}
	p.sampler = sampler

	// Tiles are premultiplied and painted back to front.
	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "preview_tile_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatBGRA8Unorm,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("gpucanvas: create render pipeline: %w", err)
	}
	p.pipeline = pipeline
	return nil
}

// ensureTarget creates the offscreen render target, recreating it when the
// size changes.
func (p *compositePipeline) ensureTarget(w, h uint32) error {
	if p.target != nil && p.width == w && p.height == h {
		return nil
	}
	p.destroyTarget()

	tex, err := p.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "preview_composite_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("gpucanvas: create render target: %w", err)
	}
	p.target = tex

	view, err := p.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "preview_composite_target_view",
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		p.destroyTarget()
		return fmt.Errorf("gpucanvas: create render target view: %w", err)
	}
	p.targetView = view
	p.width, p.height = w, h
	return nil
}

// tileTexture returns the texture holding img, uploading it on first use.
func (p *compositePipeline) tileTexture(img *image.RGBA) (*tileTexture, error) {
	if tt, ok := p.textures[img]; ok {
		tt.used = true
		return tt, nil
	}

	b := img.Bounds()
	w, h := uint32(b.Dx()), uint32(b.Dy()) //nolint:gosec // tile sizes fit uint32
	tex, err := p.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "preview_tile",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpucanvas: create tile texture: %w", err)
	}
	view, err := p.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "preview_tile_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		p.device.DestroyTexture(tex)
		return nil, fmt.Errorf("gpucanvas: create tile view: %w", err)
	}

	p.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		img.Pix[img.PixOffset(b.Min.X, b.Min.Y):],
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(img.Stride), //nolint:gosec // stride fits uint32
			RowsPerImage: h,
		},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)

	tt := &tileTexture{tex: tex, view: view, used: true}
	p.textures[img] = tt
	return tt, nil
}

// evictUnused destroys the textures of tiles the last frame did not draw
// and clears the marks for the next one.
func (p *compositePipeline) evictUnused() {
	for img, tt := range p.textures {
		if !tt.used {
			p.destroyTileTexture(tt)
			delete(p.textures, img)
			continue
		}
		tt.used = false
	}
}

// render draws draws into a width x height frame and writes the result to
// dst, tightly packed, as BGRA when bgra is set and RGBA otherwise.
func (p *compositePipeline) render(draws []surface.TileDraw, width, height int, dst []byte, bgra bool) error {
	w, h := uint32(width), uint32(height) //nolint:gosec // canvas dimensions fit uint32
	if err := p.ensureTarget(w, h); err != nil {
		return err
	}
	defer p.evictUnused()

	var (
		buffers    []hal.Buffer
		bindGroups []hal.BindGroup
	)
	defer func() {
		for _, bg := range bindGroups {
			p.device.DestroyBindGroup(bg)
		}
		for _, buf := range buffers {
			p.device.DestroyBuffer(buf)
		}
	}()

	for _, d := range draws {
		if d.Image == nil || d.Image.Bounds().Empty() || d.Clip.Empty() {
			continue
		}
		tt, err := p.tileTexture(d.Image)
		if err != nil {
			return err
		}
		uniform, err := p.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "preview_tile_params",
			Size:  tileParamsSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("gpucanvas: create uniform buffer: %w", err)
		}
		buffers = append(buffers, uniform)
		p.queue.WriteBuffer(uniform, 0, tileParams(d, width, height))

		bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "preview_tile_bind",
			Layout: p.layout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: uniform.NativeHandle(), Offset: 0, Size: tileParamsSize,
				}},
				{Binding: 1, Resource: gputypes.TextureViewBinding{
					TextureView: uintptr(tt.view.NativeHandle()),
				}},
				{Binding: 2, Resource: gputypes.SamplerBinding{
					Sampler: uintptr(p.sampler.NativeHandle()),
				}},
			},
		})
		if err != nil {
			return fmt.Errorf("gpucanvas: create bind group: %w", err)
		}
		bindGroups = append(bindGroups, bg)
	}

	return p.encodeAndReadback(w, h, bindGroups, dst, bgra)
}

func (p *compositePipeline) encodeAndReadback(w, h uint32, bindGroups []hal.BindGroup, dst []byte, bgra bool) error {
	encoder, err := p.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "preview_composite_encoder",
	})
	if err != nil {
		return fmt.Errorf("gpucanvas: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("preview_composite"); err != nil {
		return fmt.Errorf("gpucanvas: begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "preview_composite_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       p.targetView,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
			},
		},
	})
	rp.SetPipeline(p.pipeline)
	for _, bg := range bindGroups {
		rp.SetBindGroup(0, bg, nil)
		rp.Draw(6, 1, 0, 0)
	}
	rp.End()

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: p.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	rowBytes := alignedRowBytes(w)
	size := uint64(rowBytes) * uint64(h)
	staging, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "preview_composite_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("gpucanvas: create staging buffer: %w", err)
	}
	defer p.device.DestroyBuffer(staging)

	encoder.CopyTextureToBuffer(p.target, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: rowBytes, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: p.target, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpucanvas: end encoding: %w", err)
	}
	defer p.device.FreeCommandBuffer(cmdBuf)

	fence, err := p.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpucanvas: create fence: %w", err)
	}
	defer p.device.DestroyFence(fence)

	if err := p.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpucanvas: submit: %w", err)
	}
	ok, err := p.device.Wait(fence, 1, gpuWaitTimeout)
	if err != nil || !ok {
		return fmt.Errorf("gpucanvas: wait for GPU: ok=%v err=%w", ok, err)
	}

	readback := make([]byte, size)
	if err := p.queue.ReadBuffer(staging, 0, readback); err != nil {
		return fmt.Errorf("gpucanvas: readback: %w", err)
	}
	unpackRows(dst, readback, int(w), int(h), int(rowBytes), bgra)
	return nil
}

// tileParams packs the TileParams uniform for d on a width x height target.
func tileParams(d surface.TileDraw, width, height int) []byte {
	b := d.Image.Bounds()
	vals := [tileParamsSize / 4]float32{
		float32(d.ScaleX), float32(d.ScaleY), float32(d.OffsetX), float32(d.OffsetY),
		float32(b.Dx()), float32(b.Dy()), float32(width), float32(height),
		float32(d.Clip.Min.X), float32(d.Clip.Min.Y), float32(d.Clip.Max.X), float32(d.Clip.Max.Y),
		1, 0, 0, 0,
	}
	buf := make([]byte, tileParamsSize)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func alignedRowBytes(w uint32) uint32 {
	n := w * 4
	return (n + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
}

// unpackRows copies BGRA rows of stride bytes from src into dst, tightly
// packed, swizzling to RGBA unless bgra is set.
func unpackRows(dst, src []byte, w, h, stride int, bgra bool) {
	for y := 0; y < h; y++ {
		row := src[y*stride:][:w*4]
		out := dst[y*w*4:][:w*4]
		if bgra {
			copy(out, row)
			continue
		}
		for i := 0; i < len(row); i += 4 {
			out[i+0] = row[i+2]
			out[i+1] = row[i+1]
			out[i+2] = row[i+0]
			out[i+3] = row[i+3]
		}
	}
}

func (p *compositePipeline) destroyTileTexture(tt *tileTexture) {
	p.device.DestroyTextureView(tt.view)
	p.device.DestroyTexture(tt.tex)
}

func (p *compositePipeline) destroyTarget() {
	if p.targetView != nil {
		p.device.DestroyTextureView(p.targetView)
		p.targetView = nil
	}
	if p.target != nil {
		p.device.DestroyTexture(p.target)
		p.target = nil
	}
	p.width, p.height = 0, 0
}

// destroy releases every GPU object in reverse creation order. It is safe
// on a partly created pipeline and idempotent.
func (p *compositePipeline) destroy() {
	for img, tt := range p.textures {
		p.destroyTileTexture(tt)
		delete(p.textures, img)
	}
	p.destroyTarget()
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.layout != nil {
		p.device.DestroyBindGroupLayout(p.layout)
		p.layout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
