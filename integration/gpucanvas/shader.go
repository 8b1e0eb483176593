// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpucanvas

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed shaders/tile_composite.wgsl
var compositeShaderSource string

// CompositeShaderSource returns the WGSL source of the tile composite
// shader.
func CompositeShaderSource() string {
	return compositeShaderSource
}

// CompileCompositeShader compiles the tile composite shader to SPIR-V
// words.
func CompileCompositeShader() ([]uint32, error) {
	spirvBytes, err := naga.Compile(compositeShaderSource)
	if err != nil {
		return nil, fmt.Errorf("gpucanvas: compile composite shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}
