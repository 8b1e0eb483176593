// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpucanvas

import (
	"strings"
	"testing"
)

// TestCompositeShaderSource verifies the embedded shader entry points.
func TestCompositeShaderSource(t *testing.T) {
	src := CompositeShaderSource()
	for _, req := range []string{
		"@vertex",
		"@fragment",
		"vs_main",
		"fs_main",
		"texture_2d<f32>",
		"sampler",
		"textureSample",
		"TileParams",
		"discard",
	} {
		if !strings.Contains(src, req) {
			t.Errorf("shader missing required element: %q", req)
		}
	}
}

// TestCompileCompositeShader verifies the shader compiles to SPIR-V.
func TestCompileCompositeShader(t *testing.T) {
	words, err := CompileCompositeShader()
	if err != nil {
		t.Fatalf("CompileCompositeShader() = %v", err)
	}
	if len(words) < 5 {
		t.Fatalf("SPIR-V too short: %d words", len(words))
	}
	const spirvMagic = 0x07230203
	if words[0] != spirvMagic {
		t.Errorf("magic = %#x, want %#x", words[0], spirvMagic)
	}
}
