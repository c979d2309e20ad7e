// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pipeline compiles and caches render pipeline permutations.
//
// A permutation is identified by a Key: the root template, the canonical
// define set, the vertex layout id and the fixed-function target state.
// Cache.GetOrCompile expands the template with a shader.Engine, compiles
// the result with a Compiler (naga SPIR-V by default) and creates the
// pipeline on a hal.Device.
//
//	layout := pipeline.NewVertexLayout(pipeline.Interleaved(
//	    pipeline.VertexAttribute{Name: "position", Format: gputypes.VertexFormatFloat32x3},
//	    pipeline.VertexAttribute{Name: "uv", Format: gputypes.VertexFormatFloat32x2},
//	))
//	compiled, err := cache.GetOrCompile(pipeline.Request{
//	    Template: "forward",
//	    Defines:  shader.NewDefines("HAS_UV"),
//	    Layout:   layout,
//	    Target:   pipeline.OpaqueTarget(surfaceFormat, gputypes.TextureFormatDepth24Plus),
//	})
//
// Permutations that fail to compile on the backend are replaced by a solid
// magenta placeholder that is cached for the same key, so a broken shader
// is visible on screen and reported once.
package pipeline
