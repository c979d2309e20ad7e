// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader expands WGSL templates into shader variants.
//
// A template is WGSL text with three kinds of directives: conditional
// blocks keyed on the active define set, includes of other templates, and
// interpolation of engine-provided snippets. The engine is deliberately
// small: a lexer, a parser producing a node tree, a condition evaluator and
// a location allocator. Slot assignment must be deterministic because the
// pipeline cache and cross-stage interface matching depend on it.
//
//	eng := shader.NewEngine(shader.FSSource{FS: os.DirFS("shaders")})
//	res, err := eng.Expand("forward", shader.NewDefines("HAS_UV"), shader.Vars{
//	    shader.VarVertexInput: layout.WGSL(),
//	})
//
// Unbalanced directives are reported by Load, missing includes and include
// cycles by the first Expand that reaches them. All of them are
// *TemplateError values and are meant to stop content loading.
package shader
