// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"github.com/gogpu/gputypes"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
	"github.com/gogpu/framegraph/transient"
)

// Option configures an Engine during creation.
//
// Example:
//
//	engine, err := framegraph.NewEngine(provider, surface,
//	    framegraph.WithSize(1280, 720),
//	    framegraph.WithShaderSource(passes.Source()),
//	    framegraph.WithPoolOptions(transient.WithBudget(256<<20)),
//	)
type Option func(*options)

type options struct {
	format      gputypes.TextureFormat
	width       uint32
	height      uint32
	presentMode gputypes.PresentMode

	source    shader.Source
	shaderDir string
	watch     bool

	poolOpts   []transient.Option
	compiler   pipeline.Compiler
	registerer prometheus.Registerer

	err error
}

// defaultOptions returns the default engine options.
func defaultOptions() options {
	return options{
		presentMode: gputypes.PresentModeFifo,
	}
}

// WithSurfaceFormat overrides the output format. By default the format
// comes from the DeviceProvider, falling back to BGRA8Unorm.
func WithSurfaceFormat(f gputypes.TextureFormat) Option {
	return func(o *options) { o.format = f }
}

// WithSize sets the initial output size. With a surface, the surface is
// configured immediately; headless engines render into an offscreen
// texture of this size.
func WithSize(width, height uint32) Option {
	return func(o *options) {
		o.width = width
		o.height = height
	}
}

// WithPresentMode sets the surface present mode. The default is Fifo.
func WithPresentMode(m gputypes.PresentMode) Option {
	return func(o *options) { o.presentMode = m }
}

// WithShaderSource sets where shader templates are loaded from. Templates
// from a shader directory, if any, take precedence.
func WithShaderSource(src shader.Source) Option {
	return func(o *options) { o.source = src }
}

// WithShaderDir loads templates from dir on disk. When watch is true the
// directory is watched and changed templates are recompiled between
// frames.
func WithShaderDir(dir string, watch bool) Option {
	return func(o *options) {
		o.shaderDir = dir
		o.watch = watch
	}
}

// WithPoolOptions passes options to the transient pool.
func WithPoolOptions(opts ...transient.Option) Option {
	return func(o *options) { o.poolOpts = append(o.poolOpts, opts...) }
}

// WithCompiler sets the shader compiler used by the pipeline cache.
func WithCompiler(c pipeline.Compiler) Option {
	return func(o *options) { o.compiler = c }
}

// WithMetrics registers the engine collector with reg on creation.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}
