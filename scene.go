// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
)

// Scene is the read-only view of the world the renderer draws. The engine
// never owns or mutates it.
type Scene interface {
	// VisibleObjects returns the draw items that survived culling.
	VisibleObjects() []DrawItem
}

// DrawItem is one visible object: the material template and defines that
// select its pipeline plus the GPU buffers to draw.
type DrawItem struct {
	Name string

	// Template and Defines select the shader permutation.
	Template string
	Defines  shader.Defines
	Layout   *pipeline.VertexLayout

	VertexBuffers []hal.Buffer
	IndexBuffer   hal.Buffer
	IndexFormat   gputypes.IndexFormat
	BindGroups    []hal.BindGroup

	VertexCount   uint32
	IndexCount    uint32
	InstanceCount uint32 // 0 means 1

	// Transparent items are drawn after opaque ones, back to front by Depth.
	Transparent bool
	Depth       float32
}

// Instances returns InstanceCount, treating 0 as 1.
func (d *DrawItem) Instances() uint32 {
	return max(d.InstanceCount, 1)
}

// StaticScene is a fixed list of draw items.
type StaticScene []DrawItem

// VisibleObjects returns s.
func (s StaticScene) VisibleObjects() []DrawItem { return s }

// SceneFunc adapts a function to Scene.
type SceneFunc func() []DrawItem

// VisibleObjects calls f.
func (f SceneFunc) VisibleObjects() []DrawItem { return f() }

type emptyScene struct{}

func (emptyScene) VisibleObjects() []DrawItem { return nil }
