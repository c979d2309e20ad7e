// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/transient"
)

// Target describes the frame's output texture.
type Target struct {
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
}

// PrepareContext is handed to RenderNode.Prepare. It is the only place a
// node can reach the transient pool, compile pipelines and write to the
// blackboard.
//
// The context is valid only for the duration of the Prepare call.
type PrepareContext struct {
	engine *Engine
	scene  Scene
	frame  uint64
	target Target
	stage  Stage
}

// Pool returns the transient resource pool.
func (c *PrepareContext) Pool() *transient.Pool { return c.engine.pool }

// Pipelines returns the pipeline cache.
func (c *PrepareContext) Pipelines() *pipeline.Cache { return c.engine.pipelines }

// Scene returns the frame's scene.
func (c *PrepareContext) Scene() Scene { return c.scene }

// Blackboard returns the writable frame blackboard.
func (c *PrepareContext) Blackboard() *Blackboard { return c.engine.blackboard }

// Device returns the HAL device.
func (c *PrepareContext) Device() hal.Device { return c.engine.device }

// Queue returns the HAL queue, for uploads such as uniform buffer writes.
func (c *PrepareContext) Queue() hal.Queue { return c.engine.queue }

// Retire schedules destroy to run once every frame submitted so far has
// completed. It remains valid after Prepare returns.
func (c *PrepareContext) Retire(destroy func()) { c.engine.Retire(destroy) }

// Frame returns the frame index, starting at 1.
func (c *PrepareContext) Frame() uint64 { return c.frame }

// Target returns the output description.
func (c *PrepareContext) Target() Target { return c.target }

// Stage returns the stage of the node being prepared.
func (c *PrepareContext) Stage() Stage { return c.stage }

// ExecuteContext is handed to RenderNode.Run. Everything it exposes is
// read-only: resources are resolved, not acquired, and pipelines are
// looked up, not compiled.
type ExecuteContext struct {
	resources  transient.Resolver
	pipelines  pipeline.Lookup
	blackboard BlackboardReader
	output     hal.TextureView
	scene      Scene
	frame      uint64
	target     Target
	stage      Stage
}

// Resources returns the read-only transient resource resolver.
func (c *ExecuteContext) Resources() transient.Resolver { return c.resources }

// Pipelines returns the read-only pipeline lookup.
func (c *ExecuteContext) Pipelines() pipeline.Lookup { return c.pipelines }

// Blackboard returns the read-only frame blackboard.
func (c *ExecuteContext) Blackboard() BlackboardReader { return c.blackboard }

// Output returns the view of the texture that will be presented.
func (c *ExecuteContext) Output() hal.TextureView { return c.output }

// Scene returns the frame's scene.
func (c *ExecuteContext) Scene() Scene { return c.scene }

// Frame returns the frame index, starting at 1.
func (c *ExecuteContext) Frame() uint64 { return c.frame }

// Target returns the output description.
func (c *ExecuteContext) Target() Target { return c.target }

// Stage returns the stage of the running node.
func (c *ExecuteContext) Stage() Stage { return c.stage }
