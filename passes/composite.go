// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package passes

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
)

// CompositeOptions configures a Composite node.
type CompositeOptions struct {
	// Template defaults to CompositeTemplate. A replacement must declare
	// the same group 0 bindings: the scene color texture at binding 0 and
	// a filtering sampler at binding 1.
	Template string
	// Defines select the variant, e.g. TONEMAP or EXPOSURE=1.5.
	Defines shader.Defines
	// ClearColor fills the output before the fullscreen draw.
	ClearColor gputypes.Color
}

// Composite samples the scene color target into the frame output.
//
// The node owns a sampler and a bind group layout, created on first use,
// and one bind group per frame. The previous frame's bind group is retired
// by the next Prepare and destroyed once that frame has completed on the
// GPU. Call Close to release everything.
type Composite struct {
	opts CompositeOptions

	retire    func(func())
	pipelines *pipeline.Cache
	device    hal.Device
	layout    hal.BindGroupLayout
	sampler   hal.Sampler
	bindGroup hal.BindGroup
	key       pipeline.Key
}

// NewComposite returns a Composite node.
func NewComposite(opts CompositeOptions) *Composite {
	if opts.Template == "" {
		opts.Template = CompositeTemplate
	}
	return &Composite{opts: opts}
}

// Name implements framegraph.RenderNode.
func (c *Composite) Name() string { return "composite" }

// Prepare implements framegraph.RenderNode.
func (c *Composite) Prepare(ctx *framegraph.PrepareContext) error {
	c.retire = ctx.Retire
	c.pipelines = ctx.Pipelines()
	c.releaseBindGroup()

	targets, ok := Targets(ctx.Blackboard())
	if !ok {
		return ErrNoSceneTargets
	}
	if err := c.ensureResources(ctx.Device()); err != nil {
		return err
	}

	compiled, err := ctx.Pipelines().GetOrCompile(pipeline.Request{
		Template:         c.opts.Template,
		Defines:          c.opts.Defines,
		Target:           pipeline.FullscreenTarget(ctx.Target().Format),
		BindGroupLayouts: []hal.BindGroupLayout{c.layout},
		Label:            "composite",
	})
	if err != nil {
		return err
	}
	c.key = compiled.Key

	view, err := ctx.Pool().TextureView(targets.Color)
	if err != nil {
		return fmt.Errorf("scene color: %w", err)
	}
	c.bindGroup, err = c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "composite_bind",
		Layout: c.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: c.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	return nil
}

// ensureResources creates the frame-independent GPU objects.
func (c *Composite) ensureResources(device hal.Device) error {
	if c.layout != nil {
		return nil
	}
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "composite_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}

	layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "composite_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		device.DestroySampler(sampler)
		return fmt.Errorf("create bind group layout: %w", err)
	}

	c.device = device
	c.sampler = sampler
	c.layout = layout
	return nil
}

// Run implements framegraph.RenderNode.
func (c *Composite) Run(ctx *framegraph.ExecuteContext, enc hal.CommandEncoder) error {
	compiled, ok := ctx.Pipelines().Lookup(c.key)
	if !ok {
		return fmt.Errorf("composite: pipeline %s not cached", c.key)
	}

	pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "composite",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       ctx.Output(),
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: c.opts.ClearColor,
		}},
	})
	defer pass.End()

	pass.SetPipeline(compiled.Pipeline)
	if !compiled.Fallback {
		pass.SetBindGroup(0, c.bindGroup, nil)
	}
	pass.Draw(3, 1, 0, 0)
	return nil
}

func (c *Composite) releaseBindGroup() {
	if c.bindGroup == nil {
		return
	}
	device, bg := c.device, c.bindGroup
	c.release(func() { device.DestroyBindGroup(bg) })
	c.bindGroup = nil
}

// release hands destroy to the engine, or runs it when the node was never
// prepared.
func (c *Composite) release(destroy func()) {
	if c.retire == nil {
		destroy()
		return
	}
	c.retire(destroy)
}

// Close releases the node's GPU objects and drops the pipelines built
// against its bind group layout. Objects the last frame may still use are
// destroyed once it completes. The node can be used again afterwards; it
// recreates them on the next Prepare.
func (c *Composite) Close() {
	if c.device == nil {
		return
	}
	c.releaseBindGroup()
	if c.pipelines != nil {
		c.pipelines.EvictBindGroupLayout(c.layout)
	}
	device, layout, sampler := c.device, c.layout, c.sampler
	c.release(func() {
		device.DestroyBindGroupLayout(layout)
		device.DestroySampler(sampler)
	})
	c.layout = nil
	c.sampler = nil
	c.device = nil
}

var _ framegraph.RenderNode = (*Composite)(nil)
