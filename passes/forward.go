// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package passes

import (
	"cmp"
	"errors"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
)

// ForwardOptions configures a Forward node.
type ForwardOptions struct {
	// Transparent selects the transparent draw items instead of the
	// opaque ones. Transparent items are blended and drawn back to front.
	Transparent bool
	// Template is used for items that name none. Defaults to
	// ForwardTemplate.
	Template string
	// Defines are merged into every item's defines.
	Defines shader.Defines
	// Bindings is WGSL substituted for {{ bindings }}, declaring the
	// resources behind BindGroupLayouts.
	Bindings         string
	BindGroupLayouts []hal.BindGroupLayout
}

// Forward draws the scene's visible objects into the scene targets.
type Forward struct {
	opts  ForwardOptions
	draws []forwardDraw

	// skipped counts items dropped in the last Prepare because their
	// template failed to expand.
	skipped int
}

type forwardDraw struct {
	item *framegraph.DrawItem
	key  pipeline.Key
}

// NewForward returns a Forward node.
func NewForward(opts ForwardOptions) *Forward {
	if opts.Template == "" {
		opts.Template = ForwardTemplate
	}
	return &Forward{opts: opts}
}

// Name implements framegraph.RenderNode.
func (f *Forward) Name() string {
	if f.opts.Transparent {
		return "forward transparent"
	}
	return "forward"
}

// Draws returns the number of draws recorded by the last Prepare.
func (f *Forward) Draws() int { return len(f.draws) }

// Skipped returns the number of items the last Prepare dropped.
func (f *Forward) Skipped() int { return f.skipped }

// Prepare implements framegraph.RenderNode. It compiles the pipeline of
// every selected item. An item whose template cannot be expanded is
// skipped and logged; the others are still drawn.
func (f *Forward) Prepare(ctx *framegraph.PrepareContext) error {
	f.draws = f.draws[:0]
	f.skipped = 0

	targets, ok := Targets(ctx.Blackboard())
	if !ok {
		return ErrNoSceneTargets
	}
	target := f.target(targets)

	items := ctx.Scene().VisibleObjects()
	var errs []error
	for i := range items {
		item := &items[i]
		if item.Transparent != f.opts.Transparent {
			continue
		}
		tmpl := item.Template
		if tmpl == "" {
			tmpl = f.opts.Template
		}
		compiled, err := ctx.Pipelines().GetOrCompile(pipeline.Request{
			Template:         tmpl,
			Defines:          shader.Merge(f.opts.Defines, item.Defines),
			Layout:           item.Layout,
			Target:           target,
			Bindings:         f.opts.Bindings,
			BindGroupLayouts: f.opts.BindGroupLayouts,
			Label:            item.Name,
		})
		if err != nil {
			f.skipped++
			errs = append(errs, err)
			framegraph.Logger().Debug("passes: draw item skipped",
				"node", f.Name(), "item", item.Name, "template", tmpl, "err", err)
			continue
		}
		f.draws = append(f.draws, forwardDraw{item: item, key: compiled.Key})
	}

	if f.opts.Transparent {
		slices.SortStableFunc(f.draws, func(a, b forwardDraw) int {
			return cmp.Compare(b.item.Depth, a.item.Depth)
		})
	}

	// A node with nothing left to draw reports why.
	if len(f.draws) == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (f *Forward) target(t SceneTargets) pipeline.TargetState {
	depth := gputypes.TextureFormatUndefined
	if t.HasDepth() {
		depth = t.DepthFormat
	}
	if f.opts.Transparent {
		return pipeline.TransparentTarget(t.ColorFormat, depth)
	}
	return pipeline.OpaqueTarget(t.ColorFormat, depth)
}

// Run implements framegraph.RenderNode.
func (f *Forward) Run(ctx *framegraph.ExecuteContext, enc hal.CommandEncoder) error {
	if len(f.draws) == 0 {
		return nil
	}
	targets, ok := Targets(ctx.Blackboard())
	if !ok {
		return ErrNoSceneTargets
	}
	color, depth, err := targetViews(ctx.Resources(), targets)
	if err != nil {
		return err
	}

	desc := &hal.RenderPassDescriptor{
		Label: f.Name(),
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    color,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	}
	if depth != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:          depth,
			DepthLoadOp:   gputypes.LoadOpLoad,
			DepthStoreOp:  gputypes.StoreOpStore,
			DepthReadOnly: f.opts.Transparent,
		}
	}

	pass := enc.BeginRenderPass(desc)
	defer pass.End()
	for _, d := range f.draws {
		compiled, ok := ctx.Pipelines().Lookup(d.key)
		if !ok {
			continue
		}
		drawItem(pass, compiled, d.item)
	}
	return nil
}

func drawItem(pass hal.RenderPassEncoder, compiled *pipeline.Compiled, item *framegraph.DrawItem) {
	pass.SetPipeline(compiled.Pipeline)
	// The placeholder pipeline has an empty layout.
	if !compiled.Fallback {
		for i, bg := range item.BindGroups {
			pass.SetBindGroup(uint32(i), bg, nil) //nolint:gosec // bind group count fits uint32
		}
	}
	for i, vb := range item.VertexBuffers {
		pass.SetVertexBuffer(uint32(i), vb, 0) //nolint:gosec // vertex buffer count fits uint32
	}
	if item.IndexBuffer != nil && item.IndexCount > 0 {
		format := item.IndexFormat
		if format == gputypes.IndexFormatUndefined {
			format = gputypes.IndexFormatUint32
		}
		pass.SetIndexBuffer(item.IndexBuffer, format, 0)
		pass.DrawIndexed(item.IndexCount, item.Instances(), 0, 0, 0)
		return
	}
	pass.Draw(item.VertexCount, item.Instances(), 0, 0)
}

var _ framegraph.RenderNode = (*Forward)(nil)
