// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package passes

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/transient"
)

// Default scene target formats.
const (
	DefaultColorFormat = gputypes.TextureFormatRGBA16Float
	DefaultDepthFormat = gputypes.TextureFormatDepth24Plus
)

// ClearOptions configures a Clear node.
type ClearOptions struct {
	// Color is the clear color of the scene color target.
	Color gputypes.Color
	// ColorFormat defaults to DefaultColorFormat.
	ColorFormat gputypes.TextureFormat
	// DepthFormat defaults to DefaultDepthFormat.
	DepthFormat gputypes.TextureFormat
	// NoDepth skips the depth target.
	NoDepth bool
}

// Clear acquires the frame's scene targets, clears them and publishes them
// as SceneTargets.
type Clear struct {
	opts ClearOptions
}

// NewClear returns a Clear node.
func NewClear(opts ClearOptions) *Clear {
	if opts.ColorFormat == gputypes.TextureFormatUndefined {
		opts.ColorFormat = DefaultColorFormat
	}
	if opts.DepthFormat == gputypes.TextureFormatUndefined {
		opts.DepthFormat = DefaultDepthFormat
	}
	return &Clear{opts: opts}
}

// Name implements framegraph.RenderNode.
func (c *Clear) Name() string { return "clear" }

// Prepare implements framegraph.RenderNode.
func (c *Clear) Prepare(ctx *framegraph.PrepareContext) error {
	t := ctx.Target()
	if t.Width == 0 || t.Height == 0 {
		return ErrEmptyTarget
	}
	targets := SceneTargets{
		ColorFormat: c.opts.ColorFormat,
		Width:       t.Width,
		Height:      t.Height,
	}

	var err error
	targets.Color, err = ctx.Pool().Acquire(transient.TextureDesc("scene color", t.Width, t.Height,
		c.opts.ColorFormat, gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding))
	if err != nil {
		return fmt.Errorf("scene color: %w", err)
	}
	if !c.opts.NoDepth {
		targets.DepthFormat = c.opts.DepthFormat
		targets.Depth, err = ctx.Pool().Acquire(transient.TextureDesc("scene depth", t.Width, t.Height,
			c.opts.DepthFormat, gputypes.TextureUsageRenderAttachment))
		if err != nil {
			return fmt.Errorf("scene depth: %w", err)
		}
	}

	PublishTargets(ctx.Blackboard(), targets)
	return nil
}

// Run implements framegraph.RenderNode.
func (c *Clear) Run(ctx *framegraph.ExecuteContext, enc hal.CommandEncoder) error {
	targets, ok := Targets(ctx.Blackboard())
	if !ok {
		return ErrNoSceneTargets
	}
	color, depth, err := targetViews(ctx.Resources(), targets)
	if err != nil {
		return err
	}

	desc := &hal.RenderPassDescriptor{
		Label: "clear",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       color,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: c.opts.Color,
		}},
	}
	if depth != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:            depth,
			DepthLoadOp:     gputypes.LoadOpClear,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	enc.BeginRenderPass(desc).End()
	return nil
}

var _ framegraph.RenderNode = (*Clear)(nil)
