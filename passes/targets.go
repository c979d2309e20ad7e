// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package passes

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/transient"
)

// sceneTargetsKey is the blackboard name SceneTargets is stored under.
const sceneTargetsKey = "scene"

// SceneTargets are the per-frame render targets shared by the passes.
type SceneTargets struct {
	Color       transient.Handle
	ColorFormat gputypes.TextureFormat
	Depth       transient.Handle // zero when the frame has no depth
	DepthFormat gputypes.TextureFormat
	Width       uint32
	Height      uint32
}

// HasDepth reports whether a depth target was acquired.
func (t SceneTargets) HasDepth() bool { return !t.Depth.IsZero() }

// PublishTargets stores t on the frame blackboard. Clear calls it; custom
// nodes that allocate their own scene targets can call it instead.
func PublishTargets(bb *framegraph.Blackboard, t SceneTargets) {
	framegraph.Set(bb, sceneTargetsKey, t)
}

// Targets returns the scene targets published earlier in the frame.
func Targets(r framegraph.BlackboardReader) (SceneTargets, bool) {
	return framegraph.Get[SceneTargets](r, sceneTargetsKey)
}

// targetViews resolves the color and depth views of t.
func targetViews(res transient.Resolver, t SceneTargets) (color, depth hal.TextureView, err error) {
	color, err = res.TextureView(t.Color)
	if err != nil {
		return nil, nil, err
	}
	if t.HasDepth() {
		depth, err = res.TextureView(t.Depth)
		if err != nil {
			return nil, nil, err
		}
	}
	return color, depth, nil
}
