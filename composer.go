// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/transient"
)

// Phase is the point in the frame where a node failed.
type Phase uint8

const (
	// PhaseRegister covers AddNode rejections.
	PhaseRegister Phase = iota
	// PhasePrepare covers errors and panics from RenderNode.Prepare.
	PhasePrepare
	// PhaseExecute covers errors and panics from RenderNode.Run.
	PhaseExecute
)

func (p Phase) String() string {
	switch p {
	case PhaseRegister:
		return "register"
	case PhasePrepare:
		return "prepare"
	case PhaseExecute:
		return "execute"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// NodeFailure records one node that failed and was skipped.
type NodeFailure struct {
	Node  string
	Stage Stage
	Phase Phase
	Err   error
}

func (f NodeFailure) Error() string {
	return fmt.Sprintf("framegraph: node %q (%v) failed in %v: %v", f.Node, f.Stage, f.Phase, f.Err)
}

func (f NodeFailure) Unwrap() error { return f.Err }

// FrameReport summarizes one Render call.
type FrameReport struct {
	// Frame is the engine frame index, starting at 1.
	Frame uint64
	// Executed lists the nodes whose Run succeeded, in execution order.
	Executed []string
	// Failures lists nodes that were skipped.
	Failures []NodeFailure
	// Dropped reports that nothing was presented.
	Dropped  bool
	Duration time.Duration
}

type queuedNode struct {
	stage Stage
	node  RenderNode
}

// Composer collects the nodes of one frame and renders them. Obtain one
// from Engine.BeginFrame; it is single use.
type Composer struct {
	engine   *Engine
	scene    Scene
	nodes    []queuedNode
	failures []NodeFailure
	consumed bool
}

// AddNode schedules node in stage. A nil node or an unknown stage is not
// scheduled and is reported as a PhaseRegister failure by Render.
func (c *Composer) AddNode(stage Stage, node RenderNode) {
	switch {
	case node == nil:
		c.failures = append(c.failures, NodeFailure{Node: "<nil>", Stage: stage, Phase: PhaseRegister, Err: ErrNilNode})
	case !stage.Valid():
		c.failures = append(c.failures, NodeFailure{Node: node.Name(), Stage: stage, Phase: PhaseRegister, Err: fmt.Errorf("%w: %v", ErrUnknownStage, stage)})
	default:
		c.nodes = append(c.nodes, queuedNode{stage: stage, node: node})
	}
}

// AddNodes schedules several nodes in one stage, in order.
func (c *Composer) AddNodes(stage Stage, nodes ...RenderNode) {
	for _, n := range nodes {
		c.AddNode(stage, n)
	}
}

// Len returns the number of scheduled nodes.
func (c *Composer) Len() int { return len(c.nodes) }

// Render runs the frame:
//
//  1. published work is drained;
//  2. the output texture is acquired;
//  3. nodes are sorted by stage, keeping insertion order within a stage;
//  4. the blackboard is cleared;
//  5. every node is prepared;
//  6. nodes that prepared successfully record into one command encoder;
//  7. the commands are submitted and the output presented;
//  8. the transient pool is recycled.
//
// Node errors and panics never abort the frame; they are listed in the
// report. Render returns an error only when the whole frame is dropped or
// rejected. The pool is recycled even for a dropped frame, so transient
// handles never outlive the frame that issued them.
func (c *Composer) Render() (FrameReport, error) {
	if c.consumed {
		return FrameReport{}, ErrComposerConsumed
	}
	c.consumed = true

	e := c.engine
	if e.closed.Load() {
		return FrameReport{}, ErrEngineClosed
	}
	if !e.rendering.CompareAndSwap(false, true) {
		return FrameReport{}, ErrFrameInProgress
	}
	defer e.rendering.Store(false)

	start := time.Now()
	report := FrameReport{Frame: e.frames.Add(1)}
	for _, f := range c.failures {
		c.fail(&report, f)
	}

	e.drain()
	e.collect()
	defer e.pool.RecycleAll()

	out, err := e.acquireOutput()
	if err != nil {
		return c.drop(&report, start, fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err))
	}

	slices.SortStableFunc(c.nodes, func(a, b queuedNode) int {
		return cmp.Compare(a.stage, b.stage)
	})
	c.logOrder(report.Frame)

	e.blackboard.Clear()

	pctx := &PrepareContext{
		engine: e,
		scene:  c.scene,
		frame:  report.Frame,
		target: out.target,
	}
	ready := make([]queuedNode, 0, len(c.nodes))
	for _, q := range c.nodes {
		pctx.stage = q.stage
		if err := safeCall(func() error { return q.node.Prepare(pctx) }); err != nil {
			c.fail(&report, NodeFailure{Node: q.node.Name(), Stage: q.stage, Phase: PhasePrepare, Err: err})
			continue
		}
		ready = append(ready, q)
	}

	label := fmt.Sprintf("framegraph frame %d", report.Frame)
	encoder, err := e.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		out.discard(e)
		return c.drop(&report, start, fmt.Errorf("framegraph: create command encoder: %w", err))
	}
	if err := encoder.BeginEncoding(label); err != nil {
		out.discard(e)
		return c.drop(&report, start, fmt.Errorf("framegraph: begin encoding: %w", err))
	}

	xctx := &ExecuteContext{
		resources:  e.pool.Resolver(),
		pipelines:  e.pipelines.View(),
		blackboard: e.blackboard.Reader(),
		output:     out.view,
		scene:      c.scene,
		frame:      report.Frame,
		target:     out.target,
	}
	for _, q := range ready {
		xctx.stage = q.stage
		if err := safeCall(func() error { return q.node.Run(xctx, encoder) }); err != nil {
			c.fail(&report, NodeFailure{Node: q.node.Name(), Stage: q.stage, Phase: PhaseExecute, Err: err})
			continue
		}
		report.Executed = append(report.Executed, q.node.Name())
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		out.discard(e)
		return c.drop(&report, start, fmt.Errorf("framegraph: end encoding: %w", err))
	}
	defer e.device.FreeCommandBuffer(cmdBuf)

	index, err := e.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		out.discard(e)
		return c.drop(&report, start, fmt.Errorf("framegraph: submit: %w", err))
	}
	e.submits.last.Store(index)
	if err := out.present(e); err != nil {
		return c.drop(&report, start, fmt.Errorf("framegraph: present: %w", err))
	}

	e.rendered.Add(1)
	report.Duration = time.Since(start)
	if m := e.metrics.Load(); m != nil {
		m.observeFrame(&report)
	}
	return report, nil
}

func (c *Composer) fail(report *FrameReport, f NodeFailure) {
	report.Failures = append(report.Failures, f)
	c.engine.countFailure(f.Stage, f.Phase)
	Logger().Warn("framegraph: node skipped",
		"frame", report.Frame,
		"node", f.Node,
		"stage", f.Stage.String(),
		"phase", f.Phase.String(),
		"err", f.Err)
}

func (c *Composer) drop(report *FrameReport, start time.Time, err error) (FrameReport, error) {
	c.engine.dropped.Add(1)
	report.Dropped = true
	report.Duration = time.Since(start)
	Logger().Error("framegraph: frame dropped", "frame", report.Frame, "err", err)
	return *report, err
}

func (c *Composer) logOrder(frame uint64) {
	l := Logger()
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	names := make([]string, len(c.nodes))
	for i, q := range c.nodes {
		names[i] = q.stage.String() + "/" + q.node.Name()
	}
	l.Debug("framegraph: frame order", "frame", frame, "nodes", names)
}

// safeCall runs fn and converts a panic into an error wrapping ErrNodePanic.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = fmt.Errorf("%w: %w", ErrNodePanic, rerr)
				return
			}
			err = fmt.Errorf("%w: %v", ErrNodePanic, r)
		}
	}()
	return fn()
}

// frameOutput is the texture a frame renders into: an acquired surface
// texture, or a pooled offscreen texture when the engine is headless.
type frameOutput struct {
	view    hal.TextureView
	texture hal.SurfaceTexture // nil when headless
	target  Target
}

// offscreenUsage is the usage of the headless output texture.
const offscreenUsage = gputypes.TextureUsageRenderAttachment |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageCopySrc

func (e *Engine) acquireOutput() (*frameOutput, error) {
	if e.width == 0 || e.height == 0 {
		return nil, errZeroSize
	}
	target := Target{Width: e.width, Height: e.height, Format: e.format}

	if e.surface == nil {
		desc := transient.TextureDesc("framegraph offscreen", e.width, e.height, e.format, offscreenUsage)
		desc.Lifetime = transient.LifetimePersistentHint
		h, err := e.pool.Acquire(desc)
		if err != nil {
			return nil, err
		}
		view, err := e.pool.TextureView(h)
		if err != nil {
			return nil, err
		}
		return &frameOutput{view: view, target: target}, nil
	}

	if !e.configured {
		if err := e.configure(); err != nil {
			return nil, err
		}
	}
	acquired, err := e.surface.AcquireTexture(nil)
	if err != nil {
		if errors.Is(err, hal.ErrSurfaceOutdated) {
			// The next frame reconfigures with the current size.
			e.configured = false
		}
		return nil, err
	}
	if acquired.Suboptimal {
		Logger().Debug("framegraph: surface suboptimal")
		e.configured = false
	}
	view, err := e.device.CreateTextureView(acquired.Texture, &hal.TextureViewDescriptor{
		Label:           "framegraph surface",
		Format:          e.format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		e.surface.DiscardTexture(acquired.Texture)
		return nil, fmt.Errorf("create surface view: %w", err)
	}
	return &frameOutput{view: view, texture: acquired.Texture, target: target}, nil
}

func (o *frameOutput) present(e *Engine) error {
	if o.texture == nil {
		return nil
	}
	defer e.device.DestroyTextureView(o.view)
	return e.queue.Present(e.surface, o.texture, nil)
}

func (o *frameOutput) discard(e *Engine) {
	if o.texture == nil {
		return
	}
	e.device.DestroyTextureView(o.view)
	e.surface.DiscardTexture(o.texture)
}
