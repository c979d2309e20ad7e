// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framegraph/transient"
)

func TestRenderOrdersByStageThenInsertion(t *testing.T) {
	e := newTestEngine(t)
	tr := &trace{}

	report := renderFrame(t, e, func(c *Composer) {
		c.AddNode(StageOpaque, tr.node("A"))
		c.AddNode(StagePostProcess, tr.node("B"))
		c.AddNode(StageOpaque, tr.node("C"))
	})

	assert.Equal(t, []string{"A", "C", "B"}, report.Executed)
	assert.Equal(t, []string{
		"prepare A", "prepare C", "prepare B",
		"run A", "run C", "run B",
	}, tr.list(), "every node is prepared before any node runs")
	assert.Empty(t, report.Failures)
	assert.False(t, report.Dropped)
	assert.Equal(t, uint64(1), report.Frame)
}

func TestRenderOrderIndependentOfAddOrder(t *testing.T) {
	stages := Stages()
	tests := []struct {
		name  string
		order []int
	}{
		{"forward", []int{0, 1, 2, 3, 4, 5, 6, 7}},
		{"reverse", []int{7, 6, 5, 4, 3, 2, 1, 0}},
		{"shuffled", []int{3, 7, 0, 5, 2, 6, 1, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			tr := &trace{}
			report := renderFrame(t, e, func(c *Composer) {
				for _, i := range tt.order {
					c.AddNode(stages[i], tr.node(stages[i].String()))
				}
			})
			want := make([]string, len(stages))
			for i, s := range stages {
				want[i] = s.String()
			}
			assert.Equal(t, want, report.Executed)
		})
	}
}

func TestRenderAddNodes(t *testing.T) {
	e := newTestEngine(t)
	tr := &trace{}
	c := e.BeginFrame(nil)
	c.AddNodes(StageUI, tr.node("hud"), tr.node("cursor"))
	c.AddNodes(StageOpaque, tr.node("mesh"))
	assert.Equal(t, 3, c.Len())

	report, err := c.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"mesh", "hud", "cursor"}, report.Executed)
}

func TestRenderSkipsFailingNodes(t *testing.T) {
	e := newTestEngine(t)
	errBoom := errors.New("boom")

	report := renderFrame(t, e, func(c *Composer) {
		c.AddNode(StageOpaque, NodeFuncs{NodeName: "ok-1"})
		c.AddNode(StageOpaque, NodeFuncs{
			NodeName:    "prepare-error",
			PrepareFunc: func(*PrepareContext) error { return errBoom },
			RunFunc: func(*ExecuteContext, hal.CommandEncoder) error {
				t.Error("Run must not be called after Prepare failed")
				return nil
			},
		})
		c.AddNode(StageOpaque, NodeFuncs{
			NodeName:    "prepare-panic",
			PrepareFunc: func(*PrepareContext) error { panic("bad state") },
		})
		c.AddNode(StageTransparent, NodeFuncs{
			NodeName: "run-error",
			RunFunc:  func(*ExecuteContext, hal.CommandEncoder) error { return errBoom },
		})
		c.AddNode(StageTransparent, NodeFuncs{
			NodeName: "run-panic",
			RunFunc: func(*ExecuteContext, hal.CommandEncoder) error {
				var m map[string]int
				m["x"]++ // nil map write
				return nil
			},
		})
		c.AddNode(StageUI, NodeFuncs{NodeName: "ok-2"})
	})

	assert.Equal(t, []string{"ok-1", "ok-2"}, report.Executed)
	require.Len(t, report.Failures, 4)

	byNode := map[string]NodeFailure{}
	for _, f := range report.Failures {
		byNode[f.Node] = f
	}
	assert.Equal(t, PhasePrepare, byNode["prepare-error"].Phase)
	assert.ErrorIs(t, byNode["prepare-error"], errBoom)
	assert.Equal(t, PhasePrepare, byNode["prepare-panic"].Phase)
	assert.ErrorIs(t, byNode["prepare-panic"], ErrNodePanic)
	assert.Equal(t, PhaseExecute, byNode["run-error"].Phase)
	assert.Equal(t, StageTransparent, byNode["run-error"].Stage)
	assert.ErrorIs(t, byNode["run-panic"], ErrNodePanic)
	assert.Contains(t, byNode["run-panic"].Error(), "run-panic")

	stats := e.Stats()
	assert.Equal(t, uint64(2), stats.NodeFailures[FailureClass{StageOpaque, PhasePrepare}])
	assert.Equal(t, uint64(2), stats.NodeFailures[FailureClass{StageTransparent, PhaseExecute}])
	assert.Equal(t, uint64(1), stats.Rendered)
}

func TestAddNodeRejectsNilAndUnknownStage(t *testing.T) {
	e := newTestEngine(t)
	c := e.BeginFrame(nil)
	c.AddNode(StageOpaque, nil)
	c.AddNode(Stage(42), NodeFuncs{NodeName: "lost"})
	c.AddNode(StageOpaque, NodeFuncs{NodeName: "kept"})
	assert.Equal(t, 1, c.Len())

	report, err := c.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, report.Executed)
	require.Len(t, report.Failures, 2)
	assert.ErrorIs(t, report.Failures[0], ErrNilNode)
	assert.ErrorIs(t, report.Failures[1], ErrUnknownStage)
	assert.Equal(t, PhaseRegister, report.Failures[1].Phase)
}

func TestRenderIsSingleUse(t *testing.T) {
	e := newTestEngine(t)
	c := e.BeginFrame(nil)
	_, err := c.Render()
	require.NoError(t, err)

	_, err = c.Render()
	assert.ErrorIs(t, err, ErrComposerConsumed)
}

func TestRenderRejectsNestedFrame(t *testing.T) {
	e := newTestEngine(t)
	var nested error
	renderFrame(t, e, func(c *Composer) {
		c.AddNode(StageOpaque, NodeFuncs{
			NodeName: "reentrant",
			PrepareFunc: func(*PrepareContext) error {
				_, nested = e.BeginFrame(nil).Render()
				return nil
			},
		})
	})
	assert.ErrorIs(t, nested, ErrFrameInProgress)

	// The engine accepts the next frame.
	renderFrame(t, e, func(*Composer) {})
}

func TestRenderSurfaceFailureDropsFrame(t *testing.T) {
	surface := &scriptedSurface{errs: []error{hal.ErrSurfaceLost}}
	e := newTestEngineOn(t, &noop.Device{}, surface)
	tr := &trace{}
	epoch := e.Pool().Epoch()

	c := e.BeginFrame(nil)
	c.AddNode(StageOpaque, tr.node("mesh"))
	report, err := c.Render()

	require.ErrorIs(t, err, ErrSurfaceUnavailable)
	assert.ErrorIs(t, err, hal.ErrSurfaceLost)
	assert.True(t, report.Dropped)
	assert.Empty(t, tr.list(), "no node runs in a dropped frame")
	assert.Equal(t, epoch+1, e.Pool().Epoch(), "pool epoch advances for dropped frames")

	report = renderFrame(t, e, func(c *Composer) { c.AddNode(StageOpaque, tr.node("mesh")) })
	assert.Equal(t, []string{"mesh"}, report.Executed)

	stats := e.Stats()
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, uint64(1), stats.Rendered)
}

func TestRenderOutdatedSurfaceReconfigures(t *testing.T) {
	surface := &scriptedSurface{errs: []error{hal.ErrSurfaceOutdated}}
	e := newTestEngineOn(t, &noop.Device{}, surface)
	require.Equal(t, 1, surface.configureCount())

	_, err := e.BeginFrame(nil).Render()
	require.ErrorIs(t, err, hal.ErrSurfaceOutdated)

	renderFrame(t, e, func(*Composer) {})
	assert.Equal(t, 2, surface.configureCount())
}

func TestRenderZeroSizeDropsFrame(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Resize(0, 0))

	_, err := e.BeginFrame(nil).Render()
	assert.ErrorIs(t, err, ErrSurfaceUnavailable)

	require.NoError(t, e.Resize(32, 32))
	renderFrame(t, e, func(*Composer) {})
}

func TestExecuteContextExposesFrameState(t *testing.T) {
	e := newTestEngine(t, WithSurfaceFormat(gputypes.TextureFormatRGBA8Unorm))
	scene := StaticScene{{Name: "cube"}}

	c := e.BeginFrame(scene)
	c.AddNode(StageSkybox, NodeFuncs{
		NodeName: "inspect",
		PrepareFunc: func(ctx *PrepareContext) error {
			assert.Equal(t, StageSkybox, ctx.Stage())
			assert.Equal(t, Target{Width: 64, Height: 64, Format: gputypes.TextureFormatRGBA8Unorm}, ctx.Target())
			assert.Len(t, ctx.Scene().VisibleObjects(), 1)
			assert.NotNil(t, ctx.Device())
			assert.NotNil(t, ctx.Queue())
			return nil
		},
		RunFunc: func(ctx *ExecuteContext, enc hal.CommandEncoder) error {
			assert.NotNil(t, enc)
			assert.NotNil(t, ctx.Output())
			assert.NotNil(t, ctx.Resources())
			assert.NotNil(t, ctx.Pipelines())
			assert.Equal(t, uint64(1), ctx.Frame())
			assert.Equal(t, StageSkybox, ctx.Stage())
			assert.Equal(t, "cube", ctx.Scene().VisibleObjects()[0].Name)
			return nil
		},
	})
	report, err := c.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"inspect"}, report.Executed)
}

func TestSingleAllocationAcrossFrames(t *testing.T) {
	device := &countingDevice{}
	e := newTestEngineOn(t, device, &noop.Surface{})
	desc := transient.TextureDesc("hdr", 64, 64, gputypes.TextureFormatRGBA16Float, gputypes.TextureUsageRenderAttachment)

	for range 10 {
		renderFrame(t, e, func(c *Composer) {
			c.AddNode(StageOpaque, NodeFuncs{
				NodeName: "hdr",
				PrepareFunc: func(ctx *PrepareContext) error {
					_, err := ctx.Pool().Acquire(desc)
					return err
				},
			})
		})
	}
	assert.Equal(t, int32(1), device.textures.Load())
	assert.Equal(t, int32(10), device.encoders.Load(), "one encoder per frame")
}

func TestHandleRejectedInLaterFrame(t *testing.T) {
	e := newTestEngine(t)
	desc := transient.TextureDesc("scratch", 16, 16, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageRenderAttachment)

	var kept transient.Handle
	renderFrame(t, e, func(c *Composer) {
		c.AddNode(StageOpaque, NodeFuncs{
			NodeName: "producer",
			PrepareFunc: func(ctx *PrepareContext) error {
				h, err := ctx.Pool().Acquire(desc)
				kept = h
				return err
			},
			RunFunc: func(ctx *ExecuteContext, _ hal.CommandEncoder) error {
				_, err := ctx.Resources().TextureView(kept)
				return err
			},
		})
	})

	var stale error
	renderFrame(t, e, func(c *Composer) {
		c.AddNode(StageOpaque, NodeFuncs{
			NodeName: "late",
			RunFunc: func(ctx *ExecuteContext, _ hal.CommandEncoder) error {
				_, stale = ctx.Resources().TextureView(kept)
				return nil
			},
		})
	})
	assert.ErrorIs(t, stale, transient.ErrStaleHandle)
}

func TestBlackboardSharedWithinFrameOnly(t *testing.T) {
	e := newTestEngine(t)
	desc := transient.TextureDesc("color", 64, 64, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageRenderAttachment)

	var seen transient.Handle
	renderFrame(t, e, func(c *Composer) {
		// Added out of stage order on purpose.
		c.AddNode(StagePostProcess, NodeFuncs{
			NodeName: "consumer",
			PrepareFunc: func(ctx *PrepareContext) error {
				h, ok := Get[transient.Handle](ctx.Blackboard(), "color")
				require.True(t, ok)
				seen = h
				return nil
			},
			RunFunc: func(ctx *ExecuteContext, _ hal.CommandEncoder) error {
				h, ok := Get[transient.Handle](ctx.Blackboard(), "color")
				assert.True(t, ok)
				_, err := ctx.Resources().TextureView(h)
				return err
			},
		})
		c.AddNode(StageOpaque, NodeFuncs{
			NodeName: "producer",
			PrepareFunc: func(ctx *PrepareContext) error {
				h, err := ctx.Pool().Acquire(desc)
				if err != nil {
					return err
				}
				Set(ctx.Blackboard(), "color", h)
				return nil
			},
		})
	})
	assert.False(t, seen.IsZero())

	var found bool
	renderFrame(t, e, func(c *Composer) {
		c.AddNode(StageOpaque, NodeFuncs{
			NodeName: "next",
			PrepareFunc: func(ctx *PrepareContext) error {
				_, found = Get[transient.Handle](ctx.Blackboard(), "color")
				return nil
			},
		})
	})
	assert.False(t, found, "blackboard is cleared between frames")
}

func TestHeadlessEngineRendersOffscreen(t *testing.T) {
	device := &countingDevice{}
	e, err := NewEngineWithDevice(device, &noop.Queue{}, nil, WithSize(32, 16))
	require.NoError(t, err)
	defer e.Close()

	for range 3 {
		renderFrame(t, e, func(c *Composer) {
			c.AddNode(StageOpaque, NodeFuncs{
				NodeName: "draw",
				RunFunc: func(ctx *ExecuteContext, _ hal.CommandEncoder) error {
					assert.NotNil(t, ctx.Output())
					assert.Equal(t, uint32(32), ctx.Target().Width)
					return nil
				},
			})
		})
	}
	assert.Equal(t, int32(1), device.textures.Load(), "offscreen target is pooled")

	headless, err := NewEngineWithDevice(&noop.Device{}, &noop.Queue{}, nil)
	require.NoError(t, err)
	defer headless.Close()
	_, err = headless.BeginFrame(nil).Render()
	assert.ErrorIs(t, err, ErrSurfaceUnavailable)
}

func TestSafeCallWrapsPanicErrors(t *testing.T) {
	cause := errors.New("index out of range")
	err := safeCall(func() error { panic(cause) })
	assert.ErrorIs(t, err, ErrNodePanic)
	assert.ErrorIs(t, err, cause)

	assert.NoError(t, safeCall(func() error { return nil }))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "register", PhaseRegister.String())
	assert.Equal(t, "prepare", PhasePrepare.String())
	assert.Equal(t, "execute", PhaseExecute.String())
	assert.Equal(t, "Phase(9)", Phase(9).String())
}
