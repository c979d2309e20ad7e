// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/require"
)

// countingDevice counts texture creation and resource destruction on top
// of the noop backend.
type countingDevice struct {
	noop.Device
	textures          atomic.Int32
	encoders          atomic.Int32
	destroyedTextures atomic.Int32
	destroyedPipes    atomic.Int32
}

func (d *countingDevice) DestroyTexture(hal.Texture)               { d.destroyedTextures.Add(1) }
func (d *countingDevice) DestroyRenderPipeline(hal.RenderPipeline) { d.destroyedPipes.Add(1) }

func (d *countingDevice) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	d.textures.Add(1)
	return d.Device.CreateTexture(desc)
}

func (d *countingDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	d.encoders.Add(1)
	return d.Device.CreateCommandEncoder(desc)
}

// laggingQueue reports submissions complete only when told to.
type laggingQueue struct {
	noop.Queue
	done atomic.Uint64
}

func (q *laggingQueue) PollCompleted() uint64 { return q.done.Load() }

// complete marks everything submitted so far as finished.
func (q *laggingQueue) complete() { q.done.Store(q.Queue.PollCompleted()) }

// scriptedSurface returns queued acquire errors before succeeding and
// counts configuration calls.
type scriptedSurface struct {
	noop.Surface
	mu         sync.Mutex
	errs       []error
	configures int
	discarded  int
}

func (s *scriptedSurface) Configure(device hal.Device, cfg *hal.SurfaceConfiguration) error {
	s.mu.Lock()
	s.configures++
	s.mu.Unlock()
	return s.Surface.Configure(device, cfg)
}

func (s *scriptedSurface) AcquireTexture(fence hal.Fence) (*hal.AcquiredSurfaceTexture, error) {
	s.mu.Lock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()
	return s.Surface.AcquireTexture(fence)
}

func (s *scriptedSurface) DiscardTexture(tex hal.SurfaceTexture) {
	s.mu.Lock()
	s.discarded++
	s.mu.Unlock()
}

func (s *scriptedSurface) configureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configures
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return newTestEngineOn(t, &noop.Device{}, &noop.Surface{}, opts...)
}

func newTestEngineOn(t *testing.T, device hal.Device, surface hal.Surface, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithSize(64, 64)}, opts...)
	e, err := NewEngineWithDevice(device, &noop.Queue{}, surface, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// trace records node callbacks in call order.
type trace struct {
	mu     sync.Mutex
	events []string
}

func (tr *trace) add(ev string) {
	tr.mu.Lock()
	tr.events = append(tr.events, ev)
	tr.mu.Unlock()
}

func (tr *trace) list() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.events...)
}

func (tr *trace) node(name string) RenderNode {
	return NodeFuncs{
		NodeName: name,
		PrepareFunc: func(*PrepareContext) error {
			tr.add("prepare " + name)
			return nil
		},
		RunFunc: func(*ExecuteContext, hal.CommandEncoder) error {
			tr.add("run " + name)
			return nil
		},
	}
}

func renderFrame(t *testing.T, e *Engine, build func(c *Composer)) FrameReport {
	t.Helper()
	c := e.BeginFrame(nil)
	build(c)
	report, err := c.Render()
	require.NoError(t, err)
	return report
}
