// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package passes

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framegraph"
)

// recorder collects render pass commands in submission order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// matching returns the events with the given prefix.
func (r *recorder) matching(prefix string) []string {
	var out []string
	for _, ev := range r.list() {
		if strings.HasPrefix(ev, prefix) {
			out = append(out, ev)
		}
	}
	return out
}

// recordingDevice wraps the noop device so that render passes are
// recorded and bind group lifetimes counted.
type recordingDevice struct {
	noop.Device
	rec *recorder

	bindGroups         atomic.Int32
	destroyedBindGroup atomic.Int32
	samplers           atomic.Int32
}

func (d *recordingDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &recordingEncoder{CommandEncoder: enc, rec: d.rec}, nil
}

func (d *recordingDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.bindGroups.Add(1)
	return d.Device.CreateBindGroup(desc)
}

func (d *recordingDevice) DestroyBindGroup(bg hal.BindGroup) {
	d.destroyedBindGroup.Add(1)
}

func (d *recordingDevice) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	d.samplers.Add(1)
	return d.Device.CreateSampler(desc)
}

type recordingEncoder struct {
	hal.CommandEncoder
	rec *recorder
}

func (e *recordingEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	ev := fmt.Sprintf("begin %s load=%d", desc.Label, desc.ColorAttachments[0].LoadOp)
	if ds := desc.DepthStencilAttachment; ds != nil {
		ev += fmt.Sprintf(" depth=%d readonly=%t", ds.DepthLoadOp, ds.DepthReadOnly)
	}
	e.rec.add("%s", ev)
	return &recordingPass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc), rec: e.rec}
}

type recordingPass struct {
	hal.RenderPassEncoder
	rec *recorder
}

func (p *recordingPass) End() { p.rec.add("end") }

func (p *recordingPass) SetPipeline(hal.RenderPipeline) { p.rec.add("pipeline") }

func (p *recordingPass) SetBindGroup(index uint32, _ hal.BindGroup, _ []uint32) {
	p.rec.add("bind %d", index)
}

func (p *recordingPass) SetVertexBuffer(slot uint32, _ hal.Buffer, _ uint64) {
	p.rec.add("vertex %d", slot)
}

func (p *recordingPass) SetIndexBuffer(_ hal.Buffer, format gputypes.IndexFormat, _ uint64) {
	p.rec.add("index %d", format)
}

func (p *recordingPass) Draw(vertexCount, instanceCount, _, _ uint32) {
	p.rec.add("draw %d x%d", vertexCount, instanceCount)
}

func (p *recordingPass) DrawIndexed(indexCount, instanceCount, _ uint32, _ int32, _ uint32) {
	p.rec.add("drawIndexed %d x%d", indexCount, instanceCount)
}

// laggingQueue reports submissions complete only when told to.
type laggingQueue struct {
	noop.Queue
	done atomic.Uint64
}

func (q *laggingQueue) PollCompleted() uint64 { return q.done.Load() }

// complete marks everything submitted so far as finished.
func (q *laggingQueue) complete() { q.done.Store(q.Queue.PollCompleted()) }

// sourceCompiler creates modules without compiling and keeps the source
// of every module by label. Sources containing "not wgsl" fail.
type sourceCompiler struct {
	mu      sync.Mutex
	sources map[string]string
}

func (*sourceCompiler) Name() string { return "source" }

func (c *sourceCompiler) CreateModule(device hal.Device, label, source string) (hal.ShaderModule, error) {
	c.mu.Lock()
	if c.sources == nil {
		c.sources = make(map[string]string)
	}
	c.sources[label] = source
	c.mu.Unlock()
	if strings.Contains(source, "not wgsl") {
		return nil, fmt.Errorf("%s: parse error", label)
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: label, Source: hal.ShaderSource{WGSL: source}})
}

func (c *sourceCompiler) source(label string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sources[label]
}

type testEnv struct {
	engine   *framegraph.Engine
	device   *recordingDevice
	compiler *sourceCompiler
	rec      *recorder
}

func newTestEnv(t *testing.T, opts ...framegraph.Option) *testEnv {
	t.Helper()
	return newTestEnvOn(t, &noop.Queue{}, opts...)
}

func newTestEnvOn(t *testing.T, queue hal.Queue, opts ...framegraph.Option) *testEnv {
	t.Helper()
	env := &testEnv{rec: &recorder{}, compiler: &sourceCompiler{}}
	env.device = &recordingDevice{rec: env.rec}
	opts = append([]framegraph.Option{
		framegraph.WithSize(64, 64),
		framegraph.WithShaderSource(Source()),
		framegraph.WithCompiler(env.compiler),
	}, opts...)
	e, err := framegraph.NewEngineWithDevice(env.device, queue, &noop.Surface{}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	env.engine = e
	return env
}

// render runs one frame of scene with the given nodes.
func (env *testEnv) render(t *testing.T, scene framegraph.Scene, nodes map[framegraph.Stage][]framegraph.RenderNode) framegraph.FrameReport {
	t.Helper()
	frame := env.engine.BeginFrame(scene)
	for _, stage := range framegraph.Stages() {
		frame.AddNodes(stage, nodes[stage]...)
	}
	report, err := frame.Render()
	require.NoError(t, err)
	return report
}
