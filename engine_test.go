// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
	"github.com/gogpu/framegraph/transient"
)

// testProvider implements gpucontext.DeviceProvider and exposes HAL objects.
type testProvider struct {
	device *noop.Device
	queue  *noop.Queue
	format gputypes.TextureFormat
}

func (p *testProvider) Device() gpucontext.Device             { return p.device }
func (p *testProvider) Queue() gpucontext.Queue               { return p.queue }
func (p *testProvider) SurfaceFormat() gputypes.TextureFormat { return p.format }
func (p *testProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *testProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "noop"}
}

// halTestProvider additionally exposes HalDevice and HalQueue.
type halTestProvider struct{ testProvider }

func (p *halTestProvider) HalDevice() any { return p.device }
func (p *halTestProvider) HalQueue() any  { return p.queue }

// opaqueProvider hides its device behind a non-HAL token.
type opaqueProvider struct{ testProvider }

func (p *opaqueProvider) Device() gpucontext.Device { return struct{}{} }

func TestNewEngineFromProvider(t *testing.T) {
	base := testProvider{device: &noop.Device{}, queue: &noop.Queue{}, format: gputypes.TextureFormatRGBA8Unorm}

	t.Run("hal accessors", func(t *testing.T) {
		e, err := NewEngine(&halTestProvider{base}, &noop.Surface{}, WithSize(8, 8))
		require.NoError(t, err)
		defer e.Close()
		assert.Equal(t, gputypes.TextureFormatRGBA8Unorm, e.Format())
		assert.Same(t, base.device, e.Device())
	})

	t.Run("direct device", func(t *testing.T) {
		p := base
		e, err := NewEngine(&p, nil, WithSurfaceFormat(gputypes.TextureFormatBGRA8UnormSrgb))
		require.NoError(t, err)
		defer e.Close()
		assert.Equal(t, gputypes.TextureFormatBGRA8UnormSrgb, e.Format(), "option wins over provider")
	})

	t.Run("no hal device", func(t *testing.T) {
		_, err := NewEngine(&opaqueProvider{base}, nil)
		assert.ErrorIs(t, err, ErrNoDevice)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewEngine(nil, nil)
		assert.ErrorIs(t, err, ErrNoDevice)
	})
}

func TestNewEngineDefaults(t *testing.T) {
	e, err := NewEngineWithDevice(&noop.Device{}, &noop.Queue{}, nil)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, gputypes.TextureFormatBGRA8Unorm, e.Format())
	w, h := e.Size()
	assert.Zero(t, w)
	assert.Zero(t, h)
	assert.Equal(t, "spirv", e.Pipelines().Compiler().Name())
	assert.NotNil(t, e.Shaders())
	assert.NotNil(t, e.Queue())

	_, err = NewEngineWithDevice(nil, &noop.Queue{}, nil)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestResizeTrimsPool(t *testing.T) {
	surface := &scriptedSurface{}
	e := newTestEngineOn(t, &noop.Device{}, surface)
	desc := transient.TextureDesc("gbuffer", 64, 64, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageRenderAttachment)

	renderFrame(t, e, func(c *Composer) {
		c.AddNode(StageOpaque, NodeFuncs{
			NodeName: "gbuffer",
			PrepareFunc: func(ctx *PrepareContext) error {
				_, err := ctx.Pool().Acquire(desc)
				return err
			},
		})
	})
	require.Equal(t, 1, e.Pool().Stats().Free)

	require.NoError(t, e.Resize(128, 96))
	assert.Equal(t, 0, e.Pool().Stats().Entries)
	assert.Equal(t, 2, surface.configureCount())
	w, h := e.Size()
	assert.Equal(t, uint32(128), w)
	assert.Equal(t, uint32(96), h)

	require.NoError(t, e.Resize(128, 96))
	assert.Equal(t, 2, surface.configureCount(), "same size is a no-op")
}

func TestResizeDefersDestructionUntilFrameCompletes(t *testing.T) {
	device := &countingDevice{}
	queue := &laggingQueue{}
	e, err := NewEngineWithDevice(device, queue, &noop.Surface{}, WithSize(64, 64))
	require.NoError(t, err)
	desc := transient.TextureDesc("gbuffer", 64, 64, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageRenderAttachment)

	renderFrame(t, e, func(c *Composer) {
		c.AddNode(StageOpaque, NodeFuncs{
			NodeName: "gbuffer",
			PrepareFunc: func(ctx *PrepareContext) error {
				_, err := ctx.Pool().Acquire(desc)
				return err
			},
		})
	})

	require.NoError(t, e.Resize(128, 128))
	assert.Zero(t, e.Pool().Stats().Entries)
	assert.Equal(t, 1, e.Pool().Stats().Retired)
	assert.Zero(t, device.destroyedTextures.Load(), "the submitted frame may still read the texture")

	renderFrame(t, e, func(*Composer) {})
	assert.Zero(t, device.destroyedTextures.Load())

	queue.complete()
	renderFrame(t, e, func(*Composer) {})
	assert.Equal(t, int32(1), device.destroyedTextures.Load())
	assert.Zero(t, e.Pool().Stats().Retired)
	require.NoError(t, e.Close())
}

func TestReloadTemplateDefersPipelineDestruction(t *testing.T) {
	device := &countingDevice{}
	queue := &laggingQueue{}
	src := shader.MapSource{"flat": flatTemplate}
	e, err := NewEngineWithDevice(device, queue, &noop.Surface{},
		WithSize(16, 16), WithShaderSource(src), WithCompiler(stubCompiler{}))
	require.NoError(t, err)

	_, err = e.Pipelines().GetOrCompile(flatRequest(e))
	require.NoError(t, err)
	renderFrame(t, e, func(*Composer) {})

	assert.Equal(t, 1, e.ReloadTemplate("flat"))
	assert.Zero(t, device.destroyedPipes.Load())
	assert.Equal(t, 1, e.Pipelines().Retired())

	// Close waits for the device and releases everything still held.
	require.NoError(t, e.Close())
	assert.Equal(t, int32(1), device.destroyedPipes.Load())
}

func TestSyncWindowUsesPhysicalPixels(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.SyncWindow(gpucontext.NullWindowProvider{W: 100, H: 50, SF: 2}))
	w, h := e.Size()
	assert.Equal(t, uint32(200), w)
	assert.Equal(t, uint32(100), h)

	require.NoError(t, e.SyncWindow(gpucontext.NullWindowProvider{W: 0, H: 0}))
	w, h = e.Size()
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestPublishRunsBeforePrepare(t *testing.T) {
	e := newTestEngine(t)
	tr := &trace{}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Publish(func(*Engine) { tr.add("published") })
		}()
	}
	wg.Wait()

	renderFrame(t, e, func(c *Composer) { c.AddNode(StageOpaque, tr.node("mesh")) })
	assert.Equal(t, []string{
		"published", "published", "published", "published",
		"prepare mesh", "run mesh",
	}, tr.list())

	// Published work runs once.
	renderFrame(t, e, func(*Composer) {})
	assert.Len(t, tr.list(), 6)
}

func TestPublishedPanicDoesNotStopFrame(t *testing.T) {
	e := newTestEngine(t)
	tr := &trace{}
	e.Publish(func(*Engine) { panic("bad reload") })
	e.Publish(func(*Engine) { tr.add("after") })

	report := renderFrame(t, e, func(c *Composer) { c.AddNode(StageOpaque, tr.node("mesh")) })
	assert.Equal(t, []string{"mesh"}, report.Executed)
	assert.Equal(t, "after", tr.list()[0])
}

const flatTemplate = `{{ vertex_input }}
{$ if TINTED $}
const TINT: f32 = 0.5;
{$ endif $}
`

// stubCompiler creates modules without compiling.
type stubCompiler struct{}

func (stubCompiler) Name() string { return "stub" }

func (stubCompiler) CreateModule(device hal.Device, label, source string) (hal.ShaderModule, error) {
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: label, Source: hal.ShaderSource{WGSL: source}})
}

func flatRequest(e *Engine, defs ...string) pipeline.Request {
	return pipeline.Request{
		Template: "flat",
		Defines:  shader.ParseDefines(defs...),
		Target:   pipeline.FullscreenTarget(e.Format()),
	}
}

func TestReloadTemplateEvictsPipelines(t *testing.T) {
	src := shader.MapSource{"flat": flatTemplate}
	e := newTestEngine(t, WithShaderSource(src), WithCompiler(stubCompiler{}))

	_, err := e.Pipelines().GetOrCompile(flatRequest(e))
	require.NoError(t, err)
	_, err = e.Pipelines().GetOrCompile(flatRequest(e, "TINTED"))
	require.NoError(t, err)
	require.Equal(t, 2, e.Pipelines().Len())

	src["flat"] = flatTemplate + "// v2\n"
	assert.Equal(t, 2, e.ReloadTemplate("flat"))
	assert.Equal(t, 0, e.Pipelines().Len())

	got, err := e.Pipelines().GetOrCompile(flatRequest(e))
	require.NoError(t, err)
	assert.Contains(t, got.Source, "// v2")
}

func TestShaderDirWatchReloadsBetweenFrames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flat.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(flatTemplate), 0o600))

	e := newTestEngine(t, WithShaderDir(dir, true), WithCompiler(stubCompiler{}))
	_, err := e.Pipelines().GetOrCompile(flatRequest(e))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(flatTemplate+"// edited\n"), 0o600))
	require.Eventually(t, func() bool {
		e.pubMu.Lock()
		defer e.pubMu.Unlock()
		return len(e.published) > 0
	}, 5*time.Second, 10*time.Millisecond)

	// The cache is untouched until the render thread drains the change.
	assert.Equal(t, 1, e.Pipelines().Len())
	renderFrame(t, e, func(*Composer) {})
	assert.Equal(t, 0, e.Pipelines().Len())

	got, err := e.Pipelines().GetOrCompile(flatRequest(e))
	require.NoError(t, err)
	assert.Contains(t, got.Source, "// edited")
}

func TestCloseReleasesEngine(t *testing.T) {
	surface := &scriptedSurface{}
	e, err := NewEngineWithDevice(&noop.Device{}, &noop.Queue{}, surface, WithSize(16, 16))
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close(), "Close is idempotent")

	_, err = e.BeginFrame(nil).Render()
	assert.ErrorIs(t, err, ErrEngineClosed)
	assert.ErrorIs(t, e.Resize(32, 32), ErrEngineClosed)

	_, err = e.Pool().Acquire(transient.BufferDesc("late", 64, gputypes.BufferUsageUniform))
	assert.ErrorIs(t, err, transient.ErrPoolDestroyed)

	ran := false
	e.Publish(func(*Engine) { ran = true })
	assert.False(t, ran)
}
