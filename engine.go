// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/framegraph/internal/retire"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
	"github.com/gogpu/framegraph/transient"
)

// defaultFormat is used when neither an option nor the provider names one.
const defaultFormat = gputypes.TextureFormatBGRA8Unorm

var errZeroSize = errors.New("output size is zero")

// Engine owns the per-device render state shared by every frame: the
// transient pool, the pipeline cache, the template engine and the
// blackboard.
//
// Frames are rendered on one goroutine, the render thread. Other
// goroutines hand work to it with Publish. Resize, SyncWindow,
// ReloadTemplate and Close are render-thread methods.
type Engine struct {
	device  hal.Device
	queue   hal.Queue
	surface hal.Surface
	format  gputypes.TextureFormat
	opts    options

	shaders    *shader.Engine
	pipelines  *pipeline.Cache
	pool       *transient.Pool
	blackboard *Blackboard
	watcher    *shader.Watcher
	collector  *Collector // registered by WithMetrics

	submits *submissions
	retired retire.List

	width      uint32
	height     uint32
	configured bool

	pubMu     sync.Mutex
	published []func(*Engine)

	rendering atomic.Bool
	closed    atomic.Bool

	metrics  atomic.Pointer[Collector]
	frames   atomic.Uint64
	rendered atomic.Uint64
	dropped  atomic.Uint64

	failMu   sync.Mutex
	failures map[FailureClass]uint64
}

// NewEngine creates an engine on the device exposed by provider. The
// provider must expose HAL objects through HalDevice() and HalQueue(), or
// return a hal.Device and hal.Queue directly from Device and Queue.
//
// surface may be nil for headless rendering; frames then render into an
// offscreen texture of the WithSize dimensions.
func NewEngine(provider gpucontext.DeviceProvider, surface hal.Surface, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, ErrNoDevice
	}
	device, queue, err := halFromProvider(provider)
	if err != nil {
		return nil, err
	}
	return newEngine(device, queue, surface, provider.SurfaceFormat(), opts)
}

// NewEngineWithDevice creates an engine on an existing HAL device and queue.
func NewEngineWithDevice(device hal.Device, queue hal.Queue, surface hal.Surface, opts ...Option) (*Engine, error) {
	return newEngine(device, queue, surface, gputypes.TextureFormatUndefined, opts)
}

func halFromProvider(provider gpucontext.DeviceProvider) (hal.Device, hal.Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	var dev, q any
	if hp, ok := provider.(halProvider); ok {
		dev, q = hp.HalDevice(), hp.HalQueue()
	} else {
		dev, q = provider.Device(), provider.Queue()
	}
	device, ok := dev.(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("%w: device is %T", ErrNoDevice, dev)
	}
	queue, ok := q.(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("%w: queue is %T", ErrNoDevice, q)
	}
	return device, queue, nil
}

func newEngine(device hal.Device, queue hal.Queue, surface hal.Surface, providerFormat gputypes.TextureFormat, opts []Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}
	if device == nil || queue == nil {
		return nil, ErrNoDevice
	}

	format := o.format
	if format == gputypes.TextureFormatUndefined {
		format = providerFormat
	}
	if format == gputypes.TextureFormatUndefined {
		format = defaultFormat
	}

	submits := &submissions{queue: queue}
	shaders := shader.NewEngine(templateSource(o))
	cacheOpts := []pipeline.CacheOption{pipeline.WithFence(submits)}
	if o.compiler != nil {
		cacheOpts = append(cacheOpts, pipeline.WithCompiler(o.compiler))
	}
	pipelines, err := pipeline.NewCache(device, shaders, cacheOpts...)
	if err != nil {
		return nil, err
	}
	pool, err := transient.NewPool(device, append(o.poolOpts, transient.WithFence(submits))...)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		device:     device,
		queue:      queue,
		surface:    surface,
		format:     format,
		opts:       o,
		shaders:    shaders,
		pipelines:  pipelines,
		pool:       pool,
		blackboard: NewBlackboard(),
		submits:    submits,
		width:      o.width,
		height:     o.height,
		failures:   make(map[FailureClass]uint64),
	}
	e.retired.SetFence(submits)
	if err := e.configure(); err != nil {
		e.release()
		return nil, err
	}
	if o.watch && o.shaderDir != "" {
		w, err := shader.Watch(o.shaderDir, e.templateChanged)
		if err != nil {
			e.release()
			return nil, err
		}
		e.watcher = w
	}
	if o.registerer != nil {
		if err := e.registerMetrics(o.registerer); err != nil {
			e.release()
			return nil, err
		}
	}

	Logger().Info("framegraph: engine created",
		"format", format.String(),
		"width", e.width,
		"height", e.height,
		"headless", surface == nil,
		"compiler", pipelines.Compiler().Name())
	return e, nil
}

// templateSource layers the shader directory over the configured source.
func templateSource(o options) shader.Source {
	var layers shader.Layered
	if o.shaderDir != "" {
		layers = append(layers, shader.FSSource{FS: os.DirFS(o.shaderDir)})
	}
	if o.source != nil {
		layers = append(layers, o.source)
	}
	switch len(layers) {
	case 0:
		return shader.MapSource{}
	case 1:
		return layers[0]
	default:
		return layers
	}
}

func (e *Engine) registerMetrics(reg prometheus.Registerer) error {
	c := NewCollector(e)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			Logger().Warn("framegraph: metrics already registered", "err", err)
			return nil
		}
		return fmt.Errorf("framegraph: register metrics: %w", err)
	}
	e.collector = c
	return nil
}

// configure (re)configures the surface for the current size. A zero size
// leaves the surface unconfigured, for example while minimized.
func (e *Engine) configure() error {
	if e.surface == nil {
		return nil
	}
	if e.width == 0 || e.height == 0 {
		if e.configured {
			e.surface.Unconfigure(e.device)
			e.configured = false
		}
		return nil
	}
	err := e.surface.Configure(e.device, &hal.SurfaceConfiguration{
		Width:       e.width,
		Height:      e.height,
		Format:      e.format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: e.opts.presentMode,
		AlphaMode:   gputypes.CompositeAlphaModeOpaque,
	})
	if err != nil {
		e.configured = false
		return fmt.Errorf("framegraph: configure surface %dx%d: %w", e.width, e.height, err)
	}
	e.configured = true
	Logger().Info("framegraph: surface configured",
		"width", e.width,
		"height", e.height,
		"format", e.format.String(),
		"present_mode", e.opts.presentMode.String())
	return nil
}

// BeginFrame starts composing a frame for scene. A nil scene is empty.
func (e *Engine) BeginFrame(scene Scene) *Composer {
	if scene == nil {
		scene = emptyScene{}
	}
	return &Composer{engine: e, scene: scene}
}

// Publish queues fn to run on the render thread at the start of the next
// Render, before any node is prepared. It is safe to call from any
// goroutine. Work published to a closed engine is dropped.
func (e *Engine) Publish(fn func(*Engine)) {
	if fn == nil || e.closed.Load() {
		return
	}
	e.pubMu.Lock()
	e.published = append(e.published, fn)
	e.pubMu.Unlock()
}

// drain runs published work in publication order.
func (e *Engine) drain() {
	e.pubMu.Lock()
	work := e.published
	e.published = nil
	e.pubMu.Unlock()

	for _, fn := range work {
		func() {
			defer func() {
				if r := recover(); r != nil {
					Logger().Error("framegraph: published work panicked", "panic", r)
				}
			}()
			fn(e)
		}()
	}
}

// submissions tracks queue progress so released GPU objects outlive the
// frames that may still read them.
type submissions struct {
	queue hal.Queue
	last  atomic.Uint64
}

func (s *submissions) Submitted() uint64 { return s.last.Load() }
func (s *submissions) Completed() uint64 { return s.queue.PollCompleted() }

// Retire destroys GPU objects with destroy once every frame submitted so
// far has completed. Nodes use it for objects that recorded commands may
// still reference, such as last frame's bind group. On a closed engine
// destroy runs immediately.
func (e *Engine) Retire(destroy func()) {
	if destroy == nil {
		return
	}
	if e.closed.Load() {
		destroy()
		return
	}
	e.retired.Defer(destroy)
}

// collect destroys retired objects whose frames have completed.
func (e *Engine) collect() {
	n := e.retired.Collect() + e.pipelines.Collect() + e.pool.Collect()
	if n > 0 {
		Logger().Debug("framegraph: destroyed retired objects", "count", n)
	}
}

// Resize reconfigures the output for a new size in pixels and releases
// every free pooled resource, since old sizes will not be requested again.
// Released resources are destroyed once the frames using them complete.
// A zero dimension unconfigures the surface; frames are dropped until the
// next non-zero Resize.
func (e *Engine) Resize(width, height uint32) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if width == e.width && height == e.height && (e.surface == nil || e.configured) {
		return nil
	}
	e.width, e.height = width, height
	if err := e.configure(); err != nil {
		return err
	}
	released := e.pool.Trim(0)
	Logger().Debug("framegraph: resized", "width", width, "height", height, "released", released)
	return nil
}

// SyncWindow resizes the output to match the window's size in physical
// pixels.
func (e *Engine) SyncWindow(w gpucontext.WindowProvider) error {
	lw, lh := w.Size()
	scale := w.ScaleFactor()
	return e.Resize(physical(lw, scale), physical(lh, scale))
}

func physical(logical int, scale float64) uint32 {
	if logical <= 0 {
		return 0
	}
	return uint32(math.Round(float64(logical) * scale))
}

// templateChanged runs on the watcher goroutine.
func (e *Engine) templateChanged(name string) {
	e.Publish(func(e *Engine) { e.ReloadTemplate(name) })
}

// ReloadTemplate drops the parsed template and every pipeline whose
// expansion used it, so the next request recompiles from the new text.
// It returns the number of pipelines dropped.
func (e *Engine) ReloadTemplate(name string) int {
	names := []string{name}
	if base, ok := strings.CutPrefix(name, "chunks/"); ok {
		names = append(names, base)
	}
	e.shaders.Invalidate(names...)
	n := 0
	for _, nm := range names {
		n += e.pipelines.Evict(nm)
	}
	Logger().Info("framegraph: template reloaded", "template", name, "pipelines", n)
	return n
}

// Close releases every resource owned by the engine. The device, queue and
// surface belong to the caller and stay alive, but the surface is
// unconfigured.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
	}
	if err := e.device.WaitIdle(); err != nil {
		errs = append(errs, fmt.Errorf("framegraph: wait idle: %w", err))
	}
	e.release()
	Logger().Info("framegraph: engine closed", "frames", e.frames.Load())
	return errors.Join(errs...)
}

func (e *Engine) release() {
	if e.collector != nil {
		e.opts.registerer.Unregister(e.collector)
		e.collector = nil
	}
	e.retired.Flush()
	e.pipelines.Clear()
	e.pipelines.Flush()
	e.pool.Destroy()
	if e.surface != nil && e.configured {
		e.surface.Unconfigure(e.device)
		e.configured = false
	}
}

// Device returns the HAL device.
func (e *Engine) Device() hal.Device { return e.device }

// Queue returns the HAL queue.
func (e *Engine) Queue() hal.Queue { return e.queue }

// Format returns the output texture format.
func (e *Engine) Format() gputypes.TextureFormat { return e.format }

// Size returns the output size in pixels.
func (e *Engine) Size() (width, height uint32) { return e.width, e.height }

// Pool returns the transient pool.
func (e *Engine) Pool() *transient.Pool { return e.pool }

// Pipelines returns the pipeline cache.
func (e *Engine) Pipelines() *pipeline.Cache { return e.pipelines }

// Shaders returns the template engine.
func (e *Engine) Shaders() *shader.Engine { return e.shaders }

// FailureClass groups node failures for statistics.
type FailureClass struct {
	Stage Stage
	Phase Phase
}

// Stats is a snapshot of engine counters.
type Stats struct {
	// Frames counts Render calls that started a frame.
	Frames uint64
	// Rendered counts frames that were submitted and presented.
	Rendered uint64
	// Dropped counts frames abandoned after they started.
	Dropped uint64
	// NodeFailures counts failed nodes by stage and phase.
	NodeFailures map[FailureClass]uint64

	Pool      transient.Stats
	Pipelines pipeline.Stats
}

// Stats returns a snapshot of the engine counters. It is safe to call from
// any goroutine.
func (e *Engine) Stats() Stats {
	e.failMu.Lock()
	failures := maps.Clone(e.failures)
	e.failMu.Unlock()
	return Stats{
		Frames:       e.frames.Load(),
		Rendered:     e.rendered.Load(),
		Dropped:      e.dropped.Load(),
		NodeFailures: failures,
		Pool:         e.pool.Stats(),
		Pipelines:    e.pipelines.Stats(),
	}
}

func (e *Engine) countFailure(stage Stage, phase Phase) {
	e.failMu.Lock()
	e.failures[FailureClass{stage, phase}]++
	e.failMu.Unlock()
}
