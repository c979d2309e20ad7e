// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/internal/retire"
	"github.com/gogpu/framegraph/shader"
)

// Fence reports queue progress by submission index. The cache holds
// pipelines it drops until the submission current at that moment has
// completed.
type Fence = retire.Fence

// Shader entry points every template must define.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

// Request asks for one pipeline permutation.
type Request struct {
	// Template is the root shader template name.
	Template string
	// Defines select the permutation. Order and duplicates do not matter.
	Defines shader.Defines
	// Layout is the vertex input layout. Nil means no vertex buffers.
	Layout *VertexLayout
	// Target is the fixed-function state.
	Target TargetState
	// Bindings is WGSL substituted for {{ bindings }}.
	Bindings string
	// BindGroupLayouts are used to build the pipeline layout.
	BindGroupLayouts []hal.BindGroupLayout
	// Label names GPU objects. Defaults to the template name.
	Label string
}

// defines returns the request defines merged with the layout's HAS_* set.
func (r *Request) defines() shader.Defines {
	return shader.Merge(r.Layout.Defines(), r.Defines)
}

// Compiled is a cached pipeline together with the artifacts that produced it.
type Compiled struct {
	Key      Key
	Pipeline hal.RenderPipeline
	Layout   hal.PipelineLayout
	Module   hal.ShaderModule

	// Source is the expanded WGSL. For a fallback entry it is the
	// placeholder shader.
	Source    string
	Locations []shader.Location
	Templates []string

	// Fallback reports that the permutation failed to compile and the
	// placeholder pipeline is bound instead. Err holds the cause.
	Fallback bool
	Err      error

	// groups keeps the bind group layouts alive while the entry exists so
	// their ids cannot be reused by a new layout.
	groups []hal.BindGroupLayout
}

func (c *Compiled) destroy(device hal.Device) {
	if c.Pipeline != nil {
		device.DestroyRenderPipeline(c.Pipeline)
	}
	if c.Layout != nil {
		device.DestroyPipelineLayout(c.Layout)
	}
	if c.Module != nil {
		device.DestroyShaderModule(c.Module)
	}
}

// Lookup is the read-only face of a Cache. It never compiles.
type Lookup interface {
	// Lookup returns the entry for key.
	Lookup(key Key) (*Compiled, bool)
	// Find returns the entry a request would resolve to.
	Find(req Request) (*Compiled, bool)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int
	Hits      uint64
	Misses    uint64
	Compiles  uint64
	Fallbacks uint64
}

// HitRate returns hits / (hits + misses), or 0 before the first request.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCompiler sets the shader compiler. The default is the highest
// priority registered compiler.
func WithCompiler(c Compiler) CacheOption {
	return func(cache *Cache) {
		if c != nil {
			cache.compiler = c
		}
	}
}

// WithFence defers destruction of dropped pipelines until the GPU has
// finished the work submitted before they were dropped. Without a fence
// they are destroyed immediately.
func WithFence(f Fence) CacheOption {
	return func(cache *Cache) { cache.retired.SetFence(f) }
}

// Cache compiles shader permutations on first use and keeps them until
// Clear. Keys are bucketed by their 64-bit hash; full keys are compared
// inside a bucket so hash collisions never alias two permutations.
//
// A permutation whose shader or pipeline fails to build is cached as a
// magenta placeholder and never retried. A template error is returned to
// the caller and remembered for the key until Evict or Clear, so a broken
// template is not expanded again on every frame.
//
// Cache is safe for concurrent use. It uses RWMutex with double-check
// locking, so warm lookups only take the read lock.
type Cache struct {
	mu       sync.RWMutex
	device   hal.Device
	engine   *shader.Engine
	compiler Compiler
	entries  map[uint64][]*Compiled
	failed   map[Key]error
	count    int

	idMu   sync.Mutex
	ids    map[hal.BindGroupLayout]uint64
	nextID uint64

	retired retire.List

	hits      atomic.Uint64
	misses    atomic.Uint64
	compiles  atomic.Uint64
	fallbacks atomic.Uint64
}

// NewCache creates an empty cache that expands templates with engine and
// creates pipelines on device.
func NewCache(device hal.Device, engine *shader.Engine, opts ...CacheOption) (*Cache, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if engine == nil {
		return nil, ErrNilEngine
	}
	c := &Cache{
		device:  device,
		engine:  engine,
		entries: make(map[uint64][]*Compiled),
		failed:  make(map[Key]error),
		ids:     make(map[hal.BindGroupLayout]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.compiler == nil {
		comp, err := LookupCompiler("")
		if err != nil {
			return nil, err
		}
		c.compiler = comp
	}
	return c, nil
}

// Engine returns the template engine.
func (c *Cache) Engine() *shader.Engine { return c.engine }

// Compiler returns the shader compiler in use.
func (c *Cache) Compiler() Compiler { return c.compiler }

// GetOrCompile returns the pipeline for req, building it on a miss.
//
// The returned error is non-nil only for request or template errors
// (a *shader.TemplateError for the latter) and when not even the
// placeholder pipeline can be created.
func (c *Cache) GetOrCompile(req Request) (*Compiled, error) {
	if len(req.Target.Colors) == 0 && req.Target.DepthStencil == nil {
		return nil, ErrNoTargets
	}
	defs := req.defines()
	key, _ := c.key(&req, defs, true)
	h := key.Hash()

	// Fast path: read lock.
	c.mu.RLock()
	if e := c.find(h, key); e != nil {
		c.mu.RUnlock()
		c.hits.Add(1)
		return e, nil
	}
	if err := c.failed[key]; err != nil {
		c.mu.RUnlock()
		return nil, err
	}
	c.mu.RUnlock()

	// Slow path: write lock, double-check.
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.find(h, key); e != nil {
		c.hits.Add(1)
		return e, nil
	}
	if err := c.failed[key]; err != nil {
		return nil, err
	}
	c.misses.Add(1)

	res, err := c.engine.Expand(req.Template, defs, shader.Vars{
		shader.VarVertexInput: req.Layout.WGSL(),
		shader.VarBindings:    req.Bindings,
	})
	if err != nil {
		var te *shader.TemplateError
		if errors.As(err, &te) {
			c.failed[key] = err
			slogger().Warn("pipeline: template error",
				"template", req.Template,
				"defines", key.Defines,
				"err", err)
		}
		return nil, err
	}

	label := req.Label
	if label == "" {
		label = req.Template
	}

	entry, err := c.build(label, res.Source, &req)
	if err != nil {
		slogger().Warn("pipeline: compile failed, using fallback",
			"template", req.Template,
			"defines", key.Defines,
			"layout", req.Layout.String(),
			"err", err)
		entry, err = c.buildFallback(label, &req, err)
		if err != nil {
			return nil, err
		}
		c.fallbacks.Add(1)
	} else {
		c.compiles.Add(1)
		slogger().Debug("pipeline: compiled", "template", req.Template, "defines", key.Defines)
	}
	entry.Key = key
	entry.groups = slices.Clone(req.BindGroupLayouts)
	entry.Locations = res.Locations
	entry.Templates = res.Templates
	if !entry.Fallback {
		entry.Source = res.Source
	}

	c.entries[h] = append(c.entries[h], entry)
	c.count++
	return entry, nil
}

// key builds the full key of req. With assign set, bind group layouts seen
// for the first time get a fresh id; otherwise an unknown layout makes the
// key unresolvable and ok is false.
func (c *Cache) key(req *Request, defs shader.Defines, assign bool) (key Key, ok bool) {
	key = NewKey(req.Template, defs, req.Layout, req.Target)
	key.Bindings = req.Bindings
	if len(req.BindGroupLayouts) == 0 {
		return key, true
	}

	c.idMu.Lock()
	defer c.idMu.Unlock()
	var b strings.Builder
	for i, l := range req.BindGroupLayouts {
		if i > 0 {
			b.WriteByte(',')
		}
		if l == nil {
			b.WriteByte('-')
			continue
		}
		id, found := c.ids[l]
		if !found {
			if !assign {
				return key, false
			}
			c.nextID++
			id = c.nextID
			c.ids[l] = id
		}
		b.WriteString(strconv.FormatUint(id, 10))
	}
	key.BindGroups = b.String()
	return key, true
}

// find returns the entry for key. Caller holds c.mu.
func (c *Cache) find(h uint64, key Key) *Compiled {
	for _, e := range c.entries[h] {
		if e.Key == key {
			return e
		}
	}
	return nil
}

// Lookup returns the cached entry for key without compiling.
func (c *Cache) Lookup(key Key) (*Compiled, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.find(key.Hash(), key)
	return e, e != nil
}

// Find returns the cached entry req resolves to without compiling.
func (c *Cache) Find(req Request) (*Compiled, bool) {
	key, ok := c.key(&req, req.defines(), false)
	if !ok {
		return nil, false
	}
	return c.Lookup(key)
}

// View returns a read-only view of the cache.
func (c *Cache) View() View { return View{c: c} }

// Clear drops every cached pipeline and template error. Use it after
// device loss or when a global setting baked into pipelines (MSAA, HDR
// format) changes. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, bucket := range c.entries {
		for _, e := range bucket {
			c.retire(e)
		}
	}
	n := c.count
	c.entries = make(map[uint64][]*Compiled)
	clear(c.failed)
	c.count = 0
	c.idMu.Lock()
	clear(c.ids)
	c.idMu.Unlock()
	if n > 0 {
		slogger().Info("pipeline: cache cleared", "entries", n)
	}
}

// Evict drops every entry whose expansion used template, either as the
// root or through an include, and returns how many were dropped. Template
// hot reload calls it after the file changes. Every remembered template
// error is forgotten too, since the change may fix any of them.
func (c *Cache) Evict(template string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.failed)
	n := c.removeLocked(func(e *Compiled) bool { return slices.Contains(e.Templates, template) })
	if n > 0 {
		slogger().Debug("pipeline: evicted", "template", template, "entries", n)
	}
	return n
}

// EvictBindGroupLayout drops every entry whose pipeline layout was built
// from l and forgets l's id. Call it before destroying a bind group layout
// passed in Request.BindGroupLayouts.
func (c *Cache) EvictBindGroupLayout(l hal.BindGroupLayout) int {
	if l == nil {
		return 0
	}
	c.mu.Lock()
	n := c.removeLocked(func(e *Compiled) bool { return slices.Contains(e.groups, l) })
	c.mu.Unlock()

	c.idMu.Lock()
	delete(c.ids, l)
	c.idMu.Unlock()
	if n > 0 {
		slogger().Debug("pipeline: evicted bind group layout users", "entries", n)
	}
	return n
}

// removeLocked retires every entry matching drop. Caller holds c.mu.
func (c *Cache) removeLocked(drop func(*Compiled) bool) int {
	n := 0
	for h, bucket := range c.entries {
		kept := bucket[:0]
		for _, e := range bucket {
			if drop(e) {
				c.retire(e)
				n++
				continue
			}
			kept = append(kept, e)
		}
		clear(bucket[len(kept):])
		if len(kept) == 0 {
			delete(c.entries, h)
		} else {
			c.entries[h] = kept
		}
	}
	c.count -= n
	return n
}

// retire destroys e once the GPU is done with the work submitted so far.
func (c *Cache) retire(e *Compiled) {
	device := c.device
	c.retired.Defer(func() { e.destroy(device) })
}

// Collect destroys dropped pipelines whose last possible use has completed
// and returns how many were destroyed. The engine calls it every frame.
func (c *Cache) Collect() int { return c.retired.Collect() }

// Flush destroys every dropped pipeline immediately. Call it only when the
// device is idle.
func (c *Cache) Flush() int { return c.retired.Flush() }

// Retired returns the number of dropped pipelines waiting for the GPU.
func (c *Cache) Retired() int { return c.retired.Len() }

// Len returns the number of cached permutations, fallbacks included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:   c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Compiles:  c.compiles.Load(),
		Fallbacks: c.fallbacks.Load(),
	}
}

// build creates module, layout and pipeline. Partially created objects are
// destroyed on failure.
func (c *Cache) build(label, source string, req *Request) (*Compiled, error) {
	module, err := c.compiler.CreateModule(c.device, label, source)
	if err != nil {
		return nil, fmt.Errorf("%w: shader module: %w", ErrCompile, err)
	}
	e := &Compiled{Module: module}

	e.Layout, err = c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: req.BindGroupLayouts,
	})
	if err != nil {
		e.destroy(c.device)
		return nil, fmt.Errorf("%w: pipeline layout: %w", ErrCompile, err)
	}

	e.Pipeline, err = c.device.CreateRenderPipeline(renderPipelineDescriptor(label, e, req))
	if err != nil {
		e.destroy(c.device)
		return nil, fmt.Errorf("%w: render pipeline: %w", ErrCompile, err)
	}
	return e, nil
}

func (c *Cache) buildFallback(label string, req *Request, cause error) (*Compiled, error) {
	src := FallbackSource(req.Layout, len(req.Target.Colors))
	fb := *req
	fb.BindGroupLayouts = nil
	e, err := c.build(label+" (fallback)", src, &fb)
	if err != nil {
		return nil, fmt.Errorf("%w: %w (original error: %w)", ErrFallbackFailed, err, cause)
	}
	e.Source = src
	e.Fallback = true
	e.Err = cause
	return e, nil
}

func renderPipelineDescriptor(label string, e *Compiled, req *Request) *hal.RenderPipelineDescriptor {
	ms := req.Target.Multisample
	if ms.Count == 0 {
		ms = gputypes.DefaultMultisampleState()
	}
	desc := &hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: e.Layout,
		Vertex: hal.VertexState{
			Module:     e.Module,
			EntryPoint: VertexEntryPoint,
			Buffers:    req.Layout.Buffers(),
		},
		Primitive:    req.Target.Primitive,
		DepthStencil: req.Target.DepthStencil,
		Multisample:  ms,
	}
	if len(req.Target.Colors) > 0 {
		desc.Fragment = &hal.FragmentState{
			Module:     e.Module,
			EntryPoint: FragmentEntryPoint,
			Targets:    req.Target.Colors,
		}
	}
	return desc
}

// FallbackSource returns the placeholder shader for a layout and color
// target count. It draws the geometry in solid magenta when the layout
// has a "position" attribute and a fullscreen triangle otherwise.
func FallbackSource(layout *VertexLayout, colors int) string {
	var b strings.Builder
	pos := ""
	if f, ok := layout.Format("position"); ok {
		switch WGSLType(f) {
		case "vec2<f32>":
			pos = "vec4<f32>(in.position, 0.0, 1.0)"
		case "vec3<f32>":
			pos = "vec4<f32>(in.position, 1.0)"
		case "vec4<f32>":
			pos = "in.position"
		}
	}
	if pos != "" {
		b.WriteString(layout.WGSL())
		b.WriteString("\n@vertex\nfn vs_main(in: VertexInput) -> @builtin(position) vec4<f32> {\n")
		fmt.Fprintf(&b, "    return %s;\n}\n", pos)
	} else {
		b.WriteString("@vertex\nfn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {\n")
		b.WriteString("    let x = f32((i << 1u) & 2u);\n")
		b.WriteString("    let y = f32(i & 2u);\n")
		b.WriteString("    return vec4<f32>(x * 2.0 - 1.0, y * 2.0 - 1.0, 0.0, 1.0);\n}\n")
	}
	if colors == 0 {
		return b.String()
	}
	b.WriteString("\nstruct FragmentOutput {\n")
	for i := range colors {
		fmt.Fprintf(&b, "    @location(%d) c%d: vec4<f32>,\n", i, i)
	}
	b.WriteString("}\n\n@fragment\nfn fs_main() -> FragmentOutput {\n")
	b.WriteString("    var out: FragmentOutput;\n")
	for i := range colors {
		fmt.Fprintf(&b, "    out.c%d = vec4<f32>(1.0, 0.0, 1.0, 1.0);\n", i)
	}
	b.WriteString("    return out;\n}\n")
	return b.String()
}

// View is a read-only handle to a Cache.
type View struct {
	c *Cache
}

// Lookup returns the cached entry for key.
func (v View) Lookup(key Key) (*Compiled, bool) {
	if v.c == nil {
		return nil, false
	}
	return v.c.Lookup(key)
}

// Find returns the cached entry req resolves to.
func (v View) Find(req Request) (*Compiled, bool) {
	if v.c == nil {
		return nil, false
	}
	return v.c.Find(req)
}

var (
	_ Lookup = (*Cache)(nil)
	_ Lookup = View{}
)

// IsFallback reports whether err came from a failed backend compile.
func IsFallback(err error) bool { return errors.Is(err, ErrCompile) }
