// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package transient

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/internal/cache"
	"github.com/gogpu/framegraph/internal/retire"
)

// DefaultMaxIdleFrames is the number of complete frames a free entry may
// sit unused before RecycleAll releases it.
const DefaultMaxIdleFrames = 8

// Handle is a frame-scoped reference to a pooled resource. It is valid
// until the next RecycleAll; after that every method taking it returns
// ErrStaleHandle. The zero Handle is never valid.
type Handle struct {
	slot       uint32
	generation uint32
	epoch      uint64
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return h.generation == 0 }

// Epoch returns the pool epoch the handle was issued in.
func (h Handle) Epoch() uint64 { return h.epoch }

func (h Handle) String() string {
	if h.IsZero() {
		return "transient.Handle(nil)"
	}
	return fmt.Sprintf("transient.Handle(%d.%d@%d)", h.slot, h.generation, h.epoch)
}

// Resource is the GPU side of a pooled entry.
type Resource struct {
	// Desc is the allocated descriptor. With a bucketing policy the
	// extent or size may be larger than requested.
	Desc Descriptor

	Texture hal.Texture
	// View covers every mip level and layer.
	View hal.TextureView
	// MipViews holds one single-level view per mip.
	MipViews []hal.TextureView

	Buffer hal.Buffer
}

// Resolver is the read-only face of a Pool used while commands are
// recorded. It cannot acquire or recycle.
type Resolver interface {
	Resolve(h Handle) (Resource, error)
	Texture(h Handle) (hal.Texture, error)
	TextureView(h Handle) (hal.TextureView, error)
	MipView(h Handle, level uint32) (hal.TextureView, error)
	Buffer(h Handle) (hal.Buffer, error)
	Epoch() uint64
}

// Stats is a snapshot of pool state.
type Stats struct {
	Entries     int
	Active      int
	Free        int
	Bytes       uint64
	Budget      uint64
	Allocations uint64
	Reuses      uint64
	Evictions   uint64
	Epoch       uint64
	// Retired counts released resources still waiting for the GPU.
	Retired int
}

type entry struct {
	slot     uint32
	gen      uint32
	key      classKey
	res      Resource
	bytes    uint64
	reserved bool
	aliased  bool
	lastUsed uint64
	node     *cache.Node[uint32] // non-nil while free
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	maxIdleFrames int
	budget        uint64
	bucket        BucketPolicy
	fence         Fence
}

func defaultOptions() options {
	return options{
		maxIdleFrames: DefaultMaxIdleFrames,
		bucket:        BucketExact,
	}
}

// WithMaxIdleFrames sets how many complete frames a free entry may stay
// unused before RecycleAll releases it. A negative value disables idle
// eviction.
func WithMaxIdleFrames(n int) Option {
	return func(o *options) { o.maxIdleFrames = n }
}

// WithBudget sets the soft memory budget in bytes. When the pool holds more,
// least recently used free entries are released and a warning is logged.
// Zero means unlimited.
func WithBudget(bytes uint64) Option {
	return func(o *options) { o.budget = bytes }
}

// WithBucketPolicy sets the size matching tolerance.
func WithBucketPolicy(p BucketPolicy) Option {
	return func(o *options) { o.bucket = p }
}

// Fence reports queue progress by submission index.
type Fence = retire.Fence

// WithFence makes the pool hold released resources until the GPU has
// finished the submission that was current when they were released.
// Without a fence they are destroyed immediately.
func WithFence(f Fence) Option {
	return func(o *options) { o.fence = f }
}

// Pool hands out short-lived textures and buffers and recycles them across
// frames.
//
// During a frame, Acquire reserves a compatible free entry or allocates a
// new one. An entry reserved in the current frame is never returned to a
// second Acquire; only AcquireAliased shares entries, and only with other
// AcquireAliased callers. RecycleAll ends the frame: every reserved entry
// becomes free and every outstanding Handle turns stale.
//
// Pool methods are safe for concurrent use, but the frame protocol assumes
// one render goroutine.
type Pool struct {
	mu     sync.Mutex
	device hal.Device
	opts   options

	entries []*entry // by slot, nil for empty slots
	gens    []uint32 // last generation per slot
	holes   []uint32
	free    map[classKey][]*entry
	shared  map[classKey]*entry
	lru     cache.List[uint32] // free entries, front is most recently used
	retired retire.List

	epoch     uint64
	bytes     uint64
	active    int
	destroyed bool

	allocations uint64
	reuses      uint64
	evictions   uint64
}

// NewPool creates an empty pool allocating from device.
func NewPool(device hal.Device, opts ...Option) (*Pool, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	p := &Pool{
		device: device,
		opts:   o,
		free:   make(map[classKey][]*entry),
		shared: make(map[classKey]*entry),
		epoch:  1,
	}
	p.retired.SetFence(o.fence)
	return p, nil
}

// Acquire reserves a resource matching desc for the current frame.
func (p *Pool) Acquire(desc Descriptor) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.reserve(desc)
	if err != nil {
		return Handle{}, err
	}
	return p.handle(e), nil
}

// AcquireAliased is like Acquire but opts into sharing: every
// AcquireAliased call with a compatible descriptor in the same frame
// returns the same entry. Entries reserved by Acquire are never shared.
func (p *Pool) AcquireAliased(desc Descriptor) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return Handle{}, ErrPoolDestroyed
	}
	desc = desc.normalized()
	if err := desc.validate(); err != nil {
		return Handle{}, err
	}
	key, _ := class(desc, p.opts.bucket)
	if e := p.shared[key]; e != nil {
		return p.handle(e), nil
	}
	e, err := p.reserve(desc)
	if err != nil {
		return Handle{}, err
	}
	e.aliased = true
	p.shared[key] = e
	return p.handle(e), nil
}

// reserve takes a free compatible entry or allocates one. Caller holds p.mu.
func (p *Pool) reserve(desc Descriptor) (*entry, error) {
	if p.destroyed {
		return nil, ErrPoolDestroyed
	}
	desc = desc.normalized()
	if err := desc.validate(); err != nil {
		return nil, err
	}
	key, alloc := class(desc, p.opts.bucket)

	if bucket := p.free[key]; len(bucket) > 0 {
		e := bucket[len(bucket)-1]
		p.free[key] = bucket[:len(bucket)-1]
		p.lru.Remove(e.node)
		e.node = nil
		e.reserved = true
		e.res.Desc.Label = desc.Label
		e.res.Desc.Lifetime = desc.Lifetime
		p.active++
		p.reuses++
		return e, nil
	}

	e, err := p.allocate(key, alloc)
	if err != nil {
		return nil, err
	}
	e.reserved = true
	p.active++
	p.enforceBudget()
	return e, nil
}

func (p *Pool) allocate(key classKey, desc Descriptor) (*entry, error) {
	e := &entry{key: key, bytes: desc.byteSize()}
	e.res.Desc = desc

	switch desc.Kind {
	case KindTexture:
		if err := p.createTexture(&e.res); err != nil {
			return nil, err
		}
	case KindBuffer:
		buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
			Label: desc.Label,
			Size:  desc.Size,
			Usage: desc.BufferUsage,
		})
		if err != nil {
			return nil, fmt.Errorf("transient: create buffer %q: %w", desc.Label, err)
		}
		e.res.Buffer = buf
	}

	if n := len(p.holes); n > 0 {
		e.slot = p.holes[n-1]
		p.holes = p.holes[:n-1]
	} else {
		e.slot = uint32(len(p.entries))
		p.entries = append(p.entries, nil)
		p.gens = append(p.gens, 0)
	}
	p.gens[e.slot]++
	e.gen = p.gens[e.slot]
	p.entries[e.slot] = e
	p.bytes += e.bytes
	p.allocations++

	slogger().Debug("transient: allocated",
		"label", desc.Label,
		"kind", desc.Kind,
		"width", desc.Width,
		"height", desc.Height,
		"format", desc.Format,
		"bytes", e.bytes)
	return e, nil
}

func (p *Pool) createTexture(r *Resource) error {
	d := r.Desc
	tex, err := p.device.CreateTexture(&hal.TextureDescriptor{
		Label: d.Label,
		Size: hal.Extent3D{
			Width:              d.Width,
			Height:             d.Height,
			DepthOrArrayLayers: d.DepthOrArrayLayers,
		},
		MipLevelCount: d.MipLevelCount,
		SampleCount:   d.SampleCount,
		Dimension:     d.Dimension,
		Format:        d.Format,
		Usage:         d.TextureUsage,
	})
	if err != nil {
		return fmt.Errorf("transient: create texture %q: %w", d.Label, err)
	}
	r.Texture = tex

	dim := viewDimension(d)
	r.View, err = p.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           d.Label,
		Format:          d.Format,
		Dimension:       dim,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   d.MipLevelCount,
		ArrayLayerCount: arrayLayers(d),
	})
	if err != nil {
		p.destroyResource(r)
		return fmt.Errorf("transient: create view %q: %w", d.Label, err)
	}

	if d.MipLevelCount == 1 {
		r.MipViews = []hal.TextureView{r.View}
		return nil
	}
	r.MipViews = make([]hal.TextureView, 0, d.MipLevelCount)
	for level := range d.MipLevelCount {
		v, err := p.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:           d.Label,
			Format:          d.Format,
			Dimension:       dim,
			Aspect:          gputypes.TextureAspectAll,
			BaseMipLevel:    level,
			MipLevelCount:   1,
			ArrayLayerCount: arrayLayers(d),
		})
		if err != nil {
			p.destroyResource(r)
			return fmt.Errorf("transient: create mip %d view %q: %w", level, d.Label, err)
		}
		r.MipViews = append(r.MipViews, v)
	}
	return nil
}

func viewDimension(d Descriptor) gputypes.TextureViewDimension {
	switch d.Dimension {
	case gputypes.TextureDimension1D:
		return gputypes.TextureViewDimension1D
	case gputypes.TextureDimension3D:
		return gputypes.TextureViewDimension3D
	default:
		if d.DepthOrArrayLayers > 1 {
			return gputypes.TextureViewDimension2DArray
		}
		return gputypes.TextureViewDimension2D
	}
}

func arrayLayers(d Descriptor) uint32 {
	if d.Dimension == gputypes.TextureDimension3D {
		return 1
	}
	return d.DepthOrArrayLayers
}

func (p *Pool) destroyResource(r *Resource) {
	for _, v := range r.MipViews {
		if v != nil && v != r.View {
			p.device.DestroyTextureView(v)
		}
	}
	if r.View != nil {
		p.device.DestroyTextureView(r.View)
	}
	if r.Texture != nil {
		p.device.DestroyTexture(r.Texture)
	}
	if r.Buffer != nil {
		p.device.DestroyBuffer(r.Buffer)
	}
	*r = Resource{Desc: r.Desc}
}

func (p *Pool) handle(e *entry) Handle {
	return Handle{slot: e.slot, generation: e.gen, epoch: p.epoch}
}

// RecycleAll ends the frame. Every reserved entry becomes free, the epoch
// advances so outstanding handles turn stale, idle entries are released
// and the budget is enforced.
func (p *Pool) RecycleAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}

	recycled := 0
	for _, e := range p.entries {
		if e == nil || !e.reserved {
			continue
		}
		e.reserved = false
		e.aliased = false
		e.lastUsed = p.epoch
		e.node = p.lru.PushFront(e.slot)
		p.free[e.key] = append(p.free[e.key], e)
		recycled++
	}
	clear(p.shared)
	p.active = 0
	p.epoch++

	evicted := 0
	if p.opts.maxIdleFrames >= 0 {
		evicted = p.evictIdle(uint64(p.opts.maxIdleFrames) + 1)
	}
	p.enforceBudget()
	destroyed := p.retired.Collect()

	slogger().Debug("transient: recycled",
		"epoch", p.epoch,
		"recycled", recycled,
		"evicted_idle", evicted,
		"destroyed", destroyed,
		"retired", p.retired.Len(),
		"entries", p.lru.Len(),
		"bytes", p.bytes)
}

// Collect destroys released resources whose last possible use has
// completed and returns how many were destroyed. RecycleAll calls it.
func (p *Pool) Collect() int { return p.retired.Collect() }

// Trim releases free entries that have been unused for at least maxIdle
// complete frames. Trim(0) releases every free entry. It returns the number
// of entries released.
func (p *Pool) Trim(maxIdle int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if maxIdle < 0 {
		maxIdle = 0
	}
	n := p.evictIdle(uint64(maxIdle))
	if n > 0 {
		slogger().Debug("transient: trimmed", "released", n, "bytes", p.bytes)
	}
	return n
}

// evictIdle releases free entries idle for at least minIdle frames. The
// LRU list is ordered by lastUsed, so the walk stops at the first entry
// that is still warm. Caller holds p.mu.
func (p *Pool) evictIdle(minIdle uint64) int {
	n := 0
	for node := p.lru.Oldest(); node != nil; {
		e := p.entries[node.Key]
		if p.idleFrames(e) < minIdle {
			break
		}
		next := p.lru.Newer(node)
		p.evict(e)
		n++
		node = next
	}
	return n
}

// idleFrames is the number of complete frames e has spent unused.
func (p *Pool) idleFrames(e *entry) uint64 {
	return p.epoch - e.lastUsed - 1
}

// enforceBudget releases least recently used free entries while the pool is
// over budget. Frame-lifetime entries go before persistent ones. Caller
// holds p.mu.
func (p *Pool) enforceBudget() {
	budget := p.opts.budget
	if budget == 0 || p.bytes <= budget {
		return
	}
	before := p.bytes
	n := 0
	for _, lifetime := range []Lifetime{LifetimeFrame, LifetimePersistentHint} {
		for node := p.lru.Oldest(); node != nil && p.bytes > budget; {
			next := p.lru.Newer(node)
			if e := p.entries[node.Key]; e.res.Desc.Lifetime == lifetime {
				p.evict(e)
				n++
			}
			node = next
		}
	}
	if p.bytes > budget {
		slogger().Warn("transient: over budget with live resources",
			"bytes", p.bytes, "budget", budget, "released", n, "active", p.active)
		return
	}
	slogger().Warn("transient: over budget, released free entries",
		"before", before, "after", p.bytes, "budget", budget, "released", n)
}

// evict destroys a free entry. Caller holds p.mu.
func (p *Pool) evict(e *entry) {
	p.lru.Remove(e.node)
	e.node = nil
	bucket := p.free[e.key]
	if i := slices.Index(bucket, e); i >= 0 {
		bucket = slices.Delete(bucket, i, i+1)
	}
	if len(bucket) == 0 {
		delete(p.free, e.key)
	} else {
		p.free[e.key] = bucket
	}
	res := e.res
	e.res = Resource{Desc: res.Desc}
	p.retired.Defer(func() { p.destroyResource(&res) })
	p.entries[e.slot] = nil
	p.holes = append(p.holes, e.slot)
	p.bytes -= e.bytes
	p.evictions++
}

// Resolve returns a copy of the resource behind h. Changing the copy does
// not affect the pool.
func (p *Pool) Resolve(h Handle) (Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(h)
	if err != nil {
		return Resource{}, err
	}
	r := e.res
	r.MipViews = slices.Clone(r.MipViews)
	return r, nil
}

func (p *Pool) lookup(h Handle) (*entry, error) {
	if h.IsZero() {
		return nil, ErrInvalidHandle
	}
	if p.destroyed {
		return nil, ErrPoolDestroyed
	}
	if h.epoch != p.epoch {
		return nil, fmt.Errorf("%w: %v used in epoch %d", ErrStaleHandle, h, p.epoch)
	}
	if int(h.slot) >= len(p.entries) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandle, h)
	}
	e := p.entries[h.slot]
	if e == nil || e.gen != h.generation || !e.reserved {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandle, h)
	}
	return e, nil
}

// Texture returns the texture behind h.
func (p *Pool) Texture(h Handle) (hal.Texture, error) {
	r, err := p.resolveKind(h, KindTexture)
	if err != nil {
		return nil, err
	}
	return r.Texture, nil
}

// TextureView returns the full view of the texture behind h.
func (p *Pool) TextureView(h Handle) (hal.TextureView, error) {
	r, err := p.resolveKind(h, KindTexture)
	if err != nil {
		return nil, err
	}
	return r.View, nil
}

// MipView returns a view of a single mip level of the texture behind h.
func (p *Pool) MipView(h Handle, level uint32) (hal.TextureView, error) {
	r, err := p.resolveKind(h, KindTexture)
	if err != nil {
		return nil, err
	}
	if int(level) >= len(r.MipViews) {
		return nil, fmt.Errorf("%w: level %d of %d", ErrMipOutOfRange, level, len(r.MipViews))
	}
	return r.MipViews[level], nil
}

// Buffer returns the buffer behind h.
func (p *Pool) Buffer(h Handle) (hal.Buffer, error) {
	r, err := p.resolveKind(h, KindBuffer)
	if err != nil {
		return nil, err
	}
	return r.Buffer, nil
}

func (p *Pool) resolveKind(h Handle, kind Kind) (*Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(h)
	if err != nil {
		return nil, err
	}
	if e.res.Desc.Kind != kind {
		return nil, fmt.Errorf("%w: %v is a %v", ErrWrongKind, h, e.res.Desc.Kind)
	}
	return &e.res, nil
}

// Epoch returns the current frame epoch.
func (p *Pool) Epoch() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.epoch
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	free := p.lru.Len()
	return Stats{
		Entries:     p.active + free,
		Active:      p.active,
		Free:        free,
		Bytes:       p.bytes,
		Budget:      p.opts.budget,
		Allocations: p.allocations,
		Reuses:      p.reuses,
		Evictions:   p.evictions,
		Epoch:       p.epoch,
		Retired:     p.retired.Len(),
	}
}

// Resolver returns a read-only view of the pool.
func (p *Pool) Resolver() Resolver { return resolver{p} }

// Destroy releases every resource, including ones still waiting for the
// GPU. Call it only when the device is idle. Handles and further calls
// fail with ErrPoolDestroyed.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	for _, e := range p.entries {
		if e != nil {
			p.destroyResource(&e.res)
		}
	}
	p.retired.Flush()
	p.entries = nil
	p.holes = nil
	p.free = nil
	p.shared = nil
	p.lru.Clear()
	p.bytes = 0
	p.active = 0
	p.destroyed = true
}

// resolver hides the mutating methods of Pool.
type resolver struct{ p *Pool }

func (r resolver) Resolve(h Handle) (Resource, error)            { return r.p.Resolve(h) }
func (r resolver) Texture(h Handle) (hal.Texture, error)         { return r.p.Texture(h) }
func (r resolver) TextureView(h Handle) (hal.TextureView, error) { return r.p.TextureView(h) }
func (r resolver) Buffer(h Handle) (hal.Buffer, error)           { return r.p.Buffer(h) }
func (r resolver) Epoch() uint64                                 { return r.p.Epoch() }

func (r resolver) MipView(h Handle, level uint32) (hal.TextureView, error) {
	return r.p.MipView(h, level)
}

var (
	_ Resolver = (*Pool)(nil)
	_ Resolver = resolver{}
)
