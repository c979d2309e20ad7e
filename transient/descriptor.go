// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package transient

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Kind is the kind of pooled resource.
type Kind uint8

const (
	// KindTexture is a GPU texture with a default view.
	KindTexture Kind = iota
	// KindBuffer is a GPU buffer.
	KindBuffer
)

func (k Kind) String() string {
	switch k {
	case KindTexture:
		return "texture"
	case KindBuffer:
		return "buffer"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Lifetime is a hint about how long a resource is expected to live.
// The pool treats every resource as frame scoped; the hint only affects
// eviction order when the pool is over budget.
type Lifetime uint8

const (
	// LifetimeFrame is the default: the resource is rebuilt every frame.
	LifetimeFrame Lifetime = iota
	// LifetimePersistentHint marks resources requested every frame with the
	// same descriptor. They are evicted last under budget pressure.
	LifetimePersistentHint
)

// Descriptor describes a transient texture or buffer request.
//
// Label and Lifetime do not take part in matching; every other field must
// be compatible for a pooled entry to be reused.
type Descriptor struct {
	Kind  Kind
	Label string

	// Texture fields.
	Width              uint32
	Height             uint32
	DepthOrArrayLayers uint32 // 0 means 1
	MipLevelCount      uint32 // 0 means 1
	SampleCount        uint32 // 0 means 1
	Dimension          gputypes.TextureDimension
	Format             gputypes.TextureFormat
	TextureUsage       gputypes.TextureUsage

	// Buffer fields.
	Size        uint64
	BufferUsage gputypes.BufferUsage

	Lifetime Lifetime
}

// TextureDesc returns a single-mip 2D texture descriptor.
func TextureDesc(label string, width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) Descriptor {
	return Descriptor{
		Kind:         KindTexture,
		Label:        label,
		Width:        width,
		Height:       height,
		Format:       format,
		TextureUsage: usage,
	}
}

// BufferDesc returns a buffer descriptor.
func BufferDesc(label string, size uint64, usage gputypes.BufferUsage) Descriptor {
	return Descriptor{
		Kind:        KindBuffer,
		Label:       label,
		Size:        size,
		BufferUsage: usage,
	}
}

// normalized fills in defaults for zero fields.
func (d Descriptor) normalized() Descriptor {
	if d.Kind != KindTexture {
		return d
	}
	if d.DepthOrArrayLayers == 0 {
		d.DepthOrArrayLayers = 1
	}
	if d.MipLevelCount == 0 {
		d.MipLevelCount = 1
	}
	if d.SampleCount == 0 {
		d.SampleCount = 1
	}
	if d.Dimension == gputypes.TextureDimensionUndefined {
		d.Dimension = gputypes.TextureDimension2D
	}
	return d
}

func (d Descriptor) validate() error {
	switch d.Kind {
	case KindTexture:
		if d.Width == 0 || d.Height == 0 {
			return fmt.Errorf("%w: %q has zero extent %dx%d", ErrInvalidDescriptor, d.Label, d.Width, d.Height)
		}
		if d.Format == gputypes.TextureFormatUndefined {
			return fmt.Errorf("%w: %q has undefined format", ErrInvalidDescriptor, d.Label)
		}
		if d.MipLevelCount > mipLevels(d.Width, d.Height) {
			return fmt.Errorf("%w: %q requests %d mips for %dx%d", ErrInvalidDescriptor, d.Label, d.MipLevelCount, d.Width, d.Height)
		}
	case KindBuffer:
		if d.Size == 0 {
			return fmt.Errorf("%w: buffer %q has zero size", ErrInvalidDescriptor, d.Label)
		}
	default:
		return fmt.Errorf("%w: unknown kind %v", ErrInvalidDescriptor, d.Kind)
	}
	return nil
}

// classKey is the compatibility class of a descriptor after bucketing.
type classKey struct {
	kind     Kind
	width    uint32
	height   uint32
	layers   uint32
	mips     uint32
	samples  uint32
	dim      gputypes.TextureDimension
	format   gputypes.TextureFormat
	texUsage gputypes.TextureUsage
	size     uint64
	bufUsage gputypes.BufferUsage
}

// class returns the compatibility class of a normalized descriptor and the
// descriptor actually allocated for it, which may be larger than requested.
func class(d Descriptor, policy BucketPolicy) (classKey, Descriptor) {
	alloc := d
	switch d.Kind {
	case KindTexture:
		alloc.Width = uint32(policy.Round(uint64(d.Width)))
		alloc.Height = uint32(policy.Round(uint64(d.Height)))
	case KindBuffer:
		alloc.Size = policy.Round(d.Size)
	}
	return classKey{
		kind:     alloc.Kind,
		width:    alloc.Width,
		height:   alloc.Height,
		layers:   alloc.DepthOrArrayLayers,
		mips:     alloc.MipLevelCount,
		samples:  alloc.SampleCount,
		dim:      alloc.Dimension,
		format:   alloc.Format,
		texUsage: alloc.TextureUsage,
		size:     alloc.Size,
		bufUsage: alloc.BufferUsage,
	}, alloc
}

// byteSize estimates the memory held by an allocated descriptor.
func (d Descriptor) byteSize() uint64 {
	if d.Kind == KindBuffer {
		return d.Size
	}
	bpp := bytesPerPixel(d.Format)
	var total uint64
	w, h := uint64(d.Width), uint64(d.Height)
	for range d.MipLevelCount {
		total += w * h * bpp
		w = max(w/2, 1)
		h = max(h/2, 1)
	}
	return total * uint64(d.DepthOrArrayLayers) * uint64(d.SampleCount)
}

func mipLevels(w, h uint32) uint32 {
	n := uint32(1)
	for m := max(w, h); m > 1; m >>= 1 {
		n++
	}
	return n
}

// bytesPerPixel returns the texel size of uncompressed formats. Unknown
// formats count as 4 bytes.
func bytesPerPixel(f gputypes.TextureFormat) uint64 {
	switch f {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR8Snorm,
		gputypes.TextureFormatR8Uint, gputypes.TextureFormatR8Sint,
		gputypes.TextureFormatStencil8:
		return 1
	case gputypes.TextureFormatR16Uint, gputypes.TextureFormatR16Sint, gputypes.TextureFormatR16Float,
		gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatRG8Snorm,
		gputypes.TextureFormatRG8Uint, gputypes.TextureFormatRG8Sint,
		gputypes.TextureFormatDepth16Unorm:
		return 2
	case gputypes.TextureFormatRG32Uint, gputypes.TextureFormatRG32Sint, gputypes.TextureFormatRG32Float,
		gputypes.TextureFormatRGBA16Uint, gputypes.TextureFormatRGBA16Sint, gputypes.TextureFormatRGBA16Float,
		gputypes.TextureFormatDepth32FloatStencil8:
		return 8
	case gputypes.TextureFormatRGBA32Uint, gputypes.TextureFormatRGBA32Sint, gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}
