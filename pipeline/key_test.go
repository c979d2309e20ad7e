// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"

	"github.com/gogpu/framegraph/shader"
)

func TestNewKeyCanonical(t *testing.T) {
	target := OpaqueTarget(gputypes.TextureFormatRGBA16Float, gputypes.TextureFormatDepth24Plus)
	layout := NewVertexLayout(Interleaved(VertexAttribute{Name: "position", Format: gputypes.VertexFormatFloat32x3}))

	a := NewKey("mesh", shader.Defines{{Name: "B"}, {Name: "A"}, {Name: "B"}}, layout, target)
	b := NewKey("mesh", shader.NewDefines("A", "B"), layout, target)

	assert.Equal(t, a, b)
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, "A,B", a.Defines)
	assert.Equal(t, layout.String(), a.Layout, "the full signature, not a hash")
}

func TestKeyDistinguishesEveryComponent(t *testing.T) {
	target := OpaqueTarget(gputypes.TextureFormatRGBA16Float, gputypes.TextureFormatDepth24Plus)
	layout := NewVertexLayout(Interleaved(VertexAttribute{Name: "position", Format: gputypes.VertexFormatFloat32x3}))
	base := NewKey("mesh", shader.NewDefines("HAS_UV"), layout, target)

	other := OpaqueTarget(gputypes.TextureFormatRGBA16Float, gputypes.TextureFormatDepth32Float)
	msaa := target
	msaa.Multisample.Count = 4
	biased := OpaqueTarget(gputypes.TextureFormatRGBA16Float, gputypes.TextureFormatDepth24Plus)
	biased.DepthStencil.DepthBias = 2

	withBindings := base
	withBindings.Bindings = "@group(0) @binding(0) var<uniform> u: vec4<f32>;"
	withGroups := base
	withGroups.BindGroups = "1"

	variants := map[string]Key{
		"bindings":    withBindings,
		"bind groups": withGroups,
		"template":    NewKey("skybox", shader.NewDefines("HAS_UV"), layout, target),
		"defines":     NewKey("mesh", shader.ParseDefines("HAS_UV=0"), layout, target),
		"layout":      NewKey("mesh", shader.NewDefines("HAS_UV"), nil, target),
		"depth":       NewKey("mesh", shader.NewDefines("HAS_UV"), layout, other),
		"blend":       NewKey("mesh", shader.NewDefines("HAS_UV"), layout, TransparentTarget(gputypes.TextureFormatRGBA16Float, gputypes.TextureFormatDepth24Plus)),
		"msaa":        NewKey("mesh", shader.NewDefines("HAS_UV"), layout, msaa),
		"bias":        NewKey("mesh", shader.NewDefines("HAS_UV"), layout, biased),
	}
	for name, k := range variants {
		assert.NotEqual(t, base, k, name)
		assert.NotEqual(t, base.Hash(), k.Hash(), name)
	}
}

func TestTargetPresets(t *testing.T) {
	opaque := OpaqueTarget(gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatDepth24Plus)
	assert.Nil(t, opaque.Colors[0].Blend)
	assert.True(t, opaque.DepthStencil.DepthWriteEnabled)
	assert.Equal(t, gputypes.CullModeBack, opaque.Primitive.CullMode)
	assert.Equal(t, []gputypes.TextureFormat{gputypes.TextureFormatBGRA8Unorm}, opaque.ColorFormats())

	tr := TransparentTarget(gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatDepth24Plus)
	assert.NotNil(t, tr.Colors[0].Blend)
	assert.False(t, tr.DepthStencil.DepthWriteEnabled)
	// The presets must not share depth state.
	assert.True(t, opaque.DepthStencil.DepthWriteEnabled)

	fs := FullscreenTarget(gputypes.TextureFormatBGRA8Unorm)
	assert.Nil(t, fs.DepthStencil)
	assert.Equal(t, gputypes.CullModeNone, fs.Primitive.CullMode)
}
