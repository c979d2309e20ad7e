// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// TargetState is the fixed-function state a pipeline is compiled for:
// render target formats plus blend, depth/stencil, primitive and
// multisample state.
type TargetState struct {
	Colors       []gputypes.ColorTargetState
	DepthStencil *hal.DepthStencilState
	Primitive    gputypes.PrimitiveState
	Multisample  gputypes.MultisampleState
}

// OpaqueTarget returns the state for an opaque pass writing color without
// blending and testing depth with less-equal.
func OpaqueTarget(color, depth gputypes.TextureFormat) TargetState {
	t := TargetState{
		Colors: []gputypes.ColorTargetState{{
			Format:    color,
			WriteMask: gputypes.ColorWriteMaskAll,
		}},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeBack,
		},
		Multisample: gputypes.DefaultMultisampleState(),
	}
	if depth != gputypes.TextureFormatUndefined {
		t.DepthStencil = &hal.DepthStencilState{
			Format:            depth,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLessEqual,
			StencilFront:      hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways},
			StencilBack:       hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways},
			StencilReadMask:   0xFFFFFFFF,
			StencilWriteMask:  0xFFFFFFFF,
		}
	}
	return t
}

// TransparentTarget returns the state for alpha-blended geometry: depth is
// tested but not written and back faces are kept.
func TransparentTarget(color, depth gputypes.TextureFormat) TargetState {
	t := OpaqueTarget(color, depth)
	blend := gputypes.BlendStateAlpha()
	t.Colors[0].Blend = &blend
	t.Primitive.CullMode = gputypes.CullModeNone
	if t.DepthStencil != nil {
		t.DepthStencil.DepthWriteEnabled = false
	}
	return t
}

// FullscreenTarget returns the state for a fullscreen triangle writing a
// single color target without depth.
func FullscreenTarget(color gputypes.TextureFormat) TargetState {
	t := OpaqueTarget(color, gputypes.TextureFormatUndefined)
	t.Primitive.CullMode = gputypes.CullModeNone
	return t
}

// signature renders every field that affects pipeline creation into a
// stable string. Floats are written as bit patterns so that -0 and 0 or
// NaN payloads never collide.
func (t TargetState) signature() string {
	var b strings.Builder
	for i, c := range t.Colors {
		fmt.Fprintf(&b, "c%d:%d:%d", i, c.Format, c.WriteMask)
		if c.Blend != nil {
			fmt.Fprintf(&b, ":%d/%d/%d:%d/%d/%d",
				c.Blend.Color.SrcFactor, c.Blend.Color.DstFactor, c.Blend.Color.Operation,
				c.Blend.Alpha.SrcFactor, c.Blend.Alpha.DstFactor, c.Blend.Alpha.Operation)
		}
		b.WriteByte(';')
	}
	if d := t.DepthStencil; d != nil {
		fmt.Fprintf(&b, "d:%d:%t:%d:%s:%s:%x:%x:%d:%x:%x;",
			d.Format, d.DepthWriteEnabled, d.DepthCompare,
			stencilFace(d.StencilFront), stencilFace(d.StencilBack),
			d.StencilReadMask, d.StencilWriteMask,
			d.DepthBias, math.Float32bits(d.DepthBiasSlopeScale), math.Float32bits(d.DepthBiasClamp))
	}
	p := t.Primitive
	strip := -1
	if p.StripIndexFormat != nil {
		strip = int(*p.StripIndexFormat)
	}
	fmt.Fprintf(&b, "p:%d:%d:%d:%d:%t;", p.Topology, strip, p.FrontFace, p.CullMode, p.UnclippedDepth)
	m := t.Multisample
	fmt.Fprintf(&b, "m:%d:%x:%t", m.Count, m.Mask, m.AlphaToCoverageEnabled)
	return b.String()
}

func stencilFace(s hal.StencilFaceState) string {
	return fmt.Sprintf("%d/%d/%d/%d", s.Compare, s.FailOp, s.DepthFailOp, s.PassOp)
}

// ColorFormats returns the color target formats in order.
func (t TargetState) ColorFormats() []gputypes.TextureFormat {
	out := make([]gputypes.TextureFormat, len(t.Colors))
	for i, c := range t.Colors {
		out[i] = c.Format
	}
	return out
}
