// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/shader"
)

// VertexAttribute is one named vertex attribute inside a buffer.
type VertexAttribute struct {
	Name   string
	Format gputypes.VertexFormat
	Offset uint64
}

// VertexBuffer describes one bound vertex buffer.
type VertexBuffer struct {
	Stride     uint64
	StepMode   gputypes.VertexStepMode
	Attributes []VertexAttribute
}

// Interleaved builds a per-vertex buffer whose attributes are packed in
// the given order. Offsets and the stride are computed from the formats.
func Interleaved(attrs ...VertexAttribute) VertexBuffer {
	var offset uint64
	out := make([]VertexAttribute, len(attrs))
	for i, a := range attrs {
		a.Offset = offset
		offset += a.Format.Size()
		out[i] = a
	}
	return VertexBuffer{Stride: offset, StepMode: gputypes.VertexStepModeVertex, Attributes: out}
}

// VertexLayout is a generated vertex input layout: the GPU buffer layouts,
// the matching WGSL input struct and the attribute locations. Layouts are
// immutable and identified by their signature.
type VertexLayout struct {
	buffers   []gputypes.VertexBufferLayout
	names     []string
	locations map[string]uint32
	formats   map[string]gputypes.VertexFormat
	wgsl      string
	signature string
	id        uint64
}

// NewVertexLayout assigns shader locations to the attributes of buffers.
// Locations are sequential across buffers in the given order; within a
// buffer attributes are ordered by offset, then name.
func NewVertexLayout(buffers ...VertexBuffer) *VertexLayout {
	l := &VertexLayout{
		locations: make(map[string]uint32),
		formats:   make(map[string]gputypes.VertexFormat),
	}

	var fields, sig strings.Builder
	var loc uint32
	for bi, b := range buffers {
		attrs := slices.Clone(b.Attributes)
		slices.SortStableFunc(attrs, func(x, y VertexAttribute) int {
			if x.Offset != y.Offset {
				if x.Offset < y.Offset {
					return -1
				}
				return 1
			}
			return strings.Compare(x.Name, y.Name)
		})

		stepMode := b.StepMode
		if stepMode == gputypes.VertexStepModeUndefined {
			stepMode = gputypes.VertexStepModeVertex
		}
		fmt.Fprintf(&sig, "b%d:%d:%d[", bi, b.Stride, stepMode)

		gpuAttrs := make([]gputypes.VertexAttribute, 0, len(attrs))
		for _, a := range attrs {
			gpuAttrs = append(gpuAttrs, gputypes.VertexAttribute{
				Format:         a.Format,
				Offset:         a.Offset,
				ShaderLocation: loc,
			})
			fmt.Fprintf(&fields, "    @location(%d) %s: %s,\n", loc, a.Name, WGSLType(a.Format))
			fmt.Fprintf(&sig, "%s:%d:%d;", a.Name, a.Format, a.Offset)
			l.locations[a.Name] = loc
			l.formats[a.Name] = a.Format
			l.names = append(l.names, a.Name)
			loc++
		}
		sig.WriteString("]")

		l.buffers = append(l.buffers, gputypes.VertexBufferLayout{
			ArrayStride: b.Stride,
			StepMode:    stepMode,
			Attributes:  gpuAttrs,
		})
	}

	if len(l.names) > 0 {
		l.wgsl = "struct VertexInput {\n" + fields.String() + "}\n"
	}
	l.signature = sig.String()
	h := fnv.New64a()
	h.Write([]byte(l.signature))
	l.id = h.Sum64()
	return l
}

// ID returns a 64-bit hash of the layout signature. Layouts with the same
// signature share an id. Pipeline keys carry the full signature.
func (l *VertexLayout) ID() uint64 {
	if l == nil {
		return 0
	}
	return l.id
}

// Buffers returns the GPU vertex buffer layouts.
func (l *VertexLayout) Buffers() []gputypes.VertexBufferLayout {
	if l == nil {
		return nil
	}
	return l.buffers
}

// WGSL returns the generated "struct VertexInput" declaration, or an empty
// string for a layout without attributes.
func (l *VertexLayout) WGSL() string {
	if l == nil {
		return ""
	}
	return l.wgsl
}

// Location returns the shader location of the named attribute.
func (l *VertexLayout) Location(name string) (uint32, bool) {
	if l == nil {
		return 0, false
	}
	loc, ok := l.locations[name]
	return loc, ok
}

// Format returns the vertex format of the named attribute.
func (l *VertexLayout) Format(name string) (gputypes.VertexFormat, bool) {
	if l == nil {
		return gputypes.VertexFormatUndefined, false
	}
	f, ok := l.formats[name]
	return f, ok
}

// Defines returns the geometry defines implied by the layout: HAS_<NAME>
// for every attribute, e.g. HAS_UV and HAS_NORMAL.
func (l *VertexLayout) Defines() shader.Defines {
	if l == nil {
		return nil
	}
	flags := make([]string, 0, len(l.names))
	for _, n := range l.names {
		flags = append(flags, "HAS_"+strings.ToUpper(n))
	}
	return shader.NewDefines(flags...)
}

// String returns the layout signature.
func (l *VertexLayout) String() string {
	if l == nil {
		return "none"
	}
	return l.signature
}

// WGSLType returns the WGSL type that matches a vertex format.
func WGSLType(f gputypes.VertexFormat) string {
	switch f {
	case gputypes.VertexFormatFloat32:
		return "f32"
	case gputypes.VertexFormatFloat32x2, gputypes.VertexFormatUnorm8x2, gputypes.VertexFormatSnorm8x2,
		gputypes.VertexFormatUnorm16x2, gputypes.VertexFormatSnorm16x2, gputypes.VertexFormatFloat16x2:
		return "vec2<f32>"
	case gputypes.VertexFormatFloat32x3:
		return "vec3<f32>"
	case gputypes.VertexFormatFloat32x4, gputypes.VertexFormatUnorm8x4, gputypes.VertexFormatSnorm8x4,
		gputypes.VertexFormatUnorm16x4, gputypes.VertexFormatSnorm16x4, gputypes.VertexFormatFloat16x4,
		gputypes.VertexFormatUnorm1010102:
		return "vec4<f32>"
	case gputypes.VertexFormatUint32:
		return "u32"
	case gputypes.VertexFormatUint8x2, gputypes.VertexFormatUint16x2, gputypes.VertexFormatUint32x2:
		return "vec2<u32>"
	case gputypes.VertexFormatUint32x3:
		return "vec3<u32>"
	case gputypes.VertexFormatUint8x4, gputypes.VertexFormatUint16x4, gputypes.VertexFormatUint32x4:
		return "vec4<u32>"
	case gputypes.VertexFormatSint32:
		return "i32"
	case gputypes.VertexFormatSint8x2, gputypes.VertexFormatSint16x2, gputypes.VertexFormatSint32x2:
		return "vec2<i32>"
	case gputypes.VertexFormatSint32x3:
		return "vec3<i32>"
	case gputypes.VertexFormatSint8x4, gputypes.VertexFormatSint16x4, gputypes.VertexFormatSint32x4:
		return "vec4<i32>"
	default:
		return "vec4<f32>"
	}
}

// ParseVertexFormat returns the vertex format whose name matches s,
// ignoring case, e.g. "float32x3".
func ParseVertexFormat(s string) (gputypes.VertexFormat, error) {
	for f := gputypes.VertexFormatUint8x2; f <= gputypes.VertexFormatUnorm1010102; f++ {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return gputypes.VertexFormatUndefined, fmt.Errorf("%w: %q", ErrVertexFormat, s)
}

// ParseVertexLayout builds a single interleaved layout from a list of
// name:format pairs separated by commas:
//
//	position:float32x3,normal:float32x3,uv:float32x2
//
// An empty string yields a nil layout.
func ParseVertexLayout(s string) (*VertexLayout, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil //nolint:nilnil // no attributes is a valid layout
	}
	var attrs []VertexAttribute
	for field := range strings.SplitSeq(s, ",") {
		name, format, ok := strings.Cut(strings.TrimSpace(field), ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: attribute %q is not name:format", ErrVertexFormat, field)
		}
		f, err := ParseVertexFormat(format)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, VertexAttribute{Name: name, Format: f})
	}
	return NewVertexLayout(Interleaved(attrs...)), nil
}
