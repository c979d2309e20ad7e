// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"fmt"
	"hash/fnv"

	"github.com/gogpu/framegraph/shader"
)

// Key identifies one pipeline permutation. All fields are canonical
// strings, so Key is comparable, two requests that differ only in define
// order produce equal keys, and equal keys always describe the same
// pipeline.
type Key struct {
	Template string
	Defines  string
	// Layout is the vertex layout signature.
	Layout string
	Target string
	// Bindings is the WGSL spliced into {{ bindings }}.
	Bindings string
	// BindGroups lists the cache-assigned ids of the bind group layouts
	// the pipeline layout was built from.
	BindGroups string
}

// NewKey builds the canonical key of a request without bindings or bind
// group layouts. defs is canonicalized again, so callers may pass a set
// built by hand.
func NewKey(template string, defs shader.Defines, layout *VertexLayout, target TargetState) Key {
	return Key{
		Template: template,
		Defines:  shader.Canonical(defs...).String(),
		Layout:   layout.String(),
		Target:   target.signature(),
	}
}

// Hash returns a 64-bit FNV-1a hash of the key.
func (k Key) Hash() uint64 {
	h := fnv.New64a()
	for _, s := range [...]string{k.Template, k.Defines, k.Layout, k.Target, k.Bindings, k.BindGroups} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

func (k Key) String() string {
	s := fmt.Sprintf("%s[%s]/layout:%s", k.Template, k.Defines, k.Layout)
	if k.BindGroups != "" {
		s += "/groups:" + k.BindGroups
	}
	return s
}
