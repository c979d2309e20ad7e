// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"slices"
	"strings"
)

// Define is a single shader define. Value is empty for plain feature flags
// such as HAS_UV.
type Define struct {
	Name  string
	Value string
}

// ParseDefine parses "NAME" or "NAME=value".
func ParseDefine(s string) Define {
	name, value, _ := strings.Cut(strings.TrimSpace(s), "=")
	return Define{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)}
}

func (d Define) String() string {
	if d.Value == "" {
		return d.Name
	}
	return d.Name + "=" + d.Value
}

// Defines is a canonical define set: sorted by name with unique names.
// Always build one with NewDefines, ParseDefines or Merge so that two sets
// that are equal as sets compare and hash identically.
type Defines []Define

// NewDefines builds a canonical set from plain flag names.
func NewDefines(flags ...string) Defines {
	defs := make([]Define, 0, len(flags))
	for _, f := range flags {
		defs = append(defs, Define{Name: f})
	}
	return Canonical(defs...)
}

// ParseDefines builds a canonical set from "NAME" / "NAME=value" strings.
func ParseDefines(specs ...string) Defines {
	defs := make([]Define, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, ParseDefine(s))
	}
	return Canonical(defs...)
}

// Canonical sorts defs by name and drops duplicates. When a name appears
// more than once the last occurrence wins. Empty names are dropped.
func Canonical(defs ...Define) Defines {
	last := make(map[string]int, len(defs))
	for i, d := range defs {
		if d.Name != "" {
			last[d.Name] = i
		}
	}
	out := make(Defines, 0, len(last))
	for i, d := range defs {
		if d.Name != "" && last[d.Name] == i {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b Define) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Merge returns the union of the sets. Later sets override values of
// earlier ones, mirroring material < geometry < scene precedence.
func Merge(sets ...Defines) Defines {
	var all []Define
	for _, s := range sets {
		all = append(all, s...)
	}
	return Canonical(all...)
}

// Lookup returns the value of name and whether it is defined.
func (ds Defines) Lookup(name string) (string, bool) {
	i, ok := slices.BinarySearchFunc(ds, name, func(d Define, n string) int {
		return strings.Compare(d.Name, n)
	})
	if !ok {
		return "", false
	}
	return ds[i].Value, true
}

// Has reports whether name is defined.
func (ds Defines) Has(name string) bool {
	_, ok := ds.Lookup(name)
	return ok
}

// Enabled reports whether name is defined with a truthy value. An empty
// value counts as enabled; "0" and "false" do not.
func (ds Defines) Enabled(name string) bool {
	v, ok := ds.Lookup(name)
	return ok && v != "0" && !strings.EqualFold(v, "false")
}

// Equal reports whether both sets hold the same defines.
func (ds Defines) Equal(other Defines) bool {
	return slices.Equal(ds, other)
}

// String renders the set as a comma separated list, e.g. "HAS_UV,LIGHTS=4".
func (ds Defines) String() string {
	var b strings.Builder
	for i, d := range ds {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(d.String())
	}
	return b.String()
}
