// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefinesCanonical(t *testing.T) {
	a := NewDefines("HAS_UV", "HAS_NORMAL", "HAS_UV")
	b := NewDefines("HAS_NORMAL", "HAS_UV")

	assert.True(t, a.Equal(b))
	assert.Equal(t, "HAS_NORMAL,HAS_UV", a.String())
}

func TestDefinesLastValueWins(t *testing.T) {
	d := ParseDefines("LIGHTS=2", "HAS_UV", "LIGHTS=4", "")
	v, ok := d.Lookup("LIGHTS")
	assert.True(t, ok)
	assert.Equal(t, "4", v)
	assert.Equal(t, "HAS_UV,LIGHTS=4", d.String())
}

func TestMergePrecedence(t *testing.T) {
	material := ParseDefines("ALPHA_MODE=opaque", "HAS_UV")
	scene := ParseDefines("ALPHA_MODE=blend", "SHADOWS")

	m := Merge(material, scene)
	v, _ := m.Lookup("ALPHA_MODE")
	assert.Equal(t, "blend", v)
	assert.True(t, m.Has("HAS_UV"))
	assert.True(t, m.Has("SHADOWS"))
}

func TestEnabled(t *testing.T) {
	d := ParseDefines("A", "B=0", "C=FALSE", "D=1")
	assert.True(t, d.Enabled("A"))
	assert.False(t, d.Enabled("B"))
	assert.False(t, d.Enabled("C"))
	assert.True(t, d.Enabled("D"))
	assert.False(t, d.Enabled("E"))
}
