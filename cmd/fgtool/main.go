// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command fgtool inspects and compiles framegraph shader templates.
//
// Usage:
//
//	fgtool expand forward -D HAS_UV --layout position:float32x3,uv:float32x2
//	fgtool slots forward -D HAS_UV -D HAS_NORMAL
//	fgtool check --dir shaders
//	fgtool compile composite --variants composite.yaml
//	fgtool translate composite --lang msl -D TONEMAP
//	fgtool config framegraph.yaml
//
// Templates are read from --dir, falling back to the built-in templates of
// the passes package.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
