// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package passes

import (
	"embed"
	"io/fs"
	"path"
	"strings"

	"github.com/gogpu/framegraph/shader"
)

//go:embed shaders/*.wgsl shaders/chunks/*.wgsl
var shaderFiles embed.FS

// Template names of the built-in shaders.
const (
	ForwardTemplate   = "forward"
	CompositeTemplate = "composite"
)

// Source returns the embedded shader templates.
func Source() shader.Source {
	return shader.FSSource{FS: FS()}
}

// Templates returns the names of the root templates in fsys, the *.wgsl
// files outside chunks/, sorted.
func Templates(fsys fs.FS) ([]string, error) {
	files, err := fs.Glob(fsys, "*.wgsl")
	if err != nil {
		return nil, err
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = strings.TrimSuffix(path.Base(f), ".wgsl")
	}
	return names, nil
}

// FS returns the embedded shader directory.
func FS() fs.FS {
	sub, err := fs.Sub(shaderFiles, "shaders")
	if err != nil {
		panic("passes: embedded shaders: " + err.Error())
	}
	return sub
}
