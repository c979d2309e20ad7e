// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// Source resolves template names to template text. Implementations return
// an error wrapping ErrTemplateNotFound when the name is unknown.
type Source interface {
	ReadTemplate(name string) (string, error)
}

// MapSource serves templates from memory. Keys are template names.
type MapSource map[string]string

// ReadTemplate implements Source.
func (m MapSource) ReadTemplate(name string) (string, error) {
	if src, ok := m[name]; ok {
		return src, nil
	}
	if src, ok := m[strings.TrimSuffix(name, ".wgsl")]; ok {
		return src, nil
	}
	return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
}

// FSSource serves templates from a file system. A name without extension
// resolves to name.wgsl; includes may also live under a chunks/ directory.
type FSSource struct {
	FS fs.FS
}

// ReadTemplate implements Source.
func (s FSSource) ReadTemplate(name string) (string, error) {
	file := name
	if path.Ext(file) == "" {
		file += ".wgsl"
	}
	for _, candidate := range []string{file, path.Join("chunks", file)} {
		data, err := fs.ReadFile(s.FS, candidate)
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("shader: read %s: %w", candidate, err)
		}
	}
	return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
}

// Layered tries each source in order; the first one that has the template
// wins. It lets an on-disk directory override built-in templates.
type Layered []Source

// ReadTemplate implements Source.
func (l Layered) ReadTemplate(name string) (string, error) {
	for _, s := range l {
		src, err := s.ReadTemplate(name)
		if err == nil {
			return src, nil
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
}
