// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/framegraph/internal/cache"
)

// Well-known engine variables available to every template.
const (
	// VarVertexInput holds the generated vertex input struct.
	VarVertexInput = "vertex_input"
	// VarBindings holds the generated resource binding declarations.
	VarBindings = "bindings"
)

// Vars are engine-provided snippets substituted by {{ name }}.
type Vars map[string]string

// Result is the output of one expansion.
type Result struct {
	// Source is the generated shader text.
	Source string
	// Locations lists the varying slots allocated by next_loc().
	Locations []Location
	// Templates lists the root template and every include spliced in.
	Templates []string
	// Defines is the canonical define set used for the expansion.
	Defines Defines
}

// Engine loads, caches and expands shader templates.
//
// Template syntax:
//
//	{$ if HAS_UV and not defined(FLAT) $} ... {$ elif X == "2" $} ... {$ else $} ... {$ endif $}
//	{$ include "lighting" $}
//	{{ vertex_input }}   {{ bindings }}   {{ MAX_LIGHTS }}
//	@location({{ next_loc() }}) uv: vec2<f32>,
//	{# comment #}
//
// Engine is safe for concurrent use.
type Engine struct {
	src    Source
	parsed *cache.Cache[string, loaded]
}

// loaded is a parse outcome. Content errors are cached like templates so a
// broken file is read once until Invalidate.
type loaded struct {
	t   *Template
	err error
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	cacheSize int
}

// WithParseCacheSize bounds the number of parsed templates kept in memory.
// Zero means unlimited, which is the default.
func WithParseCacheSize(n int) EngineOption {
	return func(o *engineOptions) {
		o.cacheSize = n
	}
}

// NewEngine creates an engine reading templates from src.
func NewEngine(src Source, opts ...EngineOption) *Engine {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{
		src:    src,
		parsed: cache.New[string, loaded](o.cacheSize),
	}
}

// Load returns the parsed template, parsing and caching it on first use.
// Content errors are returned as *TemplateError and cached with the
// template: the source is not read again until Invalidate drops the name.
func (e *Engine) Load(name string) (*Template, error) {
	r, _ := e.parsed.GetOrLoad(name, func() (loaded, error) {
		src, err := e.src.ReadTemplate(name)
		if err != nil {
			err = templateErr(name, 0, nil, err)
			slogger().Warn("shader: template unavailable", "template", name, "err", err)
			return loaded{err: err}, nil
		}
		t, err := Parse(name, src)
		if err != nil {
			slogger().Warn("shader: template rejected", "template", name, "err", err)
			return loaded{err: err}, nil
		}
		slogger().Debug("shader: parsed template", "template", name, "includes", len(t.includes))
		return loaded{t: t}, nil
	})
	return r.t, r.err
}

// Invalidate drops parsed templates so the next Load re-reads them. With no
// names every template is dropped, which is what a hot reload wants since
// includes make templates depend on each other.
func (e *Engine) Invalidate(names ...string) {
	if len(names) == 0 {
		e.parsed.Clear()
		slogger().Info("shader: template cache cleared")
		return
	}
	for _, n := range names {
		e.parsed.Delete(n)
	}
}

// Validate loads name and every template reachable through includes, in
// all branches, and reports missing includes and include cycles.
func (e *Engine) Validate(name string) error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var walk func(name string, chain []string) error
	walk = func(name string, chain []string) error {
		switch state[name] {
		case visiting:
			return templateErr(chain[len(chain)-1], 0, nil,
				fmt.Errorf("%w: %s", ErrIncludeCycle, strings.Join(append(chain, name), " -> ")))
		case done:
			return nil
		}
		state[name] = visiting
		t, err := e.Load(name)
		if err != nil {
			return err
		}
		for _, inc := range t.includes {
			if _, err := e.Load(inc); err != nil {
				return missingInclude(name, 0, nil, inc, err)
			}
			if err := walk(inc, append(chain, name)); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	return walk(name, nil)
}

// Expand renders template name with the given defines and engine variables.
func (e *Engine) Expand(name string, defs Defines, vars Vars) (*Result, error) {
	t, err := e.Load(name)
	if err != nil {
		return nil, withDefines(err, defs)
	}
	x := &expansion{engine: e, defs: defs, vars: vars}
	if err := x.run(t); err != nil {
		return nil, err
	}
	return &Result{
		Source:    x.out.String(),
		Locations: x.alloc.Assigned(),
		Templates: x.templates,
		Defines:   defs,
	}, nil
}

// expansion carries the state of one Expand call.
type expansion struct {
	engine    *Engine
	defs      Defines
	vars      Vars
	out       strings.Builder
	alloc     LocationAllocator
	stack     []string
	templates []string
}

func (x *expansion) run(t *Template) error {
	for _, name := range x.stack {
		if name == t.name {
			chain := strings.Join(append(append([]string(nil), x.stack...), t.name), " -> ")
			return templateErr(x.stack[len(x.stack)-1], 0, x.defs, fmt.Errorf("%w: %s", ErrIncludeCycle, chain))
		}
	}
	x.stack = append(x.stack, t.name)
	x.templates = append(x.templates, t.name)
	defer func() { x.stack = x.stack[:len(x.stack)-1] }()

	return x.nodes(t.name, t.root)
}

func (x *expansion) nodes(tmpl string, nodes []node) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case textNode:
			x.out.WriteString(n.text)
		case varNode:
			if n.call {
				x.out.WriteString(strconv.FormatUint(uint64(x.alloc.Next(tmpl, n.ln)), 10))
				continue
			}
			v, ok := x.lookup(n.name)
			if !ok {
				return templateErr(tmpl, n.ln, x.defs, fmt.Errorf("%w: %q", ErrUndefinedVariable, n.name))
			}
			x.out.WriteString(v)
		case ifNode:
			body := n.els
			for _, b := range n.branches {
				if b.cond.eval(x.defs) {
					body = b.body
					break
				}
			}
			if err := x.nodes(tmpl, body); err != nil {
				return err
			}
		case includeNode:
			inc, err := x.engine.Load(n.name)
			if err != nil {
				return missingInclude(tmpl, n.ln, x.defs, n.name, err)
			}
			if err := x.run(inc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *expansion) lookup(name string) (string, bool) {
	if v, ok := x.vars[name]; ok {
		return v, true
	}
	return x.defs.Lookup(name)
}

// missingInclude reports a failed include. Parse errors inside the included
// template are passed through untouched.
func missingInclude(tmpl string, line int, defs Defines, inc string, err error) error {
	var te *TemplateError
	if errors.As(err, &te) && te.Template == inc && errors.Is(te.Err, ErrTemplateNotFound) {
		err = fmt.Errorf("%w: %q: %w", ErrMissingInclude, inc, te.Err)
		return templateErr(tmpl, line, defs, err)
	}
	return err
}

func withDefines(err error, defs Defines) error {
	var te *TemplateError
	if errors.As(err, &te) && te.Defines == nil {
		cp := *te
		cp.Defines = defs
		return &cp
	}
	return err
}
