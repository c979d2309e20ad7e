// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// Template is a parsed shader template. Templates are immutable once
// parsed and may be expanded concurrently.
type Template struct {
	name     string
	root     []node
	includes []string
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// Includes returns every template named by an include directive, in any
// branch, in document order and without duplicates.
func (t *Template) Includes() []string { return t.includes }

type node interface{ line() int }

type textNode struct {
	text string
	ln   int
}

type varNode struct {
	name  string
	call  bool // next_loc()
	ln    int
	label string
}

type branch struct {
	cond cond
	body []node
}

type ifNode struct {
	branches []branch
	els      []node
	ln       int
}

type includeNode struct {
	name string
	ln   int
}

func (n textNode) line() int    { return n.ln }
func (n varNode) line() int     { return n.ln }
func (n ifNode) line() int      { return n.ln }
func (n includeNode) line() int { return n.ln }

// Parse parses src as a template named name. Unbalanced conditionals,
// malformed directives and bad expressions are reported here, before any
// expansion takes place.
func Parse(name, src string) (*Template, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, templateErr(name, 0, nil, err)
	}
	p := &parser{name: name, toks: toks, seen: make(map[string]bool)}
	root, err := p.parseBody(0)
	if err != nil {
		return nil, err
	}
	return &Template{name: name, root: root, includes: p.includes}, nil
}

// parser builds a node tree from tokens. Nested conditionals are handled
// with recursion; open blocks are tracked by depth.
type parser struct {
	name     string
	toks     []token
	pos      int
	includes []string
	seen     map[string]bool
}

// parseBody parses nodes until a closing directive (elif/else/endif) or the
// end of input. At depth 0 any closing directive is unmatched.
func (p *parser) parseBody(depth int) ([]node, error) {
	var out []node
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		switch t.kind {
		case tokText:
			p.pos++
			out = append(out, textNode{text: t.text, ln: t.line})
		case tokVar:
			p.pos++
			v, err := p.parseVar(t)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case tokBlock:
			kw, arg := splitDirective(t.text)
			switch kw {
			case "if":
				p.pos++
				n, err := p.parseIf(t, arg, depth+1)
				if err != nil {
					return nil, err
				}
				out = append(out, n)
			case "include":
				p.pos++
				name, err := unquote(arg)
				if err != nil {
					return nil, p.errAt(t.line, fmt.Errorf("%w: include %s", ErrSyntax, err))
				}
				if !p.seen[name] {
					p.seen[name] = true
					p.includes = append(p.includes, name)
				}
				out = append(out, includeNode{name: name, ln: t.line})
			case "elif", "else", "endif":
				if depth == 0 {
					return nil, p.errAt(t.line, fmt.Errorf("%w: %q without if", ErrUnmatchedDirective, kw))
				}
				return out, nil
			default:
				return nil, p.errAt(t.line, fmt.Errorf("%w: unknown directive %q", ErrSyntax, kw))
			}
		}
	}
	return out, nil
}

func (p *parser) parseIf(open token, expr string, depth int) (node, error) {
	c, err := parseExpr(expr)
	if err != nil {
		return nil, p.errAt(open.line, err)
	}
	n := ifNode{ln: open.line}
	cur := c
	inElse := false

	for {
		body, err := p.parseBody(depth)
		if err != nil {
			return nil, err
		}
		if inElse {
			n.els = body
		} else {
			n.branches = append(n.branches, branch{cond: cur, body: body})
		}

		if p.pos >= len(p.toks) {
			return nil, p.errAt(open.line, fmt.Errorf("%w: if %s without endif", ErrUnmatchedDirective, expr))
		}
		t := p.toks[p.pos]
		p.pos++
		kw, arg := splitDirective(t.text)
		switch kw {
		case "endif":
			if arg != "" {
				return nil, p.errAt(t.line, fmt.Errorf("%w: endif takes no argument", ErrSyntax))
			}
			return n, nil
		case "else":
			if inElse {
				return nil, p.errAt(t.line, fmt.Errorf("%w: second else", ErrUnmatchedDirective))
			}
			inElse = true
		case "elif":
			if inElse {
				return nil, p.errAt(t.line, fmt.Errorf("%w: elif after else", ErrUnmatchedDirective))
			}
			if cur, err = parseExpr(arg); err != nil {
				return nil, p.errAt(t.line, err)
			}
		}
	}
}

func (p *parser) parseVar(t token) (node, error) {
	switch {
	case t.text == "next_loc()" || t.text == "loc.next()":
		return varNode{call: true, ln: t.line, label: t.text}, nil
	case t.text == "":
		return nil, p.errAt(t.line, fmt.Errorf("%w: empty interpolation", ErrSyntax))
	case strings.ContainsAny(t.text, " ()\"'"):
		return nil, p.errAt(t.line, fmt.Errorf("%w: unsupported expression %q", ErrSyntax, t.text))
	}
	return varNode{name: t.text, ln: t.line}, nil
}

func (p *parser) errAt(line int, err error) error {
	return templateErr(p.name, line, nil, err)
}

func splitDirective(s string) (kw, arg string) {
	if i := strings.IndexAny(s, " \t\r\n"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i:])
	}
	return s, ""
}

func unquote(s string) (string, error) {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1], nil
	}
	name, err := strconv.Unquote(s)
	if err != nil || name == "" {
		return "", fmt.Errorf("needs a quoted template name, got %q", s)
	}
	return name, nil
}
