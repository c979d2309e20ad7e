// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"sort"
	"strings"
)

// Template delimiters. Braces alone are common in WGSL, so directives use
// the two-character forms below.
const (
	blockOpen    = "{$"
	blockClose   = "$}"
	varOpen      = "{{"
	varClose     = "}}"
	commentOpen  = "{#"
	commentClose = "#}"
)

type tokenKind uint8

const (
	tokText tokenKind = iota
	tokBlock
	tokVar
)

// token is one lexical segment of a template.
type token struct {
	kind tokenKind
	text string // raw text, or trimmed directive body
	line int    // 1-based line of the segment start
}

// lex splits src into text, block and variable segments.
//
// A block directive or comment alone on its line swallows the line's
// leading whitespace and its trailing newline, so conditionals do not leave
// blank lines in the generated shader.
func lex(src string) ([]token, error) {
	lines := newLineIndex(src)
	var toks []token
	pos := 0

	for pos < len(src) {
		next, open := nextOpen(src, pos)
		if next < 0 {
			toks = appendText(toks, src[pos:], lines.at(pos))
			break
		}

		closeDelim := closeFor(open)
		end := strings.Index(src[next+len(open):], closeDelim)
		if end < 0 {
			return nil, fmt.Errorf("%w: line %d: %q is never closed", ErrSyntax, lines.at(next), open)
		}
		body := src[next+len(open) : next+len(open)+end]
		after := next + len(open) + end + len(closeDelim)

		textEnd := next
		if open != varOpen {
			lineStart := strings.LastIndexByte(src[:next], '\n') + 1
			rest := src[after:]
			eol := strings.IndexByte(rest, '\n')
			if eol < 0 {
				eol = len(rest)
			}
			if lineStart >= pos && isBlank(src[lineStart:next]) && isBlank(strings.TrimSuffix(rest[:eol], "\r")) {
				textEnd = lineStart
				after += eol
				if after < len(src) {
					after++
				}
			}
		}
		toks = appendText(toks, src[pos:textEnd], lines.at(pos))

		switch open {
		case blockOpen:
			toks = append(toks, token{kind: tokBlock, text: strings.TrimSpace(body), line: lines.at(next)})
		case varOpen:
			toks = append(toks, token{kind: tokVar, text: strings.TrimSpace(body), line: lines.at(next)})
		}
		pos = after
	}
	return toks, nil
}

func appendText(toks []token, s string, line int) []token {
	if s == "" {
		return toks
	}
	return append(toks, token{kind: tokText, text: s, line: line})
}

// nextOpen finds the earliest opening delimiter at or after pos.
func nextOpen(src string, pos int) (int, string) {
	best, delim := -1, ""
	for _, d := range []string{blockOpen, varOpen, commentOpen} {
		if i := strings.Index(src[pos:], d); i >= 0 && (best < 0 || pos+i < best) {
			best, delim = pos+i, d
		}
	}
	return best, delim
}

func closeFor(open string) string {
	switch open {
	case blockOpen:
		return blockClose
	case commentOpen:
		return commentClose
	default:
		return varClose
	}
}

func isBlank(s string) bool {
	return strings.TrimLeft(s, " \t") == ""
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(src string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (l lineIndex) at(offset int) int {
	return sort.SearchInts(l, offset+1)
}
