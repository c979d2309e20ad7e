// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"strings"
	"unicode"
)

// cond is a compiled conditional expression.
type cond interface {
	eval(Defines) bool
	String() string
}

type (
	flagCond    struct{ name string }
	definedCond struct{ name string }
	constCond   struct{ v bool }
	notCond     struct{ x cond }
	andCond     struct{ l, r cond }
	orCond      struct{ l, r cond }
	compareCond struct {
		name, value string
		negate      bool
	}
)

func (c flagCond) eval(d Defines) bool    { return d.Enabled(c.name) }
func (c definedCond) eval(d Defines) bool { return d.Has(c.name) }
func (c constCond) eval(Defines) bool     { return c.v }
func (c notCond) eval(d Defines) bool     { return !c.x.eval(d) }
func (c andCond) eval(d Defines) bool     { return c.l.eval(d) && c.r.eval(d) }
func (c orCond) eval(d Defines) bool      { return c.l.eval(d) || c.r.eval(d) }

func (c compareCond) eval(d Defines) bool {
	v, ok := d.Lookup(c.name)
	return (ok && v == c.value) != c.negate
}

func (c flagCond) String() string    { return c.name }
func (c definedCond) String() string { return "defined(" + c.name + ")" }
func (c constCond) String() string   { return fmt.Sprint(c.v) }
func (c notCond) String() string     { return "not " + c.x.String() }
func (c andCond) String() string     { return "(" + c.l.String() + " and " + c.r.String() + ")" }
func (c orCond) String() string      { return "(" + c.l.String() + " or " + c.r.String() + ")" }

func (c compareCond) String() string {
	op := "=="
	if c.negate {
		op = "!="
	}
	return fmt.Sprintf("%s %s %q", c.name, op, c.value)
}

type exprTokKind uint8

const (
	exIdent exprTokKind = iota
	exString
	exLParen
	exRParen
	exEq
	exNeq
	exEOF
)

type exprTok struct {
	kind exprTokKind
	text string
}

func lexExpr(s string) ([]exprTok, error) {
	var out []exprTok
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			out = append(out, exprTok{kind: exLParen, text: "("})
			i++
		case c == ')':
			out = append(out, exprTok{kind: exRParen, text: ")"})
			i++
		case strings.HasPrefix(s[i:], "=="):
			out = append(out, exprTok{kind: exEq, text: "=="})
			i += 2
		case strings.HasPrefix(s[i:], "!="):
			out = append(out, exprTok{kind: exNeq, text: "!="})
			i += 2
		case c == '"' || c == '\'':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated string in %q", ErrSyntax, s)
			}
			out = append(out, exprTok{kind: exString, text: s[i+1 : i+1+end]})
			i += end + 2
		case isIdentByte(c):
			j := i
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			out = append(out, exprTok{kind: exIdent, text: s[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected %q in %q", ErrSyntax, c, s)
		}
	}
	return append(out, exprTok{kind: exEOF}), nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' || c < unicode.MaxASCII && (unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)))
}

// exprParser is a recursive-descent parser for:
//
//	or      = and { "or" and }
//	and     = unary { "and" unary }
//	unary   = "not" unary | primary
//	primary = "(" or ")" | "defined" "(" IDENT ")" | "true" | "false"
//	        | IDENT [ ("==" | "!=") (STRING | IDENT) ]
type exprParser struct {
	toks []exprTok
	pos  int
	src  string
}

func parseExpr(src string) (cond, error) {
	toks, err := lexExpr(src)
	if err != nil {
		return nil, err
	}
	if len(toks) == 1 {
		return nil, fmt.Errorf("%w: empty condition", ErrSyntax)
	}
	p := &exprParser{toks: toks, src: src}
	c, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != exEOF {
		return nil, p.errorf("unexpected %q", p.peek().text)
	}
	return c, nil
}

func (p *exprParser) peek() exprTok { return p.toks[p.pos] }

func (p *exprParser) next() exprTok {
	t := p.toks[p.pos]
	if t.kind != exEOF {
		p.pos++
	}
	return t
}

func (p *exprParser) keyword(kw string) bool {
	if t := p.peek(); t.kind == exIdent && t.text == kw {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s in condition %q", ErrSyntax, fmt.Sprintf(format, args...), p.src)
}

func (p *exprParser) or() (cond, error) {
	l, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		r, err := p.and()
		if err != nil {
			return nil, err
		}
		l = orCond{l, r}
	}
	return l, nil
}

func (p *exprParser) and() (cond, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = andCond{l, r}
	}
	return l, nil
}

func (p *exprParser) unary() (cond, error) {
	if p.keyword("not") {
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return notCond{x}, nil
	}
	return p.primary()
}

func (p *exprParser) primary() (cond, error) {
	t := p.next()
	switch t.kind {
	case exLParen:
		c, err := p.or()
		if err != nil {
			return nil, err
		}
		if p.next().kind != exRParen {
			return nil, p.errorf("missing )")
		}
		return c, nil
	case exIdent:
		switch t.text {
		case "true", "false":
			return constCond{t.text == "true"}, nil
		case "and", "or", "not":
			return nil, p.errorf("unexpected %q", t.text)
		case "defined":
			if p.next().kind != exLParen {
				return nil, p.errorf("defined needs (")
			}
			name := p.next()
			if name.kind != exIdent {
				return nil, p.errorf("defined needs a name")
			}
			if p.next().kind != exRParen {
				return nil, p.errorf("missing )")
			}
			return definedCond{name.text}, nil
		}
		if k := p.peek().kind; k == exEq || k == exNeq {
			p.next()
			v := p.next()
			if v.kind != exString && v.kind != exIdent {
				return nil, p.errorf("comparison needs a value")
			}
			return compareCond{name: t.text, value: v.text, negate: k == exNeq}, nil
		}
		return flagCond{t.text}, nil
	case exEOF:
		return nil, p.errorf("unexpected end")
	default:
		return nil, p.errorf("unexpected %q", t.text)
	}
}
