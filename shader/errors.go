// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"fmt"
)

// Template content errors. All of them are fatal authoring errors: they are
// reported with template context and never retried.
var (
	// ErrTemplateNotFound is returned by a Source that has no such template.
	ErrTemplateNotFound = errors.New("shader: template not found")

	// ErrUnmatchedDirective is returned when if/elif/else/endif blocks do not
	// balance.
	ErrUnmatchedDirective = errors.New("shader: unmatched directive")

	// ErrMissingInclude is returned when an include names an unknown template.
	ErrMissingInclude = errors.New("shader: missing include")

	// ErrIncludeCycle is returned when a template includes itself, directly
	// or through other templates.
	ErrIncludeCycle = errors.New("shader: include cycle")

	// ErrSyntax is returned for malformed directives and expressions.
	ErrSyntax = errors.New("shader: syntax error")

	// ErrUndefinedVariable is returned when an interpolation names neither an
	// engine variable nor a define.
	ErrUndefinedVariable = errors.New("shader: undefined variable")
)

// TemplateError describes a content error with the template name, line,
// and the define set that was being expanded.
type TemplateError struct {
	Template string
	Line     int
	Defines  Defines
	Err      error
}

func (e *TemplateError) Error() string {
	msg := fmt.Sprintf("template %q", e.Template)
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	if len(e.Defines) > 0 {
		msg += fmt.Sprintf(" [%s]", e.Defines)
	}
	return msg + ": " + e.Err.Error()
}

func (e *TemplateError) Unwrap() error { return e.Err }

func templateErr(name string, line int, defs Defines, err error) error {
	var te *TemplateError
	if errors.As(err, &te) {
		return err
	}
	return &TemplateError{Template: name, Line: line, Defines: defs, Err: err}
}
