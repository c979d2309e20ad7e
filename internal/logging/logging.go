// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package logging holds the shared slog plumbing used by every framegraph
// package. Each package keeps its own Var so that SetLogger on the root
// package can fan the logger out without import cycles.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Nop returns a logger that discards all output.
func Nop() *slog.Logger { return slog.New(nopHandler{}) }

// Var is an atomically replaceable logger. The zero value logs nothing.
type Var struct {
	p atomic.Pointer[slog.Logger]
}

// Load returns the current logger, never nil.
func (v *Var) Load() *slog.Logger {
	if l := v.p.Load(); l != nil {
		return l
	}
	return nop
}

// Store replaces the logger. A nil logger restores silent behavior.
func (v *Var) Store(l *slog.Logger) {
	if l == nil {
		l = nop
	}
	v.p.Store(l)
}

var nop = Nop()
