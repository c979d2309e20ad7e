// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"log/slog"

	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
	"github.com/gogpu/framegraph/transient"
)

var logger logging.Var

// SetLogger configures the logger for framegraph and all its sub-packages.
// By default, framegraph produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior.
//
// Log levels used by framegraph:
//   - [slog.LevelDebug]: per-frame diagnostics (allocations, compiles, node order)
//   - [slog.LevelInfo]: lifecycle events (engine created, surface configured, template reloaded)
//   - [slog.LevelWarn]: degraded operation (fallback pipeline, budget eviction, node skipped)
//   - [slog.LevelError]: dropped frames
//
// Example:
//
//	framegraph.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	shader.SetLogger(l)
	pipeline.SetLogger(l)
	transient.SetLogger(l)
}

// Logger returns the current logger. Packages built on top of framegraph,
// such as passes, call this to share the same configuration without
// introducing import cycles.
func Logger() *slog.Logger { return logger.Load() }
