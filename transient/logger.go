// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package transient

import (
	"log/slog"

	"github.com/gogpu/framegraph/internal/logging"
)

var logger logging.Var

// SetLogger configures the logger used by the transient package.
// Pass nil to disable logging. framegraph.SetLogger calls this for you.
func SetLogger(l *slog.Logger) { logger.Store(l) }

// slogger returns the current package logger.
func slogger() *slog.Logger { return logger.Load() }
