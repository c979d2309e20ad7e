// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import "errors"

// Pipeline cache errors.
var (
	// ErrNilDevice is returned when creating a cache without a device.
	ErrNilDevice = errors.New("pipeline: device is nil")

	// ErrNilEngine is returned when creating a cache without a template engine.
	ErrNilEngine = errors.New("pipeline: template engine is nil")

	// ErrNoTargets is returned for a request without color or depth targets.
	ErrNoTargets = errors.New("pipeline: request has no color or depth target")

	// ErrCompile wraps backend shader or pipeline creation failures. The
	// cache never returns it from GetOrCompile; it is recorded on the
	// fallback entry instead.
	ErrCompile = errors.New("pipeline: compile failed")

	// ErrFallbackFailed is returned when even the placeholder pipeline
	// cannot be built, which means the device itself is unusable.
	ErrFallbackFailed = errors.New("pipeline: fallback pipeline failed")

	// ErrVertexFormat is returned for an unparsable vertex format or layout.
	ErrVertexFormat = errors.New("pipeline: invalid vertex format")

	// ErrUnknownCompiler is returned for a compiler name that is not registered.
	ErrUnknownCompiler = errors.New("pipeline: unknown compiler")
)
