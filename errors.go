// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import "errors"

var (
	// ErrComposerConsumed is returned by a second Render on the same Composer.
	ErrComposerConsumed = errors.New("framegraph: composer already rendered")

	// ErrFrameInProgress is returned when Render is entered while another
	// frame of the same engine is still rendering.
	ErrFrameInProgress = errors.New("framegraph: frame already in progress")

	// ErrSurfaceUnavailable is returned when the output texture cannot be
	// acquired. The frame is dropped.
	ErrSurfaceUnavailable = errors.New("framegraph: surface texture unavailable")

	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("framegraph: engine closed")

	// ErrNoDevice is returned when a DeviceProvider does not expose a HAL
	// device and queue.
	ErrNoDevice = errors.New("framegraph: provider does not expose hal device and queue")

	// ErrNodePanic wraps a panic recovered from a node.
	ErrNodePanic = errors.New("framegraph: node panicked")

	// ErrNilNode is recorded when AddNode receives a nil node.
	ErrNilNode = errors.New("framegraph: nil node")

	// ErrUnknownStage is recorded when AddNode receives an out-of-range stage.
	ErrUnknownStage = errors.New("framegraph: unknown stage")
)
