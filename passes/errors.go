// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package passes

import "errors"

var (
	// ErrNoSceneTargets is returned when a node that draws into the scene
	// targets runs without a Clear node earlier in the frame.
	ErrNoSceneTargets = errors.New("passes: scene targets not published")

	// ErrEmptyTarget is returned when the frame output has no size.
	ErrEmptyTarget = errors.New("passes: frame target has zero size")
)
