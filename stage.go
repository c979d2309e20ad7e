// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"
	"strings"
)

// Stage is a coarse ordering bucket for render nodes. Nodes execute in
// stage order; within a stage they keep the order they were added in.
type Stage uint8

// Stages in execution order.
const (
	StagePreProcess Stage = iota
	StageShadowMap
	StageOpaque
	StageSkybox
	StageBeforeTransparent
	StageTransparent
	StagePostProcess
	StageUI

	stageCount
)

var stageNames = [stageCount]string{
	"PreProcess",
	"ShadowMap",
	"Opaque",
	"Skybox",
	"BeforeTransparent",
	"Transparent",
	"PostProcess",
	"UI",
}

// String returns the stage name.
func (s Stage) String() string {
	if s.Valid() {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// Valid reports whether s is one of the defined stages.
func (s Stage) Valid() bool { return s < stageCount }

// ParseStage returns the stage with the given name. Matching ignores case,
// so "opaque" and "Opaque" are the same stage.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if strings.EqualFold(n, name) {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

// Stages returns every stage in execution order.
func Stages() []Stage {
	out := make([]Stage, stageCount)
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}
