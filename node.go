// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import "github.com/gogpu/wgpu/hal"

// RenderNode is one unit of per-frame GPU work.
//
// Prepare runs first for every node of the frame, in stage order. It is the
// only place where transient resources can be acquired and pipelines
// compiled, and where data is published on the blackboard for later
// nodes. Run then records commands into the shared frame encoder using
// only read-only views.
//
// A node that returns an error (or panics) from Prepare is skipped for Run.
// Neither failure stops the frame.
type RenderNode interface {
	Name() string
	Prepare(ctx *PrepareContext) error
	Run(ctx *ExecuteContext, encoder hal.CommandEncoder) error
}

// NodeFuncs adapts plain functions to RenderNode. Nil functions are no-ops.
type NodeFuncs struct {
	NodeName    string
	PrepareFunc func(ctx *PrepareContext) error
	RunFunc     func(ctx *ExecuteContext, encoder hal.CommandEncoder) error
}

// Name returns NodeName.
func (n NodeFuncs) Name() string { return n.NodeName }

// Prepare calls PrepareFunc.
func (n NodeFuncs) Prepare(ctx *PrepareContext) error {
	if n.PrepareFunc == nil {
		return nil
	}
	return n.PrepareFunc(ctx)
}

// Run calls RunFunc.
func (n NodeFuncs) Run(ctx *ExecuteContext, encoder hal.CommandEncoder) error {
	if n.RunFunc == nil {
		return nil
	}
	return n.RunFunc(ctx, encoder)
}

var _ RenderNode = NodeFuncs{}
