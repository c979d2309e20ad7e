// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package passes provides reference render nodes for framegraph.
//
// Clear runs in StagePreProcess. It acquires an HDR color target and a
// depth target from the transient pool, clears them and publishes their
// handles on the blackboard as SceneTargets. Forward draws the scene's
// visible objects into those targets; use one instance for StageOpaque and
// one with Transparent set for StageTransparent. Composite runs in
// StagePostProcess and resolves the HDR color into the frame output with a
// fullscreen triangle.
//
// The shader templates the nodes compile are embedded; pass Source to
// framegraph.WithShaderSource, optionally layered under an on-disk
// directory to override them.
//
//	clearNode := passes.NewClear(passes.ClearOptions{})
//	opaque := passes.NewForward(passes.ForwardOptions{})
//	transparent := passes.NewForward(passes.ForwardOptions{Transparent: true})
//	composite := passes.NewComposite(passes.CompositeOptions{Defines: shader.NewDefines("TONEMAP")})
//	defer composite.Close()
//
//	frame := engine.BeginFrame(scene)
//	frame.AddNode(framegraph.StagePreProcess, clearNode)
//	frame.AddNode(framegraph.StageOpaque, opaque)
//	frame.AddNode(framegraph.StageTransparent, transparent)
//	frame.AddNode(framegraph.StagePostProcess, composite)
//	_, err := frame.Render()
//
// Nodes are reusable across frames but not safe for concurrent use.
package passes
