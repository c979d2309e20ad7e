// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package framegraph is a transient render graph for gogpu.
//
// # Overview
//
// Every frame, subsystems describe their GPU work as render nodes grouped
// into coarse stages. The engine sorts the nodes, lets each one reserve
// short-lived textures and buffers and compile the shader variants it
// needs, then records every node into a single command encoder, submits
// and presents. Resources and compiled pipelines are recycled across
// frames; nodes never create or destroy GPU objects themselves.
//
// # Quick Start
//
//	engine, err := framegraph.NewEngine(provider, surface,
//	    framegraph.WithSize(1280, 720),
//	    framegraph.WithShaderSource(passes.Source()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	clearNode := passes.NewClear(passes.ClearOptions{})
//	forward := passes.NewForward(passes.ForwardOptions{})
//	composite := passes.NewComposite(passes.CompositeOptions{})
//	defer composite.Close()
//
//	for running {
//	    frame := engine.BeginFrame(scene)
//	    frame.AddNode(framegraph.StagePreProcess, clearNode)
//	    frame.AddNode(framegraph.StageOpaque, forward)
//	    frame.AddNode(framegraph.StagePostProcess, composite)
//	    if _, err := frame.Render(); err != nil {
//	        // The frame was dropped; try again next tick.
//	    }
//	}
//
// # Frame Protocol
//
// A node runs in two phases. Prepare receives a PrepareContext with the
// transient pool, the pipeline cache and a writable Blackboard. Run
// receives an ExecuteContext with read-only views of the same state plus
// the output texture view, and the shared command encoder. Resources can
// only be acquired during Prepare because only PrepareContext exposes the
// pool.
//
// Nodes execute in Stage order and, within a stage, in the order they were
// added. A node that fails or panics in Prepare is skipped; one that fails
// in Run is reported. Neither stops the frame.
//
// # Threading
//
// Render runs on one goroutine. Other goroutines hand work to the render
// thread with Engine.Publish; published functions run at the start of the
// next Render. Shader hot reload uses the same path.
//
// # Packages
//
//   - shader: the WGSL template engine with defines, includes and
//     location allocation
//   - pipeline: the permutation cache, vertex layouts and compilers
//   - transient: the per-frame texture and buffer pool
//   - passes: reference render nodes built on this package
package framegraph
