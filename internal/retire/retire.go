// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package retire holds GPU objects released by the host until the GPU has
// finished every submission that may still reference them.
//
// Destroy functions are tagged with the latest submission index at the
// time of release and run once the queue reports that index complete.
package retire

import "sync"

// Fence reports queue progress by submission index.
type Fence interface {
	// Submitted returns the index of the most recent submission, or 0.
	Submitted() uint64
	// Completed returns the highest index the GPU has finished.
	Completed() uint64
}

type pending struct {
	after   uint64
	destroy func()
}

// List is a deferred destruction queue. The zero value destroys
// immediately until a Fence is set.
type List struct {
	mu    sync.Mutex
	fence Fence
	items []pending
}

// SetFence sets the progress source. Nil restores immediate destruction.
func (l *List) SetFence(f Fence) {
	l.mu.Lock()
	l.fence = f
	l.mu.Unlock()
}

// Defer runs destroy now when no submission is in flight and otherwise
// holds it until the current submission completes.
func (l *List) Defer(destroy func()) {
	l.mu.Lock()
	if l.fence == nil {
		l.mu.Unlock()
		destroy()
		return
	}
	after := l.fence.Submitted()
	if after == 0 || after <= l.fence.Completed() {
		l.mu.Unlock()
		destroy()
		return
	}
	l.items = append(l.items, pending{after: after, destroy: destroy})
	l.mu.Unlock()
}

// Collect runs every held destroy whose submission has completed and
// returns how many ran.
func (l *List) Collect() int {
	l.mu.Lock()
	if len(l.items) == 0 || l.fence == nil {
		l.mu.Unlock()
		return 0
	}
	done := l.fence.Completed()
	var ready []func()
	kept := l.items[:0]
	for _, p := range l.items {
		if p.after <= done {
			ready = append(ready, p.destroy)
			continue
		}
		kept = append(kept, p)
	}
	clear(l.items[len(kept):])
	l.items = kept
	l.mu.Unlock()

	for _, fn := range ready {
		fn()
	}
	return len(ready)
}

// Flush runs every held destroy regardless of progress. Call it after the
// device is idle.
func (l *List) Flush() int {
	l.mu.Lock()
	items := l.items
	l.items = nil
	l.mu.Unlock()
	for _, p := range items {
		p.destroy()
	}
	return len(items)
}

// Len returns the number of held destroys.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
