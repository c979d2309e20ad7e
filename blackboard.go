// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import "reflect"

type blackboardKey struct {
	typ  reflect.Type
	name string
}

// Blackboard is the per-frame store nodes use to hand data to each other,
// typically transient handles. Entries are keyed by value type and name,
// so Set[Handle](bb, "color") and Set[int](bb, "color") do not collide.
//
// The composer clears the blackboard once per frame before Prepare.
type Blackboard struct {
	entries map[blackboardKey]any
}

// NewBlackboard returns an empty blackboard.
func NewBlackboard() *Blackboard {
	return &Blackboard{entries: make(map[blackboardKey]any)}
}

// BlackboardReader is read access to a blackboard. It is implemented by
// *Blackboard and by the view returned from Reader.
type BlackboardReader interface {
	Len() int
	lookup(k blackboardKey) (any, bool)
}

// Set stores v under (T, key), replacing any previous value.
func Set[T any](bb *Blackboard, key string, v T) {
	if bb.entries == nil {
		bb.entries = make(map[blackboardKey]any)
	}
	bb.entries[blackboardKey{reflect.TypeFor[T](), key}] = v
}

// Get returns the value stored under (T, key).
func Get[T any](r BlackboardReader, key string) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	v, ok := r.lookup(blackboardKey{reflect.TypeFor[T](), key})
	if !ok {
		return zero, false
	}
	// A nil interface value is stored as untyped nil.
	t, _ := v.(T)
	return t, true
}

// Delete removes the value stored under (T, key).
func Delete[T any](bb *Blackboard, key string) {
	delete(bb.entries, blackboardKey{reflect.TypeFor[T](), key})
}

// Clear removes every entry.
func (bb *Blackboard) Clear() { clear(bb.entries) }

// Len returns the number of entries.
func (bb *Blackboard) Len() int { return len(bb.entries) }

// Reader returns a read-only view of bb.
func (bb *Blackboard) Reader() BlackboardReader { return blackboardView{bb} }

func (bb *Blackboard) lookup(k blackboardKey) (any, bool) {
	v, ok := bb.entries[k]
	return v, ok
}

type blackboardView struct{ bb *Blackboard }

func (v blackboardView) Len() int                           { return v.bb.Len() }
func (v blackboardView) lookup(k blackboardKey) (any, bool) { return v.bb.lookup(k) }
