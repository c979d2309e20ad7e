// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

// Location is one output slot handed out during expansion.
type Location struct {
	// Index is the @location value written into the shader.
	Index uint32
	// Template and Line identify the next_loc() call that produced it.
	Template string
	Line     int
}

// LocationAllocator hands out sequential varying locations. Only calls
// reached in active branches allocate, in document order, so two define
// sets that enable the same leading varyings get the same leading slots.
//
// A LocationAllocator belongs to a single expansion and is not safe for
// concurrent use.
type LocationAllocator struct {
	assigned []Location
}

// Next allocates the next location.
func (a *LocationAllocator) Next(template string, line int) uint32 {
	idx := uint32(len(a.assigned))
	a.assigned = append(a.assigned, Location{Index: idx, Template: template, Line: line})
	return idx
}

// Count returns the number of allocated locations.
func (a *LocationAllocator) Count() int { return len(a.assigned) }

// Assigned returns the allocations in order.
func (a *LocationAllocator) Assigned() []Location { return a.assigned }
