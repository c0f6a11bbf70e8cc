// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

// Ring is a fixed-size circular buffer. When full, pushing drops the
// oldest item.
//
// # Thread Safety
//
// NOT safe for concurrent use; caller must synchronize.
type Ring[T any] struct {
	data    []T
	head    int // next write position
	tail    int // oldest element
	count   int
	dropped int
}

// NewRing creates a ring holding up to capacity items. A non-positive
// capacity selects 100.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push adds item as the newest element and reports whether the oldest
// was dropped to make room.
func (r *Ring[T]) Push(item T) bool {
	full := r.count == len(r.data)
	r.data[r.head] = item
	r.head = (r.head + 1) % len(r.data)
	if full {
		r.tail = r.head
		r.dropped++
		return true
	}
	r.count++
	return false
}

func (r *Ring[T]) newestIndex() int {
	idx := r.head - 1
	if idx < 0 {
		idx = len(r.data) - 1
	}
	return idx
}

// PopNewest removes and returns the newest item.
//
// # Outputs
//
//   - T: The newest item.
//   - bool: False if the ring is empty.
func (r *Ring[T]) PopNewest() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	idx := r.newestIndex()
	item := r.data[idx]
	r.data[idx] = zero
	r.head = idx
	r.count--
	return item, true
}

// PeekNewest returns the newest item without removing it.
func (r *Ring[T]) PeekNewest() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.data[r.newestIndex()], true
}

// Slice returns all items from oldest to newest as a copy.
func (r *Ring[T]) Slice() []T {
	if r.count == 0 {
		return nil
	}
	out := make([]T, r.count)
	for i := range r.count {
		out[i] = r.data[(r.tail+i)%len(r.data)]
	}
	return out
}

// Len returns the number of items.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }

// Dropped returns how many items were pushed out since the last Clear.
func (r *Ring[T]) Dropped() int { return r.dropped }

// Clear removes all items.
func (r *Ring[T]) Clear() {
	clear(r.data)
	r.head, r.tail, r.count, r.dropped = 0, 0, 0, 0
}
