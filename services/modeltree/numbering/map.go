// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package numbering issues stable per-sibling numbers and keeps the
// number→index and name→entry lookups for a component list.
//
// A number is an identity that survives index shuffles. When an entry is
// removed its number goes onto a LIFO free stack and is handed out again
// before the number limit grows. The limit is always one more than the
// highest number in use, so it shrinks as soon as the top number is freed.
//
// # Free Stack Cache
//
// The free stack is a cache. Assigning an explicit number that is not the
// one Allocate would have returned (which only happens while replaying
// numbers from a file) invalidates it, and the next allocation rebuilds it
// by scanning the index table. After a rebuild the lowest gap is on top.
//
// # Thread Safety
//
// Map is NOT safe for concurrent use. It is owned by a single list.
package numbering

// Option configures a Map.
type Option func(*options)

type options struct {
	oneBased  bool
	onRebuild func()
}

// WithOneBased starts the map in one-based mode, where number 0 is never
// issued.
func WithOneBased() Option {
	return func(o *options) { o.oneBased = true }
}

// WithRebuildHook registers a callback invoked after each free stack
// rebuild.
func WithRebuildHook(fn func()) Option {
	return func(o *options) { o.onRebuild = fn }
}

// Map allocates numbers and resolves numbers and names for one list.
//
// C is the entry type, usually a component interface.
type Map[C comparable] struct {
	indices   []int // number -> index, -1 when unused
	names     map[string]C
	limit     int
	free      []int
	freeValid bool
	oneBased  bool
	rebuilds  int
	onRebuild func()
}

// New creates an empty Map.
func New[C comparable](opts ...Option) *Map[C] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	m := &Map[C]{
		names:     make(map[string]C),
		freeValid: true,
		oneBased:  o.oneBased,
		onRebuild: o.onRebuild,
	}
	m.limit = m.base()
	return m
}

func (m *Map[C]) base() int {
	if m.oneBased {
		return 1
	}
	return 0
}

// OneBased reports whether number 0 is reserved.
func (m *Map[C]) OneBased() bool {
	return m.oneBased
}

// NumberLimit returns one more than the highest number in use, or the
// base number (0 or 1) when nothing is in use.
func (m *Map[C]) NumberLimit() int {
	return m.limit
}

// Rebuilds returns how many times the free stack has been rebuilt.
func (m *Map[C]) Rebuilds() int {
	return m.rebuilds
}

// InUse reports whether number n is assigned.
func (m *Map[C]) InUse(n int) bool {
	return n >= 0 && n < len(m.indices) && m.indices[n] != -1
}

// Index returns the index mapped to number n, or -1.
func (m *Map[C]) Index(n int) int {
	if n < 0 || n >= len(m.indices) {
		return -1
	}
	return m.indices[n]
}

// SetIndex maps number n to idx, growing the table as needed.
//
// This is used both for fresh assignments and to re-derive indices after
// the owning list shifts entries. A number at or above the limit raises
// the limit and invalidates the free stack.
func (m *Map[C]) SetIndex(n, idx int) {
	m.grow(n)
	m.indices[n] = idx
	if n >= m.limit {
		if n > m.limit {
			m.freeValid = false
		}
		m.limit = n + 1
	}
}

func (m *Map[C]) grow(n int) {
	for len(m.indices) <= n {
		m.indices = append(m.indices, -1)
	}
}

// Allocate returns the next number to use.
//
// Freed numbers are returned most recent first. A freed number that sits at
// or above the current limit (because the limit shrank past it) raises the
// limit again. With an empty stack the limit itself is returned and bumped.
//
// The number is not marked in use until SetIndex is called for it.
func (m *Map[C]) Allocate() int {
	if !m.freeValid {
		m.rebuild()
	}
	for len(m.free) > 0 {
		n := m.free[len(m.free)-1]
		m.free = m.free[:len(m.free)-1]
		if m.InUse(n) {
			continue
		}
		if n >= m.limit {
			m.limit = n + 1
		}
		return n
	}
	n := m.limit
	m.limit++
	return n
}

// Reserve claims an explicit number ahead of SetIndex.
//
// # Inputs
//
//   - n: The number to claim.
//
// # Outputs
//
//   - error: ErrInvalidNumber or ErrNumberInUse.
//
// # Description
//
// If n is exactly what Allocate would return the free stack stays valid.
// Any other number invalidates it; the next Allocate rebuilds.
func (m *Map[C]) Reserve(n int) error {
	if n < m.base() {
		return ErrInvalidNumber
	}
	if m.InUse(n) {
		return ErrNumberInUse
	}
	if m.freeValid {
		switch {
		case len(m.free) > 0 && m.free[len(m.free)-1] == n:
			m.free = m.free[:len(m.free)-1]
		case len(m.free) == 0 && n == m.limit:
		default:
			m.freeValid = false
		}
	}
	if n >= m.limit {
		m.limit = n + 1
	}
	return nil
}

// Free releases number n.
//
// The number is pushed onto the free stack. When n was the highest number
// in use the limit shrinks past every unused slot below it.
func (m *Map[C]) Free(n int) {
	if n < 0 || n >= len(m.indices) {
		return
	}
	m.indices[n] = -1
	if m.freeValid {
		m.free = append(m.free, n)
	}
	if n == m.limit-1 {
		for m.limit > m.base() && !m.InUse(m.limit-1) {
			m.limit--
		}
	}
}

// CollectFreeNumbers forces a rebuild of the free stack. Lists call it
// after replaying explicit numbers from a file.
func (m *Map[C]) CollectFreeNumbers() {
	m.rebuild()
}

func (m *Map[C]) rebuild() {
	m.free = m.free[:0]
	top := len(m.indices) - 1
	for top >= m.base() && !m.InUse(top) {
		top--
	}
	m.limit = max(top+1, m.base())
	for n := m.limit - 1; n >= m.base(); n-- {
		if !m.InUse(n) {
			m.free = append(m.free, n)
		}
	}
	m.freeValid = true
	m.rebuilds++
	if m.onRebuild != nil {
		m.onRebuild()
	}
}

// SetOneBased switches between zero-based and one-based numbering by
// shifting every assigned number by one.
//
// # Outputs
//
//   - bool: True if numbers were shifted.
//   - error: ErrSlotZeroInUse when switching to zero-based is impossible.
func (m *Map[C]) SetOneBased(enable bool) (bool, error) {
	if enable == m.oneBased {
		return false, nil
	}
	if enable {
		m.indices = append([]int{-1}, m.indices...)
		m.limit++
	} else {
		if m.InUse(0) {
			return false, ErrSlotZeroInUse
		}
		if len(m.indices) > 0 {
			m.indices = m.indices[1:]
		}
		m.limit--
	}
	m.oneBased = enable
	// shift stack entries in place; 0 never appears in a one-based stack
	if m.freeValid {
		shifted := m.free[:0]
		for _, n := range m.free {
			if enable {
				shifted = append(shifted, n+1)
			} else if n > 0 {
				shifted = append(shifted, n-1)
			}
		}
		m.free = shifted
	}
	if m.limit < m.base() {
		m.limit = m.base()
	}
	return true, nil
}

// ResetNumbersToIndices renumbers size entries so that entry i gets
// number i (plus one in one-based mode). The free stack is emptied.
func (m *Map[C]) ResetNumbersToIndices(size int) {
	b := m.base()
	m.indices = make([]int, size+b)
	for i := range m.indices {
		m.indices[i] = i - b
	}
	if b > 0 {
		m.indices[0] = -1
	}
	m.free = m.free[:0]
	m.freeValid = true
	m.limit = size + b
}

// ClearIndices marks every number unused without touching names. The
// owner must re-derive all indices with SetIndex before allocating again.
func (m *Map[C]) ClearIndices() {
	for i := range m.indices {
		m.indices[i] = -1
	}
	m.freeValid = false
}

// Clear removes all numbers and names.
func (m *Map[C]) Clear() {
	m.indices = nil
	clear(m.names)
	m.free = nil
	m.freeValid = true
	m.limit = m.base()
}

// =============================================================================
// Names
// =============================================================================

// AddName registers name for c. An empty name is ignored.
func (m *Map[C]) AddName(name string, c C) {
	if name != "" {
		m.names[name] = c
	}
}

// RemoveName drops name if it currently maps to c.
func (m *Map[C]) RemoveName(name string, c C) {
	if name == "" {
		return
	}
	if cur, ok := m.names[name]; ok && cur == c {
		delete(m.names, name)
	}
}

// ByName looks up an entry by name.
func (m *Map[C]) ByName(name string) (C, bool) {
	c, ok := m.names[name]
	return c, ok
}

// NameCount returns the number of registered names.
func (m *Map[C]) NameCount() int {
	return len(m.names)
}
