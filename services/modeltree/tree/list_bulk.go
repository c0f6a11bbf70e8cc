// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"errors"
	"fmt"
	"slices"
)

// AddComponents inserts a batch of detached components.
//
// # Inputs
//
//   - comps: Components to insert, all detached.
//   - indices: Target index of each component in the final list, or nil
//     to append in order. Must be at least len(comps) long.
//
// # Outputs
//
//   - error: StructuralError for a bad index, a collision, a parented
//     component, a duplicate name or a failed connect hook. Validation
//     happens before any mutation; a failed connect hook rolls the whole
//     batch back.
//
// # Description
//
// Numbers are allocated in batch order. New entries are placed into a
// scratch slice sized for the final list and the surviving children are
// compacted around them in one backward sweep, so the cost is linear in
// the final size regardless of where the entries land.
func (l *List) AddComponents(comps []Component, indices []int) error {
	n := len(comps)
	if n == 0 {
		return nil
	}
	if indices != nil && len(indices) < n {
		return &StructuralError{Op: "add", Err: fmt.Errorf("%w: %d indices for %d components", ErrIndexOutOfRange, len(indices), n)}
	}
	oldSize := len(l.comps)
	newSize := oldSize + n
	target := func(k int) int {
		if indices == nil {
			return oldSize + k
		}
		return indices[k]
	}
	l.validateIndices()

	// validate everything before touching the list
	used := make(map[int]struct{}, n)
	names := make(map[string]struct{}, n)
	for k, c := range comps {
		idx := target(k)
		if idx < 0 || idx >= newSize {
			return &StructuralError{Op: "add", Path: DiagnosticName(c), Err: fmt.Errorf("%w: %d, size %d", ErrIndexOutOfRange, idx, newSize)}
		}
		if _, dup := used[idx]; dup {
			return &StructuralError{Op: "add", Path: DiagnosticName(c), Err: fmt.Errorf("%w: %d", ErrIndexCollision, idx)}
		}
		used[idx] = struct{}{}
		if err := l.checkInsertable("add", c); err != nil {
			return err
		}
		if name := c.Name(); name != "" && l.policy.MustHaveUniqueName(c) {
			if _, dup := names[name]; dup {
				return &StructuralError{Op: "add", Path: DiagnosticName(c), Err: fmt.Errorf("%w: '%s' twice in batch", ErrDuplicateName, name)}
			}
			names[name] = struct{}{}
		}
	}

	if n == 1 {
		idx := target(0)
		if err := l.initComponent(comps[0], -1, idx); err != nil {
			return err
		}
		l.comps = slices.Insert(l.comps, idx, comps[0])
		for i := idx + 1; i < len(l.comps); i++ {
			l.nums.SetIndex(l.comps[i].Number(), i)
		}
	} else {
		temp := make([]Component, newSize)
		for k, c := range comps {
			idx := target(k)
			temp[idx] = c
			if err := l.initComponent(c, -1, idx); err != nil {
				// unreachable after validation; undo the mapped prefix
				for _, done := range comps[:k] {
					l.clearComponent(done)
				}
				return err
			}
		}
		l.comps = slices.Grow(l.comps, n)[:newSize]
		k := oldSize - 1
		for i := newSize - 1; i >= 0; i-- {
			if temp[i] == nil {
				l.comps[i] = l.comps[k]
				k--
			} else {
				l.comps[i] = temp[i]
			}
			l.nums.SetIndex(l.comps[i].Number(), i)
		}
	}

	for k, c := range comps {
		if err := RecursivelyConnect(c, l.comp); err != nil {
			for _, done := range comps[:k+1] {
				RecursivelyDisconnect(done, l.comp)
			}
			if rerr := l.removeBatch(comps, nil, false); rerr != nil {
				err = errors.Join(err, rerr)
			}
			return &StructuralError{Op: "add", Path: DiagnosticName(c), Err: err}
		}
	}
	for _, c := range comps {
		UpdateInheritedProperties(c)
	}
	listMutations.WithLabelValues("add_batch").Inc()
	l.notifyStructureChanged(anyState(comps))
	return nil
}

// RemoveComponents removes a batch of children in one pass.
//
// # Inputs
//
//   - comps: Children of this list, each at most once.
//   - indices: If non-nil, receives the original index of each removed
//     component, in batch order. Passing comps and indices back to
//     AddComponents restores the original order.
//
// # Outputs
//
//   - error: StructuralError if a component is not a child or appears
//     twice. Nothing is removed in that case.
//
// # Description
//
// Membership is tracked in a set local to the call, so component flags
// are left alone. Numbers are freed in batch order, which decides the
// order in which a later add reuses them.
func (l *List) RemoveComponents(comps []Component, indices []int) error {
	if err := l.removeBatch(comps, indices, true); err != nil {
		return err
	}
	listMutations.WithLabelValues("remove_batch").Inc()
	l.notifyStructureChanged(anyState(comps))
	return nil
}

// removeBatch unmaps comps and compacts the list. With disconnect set it
// also disconnects them; a caller that already did so passes false.
func (l *List) removeBatch(comps []Component, indices []int, disconnect bool) error {
	n := len(comps)
	if indices != nil && len(indices) < n {
		return &StructuralError{Op: "remove", Err: fmt.Errorf("%w: %d indices for %d components", ErrIndexOutOfRange, len(indices), n)}
	}
	batch := make(map[Component]int, n)
	for _, c := range comps {
		if c == nil || c.Parent() != l.comp {
			return &StructuralError{Op: "remove", Path: DiagnosticName(c), Err: ErrNotChild}
		}
		if _, dup := batch[c]; dup {
			return &StructuralError{Op: "remove", Path: DiagnosticName(c), Err: fmt.Errorf("%w: listed twice", ErrNotChild)}
		}
		batch[c] = -1
	}
	if disconnect {
		for _, c := range comps {
			RecursivelyDisconnect(c, l.comp)
		}
	}
	l.validateIndices()
	k := 0
	for i, c := range l.comps {
		if _, rm := batch[c]; rm {
			batch[c] = i
			continue
		}
		if k < i {
			l.comps[k] = c
			l.nums.SetIndex(c.Number(), k)
		}
		k++
	}
	clear(l.comps[k:])
	l.comps = l.comps[:k]
	for j, c := range comps {
		if indices != nil {
			indices[j] = batch[c]
		}
		l.clearComponent(c)
	}
	return nil
}
