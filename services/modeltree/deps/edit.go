// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deps

import (
	"context"
	"fmt"

	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

// =============================================================================
// Grouped Removal
// =============================================================================

// RemoveComponents removes comps from their parents, handing each run of
// siblings to its parent in one bulk call.
//
// # Inputs
//
//   - comps: Components to remove, typically grouped by
//     FindDependentComponents.
//   - indices: If non-nil, receives the original index of each component.
//     Must be at least len(comps) long.
//
// # Outputs
//
//   - []tree.MutableComposite: The parent of each component, aligned with
//     comps, for AddComponentsInReverse.
//   - error: ErrNotMutable if a parent cannot be edited; nothing has been
//     removed in that case. An error from a parent's bulk removal stops
//     the edit after the groups already removed.
func RemoveComponents(comps []tree.Component, indices []int) ([]tree.MutableComposite, error) {
	if indices != nil && len(indices) < len(comps) {
		return nil, fmt.Errorf("remove components: %w: %d indices for %d components", ErrLengthMismatch, len(indices), len(comps))
	}
	parents := make([]tree.MutableComposite, len(comps))
	for i, c := range comps {
		p, ok := c.Parent().(tree.MutableComposite)
		if !ok {
			return nil, fmt.Errorf("remove %s: %w", tree.DiagnosticName(c), ErrNotMutable)
		}
		parents[i] = p
	}
	for start := 0; start < len(comps); {
		end := start + 1
		for end < len(comps) && parents[end] == parents[start] {
			end++
		}
		var local []int
		if indices != nil {
			local = indices[start:end]
		}
		if err := parents[start].RemoveComponents(comps[start:end], local); err != nil {
			return parents, err
		}
		start = end
	}
	return parents, nil
}

// AddComponents puts comps back into parents.
//
// # Inputs
//
//   - comps: Detached components.
//   - indices: Target index of each component, or nil to append.
//   - parents: One parent per component, or a single parent for all.
//   - reverse: Walk comps from the end. Undoing RemoveComponents needs
//     this so each list reuses its freed numbers in the right order.
//
// # Outputs
//
//   - error: ErrLengthMismatch, or the first error from a parent.
func AddComponents(comps []tree.Component, indices []int, parents []tree.MutableComposite, reverse bool) error {
	if len(parents) != 1 && len(parents) != len(comps) {
		return fmt.Errorf("add components: %w: %d parents for %d components", ErrLengthMismatch, len(parents), len(comps))
	}
	if indices != nil && len(indices) < len(comps) {
		return fmt.Errorf("add components: %w: %d indices for %d components", ErrLengthMismatch, len(indices), len(comps))
	}
	if len(comps) == 0 {
		return nil
	}

	parentOf := func(i int) tree.MutableComposite {
		if len(parents) == 1 {
			return parents[0]
		}
		return parents[i]
	}
	var (
		local    []tree.Component
		localIdx []int
		current  tree.MutableComposite
	)
	flush := func() error {
		if len(local) == 0 {
			return nil
		}
		err := current.AddComponents(local, localIdx)
		local, localIdx = nil, nil
		return err
	}
	for k := range comps {
		i := k
		if reverse {
			i = len(comps) - 1 - k
		}
		if p := parentOf(i); p != current {
			if err := flush(); err != nil {
				return err
			}
			current = p
		}
		local = append(local, comps[i])
		if indices != nil {
			localIdx = append(localIdx, indices[i])
		}
	}
	return flush()
}

// AddComponentsInReverse undoes RemoveComponents given the same comps,
// the indices it recorded and the parents it returned.
func AddComponentsInReverse(comps []tree.Component, indices []int, parents []tree.MutableComposite) error {
	return AddComponents(comps, indices, parents, true)
}

// =============================================================================
// Reversible Edit
// =============================================================================

// RemoveEdit is a planned deletion: the closure of some seeds plus the
// soft referrers to repair.
//
// Description:
//
//	PlanRemoval computes everything before the tree is touched, so Apply
//	only fails on a programming error. Undo restores names, numbers,
//	indices and every repaired reference list.
//
// Thread Safety: Not safe for concurrent use.
type RemoveEdit struct {
	// Delete lists the components removed, grouped by parent.
	Delete []tree.Component

	// Update lists the soft referrers repaired after removal.
	Update []tree.Component

	indices []int
	parents []tree.MutableComposite
	undo    *tree.UndoInfo
	applied bool
}

// PlanRemoval computes the removal closure of seeds.
func PlanRemoval(ctx context.Context, seeds []tree.Component, opts ...Option) (*RemoveEdit, error) {
	del, update, err := FindDependentComponents(ctx, seeds, opts...)
	if err != nil {
		return nil, err
	}
	return &RemoveEdit{Delete: del, Update: update}, nil
}

// Applied reports whether the edit is currently in effect.
func (e *RemoveEdit) Applied() bool { return e.applied }

// Description names the edit for undo logs.
func (e *RemoveEdit) Description() string {
	if len(e.Delete) == 1 {
		return "remove " + tree.DiagnosticName(e.Delete[0])
	}
	return fmt.Sprintf("remove %d components", len(e.Delete))
}

// Apply removes the planned components and repairs the soft referrers.
func (e *RemoveEdit) Apply() error {
	if e.applied {
		return fmt.Errorf("apply %s: %w", e.Description(), ErrEditState)
	}
	e.indices = make([]int, len(e.Delete))
	parents, err := RemoveComponents(e.Delete, e.indices)
	if err != nil {
		return fmt.Errorf("apply %s: %w", e.Description(), err)
	}
	e.parents = parents
	e.undo = &tree.UndoInfo{}
	for _, c := range e.Update {
		c.UpdateReferences(false, e.undo)
	}
	e.applied = true
	editsApplied.WithLabelValues("apply").Inc()
	return nil
}

// Undo reinserts the removed components and restores the soft references
// dropped by Apply.
func (e *RemoveEdit) Undo() error {
	if !e.applied {
		return fmt.Errorf("undo %s: %w", e.Description(), ErrEditState)
	}
	if err := AddComponentsInReverse(e.Delete, e.indices, e.parents); err != nil {
		return fmt.Errorf("undo %s: %w", e.Description(), err)
	}
	for _, c := range e.Update {
		c.UpdateReferences(true, e.undo)
	}
	e.applied = false
	editsApplied.WithLabelValues("undo").Inc()
	return nil
}
