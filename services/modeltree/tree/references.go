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
	"fmt"
	"log/slog"
	"slices"

	"github.com/AleutianAI/modeltree/services/modeltree/props"
)

// =============================================================================
// Undo Records
// =============================================================================

// UndoInfo is a FIFO of records written by UpdateReferences. Components
// append one record per forward call; on undo the same components are
// called in the same order and each takes its record from the front.
type UndoInfo struct {
	items []any
}

// noChange is appended when a forward update changed nothing.
type noChange struct{}

// AddLast appends a record.
func (u *UndoInfo) AddLast(rec any) {
	u.items = append(u.items, rec)
}

// RemoveFirst pops the oldest record, or returns nil if empty.
func (u *UndoInfo) RemoveFirst() any {
	if len(u.items) == 0 {
		return nil
	}
	rec := u.items[0]
	u.items[0] = nil
	u.items = u.items[1:]
	return rec
}

// Len returns the number of pending records.
func (u *UndoInfo) Len() int { return len(u.items) }

type undoer interface {
	undo() bool
}

type removedRef[C any] struct {
	idx int
	ref C
}

// listRemove records entries dropped from a reference slice.
type listRemove[C any] struct {
	list    *[]C
	removed []removedRef[C]
}

func (r *listRemove[C]) undo() bool {
	for _, rr := range r.removed {
		*r.list = slices.Insert(*r.list, rr.idx, rr.ref)
	}
	return len(r.removed) > 0
}

// UpdateReferenceList drops, or restores, entries of refs that are no
// longer connected to owner.
//
// # Inputs
//
//   - owner: Component holding the references.
//   - refs: The owner's soft reference slice; modified in place.
//   - undo: False to drop disconnected entries, true to restore the ones
//     dropped by the matching forward call.
//   - info: Undo FIFO shared by every component in the edit.
//
// # Outputs
//
//   - bool: True if refs changed.
//
// # Description
//
// A forward call always appends exactly one record so that undo calls in
// the same order stay aligned.
func UpdateReferenceList[C Component](owner Component, refs *[]C, undo bool, info *UndoInfo) bool {
	if undo {
		rec := info.RemoveFirst()
		if u, ok := rec.(undoer); ok {
			return u.undo()
		}
		return false
	}
	var rec *listRemove[C]
	kept := (*refs)[:0:0]
	for i, r := range *refs {
		if AreConnected(owner, r) {
			kept = append(kept, r)
			continue
		}
		if rec == nil {
			rec = &listRemove[C]{list: refs}
		}
		rec.removed = append(rec.removed, removedRef[C]{idx: i, ref: r})
	}
	if rec == nil {
		info.AddLast(noChange{})
		return false
	}
	*refs = kept
	info.AddLast(rec)
	return true
}

// =============================================================================
// Hierarchy Connection
// =============================================================================

// RecursivelyConnect calls ConnectToHierarchy(hcomp) on c and all its
// descendants, stopping at the first error.
func RecursivelyConnect(c Component, hcomp Composite) error {
	if err := c.ConnectToHierarchy(hcomp); err != nil {
		return err
	}
	if cc, ok := c.(Composite); ok {
		for i := range cc.NumComponents() {
			if err := RecursivelyConnect(cc.Child(i), hcomp); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecursivelyDisconnect calls DisconnectFromHierarchy(hcomp) on c and all
// its descendants.
func RecursivelyDisconnect(c Component, hcomp Composite) {
	c.DisconnectFromHierarchy(hcomp)
	if cc, ok := c.(Composite); ok {
		for i := range cc.NumComponents() {
			RecursivelyDisconnect(cc.Child(i), hcomp)
		}
	}
}

// ReferencesContained reports whether every reference made by c lies
// strictly below ancestor.
func ReferencesContained(ancestor, c Component) bool {
	for _, r := range slices.Concat(c.HardReferences(), c.SoftReferences()) {
		if !RecursivelyContains(ancestor, r) {
			return false
		}
	}
	return true
}

// CheckReferenceContainment verifies that every reference made in c's
// subtree stays inside c's farthest reference-closed ancestor.
func CheckReferenceContainment(c Component) error {
	ancestor := FarthestEncapsulatingAncestor(c)
	if ancestor == nil {
		return nil
	}
	return CheckReferenceContainmentIn(c, ancestor)
}

// CheckReferenceContainmentIn verifies containment below ancestor.
func CheckReferenceContainmentIn(c Component, ancestor Composite) error {
	for _, r := range slices.Concat(c.HardReferences(), c.SoftReferences()) {
		if r == nil {
			return fmt.Errorf("%w: null reference in %s", ErrReferenceOutsideHierarchy, DiagnosticName(c))
		}
		if !RecursivelyContains(ancestor, r) {
			return fmt.Errorf("%w: %s referenced by %s", ErrReferenceOutsideHierarchy, DiagnosticName(r), DiagnosticName(c))
		}
	}
	if cc, ok := c.(Composite); ok {
		for i := range cc.NumComponents() {
			if err := CheckReferenceContainmentIn(cc.Child(i), ancestor); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// Inherited Properties
// =============================================================================

// UpdateInheritedProperties refreshes every inheritable property in
// Inherited mode within c's subtree from the nearest ancestor that
// declares the same property.
func UpdateInheritedProperties(c Component) {
	for _, info := range c.Properties().All() {
		if !info.Inheritable || info.Mode(c) != props.Inherited {
			continue
		}
		for a := parentOf(c); a != nil; a = parentOf(a) {
			src := a.Properties().Get(info.Name)
			if src == nil {
				continue
			}
			v, err := src.Get(a)
			if err == nil {
				err = info.Set(c, v)
			}
			if err != nil {
				loggerOf(c).Warn("inherited property not applied",
					slog.String("property", info.Name),
					slog.String("component", DiagnosticName(c)),
					slog.String("ancestor", DiagnosticName(a)),
					slog.String("error", err.Error()),
				)
			}
			break
		}
	}
	if cc, ok := c.(Composite); ok {
		for i := range cc.NumComponents() {
			UpdateInheritedProperties(cc.Child(i))
		}
	}
}

// loggerOf returns the logger of c's nearest ancestor that has one.
func loggerOf(c Component) *slog.Logger {
	for a := parentOf(c); a != nil; a = parentOf(a) {
		if l, ok := a.(interface{ Logger() *slog.Logger }); ok && l.Logger() != nil {
			return l.Logger()
		}
	}
	return slog.Default()
}
