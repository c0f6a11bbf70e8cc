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
	"iter"
	"log/slog"
	"slices"
	"strconv"

	"github.com/AleutianAI/modeltree/services/modeltree/numbering"
)

// ListOption configures a List.
type ListOption func(*List)

// WithShortName sets an alias registered in the parent's name map and
// used by compact path names.
func WithShortName(short string) ListOption {
	return func(l *List) { l.shortName = short }
}

// WithReferencesClosed declares that every reference made below the list
// resolves below it. Paths written and read inside are relative to it.
func WithReferencesClosed() ListOption {
	return func(l *List) { l.closed = true }
}

// WithElementClass sets the default class tag of children. Children of
// that class are written without a tag, and an untagged block is scanned
// as that class.
func WithElementClass(tag string) ListOption {
	return func(l *List) { l.elemClass = tag }
}

// WithPolicy sets the naming policy for children.
func WithPolicy(p Policy) ListOption {
	return func(l *List) { l.policy = p }
}

// WithLogger sets the logger used for scan warnings.
func WithLogger(logger *slog.Logger) ListOption {
	return func(l *List) { l.logger = logger }
}

// WithOneBasedNumbering starts the list with number 0 reserved.
func WithOneBasedNumbering() ListOption {
	return func(l *List) { l.oneBased = true }
}

// List is an ordered, numbered and named container of components.
//
// Description:
//
//	Children keep a stable number while their index shifts. Removing a
//	child only records the lowest index whose number→index entry is stale;
//	the entries are re-derived on the next lookup. Bulk add and remove run
//	in one pass over the child slice.
//
// Thread Safety: Not safe for concurrent use.
type List struct {
	Base

	comp      Composite
	comps     []Component
	nums      *numbering.Map[Component]
	validFrom int
	resetIdx  bool
	scanCnt   int

	shortName string
	closed    bool
	elemClass string
	oneBased  bool
	policy    Policy
	logger    *slog.Logger
	observers []Observer
}

// NewList creates a detached List.
func NewList(name string, opts ...ListOption) *List {
	l := &List{}
	l.InitList(l, name, opts...)
	return l
}

// InitList initializes a List embedded in self, which must be the
// outermost type. Types that embed List call it instead of Init.
//
// The name is assigned without validation errors being reported; an
// invalid name is dropped.
func (l *List) InitList(self Composite, name string, opts ...ListOption) {
	l.Init(self)
	l.comp = self
	l.validFrom = -1
	l.policy = DefaultPolicy()
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	var nopts []numbering.Option
	if l.oneBased {
		nopts = append(nopts, numbering.WithOneBased())
	}
	nopts = append(nopts, numbering.WithRebuildHook(func() { numberCacheRebuilds.Inc() }))
	l.nums = numbering.New[Component](nopts...)
	if ValidateName(name) == nil {
		l.name = name
	}
}

// ClassTag returns "ComponentList".
func (l *List) ClassTag() string { return "ComponentList" }

// ShortName returns the alias, or "".
func (l *List) ShortName() string { return l.shortName }

// ReferencesClosed implements Composite.
func (l *List) ReferencesClosed() bool { return l.closed }

// Policy implements Composite.
func (l *List) Policy() Policy { return l.policy }

// SetPolicy replaces the naming policy. Existing names are not rechecked.
func (l *List) SetPolicy(p Policy) { l.policy = p }

// ElementClass returns the default class tag of children.
func (l *List) ElementClass() string { return l.elemClass }

// Logger returns the list's logger.
func (l *List) Logger() *slog.Logger { return l.logger }

// AddObserver registers o for events reaching this list.
func (l *List) AddObserver(o Observer) {
	l.observers = append(l.observers, o)
}

// RemoveObserver unregisters o.
func (l *List) RemoveObserver(o Observer) {
	l.observers = slices.DeleteFunc(l.observers, func(x Observer) bool { return x == o })
}

// =============================================================================
// Lookup
// =============================================================================

func (l *List) validateIndices() {
	if l.validFrom == -1 {
		return
	}
	if l.resetIdx {
		l.nums.ClearIndices()
	}
	for i := l.validFrom; i < len(l.comps); i++ {
		l.nums.SetIndex(l.comps[i].Number(), i)
	}
	if l.resetIdx {
		l.nums.CollectFreeNumbers()
		l.resetIdx = false
	}
	l.validFrom = -1
}

// NumComponents returns the number of children.
func (l *List) NumComponents() int { return len(l.comps) }

// Len is NumComponents.
func (l *List) Len() int { return len(l.comps) }

// Child returns the child at idx, or nil when out of range.
func (l *List) Child(idx int) Component {
	if idx < 0 || idx >= len(l.comps) {
		return nil
	}
	return l.comps[idx]
}

// Children iterates over the children in index order.
func (l *List) Children() iter.Seq2[int, Component] {
	return func(yield func(int, Component) bool) {
		for i, c := range l.comps {
			if !yield(i, c) {
				return
			}
		}
	}
}

// Get looks up a child by name, short name, or decimal number.
func (l *List) Get(nameOrNumber string) Component {
	if n, err := strconv.Atoi(nameOrNumber); err == nil {
		return l.ByNumber(n)
	}
	c, _ := l.nums.ByName(nameOrNumber)
	return c
}

// ByName looks up a child by name or short name.
func (l *List) ByName(name string) Component {
	c, _ := l.nums.ByName(name)
	return c
}

// ByNumber returns the child with number n, or nil.
func (l *List) ByNumber(n int) Component {
	l.validateIndices()
	idx := l.nums.Index(n)
	if idx < 0 || idx >= len(l.comps) {
		return nil
	}
	c := l.comps[idx]
	if c.Number() != n {
		return nil
	}
	return c
}

// IndexOf returns the index of c, or -1 if c is not a child.
func (l *List) IndexOf(c Component) int {
	if c == nil || c.Parent() != l.comp {
		return -1
	}
	l.validateIndices()
	idx := l.nums.Index(c.Number())
	if idx < 0 || idx >= len(l.comps) || l.comps[idx] != c {
		return -1
	}
	return idx
}

// NumberLimit returns one more than the highest child number.
func (l *List) NumberLimit() int {
	l.validateIndices()
	return l.nums.NumberLimit()
}

// ZeroBasedNumbering reports whether number 0 may be used.
func (l *List) ZeroBasedNumbering() bool { return !l.nums.OneBased() }

// =============================================================================
// Events
// =============================================================================

// ComponentChanged handles an event from a child: a rename re-keys the
// name map, then observers run and the event moves on to the parent.
func (l *List) ComponentChanged(e ChangeEvent) {
	if ne, ok := e.(NameChangeEvent); ok && ne.Comp.Parent() == l.comp {
		l.nums.RemoveName(ne.OldName, ne.Comp)
		l.nums.AddName(ne.Comp.Name(), ne.Comp)
	}
	l.fire(e)
}

func (l *List) fire(e ChangeEvent) {
	for _, o := range l.observers {
		o.ComponentChanged(e)
	}
	l.notifyParent(e)
}

func (l *List) notifyStructureChanged(stateChanged bool) {
	l.fire(StructureChangeEvent{Comp: l.comp, StateChanged: stateChanged})
}

func anyState(comps []Component) bool {
	return slices.ContainsFunc(comps, Component.HasState)
}

// =============================================================================
// Single Edits
// =============================================================================

// checkInsertable verifies c can be mapped into the list.
func (l *List) checkInsertable(op string, c Component) error {
	if c == nil {
		return &StructuralError{Op: op, Err: fmt.Errorf("nil component")}
	}
	if c.Parent() != nil {
		return &StructuralError{Op: op, Path: DiagnosticName(c), Err: ErrAlreadyParented}
	}
	if name := c.Name(); name != "" && l.policy.MustHaveUniqueName(c) {
		if other, ok := l.nums.ByName(name); ok && other != c {
			return &StructuralError{Op: op, Path: DiagnosticName(c), Err: fmt.Errorf("%w: '%s' in %s", ErrDuplicateName, name, DiagnosticName(l.comp))}
		}
	}
	return nil
}

// initComponent assigns a number, parent and name map entries. A number
// of -1 allocates the next free number.
func (l *List) initComponent(c Component, number, idx int) error {
	l.validateIndices()
	if err := l.checkInsertable("add", c); err != nil {
		return err
	}
	if number == -1 {
		number = l.nums.Allocate()
	} else if err := l.nums.Reserve(number); err != nil {
		return &StructuralError{Op: "add", Path: DiagnosticName(c), Err: fmt.Errorf("%w: %d: %v", ErrDuplicateNumber, number, err)}
	}
	b := c.base()
	b.number = number
	b.parent = l.comp
	l.nums.SetIndex(number, idx)
	l.mapNames(c)
	return nil
}

func (l *List) mapNames(c Component) {
	l.nums.AddName(c.Name(), c)
	if sn, ok := c.(shortNamer); ok {
		l.nums.AddName(sn.ShortName(), c)
	}
}

// clearComponent frees c's number and names and detaches it. The number
// stays on c so callers can still report it.
func (l *List) clearComponent(c Component) {
	l.nums.Free(c.Number())
	l.nums.RemoveName(c.Name(), c)
	if sn, ok := c.(shortNamer); ok {
		l.nums.RemoveName(sn.ShortName(), c)
	}
	c.base().parent = nil
}

// Add appends c with the next free number.
func (l *List) Add(c Component) error {
	return l.AddNumbered(c, -1)
}

// AddNumbered appends c with number n. If n is already used, the next
// free number is assigned instead.
//
// # Inputs
//
//   - c: Detached component.
//   - n: Requested number, or -1.
//
// # Outputs
//
//   - error: StructuralError for a parented component, a duplicate name,
//     or a failed ConnectToHierarchy. On error the list is unchanged.
//
// # Description
//
// After mapping, c and its descendants are connected to the hierarchy.
// If a connect hook fails the add is rolled back: c is removed, unmapped,
// detached and disconnected before the error is returned.
func (l *List) AddNumbered(c Component, n int) error {
	if n != -1 && l.ByNumber(n) != nil {
		n = -1
	}
	if err := l.doAdd(c, n); err != nil {
		return err
	}
	listMutations.WithLabelValues("add").Inc()
	l.notifyStructureChanged(c.HasState())
	return nil
}

func (l *List) doAdd(c Component, number int) error {
	if err := l.initComponent(c, number, len(l.comps)); err != nil {
		return err
	}
	l.comps = append(l.comps, c)
	if err := RecursivelyConnect(c, l.comp); err != nil {
		l.comps = l.comps[:len(l.comps)-1]
		l.clearComponent(c)
		RecursivelyDisconnect(c, l.comp)
		return &StructuralError{Op: "add", Path: DiagnosticName(c), Err: err}
	}
	UpdateInheritedProperties(c)
	return nil
}

// Insert places c at idx, shifting later children up.
func (l *List) Insert(idx int, c Component) error {
	return l.AddComponents([]Component{c}, []int{idx})
}

// Set replaces the child at idx with c, which takes over the old number.
// The previous child is returned. If c cannot be connected the previous
// child is put back with its number and nil is returned with the error.
func (l *List) Set(idx int, c Component) (Component, error) {
	if idx < 0 || idx >= len(l.comps) {
		return nil, &StructuralError{Op: "set", Err: fmt.Errorf("%w: %d, size %d", ErrIndexOutOfRange, idx, len(l.comps))}
	}
	if c == nil {
		return nil, &StructuralError{Op: "set", Err: fmt.Errorf("nil component")}
	}
	prev := l.comps[idx]
	if c.Parent() != nil {
		return nil, &StructuralError{Op: "set", Path: DiagnosticName(c), Err: ErrAlreadyParented}
	}
	if name := c.Name(); name != "" && l.policy.MustHaveUniqueName(c) {
		if other := l.ByName(name); other != nil && other != prev {
			return nil, &StructuralError{Op: "set", Path: DiagnosticName(c), Err: fmt.Errorf("%w: '%s'", ErrDuplicateName, name)}
		}
	}
	number := prev.Number()
	RecursivelyDisconnect(prev, l.comp)
	l.clearComponent(prev)
	if err := l.initComponent(c, number, idx); err != nil {
		return nil, errors.Join(err, l.restoreSlot(prev, number, idx))
	}
	l.comps[idx] = c
	if err := RecursivelyConnect(c, l.comp); err != nil {
		l.clearComponent(c)
		RecursivelyDisconnect(c, l.comp)
		err = &StructuralError{Op: "set", Path: DiagnosticName(c), Err: err}
		return nil, errors.Join(err, l.restoreSlot(prev, number, idx))
	}
	UpdateInheritedProperties(c)
	listMutations.WithLabelValues("set").Inc()
	l.notifyStructureChanged(c.HasState() || prev.HasState())
	return prev, nil
}

// restoreSlot puts prev back at idx under number after a failed Set.
func (l *List) restoreSlot(prev Component, number, idx int) error {
	if err := l.initComponent(prev, number, idx); err != nil {
		return err
	}
	l.comps[idx] = prev
	return RecursivelyConnect(prev, l.comp)
}

// Remove removes c and reports whether it was a child.
func (l *List) Remove(c Component) bool {
	idx := l.IndexOf(c)
	if idx == -1 {
		return false
	}
	_, err := l.RemoveAt(idx)
	return err == nil
}

// RemoveAt removes and returns the child at idx.
func (l *List) RemoveAt(idx int) (Component, error) {
	if idx < 0 || idx >= len(l.comps) {
		return nil, &StructuralError{Op: "remove", Err: fmt.Errorf("%w: %d, size %d", ErrIndexOutOfRange, idx, len(l.comps))}
	}
	if l.validFrom == -1 || idx < l.validFrom {
		l.validFrom = idx
	}
	c := l.comps[idx]
	l.comps = slices.Delete(l.comps, idx, idx+1)
	RecursivelyDisconnect(c, l.comp)
	l.clearComponent(c)
	listMutations.WithLabelValues("remove").Inc()
	l.notifyStructureChanged(c.HasState())
	return c, nil
}

// RemoveAll removes every child. Numbers and names are cleared.
func (l *List) RemoveAll() {
	removed := l.comps
	for _, c := range removed {
		RecursivelyDisconnect(c, l.comp)
		c.base().parent = nil
	}
	l.comps = nil
	l.validFrom = -1
	l.resetIdx = false
	l.nums.Clear()
	listMutations.WithLabelValues("remove_all").Inc()
	l.notifyStructureChanged(anyState(removed))
}

// =============================================================================
// Numbering
// =============================================================================

// SetZeroBasedNumbering switches between zero-based and one-based
// numbering, shifting every child number by one.
func (l *List) SetZeroBasedNumbering(enable bool) error {
	if enable == l.ZeroBasedNumbering() {
		return nil
	}
	l.validateIndices()
	if _, err := l.nums.SetOneBased(!enable); err != nil {
		return &StructuralError{Op: "renumber", Path: DiagnosticName(l.comp), Err: err}
	}
	inc := 1
	if enable {
		inc = -1
	}
	for _, c := range l.comps {
		c.base().number += inc
	}
	return nil
}

// ResetNumbersToIndices renumbers children so numbers follow indices.
func (l *List) ResetNumbersToIndices() {
	l.validateIndices()
	l.nums.ResetNumbersToIndices(len(l.comps))
	b := 0
	if l.nums.OneBased() {
		b = 1
	}
	for i, c := range l.comps {
		c.base().number = i + b
	}
}

// InvalidateNumbers forces a full rebuild of the number→index table on
// the next lookup, for use after numbers were changed directly.
func (l *List) InvalidateNumbers() {
	l.validFrom = 0
	l.resetIdx = true
}
