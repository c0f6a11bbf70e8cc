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
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/modeltree/services/modeltree/props"
)

// checkList verifies the lookup invariants of every child in l.
func checkList(t *testing.T, root Component, l *List) {
	t.Helper()
	maxNum := -1
	for i, c := range l.Children() {
		if c.Name() != "" {
			assert.Same(t, c, l.Get(c.Name()), "name lookup of %s", c.Name())
		}
		assert.Same(t, c, l.Get(strconv.Itoa(c.Number())), "number lookup of %d", c.Number())
		assert.Same(t, c, l.ByNumber(c.Number()))
		assert.Equal(t, i, l.IndexOf(c))
		assert.Same(t, c, l.Child(i))
		maxNum = max(maxNum, c.Number())

		found, err := FindComponent(root, RelativePathName(root, c, false))
		require.NoError(t, err)
		assert.Same(t, c, found, "path %s", RelativePathName(root, c, false))

		quoted := WritePathName(root, c, false)
		unquoted, err := strconv.Unquote(quoted)
		require.NoError(t, err)
		found, err = FindComponent(root, unquoted)
		require.NoError(t, err)
		assert.Same(t, c, found)
	}
	base := 0
	if !l.ZeroBasedNumbering() {
		base = 1
	}
	assert.Equal(t, max(maxNum+1, base), l.NumberLimit())
}

type listFixture struct {
	root, listA, listB                *List
	A, B, C, D, E, F, G, H, I, J, K, L *leaf
	M, N, O                            *leaf
}

func newListFixture() *listFixture {
	f := &listFixture{
		root:  NewList("root", WithShortName("r")),
		listA: NewList("listA", WithShortName("a")),
		listB: NewList("listB", WithShortName("b")),
		A:     newLeaf("compA"),
		B:     newLeaf("compB"),
		C:     newLeaf("compC"),
		D:     newLeaf(""),
		E:     newLeaf(""),
		F:     newLeaf(""),
		G:     newLeaf("compG"),
		H:     newLeaf("compH"),
		I:     newLeaf("compI"),
		J:     newLeaf("compJ"),
		K:     newLeaf("compK"),
		L:     newLeaf("compL"),
		M:     newLeaf(""),
		N:     newLeaf(""),
		O:     newLeaf(""),
	}
	mustAdd(f.root, f.listA, f.listB)
	return f
}

func (f *listFixture) check(t *testing.T, l *List, wantNames []string, wantNumbers []int) {
	t.Helper()
	assert.Equal(t, wantNames, names(l))
	assert.Equal(t, wantNumbers, numbers(l))
	checkList(t, f.root, l)
}

// TestList_AddRemoveNumbering replays a long add/remove sequence and checks
// names and numbers after every step.
func TestList_AddRemoveNumbering(t *testing.T) {
	f := newListFixture()
	la := f.listA

	mustAdd(la, f.A, f.C, f.B, f.E, f.F, f.D)
	f.check(t, la, []string{"compA", "compC", "compB", "", "", ""}, []int{0, 1, 2, 3, 4, 5})

	require.NoError(t, f.E.SetName("compE"))
	require.NoError(t, f.F.SetName("compF"))
	assert.Same(t, f.E, la.Get("compE"))
	f.check(t, la, []string{"compA", "compC", "compB", "compE", "compF", ""}, []int{0, 1, 2, 3, 4, 5})
	require.NoError(t, f.E.SetName(""))
	assert.Nil(t, la.Get("compE"))

	assert.True(t, la.Remove(f.E))
	f.check(t, la, []string{"compA", "compC", "compB", "compF", ""}, []int{0, 1, 2, 4, 5})
	assert.True(t, la.Remove(f.F))
	f.check(t, la, []string{"compA", "compC", "compB", ""}, []int{0, 1, 2, 5})
	assert.False(t, la.Remove(f.F))

	// freed numbers come back most recent first
	mustAdd(la, f.G, f.H)
	f.check(t, la, []string{"compA", "compC", "compB", "", "compG", "compH"}, []int{0, 1, 2, 5, 4, 3})

	for _, c := range []Component{f.D, f.B, f.C, f.H, f.A} {
		assert.True(t, la.Remove(c))
	}
	f.check(t, la, []string{"compG"}, []int{4})

	comps := []Component{f.A, f.H, f.C, f.B, f.D}
	indices := []int{0, 5, 1, 2, 3}
	require.NoError(t, la.AddComponents(comps, indices))
	f.check(t, la, []string{"compA", "compC", "compB", "", "compG", "compH"}, []int{0, 1, 2, 5, 4, 3})

	for _, idx := range []int{3, 2, 1, 2, 0} {
		_, err := la.RemoveAt(idx)
		require.NoError(t, err)
	}
	f.check(t, la, []string{"compG"}, []int{4})

	require.NoError(t, la.AddComponents(comps, indices))
	f.check(t, la, []string{"compA", "compC", "compB", "", "compG", "compH"}, []int{0, 1, 2, 5, 4, 3})

	comps = []Component{f.G, f.C, f.D}
	indices = make([]int, len(comps))
	require.NoError(t, la.RemoveComponents(comps, indices))
	assert.Equal(t, []int{4, 1, 3}, indices)
	f.check(t, la, []string{"compA", "compB", "compH"}, []int{0, 2, 3})
	require.NoError(t, la.AddComponents(comps, indices))
	f.check(t, la, []string{"compA", "compC", "compB", "", "compG", "compH"}, []int{0, 1, 2, 4, 5, 3})

	comps = []Component{f.A}
	indices = make([]int, 1)
	require.NoError(t, la.RemoveComponents(comps, indices))
	f.check(t, la, []string{"compC", "compB", "", "compG", "compH"}, []int{1, 2, 4, 5, 3})
	require.NoError(t, la.AddComponents(comps, indices))
	f.check(t, la, []string{"compA", "compC", "compB", "", "compG", "compH"}, []int{0, 1, 2, 4, 5, 3})

	comps = []Component{f.H}
	require.NoError(t, la.RemoveComponents(comps, indices))
	f.check(t, la, []string{"compA", "compC", "compB", "", "compG"}, []int{0, 1, 2, 4, 5})
	require.NoError(t, la.AddComponents(comps, indices))
	f.check(t, la, []string{"compA", "compC", "compB", "", "compG", "compH"}, []int{0, 1, 2, 4, 5, 3})

	lb := f.listB
	all := []Component{f.J, f.K, f.L, f.M, f.N, f.O}
	bNames := []string{"compJ", "compK", "compL", "", "", ""}
	require.NoError(t, lb.AddComponents(all, nil))
	f.check(t, lb, bNames, []int{0, 1, 2, 3, 4, 5})
	lb.RemoveAll()
	f.check(t, lb, []string{}, []int{})
	for _, c := range all {
		assert.Nil(t, c.Parent())
	}
	require.NoError(t, lb.AddComponents(all, nil))
	f.check(t, lb, bNames, []int{0, 1, 2, 3, 4, 5})

	require.NoError(t, lb.RemoveComponents(all, nil))
	f.check(t, lb, []string{}, []int{})
	require.NoError(t, lb.AddComponents(all, nil))
	f.check(t, lb, bNames, []int{5, 4, 3, 2, 1, 0})

	lb.ResetNumbersToIndices()
	la.ResetNumbersToIndices()
	f.check(t, lb, bNames, []int{0, 1, 2, 3, 4, 5})
	f.check(t, la, []string{"compA", "compC", "compB", "", "compG", "compH"}, []int{0, 1, 2, 3, 4, 5})

	require.NoError(t, la.SetZeroBasedNumbering(false))
	f.check(t, la, []string{"compA", "compC", "compB", "", "compG", "compH"}, []int{1, 2, 3, 4, 5, 6})
	require.NoError(t, la.SetZeroBasedNumbering(true))
	f.check(t, la, []string{"compA", "compC", "compB", "", "compG", "compH"}, []int{0, 1, 2, 3, 4, 5})

	la.RemoveAll()
	require.NoError(t, la.SetZeroBasedNumbering(false))
	mustAdd(la, f.G, f.H)
	f.check(t, la, []string{"compG", "compH"}, []int{1, 2})
	require.NoError(t, la.SetZeroBasedNumbering(true))
	f.check(t, la, []string{"compG", "compH"}, []int{0, 1})
}

// TestList_RandomRemoval adds and removes many unnamed components and
// checks the lookup invariants after each removal.
func TestList_RandomRemoval(t *testing.T) {
	f := newListFixture()
	la := f.listA

	for range 1000 {
		mustAdd(la, newLeaf(""))
	}
	for range 1000 {
		_, err := la.RemoveAt(0)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, la.Len())
	assert.Equal(t, 0, la.NumberLimit())

	for range 100 {
		mustAdd(la, newLeaf(""))
	}
	checkList(t, f.root, la)

	rng := rand.New(rand.NewPCG(1, 2))
	for la.Len() > 0 {
		n := rng.IntN(la.NumberLimit())
		c := la.ByNumber(n)
		if c == nil {
			continue
		}
		require.True(t, la.Remove(c))
		checkList(t, f.root, la)
		if rng.IntN(4) == 0 {
			mustAdd(la, newLeaf(""))
			checkList(t, f.root, la)
		}
	}
	assert.Equal(t, 0, la.NumberLimit())
}

// TestList_AddRollsBackOnConnectFailure verifies a failed connect hook
// leaves the list as it was.
func TestList_AddRollsBackOnConnectFailure(t *testing.T) {
	l := NewList("l")
	ok := newLeaf("ok")
	bad := newLeaf("bad")
	bad.failConnect = true

	mustAdd(l, ok)
	err := l.Add(bad)
	require.Error(t, err)
	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, errConnectRefused)

	assert.Equal(t, 1, l.Len())
	assert.Nil(t, bad.Parent())
	assert.Nil(t, l.Get("bad"))
	assert.Equal(t, 1, l.NumberLimit())
	assert.Equal(t, 1, bad.disconnects)

	bad.failConnect = false
	require.NoError(t, l.Add(bad))
	assert.Equal(t, 1, bad.Number())
}

// TestList_AddComponentsRollsBack verifies a batch is undone when one of
// its connect hooks fails.
func TestList_AddComponentsRollsBack(t *testing.T) {
	l := NewList("l")
	a, b, c, d := newLeaf("a"), newLeaf("b"), newLeaf("c"), newLeaf("d")
	mustAdd(l, a)
	c.failConnect = true

	err := l.AddComponents([]Component{b, c, d}, []int{0, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, errConnectRefused)
	assert.Equal(t, []string{"a"}, names(l))
	assert.Equal(t, []int{0}, numbers(l))
	assert.Nil(t, b.Parent())
	assert.Nil(t, c.Parent())
	assert.Nil(t, d.Parent())
	checkList(t, l, l)

	// each component reached by the connect pass is disconnected once
	assert.Equal(t, 1, b.disconnects)
	assert.Equal(t, 1, c.disconnects)
	assert.Equal(t, 0, d.disconnects)
	assert.Equal(t, 0, a.disconnects)
}

// TestList_AddComponentsValidation verifies bad batches are rejected
// before anything changes.
func TestList_AddComponentsValidation(t *testing.T) {
	owner := NewList("owner")
	owned := newLeaf("owned")
	mustAdd(owner, owned)

	tests := []struct {
		name    string
		comps   func() []Component
		indices []int
		wantErr error
	}{
		{
			name:    "index out of range",
			comps:   func() []Component { return []Component{newLeaf("x")} },
			indices: []int{5},
			wantErr: ErrIndexOutOfRange,
		},
		{
			name:    "index collision",
			comps:   func() []Component { return []Component{newLeaf("x"), newLeaf("y")} },
			indices: []int{1, 1},
			wantErr: ErrIndexCollision,
		},
		{
			name:    "already parented",
			comps:   func() []Component { return []Component{owned} },
			wantErr: ErrAlreadyParented,
		},
		{
			name:    "duplicate within batch",
			comps:   func() []Component { return []Component{newLeaf("x"), newLeaf("x")} },
			wantErr: ErrDuplicateName,
		},
		{
			name:    "duplicate with child",
			comps:   func() []Component { return []Component{newLeaf("a")} },
			wantErr: ErrDuplicateName,
		},
		{
			name:    "short index slice",
			comps:   func() []Component { return []Component{newLeaf("x"), newLeaf("y")} },
			indices: []int{0},
			wantErr: ErrIndexOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewList("l")
			mustAdd(l, newLeaf("a"))
			err := l.AddComponents(tt.comps(), tt.indices)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, []string{"a"}, names(l))
			assert.Equal(t, 1, l.NumberLimit())
		})
	}
}

// TestList_RemoveComponentsErrors verifies non-children are rejected.
func TestList_RemoveComponentsErrors(t *testing.T) {
	l := NewList("l")
	a := newLeaf("a")
	mustAdd(l, a)

	err := l.RemoveComponents([]Component{newLeaf("x")}, nil)
	assert.ErrorIs(t, err, ErrNotChild)
	err = l.RemoveComponents([]Component{a, a}, nil)
	assert.ErrorIs(t, err, ErrNotChild)
	assert.Equal(t, 1, l.Len())
}

// TestList_InsertAndSet verifies positional insert and replacement.
func TestList_InsertAndSet(t *testing.T) {
	l := NewList("l")
	a, b, c := newLeaf("a"), newLeaf("b"), newLeaf("c")
	mustAdd(l, a, c)

	require.NoError(t, l.Insert(1, b))
	assert.Equal(t, []string{"a", "b", "c"}, names(l))
	assert.Equal(t, []int{0, 2, 1}, numbers(l))
	checkList(t, l, l)

	x := newLeaf("b")
	prev, err := l.Set(1, x)
	require.NoError(t, err)
	assert.Same(t, b, prev)
	assert.Nil(t, b.Parent())
	assert.Equal(t, 2, x.Number())
	assert.Same(t, x, l.Get("b"))
	checkList(t, l, l)

	_, err = l.Set(0, newLeaf("c"))
	assert.ErrorIs(t, err, ErrDuplicateName)
	_, err = l.Set(7, newLeaf("z"))
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

// TestList_SetRollsBack verifies a failed replacement leaves the old
// child in place with its number, and a nil child is rejected.
func TestList_SetRollsBack(t *testing.T) {
	l := NewList("l")
	a, b, c := newLeaf("a"), newLeaf("b"), newLeaf("c")
	mustAdd(l, a, b, c)
	bad := newLeaf("x")
	bad.failConnect = true

	prev, err := l.Set(1, bad)
	assert.Nil(t, prev)
	assert.ErrorIs(t, err, errConnectRefused)
	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "set", se.Op)

	assert.Equal(t, []string{"a", "b", "c"}, names(l))
	assert.Equal(t, []int{0, 1, 2}, numbers(l))
	assert.Same(t, l.comp, b.Parent())
	assert.Equal(t, 1, b.disconnects)
	assert.Equal(t, 2, b.connects)
	assert.Nil(t, bad.Parent())
	assert.Nil(t, l.Get("x"))
	assert.Equal(t, 3, l.NumberLimit())
	checkList(t, l, l)

	_, err = l.Set(0, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyParented)
	assert.Contains(t, err.Error(), "nil component")
}

// TestList_NamePolicy verifies uniqueness rules and renames.
func TestList_NamePolicy(t *testing.T) {
	l := NewList("l")
	a, b := newLeaf("a"), newLeaf("b")
	mustAdd(l, a, b)

	err := b.SetName("a")
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Equal(t, "b", b.Name())

	assert.ErrorIs(t, b.SetName("9lives"), ErrInvalidName)
	assert.ErrorIs(t, b.SetName("null"), ErrInvalidName)

	require.NoError(t, b.SetName("bee"))
	assert.Same(t, b, l.Get("bee"))
	assert.Nil(t, l.Get("b"))

	loose := NewList("loose", WithPolicy(Policy{EnforceUniqueCompositeNames: true}))
	mustAdd(loose, newLeaf("same"), newLeaf("same"))
	assert.Equal(t, 2, loose.Len())
	err = loose.Add(NewList("sub"))
	require.NoError(t, err)
	err = loose.Add(NewList("sub"))
	assert.ErrorIs(t, err, ErrDuplicateName)
}

// TestList_Events verifies change events travel to ancestors and their
// observers.
func TestList_Events(t *testing.T) {
	root := NewList("root")
	sub := NewList("sub")
	mustAdd(root, sub)

	var got []ChangeEvent
	root.AddObserver(ObserverFunc(func(e ChangeEvent) { got = append(got, e) }))

	a := newLeaf("a")
	a.count = 3
	mustAdd(sub, a)
	require.Len(t, got, 1)
	se, ok := got[0].(StructureChangeEvent)
	require.True(t, ok)
	assert.Same(t, sub, se.Comp)
	assert.True(t, se.StateChanged)

	require.NoError(t, a.SetName("b"))
	require.Len(t, got, 2)
	ne, ok := got[1].(NameChangeEvent)
	require.True(t, ok)
	assert.Equal(t, "a", ne.OldName)
	assert.Same(t, a, sub.Get("b"))

	a.SetNavVisibility(NavHidden)
	require.Len(t, got, 3)
	pe, ok := got[2].(PropertyChangeEvent)
	require.True(t, ok)
	assert.Equal(t, "navpanelVisibility", pe.Property)

	a.SetNavVisibility(NavHidden)
	assert.Len(t, got, 3)
}

// TestList_ShortNames verifies aliases are registered in the parent.
func TestList_ShortNames(t *testing.T) {
	f := newListFixture()
	assert.Same(t, f.listA, f.root.Get("a"))
	assert.Same(t, f.listA, f.root.Get("listA"))

	mustAdd(f.listA, f.A, f.D)
	assert.Equal(t, "a/0", RelativePathName(f.root, f.A, true))
	assert.Equal(t, "listA/compA", RelativePathName(f.root, f.A, false))
	assert.Equal(t, "listA/1", RelativePathName(f.root, f.D, false))

	require.True(t, f.root.Remove(f.listA))
	assert.Nil(t, f.root.Get("a"))
}

// TestList_InheritedProperties verifies children in Inherited mode follow
// the nearest ancestor declaring the property.
func TestList_InheritedProperties(t *testing.T) {
	g := newGroup("g", 3)
	a, b := newLeaf("a"), newLeaf("b")
	b.SetPropertyMode("mass", props.Explicit)
	b.mass = 7

	mustAdd(&g.List, a, b)
	assert.Equal(t, 3.0, a.mass)
	assert.Equal(t, 7.0, b.mass)

	g.mass = 5
	UpdateInheritedProperties(g)
	assert.Equal(t, 5.0, a.mass)
	assert.Equal(t, 7.0, b.mass)
}
