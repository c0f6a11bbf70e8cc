// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package numbering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assign allocates a number and maps it to idx.
func assign(m *Map[string], idx int) int {
	n := m.Allocate()
	m.SetIndex(n, idx)
	return n
}

// TestAllocate_Sequential verifies fresh numbers are issued in order.
func TestAllocate_Sequential(t *testing.T) {
	m := New[string]()
	for i := 0; i < 5; i++ {
		assert.Equal(t, i, assign(m, i))
	}
	assert.Equal(t, 5, m.NumberLimit())
	assert.Equal(t, 3, m.Index(3))
	assert.Equal(t, -1, m.Index(7))
}

// TestFree_LIFOReuse verifies the most recently freed number comes back first.
func TestFree_LIFOReuse(t *testing.T) {
	m := New[string]()
	for i := 0; i < 6; i++ {
		assign(m, i)
	}
	m.Free(3)
	m.Free(4)

	assert.Equal(t, 4, m.Allocate())
	assert.Equal(t, 3, m.Allocate())
	assert.Equal(t, 6, m.Allocate())
}

// TestFree_ShrinksLimit verifies freeing the top number keeps the limit tight.
func TestFree_ShrinksLimit(t *testing.T) {
	m := New[string]()
	for i := 0; i < 6; i++ {
		assign(m, i)
	}
	m.Free(4)
	assert.Equal(t, 6, m.NumberLimit())
	m.Free(3)
	m.Free(5)
	assert.Equal(t, 3, m.NumberLimit())

	// 5 was freed last, so it is reissued and raises the limit again
	assert.Equal(t, 5, m.Allocate())
	assert.Equal(t, 6, m.NumberLimit())
}

// TestReserve_InvalidatesAndRebuilds verifies out-of-sequence numbers force
// a rebuild that puts the lowest gap on top.
func TestReserve_InvalidatesAndRebuilds(t *testing.T) {
	m := New[string]()
	m.SetIndex(assign(m, 0), 0)
	require.NoError(t, m.Reserve(4))
	m.SetIndex(4, 1)
	assert.Equal(t, 5, m.NumberLimit())
	assert.Equal(t, 0, m.Rebuilds())

	assert.Equal(t, 1, m.Allocate())
	assert.Equal(t, 1, m.Rebuilds())
	m.SetIndex(1, 2)
	assert.Equal(t, 2, m.Allocate())
}

// TestReserve_NextFreeKeepsCache verifies the expected number does not
// trigger a rebuild.
func TestReserve_NextFreeKeepsCache(t *testing.T) {
	m := New[string]()
	require.NoError(t, m.Reserve(0))
	m.SetIndex(0, 0)
	require.NoError(t, m.Reserve(1))
	m.SetIndex(1, 1)
	m.Free(0)
	require.NoError(t, m.Reserve(0))
	m.SetIndex(0, 0)
	assign(m, 2)
	assert.Equal(t, 0, m.Rebuilds())
}

func TestReserve_Errors(t *testing.T) {
	m := New[string]()
	assign(m, 0)
	assert.ErrorIs(t, m.Reserve(0), ErrNumberInUse)
	assert.ErrorIs(t, m.Reserve(-1), ErrInvalidNumber)

	one := New[string](WithOneBased())
	assert.ErrorIs(t, one.Reserve(0), ErrInvalidNumber)
}

// TestRebuildHook verifies the hook fires on each rebuild.
func TestRebuildHook(t *testing.T) {
	calls := 0
	m := New[string](WithRebuildHook(func() { calls++ }))
	m.CollectFreeNumbers()
	m.CollectFreeNumbers()
	assert.Equal(t, 2, calls)
}

// TestSetOneBased verifies the whole table shifts and slot 0 blocks the
// switch back.
func TestSetOneBased(t *testing.T) {
	m := New[string]()
	for i := 0; i < 3; i++ {
		assign(m, i)
	}
	shifted, err := m.SetOneBased(true)
	require.NoError(t, err)
	assert.True(t, shifted)
	assert.Equal(t, -1, m.Index(0))
	assert.Equal(t, 0, m.Index(1))
	assert.Equal(t, 4, m.NumberLimit())

	shifted, err = m.SetOneBased(true)
	require.NoError(t, err)
	assert.False(t, shifted)

	shifted, err = m.SetOneBased(false)
	require.NoError(t, err)
	assert.True(t, shifted)
	assert.Equal(t, 0, m.Index(0))
	assert.Equal(t, 3, m.NumberLimit())

	m.SetIndex(0, 0)
	one := New[string]()
	one.SetIndex(0, 0)
	one.oneBased = true
	_, err = one.SetOneBased(false)
	assert.ErrorIs(t, err, ErrSlotZeroInUse)
}

// TestOneBased_NeverIssuesZero verifies number 0 stays reserved.
func TestOneBased_NeverIssuesZero(t *testing.T) {
	m := New[string](WithOneBased())
	assert.Equal(t, 1, m.NumberLimit())
	assert.Equal(t, 1, assign(m, 0))
	assert.Equal(t, 2, assign(m, 1))
	m.Free(2)
	m.Free(1)
	assert.Equal(t, 1, m.NumberLimit())
	m.CollectFreeNumbers()
	assert.Equal(t, 1, m.Allocate())
}

func TestResetNumbersToIndices(t *testing.T) {
	m := New[string]()
	m.SetIndex(5, 0)
	m.SetIndex(2, 1)
	m.ResetNumbersToIndices(2)
	assert.Equal(t, 0, m.Index(0))
	assert.Equal(t, 1, m.Index(1))
	assert.Equal(t, 2, m.NumberLimit())
	assert.Equal(t, 2, m.Allocate())
}

func TestClearIndices(t *testing.T) {
	m := New[string]()
	assign(m, 0)
	assign(m, 1)
	m.ClearIndices()
	assert.False(t, m.InUse(0))
	m.SetIndex(0, 1)
	m.SetIndex(1, 0)
	assert.Equal(t, 1, m.Index(0))
	assert.Equal(t, 2, m.Allocate())
}

func TestNames(t *testing.T) {
	m := New[string]()
	m.AddName("a", "compA")
	m.AddName("", "ignored")
	got, ok := m.ByName("a")
	require.True(t, ok)
	assert.Equal(t, "compA", got)

	m.RemoveName("a", "other")
	_, ok = m.ByName("a")
	assert.True(t, ok)

	m.RemoveName("a", "compA")
	_, ok = m.ByName("a")
	assert.False(t, ok)

	m.AddName("b", "compB")
	m.Clear()
	assert.Equal(t, 0, m.NameCount())
	assert.Equal(t, 0, m.NumberLimit())
}
