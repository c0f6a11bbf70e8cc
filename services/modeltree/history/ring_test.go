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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRing_PushPop verifies stack order, wrap-around and dropping.
func TestRing_PushPop(t *testing.T) {
	r := NewRing[int](3)
	assert.Equal(t, 3, r.Cap())
	assert.False(t, r.Push(1))
	assert.False(t, r.Push(2))
	assert.False(t, r.Push(3))
	assert.True(t, r.Push(4))
	assert.Equal(t, []int{2, 3, 4}, r.Slice())
	assert.Equal(t, 1, r.Dropped())

	v, ok := r.PopNewest()
	assert.True(t, ok)
	assert.Equal(t, 4, v)
	v, _ = r.PeekNewest()
	assert.Equal(t, 3, v)

	assert.False(t, r.Push(5))
	assert.True(t, r.Push(6))
	assert.Equal(t, []int{3, 5, 6}, r.Slice())

	for _, want := range []int{6, 5, 3} {
		v, ok := r.PopNewest()
		assert.True(t, ok)
		assert.Equal(t, want, v)
	}
	_, ok = r.PopNewest()
	assert.False(t, ok)
	_, ok = r.PeekNewest()
	assert.False(t, ok)
	assert.Nil(t, r.Slice())

	r.Push(7)
	r.Clear()
	assert.Zero(t, r.Len())
	assert.Zero(t, r.Dropped())
}

// TestRing_CapacityOne verifies the degenerate ring keeps the newest item.
func TestRing_CapacityOne(t *testing.T) {
	r := NewRing[string](1)
	r.Push("a")
	assert.True(t, r.Push("b"))
	assert.Equal(t, []string{"b"}, r.Slice())
	assert.Equal(t, 100, NewRing[string](0).Cap())
}
