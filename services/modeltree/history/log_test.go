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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/modeltree/services/modeltree/deps"
	"github.com/AleutianAI/modeltree/services/modeltree/mech"
	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

// counterEdit adds delta to a shared total.
type counterEdit struct {
	total   *int
	delta   int
	failing bool
}

func (e *counterEdit) Apply() error {
	if e.failing {
		return errors.New("apply failed")
	}
	*e.total += e.delta
	return nil
}

func (e *counterEdit) Undo() error {
	*e.total -= e.delta
	return nil
}

func (e *counterEdit) Description() string { return "add" }

// TestLog_UndoRedo verifies the undo and redo stacks.
func TestLog_UndoRedo(t *testing.T) {
	total := 0
	l := New(2)

	require.NoError(t, l.Do(&counterEdit{total: &total, delta: 1}))
	require.NoError(t, l.Do(&counterEdit{total: &total, delta: 10}))
	require.NoError(t, l.Do(&counterEdit{total: &total, delta: 100}))
	assert.Equal(t, 111, total)
	assert.Len(t, l.Descriptions(), 2)

	_, err := l.Undo()
	require.NoError(t, err)
	_, err = l.Undo()
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.False(t, l.CanUndo())
	_, err = l.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)

	e, err := l.Redo()
	require.NoError(t, err)
	assert.Equal(t, 10, e.(*counterEdit).delta)
	assert.Equal(t, 11, total)
	assert.True(t, l.CanRedo())

	require.NoError(t, l.Do(&counterEdit{total: &total, delta: 1000}))
	assert.False(t, l.CanRedo())
	_, err = l.Redo()
	assert.ErrorIs(t, err, ErrNothingToRedo)

	assert.Error(t, l.Do(&counterEdit{total: &total, failing: true}))
	assert.Len(t, l.Descriptions(), 2)

	l.Clear()
	assert.False(t, l.CanUndo())
}

// TestLog_RemoveEdit verifies a dependency removal can be undone and
// redone through the log.
func TestLog_RemoveEdit(t *testing.T) {
	m := mech.NewModel("m")
	p0, p1 := mech.NewParticle("p0", 1), mech.NewParticle("p1", 1, 1)
	require.NoError(t, m.AddParticle(p0))
	require.NoError(t, m.AddParticle(p1))
	require.NoError(t, m.AddSpring(mech.NewSpring("s", p0, p1, 1)))

	edit, err := deps.PlanRemoval(context.Background(), []tree.Component{p0})
	require.NoError(t, err)

	l := New(10)
	require.NoError(t, l.Do(edit))
	assert.Equal(t, []string{"remove 2 components"}, l.Descriptions())
	assert.Equal(t, 1, m.Particles().Len())
	assert.Zero(t, m.Springs().Len())

	_, err = l.Undo()
	require.NoError(t, err)
	assert.Equal(t, 2, m.Particles().Len())
	assert.Equal(t, 1, m.Springs().Len())
	assert.Equal(t, 0, p0.Number())

	_, err = l.Redo()
	require.NoError(t, err)
	assert.Nil(t, p0.Parent())
}
