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
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

// mechFixture is a reference-closed model with parts, links that
// hard-reference parts, and a watcher that soft-references parts.
type mechFixture struct {
	model, parts, links, watchers *tree.List
	p0, p1, p2, l01, l12, chain   *node
	w                             *node
}

func newMechFixture() *mechFixture {
	f := &mechFixture{
		model:    tree.NewList("model", tree.WithReferencesClosed()),
		parts:    tree.NewList("parts"),
		links:    tree.NewList("links"),
		watchers: tree.NewList("watchers"),
		p0:       newNode("p0"),
		p1:       newNode("p1"),
		p2:       newNode("p2"),
	}
	f.l01 = newNode("l01", f.p0, f.p1)
	f.l12 = newNode("l12", f.p1, f.p2)
	f.chain = newNode("chain", f.l01)
	f.w = newNode("w")
	f.w.soft = list(f.p1, f.p2)
	mustAdd(f.parts, f.p0, f.p1, f.p2)
	mustAdd(f.links, f.l01, f.l12, f.chain)
	mustAdd(f.watchers, f.w)
	mustAdd(f.model, f.parts, f.links, f.watchers)
	return f
}

// TestFindDependentComponents_Leaf verifies transitive hard dependents
// come first and soft referrers are collected for update.
func TestFindDependentComponents_Leaf(t *testing.T) {
	f := newMechFixture()

	del, update, err := FindDependentComponents(context.Background(), list(f.p1))
	require.NoError(t, err)
	assert.Equal(t, list(f.chain, f.l01, f.l12, f.p1), del)
	assert.Equal(t, list(f.w), update)

	del, update, err = FindDependentComponents(context.Background(), list(f.p0))
	require.NoError(t, err)
	assert.Equal(t, list(f.chain, f.l01, f.p0), del)
	assert.Empty(t, update)

	del, update, err = FindDependentComponents(context.Background(), list(f.w))
	require.NoError(t, err)
	assert.Equal(t, list(f.w), del)
	assert.Empty(t, update)
}

// TestFindDependentComponents_Composite verifies a composite seed pulls in
// the dependents of all its descendants and prunes them.
func TestFindDependentComponents_Composite(t *testing.T) {
	f := newMechFixture()

	del, update, err := FindDependentComponents(context.Background(), list(f.parts, f.p0))
	require.NoError(t, err)
	assert.Equal(t, list(f.chain, f.l01, f.l12, f.parts), del)
	assert.Equal(t, list(f.w), update)
}

// TestFindDependentComponents_PrunesInsideDeleted verifies soft referrers
// and dependents inside a deleted subtree are dropped.
func TestFindDependentComponents_PrunesInsideDeleted(t *testing.T) {
	f := newMechFixture()
	note := newNode("note")
	note.soft = list(f.l12)
	mustAdd(f.links, note)

	del, update, err := FindDependentComponents(context.Background(), list(f.links))
	require.NoError(t, err)
	assert.Equal(t, list(f.links), del)
	assert.Empty(t, update)
}

// TestFindDependentComponents_GroupsByParent verifies siblings end up
// contiguous with parents in first-seen order.
func TestFindDependentComponents_GroupsByParent(t *testing.T) {
	f := newMechFixture()
	extra := newNode("extra", f.l01, f.w)
	mustAdd(f.parts, extra)

	del, _, err := FindDependentComponents(context.Background(), list(f.w, f.p0))
	require.NoError(t, err)
	// walk order is extra, w, chain, l01, p0
	assert.Equal(t, list(extra, f.p0, f.w, f.chain, f.l01), del)
}

// TestFindDependentComponents_Cycle verifies cycles are logged and the
// walk terminates.
func TestFindDependentComponents_Cycle(t *testing.T) {
	root := tree.NewList("root", tree.WithReferencesClosed())
	a, b, self := newNode("a"), newNode("b"), newNode("self")
	a.hard = list(b)
	b.hard = list(a)
	self.hard = list(self)
	mustAdd(root, a, b, self)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	del, _, err := FindDependentComponents(context.Background(), list(a), WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, list(b, a), del)
	assert.Contains(t, buf.String(), "reference cycle detected")
	assert.Contains(t, buf.String(), "root/a")

	buf.Reset()
	del, _, err = FindDependentComponents(context.Background(), list(self), WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, list(self), del)
	assert.Contains(t, buf.String(), "root/self")
}

// TestFindDependentComponents_Errors covers seeds without a common
// ancestor and the empty case.
func TestFindDependentComponents_Errors(t *testing.T) {
	_, _, err := FindDependentComponents(context.Background(), list(newNode("x"), newNode("y")))
	assert.ErrorIs(t, err, tree.ErrNoCommonAncestor)

	del, update, err := FindDependentComponents(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, del)
	assert.Nil(t, update)

	_, err = groupByParent(list(newNode("x"), newNode("y")))
	assert.ErrorIs(t, err, ErrMultipleRoots)
}

// TestFindDependentComponents_Root verifies a root seed yields only the
// root, which cannot be removed from a parent.
func TestFindDependentComponents_Root(t *testing.T) {
	f := newMechFixture()

	del, update, err := FindDependentComponents(context.Background(), list(f.model))
	require.NoError(t, err)
	assert.Equal(t, list(f.model), del)
	assert.Empty(t, update)

	_, err = RemoveComponents(del, nil)
	assert.ErrorIs(t, err, ErrNotMutable)
}
