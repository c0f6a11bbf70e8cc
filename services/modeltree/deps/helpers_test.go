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
	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

// node is a component with explicit hard and soft references.
type node struct {
	tree.Base
	hard []tree.Component
	soft []tree.Component
}

func newNode(name string, hard ...tree.Component) *node {
	n := &node{hard: hard}
	n.Init(n)
	if name != "" {
		if err := n.SetName(name); err != nil {
			panic(err)
		}
	}
	return n
}

func (n *node) ClassTag() string                 { return "Node" }
func (n *node) HardReferences() []tree.Component { return n.hard }
func (n *node) SoftReferences() []tree.Component { return n.soft }

func (n *node) UpdateReferences(undo bool, info *tree.UndoInfo) {
	tree.UpdateReferenceList(n, &n.soft, undo, info)
}

func mustAdd(l *tree.List, comps ...tree.Component) {
	for _, c := range comps {
		if err := l.Add(c); err != nil {
			panic(err)
		}
	}
}

func names(l *tree.List) []string {
	out := make([]string, 0, l.Len())
	for _, c := range l.Children() {
		out = append(out, c.Name())
	}
	return out
}

func numbers(l *tree.List) []int {
	out := make([]int, 0, l.Len())
	for _, c := range l.Children() {
		out = append(out, c.Number())
	}
	return out
}

func list(cs ...tree.Component) []tree.Component { return cs }
