// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is one line of a rendered hierarchy.
type Node struct {
	// Number is shown before the class. Negative hides it.
	Number int

	// Class is the component's class tag.
	Class string

	// Name may be empty.
	Name string

	// Detail is extra text shown after the name.
	Detail string

	Children []*Node
}

// Add appends child and returns it.
func (n *Node) Add(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

func (p *Printer) label(n *Node) string {
	var parts []string
	if n.Number >= 0 {
		parts = append(parts, p.style(Styles.Muted, strconv.Itoa(n.Number)))
	}
	parts = append(parts, p.style(Styles.Class, n.Class))
	if n.Name != "" {
		parts = append(parts, p.style(Styles.Name, n.Name))
	}
	if n.Detail != "" {
		parts = append(parts, p.style(Styles.Muted, n.Detail))
	}
	return strings.Join(parts, " ")
}

// Tree prints root and its descendants with box-drawing connectors. In
// machine mode each node is one line of depth, number, class, name and
// detail separated by tabs.
func (p *Printer) Tree(root *Node) {
	if p.mode == ModeMachine {
		p.machineTree(root, 0)
		return
	}
	fmt.Fprintln(p.w, p.label(root))
	p.branches(root, "")
}

func (p *Printer) branches(n *Node, prefix string) {
	for i, c := range n.Children {
		connector, next := "├── ", "│   "
		if i == len(n.Children)-1 {
			connector, next = "└── ", "    "
		}
		fmt.Fprintln(p.w, p.style(Styles.Muted, prefix+connector)+p.label(c))
		p.branches(c, prefix+next)
	}
}

func (p *Printer) machineTree(n *Node, depth int) {
	fmt.Fprintf(p.w, "%d\t%d\t%s\t%s\t%s\n", depth, n.Number, n.Class, n.Name, n.Detail)
	for _, c := range n.Children {
		p.machineTree(c, depth+1)
	}
}
