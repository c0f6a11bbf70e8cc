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

	"github.com/AleutianAI/modeltree/services/modeltree/props"
)

var errConnectRefused = errors.New("connect refused")

// leaf is a plain component with a few properties and optional
// references.
type leaf struct {
	Base
	mass  float64
	pos   []float64
	count int

	hard        []Component
	soft        []Component
	failConnect bool
	connects    int
	disconnects int
}

var leafProps = props.NewList(nil,
	props.InheritableFloat("mass", "mass", 1,
		func(c *leaf) float64 { return c.mass },
		func(c *leaf, v float64) { c.mass = v }),
	props.Vector("pos", "position", 2,
		func(c *leaf) []float64 { return c.pos },
		func(c *leaf, v []float64) { c.pos = v }),
	props.Int("count", "counter", 0,
		func(c *leaf) int { return c.count },
		func(c *leaf, v int) { c.count = v }),
)

func newLeaf(name string) *leaf {
	c := &leaf{mass: 1, pos: make([]float64, 2)}
	c.Init(c)
	if name != "" {
		if err := c.SetName(name); err != nil {
			panic(err)
		}
	}
	return c
}

func (c *leaf) ClassTag() string            { return "Leaf" }
func (c *leaf) Properties() *props.List     { return leafProps }
func (c *leaf) HardReferences() []Component { return c.hard }
func (c *leaf) SoftReferences() []Component { return c.soft }
func (c *leaf) HasState() bool              { return c.count > 0 }

func (c *leaf) DisconnectFromHierarchy(Composite) { c.disconnects++ }

func (c *leaf) ConnectToHierarchy(Composite) error {
	if c.failConnect {
		return errConnectRefused
	}
	c.connects++
	return nil
}

func (c *leaf) UpdateReferences(undo bool, info *UndoInfo) {
	UpdateReferenceList(c, &c.soft, undo, info)
}

// refLeaf holds a hard target and soft others read from the text format.
type refLeaf struct {
	Base
	target Component
	others []Component
	prop   PropertyRef
}

func newRefLeaf(name string) *refLeaf {
	c := &refLeaf{}
	c.Init(c)
	if name != "" {
		_ = c.SetName(name)
	}
	return c
}

func (c *refLeaf) ClassTag() string { return "RefLeaf" }

func (c *refLeaf) HardReferences() []Component {
	if c.target == nil {
		return nil
	}
	return []Component{c.target}
}

func (c *refLeaf) SoftReferences() []Component { return c.others }

func (c *refLeaf) UpdateReferences(undo bool, info *UndoInfo) {
	UpdateReferenceList(c, &c.others, undo, info)
}

func (c *refLeaf) ScanItem(s *ScanState) (bool, error) {
	if ok, err := ScanAndStoreReference(s, "target"); ok || err != nil {
		return ok, err
	}
	if ok, err := ScanAndStorePropertyPath(s, "watch"); ok || err != nil {
		return ok, err
	}
	n, err := ScanAndStoreReferences(s, "others")
	if err != nil {
		return false, err
	}
	if n >= 0 {
		return true, nil
	}
	return c.Base.ScanItem(s)
}

func (c *refLeaf) PostscanItem(q *TokenQueue, ancestor Composite) (bool, error) {
	var err error
	switch {
	case PostscanAttributeName(q, "target"):
		c.target, err = PostscanReference(q, ancestor)
	case PostscanAttributeName(q, "watch"):
		c.prop, err = PostscanPropertyRef(q, ancestor, nil)
	case PostscanAttributeName(q, "others"):
		c.others, err = PostscanReferences(q, ancestor)
	default:
		return c.Base.PostscanItem(q, ancestor)
	}
	return err == nil, err
}

func (c *refLeaf) WriteItems(ws *WriteState, ancestor Composite) error {
	if err := c.Base.WriteItems(ws, ancestor); err != nil {
		return err
	}
	if c.target != nil {
		ws.W.Println("target=" + WritePathName(ancestor, c.target, ws.Compact))
	}
	if c.prop.Info != nil {
		ws.W.Println("watch=" + PropertyPathName(ancestor, c.prop, ws.Compact))
	}
	if len(c.others) > 0 {
		ws.W.Print("others=[ ")
		for _, o := range c.others {
			ws.W.Print(WritePathName(ancestor, o, ws.Compact) + " ")
		}
		ws.W.Println("]")
	}
	return ws.W.Err()
}

// group is a list with an inheritable mass default for its children.
type group struct {
	List
	mass float64
}

var groupProps = props.NewList(nil,
	props.InheritableFloat("mass", "default mass", 1,
		func(g *group) float64 { return g.mass },
		func(g *group, v float64) { g.mass = v }),
)

func newGroup(name string, mass float64, opts ...ListOption) *group {
	g := &group{mass: mass}
	g.InitList(g, name, opts...)
	g.SetPropertyMode("mass", props.Explicit)
	return g
}

func (g *group) ClassTag() string        { return "Group" }
func (g *group) Properties() *props.List { return groupProps }

func testRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("Leaf", func() Component { return newLeaf("") })
	r.MustRegister("RefLeaf", func() Component { return newRefLeaf("") })
	r.MustRegister("Group", func() Component { return newGroup("", 1) })
	return r
}

func mustAdd(l *List, comps ...Component) {
	for _, c := range comps {
		if err := l.Add(c); err != nil {
			panic(err)
		}
	}
}

func names(l *List) []string {
	out := make([]string, 0, l.Len())
	for _, c := range l.Children() {
		out = append(out, c.Name())
	}
	return out
}

func numbers(l *List) []int {
	out := make([]int, 0, l.Len())
	for _, c := range l.Children() {
		out = append(out, c.Number())
	}
	return out
}
