// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mech

import (
	"github.com/AleutianAI/modeltree/services/modeltree/props"
	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

// Spring joins two particles. Both ends are hard references.
type Spring struct {
	tree.Base

	a, b       *Particle
	stiffness  float64
	restLength float64
}

var springProps = props.NewList(nil,
	props.Float("stiffness", "spring stiffness", 1,
		func(s *Spring) float64 { return s.stiffness },
		func(s *Spring, v float64) { s.stiffness = v }),
	props.Float("restLength", "rest length", 0,
		func(s *Spring) float64 { return s.restLength },
		func(s *Spring, v float64) { s.restLength = v }),
)

// NewSpring creates a spring between a and b. Either end may be nil
// until the spring is scanned.
func NewSpring(name string, a, b *Particle, stiffness float64) *Spring {
	s := &Spring{a: a, b: b, stiffness: stiffness}
	s.Init(s)
	if name != "" {
		_ = s.SetName(name)
	}
	return s
}

func (s *Spring) ClassTag() string        { return "Spring" }
func (s *Spring) Properties() *props.List { return springProps }

// Ends returns the two particles.
func (s *Spring) Ends() (*Particle, *Particle) { return s.a, s.b }

// Length returns the current distance between the ends, or 0 if either
// is missing.
func (s *Spring) Length() float64 {
	if s.a == nil || s.b == nil {
		return 0
	}
	return s.a.Distance(s.b)
}

// Tension returns stiffness times the stretch beyond the rest length.
func (s *Spring) Tension() float64 {
	return s.stiffness * (s.Length() - s.restLength)
}

func (s *Spring) ends() []*Particle {
	var out []*Particle
	for _, p := range []*Particle{s.a, s.b} {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// HardReferences returns the non-nil ends.
func (s *Spring) HardReferences() []tree.Component {
	var refs []tree.Component
	for _, p := range s.ends() {
		refs = append(refs, p)
	}
	return refs
}

// ConnectToHierarchy registers s with each end it reaches through hcomp.
func (s *Spring) ConnectToHierarchy(hcomp tree.Composite) error {
	for _, p := range s.ends() {
		if tree.AreConnectedVia(s, p, hcomp) {
			p.addBackRef(s)
		}
	}
	return nil
}

// DisconnectFromHierarchy undoes ConnectToHierarchy.
func (s *Spring) DisconnectFromHierarchy(hcomp tree.Composite) {
	for _, p := range s.ends() {
		if tree.AreConnectedVia(s, p, hcomp) {
			p.removeBackRef(s)
		}
	}
}

func (s *Spring) ScanItem(st *tree.ScanState) (bool, error) {
	for _, attr := range []string{"a", "b"} {
		if ok, err := tree.ScanAndStoreReference(st, attr); ok || err != nil {
			return ok, err
		}
	}
	return s.Base.ScanItem(st)
}

func (s *Spring) PostscanItem(q *tree.TokenQueue, ancestor tree.Composite) (bool, error) {
	var err error
	switch {
	case tree.PostscanAttributeName(q, "a"):
		s.a, err = tree.PostscanReferenceAs[*Particle](q, ancestor)
	case tree.PostscanAttributeName(q, "b"):
		s.b, err = tree.PostscanReferenceAs[*Particle](q, ancestor)
	default:
		return s.Base.PostscanItem(q, ancestor)
	}
	return err == nil, err
}

func (s *Spring) WriteItems(ws *tree.WriteState, ancestor tree.Composite) error {
	if err := s.Base.WriteItems(ws, ancestor); err != nil {
		return err
	}
	if s.a != nil {
		ws.W.Println("a=" + tree.WritePathName(ancestor, s.a, ws.Compact))
	}
	if s.b != nil {
		ws.W.Println("b=" + tree.WritePathName(ancestor, s.b, ws.Compact))
	}
	return ws.W.Err()
}
