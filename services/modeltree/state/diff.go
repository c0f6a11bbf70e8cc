// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package state

import (
	"fmt"

	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

// Namer names an owner in a Mismatch.
type Namer func(Owner) string

// DefaultNamer uses the component path when the owner is a tree
// component and the Go type otherwise.
func DefaultNamer(o Owner) string {
	if o == nil {
		return "unbound"
	}
	if c, ok := o.(tree.Component); ok {
		return tree.PathName(c)
	}
	return fmt.Sprintf("%T", o)
}

// Mismatch describes the first difference between two snapshots.
type Mismatch struct {
	// Frame is -1 when the frame counts differ.
	Frame int
	Owner string
	// Field is "frames", "ints", "doubles", "int" or "double".
	Field string
	// Index is the position within the frame for "int" and "double".
	Index int
	A, B  any
}

func (m *Mismatch) String() string {
	switch m.Field {
	case "frames":
		return fmt.Sprintf("frame count %v != %v", m.A, m.B)
	case "ints", "doubles":
		return fmt.Sprintf("frame %d (%s): %s count %v != %v", m.Frame, m.Owner, m.Field, m.A, m.B)
	default:
		return fmt.Sprintf("frame %d (%s): %s[%d] %v != %v", m.Frame, m.Owner, m.Field, m.Index, m.A, m.B)
	}
}

// Diff returns the first difference between a and b, or nil when they
// are Equal. Frames are compared in order: sizes first, then ints, then
// doubles. namer may be nil.
func Diff(a, b *NumericState, namer Namer) *Mismatch {
	if namer == nil {
		namer = DefaultNamer
	}
	if len(a.frames) != len(b.frames) {
		return &Mismatch{Frame: -1, Field: "frames", A: len(a.frames), B: len(b.frames)}
	}
	for k, fa := range a.frames {
		fb := b.frames[k]
		owner := fa.Owner
		if owner == nil {
			owner = fb.Owner
		}
		m := &Mismatch{Frame: k, Owner: namer(owner)}

		aie, ade := a.frameEnd(k)
		bie, bde := b.frameEnd(k)
		ai, bi := a.ints[fa.IntOffset:aie], b.ints[fb.IntOffset:bie]
		ad, bd := a.doubles[fa.DoubleOffset:ade], b.doubles[fb.DoubleOffset:bde]

		switch {
		case len(ai) != len(bi):
			m.Field, m.A, m.B = "ints", len(ai), len(bi)
			return m
		case len(ad) != len(bd):
			m.Field, m.A, m.B = "doubles", len(ad), len(bd)
			return m
		}
		for i := range ai {
			if ai[i] != bi[i] {
				m.Field, m.Index, m.A, m.B = "int", i, int(ai[i]), int(bi[i])
				return m
			}
		}
		for i := range ad {
			if !sameDouble(ad[i], bd[i]) {
				m.Field, m.Index, m.A, m.B = "double", i, ad[i], bd[i]
				return m
			}
		}
	}
	return nil
}
