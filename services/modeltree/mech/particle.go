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
	"math"
	"slices"

	"github.com/AleutianAI/modeltree/services/modeltree/props"
	"github.com/AleutianAI/modeltree/services/modeltree/state"
	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

// Particle is a point mass. A dynamic particle carries position and
// velocity as state; a static one carries only its dynamic flag.
type Particle struct {
	tree.Base

	mass     float64
	damping  float64
	pos      []float64
	vel      []float64
	dynamic  bool
	version  int
	backRefs []tree.Component
}

var particleProps = props.NewList(nil,
	props.Float("mass", "particle mass", 1,
		func(p *Particle) float64 { return p.mass },
		func(p *Particle, v float64) { p.mass = v }),
	props.InheritableFloat("damping", "velocity damping", 0,
		func(p *Particle) float64 { return p.damping },
		func(p *Particle, v float64) { p.damping = v }),
	props.Vector("position", "position", 3,
		func(p *Particle) []float64 { return p.pos },
		func(p *Particle, v []float64) { copy(p.pos, v) }),
	props.Vector("velocity", "velocity", 3,
		func(p *Particle) []float64 { return p.vel },
		func(p *Particle, v []float64) { copy(p.vel, v) }),
	props.Bool("dynamic", "whether the particle is free to move", true,
		func(p *Particle) bool { return p.dynamic },
		func(p *Particle, v bool) { p.SetDynamic(v) }),
)

// NewParticle creates a dynamic particle at pos, which may be shorter
// than three values. An invalid name is dropped.
func NewParticle(name string, mass float64, pos ...float64) *Particle {
	p := &Particle{
		mass:    mass,
		pos:     make([]float64, 3),
		vel:     make([]float64, 3),
		dynamic: true,
	}
	p.Init(p)
	copy(p.pos, pos)
	if name != "" {
		_ = p.SetName(name)
	}
	return p
}

func (p *Particle) ClassTag() string        { return "Particle" }
func (p *Particle) Properties() *props.List { return particleProps }
func (p *Particle) HasState() bool          { return true }

func (p *Particle) Mass() float64            { return p.mass }
func (p *Particle) SetMass(m float64)        { p.mass = m }
func (p *Particle) Damping() float64         { return p.damping }
func (p *Particle) Position() []float64      { return slices.Clone(p.pos) }
func (p *Particle) Velocity() []float64      { return slices.Clone(p.vel) }
func (p *Particle) SetPosition(x ...float64) { copy(p.pos, x) }
func (p *Particle) SetVelocity(v ...float64) { copy(p.vel, v) }
func (p *Particle) IsDynamic() bool          { return p.dynamic }

// SetDamping sets an explicit damping that no longer follows the model.
func (p *Particle) SetDamping(d float64) {
	p.damping = d
	p.SetPropertyMode("damping", props.Explicit)
}

// SetDynamic switches between dynamic and static. The state layout
// changes with it, so the state version is bumped.
func (p *Particle) SetDynamic(on bool) {
	if on == p.dynamic {
		return
	}
	p.dynamic = on
	p.version++
	tree.NotifyChange(p, tree.PropertyChangeEvent{Comp: p, Property: "dynamic"})
}

// Distance returns the distance to q.
func (p *Particle) Distance(q *Particle) float64 {
	var sum float64
	for i := range p.pos {
		d := p.pos[i] - q.pos[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// BackReferences returns the components that hold a hard reference to p
// and are connected to it.
func (p *Particle) BackReferences() []tree.Component { return slices.Clone(p.backRefs) }

func (p *Particle) addBackRef(c tree.Component)    { p.backRefs = append(p.backRefs, c) }
func (p *Particle) removeBackRef(c tree.Component) { p.backRefs = removeFirst(p.backRefs, c) }

// StateVersion implements state.Owner.
func (p *Particle) StateVersion() int { return p.version }

// GetState implements state.Owner.
func (p *Particle) GetState(b *state.Buffer) {
	b.PutBool(p.dynamic)
	if p.dynamic {
		b.PutDoubles(p.pos...)
		b.PutDoubles(p.vel...)
	}
}

// SetState implements state.Owner. The layout follows the stored flag,
// not the current one.
func (p *Particle) SetState(b *state.Buffer) {
	if b.GetBool() {
		b.GetDoubles(p.pos)
		b.GetDoubles(p.vel)
	}
}
