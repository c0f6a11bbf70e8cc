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
	"fmt"
	"slices"

	"github.com/AleutianAI/modeltree/services/modeltree/props"
	"github.com/AleutianAI/modeltree/services/modeltree/state"
	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

// Model is the root of a mechanical model. It is reference-closed and
// always holds three fixed sub-lists in this order: particles, springs
// and monitors.
//
// Thread Safety: Not safe for concurrent use.
type Model struct {
	tree.List

	damping   float64
	particles *tree.List
	springs   *tree.List
	monitors  *tree.List
}

var modelProps = props.NewList(nil,
	props.Float("damping", "default particle damping", 0,
		func(m *Model) float64 { return m.damping },
		func(m *Model, v float64) { m.damping = v }),
)

func newFixedList(name, short, class string) *tree.List {
	l := tree.NewList(name, tree.WithShortName(short), tree.WithElementClass(class))
	l.SetFixed(true)
	return l
}

// NewModel creates an empty model.
func NewModel(name string, opts ...tree.ListOption) *Model {
	m := &Model{}
	m.InitList(m, name, append([]tree.ListOption{tree.WithReferencesClosed()}, opts...)...)
	m.particles = newFixedList("particles", "p", "Particle")
	m.springs = newFixedList("springs", "s", "Spring")
	m.monitors = newFixedList("monitors", "m", "Monitor")
	for _, l := range []*tree.List{m.particles, m.springs, m.monitors} {
		if err := m.Add(l); err != nil {
			panic(fmt.Sprintf("mech: adding %s: %v", l.Name(), err))
		}
	}
	return m
}

func (m *Model) ClassTag() string        { return "Model" }
func (m *Model) Properties() *props.List { return modelProps }

// Particles returns the particle list.
func (m *Model) Particles() *tree.List { return m.particles }

// Springs returns the spring list.
func (m *Model) Springs() *tree.List { return m.springs }

// Monitors returns the monitor list.
func (m *Model) Monitors() *tree.List { return m.monitors }

// Damping returns the model's default particle damping.
func (m *Model) Damping() float64 { return m.damping }

// SetDamping changes the default damping and pushes it to every particle
// whose damping is inherited.
func (m *Model) SetDamping(v float64) {
	m.damping = v
	tree.UpdateInheritedProperties(m)
	tree.NotifyChange(m, tree.PropertyChangeEvent{Comp: m, Property: "damping"})
}

// AddParticle appends p to the particle list.
func (m *Model) AddParticle(p *Particle) error { return m.particles.Add(p) }

// AddSpring appends s to the spring list.
func (m *Model) AddSpring(s *Spring) error { return m.springs.Add(s) }

// AddMonitor appends mon to the monitor list.
func (m *Model) AddMonitor(mon *Monitor) error { return m.monitors.Add(mon) }

// Particle returns the particle with the given name or number, or nil.
func (m *Model) Particle(nameOrNumber string) *Particle {
	p, _ := m.particles.Get(nameOrNumber).(*Particle)
	return p
}

// Check verifies that every reference in the model resolves inside it.
func (m *Model) Check() error {
	return tree.CheckReferenceContainmentIn(m, m)
}

// =============================================================================
// State
// =============================================================================

// Owners returns the model's state owners in particle order.
func (m *Model) Owners() []state.Owner {
	owners := make([]state.Owner, 0, m.particles.Len())
	for _, c := range m.particles.Children() {
		if p, ok := c.(*Particle); ok {
			owners = append(owners, p)
		}
	}
	return owners
}

// CaptureState snapshots every particle.
func (m *Model) CaptureState() *state.NumericState {
	return state.Capture(m.Owners())
}

// RestoreState writes s back into the particles.
func (m *Model) RestoreState(s *state.NumericState) error {
	return s.SetState(m.Owners())
}

// RealignState builds a snapshot for the current particles from old,
// keeping saved values for particles whose state layout is unchanged.
func (m *Model) RealignState(old *state.NumericState) (*state.NumericState, error) {
	next := state.New()
	if err := state.GetInitialState(next, old, m.Owners()); err != nil {
		return nil, err
	}
	return next, nil
}

// RebindState hands the frames of old, captured from another model, to
// the particles of m with the same name, or the same number when the old
// particle is unnamed. Frames whose particle is gone or changed its
// dynamic flag keep no owner, so RealignState recaptures them.
func (m *Model) RebindState(old *state.NumericState) *state.NumericState {
	return old.Rebind(func(o state.Owner) state.Owner {
		prev, ok := o.(*Particle)
		if !ok {
			return nil
		}
		var c tree.Component
		if prev.Name() != "" {
			c = m.particles.ByName(prev.Name())
		} else {
			c = m.particles.ByNumber(prev.Number())
		}
		p, ok := c.(*Particle)
		if !ok || p.IsDynamic() != prev.IsDynamic() {
			return nil
		}
		return p
	})
}

// CarryState moves the live state of prev, an earlier load of the same
// model, into m. Matching particles keep their values; the rest keep
// what m was loaded with.
func (m *Model) CarryState(prev *Model) error {
	next, err := m.RealignState(m.RebindState(prev.CaptureState()))
	if err != nil {
		return err
	}
	return m.RestoreState(next)
}

// =============================================================================
// Registry
// =============================================================================

// NewClasses returns a registry that knows ComponentList and every class
// in this package.
func NewClasses() *tree.Registry {
	r := tree.NewRegistry()
	r.MustRegister("Model", func() tree.Component { return NewModel("") })
	r.MustRegister("Particle", func() tree.Component { return NewParticle("", 1) })
	r.MustRegister("Spring", func() tree.Component { return NewSpring("", nil, nil, 1) })
	r.MustRegister("Monitor", func() tree.Component { return NewMonitor("") })
	return r
}

func removeFirst(refs []tree.Component, c tree.Component) []tree.Component {
	if i := slices.Index(refs, c); i >= 0 {
		return slices.Delete(refs, i, i+1)
	}
	return refs
}
