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

// ChangeEvent is passed from a component up through its ancestors.
type ChangeEvent interface {
	// Source returns the component the event is about.
	Source() Component
}

// StructureChangeEvent reports added or removed children of Comp.
type StructureChangeEvent struct {
	Comp Component

	// StateChanged is true if any affected child has state.
	StateChanged bool
}

func (e StructureChangeEvent) Source() Component { return e.Comp }

// NameChangeEvent reports that Comp was renamed.
type NameChangeEvent struct {
	Comp    Component
	OldName string
}

func (e NameChangeEvent) Source() Component { return e.Comp }

// PropertyChangeEvent reports a changed property value.
type PropertyChangeEvent struct {
	Comp     Component
	Property string
}

func (e PropertyChangeEvent) Source() Component { return e.Comp }

// Observer receives events at a list. Observers run synchronously and
// must not mutate the tree.
type Observer interface {
	ComponentChanged(e ChangeEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e ChangeEvent)

func (f ObserverFunc) ComponentChanged(e ChangeEvent) { f(e) }

// NotifyChange sends e from c to its parent. Domain components use it
// after changing a property outside the text format.
func NotifyChange(c Component, e ChangeEvent) {
	c.base().notifyParent(e)
}
