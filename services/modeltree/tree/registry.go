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
	"fmt"
	"maps"
	"slices"
)

// Factory creates a fresh, detached component.
type Factory func() Component

// Registry maps class tags to factories.
//
// Description:
//
//	The scanner looks up the tag written before each bracket block here.
//	A registry is built once at startup and then only read.
//
// Thread Safety: Safe for concurrent reads once registration is done.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry that already knows "ComponentList".
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.MustRegister("ComponentList", func() Component { return NewList("") })
	return r
}

// Register adds a factory under tag.
//
// # Outputs
//
//   - error: Non-nil if tag is empty or already registered.
func (r *Registry) Register(tag string, f Factory) error {
	if tag == "" || f == nil {
		return fmt.Errorf("register class: empty tag or nil factory")
	}
	if _, ok := r.factories[tag]; ok {
		return fmt.Errorf("register class: '%s' already registered", tag)
	}
	r.factories[tag] = f
	return nil
}

// MustRegister is Register that panics on error, for package setup.
func (r *Registry) MustRegister(tag string, f Factory) {
	if err := r.Register(tag, f); err != nil {
		panic(err)
	}
}

// New creates a component of class tag.
func (r *Registry) New(tag string) (Component, error) {
	f, ok := r.factories[tag]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownClass, tag)
	}
	return f(), nil
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag string) bool {
	_, ok := r.factories[tag]
	return ok
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	return slices.Sorted(maps.Keys(r.factories))
}
