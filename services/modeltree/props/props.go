// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package props describes named, typed component attributes so the text
// format can get, set, scan and write them without knowing the concrete
// component type.
//
// Each component class builds one List at package init from typed
// constructors such as Float and Vector. A List may extend a parent List,
// so a subclass inherits the base attributes.
//
// # Inheritable Properties
//
// An inheritable property has a mode. In Inherited mode its value is copied
// from the nearest ancestor that has a property of the same name in
// Explicit mode. Setting the value through the text format switches the
// mode to Explicit. Modes live on the host, which must implement ModeHost.
//
// # Thread Safety
//
// Info and List are immutable after construction and safe to share.
package props

import (
	"errors"
	"fmt"
	"slices"

	"github.com/AleutianAI/modeltree/services/modeltree/textfmt"
)

// Sentinel errors for property access.
var (
	// ErrWrongHost is returned when a property is applied to a host of the
	// wrong type.
	ErrWrongHost = errors.New("property applied to wrong host type")

	// ErrWrongType is returned when Set receives a value of the wrong type.
	ErrWrongType = errors.New("wrong value type for property")

	// ErrNotFound is returned when a property name is unknown.
	ErrNotFound = errors.New("property not found")
)

// Mode is the propagation mode of an inheritable property.
type Mode int

const (
	// Explicit means the host's own value is authoritative.
	Explicit Mode = iota

	// Inherited means the value is copied from the nearest explicit
	// ancestor.
	Inherited

	// Inactive means the value is neither written nor propagated.
	Inactive
)

// String returns the mode name used in the text format.
func (m Mode) String() string {
	switch m {
	case Explicit:
		return "Explicit"
	case Inherited:
		return "Inherited"
	case Inactive:
		return "Inactive"
	default:
		return "Unknown"
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "Explicit":
		return Explicit, nil
	case "Inherited":
		return Inherited, nil
	case "Inactive":
		return Inactive, nil
	}
	return Explicit, fmt.Errorf("unknown property mode '%s'", s)
}

// ModeHost stores modes for inheritable properties.
type ModeHost interface {
	PropertyMode(name string) Mode
	SetPropertyMode(name string, mode Mode)
}

// Info describes one property.
type Info struct {
	Name        string
	Help        string
	Inheritable bool

	get       func(host any) (any, error)
	set       func(host any, v any) error
	scan      func(tok *textfmt.Tokenizer) (any, error)
	format    func(v any) string
	isDefault func(v any) bool
}

// Get returns the property value of host.
func (i *Info) Get(host any) (any, error) {
	return i.get(host)
}

// Set assigns v to host.
func (i *Info) Set(host any, v any) error {
	return i.set(host, v)
}

// Scan reads a value from tok and assigns it to host. An inheritable
// property becomes Explicit.
func (i *Info) Scan(tok *textfmt.Tokenizer, host any) error {
	v, err := i.scan(tok)
	if err != nil {
		return fmt.Errorf("property %s: %w", i.Name, err)
	}
	if err := i.set(host, v); err != nil {
		return err
	}
	if i.Inheritable {
		if mh, ok := host.(ModeHost); ok {
			mh.SetPropertyMode(i.Name, Explicit)
		}
	}
	return nil
}

// Format returns the text form of host's value.
func (i *Info) Format(host any) (string, error) {
	v, err := i.get(host)
	if err != nil {
		return "", err
	}
	return i.format(v), nil
}

// IsDefault reports whether host's value equals the default.
func (i *Info) IsDefault(host any) bool {
	v, err := i.get(host)
	if err != nil {
		return true
	}
	return i.isDefault(v)
}

// Mode returns the host's mode for this property. Non-inheritable
// properties are always Explicit.
func (i *Info) Mode(host any) Mode {
	if !i.Inheritable {
		return Explicit
	}
	if mh, ok := host.(ModeHost); ok {
		return mh.PropertyMode(i.Name)
	}
	return Explicit
}

// ShouldWrite reports whether the property must appear in output: explicit
// inheritable properties always, plain properties when not default.
func (i *Info) ShouldWrite(host any) bool {
	if i.Inheritable {
		return i.Mode(host) == Explicit
	}
	return !i.IsDefault(host)
}

// =============================================================================
// List
// =============================================================================

// List is an ordered set of properties for one component class.
type List struct {
	infos  []*Info
	byName map[string]*Info
}

// NewList creates a List holding parent's properties followed by infos.
// An info with the same name as a parent entry replaces it in place.
func NewList(parent *List, infos ...*Info) *List {
	l := &List{byName: make(map[string]*Info)}
	if parent != nil {
		l.infos = slices.Clone(parent.infos)
		for _, info := range parent.infos {
			l.byName[info.Name] = info
		}
	}
	for _, info := range infos {
		if _, dup := l.byName[info.Name]; dup {
			idx := slices.IndexFunc(l.infos, func(x *Info) bool { return x.Name == info.Name })
			l.infos[idx] = info
		} else {
			l.infos = append(l.infos, info)
		}
		l.byName[info.Name] = info
	}
	return l
}

// Get looks up a property by name, or returns nil.
func (l *List) Get(name string) *Info {
	if l == nil {
		return nil
	}
	return l.byName[name]
}

// All returns properties in declaration order.
func (l *List) All() []*Info {
	if l == nil {
		return nil
	}
	return l.infos
}

// Len returns the number of properties.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.infos)
}
