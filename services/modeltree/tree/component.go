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
	"strings"

	"github.com/AleutianAI/modeltree/services/modeltree/props"
	"github.com/AleutianAI/modeltree/services/modeltree/textfmt"
)

// =============================================================================
// Capability Interfaces
// =============================================================================

// Component is a node of the hierarchy.
//
// Implementations embed Base, which supplies every method. Types override
// the hooks they need: ClassTag, HasState, the reference accessors,
// ConnectToHierarchy and the ScanItem/PostscanItem/WriteItems triple.
type Component interface {
	Name() string
	SetName(name string) error
	Number() int
	Parent() Composite
	ClassTag() string
	HasState() bool

	IsSelected() bool
	SetSelected(bool)
	IsMarked() bool
	SetMarked(bool)
	IsFixed() bool
	SetFixed(bool)
	IsWritable() bool
	SetWritable(bool)
	NavVisibility() NavVisibility
	SetNavVisibility(NavVisibility)
	Phase() Phase

	// ConnectToHierarchy is called when the component, or an ancestor of
	// it, is attached below hcomp. DisconnectFromHierarchy is its inverse
	// and must tolerate a component that was never connected.
	ConnectToHierarchy(hcomp Composite) error
	DisconnectFromHierarchy(hcomp Composite)

	// HardReferences are components whose removal forces removal of this
	// component. SoftReferences only trigger UpdateReferences.
	HardReferences() []Component
	SoftReferences() []Component
	UpdateReferences(undo bool, info *UndoInfo)

	Properties() *props.List

	ScanItem(s *ScanState) (bool, error)
	PostscanItem(q *TokenQueue, ancestor Composite) (bool, error)
	WriteItems(w *WriteState, ancestor Composite) error

	base() *Base
}

// Composite is a component with children.
type Composite interface {
	Component

	NumComponents() int
	Child(idx int) Component
	Get(nameOrNumber string) Component
	ByNumber(n int) Component
	IndexOf(c Component) int
	NumberLimit() int

	// ReferencesClosed reports whether every reference made inside this
	// composite resolves inside it.
	ReferencesClosed() bool

	// Policy returns the naming policy applied to children.
	Policy() Policy

	// ComponentChanged receives events from children.
	ComponentChanged(e ChangeEvent)
}

// MutableComposite is a composite whose children can be edited in bulk.
type MutableComposite interface {
	Composite

	AddComponents(comps []Component, indices []int) error
	RemoveComponents(comps []Component, indices []int) error
}

// shortNamer is implemented by composites with an alias used in compact
// path names.
type shortNamer interface {
	ShortName() string
}

// Policy controls name uniqueness and path compaction for a list.
type Policy struct {
	// EnforceUniqueNames requires every named child to have a unique name.
	EnforceUniqueNames bool

	// EnforceUniqueCompositeNames requires unique names for composite
	// children only. It matters when EnforceUniqueNames is false.
	EnforceUniqueCompositeNames bool

	// CompactPaths makes written reference paths use short names and
	// numbers.
	CompactPaths bool
}

// DefaultPolicy returns unique names for all children and full paths.
func DefaultPolicy() Policy {
	return Policy{EnforceUniqueNames: true}
}

// MustHaveUniqueName reports whether c's name must be unique under p.
func (p Policy) MustHaveUniqueName(c Component) bool {
	if p.EnforceUniqueNames {
		return true
	}
	_, composite := c.(Composite)
	return composite && p.EnforceUniqueCompositeNames
}

// =============================================================================
// Flags and Phases
// =============================================================================

// Flags holds component state bits.
type Flags uint16

const (
	FlagSelected Flags = 1 << iota
	FlagMarked
	FlagFixed
	FlagNonWritable
	flagNavAlways
	flagNavHidden
)

// NavVisibility controls how a navigation panel shows a component.
type NavVisibility int

const (
	NavVisible NavVisibility = iota
	NavAlways
	NavHidden
)

var navNames = []string{"VISIBLE", "ALWAYS", "HIDDEN"}

func (v NavVisibility) String() string {
	if v < 0 || int(v) >= len(navNames) {
		return "UNKNOWN"
	}
	return navNames[v]
}

// ParseNavVisibility parses VISIBLE, ALWAYS or HIDDEN.
func ParseNavVisibility(s string) (NavVisibility, error) {
	for i, n := range navNames {
		if strings.EqualFold(s, n) {
			return NavVisibility(i), nil
		}
	}
	return NavVisible, fmt.Errorf("unknown navpanel visibility '%s'", s)
}

// Phase is the position of a component in the load lifecycle.
type Phase int

const (
	// PhaseNew is a constructed component that was never scanned.
	PhaseNew Phase = iota

	// PhaseScanning is set while its bracket block is being read.
	PhaseScanning

	// PhaseScanned means the text is consumed but references are pending.
	PhaseScanned

	// PhasePostscanning is set while its tokens are being replayed.
	PhasePostscanning

	// PhaseAttached means references are resolved.
	PhaseAttached
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseScanning:
		return "scanning"
	case PhaseScanned:
		return "scanned"
	case PhasePostscanning:
		return "postscanning"
	case PhaseAttached:
		return "attached"
	default:
		return "unknown"
	}
}

// =============================================================================
// Base
// =============================================================================

// Base carries the state shared by all components.
//
// Description:
//
//	Base implements every Component method with neutral behaviour. The
//	embedding type passes itself to Init so Base can call overridden hooks
//	(Properties, ClassTag) and report itself in change events.
//
// Thread Safety: Not safe for concurrent use.
type Base struct {
	self   Component
	name   string
	number int
	parent Composite
	flags  Flags
	phase  Phase
	modes  map[string]props.Mode
}

// Init binds b to the component that embeds it. It must be called once
// before the component is used.
func (b *Base) Init(self Component) {
	b.self = self
	b.number = -1
}

func (b *Base) base() *Base { return b }

// Name returns the name, or "" if unnamed.
func (b *Base) Name() string { return b.name }

// SetName validates and assigns a name. An empty name clears it.
//
// # Inputs
//
//   - name: New name, or "".
//
// # Outputs
//
//   - error: ErrInvalidName, or ErrDuplicateName when a sibling already
//     uses the name and the parent's policy requires uniqueness.
//
// # Description
//
// The parent receives a NameChangeEvent so it can re-key its name map.
func (b *Base) SetName(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if name == b.name {
		return nil
	}
	if name != "" && b.parent != nil && b.parent.Policy().MustHaveUniqueName(b.self) {
		if other := b.parent.Get(name); other != nil && other != b.self {
			return &StructuralError{Op: "rename", Path: DiagnosticName(b.self), Err: fmt.Errorf("%w: '%s'", ErrDuplicateName, name)}
		}
	}
	old := b.name
	b.name = name
	b.notifyParent(NameChangeEvent{Comp: b.self, OldName: old})
	return nil
}

// Number returns the number assigned by the parent list, or -1.
func (b *Base) Number() int { return b.number }

// Parent returns the owning composite, or nil.
func (b *Base) Parent() Composite { return b.parent }

// ClassTag returns the tag written before the component's bracket block.
func (b *Base) ClassTag() string { return "Component" }

// HasState reports whether the component owns simulation state.
func (b *Base) HasState() bool { return false }

func (b *Base) flag(f Flags) bool { return b.flags&f != 0 }

func (b *Base) setFlag(f Flags, on bool) {
	if on {
		b.flags |= f
	} else {
		b.flags &^= f
	}
}

func (b *Base) IsSelected() bool    { return b.flag(FlagSelected) }
func (b *Base) SetSelected(on bool) { b.setFlag(FlagSelected, on) }
func (b *Base) IsMarked() bool      { return b.flag(FlagMarked) }
func (b *Base) SetMarked(on bool)   { b.setFlag(FlagMarked, on) }
func (b *Base) IsFixed() bool       { return b.flag(FlagFixed) }
func (b *Base) SetFixed(on bool)    { b.setFlag(FlagFixed, on) }
func (b *Base) IsWritable() bool    { return !b.flag(FlagNonWritable) }
func (b *Base) SetWritable(on bool) { b.setFlag(FlagNonWritable, !on) }

// Phase returns the load lifecycle phase.
func (b *Base) Phase() Phase { return b.phase }

func (b *Base) setPhase(p Phase) { b.phase = p }

func (b *Base) notifyParent(e ChangeEvent) {
	if b.parent != nil {
		b.parent.ComponentChanged(e)
	}
}

// NavVisibility returns the navigation panel visibility.
func (b *Base) NavVisibility() NavVisibility {
	switch {
	case b.flag(flagNavAlways):
		return NavAlways
	case b.flag(flagNavHidden):
		return NavHidden
	default:
		return NavVisible
	}
}

// SetNavVisibility changes the visibility and emits a PropertyChangeEvent
// when it differs.
func (b *Base) SetNavVisibility(v NavVisibility) {
	old := b.flags
	b.setFlag(flagNavAlways, v == NavAlways)
	b.setFlag(flagNavHidden, v == NavHidden)
	if b.flags != old {
		b.notifyParent(PropertyChangeEvent{Comp: b.self, Property: "navpanelVisibility"})
	}
}

// ConnectToHierarchy does nothing by default.
func (b *Base) ConnectToHierarchy(Composite) error { return nil }

// DisconnectFromHierarchy does nothing by default.
func (b *Base) DisconnectFromHierarchy(Composite) {}

// HardReferences returns nil by default.
func (b *Base) HardReferences() []Component { return nil }

// SoftReferences returns nil by default.
func (b *Base) SoftReferences() []Component { return nil }

// UpdateReferences does nothing by default.
func (b *Base) UpdateReferences(bool, *UndoInfo) {}

// Properties returns the property list; Base has none beyond name and
// navigation visibility, which are handled directly.
func (b *Base) Properties() *props.List { return nil }

// PropertyMode implements props.ModeHost. Inheritable properties start
// Inherited.
func (b *Base) PropertyMode(name string) props.Mode {
	if m, ok := b.modes[name]; ok {
		return m
	}
	return props.Inherited
}

// SetPropertyMode implements props.ModeHost.
func (b *Base) SetPropertyMode(name string, mode props.Mode) {
	if b.modes == nil {
		b.modes = make(map[string]props.Mode)
	}
	b.modes[name] = mode
}

// =============================================================================
// Default Text Format Hooks
// =============================================================================

// ScanItem reads one attribute: name, navpanelVisibility or a property of
// the component. It returns false, with the token pushed back, for
// anything else.
//
// An inheritable property may be written as "prop:Inherited" to select
// its mode instead of a value.
func (b *Base) ScanItem(s *ScanState) (bool, error) {
	tok := s.Tok
	if _, err := tok.Next(); err != nil {
		return false, err
	}
	if tok.Kind() != textfmt.TokenWord {
		tok.PushBack()
		return false, nil
	}
	switch word := tok.Value(); word {
	case "name":
		if err := tok.ScanChar('='); err != nil {
			return false, err
		}
		name, err := tok.ScanWordOrQuoted()
		if err != nil {
			return false, err
		}
		if err := b.self.SetName(name); err != nil {
			return false, &FormatError{Line: tok.Line(), Err: err}
		}
		return true, nil
	case "navpanelVisibility":
		if err := tok.ScanChar('='); err != nil {
			return false, err
		}
		w, err := tok.ScanWord()
		if err != nil {
			return false, err
		}
		v, err := ParseNavVisibility(w)
		if err != nil {
			return false, &FormatError{Line: tok.Line(), Err: err}
		}
		b.self.SetNavVisibility(v)
		return true, nil
	default:
		info := b.self.Properties().Get(word)
		if info == nil {
			tok.PushBack()
			return false, nil
		}
		return true, scanProperty(tok, info, b.self)
	}
}

func scanProperty(tok *textfmt.Tokenizer, info *props.Info, host Component) error {
	if _, err := tok.Next(); err != nil {
		return err
	}
	switch {
	case tok.Is('='):
		if err := info.Scan(tok, host); err != nil {
			return &FormatError{Line: tok.Line(), Err: err}
		}
		return nil
	case tok.Is(':') && info.Inheritable:
		w, err := tok.ScanWord()
		if err != nil {
			return err
		}
		mode, err := props.ParseMode(w)
		if err != nil {
			return &FormatError{Line: tok.Line(), Err: err}
		}
		host.base().SetPropertyMode(info.Name, mode)
		return nil
	default:
		return tok.Errorf("expected '=' after %s, got %s", info.Name, tok.Describe())
	}
}

// isAttribute reports whether word names an attribute handled by
// Base.ScanItem for c.
func isAttribute(c Component, word string) bool {
	return word == "name" || word == "navpanelVisibility" || c.Properties().Get(word) != nil
}

// PostscanItem consumes nothing by default.
func (b *Base) PostscanItem(*TokenQueue, Composite) (bool, error) { return false, nil }

// WriteItems writes the name, a non-default navigation visibility and
// every property that ShouldWrite selects. An inactive inheritable
// property is written as "prop:Inactive".
func (b *Base) WriteItems(w *WriteState, _ Composite) error {
	if b.name != "" {
		w.W.Println("name=" + textfmt.Quote(b.name))
	}
	if v := b.NavVisibility(); v != NavVisible {
		w.W.Println("navpanelVisibility=" + v.String())
	}
	for _, info := range b.self.Properties().All() {
		if info.Mode(b.self) == props.Inactive {
			w.W.Println(info.Name + ":" + props.Inactive.String())
			continue
		}
		if !info.ShouldWrite(b.self) {
			continue
		}
		s, err := info.Format(b.self)
		if err != nil {
			return fmt.Errorf("write %s: %w", info.Name, err)
		}
		w.W.Println(info.Name + "=" + s)
	}
	return w.W.Err()
}
