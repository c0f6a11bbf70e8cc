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
	"fmt"

	"github.com/AleutianAI/modeltree/services/modeltree/textfmt"
)

// Sentinel errors for tree operations.
var (
	// ErrDuplicateName is returned when a name is already used by a
	// sibling and the uniqueness policy applies.
	ErrDuplicateName = errors.New("duplicate component name")

	// ErrDuplicateNumber is returned when an explicit number is taken.
	ErrDuplicateNumber = errors.New("duplicate component number")

	// ErrIndexOutOfRange is returned for an index outside the list.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrIndexCollision is returned when a bulk add places two components
	// at the same index.
	ErrIndexCollision = errors.New("index collision in bulk add")

	// ErrAlreadyParented is returned when adding a component that
	// already belongs to a list.
	ErrAlreadyParented = errors.New("component already has a parent")

	// ErrNotChild is returned when removing a component that does not
	// belong to the list.
	ErrNotChild = errors.New("component is not a child of this list")

	// ErrReferenceOutsideHierarchy is returned when a component references
	// something outside its reference-closed ancestor.
	ErrReferenceOutsideHierarchy = errors.New("reference outside containment hierarchy")

	// ErrMalformed is matched by every FormatError.
	ErrMalformed = errors.New("malformed model text")

	// ErrInvalidName is returned for names that break the naming rules.
	ErrInvalidName = errors.New("invalid component name")

	// ErrUnresolvedReference is matched by every ReferenceResolutionError.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrNoCommonAncestor is returned when components share no ancestor.
	ErrNoCommonAncestor = errors.New("components have no common ancestor")

	// ErrUnknownClass is returned by Registry.New for unregistered tags.
	ErrUnknownClass = errors.New("unknown class tag")

	// ErrBadPath is returned for syntactically invalid path names.
	ErrBadPath = errors.New("invalid path name")

	// ErrWrongType is returned when a resolved reference has the wrong
	// component type.
	ErrWrongType = errors.New("referenced component has wrong type")
)

// StructuralError reports a failed structural edit.
type StructuralError struct {
	// Op is the operation, such as "add" or "remove".
	Op string

	// Path is the diagnostic name of the component involved.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *StructuralError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// ReferenceResolutionError reports a path that could not be resolved
// during postscan.
type ReferenceResolutionError struct {
	Path     string
	Ancestor string
	Line     int

	// Err is an optional cause, such as ErrWrongType.
	Err error
}

func (e *ReferenceResolutionError) Error() string {
	msg := fmt.Sprintf("can't find reference to %s, ancestor=%s, line %d", e.Path, e.Ancestor, e.Line)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrUnresolvedReference and the optional cause.
func (e *ReferenceResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnresolvedReference}
	}
	return []error{ErrUnresolvedReference, e.Err}
}

// FormatError reports malformed input at a source line.
type FormatError struct {
	Line int
	Msg  string
	Err  error
}

func (e *FormatError) Error() string {
	if e.Err != nil && e.Msg == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Msg, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Is matches ErrMalformed.
func (e *FormatError) Is(target error) bool { return target == ErrMalformed }

func (e *FormatError) Unwrap() error { return e.Err }

func formatErrorf(line int, format string, args ...any) error {
	return &FormatError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// asFormatError lifts tokenizer errors into FormatErrors and passes typed
// tree errors through unchanged.
func asFormatError(tok *textfmt.Tokenizer, err error) error {
	if err == nil {
		return nil
	}
	var (
		fe *FormatError
		re *ReferenceResolutionError
		se *StructuralError
		sx *textfmt.SyntaxError
	)
	switch {
	case errors.As(err, &fe), errors.As(err, &re), errors.As(err, &se):
		return err
	case errors.As(err, &sx):
		return &FormatError{Line: sx.Line, Msg: sx.Msg, Err: textfmt.ErrSyntax}
	}
	line := 0
	if tok != nil {
		line = tok.Line()
	}
	return &FormatError{Line: line, Err: err}
}
