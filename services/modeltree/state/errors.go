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
	"errors"
	"fmt"
)

var (
	// ErrIncompatible is matched by every StateCompatibilityError.
	ErrIncompatible = errors.New("incompatible state")

	// ErrUnderflow is recorded when an owner reads past the end of a
	// buffer.
	ErrUnderflow = errors.New("state buffer underflow")

	// ErrCorrupt is returned when encoded state cannot be decoded.
	ErrCorrupt = errors.New("corrupt state encoding")

	// ErrAliased is returned when a snapshot is realigned into itself.
	ErrAliased = errors.New("new and old state are the same object")
)

// StateCompatibilityError reports a snapshot that does not fit the
// components it is applied to. Frame is -1 when the mismatch is not
// tied to one frame.
type StateCompatibilityError struct {
	Frame int
	Msg   string
}

func (e *StateCompatibilityError) Error() string {
	if e.Frame < 0 {
		return "incompatible state: " + e.Msg
	}
	return fmt.Sprintf("incompatible state in frame %d: %s", e.Frame, e.Msg)
}

func (e *StateCompatibilityError) Unwrap() error { return ErrIncompatible }

func incompatible(frame int, format string, args ...any) error {
	return &StateCompatibilityError{Frame: frame, Msg: fmt.Sprintf(format, args...)}
}
