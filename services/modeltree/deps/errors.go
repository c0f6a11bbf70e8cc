// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deps

import "errors"

var (
	// ErrMultipleRoots is returned when a closure contains more than one
	// parentless component.
	ErrMultipleRoots = errors.New("multiple root components in delete list")

	// ErrNotMutable is returned when a component's parent cannot be
	// edited in bulk.
	ErrNotMutable = errors.New("parent is not a mutable composite")

	// ErrLengthMismatch is returned when component, index and parent
	// slices disagree in length.
	ErrLengthMismatch = errors.New("component and parent lists have different sizes")

	// ErrEditState is returned when an edit is applied twice or undone
	// before it was applied.
	ErrEditState = errors.New("edit is not in the expected state")
)
