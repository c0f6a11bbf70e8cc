// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package numbering

import "errors"

// Sentinel errors for number allocation.
var (
	// ErrNumberInUse is returned when an explicit number is already
	// assigned to another entry.
	ErrNumberInUse = errors.New("number already in use")

	// ErrInvalidNumber is returned for negative numbers, or for number 0
	// while one-based numbering is active.
	ErrInvalidNumber = errors.New("invalid number")

	// ErrSlotZeroInUse is returned when switching to zero-based numbering
	// would shift an entry to number -1.
	ErrSlotZeroInUse = errors.New("cannot decrement numbers: slot 0 is in use")
)
