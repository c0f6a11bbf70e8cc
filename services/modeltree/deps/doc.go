// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package deps computes which components must go when others are deleted
// and applies that deletion as one reversible edit.
//
// # Hard and Soft References
//
// A component that hard-references a deleted component is deleted too,
// transitively. A component that soft-references one is kept and asked to
// repair itself through UpdateReferences, recording enough to undo the
// repair.
//
// # Grouped Removal
//
// The delete list returned by FindDependentComponents is grouped by
// parent, in order of first appearance, so RemoveComponents can hand each
// parent its children in one bulk call. AddComponentsInReverse replays the
// groups backwards with the recorded indices, which restores every name,
// index and number.
//
// # Thread Safety
//
// Not safe for concurrent use. The tree must not change while a closure
// is computed or an edit is applied.
package deps
