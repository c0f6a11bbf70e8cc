// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tree implements the component hierarchy: identity-bearing
// components, the numbered List container, path names, change events and
// the two-phase text format.
//
// # Components
//
// Every component embeds Base and calls Init with itself before use:
//
//	p := &Particle{}
//	p.Init(p)
//
// A component becomes a composite by implementing Composite. The only
// composite shipped here is List; domain containers embed it and call
// InitList instead.
//
// # Numbers and Indices
//
// An index is the transient position of a child in its List. A number is
// the child's stable identity among its siblings, assigned on add and
// freed on remove. Freed numbers are reused most recent first. After a
// removal the number→index table is re-derived lazily on the next query.
//
// # Text Format
//
// Loading runs in two passes. Scan reads the bracketed text, creates
// children and records every reference path as a StringToken on a
// TokenQueue. Postscan replays the queue once the whole subtree exists,
// resolves the paths against the nearest reference-closed ancestor and
// connects each new child to the hierarchy. Forward references therefore
// need no lookahead.
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent use. A tree and the
// tokenizer that feeds it belong to one goroutine. Observers are called
// synchronously and must not mutate the tree.
package tree
