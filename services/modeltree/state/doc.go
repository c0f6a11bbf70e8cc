// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package state captures the numeric state of components into flat
// buffers for checkpointing and restore.
//
// # Frames
//
// A NumericState holds one Buffer and an ordered list of frames. Each
// frame records the component that wrote it, that component's state
// version at capture time and where its ints and doubles begin. A frame
// ends where the next one begins.
//
// # Realignment
//
// When the set of stateful components changes, GetInitialState builds a
// new snapshot in the new component order. Frames whose owner and version
// still match are copied from the old snapshot; everything else is
// captured fresh.
//
// # Wire Format
//
// MarshalBinary writes little-endian int32 counts and offsets, int32
// ints and float64 doubles. Owners are not encoded; Bind reattaches them
// by position after UnmarshalBinary.
package state
