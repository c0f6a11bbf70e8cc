// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mech provides the concrete component classes of a mass-spring
// model: a reference-closed Model holding particles, springs and
// monitors.
//
// Springs hard-reference their two particles, so deleting a particle
// deletes its springs. Monitors soft-reference whatever they observe and
// drop targets that leave the model. Particles own numeric state and can
// be captured into a state.NumericState.
//
// Use NewClasses for a registry that can load every class here:
//
//	c, err := tree.LoadComponent(ctx, r, mech.NewClasses())
package mech
