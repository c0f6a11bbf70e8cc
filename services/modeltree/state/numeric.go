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

import "slices"

// Owner is a component that can write and read its numeric state.
//
// GetState appends the owner's values to the buffer; SetState must read
// back exactly what GetState wrote, in the same order. StateVersion
// changes whenever the layout of that data changes, for example when a
// particle stops being dynamic.
type Owner interface {
	StateVersion() int
	GetState(b *Buffer)
	SetState(b *Buffer)
}

// Frame locates one owner's data inside a NumericState.
type Frame struct {
	Owner        Owner
	Version      int
	IntOffset    int
	DoubleOffset int
}

// NumericState is a framed snapshot of several owners' state.
//
// Thread Safety: not safe for concurrent use.
type NumericState struct {
	Buffer
	frames []Frame
}

// New returns an empty snapshot.
func New() *NumericState {
	return &NumericState{}
}

// Capture returns a snapshot of owners, one frame each.
func Capture(owners []Owner) *NumericState {
	s := New()
	for _, o := range owners {
		s.GetState(o)
	}
	return s
}

// NumFrames returns the number of frames.
func (s *NumericState) NumFrames() int { return len(s.frames) }

// Frame returns frame k.
func (s *NumericState) Frame(k int) Frame { return s.frames[k] }

// Frames returns a copy of the frame table.
func (s *NumericState) Frames() []Frame { return slices.Clone(s.frames) }

// Clear discards all frames and data.
func (s *NumericState) Clear() {
	s.Reset()
	s.frames = s.frames[:0]
}

// frameEnd returns where frame k's ints and doubles stop.
func (s *NumericState) frameEnd(k int) (int, int) {
	if k+1 < len(s.frames) {
		return s.frames[k+1].IntOffset, s.frames[k+1].DoubleOffset
	}
	return len(s.ints), len(s.doubles)
}

// GetState appends a frame for o and lets o write its values into it.
func (s *NumericState) GetState(o Owner) {
	s.frames = append(s.frames, Frame{
		Owner:        o,
		Version:      o.StateVersion(),
		IntOffset:    len(s.ints),
		DoubleOffset: len(s.doubles),
	})
	o.GetState(&s.Buffer)
}

// SetState restores owners from their frames, in order.
//
// # Inputs
//
//   - owners: Must match the frames one to one. A frame that remembers
//     its owner must hold that same owner.
//
// # Outputs
//
//   - error: A *StateCompatibilityError when the frame count differs, a
//     frame belongs to another owner, or an owner reads a different
//     amount of data than its frame holds.
//
// # Description
//
// Each owner reads from the start of its own frame, so a short read in
// one frame does not shift the next one. Owners before the failing
// frame have already been restored when an error is returned.
func (s *NumericState) SetState(owners []Owner) error {
	if len(owners) != len(s.frames) {
		restoreFailures.Inc()
		return incompatible(-1, "snapshot has %d frames, %d owners given", len(s.frames), len(owners))
	}
	s.Rewind()
	for k, o := range owners {
		f := s.frames[k]
		if f.Owner != nil && f.Owner != o {
			restoreFailures.Inc()
			return incompatible(k, "frame was captured from a different owner")
		}
		s.seek(f.IntOffset, f.DoubleOffset)
		o.SetState(&s.Buffer)
		iend, dend := s.frameEnd(k)
		if err := s.Err(); err != nil || s.ioff != iend || s.doff != dend {
			restoreFailures.Inc()
			return incompatible(k, "owner read %d ints and %d doubles, frame holds %d and %d",
				s.ioff-f.IntOffset, s.doff-f.DoubleOffset, iend-f.IntOffset, dend-f.DoubleOffset)
		}
	}
	return nil
}

// Bind attaches owners to the frames of a decoded snapshot by position
// and stamps each frame with the owner's current version.
func (s *NumericState) Bind(owners []Owner) error {
	if len(owners) != len(s.frames) {
		return incompatible(-1, "snapshot has %d frames, %d owners given", len(s.frames), len(owners))
	}
	for k, o := range owners {
		s.frames[k].Owner = o
		s.frames[k].Version = o.StateVersion()
	}
	return nil
}

// Rebind returns a copy of s whose frames are handed to other owners.
//
// match maps each frame's owner to its replacement. A nil result leaves
// the frame without an owner, so GetInitialState recaptures whichever
// owner took its place. A matched frame is stamped with the new owner's
// version; match must only return owners whose layout fits the frame.
func (s *NumericState) Rebind(match func(Owner) Owner) *NumericState {
	out := &NumericState{
		Buffer: Buffer{ints: slices.Clone(s.ints), doubles: slices.Clone(s.doubles)},
		frames: slices.Clone(s.frames),
	}
	for k, f := range out.frames {
		var o Owner
		if f.Owner != nil {
			o = match(f.Owner)
		}
		out.frames[k].Owner = o
		if o != nil {
			out.frames[k].Version = o.StateVersion()
		}
	}
	return out
}

// copyFrame appends frame k of src, data included.
func (s *NumericState) copyFrame(src *NumericState, k int) {
	f := src.frames[k]
	iend, dend := src.frameEnd(k)
	s.frames = append(s.frames, Frame{
		Owner:        f.Owner,
		Version:      f.Version,
		IntOffset:    len(s.ints),
		DoubleOffset: len(s.doubles),
	})
	s.ints = append(s.ints, src.ints[f.IntOffset:iend]...)
	s.doubles = append(s.doubles, src.doubles[f.DoubleOffset:dend]...)
}

// GetInitialState rebuilds newState for owners, reusing oldState where
// it still applies.
//
// # Inputs
//
//   - newState: Cleared and refilled.
//   - oldState: May be nil. Not modified.
//   - owners: The current stateful components, in the order the new
//     snapshot should use.
//
// # Outputs
//
//   - error: ErrAliased when both states are the same object.
//
// # Description
//
// An owner whose frame exists in oldState with the owner's current
// version gets that frame copied over, so the saved values survive a
// reordering or the addition of other components. Any other owner is
// captured from its live state.
func GetInitialState(newState, oldState *NumericState, owners []Owner) error {
	if newState == oldState {
		return ErrAliased
	}
	newState.Clear()

	old := make(map[Owner]int)
	if oldState != nil {
		for k, f := range oldState.frames {
			if f.Owner != nil {
				old[f.Owner] = k
			}
		}
	}
	for _, o := range owners {
		if k, ok := old[o]; ok && oldState.frames[k].Version == o.StateVersion() {
			newState.copyFrame(oldState, k)
			realignedFrames.WithLabelValues("copied").Inc()
			continue
		}
		newState.GetState(o)
		realignedFrames.WithLabelValues("captured").Inc()
	}
	return nil
}

// Equal reports whether two snapshots hold the same frame layout and
// values. Owners and versions are not compared.
func (s *NumericState) Equal(o *NumericState) bool {
	if len(s.frames) != len(o.frames) {
		return false
	}
	for k, f := range s.frames {
		g := o.frames[k]
		if f.IntOffset != g.IntOffset || f.DoubleOffset != g.DoubleOffset {
			return false
		}
	}
	return s.equalData(&o.Buffer)
}
