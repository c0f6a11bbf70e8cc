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
	"bytes"
	"encoding/binary"
	"fmt"
)

// MarshalBinary encodes the snapshot.
//
// Layout, all little-endian:
//
//	[frameCount int32]
//	[intOffset int32][doubleOffset int32] * frameCount
//	[intCount int32][doubleCount int32]
//	[int int32] * intCount
//	[double float64] * doubleCount
func (s *NumericState) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.Grow(4*(3+2*len(s.frames)+len(s.ints)) + 8*len(s.doubles))

	header := make([]int32, 0, 3+2*len(s.frames))
	header = append(header, int32(len(s.frames)))
	for _, f := range s.frames {
		header = append(header, int32(f.IntOffset), int32(f.DoubleOffset))
	}
	header = append(header, int32(len(s.ints)), int32(len(s.doubles)))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, s.ints); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, s.doubles); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces the snapshot with decoded data. Frames come
// back without owners; call Bind before SetState.
func (s *NumericState) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	var nframes int32
	if err := binary.Read(r, binary.LittleEndian, &nframes); err != nil {
		return fmt.Errorf("%w: reading frame count: %v", ErrCorrupt, err)
	}
	if nframes < 0 || int64(nframes)*8 > int64(r.Len()) {
		return fmt.Errorf("%w: frame count %d does not fit %d bytes", ErrCorrupt, nframes, r.Len())
	}
	offsets := make([]int32, 2*nframes)
	if err := binary.Read(r, binary.LittleEndian, offsets); err != nil {
		return fmt.Errorf("%w: reading frame offsets: %v", ErrCorrupt, err)
	}

	var sizes [2]int32
	if err := binary.Read(r, binary.LittleEndian, &sizes); err != nil {
		return fmt.Errorf("%w: reading data sizes: %v", ErrCorrupt, err)
	}
	nints, ndoubles := sizes[0], sizes[1]
	if nints < 0 || ndoubles < 0 || 4*int64(nints)+8*int64(ndoubles) != int64(r.Len()) {
		return fmt.Errorf("%w: %d ints and %d doubles do not match %d bytes",
			ErrCorrupt, nints, ndoubles, r.Len())
	}

	frames := make([]Frame, nframes)
	var pi, pd int32
	for k := range frames {
		io, do := offsets[2*k], offsets[2*k+1]
		if io < pi || do < pd || io > nints || do > ndoubles {
			return fmt.Errorf("%w: frame %d offsets (%d, %d) out of order", ErrCorrupt, k, io, do)
		}
		frames[k] = Frame{IntOffset: int(io), DoubleOffset: int(do)}
		pi, pd = io, do
	}

	ints := make([]int32, nints)
	if err := binary.Read(r, binary.LittleEndian, ints); err != nil {
		return fmt.Errorf("%w: reading ints: %v", ErrCorrupt, err)
	}
	doubles := make([]float64, ndoubles)
	if err := binary.Read(r, binary.LittleEndian, doubles); err != nil {
		return fmt.Errorf("%w: reading doubles: %v", ErrCorrupt, err)
	}

	s.frames = frames
	s.ints = ints
	s.doubles = doubles
	s.Rewind()
	return nil
}
