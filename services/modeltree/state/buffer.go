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
	"fmt"
	"math"
)

// Buffer is a pair of growable int and double arrays with independent
// read offsets. Writers append; readers consume from the offsets.
//
// Ints are stored as 32-bit values, matching the wire format. A read past
// the end returns zero and records ErrUnderflow, which Err reports until
// the next Rewind or Reset.
type Buffer struct {
	ints    []int32
	doubles []float64
	ioff    int
	doff    int
	err     error
}

// PutInt appends one int.
func (b *Buffer) PutInt(v int) { b.ints = append(b.ints, int32(v)) }

// PutInts appends several ints.
func (b *Buffer) PutInts(vs ...int) {
	for _, v := range vs {
		b.ints = append(b.ints, int32(v))
	}
}

// PutBool appends a bool as the int 0 or 1.
func (b *Buffer) PutBool(v bool) {
	if v {
		b.PutInt(1)
	} else {
		b.PutInt(0)
	}
}

// PutDouble appends one double.
func (b *Buffer) PutDouble(v float64) { b.doubles = append(b.doubles, v) }

// PutDoubles appends several doubles.
func (b *Buffer) PutDoubles(vs ...float64) { b.doubles = append(b.doubles, vs...) }

// GetInt consumes the next int.
func (b *Buffer) GetInt() int {
	if b.ioff >= len(b.ints) {
		b.underflow("int", b.ioff)
		return 0
	}
	v := b.ints[b.ioff]
	b.ioff++
	return int(v)
}

// GetBool consumes the next int and reports whether it is non-zero.
func (b *Buffer) GetBool() bool { return b.GetInt() != 0 }

// GetDouble consumes the next double.
func (b *Buffer) GetDouble() float64 {
	if b.doff >= len(b.doubles) {
		b.underflow("double", b.doff)
		return 0
	}
	v := b.doubles[b.doff]
	b.doff++
	return v
}

// GetDoubles fills dst from the next len(dst) doubles.
func (b *Buffer) GetDoubles(dst []float64) {
	if b.doff+len(dst) > len(b.doubles) {
		b.underflow("double", len(b.doubles))
		b.doff = len(b.doubles)
		clear(dst)
		return
	}
	copy(dst, b.doubles[b.doff:])
	b.doff += len(dst)
}

func (b *Buffer) underflow(kind string, off int) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: read %s at offset %d", ErrUnderflow, kind, off)
	}
}

// Err returns the first read error since the last Rewind or Reset.
func (b *Buffer) Err() error { return b.err }

// IntSize returns the number of stored ints.
func (b *Buffer) IntSize() int { return len(b.ints) }

// DoubleSize returns the number of stored doubles.
func (b *Buffer) DoubleSize() int { return len(b.doubles) }

// IntOffset returns the int read offset.
func (b *Buffer) IntOffset() int { return b.ioff }

// DoubleOffset returns the double read offset.
func (b *Buffer) DoubleOffset() int { return b.doff }

// Ints returns the stored ints widened to int.
func (b *Buffer) Ints() []int {
	out := make([]int, len(b.ints))
	for i, v := range b.ints {
		out[i] = int(v)
	}
	return out
}

// Doubles returns the stored doubles. The slice aliases the buffer.
func (b *Buffer) Doubles() []float64 { return b.doubles }

// Rewind moves both read offsets back to the start and clears Err.
func (b *Buffer) Rewind() {
	b.ioff, b.doff = 0, 0
	b.err = nil
}

// Reset discards all data and rewinds.
func (b *Buffer) Reset() {
	b.ints = b.ints[:0]
	b.doubles = b.doubles[:0]
	b.Rewind()
}

// seek positions both read offsets.
func (b *Buffer) seek(ioff, doff int) {
	b.ioff, b.doff = ioff, doff
}

// equalData compares stored values. NaN doubles compare equal to NaN so
// a snapshot always equals itself.
func (b *Buffer) equalData(o *Buffer) bool {
	if len(b.ints) != len(o.ints) || len(b.doubles) != len(o.doubles) {
		return false
	}
	for i, v := range b.ints {
		if o.ints[i] != v {
			return false
		}
	}
	for i, v := range b.doubles {
		if !sameDouble(v, o.doubles[i]) {
			return false
		}
	}
	return true
}

func sameDouble(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
