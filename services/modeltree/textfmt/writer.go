// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package textfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// IndentStep is the indentation added by each Open.
const IndentStep = 2

// Writer prints the text format with bracket-driven indentation.
//
// Open prints "[ " and keeps the cursor on the same line, so the first item
// of a block follows the bracket. Close prints "]" on its own line at the
// outer indentation, or directly after "[ " for an empty block.
//
// The first write error is sticky and returned by Err.
type Writer struct {
	w           io.Writer
	indent      int
	atLineStart bool
	err         error
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, atLineStart: true}
}

// Err returns the first write error.
func (w *Writer) Err() error { return w.err }

// Indent returns the current indentation width.
func (w *Writer) Indent() int { return w.indent }

func (w *Writer) raw(s string) {
	if w.err != nil || s == "" {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

// Print writes s, indenting first if at the start of a line.
func (w *Writer) Print(s string) {
	if s == "" {
		return
	}
	if w.atLineStart {
		w.raw(strings.Repeat(" ", w.indent))
		w.atLineStart = false
	}
	w.raw(s)
}

// Println writes s and a newline.
func (w *Writer) Println(s string) {
	w.Print(s)
	w.raw("\n")
	w.atLineStart = true
}

// Printf formats and prints without a newline.
func (w *Writer) Printf(format string, args ...any) {
	w.Print(fmt.Sprintf(format, args...))
}

// Open starts a bracket block.
func (w *Writer) Open() {
	w.Print("[ ")
	w.indent += IndentStep
}

// Close ends a bracket block.
func (w *Writer) Close() {
	w.indent -= IndentStep
	if w.indent < 0 {
		w.indent = 0
	}
	w.Println("]")
}

// FormatFloat formats v with the shortest representation that parses back
// to the same value.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FormatFloats formats a bracketed list: [ 1 2 3 ].
func FormatFloats(vals []float64) string {
	var sb strings.Builder
	sb.WriteString("[ ")
	for _, v := range vals {
		sb.WriteString(FormatFloat(v))
		sb.WriteByte(' ')
	}
	sb.WriteString("]")
	return sb.String()
}

// Quote returns s as a double-quoted literal readable by the Tokenizer.
func Quote(s string) string {
	return strconv.Quote(s)
}
