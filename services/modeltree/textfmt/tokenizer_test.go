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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTokenizer_Kinds verifies each primitive is recognized with its line.
func TestTokenizer_Kinds(t *testing.T) {
	src := "Particle [ name=\"p\\\"0\" # comment\n  mass=-1.5e2 count=3 ../x ]"
	tok := NewStringTokenizer(src)

	type want struct {
		kind TokenKind
		text string
		line int
	}
	wants := []want{
		{TokenWord, "Particle", 1},
		{TokenChar, "[", 1},
		{TokenWord, "name", 1},
		{TokenChar, "=", 1},
		{TokenQuoted, `p"0`, 1},
		{TokenWord, "mass", 2},
		{TokenChar, "=", 2},
		{TokenNumber, "-1.5e2", 2},
		{TokenWord, "count", 2},
		{TokenChar, "=", 2},
		{TokenNumber, "3", 2},
		{TokenWord, "../x", 2},
		{TokenChar, "]", 2},
		{TokenEOF, "", 2},
	}
	for i, w := range wants {
		kind, err := tok.Next()
		require.NoError(t, err, "token %d", i)
		assert.Equal(t, w.kind, kind, "token %d", i)
		assert.Equal(t, w.line, tok.Line(), "token %d", i)
		switch kind {
		case TokenChar:
			assert.Equal(t, w.text, string(tok.Char()))
		case TokenWord, TokenQuoted, TokenNumber:
			assert.Equal(t, w.text, tok.Value())
		}
	}
}

func TestTokenizer_Numbers(t *testing.T) {
	tok := NewStringTokenizer("42 -7 0.25 .5 1e3")
	v, err := tok.ScanInt()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	v, err = tok.ScanInt()
	require.NoError(t, err)
	assert.Equal(t, -7, v)

	f, err := tok.ScanFloat()
	require.NoError(t, err)
	assert.Equal(t, 0.25, f)
	assert.False(t, tok.IsInteger())

	f, err = tok.ScanFloat()
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)

	_, err = tok.ScanInt()
	assert.ErrorIs(t, err, ErrSyntax)
}

// TestTokenizer_PathMode verifies digits and ':' join words when numbers are
// disabled.
func TestTokenizer_PathMode(t *testing.T) {
	tok := NewStringTokenizer("0/1:mass particles/3")
	tok.SetParseNumbers(false)
	prev := tok.SetExtraWordChars(":")
	assert.Equal(t, "", prev)

	w, err := tok.ScanWord()
	require.NoError(t, err)
	assert.Equal(t, "0/1:mass", w)
	w, err = tok.ScanWordOrQuoted()
	require.NoError(t, err)
	assert.Equal(t, "particles/3", w)
}

func TestTokenizer_PushBack(t *testing.T) {
	tok := NewStringTokenizer("a b")
	_, err := tok.Next()
	require.NoError(t, err)
	tok.PushBack()
	w, err := tok.ScanWord()
	require.NoError(t, err)
	assert.Equal(t, "a", w)
	w, err = tok.ScanWord()
	require.NoError(t, err)
	assert.Equal(t, "b", w)
}

func TestTokenizer_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		scan func(*Tokenizer) error
	}{
		{"unterminated", `"abc`, func(tk *Tokenizer) error { _, err := tk.Next(); return err }},
		{"expected char", "x", func(tk *Tokenizer) error { return tk.ScanChar('[') }},
		{"expected bool", "maybe", func(tk *Tokenizer) error { _, err := tk.ScanBool(); return err }},
		{"list", "[ 1 x ]", func(tk *Tokenizer) error { _, err := tk.ScanFloatList(); return err }},
		{"skip eof", "[ [ ]", func(tk *Tokenizer) error { return tk.SkipBlock() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scan(NewStringTokenizer(tt.src))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyntax)
			var se *SyntaxError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestTokenizer_SkipBlock(t *testing.T) {
	tok := NewStringTokenizer("[ a [ b ] \"]\" ] next")
	require.NoError(t, tok.SkipBlock())
	w, err := tok.ScanWord()
	require.NoError(t, err)
	assert.Equal(t, "next", w)
}

func TestScanFloatList(t *testing.T) {
	tok := NewStringTokenizer("[ 1 -2.5 3 ]")
	vals, err := tok.ScanFloatList()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2.5, 3}, vals)
}

// TestWriter_Blocks verifies bracket layout and indentation.
func TestWriter_Blocks(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Print("Model ")
	w.Open()
	w.Println("name=" + Quote("m"))
	w.Print("List ")
	w.Open()
	w.Close()
	w.Print("Leaf ")
	w.Open()
	w.Println("x=" + FormatFloats([]float64{1, 0.5}))
	w.Close()
	w.Close()
	require.NoError(t, w.Err())

	want := "Model [ name=\"m\"\n" +
		"  List [ ]\n" +
		"  Leaf [ x=[ 1 0.5 ]\n" +
		"  ]\n" +
		"]\n"
	assert.Equal(t, want, buf.String())
}

// TestFormatFloat_RoundTrips verifies written floats parse back exactly.
func TestFormatFloat_RoundTrips(t *testing.T) {
	for _, v := range []float64{0.1, 1.0 / 3.0, -2e-300, 12345678.9} {
		tok := NewStringTokenizer(FormatFloat(v))
		got, err := tok.ScanFloat()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
