// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package textfmt provides the lexical layer of the model text format:
// a tokenizer producing words, numbers, quoted strings and single
// punctuation characters with line numbers, and an indenting writer.
//
// # Grammar Primitives
//
//	word    = (letter | '_' | '.' | '/' | '-') { letter | digit | '_' | '-' | '.' | '/' | '+' }
//	number  = ['-' | '+'] digits ['.' digits] [('e'|'E') ['-'|'+'] digits]
//	quoted  = '"' { char | escape } '"'
//	char    = any other single printable character, e.g. '[' ']' '=' ':'
//	comment = '#' to end of line
//
// While reading reference paths the caller turns number parsing off and
// adds ':' to the word characters so "0/1:mass" is a single word.
//
// # Thread Safety
//
// Tokenizer and Writer are NOT safe for concurrent use.
package textfmt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// TokenKind identifies the kind of the current token.
type TokenKind int

const (
	// TokenEOF marks the end of input.
	TokenEOF TokenKind = iota

	// TokenWord is an unquoted identifier or path.
	TokenWord

	// TokenNumber is an integer or floating point literal.
	TokenNumber

	// TokenQuoted is a double-quoted string; Value holds the unquoted text.
	TokenQuoted

	// TokenChar is a single punctuation character.
	TokenChar
)

// String returns a readable kind name.
func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenWord:
		return "word"
	case TokenNumber:
		return "number"
	case TokenQuoted:
		return "quoted string"
	case TokenChar:
		return "character"
	default:
		return "unknown"
	}
}

// ErrSyntax is wrapped by every tokenizer error.
var ErrSyntax = errors.New("syntax error")

// SyntaxError reports a lexical or grammar problem at a line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s, line %d", e.Msg, e.Line)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

type token struct {
	kind  TokenKind
	value string
	num   float64
	isInt bool
	char  rune
	line  int
}

// Tokenizer reads tokens from a stream.
type Tokenizer struct {
	r            *bufio.Reader
	line         int
	cur          token
	pushed       bool
	parseNumbers bool
	extraWord    string
}

// NewTokenizer creates a Tokenizer reading from r.
func NewTokenizer(r io.Reader) *Tokenizer {
	return &Tokenizer{
		r:            bufio.NewReader(r),
		line:         1,
		parseNumbers: true,
	}
}

// NewStringTokenizer creates a Tokenizer over a string.
func NewStringTokenizer(s string) *Tokenizer {
	return NewTokenizer(strings.NewReader(s))
}

// SetParseNumbers enables or disables number recognition. When disabled,
// digits start words. Returns the previous setting.
func (t *Tokenizer) SetParseNumbers(enable bool) bool {
	prev := t.parseNumbers
	t.parseNumbers = enable
	return prev
}

// SetExtraWordChars sets additional word characters, such as ":".
// Returns the previous set.
func (t *Tokenizer) SetExtraWordChars(chars string) string {
	prev := t.extraWord
	t.extraWord = chars
	return prev
}

// Kind returns the kind of the current token.
func (t *Tokenizer) Kind() TokenKind { return t.cur.kind }

// Value returns the text of the current word or quoted token.
func (t *Tokenizer) Value() string { return t.cur.value }

// Float returns the value of the current number token.
func (t *Tokenizer) Float() float64 { return t.cur.num }

// IsInteger reports whether the current number token had no fraction or
// exponent.
func (t *Tokenizer) IsInteger() bool { return t.cur.kind == TokenNumber && t.cur.isInt }

// Char returns the current punctuation character.
func (t *Tokenizer) Char() rune { return t.cur.char }

// Line returns the line of the current token, or the current line before
// the first token.
func (t *Tokenizer) Line() int {
	if t.cur.line == 0 {
		return t.line
	}
	return t.cur.line
}

// Is reports whether the current token is the punctuation character ch.
func (t *Tokenizer) Is(ch rune) bool {
	return t.cur.kind == TokenChar && t.cur.char == ch
}

// PushBack makes the next call to Next return the current token again.
func (t *Tokenizer) PushBack() {
	t.pushed = true
}

// Describe returns a description of the current token for messages.
func (t *Tokenizer) Describe() string {
	switch t.cur.kind {
	case TokenEOF:
		return "EOF"
	case TokenWord:
		return fmt.Sprintf("word '%s'", t.cur.value)
	case TokenNumber:
		return fmt.Sprintf("number %s", strconv.FormatFloat(t.cur.num, 'g', -1, 64))
	case TokenQuoted:
		return fmt.Sprintf("string %q", t.cur.value)
	default:
		return fmt.Sprintf("'%c'", t.cur.char)
	}
}

// Errorf builds a SyntaxError at the current line.
func (t *Tokenizer) Errorf(format string, args ...any) error {
	return &SyntaxError{Line: t.Line(), Msg: fmt.Sprintf(format, args...)}
}

// Next advances to the next token and returns its kind.
func (t *Tokenizer) Next() (TokenKind, error) {
	if t.pushed {
		t.pushed = false
		return t.cur.kind, nil
	}
	if err := t.skipSpace(); err != nil {
		if errors.Is(err, io.EOF) {
			t.cur = token{kind: TokenEOF, line: t.line}
			return TokenEOF, nil
		}
		return TokenEOF, err
	}
	ch, _, err := t.r.ReadRune()
	if err != nil {
		return TokenEOF, err
	}
	start := t.line
	switch {
	case ch == '"':
		s, err := t.readQuoted()
		if err != nil {
			return TokenEOF, err
		}
		t.cur = token{kind: TokenQuoted, value: s, line: start}
	case t.parseNumbers && t.startsNumber(ch):
		if err := t.readNumber(ch, start); err != nil {
			return TokenEOF, err
		}
	case t.isWordStart(ch):
		t.cur = token{kind: TokenWord, value: t.readWord(ch), line: start}
	default:
		t.cur = token{kind: TokenChar, char: ch, line: start}
	}
	return t.cur.kind, nil
}

func (t *Tokenizer) skipSpace() error {
	for {
		ch, _, err := t.r.ReadRune()
		if err != nil {
			return err
		}
		switch {
		case ch == '\n':
			t.line++
		case ch == '#':
			for ch != '\n' {
				if ch, _, err = t.r.ReadRune(); err != nil {
					return err
				}
			}
			t.line++
		case unicode.IsSpace(ch):
		default:
			return t.r.UnreadRune()
		}
	}
}

func (t *Tokenizer) peek() rune {
	ch, _, err := t.r.ReadRune()
	if err != nil {
		return 0
	}
	_ = t.r.UnreadRune()
	return ch
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func (t *Tokenizer) startsNumber(ch rune) bool {
	if isDigit(ch) {
		return true
	}
	if ch == '-' || ch == '+' || ch == '.' {
		next := t.peek()
		return isDigit(next) || (ch != '.' && next == '.')
	}
	return false
}

func (t *Tokenizer) isWordStart(ch rune) bool {
	if unicode.IsLetter(ch) || ch == '_' || ch == '.' || ch == '/' || ch == '-' {
		return true
	}
	if !t.parseNumbers && isDigit(ch) {
		return true
	}
	return strings.ContainsRune(t.extraWord, ch)
}

func (t *Tokenizer) isWordChar(ch rune) bool {
	if unicode.IsLetter(ch) || isDigit(ch) {
		return true
	}
	switch ch {
	case '_', '-', '.', '/', '+':
		return true
	}
	return strings.ContainsRune(t.extraWord, ch)
}

func (t *Tokenizer) readWord(first rune) string {
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		ch, _, err := t.r.ReadRune()
		if err != nil {
			break
		}
		if !t.isWordChar(ch) {
			_ = t.r.UnreadRune()
			break
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

func (t *Tokenizer) readNumber(first rune, line int) error {
	var sb strings.Builder
	sb.WriteRune(first)
	prev := first
	for {
		ch, _, err := t.r.ReadRune()
		if err != nil {
			break
		}
		signAfterExp := (ch == '-' || ch == '+') && (prev == 'e' || prev == 'E')
		if !isDigit(ch) && ch != '.' && ch != 'e' && ch != 'E' && !signAfterExp {
			_ = t.r.UnreadRune()
			break
		}
		sb.WriteRune(ch)
		prev = ch
	}
	text := sb.String()
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return &SyntaxError{Line: line, Msg: fmt.Sprintf("malformed number '%s'", text)}
	}
	_, intErr := strconv.ParseInt(text, 10, 64)
	t.cur = token{kind: TokenNumber, num: v, isInt: intErr == nil, value: text, line: line}
	return nil
}

func (t *Tokenizer) readQuoted() (string, error) {
	var sb strings.Builder
	sb.WriteByte('"')
	escaped := false
	for {
		ch, _, err := t.r.ReadRune()
		if err != nil {
			return "", &SyntaxError{Line: t.line, Msg: "unterminated quoted string"}
		}
		if ch == '\n' {
			return "", &SyntaxError{Line: t.line, Msg: "newline in quoted string"}
		}
		sb.WriteRune(ch)
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			break
		}
	}
	s, err := strconv.Unquote(sb.String())
	if err != nil {
		return "", &SyntaxError{Line: t.line, Msg: fmt.Sprintf("bad escape in %s", sb.String())}
	}
	return s, nil
}

// =============================================================================
// Scanning helpers
// =============================================================================

// ScanChar reads the next token and requires it to be ch.
func (t *Tokenizer) ScanChar(ch rune) error {
	if _, err := t.Next(); err != nil {
		return err
	}
	if !t.Is(ch) {
		return t.Errorf("expected '%c', got %s", ch, t.Describe())
	}
	return nil
}

// ScanWord reads a word token.
func (t *Tokenizer) ScanWord() (string, error) {
	if _, err := t.Next(); err != nil {
		return "", err
	}
	if t.cur.kind != TokenWord {
		return "", t.Errorf("expected a word, got %s", t.Describe())
	}
	return t.cur.value, nil
}

// ScanQuoted reads a quoted string token.
func (t *Tokenizer) ScanQuoted() (string, error) {
	if _, err := t.Next(); err != nil {
		return "", err
	}
	if t.cur.kind != TokenQuoted {
		return "", t.Errorf("expected a quoted string, got %s", t.Describe())
	}
	return t.cur.value, nil
}

// ScanWordOrQuoted reads a word or a quoted string.
func (t *Tokenizer) ScanWordOrQuoted() (string, error) {
	if _, err := t.Next(); err != nil {
		return "", err
	}
	if t.cur.kind != TokenWord && t.cur.kind != TokenQuoted {
		return "", t.Errorf("expected a word or quoted string, got %s", t.Describe())
	}
	return t.cur.value, nil
}

// ScanFloat reads a number token.
func (t *Tokenizer) ScanFloat() (float64, error) {
	if _, err := t.Next(); err != nil {
		return 0, err
	}
	if t.cur.kind != TokenNumber {
		return 0, t.Errorf("expected a number, got %s", t.Describe())
	}
	return t.cur.num, nil
}

// ScanInt reads an integer token.
func (t *Tokenizer) ScanInt() (int, error) {
	if _, err := t.Next(); err != nil {
		return 0, err
	}
	if !t.IsInteger() {
		return 0, t.Errorf("expected an integer, got %s", t.Describe())
	}
	return int(t.cur.num), nil
}

// ScanBool reads "true" or "false".
func (t *Tokenizer) ScanBool() (bool, error) {
	w, err := t.ScanWord()
	if err != nil {
		return false, err
	}
	switch w {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, t.Errorf("expected true or false, got '%s'", w)
}

// ScanFloatList reads a bracketed list of numbers: [ 1 2 3 ].
func (t *Tokenizer) ScanFloatList() ([]float64, error) {
	if err := t.ScanChar('['); err != nil {
		return nil, err
	}
	var vals []float64
	for {
		if _, err := t.Next(); err != nil {
			return nil, err
		}
		if t.Is(']') {
			return vals, nil
		}
		if t.cur.kind != TokenNumber {
			return nil, t.Errorf("expected a number or ']', got %s", t.Describe())
		}
		vals = append(vals, t.cur.num)
	}
}

// SkipBlock discards a balanced bracket block. The opening '[' must be the
// next token.
func (t *Tokenizer) SkipBlock() error {
	if err := t.ScanChar('['); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		kind, err := t.Next()
		if err != nil {
			return err
		}
		switch {
		case kind == TokenEOF:
			return t.Errorf("unexpected EOF inside brackets")
		case t.Is('['):
			depth++
		case t.Is(']'):
			depth--
		}
	}
	return nil
}
