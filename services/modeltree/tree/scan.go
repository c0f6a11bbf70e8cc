// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/modeltree/services/modeltree/telemetry"
	"github.com/AleutianAI/modeltree/services/modeltree/textfmt"
)

// =============================================================================
// Scan Tokens
// =============================================================================

// ScanToken is an entry of the queue built by Scan and consumed by
// Postscan.
type ScanToken interface {
	TokenLine() int
}

type markerToken string

func (markerToken) TokenLine() int { return 0 }

func (m markerToken) String() string { return string(m) }

var (
	// Begin is queued when a component's bracket block opens.
	Begin ScanToken = markerToken("BEGIN")

	// End is queued when it closes.
	End ScanToken = markerToken("END")
)

// StringToken carries an attribute name or an unresolved path.
type StringToken struct {
	Value string
	Line  int
}

func (t StringToken) TokenLine() int { return t.Line }

func (t StringToken) String() string { return fmt.Sprintf("%q", t.Value) }

// ObjectToken carries a scanned child waiting for its postscan.
type ObjectToken struct {
	Comp Component
	Line int
}

func (t ObjectToken) TokenLine() int { return t.Line }

func (t ObjectToken) String() string { return DiagnosticName(t.Comp) }

// TokenQueue is the FIFO shared by the two passes.
type TokenQueue struct {
	items []ScanToken
	head  int
}

// NewTokenQueue returns an empty queue.
func NewTokenQueue() *TokenQueue { return &TokenQueue{} }

// Offer appends t.
func (q *TokenQueue) Offer(t ScanToken) { q.items = append(q.items, t) }

// Poll removes and returns the first token, or nil.
func (q *TokenQueue) Poll() ScanToken {
	if q.head >= len(q.items) {
		return nil
	}
	t := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	return t
}

// Peek returns the first token without removing it, or nil.
func (q *TokenQueue) Peek() ScanToken {
	if q.head >= len(q.items) {
		return nil
	}
	return q.items[q.head]
}

// Len returns the number of pending tokens.
func (q *TokenQueue) Len() int { return len(q.items) - q.head }

// Tokens returns the pending tokens.
func (q *TokenQueue) Tokens() []ScanToken { return q.items[q.head:] }

func tokenLine(t ScanToken) int {
	if t == nil {
		return 0
	}
	return t.TokenLine()
}

// PrintTokens writes the pending tokens of q, one per line and indented
// by bracket depth, for debugging.
func PrintTokens(w io.Writer, q *TokenQueue) error {
	depth := 0
	for _, t := range q.Tokens() {
		if t == End && depth > 0 {
			depth--
		}
		line := ""
		if n := t.TokenLine(); n > 0 {
			line = fmt.Sprintf("  (line %d)", n)
		}
		if _, err := fmt.Fprintf(w, "%s%v%s\n", strings.Repeat("  ", depth), t, line); err != nil {
			return err
		}
		if t == Begin {
			depth++
		}
	}
	return nil
}

// =============================================================================
// Pass State
// =============================================================================

// ScanState is shared by every component during the scan pass.
type ScanState struct {
	Tok     *textfmt.Tokenizer
	Queue   *TokenQueue
	Classes *Registry
	Logger  *slog.Logger
}

// NewScanState creates a scan state with an empty queue. A nil logger
// selects slog.Default().
func NewScanState(tok *textfmt.Tokenizer, classes *Registry, logger *slog.Logger) *ScanState {
	if logger == nil {
		logger = slog.Default()
	}
	if classes == nil {
		classes = NewRegistry()
	}
	return &ScanState{Tok: tok, Queue: NewTokenQueue(), Classes: classes, Logger: logger}
}

// WriteState is shared by every component during a write.
type WriteState struct {
	W *textfmt.Writer

	// Compact writes reference paths with short names and numbers.
	Compact bool
}

// scanHooks is implemented by composites that track which children a
// scan visited.
type scanHooks interface {
	scanBegin()
	scanEnd(s *ScanState) error
}

// =============================================================================
// Drivers
// =============================================================================

// Scan reads c's bracket block from s.Tok.
//
// # Inputs
//
//   - c: Component to fill; its class tag was already consumed.
//   - s: Scan state. Paths and new children are queued on s.Queue.
//
// # Outputs
//
//   - error: FormatError with the source line for malformed input, or a
//     StructuralError from adding a scanned child.
//
// # Description
//
// Each item inside the brackets is offered to c.ScanItem. An item that no
// hook accepts is an error. Nothing is resolved here; see Postscan.
func Scan(c Component, s *ScanState) error {
	tok := s.Tok
	b := c.base()
	b.setPhase(PhaseScanning)
	hooks, _ := c.(scanHooks)
	if hooks != nil {
		hooks.scanBegin()
	}
	if err := tok.ScanChar('['); err != nil {
		return asFormatError(tok, err)
	}
	s.Queue.Offer(Begin)
	for {
		kind, err := tok.Next()
		if err != nil {
			return asFormatError(tok, err)
		}
		if tok.Is(']') {
			break
		}
		if kind == textfmt.TokenEOF {
			return formatErrorf(tok.Line(), "unexpected EOF in %s", c.ClassTag())
		}
		tok.PushBack()
		ok, err := c.ScanItem(s)
		if err != nil {
			return asFormatError(tok, err)
		}
		if !ok {
			return formatErrorf(tok.Line(), "unexpected token %s in %s", tok.Describe(), c.ClassTag())
		}
	}
	s.Queue.Offer(End)
	if hooks != nil {
		if err := hooks.scanEnd(s); err != nil {
			return asFormatError(tok, err)
		}
	}
	b.setPhase(PhaseScanned)
	return nil
}

// Postscan replays c's tokens from q and resolves them against ancestor.
func Postscan(c Component, q *TokenQueue, ancestor Composite) error {
	b := c.base()
	b.setPhase(PhasePostscanning)
	if t := q.Poll(); t != Begin {
		return formatErrorf(tokenLine(t), "expected BEGIN for %s, got %v", c.ClassTag(), t)
	}
	for {
		t := q.Peek()
		if t == nil {
			return formatErrorf(0, "token queue exhausted in %s", DiagnosticName(c))
		}
		if t == End {
			q.Poll()
			break
		}
		ok, err := c.PostscanItem(q, ancestor)
		if err != nil {
			return err
		}
		if !ok {
			return formatErrorf(t.TokenLine(), "unexpected token %v in %s", t, DiagnosticName(c))
		}
	}
	b.setPhase(PhaseAttached)
	return nil
}

// Write prints c's bracket block. The class tag, and number if any, are
// printed by the caller.
func Write(c Component, ws *WriteState, ancestor Composite) error {
	ws.W.Open()
	if err := c.WriteItems(ws, ancestor); err != nil {
		return err
	}
	ws.W.Close()
	return ws.W.Err()
}

// pathAncestor returns the composite that paths inside c are relative to
// when c is read or written on its own.
func pathAncestor(c Component) Composite {
	if a := NearestEncapsulatingAncestor(c); a != nil {
		return a
	}
	if rc, ok := Root(c).(Composite); ok {
		return rc
	}
	return nil
}

// ScanFull runs both passes on c, which must not have a parent.
func ScanFull(c Component, tok *textfmt.Tokenizer, classes *Registry, ancestor Composite) error {
	s := NewScanState(tok, classes, nil)
	if err := Scan(c, s); err != nil {
		return err
	}
	if ancestor == nil {
		ancestor = pathAncestor(c)
	}
	if err := Postscan(c, s.Queue, ancestor); err != nil {
		return err
	}
	UpdateInheritedProperties(c)
	return nil
}

// LoadOption configures LoadComponent.
type LoadOption func(*loadOptions)

type loadOptions struct {
	logger *slog.Logger
	source string
}

// WithLoadLogger sets the logger for scan warnings.
func WithLoadLogger(logger *slog.Logger) LoadOption {
	return func(o *loadOptions) { o.logger = logger }
}

// WithSource names the input in spans and messages.
func WithSource(name string) LoadOption {
	return func(o *loadOptions) { o.source = name }
}

// LoadComponent reads "ClassTag [ ... ]" from r and returns the new
// component with all references resolved.
//
// # Inputs
//
//   - ctx: Context for tracing. Loading is not interruptible.
//   - r: Text input.
//   - classes: Known class tags.
//
// # Outputs
//
//   - Component: The loaded root.
//   - error: FormatError, ReferenceResolutionError or StructuralError.
func LoadComponent(ctx context.Context, r io.Reader, classes *Registry, opts ...LoadOption) (Component, error) {
	o := loadOptions{source: "stream"}
	for _, opt := range opts {
		opt(&o)
	}
	_, span := startLoadSpan(ctx, o.source)
	defer span.End()
	start := time.Now()

	c, err := loadComponent(r, classes, o.logger)
	result := "ok"
	if err != nil {
		result = "error"
		telemetry.RecordError(span, err)
	} else {
		span.SetAttributes(attribute.String("modeltree.class", c.ClassTag()))
	}
	scanDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return c, err
}

func loadComponent(r io.Reader, classes *Registry, logger *slog.Logger) (Component, error) {
	tok := textfmt.NewTokenizer(r)
	s := NewScanState(tok, classes, logger)
	tag, err := tok.ScanWord()
	if err != nil {
		return nil, asFormatError(tok, err)
	}
	c, err := s.Classes.New(tag)
	if err != nil {
		return nil, &FormatError{Line: tok.Line(), Err: err}
	}
	if err := Scan(c, s); err != nil {
		return nil, err
	}
	if kind, err := tok.Next(); err != nil || kind != textfmt.TokenEOF {
		if err != nil {
			return nil, asFormatError(tok, err)
		}
		return nil, formatErrorf(tok.Line(), "unexpected %s after %s", tok.Describe(), tag)
	}
	if err := Postscan(c, s.Queue, pathAncestor(c)); err != nil {
		return nil, err
	}
	UpdateInheritedProperties(c)
	return c, nil
}

// WriteComponent prints c, starting with its class tag. Paths are
// compact when compact is set or c's own policy asks for it.
func WriteComponent(ctx context.Context, w io.Writer, c Component, compact bool) error {
	if cc, ok := c.(Composite); ok && cc.Policy().CompactPaths {
		compact = true
	}
	_, span := startWriteSpan(ctx, c)
	defer span.End()
	ws := &WriteState{W: textfmt.NewWriter(w), Compact: compact}
	ws.W.Print(c.ClassTag() + " ")
	if err := Write(c, ws, pathAncestor(c)); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

// =============================================================================
// Reference Helpers
// =============================================================================

// scanPath reads a path with number parsing off and ':' as a word
// character, so "0/1:mass" is one token.
func scanPath(tok *textfmt.Tokenizer) (string, error) {
	prevNums := tok.SetParseNumbers(false)
	prevChars := tok.SetExtraWordChars(":")
	defer func() {
		tok.SetParseNumbers(prevNums)
		tok.SetExtraWordChars(prevChars)
	}()
	return tok.ScanWordOrQuoted()
}

// scanAttributeName consumes "attr=" if it is next.
func scanAttributeName(tok *textfmt.Tokenizer, attr string) (bool, error) {
	kind, err := tok.Next()
	if err != nil {
		return false, err
	}
	if kind != textfmt.TokenWord || tok.Value() != attr {
		tok.PushBack()
		return false, nil
	}
	if err := tok.ScanChar('='); err != nil {
		return false, err
	}
	return true, nil
}

// ScanAndStoreReference reads "attr=path" if attr is next and queues the
// attribute name and the path for PostscanReference.
func ScanAndStoreReference(s *ScanState, attr string) (bool, error) {
	ok, err := scanAttributeName(s.Tok, attr)
	if !ok || err != nil {
		return false, err
	}
	line := s.Tok.Line()
	path, err := scanPath(s.Tok)
	if err != nil {
		return false, err
	}
	s.Queue.Offer(StringToken{Value: attr, Line: line})
	s.Queue.Offer(StringToken{Value: path, Line: s.Tok.Line()})
	return true, nil
}

// ScanAndStorePropertyPath reads "attr=compPath:prop" if attr is next.
func ScanAndStorePropertyPath(s *ScanState, attr string) (bool, error) {
	return ScanAndStoreReference(s, attr)
}

// ScanAndStoreReferences reads "attr=[ path ... ]" if attr is next and
// returns the number of paths, or -1 if attr was not next.
func ScanAndStoreReferences(s *ScanState, attr string) (int, error) {
	tok := s.Tok
	ok, err := scanAttributeName(tok, attr)
	if err != nil {
		return -1, err
	}
	if !ok {
		return -1, nil
	}
	s.Queue.Offer(StringToken{Value: attr, Line: tok.Line()})
	if err := tok.ScanChar('['); err != nil {
		return -1, err
	}
	s.Queue.Offer(Begin)
	prevNums := tok.SetParseNumbers(false)
	prevChars := tok.SetExtraWordChars(":")
	defer func() {
		tok.SetParseNumbers(prevNums)
		tok.SetExtraWordChars(prevChars)
	}()
	n := 0
	for {
		kind, err := tok.Next()
		if err != nil {
			return -1, err
		}
		if tok.Is(']') {
			break
		}
		if kind != textfmt.TokenWord && kind != textfmt.TokenQuoted {
			return -1, tok.Errorf("expected a path or ']', got %s", tok.Describe())
		}
		s.Queue.Offer(StringToken{Value: tok.Value(), Line: tok.Line()})
		n++
	}
	s.Queue.Offer(End)
	return n, nil
}

// PostscanAttributeName consumes the queued attribute name attr if it is
// next.
func PostscanAttributeName(q *TokenQueue, attr string) bool {
	if t, ok := q.Peek().(StringToken); ok && t.Value == attr {
		q.Poll()
		return true
	}
	return false
}

func pollPath(q *TokenQueue) (StringToken, error) {
	t := q.Poll()
	st, ok := t.(StringToken)
	if !ok {
		return st, formatErrorf(tokenLine(t), "expected a reference path, got %v", t)
	}
	return st, nil
}

func resolvePath(st StringToken, ancestor Composite) (Component, error) {
	if st.Value == "null" {
		return nil, nil
	}
	var base Component
	if ancestor != nil {
		base = ancestor
	}
	c, err := FindComponent(base, st.Value)
	if err != nil || c == nil {
		return nil, &ReferenceResolutionError{Path: st.Value, Ancestor: DiagnosticName(base), Line: st.Line, Err: err}
	}
	return c, nil
}

// PostscanReference resolves the next queued path against ancestor. The
// path "null" yields nil.
func PostscanReference(q *TokenQueue, ancestor Composite) (Component, error) {
	st, err := pollPath(q)
	if err != nil {
		return nil, err
	}
	return resolvePath(st, ancestor)
}

// PostscanReferenceAs is PostscanReference with a type check.
func PostscanReferenceAs[T Component](q *TokenQueue, ancestor Composite) (T, error) {
	var zero T
	st, err := pollPath(q)
	if err != nil {
		return zero, err
	}
	return castReference[T](st, ancestor)
}

func castReference[T Component](st StringToken, ancestor Composite) (T, error) {
	var zero T
	c, err := resolvePath(st, ancestor)
	if err != nil || c == nil {
		return zero, err
	}
	t, ok := c.(T)
	if !ok {
		return zero, &ReferenceResolutionError{
			Path:     st.Value,
			Ancestor: DiagnosticName(ancestor),
			Line:     st.Line,
			Err:      fmt.Errorf("%w: %s is a %s", ErrWrongType, DiagnosticName(c), c.ClassTag()),
		}
	}
	return t, nil
}

// PostscanReferences resolves a bracketed path list queued by
// ScanAndStoreReferences.
func PostscanReferences(q *TokenQueue, ancestor Composite) ([]Component, error) {
	return PostscanReferencesAs[Component](q, ancestor)
}

// PostscanReferencesAs is PostscanReferences with a type check.
func PostscanReferencesAs[T Component](q *TokenQueue, ancestor Composite) ([]T, error) {
	if t := q.Poll(); t != Begin {
		return nil, formatErrorf(tokenLine(t), "expected BEGIN of reference list, got %v", t)
	}
	var refs []T
	for q.Peek() != End {
		st, err := pollPath(q)
		if err != nil {
			return nil, err
		}
		c, err := castReference[T](st, ancestor)
		if err != nil {
			return nil, err
		}
		refs = append(refs, c)
	}
	q.Poll()
	return refs, nil
}

// PostscanPropertyRef resolves the next queued property path.
func PostscanPropertyRef(q *TokenQueue, ancestor Composite, logger *slog.Logger) (PropertyRef, error) {
	st, err := pollPath(q)
	if err != nil {
		return PropertyRef{}, err
	}
	var base Component
	if ancestor != nil {
		base = ancestor
	}
	ref, ok, err := FindProperty(base, st.Value, logger)
	if err != nil || !ok {
		return PropertyRef{}, &ReferenceResolutionError{Path: st.Value, Ancestor: DiagnosticName(base), Line: st.Line, Err: err}
	}
	return ref, nil
}
