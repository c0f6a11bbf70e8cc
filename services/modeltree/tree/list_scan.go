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
	"fmt"
	"log/slog"
	"strconv"

	"github.com/AleutianAI/modeltree/services/modeltree/textfmt"
)

func (l *List) scanBegin() {
	l.scanCnt = 0
}

// scanEnd drops trailing non-fixed children the scan did not visit and
// rebuilds the free number stack.
func (l *List) scanEnd(*ScanState) error {
	var stale []Component
	for i := l.scanCnt; i < len(l.comps); i++ {
		if !l.comps[i].IsFixed() {
			stale = append(stale, l.comps[i])
		}
	}
	if len(stale) > 0 {
		if err := l.removeBatch(stale, nil, true); err != nil {
			return err
		}
	}
	if l.scanCnt == 0 && len(stale) == 0 {
		return nil
	}
	l.validateIndices()
	l.nums.CollectFreeNumbers()
	l.notifyStructureChanged(anyState(l.comps) || anyState(stale))
	return nil
}

// ScanItem reads zeroBasedNumbering, the attributes handled by Base, or
// one child written as "Number? ClassTag? [ ... ]".
func (l *List) ScanItem(s *ScanState) (bool, error) {
	tok := s.Tok
	kind, err := tok.Next()
	if err != nil {
		return false, err
	}
	switch {
	case kind == textfmt.TokenWord && tok.Value() == "zeroBasedNumbering":
		if err := tok.ScanChar('='); err != nil {
			return false, err
		}
		zero, err := tok.ScanBool()
		if err != nil {
			return false, err
		}
		if err := l.SetZeroBasedNumbering(zero); err != nil {
			return false, &FormatError{Line: tok.Line(), Err: err}
		}
		return true, nil
	case kind == textfmt.TokenWord && isAttribute(l.self, tok.Value()):
		tok.PushBack()
		return l.Base.ScanItem(s)
	case kind == textfmt.TokenWord, kind == textfmt.TokenNumber, tok.Is('['):
		tok.PushBack()
		return true, l.scanAndStoreComponent(s)
	}
	tok.PushBack()
	return false, nil
}

// defaultNumber picks the number for a scanned child written without
// one: its index if free, otherwise the next free number.
func (l *List) defaultNumber(idx int) int {
	base := 0
	if l.nums.OneBased() {
		base = 1
	}
	if idx >= base && !l.nums.InUse(idx) {
		return idx
	}
	return -1
}

func (l *List) scanAndStoreComponent(s *ScanState) error {
	tok := s.Tok
	number := -1
	if _, err := tok.Next(); err != nil {
		return err
	}
	if tok.Kind() == textfmt.TokenNumber {
		if !tok.IsInteger() || tok.Float() < 0 {
			return formatErrorf(tok.Line(), "invalid component number %s", tok.Describe())
		}
		number = int(tok.Float())
		if _, err := tok.Next(); err != nil {
			return err
		}
	}
	tag := ""
	if tok.Kind() == textfmt.TokenWord {
		tag = tok.Value()
	} else {
		tok.PushBack()
	}
	line := tok.Line()
	if tag == "" {
		tag = l.elemClass
	}

	if l.scanCnt < len(l.comps) {
		return l.scanIntoSlot(s, tag, number, line)
	}
	if tag == "" {
		return formatErrorf(line, "class tag expected in %s", DiagnosticName(l.comp))
	}
	c, err := s.Classes.New(tag)
	if err != nil {
		return l.discard(s, tag, line)
	}
	s.Queue.Offer(ObjectToken{Comp: c, Line: line})
	if err := Scan(c, s); err != nil {
		return err
	}
	idx := len(l.comps)
	if number == -1 {
		number = l.defaultNumber(idx)
	}
	if err := l.initComponent(c, number, idx); err != nil {
		return &FormatError{Line: line, Msg: "cannot add scanned component", Err: err}
	}
	l.comps = append(l.comps, c)
	l.scanCnt++
	return nil
}

// scanIntoSlot scans the next block over the child at the scan index. A
// fixed child of the same class and number is reused; anything else is
// replaced by a new component that keeps the old number unless the text
// gives one.
func (l *List) scanIntoSlot(s *ScanState, tag string, number, line int) error {
	cur := l.comps[l.scanCnt]
	if tag == "" {
		tag = cur.ClassTag()
	}
	if cur.IsFixed() && cur.ClassTag() == tag && (number == -1 || number == cur.Number()) {
		s.Queue.Offer(ObjectToken{Comp: cur, Line: line})
		if err := Scan(cur, s); err != nil {
			return err
		}
		l.scanCnt++
		return nil
	}
	c, err := s.Classes.New(tag)
	if err != nil {
		return l.discard(s, tag, line)
	}
	s.Queue.Offer(ObjectToken{Comp: c, Line: line})
	if err := Scan(c, s); err != nil {
		return err
	}
	RecursivelyDisconnect(cur, l.comp)
	l.clearComponent(cur)
	if number == -1 {
		number = cur.Number()
	}
	if err := l.initComponent(c, number, l.scanCnt); err != nil {
		return &FormatError{Line: line, Msg: "cannot replace component", Err: err}
	}
	l.comps[l.scanCnt] = c
	l.scanCnt++
	return nil
}

// discard logs an unknown class and skips its block.
func (l *List) discard(s *ScanState, tag string, line int) error {
	s.Logger.Warn("skipping component of unknown class",
		slog.String("class", tag),
		slog.Int("line", line),
		slog.String("list", DiagnosticName(l.comp)),
	)
	return s.Tok.SkipBlock()
}

// PostscanItem replays one child queued by ScanItem. A new child is
// connected to the hierarchy right after its own postscan.
func (l *List) PostscanItem(q *TokenQueue, ancestor Composite) (bool, error) {
	ot, ok := q.Peek().(ObjectToken)
	if !ok {
		return l.Base.PostscanItem(q, ancestor)
	}
	q.Poll()
	if l.closed {
		ancestor = l.comp
	}
	c := ot.Comp
	if err := Postscan(c, q, ancestor); err != nil {
		return false, err
	}
	if c.IsFixed() {
		return true, nil
	}
	if err := c.ConnectToHierarchy(l.comp); err != nil {
		return false, &FormatError{
			Line: ot.Line,
			Msg:  fmt.Sprintf("cannot connect %s to hierarchy", DiagnosticName(c)),
			Err:  err,
		}
	}
	UpdateInheritedProperties(c)
	return true, nil
}

// WriteItems writes the Base attributes, the numbering mode and every
// writable child. A child's number is written when it differs from its
// position among writable children, and its class tag when it differs
// from the element class.
func (l *List) WriteItems(ws *WriteState, ancestor Composite) error {
	if err := l.Base.WriteItems(ws, ancestor); err != nil {
		return err
	}
	if !l.ZeroBasedNumbering() {
		ws.W.Println("zeroBasedNumbering=false")
	}
	if l.closed {
		ancestor = l.comp
	}
	i := 0
	for _, c := range l.comps {
		if !c.IsWritable() {
			continue
		}
		if c.Number() != i {
			ws.W.Print(strconv.Itoa(c.Number()) + " ")
		}
		if l.elemClass == "" || c.ClassTag() != l.elemClass {
			ws.W.Print(c.ClassTag() + " ")
		}
		if err := Write(c, ws, ancestor); err != nil {
			return err
		}
		i++
	}
	return ws.W.Err()
}
