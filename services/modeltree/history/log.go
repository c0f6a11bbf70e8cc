// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history keeps a bounded undo and redo log of reversible edits.
package history

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrNothingToUndo is returned by Undo on an empty log.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned by Redo when no undone edit remains.
	ErrNothingToRedo = errors.New("nothing to redo")
)

var (
	// historyOps counts log operations by kind
	historyOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modeltree_history_ops_total",
		Help: "Total undo log operations by kind",
	}, []string{"op"})

	// historyDropped counts edits pushed out of a full log
	historyDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modeltree_history_dropped_total",
		Help: "Total edits dropped from full undo logs",
	})
)

// Edit is a reversible change. deps.RemoveEdit is one.
type Edit interface {
	Apply() error
	Undo() error
	Description() string
}

// Log is an undo stack of bounded depth with a redo stack.
//
// Description:
//
//	Doing a new edit clears the redo stack. When the undo stack is full
//	the oldest edit is forgotten and can no longer be undone.
//
// Thread Safety: Not safe for concurrent use.
type Log struct {
	undo   *Ring[Edit]
	redo   []Edit
	logger *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger for dropped-edit warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New creates a log that remembers up to capacity edits.
func New(capacity int, opts ...Option) *Log {
	l := &Log{undo: NewRing[Edit](capacity)}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Do applies e and records it.
//
// # Inputs
//
//   - e: An edit that has not been applied.
//
// # Outputs
//
//   - error: The error from e.Apply. Nothing is recorded on error.
func (l *Log) Do(e Edit) error {
	if err := e.Apply(); err != nil {
		return err
	}
	l.Record(e)
	return nil
}

// Record adds an edit that was already applied.
func (l *Log) Record(e Edit) {
	historyOps.WithLabelValues("do").Inc()
	clear(l.redo)
	l.redo = l.redo[:0]
	if l.undo.Push(e) {
		historyDropped.Inc()
		l.logger.Debug("undo log full, oldest edit dropped",
			slog.Int("capacity", l.undo.Cap()),
		)
	}
}

// Undo reverts the newest edit and returns it.
func (l *Log) Undo() (Edit, error) {
	e, ok := l.undo.PopNewest()
	if !ok {
		return nil, ErrNothingToUndo
	}
	if err := e.Undo(); err != nil {
		l.undo.Push(e)
		return nil, err
	}
	historyOps.WithLabelValues("undo").Inc()
	l.redo = append(l.redo, e)
	return e, nil
}

// Redo reapplies the most recently undone edit and returns it.
func (l *Log) Redo() (Edit, error) {
	if len(l.redo) == 0 {
		return nil, ErrNothingToRedo
	}
	e := l.redo[len(l.redo)-1]
	if err := e.Apply(); err != nil {
		return nil, err
	}
	l.redo = l.redo[:len(l.redo)-1]
	historyOps.WithLabelValues("redo").Inc()
	l.undo.Push(e)
	return e, nil
}

// CanUndo reports whether Undo has an edit to revert.
func (l *Log) CanUndo() bool { return l.undo.Len() > 0 }

// CanRedo reports whether Redo has an edit to reapply.
func (l *Log) CanRedo() bool { return len(l.redo) > 0 }

// Descriptions lists undoable edits from oldest to newest.
func (l *Log) Descriptions() []string {
	edits := l.undo.Slice()
	out := make([]string, len(edits))
	for i, e := range edits {
		out[i] = e.Description()
	}
	return out
}

// Clear forgets every edit.
func (l *Log) Clear() {
	l.undo.Clear()
	l.redo = nil
}
