// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mech

import (
	"slices"

	"github.com/AleutianAI/modeltree/services/modeltree/props"
	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

// Monitor observes components and, optionally, one property. All of its
// references are soft: a target that leaves the model is dropped and
// restored again on undo.
type Monitor struct {
	tree.Base

	targets  []tree.Component
	watch    tree.PropertyRef
	interval float64
}

var monitorProps = props.NewList(nil,
	props.Float("interval", "sampling interval in seconds", 0,
		func(m *Monitor) float64 { return m.interval },
		func(m *Monitor, v float64) { m.interval = v }),
)

// NewMonitor creates a monitor over targets.
func NewMonitor(name string, targets ...tree.Component) *Monitor {
	m := &Monitor{targets: targets}
	m.Init(m)
	if name != "" {
		_ = m.SetName(name)
	}
	return m
}

func (m *Monitor) ClassTag() string        { return "Monitor" }
func (m *Monitor) Properties() *props.List { return monitorProps }

// Targets returns the observed components.
func (m *Monitor) Targets() []tree.Component { return slices.Clone(m.targets) }

// Watch returns the watched property, whose Info is nil if none.
func (m *Monitor) Watch() tree.PropertyRef { return m.watch }

// SetWatch resolves path relative to m and watches that property.
func (m *Monitor) SetWatch(path string) error {
	ref, ok, err := tree.FindProperty(m, path, nil)
	if err != nil {
		return err
	}
	if !ok {
		return &tree.ReferenceResolutionError{Path: path, Ancestor: tree.DiagnosticName(m)}
	}
	m.watch = ref
	return nil
}

// Sample returns the watched property's current value.
func (m *Monitor) Sample() (any, error) {
	if m.watch.Info == nil {
		return nil, nil
	}
	return m.watch.Get()
}

// SoftReferences returns the targets and the watched host.
func (m *Monitor) SoftReferences() []tree.Component {
	refs := slices.Clone(m.targets)
	if m.watch.Host != nil {
		refs = append(refs, m.watch.Host)
	}
	return refs
}

// UpdateReferences drops disconnected targets and a disconnected watch.
// It records two entries per forward call: the target list, then the
// watch.
func (m *Monitor) UpdateReferences(undo bool, info *tree.UndoInfo) {
	tree.UpdateReferenceList(m, &m.targets, undo, info)
	if undo {
		if rec, ok := info.RemoveFirst().(tree.PropertyRef); ok && rec.Info != nil {
			m.watch = rec
		}
		return
	}
	if m.watch.Host != nil && !tree.AreConnected(m, m.watch.Host) {
		info.AddLast(m.watch)
		m.watch = tree.PropertyRef{}
		return
	}
	info.AddLast(tree.PropertyRef{})
}

func (m *Monitor) ScanItem(s *tree.ScanState) (bool, error) {
	n, err := tree.ScanAndStoreReferences(s, "targets")
	if err != nil {
		return false, err
	}
	if n >= 0 {
		return true, nil
	}
	if ok, err := tree.ScanAndStorePropertyPath(s, "watch"); ok || err != nil {
		return ok, err
	}
	return m.Base.ScanItem(s)
}

func (m *Monitor) PostscanItem(q *tree.TokenQueue, ancestor tree.Composite) (bool, error) {
	var err error
	switch {
	case tree.PostscanAttributeName(q, "targets"):
		m.targets, err = tree.PostscanReferences(q, ancestor)
	case tree.PostscanAttributeName(q, "watch"):
		m.watch, err = tree.PostscanPropertyRef(q, ancestor, nil)
	default:
		return m.Base.PostscanItem(q, ancestor)
	}
	return err == nil, err
}

func (m *Monitor) WriteItems(ws *tree.WriteState, ancestor tree.Composite) error {
	if err := m.Base.WriteItems(ws, ancestor); err != nil {
		return err
	}
	if len(m.targets) > 0 {
		ws.W.Print("targets=[ ")
		for _, t := range m.targets {
			ws.W.Print(tree.WritePathName(ancestor, t, ws.Compact) + " ")
		}
		ws.W.Println("]")
	}
	if m.watch.Info != nil {
		ws.W.Println("watch=" + tree.PropertyPathName(ancestor, m.watch, ws.Compact))
	}
	return ws.W.Err()
}
