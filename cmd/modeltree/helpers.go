// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/AleutianAI/modeltree/pkg/ux"
	"github.com/AleutianAI/modeltree/services/modeltree/state"
	"github.com/AleutianAI/modeltree/services/modeltree/tree"
	"github.com/AleutianAI/modeltree/services/modeltree/watch"
)

// loadModel reads path and applies the configured naming policy to every
// list in it.
func (a *app) loadModel(ctx context.Context, path string) (tree.Component, error) {
	root, err := watch.Load(ctx, path, a.classes, a.logger.Slog())
	if err != nil {
		return nil, err
	}
	applyPolicy(root, a.cfg.Tree.Policy())
	return root, nil
}

// applyPolicy sets p on every list in the subtree rooted at root.
func applyPolicy(root tree.Component, p tree.Policy) {
	walk(root, func(c tree.Component) {
		if l, ok := c.(interface{ SetPolicy(tree.Policy) }); ok {
			l.SetPolicy(p)
		}
	})
}

// format renders root as model text.
func format(ctx context.Context, root tree.Component, compact bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := tree.WriteComponent(ctx, &buf, root, compact); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// emit writes text to path when inPlace is set, otherwise to the printer.
func (a *app) emit(text []byte, path string, inPlace bool) error {
	if inPlace {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		return os.WriteFile(path, text, info.Mode().Perm())
	}
	_, err := a.printer.Writer().Write(text)
	return err
}

// walk visits c and its descendants in pre-order.
func walk(c tree.Component, fn func(tree.Component)) {
	fn(c)
	if cc, ok := c.(tree.Composite); ok {
		for i := range cc.NumComponents() {
			walk(cc.Child(i), fn)
		}
	}
}

func countComponents(root tree.Component) int {
	n := 0
	walk(root, func(tree.Component) { n++ })
	return n
}

// stateOwners returns every component below root that carries numeric
// state, in tree order.
func stateOwners(root tree.Component) []state.Owner {
	var owners []state.Owner
	walk(root, func(c tree.Component) {
		if o, ok := c.(state.Owner); ok && c.HasState() {
			owners = append(owners, o)
		}
	})
	return owners
}

// resolve looks up each path relative to root.
func resolve(root tree.Component, paths []string) ([]tree.Component, error) {
	out := make([]tree.Component, 0, len(paths))
	for _, p := range paths {
		c, err := tree.FindComponent(root, p)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("no component at %q", p)
		}
		out = append(out, c)
	}
	return out, nil
}

// nodeOf converts a component subtree for ux rendering. Non-default
// properties become the detail text.
func nodeOf(c tree.Component, isRoot bool) *ux.Node {
	n := &ux.Node{Number: c.Number(), Class: c.ClassTag(), Name: c.Name()}
	if isRoot {
		n.Number = -1
	}
	if pl := c.Properties(); pl != nil {
		var parts []string
		for _, info := range pl.All() {
			if !info.ShouldWrite(c) {
				continue
			}
			if v, err := info.Format(c); err == nil {
				parts = append(parts, info.Name+"="+v)
			}
		}
		n.Detail = strings.Join(parts, " ")
	}
	if cc, ok := c.(tree.Composite); ok {
		for i := range cc.NumComponents() {
			n.Add(nodeOf(cc.Child(i), false))
		}
	}
	return n
}
