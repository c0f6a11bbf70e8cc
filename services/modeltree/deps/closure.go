// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deps

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

// Option configures FindDependentComponents and PlanRemoval.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger that receives cycle warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// =============================================================================
// Dependency Graph
// =============================================================================

// dependents holds the components that reference one component.
type dependents struct {
	hard []tree.Component
	soft []tree.Component
}

// graph maps each referenced component to its referrers. It is built per
// query over the subtree that bounds the search.
type graph map[tree.Component]*dependents

func (g graph) entry(c tree.Component) *dependents {
	d := g[c]
	if d == nil {
		d = &dependents{}
		g[c] = d
	}
	return d
}

func buildGraph(root tree.Component) graph {
	g := make(graph)
	var walk func(c tree.Component)
	walk = func(c tree.Component) {
		for _, r := range c.HardReferences() {
			d := g.entry(r)
			d.hard = append(d.hard, c)
		}
		for _, r := range c.SoftReferences() {
			d := g.entry(r)
			d.soft = append(d.soft, c)
		}
		if cc, ok := c.(tree.Composite); ok {
			for i := range cc.NumComponents() {
				walk(cc.Child(i))
			}
		}
	}
	walk(root)
	return g
}

// of returns the referrers of c. For a composite these include the
// referrers of every descendant.
func (g graph) of(c tree.Component) dependents {
	cc, ok := c.(tree.Composite)
	if !ok {
		if d := g[c]; d != nil {
			return *d
		}
		return dependents{}
	}
	var all dependents
	var collect func(c tree.Component)
	collect = func(c tree.Component) {
		if d := g[c]; d != nil {
			all.hard = append(all.hard, d.hard...)
			all.soft = append(all.soft, d.soft...)
		}
		if cc, ok := c.(tree.Composite); ok {
			for i := range cc.NumComponents() {
				collect(cc.Child(i))
			}
		}
	}
	collect(cc)
	return all
}

// =============================================================================
// Closure Walk
// =============================================================================

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	visited
)

// orderedSet keeps insertion order and supports removal.
type orderedSet struct {
	items []tree.Component
	pos   map[tree.Component]int
}

func newOrderedSet() *orderedSet {
	return &orderedSet{pos: make(map[tree.Component]int)}
}

func (s *orderedSet) add(c tree.Component) {
	if _, ok := s.pos[c]; ok {
		return
	}
	s.pos[c] = len(s.items)
	s.items = append(s.items, c)
}

func (s *orderedSet) remove(c tree.Component) {
	if i, ok := s.pos[c]; ok {
		s.items[i] = nil
		delete(s.pos, c)
	}
}

type walker struct {
	g      graph
	state  map[tree.Component]visitState
	delete []tree.Component
	soft   *orderedSet
	logger *slog.Logger
	cycles int
}

// visit appends c after everything that hard-depends on it. A component
// met again while still on the walk stack closes a cycle; the walk logs it
// and carries on.
func (w *walker) visit(c tree.Component) {
	switch w.state[c] {
	case visited:
		return
	case visiting:
		w.cycles++
		referenceCycles.Inc()
		w.logger.Warn("reference cycle detected",
			slog.String("component", tree.DiagnosticName(c)),
		)
		return
	}
	w.state[c] = visiting
	d := w.g.of(c)
	for _, h := range d.hard {
		w.visit(h)
	}
	for _, s := range d.soft {
		if w.state[s] != visited {
			w.soft.add(s)
		}
	}
	w.state[c] = visited
	w.delete = append(w.delete, c)
	w.soft.remove(c)
}

func (w *walker) ancestorDeleted(c tree.Component) bool {
	for p := c.Parent(); p != nil; p = p.Parent() {
		if w.state[p] == visited {
			return true
		}
	}
	return false
}

// FindDependentComponents computes the delete closure of seeds.
//
// # Inputs
//
//   - ctx: Context for tracing.
//   - seeds: Components the caller wants deleted. They must share an
//     ancestor.
//   - opts: WithLogger for cycle warnings.
//
// # Outputs
//
//   - []tree.Component: Everything to delete, dependents before what they
//     depend on, grouped by parent in order of first appearance. A
//     component whose ancestor is also deleted is left out.
//   - []tree.Component: Soft referrers to repair with UpdateReferences,
//     excluding anything being deleted.
//   - error: tree.ErrNoCommonAncestor, or ErrMultipleRoots.
//
// # Description
//
// The reference graph covers the subtree of the farthest reference-closed
// ancestor of the seeds' common ancestor, or the whole tree when there is
// none. The walk tracks its own visit states; component flags are not
// touched.
func FindDependentComponents(ctx context.Context, seeds []tree.Component, opts ...Option) ([]tree.Component, []tree.Component, error) {
	_, span := startClosureSpan(ctx, len(seeds))
	defer span.End()
	if len(seeds) == 0 {
		return nil, nil, nil
	}
	o := buildOptions(opts)

	common := tree.FindCommonAncestorOf(seeds)
	if common == nil {
		return nil, nil, fmt.Errorf("find dependents: %w", tree.ErrNoCommonAncestor)
	}
	var bound tree.Component = tree.Root(common)
	if a := tree.FarthestEncapsulatingAncestor(common); a != nil {
		bound = a
	}

	w := &walker{
		g:      buildGraph(bound),
		state:  make(map[tree.Component]visitState),
		soft:   newOrderedSet(),
		logger: o.logger,
	}
	for _, c := range seeds {
		w.visit(c)
	}

	var update []tree.Component
	for _, c := range w.soft.items {
		if c != nil && !w.ancestorDeleted(c) {
			update = append(update, c)
		}
	}
	pruned := w.delete[:0:0]
	for _, c := range w.delete {
		if !w.ancestorDeleted(c) {
			pruned = append(pruned, c)
		}
	}
	grouped, err := groupByParent(pruned)
	if err != nil {
		return nil, nil, err
	}

	closureSize.Observe(float64(len(grouped)))
	span.SetAttributes(
		attribute.Int("modeltree.delete", len(grouped)),
		attribute.Int("modeltree.update", len(update)),
		attribute.Int("modeltree.cycles", w.cycles),
	)
	return grouped, update, nil
}

// groupByParent reorders comps so that siblings are contiguous. Parents
// keep the order in which they first appear; a single parentless
// component goes first.
func groupByParent(comps []tree.Component) ([]tree.Component, error) {
	var root tree.Component
	var order []tree.Composite
	groups := make(map[tree.Composite][]tree.Component)
	for _, c := range comps {
		p := c.Parent()
		if p == nil {
			if root != nil && root != c {
				return nil, fmt.Errorf("%w: %s and %s", ErrMultipleRoots, tree.PathName(root), tree.PathName(c))
			}
			root = c
			continue
		}
		if _, ok := groups[p]; !ok {
			order = append(order, p)
		}
		groups[p] = append(groups[p], c)
	}
	out := make([]tree.Component, 0, len(comps))
	if root != nil {
		out = append(out, root)
	}
	for _, p := range order {
		out = append(out, groups[p]...)
	}
	return out, nil
}
