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
	"slices"
	"strconv"
	"strings"

	"github.com/AleutianAI/modeltree/services/modeltree/props"
	"github.com/AleutianAI/modeltree/services/modeltree/textfmt"
)

// PropertySeparator separates a component path from a property name.
const PropertySeparator = ':'

// =============================================================================
// Ancestry
// =============================================================================

// parentOf returns c's parent as a Component, nil-safe.
func parentOf(c Component) Component {
	if p := c.Parent(); p != nil {
		return p
	}
	return nil
}

// Depth returns the number of ancestors of c.
func Depth(c Component) int {
	d := 0
	for p := parentOf(c); p != nil; p = parentOf(p) {
		d++
	}
	return d
}

// Root returns the topmost ancestor of c, or c itself.
func Root(c Component) Component {
	for p := parentOf(c); p != nil; p = parentOf(p) {
		c = p
	}
	return c
}

// FindCommonAncestor returns the deepest component that is c1 or an
// ancestor of c1 and also c2 or an ancestor of c2, or nil.
func FindCommonAncestor(c1, c2 Component) Component {
	d1, d2 := Depth(c1), Depth(c2)
	for d2 > d1 {
		c2 = parentOf(c2)
		d2--
	}
	for d1 > d2 {
		c1 = parentOf(c1)
		d1--
	}
	for d1 > 0 && c1 != c2 {
		c1 = parentOf(c1)
		c2 = parentOf(c2)
		d1--
	}
	if c1 == c2 {
		return c1
	}
	return nil
}

// FindCommonAncestorOf returns the common ancestor of all comps, or nil.
func FindCommonAncestorOf(comps []Component) Component {
	var ancestor Component
	for i, c := range comps {
		if i == 0 {
			ancestor = c
		} else {
			ancestor = FindCommonAncestor(ancestor, c)
		}
		if ancestor == nil {
			return nil
		}
	}
	return ancestor
}

// AreConnected reports whether c1 and c2 are in the same hierarchy.
func AreConnected(c1, c2 Component) bool {
	return FindCommonAncestor(c1, c2) != nil
}

// AreConnectedVia reports whether the hierarchy path between c1 and c2
// passes through via, which may be either endpoint or any component on
// the path between them.
//
// Components use it in ConnectToHierarchy to act only when the connection
// being made is the one that joins them to a referenced component.
func AreConnectedVia(c1, c2, via Component) bool {
	d1, d2 := Depth(c1), Depth(c2)
	found := false
	for d1 > d2 {
		if c1 == via {
			found = true
		}
		c1 = parentOf(c1)
		d1--
	}
	for d2 > d1 {
		if c2 == via {
			found = true
		}
		c2 = parentOf(c2)
		d2--
	}
	for ; d1 >= 0; d1-- {
		if c1 == via || c2 == via {
			found = true
		}
		if c1 == c2 {
			return found
		}
		c1 = parentOf(c1)
		c2 = parentOf(c2)
	}
	return false
}

// IsAncestorOf reports whether a is a strict ancestor of c.
func IsAncestorOf(a, c Component) bool {
	for p := parentOf(c); p != nil; p = parentOf(p) {
		if p == a {
			return true
		}
	}
	return false
}

// WithinHierarchy reports whether c equals ancestor or descends from it.
func WithinHierarchy(c, ancestor Component) bool {
	if ancestor == nil {
		return false
	}
	for ; c != nil; c = parentOf(c) {
		if c == ancestor {
			return true
		}
	}
	return false
}

// RecursivelyContains reports whether c is a strict descendant of ancestor.
func RecursivelyContains(ancestor, c Component) bool {
	if c == nil || ancestor == c {
		return false
	}
	return IsAncestorOf(ancestor, c)
}

func startComposite(c Component) Composite {
	if cc, ok := c.(Composite); ok {
		return cc
	}
	return c.Parent()
}

// NearestEncapsulatingAncestor returns the closest composite, starting
// with c itself, whose references are closed, or nil.
func NearestEncapsulatingAncestor(c Component) Composite {
	for a := startComposite(c); a != nil; a = a.Parent() {
		if a.ReferencesClosed() {
			return a
		}
	}
	return nil
}

// FarthestEncapsulatingAncestor returns the outermost composite, starting
// with c itself, whose references are closed, or nil.
func FarthestEncapsulatingAncestor(c Component) Composite {
	var farthest Composite
	for a := startComposite(c); a != nil; a = a.Parent() {
		if a.ReferencesClosed() {
			farthest = a
		}
	}
	return farthest
}

// =============================================================================
// Lookup by Path
// =============================================================================

// FindComponent resolves a path relative to c.
//
// # Inputs
//
//   - c: Starting component.
//   - path: Segments separated by '/'. ".." is the parent, "." is c, a
//     leading '/' starts at the root, and a decimal segment is a number.
//
// # Outputs
//
//   - Component: The match, or nil if nothing matches or path is "null".
//   - error: ErrBadPath for "//" or a segment containing '.'.
func FindComponent(c Component, path string) (Component, error) {
	switch path {
	case ".":
		return c, nil
	case "..":
		if c == nil {
			return nil, nil
		}
		return parentOf(c), nil
	case "null":
		return nil, nil
	}
	if c == nil {
		return nil, nil
	}
	if strings.Contains(path, "//") {
		return nil, fmt.Errorf("%w: double '/' in '%s'", ErrBadPath, path)
	}
	cur := c
	rest := path
	if strings.HasPrefix(rest, "/") {
		cur = Root(c)
		rest = rest[1:]
		if rest == "" {
			return composite(cur), nil
		}
	}
	for rest != "" {
		seg, tail, more := strings.Cut(rest, "/")
		switch seg {
		case "..":
			cur = parentOf(cur)
		case ".":
		default:
			if strings.ContainsRune(seg, '.') {
				return nil, fmt.Errorf("%w: segment '%s' contains '.'", ErrBadPath, seg)
			}
			cc, ok := cur.(Composite)
			if !ok {
				return nil, nil
			}
			cur = cc.Get(seg)
		}
		if cur == nil {
			return nil, nil
		}
		if more && tail == "" {
			// trailing slash names a composite
			return composite(cur), nil
		}
		rest = tail
	}
	return cur, nil
}

func composite(c Component) Component {
	if _, ok := c.(Composite); ok {
		return c
	}
	return nil
}

// PropertyRef is a resolved property path.
type PropertyRef struct {
	Host Component
	Info *props.Info
}

// Get returns the property value.
func (r PropertyRef) Get() (any, error) { return r.Info.Get(r.Host) }

// Set assigns the property value.
func (r PropertyRef) Set(v any) error { return r.Info.Set(r.Host, v) }

// FindProperty resolves a property path relative to c.
//
// The current syntax is "compPath:prop", where compPath may be empty.
// The legacy form "compPath/prop" is still read; a warning is logged
// with the colon form to use instead.
func FindProperty(c Component, path string, logger *slog.Logger) (PropertyRef, bool, error) {
	ref, ok, err := findPropertyColon(c, path)
	if ok || strings.ContainsRune(path, PropertySeparator) || path == "." {
		return ref, ok, err
	}
	ref, ok, lerr := findPropertyLegacy(c, path)
	if !ok {
		return ref, false, err
	}
	if lerr != nil {
		return ref, false, lerr
	}
	if logger == nil {
		logger = slog.Default()
	}
	i := strings.LastIndexByte(path, '/')
	logger.Warn("old style property path",
		slog.String("path", path),
		slog.String("replacement", path[:i]+":"+path[i+1:]),
	)
	return ref, true, nil
}

func propertyOf(host Component, name string) (PropertyRef, bool) {
	if host == nil {
		return PropertyRef{}, false
	}
	info := host.Properties().Get(name)
	if info == nil {
		return PropertyRef{}, false
	}
	return PropertyRef{Host: host, Info: info}, true
}

func findPropertyColon(c Component, path string) (PropertyRef, bool, error) {
	host := c
	prop := path
	if compPath, p, ok := strings.Cut(path, string(PropertySeparator)); ok {
		prop = p
		if compPath != "" {
			found, err := FindComponent(c, compPath)
			if err != nil {
				return PropertyRef{}, false, err
			}
			host = found
		}
	}
	if strings.ContainsRune(prop, PropertySeparator) {
		return PropertyRef{}, false, fmt.Errorf("%w: multiple ':' in '%s'", ErrBadPath, path)
	}
	if strings.ContainsRune(prop, '/') {
		return PropertyRef{}, false, nil
	}
	ref, ok := propertyOf(host, prop)
	return ref, ok, nil
}

func findPropertyLegacy(c Component, path string) (PropertyRef, bool, error) {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 || i == len(path)-1 {
		return PropertyRef{}, false, nil
	}
	host, err := FindComponent(c, path[:i])
	if err != nil {
		return PropertyRef{}, false, err
	}
	ref, ok := propertyOf(host, path[i+1:])
	return ref, ok, nil
}

// =============================================================================
// Path Names
// =============================================================================

// usableName returns c's name if it resolves back to c in its parent.
func usableName(c Component) string {
	name := c.Name()
	if name == "" {
		return ""
	}
	if p := c.Parent(); p != nil && p.Get(name) != c {
		return ""
	}
	return name
}

func pathSegment(c Component, compact bool) string {
	if compact {
		if sn, ok := c.(shortNamer); ok && sn.ShortName() != "" {
			if p := c.Parent(); p == nil || p.Get(sn.ShortName()) == c {
				return sn.ShortName()
			}
		}
		if c.Parent() != nil {
			return strconv.Itoa(c.Number())
		}
		return c.Name()
	}
	if name := usableName(c); name != "" {
		return name
	}
	return strconv.Itoa(c.Number())
}

// PathName returns the absolute path of c: the names, or numbers for
// unnamed components, from the root down.
func PathName(c Component) string {
	if c == nil {
		return "null"
	}
	var segs []string
	for x := c; x != nil; x = parentOf(x) {
		segs = append(segs, pathSegment(x, false))
	}
	slices.Reverse(segs)
	return strings.Join(segs, "/")
}

// RelativePathName returns the path from ref to target. The result uses
// ".." to climb when ref is not an ancestor. When the two share no
// ancestor it is '/' followed by target's full path.
func RelativePathName(ref, target Component, compact bool) string {
	if target == nil {
		return "null"
	}
	if ref == nil {
		return target.Name()
	}
	if ref == target {
		return "."
	}
	rdepth, tdepth := Depth(ref), Depth(target)
	d := min(rdepth, tdepth)
	r, c := ref, target
	for range rdepth - d {
		r = parentOf(r)
	}
	var segs []string
	for range tdepth - d {
		segs = append(segs, pathSegment(c, compact))
		c = parentOf(c)
	}
	for c != r && c != nil {
		segs = append(segs, pathSegment(c, compact))
		c = parentOf(c)
		r = parentOf(r)
		d--
	}
	slices.Reverse(segs)
	var sb strings.Builder
	if c != nil && c == r {
		for range rdepth - d {
			sb.WriteString("../")
		}
	} else {
		sb.WriteString("/")
	}
	sb.WriteString(strings.Join(segs, "/"))
	return strings.TrimSuffix(sb.String(), "/")
}

// WritePathName returns the quoted path from ancestor to c as written in
// the text format, or null.
func WritePathName(ancestor, c Component, compact bool) string {
	if c == nil {
		return "null"
	}
	return textfmt.Quote(RelativePathName(ancestor, c, compact))
}

// PropertyPathName returns "compPath:prop" relative to ancestor.
func PropertyPathName(ancestor Component, ref PropertyRef, compact bool) string {
	if ref.Host == ancestor {
		return ":" + ref.Info.Name
	}
	return RelativePathName(ancestor, ref.Host, compact) + ":" + ref.Info.Name
}

// DiagnosticName returns "ClassTag path" for messages.
func DiagnosticName(c Component) string {
	if c == nil {
		return "null"
	}
	if c.Parent() == nil && c.Name() == "" {
		return c.ClassTag()
	}
	return c.ClassTag() + " " + PathName(c)
}
