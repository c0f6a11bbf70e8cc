// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package props

import (
	"errors"
	"testing"

	"github.com/AleutianAI/modeltree/services/modeltree/textfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type color int

type host struct {
	mass   float64
	count  int
	on     bool
	label  string
	pos    []float64
	tint   color
	damp   float64
	modes  map[string]Mode
	failOn string
}

func (h *host) PropertyMode(name string) Mode {
	if m, ok := h.modes[name]; ok {
		return m
	}
	return Inherited
}

func (h *host) SetPropertyMode(name string, mode Mode) {
	if h.modes == nil {
		h.modes = make(map[string]Mode)
	}
	h.modes[name] = mode
}

var baseProps = NewList(nil,
	Float("mass", "mass", 1, func(h *host) float64 { return h.mass }, func(h *host, v float64) { h.mass = v }),
	Int("count", "count", 0, func(h *host) int { return h.count }, func(h *host, v int) { h.count = v }),
)

var hostProps = NewList(baseProps,
	Bool("on", "switch", true, func(h *host) bool { return h.on }, func(h *host, v bool) { h.on = v }),
	String("label", "label", "", func(h *host) string { return h.label }, func(h *host, v string) error {
		if v == h.failOn && v != "" {
			return errors.New("rejected")
		}
		h.label = v
		return nil
	}),
	Vector("pos", "position", 3, func(h *host) []float64 { return h.pos }, func(h *host, v []float64) { h.pos = v }),
	Enum("tint", "tint", color(0), []string{"Red", "Green"}, func(h *host) color { return h.tint }, func(h *host, v color) { h.tint = v }),
	InheritableFloat("damping", "damping", 0, func(h *host) float64 { return h.damp }, func(h *host, v float64) { h.damp = v }),
	Float("mass", "overridden mass", 2, func(h *host) float64 { return h.mass }, func(h *host, v float64) { h.mass = v }),
)

// TestList_Inheritance verifies parent entries come first and overrides
// replace in place.
func TestList_Inheritance(t *testing.T) {
	names := make([]string, 0, hostProps.Len())
	for _, info := range hostProps.All() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"mass", "count", "on", "label", "pos", "tint", "damping"}, names)
	assert.Equal(t, "overridden mass", hostProps.Get("mass").Help)
	assert.Nil(t, hostProps.Get("missing"))

	var nilList *List
	assert.Nil(t, nilList.Get("x"))
	assert.Equal(t, 0, nilList.Len())
}

// TestScanAndFormat verifies every typed property reads what it writes.
func TestScanAndFormat(t *testing.T) {
	h := &host{on: true, pos: make([]float64, 3)}
	inputs := map[string]string{
		"mass":    "2.5",
		"count":   "7",
		"on":      "false",
		"label":   `"a b"`,
		"pos":     "[ 1 2 3 ]",
		"tint":    "Green",
		"damping": "0.1",
	}
	for name, src := range inputs {
		info := hostProps.Get(name)
		require.NotNil(t, info, name)
		require.NoError(t, info.Scan(textfmt.NewStringTokenizer(src), h), name)
		got, err := info.Format(h)
		require.NoError(t, err)
		assert.Equal(t, src, got, name)
	}
	assert.Equal(t, Explicit, h.PropertyMode("damping"))
}

func TestShouldWrite(t *testing.T) {
	h := &host{mass: 2, on: true, pos: []float64{0, 0, 0}}
	assert.False(t, hostProps.Get("mass").ShouldWrite(h))
	assert.False(t, hostProps.Get("pos").ShouldWrite(h))
	assert.False(t, hostProps.Get("damping").ShouldWrite(h))

	h.pos[1] = 1
	assert.True(t, hostProps.Get("pos").ShouldWrite(h))
	h.SetPropertyMode("damping", Explicit)
	assert.True(t, hostProps.Get("damping").ShouldWrite(h))
	assert.Equal(t, Explicit, hostProps.Get("mass").Mode(h))
}

func TestErrors(t *testing.T) {
	h := &host{failOn: "bad"}
	err := hostProps.Get("mass").Set("not a host", 1.0)
	assert.ErrorIs(t, err, ErrWrongHost)

	err = hostProps.Get("mass").Set(h, "nope")
	assert.ErrorIs(t, err, ErrWrongType)

	err = hostProps.Get("label").Scan(textfmt.NewStringTokenizer(`"bad"`), h)
	assert.EqualError(t, err, "rejected")

	err = hostProps.Get("pos").Scan(textfmt.NewStringTokenizer("[ 1 2 ]"), h)
	assert.ErrorIs(t, err, textfmt.ErrSyntax)

	err = hostProps.Get("tint").Scan(textfmt.NewStringTokenizer("Blue"), h)
	assert.Error(t, err)

	_, err = hostProps.Get("count").Get(42)
	assert.ErrorIs(t, err, ErrWrongHost)
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{Explicit, Inherited, Inactive} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("Sometimes")
	assert.Error(t, err)
}
