// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Node {
	root := &Node{Number: -1, Class: "Model", Name: "mech"}
	ps := root.Add(&Node{Number: 0, Class: "ComponentList", Name: "particles"})
	ps.Add(&Node{Number: 0, Class: "Particle", Name: "p0", Detail: "mass=1"})
	ps.Add(&Node{Number: 3, Class: "Particle"})
	root.Add(&Node{Number: 1, Class: "ComponentList", Name: "springs"})
	return root
}

// TestPrinter_TreePlain verifies connectors and labels without styling.
func TestPrinter_TreePlain(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, ModePlain).Tree(sampleTree())
	want := `Model mech
├── 0 ComponentList particles
│   ├── 0 Particle p0 mass=1
│   └── 3 Particle
└── 1 ComponentList springs
`
	assert.Equal(t, want, buf.String())
}

// TestPrinter_TreeMachine verifies the tab-separated form.
func TestPrinter_TreeMachine(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, ModeMachine).Tree(sampleTree())
	want := "0\t-1\tModel\tmech\t\n" +
		"1\t0\tComponentList\tparticles\t\n" +
		"2\t0\tParticle\tp0\tmass=1\n" +
		"2\t3\tParticle\t\t\n" +
		"1\t1\tComponentList\tsprings\t\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 5, sampleTree().Count())
}

// TestPrinter_Status covers status lines per mode.
func TestPrinter_Status(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModePlain, "✓ saved\n⚠ cycle\n✗ failed\nfile: m.mdl\n"},
		{ModeMachine, "OK\tsaved\nWARN\tcycle\nERROR\tfailed\nfile\tm.mdl\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinter(&buf, tt.mode)
			p.Success("saved")
			p.Warning("cycle")
			p.Error("failed")
			p.Field("file", "m.mdl")
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

// TestPrinter_TitleAndBox verifies machine mode drops titles and flattens
// boxes.
func TestPrinter_TitleAndBox(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeMachine)
	p.Title("Checkpoints")
	p.Box("diff", "a\nb")
	assert.Equal(t, "diff\ta\\nb\n", buf.String())

	buf.Reset()
	p = NewPrinter(&buf, ModeRich)
	p.Box("diff", "a")
	assert.Contains(t, buf.String(), "diff")
	assert.Contains(t, buf.String(), "╭")
}

// TestParseMode covers accepted spellings.
func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"rich": ModeRich, "FULL": ModeRich, "plain": ModePlain,
		"minimal": ModePlain, "machine": ModeMachine, " quiet ": ModeMachine,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("loud")
	assert.Error(t, err)
}

// TestDetectMode verifies the environment override and the non-terminal
// fallback.
func TestDetectMode(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	t.Setenv("MODELTREE_OUTPUT", "")
	assert.False(t, IsTerminal(f))
	assert.False(t, IsTerminal(nil))
	assert.Equal(t, ModeMachine, DetectMode(f))

	t.Setenv("MODELTREE_OUTPUT", "plain")
	assert.Equal(t, ModePlain, DetectMode(f))
}
