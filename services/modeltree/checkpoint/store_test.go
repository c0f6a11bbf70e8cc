// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/modeltree/services/modeltree/mech"
)

func newModel(t *testing.T) *mech.Model {
	t.Helper()
	m := mech.NewModel("m")
	require.NoError(t, m.AddParticle(mech.NewParticle("a", 1, 1, 2, 3)))
	require.NoError(t, m.AddParticle(mech.NewParticle("b", 2, 4, 5, 6)))
	return m
}

func stepClock() func() time.Time {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig(), WithClock(stepClock()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// TestStore_SaveLoad verifies a saved snapshot restores a model.
func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	m := newModel(t)

	meta, err := s.Save(ctx, "m.mdl", "before", m.CaptureState())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, meta.ID)
	assert.Equal(t, "m.mdl", meta.Source)
	assert.Equal(t, "before", meta.Note)
	assert.Equal(t, 2, meta.Frames)
	assert.Equal(t, 2, meta.Ints)
	assert.Equal(t, 12, meta.Doubles)
	assert.Equal(t, 28+8+96, meta.Size)

	a := m.Particle("a")
	a.SetPosition(9, 9, 9)

	snap, got, err := s.Load(ctx, meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
	require.NoError(t, snap.Bind(m.Owners()))
	require.NoError(t, m.RestoreState(snap))
	assert.Equal(t, []float64{1, 2, 3}, a.Position())
	assert.True(t, snap.Equal(m.CaptureState()))
}

// TestStore_List verifies ordering and source filtering.
func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	snap := newModel(t).CaptureState()

	first, err := s.Save(ctx, "a", "", snap)
	require.NoError(t, err)
	second, err := s.Save(ctx, "b", "", snap)
	require.NoError(t, err)
	third, err := s.Save(ctx, "a", "", snap)
	require.NoError(t, err)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID},
		[]uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	onlyA, err := s.List(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	latest, err := s.Latest(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, third.ID, latest.ID)

	_, err = s.Latest(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestStore_Delete verifies deleted checkpoints are gone.
func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	meta, err := s.Save(ctx, "x", "", newModel(t).CaptureState())
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, meta.ID))

	_, _, err = s.Load(ctx, meta.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Meta(ctx, meta.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, meta.ID), ErrNotFound)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

// TestStore_Persistent verifies checkpoints survive reopening.
func TestStore_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	meta, err := s.Save(ctx, "disk", "", newModel(t).CaptureState())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()
	snap, got, err := s.Load(ctx, meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, got.ID)
	assert.True(t, meta.Created.Equal(got.Created))
	assert.Equal(t, 2, snap.NumFrames())
}

// TestOpen_Errors covers invalid configurations.
func TestOpen_Errors(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorContains(t, err, "path is required")

	cfg := DefaultConfig(t.TempDir())
	cfg.GCDiscardRatio = 2
	_, err = Open(cfg)
	assert.ErrorContains(t, err, "ratio must be between 0 and 1")
}

// TestConfig_Validate covers the GC and path checks.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"default", DefaultConfig("/tmp/x"), ""},
		{"memory", InMemoryConfig(), ""},
		{"gc off ignores ratio", Config{Path: "/tmp/x", GCDiscardRatio: 5}, ""},
		{"no path", Config{}, "path is required"},
		{"negative interval", Config{Path: "/tmp/x", GCInterval: -time.Second}, "negative"},
		{"bad ratio", Config{Path: "/tmp/x", GCInterval: time.Second, GCDiscardRatio: 1}, "between 0 and 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
	assert.False(t, InMemoryConfig().runsGC())
	assert.True(t, DefaultConfig("/tmp/x").runsGC())
}

// TestStore_GCRunsAndStops verifies the collector starts on a persistent
// store and Close waits for it.
func TestStore_GCRunsAndStops(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = 5 * time.Millisecond
	s, err := Open(cfg)
	require.NoError(t, err)
	require.NotNil(t, s.gc)

	_, err = s.Save(context.Background(), "m.mdl", "", newModel(t).CaptureState())
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Close())
}

// TestStore_CancelledContext verifies no transaction starts after cancel.
func TestStore_CancelledContext(t *testing.T) {
	s := openMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Save(ctx, "x", "", newModel(t).CaptureState())
	assert.ErrorIs(t, err, context.Canceled)
}
