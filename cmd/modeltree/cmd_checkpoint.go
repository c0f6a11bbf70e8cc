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
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/modeltree/services/modeltree/checkpoint"
	"github.com/AleutianAI/modeltree/services/modeltree/state"
)

// errDifferent is returned by checkpoint diff when the snapshots differ.
// main exits with status 1 without printing it.
var errDifferent = errors.New("snapshots differ")

func newCheckpointCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checkpoint",
		Aliases: []string{"cp"},
		Short:   "Save, inspect and restore state snapshots",
	}
	cmd.AddCommand(
		newCheckpointSaveCmd(a),
		newCheckpointListCmd(a),
		newCheckpointShowCmd(a),
		newCheckpointDiffCmd(a),
		newCheckpointRestoreCmd(a),
		newCheckpointDeleteCmd(a),
	)
	return cmd
}

// withStore opens the configured store for the duration of fn.
func (a *app) withStore(fn func(*checkpoint.Store) error) (err error) {
	s, err := checkpoint.Open(a.cfg.Checkpoint.StoreConfig(a.logger.Slog()), checkpoint.WithLogger(a.logger.Slog()))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// lookup resolves a checkpoint ID. "latest" names the newest checkpoint.
func lookup(ctx context.Context, s *checkpoint.Store, arg string) (uuid.UUID, error) {
	if arg == "latest" {
		m, err := s.Latest(ctx, "")
		if err != nil {
			return uuid.Nil, err
		}
		return m.ID, nil
	}
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid checkpoint id %q: %w", arg, err)
	}
	return id, nil
}

// sourceOf is the label a model file's checkpoints are saved under.
func sourceOf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func (a *app) printMeta(m checkpoint.Meta) {
	a.printer.Field("id", m.ID)
	a.printer.Field("source", m.Source)
	if m.Note != "" {
		a.printer.Field("note", m.Note)
	}
	a.printer.Field("created", m.Created.Format(time.RFC3339))
	a.printer.Field("frames", m.Frames)
	a.printer.Field("ints", m.Ints)
	a.printer.Field("doubles", m.Doubles)
	a.printer.Field("size", m.Size)
}

func newCheckpointSaveCmd(a *app) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "save FILE",
		Short: "Snapshot the state of every component in a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			root, err := a.loadModel(ctx, args[0])
			if err != nil {
				return err
			}
			snap := state.Capture(stateOwners(root))
			return a.withStore(func(s *checkpoint.Store) error {
				m, err := s.Save(ctx, sourceOf(args[0]), note, snap)
				if err != nil {
					return err
				}
				a.printer.Success(fmt.Sprintf("saved %s (%d frames)", m.ID, m.Frames))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&note, "note", "m", "", "free-form note stored with the checkpoint")
	return cmd
}

func newCheckpointListCmd(a *app) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List checkpoints, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if source != "" {
				source = sourceOf(source)
			}
			return a.withStore(func(s *checkpoint.Store) error {
				metas, err := s.List(cmd.Context(), source)
				if err != nil {
					return err
				}
				for _, m := range metas {
					line := fmt.Sprintf("%s  %s  %d frames", m.Created.Format(time.RFC3339), m.Source, m.Frames)
					if m.Note != "" {
						line += "  " + m.Note
					}
					a.printer.Field(m.ID.String(), line)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "only checkpoints saved from this model file")
	return cmd
}

func newCheckpointShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print a checkpoint's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *checkpoint.Store) error {
				id, err := lookup(cmd.Context(), s, args[0])
				if err != nil {
					return err
				}
				m, err := s.Meta(cmd.Context(), id)
				if err != nil {
					return err
				}
				a.printMeta(m)
				return nil
			})
		},
	}
}

func newCheckpointDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff ID (ID | FILE)",
		Short: "Compare a checkpoint with another or with a model file's current state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var other *state.NumericState
			if _, err := uuid.Parse(args[1]); err != nil && args[1] != "latest" {
				root, err := a.loadModel(ctx, args[1])
				if err != nil {
					return err
				}
				other = state.Capture(stateOwners(root))
			}
			return a.withStore(func(s *checkpoint.Store) error {
				id, err := lookup(ctx, s, args[0])
				if err != nil {
					return err
				}
				snap, _, err := s.Load(ctx, id)
				if err != nil {
					return err
				}
				if other == nil {
					oid, err := lookup(ctx, s, args[1])
					if err != nil {
						return err
					}
					if other, _, err = s.Load(ctx, oid); err != nil {
						return err
					}
				}
				if m := state.Diff(snap, other, state.DefaultNamer); m != nil {
					a.printer.Warning(m.String())
					a.printer.Box("diff", fmt.Sprintf("%s: %v\n%s: %v", args[0], m.A, args[1], m.B))
					return errDifferent
				}
				a.printer.Success("snapshots are equal")
				return nil
			})
		},
	}
}

func newCheckpointRestoreCmd(a *app) *cobra.Command {
	var inPlace bool
	cmd := &cobra.Command{
		Use:   "restore ID FILE",
		Short: "Write a checkpoint's state into a model file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			root, err := a.loadModel(ctx, args[1])
			if err != nil {
				return err
			}
			err = a.withStore(func(s *checkpoint.Store) error {
				id, err := lookup(ctx, s, args[0])
				if err != nil {
					return err
				}
				snap, _, err := s.Load(ctx, id)
				if err != nil {
					return err
				}
				owners := stateOwners(root)
				if err := snap.Bind(owners); err != nil {
					return err
				}
				return snap.SetState(owners)
			})
			if err != nil {
				return err
			}
			text, err := format(ctx, root, a.cfg.Tree.CompactPaths)
			if err != nil {
				return err
			}
			return a.emit(text, args[1], inPlace)
		},
	}
	cmd.Flags().BoolVarP(&inPlace, "write", "w", false, "rewrite the file instead of printing")
	return cmd
}

func newCheckpointDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete checkpoints",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *checkpoint.Store) error {
				var failed []string
				for _, arg := range args {
					id, err := lookup(cmd.Context(), s, arg)
					if err == nil {
						err = s.Delete(cmd.Context(), id)
					}
					if err != nil {
						a.printer.Error(fmt.Sprintf("%s: %v", arg, err))
						failed = append(failed, arg)
						continue
					}
					a.printer.Success("deleted " + id.String())
				}
				if len(failed) > 0 {
					return fmt.Errorf("could not delete %s", strings.Join(failed, ", "))
				}
				return nil
			})
		},
	}
}
