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
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/modeltree/services/modeltree/deps"
	"github.com/AleutianAI/modeltree/services/modeltree/history"
	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

// checkLimit bounds how many files check loads at once.
const checkLimit = 8

func newFmtCmd(a *app) *cobra.Command {
	var compact, inPlace bool
	cmd := &cobra.Command{
		Use:   "fmt FILE",
		Short: "Load a model file and write it back in canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.loadModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("compact") {
				compact = a.cfg.Tree.CompactPaths
			}
			text, err := format(cmd.Context(), root, compact)
			if err != nil {
				return err
			}
			return a.emit(text, args[0], inPlace)
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "write references as number paths")
	cmd.Flags().BoolVarP(&inPlace, "write", "w", false, "rewrite the file instead of printing")
	return cmd
}

// checker is implemented by models with their own consistency checks.
type checker interface {
	Check() error
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Load model files and verify their references stay inside them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counts := make([]int, len(args))
			errs := make([]error, len(args))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(checkLimit)
			for i, path := range args {
				g.Go(func() error {
					root, err := a.loadModel(ctx, path)
					if err == nil {
						if c, ok := root.(checker); ok {
							err = c.Check()
						} else {
							err = tree.CheckReferenceContainment(root)
						}
					}
					if err != nil {
						errs[i] = err
						return nil
					}
					counts[i] = countComponents(root)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			failed := 0
			for i, path := range args {
				if errs[i] != nil {
					failed++
					a.printer.Error(fmt.Sprintf("%s: %v", path, errs[i]))
					continue
				}
				a.printer.Success(fmt.Sprintf("%s: %d components", path, counts[i]))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

func newTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree FILE",
		Short: "Print the component hierarchy of a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.loadModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.printer.Tree(nodeOf(root, true))
			return nil
		},
	}
}

func newDepsCmd(a *app) *cobra.Command {
	var (
		apply, step, inPlace bool
		undo, redo           int
	)
	cmd := &cobra.Command{
		Use:   "deps FILE PATH...",
		Short: "Show what deleting components would remove and repair",
		Long: `Resolves each PATH inside FILE and computes everything that must be
deleted with it, plus the components whose soft references are repaired.
With --apply the removal is carried out and the edited model is written.

With --step every PATH is removed as its own edit, in order; a PATH
already removed by an earlier edit is skipped. --undo and --redo then
walk back and forth through those edits. Only the newest
history.capacity edits can be undone.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			root, err := a.loadModel(ctx, args[0])
			if err != nil {
				return err
			}
			seeds, err := resolve(root, args[1:])
			if err != nil {
				return err
			}
			groups := [][]tree.Component{seeds}
			if step {
				groups = groups[:0]
				for _, c := range seeds {
					groups = append(groups, []tree.Component{c})
				}
			}

			log := history.New(a.cfg.History.Capacity, history.WithLogger(a.logger.Slog()))
			for _, group := range groups {
				if apply && tree.Root(group[0]) != root {
					a.printer.Warning(tree.DiagnosticName(group[0]) + ": already removed")
					continue
				}
				edit, err := deps.PlanRemoval(ctx, group, deps.WithLogger(a.logger.Slog()))
				if err != nil {
					return err
				}
				a.printEdit(edit)
				if !apply {
					continue
				}
				if err := log.Do(edit); err != nil {
					return err
				}
			}
			if !apply {
				return nil
			}

			for i := range undo {
				if _, err := log.Undo(); err != nil {
					return fmt.Errorf("undo %d of %d: %w", i+1, undo, err)
				}
			}
			for i := range redo {
				if _, err := log.Redo(); err != nil {
					return fmt.Errorf("redo %d of %d: %w", i+1, redo, err)
				}
			}
			a.logger.Info("removal applied",
				"edits", len(groups),
				"undone", undo,
				"redone", redo,
				"history", strings.Join(log.Descriptions(), "; "),
			)
			text, err := format(ctx, root, a.cfg.Tree.CompactPaths)
			if err != nil {
				return err
			}
			return a.emit(text, args[0], inPlace)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "remove the components and print the result")
	cmd.Flags().BoolVar(&step, "step", false, "remove each PATH as a separate edit")
	cmd.Flags().CountVar(&undo, "undo", "undo the newest edit after applying; repeat or give a count for more")
	cmd.Flags().CountVar(&redo, "redo", "redo the newest undone edit; repeat or give a count for more")
	cmd.Flags().BoolVarP(&inPlace, "write", "w", false, "rewrite the file with the result")
	return cmd
}

// printEdit lists what a planned removal deletes and repairs.
func (a *app) printEdit(edit *deps.RemoveEdit) {
	a.printer.Title("Delete")
	for _, c := range edit.Delete {
		a.printer.Field(tree.PathName(c), c.ClassTag())
	}
	if len(edit.Update) > 0 {
		a.printer.Title("Update")
		for _, c := range edit.Update {
			a.printer.Field(tree.PathName(c), c.ClassTag())
		}
	}
}
