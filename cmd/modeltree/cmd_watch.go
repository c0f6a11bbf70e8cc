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
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/modeltree/services/modeltree/mech"
	"github.com/AleutianAI/modeltree/services/modeltree/telemetry"
	"github.com/AleutianAI/modeltree/services/modeltree/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var keepState bool
	cmd := &cobra.Command{
		Use:   "watch PATH...",
		Short: "Reload model files as they change",
		Long: `Watches files and directories and reloads every model file that
changes. With --keep-state, particle state carries over between reloads
for particles whose state layout is unchanged.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, ctx := errgroup.WithContext(cmd.Context())

			if addr := a.cfg.Metrics.Listen; addr != "" {
				ln, err := net.Listen("tcp", addr)
				if err != nil {
					return fmt.Errorf("listen on %s: %w", addr, err)
				}
				a.logger.Info("serving metrics", "addr", ln.Addr().String())
				g.Go(func() error {
					return telemetry.ServeMetrics(ctx, ln, a.logger.Slog())
				})
			}

			reloads, err := watch.Watch(ctx, args, a.classes, a.cfg.Watch.Options(a.logger.Slog()))
			if err != nil {
				return err
			}
			g.Go(func() error {
				a.follow(ctx, reloads, keepState)
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&keepState, "keep-state", false, "carry particle state across reloads")
	return cmd
}

// follow reports each reload until the channel closes.
func (a *app) follow(ctx context.Context, reloads <-chan watch.Reload, keepState bool) {
	models := make(map[string]*mech.Model)
	policy := a.cfg.Tree.Policy()
	for r := range reloads {
		switch {
		case r.Err != nil:
			a.printer.Error(fmt.Sprintf("%s: %v", r.Path, r.Err))
		case r.Removed:
			delete(models, r.Path)
			a.printer.Warning(r.Path + ": removed")
		default:
			applyPolicy(r.Root, policy)
			if m, ok := r.Root.(*mech.Model); ok && keepState {
				a.carryState(m, models, r.Path)
			}
			a.printer.Success(fmt.Sprintf("%s: %d components", r.Path, countComponents(r.Root)))
		}
	}
	if err := ctx.Err(); err != nil {
		a.logger.Debug("watch stopped", "reason", err)
	}
}

// carryState moves the state of the previous load of path into m and
// keeps m for the next reload.
func (a *app) carryState(m *mech.Model, models map[string]*mech.Model, path string) {
	if prev := models[path]; prev != nil {
		if err := m.CarryState(prev); err != nil {
			a.logger.Warn("state not carried over", "path", path, "error", err)
		}
	}
	models[path] = m
}
