// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

// Reload is the outcome of reloading one changed file.
type Reload struct {
	// Path is the absolute path of the file.
	Path string

	// Root is the loaded component, nil when Err is set or the file was
	// removed.
	Root tree.Component

	// Removed is true when the file no longer exists.
	Removed bool

	// Err is the load error, if any.
	Err error

	// Time is when the reload finished.
	Time time.Time
}

// Load reads one model file with classes.
func Load(ctx context.Context, path string, classes *tree.Registry, logger *slog.Logger) (tree.Component, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tree.LoadComponent(ctx, f, classes,
		tree.WithSource(path),
		tree.WithLoadLogger(logger),
	)
}

// Watch reloads paths whenever they change.
//
// # Inputs
//
//   - ctx: Cancelling it stops the watcher and closes the channel.
//   - paths: Files or directories, as for New.
//   - classes: Registry used to parse each file.
//   - opts: Optional watcher configuration (nil uses defaults).
//
// # Outputs
//
//   - <-chan Reload: One value per changed file per debounced batch, in
//     the order the batch lists them. Closed after ctx is done.
//   - error: Non-nil if the watcher cannot start.
//
// # Description
//
// Reloads happen on the watcher's debounce goroutine, so a slow consumer
// delays the next batch rather than losing it.
func Watch(ctx context.Context, paths []string, classes *tree.Registry, opts *Options) (<-chan Reload, error) {
	out := make(chan Reload)
	var w *Watcher
	handler := func(changes []Change) {
		for _, c := range changes {
			r := reload(ctx, c, classes, w.opts.Logger)
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}
	w, err := New(paths, handler, opts)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, err
	}
	go func() {
		<-ctx.Done()
		w.Stop()
		close(out)
	}()
	return out, nil
}

func reload(ctx context.Context, c Change, classes *tree.Registry, logger *slog.Logger) Reload {
	r := Reload{Path: c.Path}
	if c.Op == OpRemove || c.Op == OpRename {
		if _, err := os.Stat(c.Path); os.IsNotExist(err) {
			r.Removed = true
			reloads.WithLabelValues("removed").Inc()
			logger.InfoContext(ctx, "model file removed", slog.String("path", c.Path))
			r.Time = time.Now()
			return r
		}
	}
	root, err := Load(ctx, c.Path, classes, logger)
	if err != nil {
		r.Err = fmt.Errorf("reload %s: %w", c.Path, err)
		reloads.WithLabelValues("error").Inc()
		logger.WarnContext(ctx, "model reload failed",
			slog.String("path", c.Path),
			slog.String("error", err.Error()),
		)
		r.Time = time.Now()
		return r
	}
	r.Root = root
	reloads.WithLabelValues("ok").Inc()
	logger.DebugContext(ctx, "model reloaded", slog.String("path", c.Path), slog.String("op", c.Op.String()))
	r.Time = time.Now()
	return r
}
