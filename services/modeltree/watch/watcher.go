// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch reloads model files when they change on disk.
//
// A Watcher observes the parent directories of its files, since editors
// often save by writing a temporary file and renaming it over the
// original. Events are debounced per file and handed to a handler in
// batches. Watch combines a Watcher with a loader that parses each
// changed file and publishes the result on a channel.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change seen for a file.
type Op int

const (
	// OpCreate indicates the file appeared.
	OpCreate Op = iota

	// OpWrite indicates the file was modified.
	OpWrite

	// OpRemove indicates the file was deleted.
	OpRemove

	// OpRename indicates the file was renamed away.
	OpRename
)

// String returns the string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one debounced file change.
type Change struct {
	// Path is the absolute path of the changed file.
	Path string

	// Op is the last operation seen in the debounce window.
	Op Op

	// Time is when the change was detected.
	Time time.Time
}

// Handler receives each debounced batch.
type Handler func(changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait for more events before flushing.
	// Default: 100ms
	Debounce time.Duration

	// Extensions selects files inside watched directories. Files named
	// explicitly are always watched.
	// Default: [".mdl"]
	Extensions []string

	// IgnorePatterns are glob patterns matched against base names.
	// Default: ["*.swp", "*.tmp", "*~", ".#*"]
	IgnorePatterns []string

	// BufferSize is the capacity of the event channel.
	// Default: 256
	BufferSize int

	// Logger receives watcher errors. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Debounce:       100 * time.Millisecond,
		Extensions:     []string{".mdl"},
		IgnorePatterns: []string{"*.swp", "*.tmp", "*~", ".#*"},
		BufferSize:     256,
		Logger:         slog.Default(),
	}
}

// Watcher watches model files for changes with debouncing.
//
// # Description
//
// Each path given to New is either a file, watched by name, or a
// directory, whose files with a matching extension are watched.
// Changes are collected until the debounce window passes without new
// events, then deduplicated per path and passed to the handler.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine.
type Watcher struct {
	fsw      *fsnotify.Watcher
	handler  Handler
	opts     Options
	files    map[string]bool
	dirs     map[string]bool
	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	watching bool
}

// New creates a watcher for paths.
//
// # Inputs
//
//   - paths: Files or directories to watch. Files need not exist yet but
//     their directory must.
//   - handler: Called with each debounced batch.
//   - opts: Optional configuration (nil uses defaults).
//
// # Outputs
//
//   - *Watcher: Ready watcher; call Start to begin.
//   - error: Non-nil if a path cannot be resolved or fsnotify fails.
func New(paths []string, handler Handler, opts *Options) (*Watcher, error) {
	o := DefaultOptions()
	if opts != nil {
		if opts.Debounce > 0 {
			o.Debounce = opts.Debounce
		}
		if opts.Extensions != nil {
			o.Extensions = opts.Extensions
		}
		if opts.IgnorePatterns != nil {
			o.IgnorePatterns = opts.IgnorePatterns
		}
		if opts.BufferSize > 0 {
			o.BufferSize = opts.BufferSize
		}
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
	}

	w := &Watcher{
		handler: handler,
		opts:    o,
		files:   make(map[string]bool),
		dirs:    make(map[string]bool),
		changes: make(chan Change, o.BufferSize),
		done:    make(chan struct{}),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			w.dirs[abs] = true
			continue
		}
		w.files[abs] = true
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fsw = fsw
	return w, nil
}

// Start adds the watches and spawns the event and debounce goroutines.
// Both exit when Stop is called or ctx is cancelled; a pending batch is
// flushed on the way out.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	for _, dir := range w.watchDirs() {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutines.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is currently active.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

// watchDirs returns every directory to register, sorted.
func (w *Watcher) watchDirs() []string {
	set := make(map[string]bool, len(w.dirs)+len(w.files))
	for d := range w.dirs {
		set[d] = true
	}
	for f := range w.files {
		set[filepath.Dir(f)] = true
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// selected reports whether events for path should be delivered.
func (w *Watcher) selected(path string) bool {
	if w.files[path] {
		return true
	}
	base := filepath.Base(path)
	for _, pattern := range w.opts.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}
	if !w.dirs[filepath.Dir(path)] {
		return false
	}
	return len(w.opts.Extensions) == 0 || slices.Contains(w.opts.Extensions, filepath.Ext(path))
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			path := filepath.Clean(event.Name)
			if !w.selected(path) {
				continue
			}
			change := Change{Path: path, Op: convertOp(event.Op), Time: time.Now()}
			select {
			case w.changes <- change:
			default:
				droppedEvents.Inc()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			deduped := deduplicate(batch)
			if w.handler != nil {
				w.handler(deduped)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// deduplicate keeps the latest change per path in order of first
// appearance.
func deduplicate(changes []Change) []Change {
	seen := make(map[string]int)
	result := make([]Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			result[i] = c
			continue
		}
		seen[c.Path] = len(result)
		result = append(result, c)
	}
	return result
}
