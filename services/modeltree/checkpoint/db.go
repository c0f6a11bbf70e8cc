// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package checkpoint persists state snapshots in an embedded BadgerDB.
//
// Each checkpoint is stored under two keys: "checkpoint:meta:<id>" holds
// JSON metadata and "checkpoint:state:<id>" holds the snapshot in the
// binary form produced by state.NumericState.MarshalBinary.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the checkpoint database.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory.
	Path string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites makes every commit durable before it returns.
	SyncWrites bool

	// Logger receives BadgerDB's own messages. Nil silences them.
	Logger *slog.Logger

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage ratio that triggers a rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns durable settings for a database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for tests: no disk, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Validate reports settings Open would reject.
func (c Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("path is required for persistent database")
	}
	if c.GCInterval < 0 {
		return fmt.Errorf("gc interval %v is negative", c.GCInterval)
	}
	if c.GCInterval > 0 && (c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1) {
		return fmt.Errorf("gc discard ratio %v: ratio must be between 0 and 1", c.GCDiscardRatio)
	}
	return nil
}

// runsGC reports whether Open starts the collector.
func (c Config) runsGC() bool { return c.GCInterval > 0 && !c.InMemory }

func (c Config) badgerOptions() badger.Options {
	opts := badger.DefaultOptions(c.Path)
	if c.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(c.SyncWrites).WithNumVersionsToKeep(1)
	if c.Logger == nil {
		return opts.WithLogger(nil)
	}
	return opts.WithLogger(badgerLogger{c.Logger})
}

// openDB opens BadgerDB for cfg, creating the directory if needed.
func openDB(cfg Config) (*badger.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.InMemory {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create checkpoint directory %s: %w", cfg.Path, err)
		}
	}
	db, err := badger.Open(cfg.badgerOptions())
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	return db, nil
}

// badgerLogger forwards BadgerDB's printf-style messages to slog. Badger
// is chatty at info level, so info becomes debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) log(level slog.Level, format string, args []any) {
	if l.logger.Enabled(context.Background(), level) {
		l.logger.Log(context.Background(), level, fmt.Sprintf(format, args...), slog.String("component", "badger"))
	}
}

func (l badgerLogger) Errorf(f string, a ...any)   { l.log(slog.LevelError, f, a) }
func (l badgerLogger) Warningf(f string, a ...any) { l.log(slog.LevelWarn, f, a) }
func (l badgerLogger) Infof(f string, a ...any)    { l.log(slog.LevelDebug, f, a) }
func (l badgerLogger) Debugf(f string, a ...any)   { l.log(slog.LevelDebug-4, f, a) }

// =============================================================================
// Value Log GC
// =============================================================================

// collector runs value log GC on a ticker until its context is cancelled.
type collector struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startCollector(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *collector {
	ctx, cancel := context.WithCancel(context.Background())
	c := &collector{cancel: cancel}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(ctx, db, ratio, logger)
			}
		}
	}()
	return c
}

// collect rewrites value log files until badger reports nothing left to
// reclaim.
func collect(ctx context.Context, db *badger.DB, ratio float64, logger *slog.Logger) {
	for ctx.Err() == nil {
		err := db.RunValueLogGC(ratio)
		switch {
		case err == nil:
			gcRewrites.Inc()
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected):
			return
		default:
			logger.Warn("checkpoint value log GC failed", slog.String("error", err.Error()))
			return
		}
	}
}

func (c *collector) stop() {
	c.cancel()
	c.wg.Wait()
}

// =============================================================================
// Transactions
// =============================================================================

// update runs fn in a read-write transaction that commits when fn
// succeeds.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

// view runs fn in a read-only transaction.
func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}
