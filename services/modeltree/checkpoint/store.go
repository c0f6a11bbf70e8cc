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
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/modeltree/services/modeltree/state"
)

// ErrNotFound is returned for an unknown checkpoint ID.
var ErrNotFound = errors.New("checkpoint not found")

const (
	metaPrefix  = "checkpoint:meta:"
	statePrefix = "checkpoint:state:"
)

func metaKey(id uuid.UUID) []byte  { return []byte(metaPrefix + id.String()) }
func stateKey(id uuid.UUID) []byte { return []byte(statePrefix + id.String()) }

// Meta describes a stored checkpoint.
type Meta struct {
	ID      uuid.UUID `json:"id"`
	Source  string    `json:"source"`
	Note    string    `json:"note,omitempty"`
	Frames  int       `json:"frames"`
	Ints    int       `json:"ints"`
	Doubles int       `json:"doubles"`
	Size    int       `json:"size"`
	Created time.Time `json:"created"`
}

// Store saves and loads state snapshots.
//
// Description:
//
//	Checkpoints are immutable once saved. Source is a free-form label,
//	normally the model file path, used to filter List and Latest.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	gc     *collector
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open opens the store and starts value log GC when configured.
//
// # Inputs
//
//   - cfg: Database configuration. Path is required unless InMemory.
//   - opts: WithClock, WithLogger.
//
// # Outputs
//
//   - *Store: The store. Call Close when done.
//   - error: Non-nil if the database cannot be opened or the GC settings
//     are invalid.
func Open(cfg Config, opts ...Option) (*Store, error) {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s.db = db
	if cfg.runsGC() {
		s.gc = startCollector(db, cfg.GCInterval, cfg.GCDiscardRatio, s.logger)
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// Save stores snap under a new ID.
func (s *Store) Save(ctx context.Context, source, note string, snap *state.NumericState) (meta Meta, err error) {
	meta.ID = uuid.New()
	ctx, span := startStoreSpan(ctx, "save", meta.ID.String())
	defer func() { finishOp(span, "save", err) }()

	data, err := snap.MarshalBinary()
	if err != nil {
		return Meta{}, fmt.Errorf("encode checkpoint: %w", err)
	}
	meta.Source = source
	meta.Note = note
	meta.Frames = snap.NumFrames()
	meta.Ints = snap.IntSize()
	meta.Doubles = snap.DoubleSize()
	meta.Size = len(data)
	meta.Created = s.now().UTC()

	mdata, err := json.Marshal(meta)
	if err != nil {
		return Meta{}, fmt.Errorf("encode checkpoint metadata: %w", err)
	}
	err = s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(stateKey(meta.ID), data); err != nil {
			return err
		}
		return txn.Set(metaKey(meta.ID), mdata)
	})
	if err != nil {
		return Meta{}, fmt.Errorf("save checkpoint %s: %w", meta.ID, err)
	}
	checkpointBytes.Observe(float64(len(data)))
	s.logger.DebugContext(ctx, "checkpoint saved",
		slog.String("id", meta.ID.String()),
		slog.String("source", source),
		slog.Int("bytes", len(data)),
	)
	return meta, nil
}

func getMeta(txn *badger.Txn, id uuid.UUID) (Meta, error) {
	var meta Meta
	item, err := txn.Get(metaKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return meta, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return meta, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	return meta, err
}

// Meta returns the metadata of checkpoint id.
func (s *Store) Meta(ctx context.Context, id uuid.UUID) (Meta, error) {
	var meta Meta
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		meta, err = getMeta(txn, id)
		return err
	})
	return meta, err
}

// Load returns the snapshot and metadata of checkpoint id. The snapshot
// has no owners; bind it before restoring.
func (s *Store) Load(ctx context.Context, id uuid.UUID) (snap *state.NumericState, meta Meta, err error) {
	ctx, span := startStoreSpan(ctx, "load", id.String())
	defer func() { finishOp(span, "load", err) }()

	snap = state.New()
	err = s.view(ctx, func(txn *badger.Txn) error {
		var err error
		if meta, err = getMeta(txn, id); err != nil {
			return err
		}
		item, err := txn.Get(stateKey(id))
		if err != nil {
			return fmt.Errorf("checkpoint %s has no state: %w", id, err)
		}
		return item.Value(snap.UnmarshalBinary)
	})
	if err != nil {
		return nil, Meta{}, err
	}
	return snap, meta, nil
}

// List returns the checkpoints of source, or all when source is empty,
// oldest first.
func (s *Store) List(ctx context.Context, source string) ([]Meta, error) {
	var out []Meta
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var meta Meta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if source == "" || meta.Source == source {
				out = append(out, meta)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b Meta) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

// Latest returns the newest checkpoint of source.
func (s *Store) Latest(ctx context.Context, source string) (Meta, error) {
	all, err := s.List(ctx, source)
	if err != nil {
		return Meta{}, err
	}
	if len(all) == 0 {
		return Meta{}, fmt.Errorf("%w: no checkpoints for %q", ErrNotFound, source)
	}
	return all[len(all)-1], nil
}

// Delete removes checkpoint id.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := startStoreSpan(ctx, "delete", id.String())
	defer func() { finishOp(span, "delete", err) }()

	return s.update(ctx, func(txn *badger.Txn) error {
		if _, err := getMeta(txn, id); err != nil {
			return err
		}
		if err := txn.Delete(stateKey(id)); err != nil {
			return err
		}
		return txn.Delete(metaKey(id))
	})
}
