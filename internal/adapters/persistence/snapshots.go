// Package persistence stores model weight snapshots in an embedded Badger
// key-value store: one blob per user for adapter parameters and a single
// shared blob for the encoder.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/okian/aura/internal/domain/adapter"
	"github.com/okian/aura/internal/domain/encoder"
)

// ErrNoSnapshot reports a missing snapshot key.
var ErrNoSnapshot = errors.New("snapshot not found")

// Key layout.
const (
	adapterKeyPrefix = "adapter/"
	encoderKey       = "encoder/shared"
)

// Option applies a configuration option to the SnapshotStore.
type Option func(*options)

type options struct {
	path     string
	inMemory bool
}

// WithPath sets the on-disk database directory.
func WithPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.path = path
		}
	}
}

// WithInMemory keeps the database in memory; used by tests and by hosts
// that treat snapshots as a warm cache only.
func WithInMemory() Option {
	return func(o *options) { o.inMemory = true }
}

// SnapshotStore persists weight snapshots.
type SnapshotStore struct {
	db *badger.DB
}

// Open opens (or creates) the snapshot database.
func Open(opts ...Option) (*SnapshotStore, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var bopts badger.Options
	if o.inMemory || o.path == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(o.path)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Close releases the underlying database.
func (s *SnapshotStore) Close() error { return s.db.Close() }

// SaveAdapter persists one user's adapter parameters keyed by identity.
func (s *SnapshotStore) SaveAdapter(_ context.Context, state adapter.State) error {
	return s.put(adapterKeyPrefix+state.UserID, state)
}

// LoadAdapter restores one user's adapter parameters.
func (s *SnapshotStore) LoadAdapter(_ context.Context, userID string) (adapter.State, error) {
	var state adapter.State
	if err := s.get(adapterKeyPrefix+userID, &state); err != nil {
		return adapter.State{}, err
	}
	return state, nil
}

// SaveEncoder persists the shared encoder weights as a single blob.
func (s *SnapshotStore) SaveEncoder(_ context.Context, state encoder.State) error {
	return s.put(encoderKey, state)
}

// LoadEncoder restores the shared encoder weights.
func (s *SnapshotStore) LoadEncoder(_ context.Context) (encoder.State, error) {
	var state encoder.State
	if err := s.get(encoderKey, &state); err != nil {
		return encoder.State{}, err
	}
	return state, nil
}

func (s *SnapshotStore) put(key string, v any) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %q: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), blob)
	})
}

func (s *SnapshotStore) get(key string, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%q: %w", key, ErrNoSnapshot)
		}
		if err != nil {
			return fmt.Errorf("read snapshot %q: %w", key, err)
		}
		return item.Value(func(blob []byte) error {
			return json.Unmarshal(blob, v)
		})
	})
}
