// SPDX-License-Identifier: Apache-2.0

// Package snapshot keeps the history of generated API lists. Each update
// cycle stores the canonical CSV together with the revision metadata it was
// generated from, so past generations can be listed and diffed.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Meta describes one stored generation of the list.
type Meta struct {
	ID             string    `json:"id"`
	Revision       string    `json:"revision,omitempty"`
	CommitPosition string    `json:"commit_position,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Entries        int       `json:"entries"`
	HighEntropy    int       `json:"high_entropy"`
}

// ErrNotFound reports an unknown snapshot ID.
var ErrNotFound = errors.New("snapshot: not found")

const (
	metaPrefix = "meta:"
	listPrefix = "list:"
)

// Store is a badger-backed snapshot archive.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the archive at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save stores one generation and returns its assigned ID.
func (s *Store) Save(ctx context.Context, meta Meta, csvData []byte) (string, error) {
	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	buf, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("snapshot: marshal meta: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(metaPrefix+meta.ID), buf); err != nil {
			return err
		}
		return txn.Set([]byte(listPrefix+meta.ID), csvData)
	})
	if err != nil {
		return "", fmt.Errorf("snapshot: save %s: %w", meta.ID, err)
	}
	return meta.ID, nil
}

// List returns all stored generations, newest first.
func (s *Store) List(ctx context.Context) ([]Meta, error) {
	var metas []Meta
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var m Meta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			metas = append(metas, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// Get returns the metadata and canonical CSV for one generation.
func (s *Store) Get(ctx context.Context, id string) (Meta, []byte, error) {
	var meta Meta
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaPrefix + id))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return err
		}
		item, err = txn.Get([]byte(listPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Meta{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Meta{}, nil, fmt.Errorf("snapshot: get %s: %w", id, err)
	}
	return meta, data, nil
}

// Prune removes the oldest generations beyond keep. A keep of zero or less
// disables pruning. It returns the number of removed snapshots.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	metas, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(metas) <= keep {
		return 0, nil
	}

	victims := metas[keep:]
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, m := range victims {
			if err := txn.Delete([]byte(metaPrefix + m.ID)); err != nil {
				return err
			}
			if err := txn.Delete([]byte(listPrefix + m.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("snapshot: prune: %w", err)
	}
	return len(victims), nil
}
