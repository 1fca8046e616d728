// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore is a badger-backed BlobStore:
// - blobs: key = "blob:<id>" (raw bytes)
// - meta:  key = "meta:<id>" (JSON FileMeta)
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a store at path. An empty path opens an
// in-memory store, used by tests.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

// Ping runs an empty read transaction to confirm the store is open.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("storage: store closed")
	}
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

func (s *BadgerStore) Put(ctx context.Context, id, filename string, data []byte) (FileMeta, error) {
	meta := FileMeta{
		ID:         id,
		Filename:   filename,
		Size:       int64(len(data)),
		UploadedAt: time.Now().UTC(),
	}
	metaBuf, err := json.Marshal(meta)
	if err != nil {
		return FileMeta{}, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte("blob:"+id), data); err != nil {
			return err
		}
		return txn.Set([]byte("meta:"+id), metaBuf)
	})
	if err != nil {
		return FileMeta{}, fmt.Errorf("store blob %s: %w", id, err)
	}
	return meta, nil
}

func (s *BadgerStore) Get(ctx context.Context, id string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("blob:" + id))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	return out, nil
}

func (s *BadgerStore) Stat(ctx context.Context, id string) (FileMeta, error) {
	var meta FileMeta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("meta:" + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return FileMeta{}, ErrNotFound
		}
		return FileMeta{}, fmt.Errorf("stat blob %s: %w", id, err)
	}
	return meta, nil
}
