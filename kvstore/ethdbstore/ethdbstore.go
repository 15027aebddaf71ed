// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package ethdbstore

import (
	"bytes"
	"os"
	"sync"

	"github.com/Fantom-foundation/evmkv/kvstore"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/ethdb/pebble"
)

func init() {
	kvstore.RegisterStoreFactory(kvstore.EthMemoryVariant, func(kvstore.Parameters) (kvstore.Store, error) {
		return NewStore(memorydb.New()), nil
	})
	kvstore.RegisterStoreFactory(kvstore.PebbleVariant, func(params kvstore.Parameters) (kvstore.Store, error) {
		return OpenPebbleStore(params.Directory, params.CacheSizeMiB)
	})
}

const (
	defaultPebbleCacheMiB = 16
	pebbleHandles         = 64
)

// Store adapts a go-ethereum key-value database to the kvstore.Store
// interface. Prefix deletions are expanded into point deletions within a
// single ethdb batch, which is written atomically.
type Store struct {
	db ethdb.KeyValueStore
	// mu serializes batches, such that expanded prefix deletions match the
	// content the batch is written to.
	mu sync.Mutex
}

// NewStore wraps the given database. Ownership is transferred to the store.
func NewStore(db ethdb.KeyValueStore) *Store {
	return &Store{db: db}
}

// OpenPebbleStore opens or creates a Pebble database in the given directory.
func OpenPebbleStore(directory string, cacheSizeMiB int) (*Store, error) {
	if cacheSizeMiB <= 0 {
		cacheSizeMiB = defaultPebbleCacheMiB
	}
	if err := os.MkdirAll(directory, 0700); err != nil {
		return nil, err
	}
	// ephemeral=true keeps unsynced writes (WriteOptions.Sync=false), matching
	// the go-ethereum v1.15 behavior this was written against.
	db, err := pebble.New(directory, cacheSizeMiB, pebbleHandles, "", false, true)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

func (s *Store) ReadValueBytes(key []byte) ([]byte, error) {
	// ethdb backends report missing keys with differing errors.
	found, err := s.db.Has(key)
	if err != nil || !found {
		return nil, err
	}
	value, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (s *Store) WriteBatch(batch *kvstore.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops, err := batch.Flatten(s.scan)
	if err != nil {
		return err
	}
	ethBatch := s.db.NewBatch()
	for _, op := range ops {
		switch op.Kind {
		case kvstore.OpPut:
			err = ethBatch.Put(op.Key, op.Value)
		case kvstore.OpDelete:
			err = ethBatch.Delete(op.Key)
		}
		if err != nil {
			return err
		}
	}
	return ethBatch.Write()
}

func (s *Store) scan(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.ForEach(prefix, func(key, _ []byte) error {
		keys = append(keys, bytes.Clone(key))
		return nil
	})
	return keys, err
}

func (s *Store) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	iter := s.db.NewIterator(prefix, nil)
	defer iter.Release()
	for iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *Store) Close() error {
	return s.db.Close()
}
