// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package ldb

import (
	"bytes"
	"errors"
	"sync"

	"github.com/Fantom-foundation/evmkv/kvstore"
	"github.com/pbnjay/memory"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

func init() {
	kvstore.RegisterStoreFactory(kvstore.LevelDbVariant, func(params kvstore.Parameters) (kvstore.Store, error) {
		return OpenStore(params.Directory, params.CacheSizeMiB)
	})
}

const (
	mib = 1 << 20
	// maxDefaultCacheSize caps the block cache chosen when no size is configured.
	maxDefaultCacheSize = 256 * mib
	// minCacheSize is the smallest block cache handed to LevelDB.
	minCacheSize = 8 * mib
)

// Store is a kvstore.Store backed by a LevelDB instance in a directory.
// Batches are translated into LevelDB batches, which LevelDB applies
// atomically.
type Store struct {
	db *leveldb.DB
	// mu serializes batch construction and application, such that prefix
	// deletions observe the state the batch is applied to.
	mu sync.Mutex
}

// OpenStore opens or creates a LevelDB store in the given directory. A zero
// cacheSizeMiB selects a cache size derived from the available memory.
func OpenStore(path string, cacheSizeMiB int) (*Store, error) {
	options := &opt.Options{
		BlockCacheCapacity: blockCacheSize(cacheSizeMiB),
	}
	db, err := leveldb.OpenFile(path, options)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func blockCacheSize(cacheSizeMiB int) int {
	if cacheSizeMiB > 0 {
		return cacheSizeMiB * mib
	}
	size := int(memory.TotalMemory() / 64)
	return min(max(size, minCacheSize), maxDefaultCacheSize)
}

func (s *Store) ReadValueBytes(key []byte) ([]byte, error) {
	data, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if errors.Is(err, leveldb.ErrClosed) {
		return nil, kvstore.ErrClosed
	}
	return data, err
}

func (s *Store) WriteBatch(batch *kvstore.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops, err := batch.Flatten(s.scan)
	if err != nil {
		return err
	}
	ldbBatch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Kind {
		case kvstore.OpPut:
			ldbBatch.Put(op.Key, op.Value)
		case kvstore.OpDelete:
			ldbBatch.Delete(op.Key)
		}
	}
	err = s.db.Write(ldbBatch, nil)
	if errors.Is(err, leveldb.ErrClosed) {
		return kvstore.ErrClosed
	}
	return err
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
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
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
