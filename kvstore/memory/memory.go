// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package memory

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/Fantom-foundation/evmkv/kvstore"
	"github.com/google/btree"
)

func init() {
	kvstore.RegisterStoreFactory(kvstore.MemoryVariant, func(kvstore.Parameters) (kvstore.Store, error) {
		return NewStore(), nil
	})
}

const degree = 32

type entry struct {
	key   []byte
	value []byte
}

func lessEntry(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Store is an ordered in-memory kvstore.Store based on a B-tree. Batches are
// applied under an exclusive lock, which makes them atomic for readers.
type Store struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[entry]
	closed bool
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{tree: btree.NewG[entry](degree, lessEntry)}
}

func (s *Store) ReadValueBytes(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, kvstore.ErrClosed
	}
	item, found := s.tree.Get(entry{key: key})
	if !found {
		return nil, nil
	}
	return bytes.Clone(item.value), nil
}

func (s *Store) WriteBatch(batch *kvstore.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvstore.ErrClosed
	}
	// Validate first, such that a failing batch leaves no trace.
	for _, op := range batch.Ops() {
		if op.Kind > kvstore.OpDeletePrefix {
			return fmt.Errorf("unknown batch operation %v", op.Kind)
		}
	}
	return batch.Replay(treeWriter{s.tree})
}

func (s *Store) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return kvstore.ErrClosed
	}
	var err error
	s.tree.AscendGreaterOrEqual(entry{key: prefix}, func(item entry) bool {
		if !bytes.HasPrefix(item.key, prefix) {
			return false
		}
		err = fn(item.key, item.value)
		return err == nil
	})
	return err
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tree.Clear(false)
	return nil
}

type treeWriter struct {
	tree *btree.BTreeG[entry]
}

func (w treeWriter) Put(key, value []byte) error {
	w.tree.ReplaceOrInsert(entry{key: key, value: value})
	return nil
}

func (w treeWriter) Delete(key []byte) error {
	w.tree.Delete(entry{key: key})
	return nil
}

func (w treeWriter) DeletePrefix(prefix []byte) error {
	var keys [][]byte
	w.tree.AscendGreaterOrEqual(entry{key: prefix}, func(item entry) bool {
		if !bytes.HasPrefix(item.key, prefix) {
			return false
		}
		keys = append(keys, item.key)
		return true
	})
	for _, key := range keys {
		w.tree.Delete(entry{key: key})
	}
	return nil
}
