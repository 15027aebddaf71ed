// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package kvstore

import (
	"fmt"

	"github.com/golang/snappy"
)

const (
	rawValue    byte = 0
	snappyValue byte = 1
)

// minCompressedSize is the smallest value for which compression is attempted.
const minCompressedSize = 64

type compressedStore struct {
	inner Store
}

// NewCompressedStore wraps a store such that values are stored snappy
// compressed whenever that saves space. Every stored value is prefixed by a
// single byte marking its encoding. Keys are not modified, so the ordering of
// the store is retained.
func NewCompressedStore(inner Store) Store {
	return &compressedStore{inner: inner}
}

func (s *compressedStore) ReadValueBytes(key []byte) ([]byte, error) {
	data, err := s.inner.ReadValueBytes(key)
	if err != nil || data == nil {
		return data, err
	}
	return decodeValue(data)
}

func (s *compressedStore) WriteBatch(batch *Batch) error {
	encoded := NewBatch()
	for _, op := range batch.Ops() {
		switch op.Kind {
		case OpPut:
			encoded.Put(op.Key, encodeValue(op.Value))
		case OpDelete:
			encoded.Delete(op.Key)
		case OpDeletePrefix:
			encoded.DeletePrefix(op.Key)
		}
	}
	return s.inner.WriteBatch(encoded)
}

func (s *compressedStore) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	it, ok := s.inner.(Iteratee)
	if !ok {
		return fmt.Errorf("%w: store does not support iteration", UnsupportedConfiguration)
	}
	return it.ForEach(prefix, func(key, value []byte) error {
		decoded, err := decodeValue(value)
		if err != nil {
			return err
		}
		return fn(key, decoded)
	})
}

func (s *compressedStore) Close() error {
	return s.inner.Close()
}

func encodeValue(value []byte) []byte {
	if len(value) >= minCompressedSize {
		compressed := snappy.Encode(nil, value)
		if len(compressed) < len(value) {
			return append([]byte{snappyValue}, compressed...)
		}
	}
	return append([]byte{rawValue}, value...)
}

func decodeValue(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("invalid encoded value: missing encoding marker")
	}
	switch data[0] {
	case rawValue:
		return append([]byte{}, data[1:]...), nil
	case snappyValue:
		res, err := snappy.Decode(nil, data[1:])
		if err != nil {
			return nil, fmt.Errorf("invalid snappy encoded value: %w", err)
		}
		return res, nil
	}
	return nil, fmt.Errorf("invalid encoded value: unknown marker %d", data[0])
}
