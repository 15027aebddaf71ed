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
	"bytes"
	"fmt"
)

// OpKind enumerates the kinds of operations recorded in a batch.
type OpKind byte

const (
	OpPut OpKind = iota
	OpDelete
	OpDeletePrefix
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpDeletePrefix:
		return "delete-prefix"
	}
	return fmt.Sprintf("OpKind(%d)", byte(k))
}

// Op is a single operation of a batch. For prefix deletions, Key holds
// the prefix. Value is only set for puts.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

// Writer is the target of a batch replay.
type Writer interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	DeletePrefix(prefix []byte) error
}

// Batch collects write operations to be applied atomically to a Store.
// Operations are kept in insertion order; a later operation on a key
// overrides earlier ones. A batch is not safe for concurrent use.
type Batch struct {
	ops  []Op
	size int
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put records the insertion or update of a key. Both slices are copied.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, Op{Kind: OpPut, Key: bytes.Clone(key), Value: bytes.Clone(value)})
	b.size += len(key) + len(value)
}

// Delete records the removal of a single key.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, Op{Kind: OpDelete, Key: bytes.Clone(key)})
	b.size += len(key)
}

// DeletePrefix records the removal of all keys starting with the given
// prefix, including keys put earlier in this batch.
func (b *Batch) DeletePrefix(prefix []byte) {
	b.ops = append(b.ops, Op{Kind: OpDeletePrefix, Key: bytes.Clone(prefix)})
	b.size += len(prefix)
}

// Len returns the number of recorded operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// IsEmpty is true if no operation has been recorded.
func (b *Batch) IsEmpty() bool {
	return len(b.ops) == 0
}

// ValueSize is the number of key and value bytes queued up in the batch.
func (b *Batch) ValueSize() int {
	return b.size
}

// Ops provides the recorded operations in insertion order. The result
// must not be modified.
func (b *Batch) Ops() []Op {
	return b.ops
}

// Reset clears the batch for reuse.
func (b *Batch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

// Replay forwards all operations in order to the given writer.
func (b *Batch) Replay(w Writer) error {
	for _, op := range b.ops {
		var err error
		switch op.Kind {
		case OpPut:
			err = w.Put(op.Key, op.Value)
		case OpDelete:
			err = w.Delete(op.Key)
		case OpDeletePrefix:
			err = w.DeletePrefix(op.Key)
		default:
			err = fmt.Errorf("unknown batch operation %v", op.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ScanFunc lists the keys currently stored under a prefix.
type ScanFunc func(prefix []byte) ([][]byte, error)

// Flatten converts the batch into an equivalent sequence of puts and
// deletes for stores lacking a native prefix deletion within atomic
// batches. Prefix deletions are expanded into deletes of the keys
// reported by scan plus the keys put earlier in this batch.
func (b *Batch) Flatten(scan ScanFunc) ([]Op, error) {
	res := make([]Op, 0, len(b.ops))
	pending := map[string]struct{}{}
	for _, op := range b.ops {
		switch op.Kind {
		case OpPut:
			pending[string(op.Key)] = struct{}{}
			res = append(res, op)
		case OpDelete:
			delete(pending, string(op.Key))
			res = append(res, op)
		case OpDeletePrefix:
			keys, err := scan(op.Key)
			if err != nil {
				return nil, err
			}
			seen := make(map[string]struct{}, len(keys))
			for _, key := range keys {
				seen[string(key)] = struct{}{}
				res = append(res, Op{Kind: OpDelete, Key: key})
			}
			for key := range pending {
				if !bytes.HasPrefix([]byte(key), op.Key) {
					continue
				}
				delete(pending, key)
				if _, found := seen[key]; !found {
					res = append(res, Op{Kind: OpDelete, Key: []byte(key)})
				}
			}
		default:
			return nil, fmt.Errorf("unknown batch operation %v", op.Kind)
		}
	}
	return res, nil
}
