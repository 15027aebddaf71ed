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
	"slices"
	"testing"
)

func TestBatch_OperationsAreRecordedInOrder(t *testing.T) {
	batch := NewBatch()
	batch.Put([]byte{1}, []byte{10})
	batch.Delete([]byte{2})
	batch.DeletePrefix([]byte{3})

	want := []Op{
		{Kind: OpPut, Key: []byte{1}, Value: []byte{10}},
		{Kind: OpDelete, Key: []byte{2}},
		{Kind: OpDeletePrefix, Key: []byte{3}},
	}
	got := batch.Ops()
	if len(got) != len(want) {
		t.Fatalf("unexpected number of operations, wanted %d, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Kind != want[i].Kind || !bytes.Equal(got[i].Key, want[i].Key) || !bytes.Equal(got[i].Value, want[i].Value) {
			t.Errorf("unexpected operation %d, wanted %v, got %v", i, want[i], got[i])
		}
	}
	// 2 bytes for the put, 1 byte for each of the deletions.
	if got, want := batch.ValueSize(), 4; got != want {
		t.Errorf("unexpected value size, wanted %d, got %d", want, got)
	}
}

func TestBatch_InputsAreCopied(t *testing.T) {
	key := []byte{1, 2}
	value := []byte{3, 4}
	batch := NewBatch()
	batch.Put(key, value)
	key[0] = 9
	value[0] = 9
	op := batch.Ops()[0]
	if !bytes.Equal(op.Key, []byte{1, 2}) || !bytes.Equal(op.Value, []byte{3, 4}) {
		t.Errorf("batch content was modified through caller owned slices: %v", op)
	}
}

func TestBatch_ResetProducesEmptyBatch(t *testing.T) {
	batch := NewBatch()
	if !batch.IsEmpty() {
		t.Errorf("new batch should be empty")
	}
	batch.Put([]byte{1}, []byte{2})
	if batch.IsEmpty() || batch.Len() != 1 {
		t.Errorf("batch should contain a single operation")
	}
	batch.Reset()
	if !batch.IsEmpty() || batch.ValueSize() != 0 {
		t.Errorf("batch should be empty after reset")
	}
}

type recordingWriter struct {
	log []string
	err error
}

func (w *recordingWriter) Put(key, value []byte) error {
	w.log = append(w.log, fmt.Sprintf("put %x=%x", key, value))
	return w.err
}

func (w *recordingWriter) Delete(key []byte) error {
	w.log = append(w.log, fmt.Sprintf("delete %x", key))
	return w.err
}

func (w *recordingWriter) DeletePrefix(prefix []byte) error {
	w.log = append(w.log, fmt.Sprintf("delete-prefix %x", prefix))
	return w.err
}

func TestBatch_ReplayForwardsOperationsInOrder(t *testing.T) {
	batch := NewBatch()
	batch.DeletePrefix([]byte{1})
	batch.Put([]byte{1, 2}, []byte{3})
	batch.Delete([]byte{4})

	writer := &recordingWriter{}
	if err := batch.Replay(writer); err != nil {
		t.Fatalf("failed to replay batch: %v", err)
	}
	want := []string{"delete-prefix 01", "put 0102=03", "delete 04"}
	if !slices.Equal(writer.log, want) {
		t.Errorf("unexpected replay, wanted %v, got %v", want, writer.log)
	}
}

func TestBatch_ReplayStopsAtFirstError(t *testing.T) {
	batch := NewBatch()
	batch.Put([]byte{1}, []byte{1})
	batch.Put([]byte{2}, []byte{2})

	injected := fmt.Errorf("injected")
	writer := &recordingWriter{err: injected}
	if err := batch.Replay(writer); err != injected {
		t.Errorf("unexpected error, wanted %v, got %v", injected, err)
	}
	if len(writer.log) != 1 {
		t.Errorf("replay should have stopped after the first operation, got %v", writer.log)
	}
}

func TestBatch_FlattenExpandsPrefixDeletes(t *testing.T) {
	stored := [][]byte{{1, 1}, {1, 2}}
	scan := func(prefix []byte) ([][]byte, error) {
		var res [][]byte
		for _, key := range stored {
			if bytes.HasPrefix(key, prefix) {
				res = append(res, key)
			}
		}
		return res, nil
	}

	batch := NewBatch()
	batch.Put([]byte{1, 3}, []byte{7})
	batch.Put([]byte{2, 1}, []byte{8})
	batch.DeletePrefix([]byte{1})
	batch.Put([]byte{1, 4}, []byte{9})

	ops, err := batch.Flatten(scan)
	if err != nil {
		t.Fatalf("failed to flatten batch: %v", err)
	}
	var got []string
	for _, op := range ops {
		got = append(got, fmt.Sprintf("%v %x", op.Kind, op.Key))
	}
	want := []string{
		"put 0103",
		"put 0201",
		"delete 0101",
		"delete 0102",
		"delete 0103",
		"put 0104",
	}
	if !slices.Equal(got, want) {
		t.Errorf("unexpected flattened batch, wanted %v, got %v", want, got)
	}
}

func TestBatch_FlattenForwardsScanErrors(t *testing.T) {
	injected := fmt.Errorf("injected")
	batch := NewBatch()
	batch.DeletePrefix([]byte{1})
	if _, err := batch.Flatten(func([]byte) ([][]byte, error) { return nil, injected }); err != injected {
		t.Errorf("unexpected error, wanted %v, got %v", injected, err)
	}
}

func TestOpKind_Print(t *testing.T) {
	tests := map[OpKind]string{
		OpPut:          "put",
		OpDelete:       "delete",
		OpDeletePrefix: "delete-prefix",
		OpKind(7):      "OpKind(7)",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("unexpected print, wanted %s, got %s", want, got)
		}
	}
}
