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
	"errors"
	"testing"

	"go.uber.org/mock/gomock"
)

func TestCompression_ValuesAreRestoredAfterEncoding(t *testing.T) {
	tests := map[string][]byte{
		"empty":        {},
		"short":        {1, 2, 3},
		"compressible": bytes.Repeat([]byte{0xAB}, 1024),
		"random-like":  []byte("0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ!?"),
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			decoded, err := decodeValue(encodeValue(value))
			if err != nil {
				t.Fatalf("failed to decode value: %v", err)
			}
			if !bytes.Equal(decoded, value) {
				t.Errorf("unexpected value, wanted %x, got %x", value, decoded)
			}
		})
	}
}

func TestCompression_LargeRepetitiveValuesAreCompressed(t *testing.T) {
	value := bytes.Repeat([]byte{1, 2}, 512)
	encoded := encodeValue(value)
	if encoded[0] != snappyValue {
		t.Errorf("value should have been compressed")
	}
	if len(encoded) >= len(value) {
		t.Errorf("compressed value is not smaller, %d >= %d", len(encoded), len(value))
	}
}

func TestCompression_ShortValuesAreStoredRaw(t *testing.T) {
	encoded := encodeValue([]byte{1, 2, 3})
	if !bytes.Equal(encoded, []byte{rawValue, 1, 2, 3}) {
		t.Errorf("unexpected encoding %x", encoded)
	}
}

func TestCompression_InvalidEncodingsAreDetected(t *testing.T) {
	tests := map[string][]byte{
		"empty":          {},
		"unknown marker": {7, 1, 2},
		"corrupt snappy": {snappyValue, 0xff, 0xff, 0xff, 0xff, 0xff},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := decodeValue(data); err == nil {
				t.Errorf("decoding should have failed")
			}
		})
	}
}

func TestCompressedStore_WritesEncodedValuesToInnerStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := NewMockStore(ctrl)
	inner.EXPECT().WriteBatch(gomock.Any()).DoAndReturn(func(batch *Batch) error {
		ops := batch.Ops()
		if len(ops) != 3 {
			t.Fatalf("unexpected number of operations: %d", len(ops))
		}
		if ops[0].Kind != OpPut || !bytes.Equal(ops[0].Value, []byte{rawValue, 5}) {
			t.Errorf("unexpected put %v", ops[0])
		}
		if ops[1].Kind != OpDelete || ops[2].Kind != OpDeletePrefix {
			t.Errorf("unexpected deletes %v, %v", ops[1], ops[2])
		}
		return nil
	})

	batch := NewBatch()
	batch.Put([]byte{1}, []byte{5})
	batch.Delete([]byte{2})
	batch.DeletePrefix([]byte{3})
	if err := NewCompressedStore(inner).WriteBatch(batch); err != nil {
		t.Fatalf("failed to write batch: %v", err)
	}
}

func TestCompressedStore_ReadsDecodeValues(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := NewMockStore(ctrl)
	inner.EXPECT().ReadValueBytes([]byte{1}).Return([]byte{rawValue, 5}, nil)
	inner.EXPECT().ReadValueBytes([]byte{2}).Return(nil, nil)

	store := NewCompressedStore(inner)
	value, err := store.ReadValueBytes([]byte{1})
	if err != nil || !bytes.Equal(value, []byte{5}) {
		t.Errorf("unexpected read result %x, %v", value, err)
	}
	value, err = store.ReadValueBytes([]byte{2})
	if err != nil || value != nil {
		t.Errorf("missing key should produce nil, got %x, %v", value, err)
	}
}

func TestCompressedStore_ReadErrorsAreForwarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := NewMockStore(ctrl)
	injected := errors.New("injected")
	inner.EXPECT().ReadValueBytes(gomock.Any()).Return(nil, injected)

	if _, err := NewCompressedStore(inner).ReadValueBytes([]byte{1}); !errors.Is(err, injected) {
		t.Errorf("unexpected error, wanted %v, got %v", injected, err)
	}
}

func TestCompressedStore_IterationRequiresIterableInnerStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewCompressedStore(NewMockStore(ctrl)).(Iteratee)
	err := store.ForEach(nil, func(key, value []byte) error { return nil })
	if !errors.Is(err, UnsupportedConfiguration) {
		t.Errorf("unexpected error, wanted %v, got %v", UnsupportedConfiguration, err)
	}
}
