// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package evmdb

import (
	"bytes"
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestKeys_AccountKeysConsistOfTagAndCategory(t *testing.T) {
	if got, want := accountInfoKey(3), []byte{3, 0}; !bytes.Equal(got, want) {
		t.Errorf("unexpected account info key, wanted %x, got %x", want, got)
	}
	if got, want := accountStateKey(3), []byte{3, 1}; !bytes.Equal(got, want) {
		t.Errorf("unexpected account state key, wanted %x, got %x", want, got)
	}
	if got, want := storagePrefix(3), []byte{3, 2}; !bytes.Equal(got, want) {
		t.Errorf("unexpected storage prefix, wanted %x, got %x", want, got)
	}
}

func TestKeys_StorageKeysEncodeFullWidthIndex(t *testing.T) {
	key, err := storageKey(CreatedContractTag, uint256.NewInt(7))
	if err != nil {
		t.Fatalf("failed to produce key: %v", err)
	}
	want := make([]byte, 35)
	want[0] = 1
	want[1] = 2
	want[2] = 0xa0
	want[34] = 7
	if !bytes.Equal(key, want) {
		t.Errorf("unexpected storage key, wanted %x, got %x", want, key)
	}
}

func TestKeys_StorageKeysAreUniquePerNamespaceAndIndex(t *testing.T) {
	seen := map[string]bool{}
	for _, tag := range []NamespaceTag{0, 1, 2} {
		for _, index := range []uint64{0, 1, 256, 1 << 40} {
			key, err := storageKey(tag, uint256.NewInt(index))
			if err != nil {
				t.Fatalf("failed to produce key: %v", err)
			}
			if seen[string(key)] {
				t.Errorf("duplicate key %x", key)
			}
			seen[string(key)] = true
			if !bytes.HasPrefix(key, storagePrefix(tag)) {
				t.Errorf("key %x lacks storage prefix", key)
			}
		}
	}
}

func TestKeys_DecodeKeyRestoresComponents(t *testing.T) {
	index := uint256.MustFromDecimal("123456789012345678901234567890")
	key, err := storageKey(ZeroContractTag, index)
	if err != nil {
		t.Fatalf("failed to produce key: %v", err)
	}
	decoded, err := DecodeKey(key)
	if err != nil {
		t.Fatalf("failed to decode key: %v", err)
	}
	if decoded.Tag != ZeroContractTag || decoded.Category != StorageCategory || !decoded.Index.Eq(index) {
		t.Errorf("unexpected decoded key %v", decoded)
	}

	decoded, err = DecodeKey(accountStateKey(CreatedContractTag))
	if err != nil {
		t.Fatalf("failed to decode key: %v", err)
	}
	if decoded.Tag != CreatedContractTag || decoded.Category != AccountStateCategory || decoded.Index != nil {
		t.Errorf("unexpected decoded key %v", decoded)
	}
	if got, want := decoded.String(), "1/AccountState"; got != want {
		t.Errorf("unexpected print, wanted %s, got %s", want, got)
	}
}

func TestKeys_DecodeKeyDetectsInvalidKeys(t *testing.T) {
	tests := map[string][]byte{
		"empty":            {},
		"short":            {1},
		"unknown category": {1, 9},
		"info with suffix": {1, 0, 1},
		"short storage":    {1, 2, 0xa0, 1},
		"invalid index":    append([]byte{1, 2, 0xa1}, make([]byte, 32)...),
	}
	for name, key := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeKey(key); !errors.Is(err, ErrSerialization) {
				t.Errorf("unexpected error, wanted %v, got %v", ErrSerialization, err)
			}
		})
	}
}

func TestCategory_Print(t *testing.T) {
	tests := map[Category]string{
		AccountInfoCategory:  "AccountInfo",
		AccountStateCategory: "AccountState",
		StorageCategory:      "Storage",
		Category(5):          "Category(5)",
	}
	for category, want := range tests {
		if got := category.String(); got != want {
			t.Errorf("unexpected print, wanted %s, got %s", want, got)
		}
	}
}
