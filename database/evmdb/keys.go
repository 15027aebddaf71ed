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
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// NamespaceTag identifies the key space of an account in the store.
type NamespaceTag byte

const (
	// ZeroContractTag is the namespace of the zero address.
	ZeroContractTag NamespaceTag = 0
	// CreatedContractTag is the namespace of the first contract created by
	// the zero address.
	CreatedContractTag NamespaceTag = 1
)

// Category distinguishes the kinds of data stored for a namespace. The
// ordinals are part of the persistent key format.
type Category byte

const (
	AccountInfoCategory  Category = 0
	AccountStateCategory Category = 1
	StorageCategory      Category = 2
)

func (c Category) String() string {
	switch c {
	case AccountInfoCategory:
		return "AccountInfo"
	case AccountStateCategory:
		return "AccountState"
	case StorageCategory:
		return "Storage"
	}
	return fmt.Sprintf("Category(%d)", byte(c))
}

// storageIndexKeyLength is the length of an encoded storage index, a
// 32-byte string including its RLP header.
const storageIndexKeyLength = 33

func accountInfoKey(tag NamespaceTag) []byte {
	return []byte{byte(tag), byte(AccountInfoCategory)}
}

func accountStateKey(tag NamespaceTag) []byte {
	return []byte{byte(tag), byte(AccountStateCategory)}
}

func storagePrefix(tag NamespaceTag) []byte {
	return []byte{byte(tag), byte(StorageCategory)}
}

// storageKey produces the key of a storage slot, the storage prefix of the
// namespace followed by the encoded 32-byte big-endian index.
func storageKey(tag NamespaceTag, index *uint256.Int) ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(index.Bytes32())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode index %v: %w", ErrSerialization, index, err)
	}
	return append(storagePrefix(tag), encoded...), nil
}

// Key is the decoded form of a key of the store.
type Key struct {
	Tag      NamespaceTag
	Category Category
	// Index is only set for keys of the storage category.
	Index *uint256.Int
}

func (k Key) String() string {
	if k.Index != nil {
		return fmt.Sprintf("%d/%v/%v", k.Tag, k.Category, k.Index)
	}
	return fmt.Sprintf("%d/%v", k.Tag, k.Category)
}

// DecodeKey parses a key produced by this package.
func DecodeKey(key []byte) (Key, error) {
	if len(key) < 2 {
		return Key{}, fmt.Errorf("%w: key %x too short", ErrSerialization, key)
	}
	res := Key{Tag: NamespaceTag(key[0]), Category: Category(key[1])}
	switch res.Category {
	case AccountInfoCategory, AccountStateCategory:
		if len(key) != 2 {
			return Key{}, fmt.Errorf("%w: unexpected suffix in %v key %x", ErrSerialization, res.Category, key)
		}
	case StorageCategory:
		if len(key) != 2+storageIndexKeyLength {
			return Key{}, fmt.Errorf("%w: invalid storage key length %d", ErrSerialization, len(key))
		}
		var index [32]byte
		if err := rlp.DecodeBytes(key[2:], &index); err != nil {
			return Key{}, fmt.Errorf("%w: invalid storage index: %w", ErrSerialization, err)
		}
		res.Index = new(uint256.Int).SetBytes32(index[:])
	default:
		return Key{}, fmt.Errorf("%w: unknown category in key %x", ErrSerialization, key)
	}
	return res, nil
}
