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

//go:generate mockgen -source store.go -destination store_mocks.go -package kvstore

import (
	"io"

	"github.com/Fantom-foundation/evmkv/common"
)

// ErrClosed is returned by operations on a store that has already been closed.
const ErrClosed = common.ConstError("store closed")

// Reader provides point reads on an ordered key-value store.
type Reader interface {
	// ReadValueBytes obtains the value stored for the given key. If the key
	// is not present, nil is returned without an error. The returned slice
	// is owned by the caller.
	ReadValueBytes(key []byte) ([]byte, error)
}

// Store is the capability set required from a backing store: point reads
// and the atomic application of batches of puts, deletes, and prefix
// deletes. Any implementation offering these operations is substitutable.
type Store interface {
	Reader

	// WriteBatch applies all operations of the given batch in order. Either
	// all operations take effect or none of them does.
	WriteBatch(batch *Batch) error

	io.Closer
}

// Iteratee is an optional extension of a Store enumerating its content.
// It is used for inspection and testing, not on any hot path.
type Iteratee interface {
	// ForEach calls fn for every key with the given prefix in ascending key
	// order. Iteration stops at the first error returned by fn. The slices
	// passed to fn are only valid for the duration of the call.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
}
