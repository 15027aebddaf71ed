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

import "github.com/Fantom-foundation/evmkv/common"

const (
	// ErrUnsupportedAddress is reported for accesses to the storage or the
	// account info of addresses without a namespace.
	ErrUnsupportedAddress = common.ConstError("unsupported address")
	// ErrUnsupportedOperation is reported for operations the database does
	// not offer, like fetching code by its hash.
	ErrUnsupportedOperation = common.ConstError("unsupported operation")
	// ErrUnsupportedBalanceTransfer is reported when a commit changes the
	// account info of an address without a namespace.
	ErrUnsupportedBalanceTransfer = common.ConstError("balance changes of accounts without namespace are not supported")
	// ErrStoreFailure wraps errors of the backing store.
	ErrStoreFailure = common.ConstError("store failure")
	// ErrPoisoned is reported by all operations after a commit failed.
	ErrPoisoned = common.ConstError("database is poisoned by a failed commit")
	// ErrSerialization is reported for stored bytes that can not be decoded.
	ErrSerialization = common.ConstError("serialization error")
)
