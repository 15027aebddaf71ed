// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package engine

import (
	"github.com/Fantom-foundation/evmkv/common"
	"github.com/holiman/uint256"
)

// Database is the state access required by the execution engine. Reads may
// update internal bookkeeping of the implementation, like caches.
type Database interface {
	// Basic obtains the info of the given account, nil if it does not exist.
	Basic(address common.Address) (*AccountInfo, error)
	// CodeByHash obtains the code with the given hash.
	CodeByHash(hash common.Hash) ([]byte, error)
	// Storage obtains the value of a storage slot, zero if it is not set.
	Storage(address common.Address, index uint256.Int) (uint256.Int, error)
	// BlockHash obtains the hash of the block with the given number.
	BlockHash(number uint64) (common.Hash, error)
}

// DatabaseRef offers the read operations of a Database on a shared instance.
type DatabaseRef interface {
	BasicRef(address common.Address) (*AccountInfo, error)
	CodeByHashRef(hash common.Hash) ([]byte, error)
	StorageRef(address common.Address, index uint256.Int) (uint256.Int, error)
	BlockHashRef(number uint64) (common.Hash, error)
}

// DatabaseCommit receives the state changes of an executed transaction.
// Commit can not report errors. Implementations unable to apply changes
// are expected to offer a Check() error method reporting the failure.
type DatabaseCommit interface {
	Commit(changes map[common.Address]*Account)
}

// StateDatabase is a Database accepting state changes.
type StateDatabase interface {
	Database
	DatabaseCommit
}

// Checkable is implemented by databases recording errors that could not
// be reported through the operation causing them.
type Checkable interface {
	Check() error
}
