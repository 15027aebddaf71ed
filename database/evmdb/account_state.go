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

import "fmt"

// AccountState is the persisted lifecycle state of a namespace. The
// ordinals are part of the persistent format.
type AccountState byte

const (
	// NotExisting is the state of namespaces never written to or destroyed.
	// It is also assumed for namespaces without a stored state.
	NotExisting AccountState = 0
	// StorageCleared marks namespaces whose storage was wiped on creation.
	// Slots never written since are known to be zero.
	StorageCleared AccountState = 1
	// Touched marks namespaces whose storage may contain values unknown to
	// the engine.
	Touched AccountState = 2
)

func (s AccountState) String() string {
	switch s {
	case NotExisting:
		return "NotExisting"
	case StorageCleared:
		return "StorageCleared"
	case Touched:
		return "Touched"
	}
	return fmt.Sprintf("AccountState(%d)", byte(s))
}

func (s AccountState) isValid() bool {
	return s <= Touched
}

// IsStorageCleared reports whether unknown slots are guaranteed to be zero.
func (s AccountState) IsStorageCleared() bool {
	return s == StorageCleared
}

// nextAccountState computes the state of a namespace after a commit. The
// prior state is only relevant for accounts neither created nor destroyed.
func nextAccountState(prior AccountState, created, selfDestructed bool) AccountState {
	switch {
	case selfDestructed:
		return NotExisting
	case created:
		return StorageCleared
	case prior == StorageCleared:
		return StorageCleared
	}
	return Touched
}
