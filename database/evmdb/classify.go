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

	"github.com/holiman/uint256"
)

// SlotUpdate classifies the change of a storage slot by a transaction.
type SlotUpdate byte

const (
	// SlotUntouched is a slot remaining zero. No store update is required.
	SlotUntouched SlotUpdate = iota
	// SlotSet is a zero slot becoming non-zero.
	SlotSet
	// SlotRelease is a non-zero slot becoming zero.
	SlotRelease
	// SlotClean is a non-zero slot keeping its value.
	SlotClean
	// SlotReset is a non-zero slot changing to another non-zero value.
	SlotReset
)

func (u SlotUpdate) String() string {
	switch u {
	case SlotUntouched:
		return "untouched"
	case SlotSet:
		return "set"
	case SlotRelease:
		return "release"
	case SlotClean:
		return "clean"
	case SlotReset:
		return "reset"
	}
	return fmt.Sprintf("SlotUpdate(%d)", byte(u))
}

func classifySlot(original, present *uint256.Int) SlotUpdate {
	switch {
	case original.IsZero() && present.IsZero():
		return SlotUntouched
	case original.IsZero():
		return SlotSet
	case present.IsZero():
		return SlotRelease
	case original.Eq(present):
		return SlotClean
	}
	return SlotReset
}
