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
	"bytes"
	"fmt"

	"github.com/Fantom-foundation/evmkv/common"
	"github.com/holiman/uint256"
)

// AccountInfo summarizes the non-storage properties of an account.
type AccountInfo struct {
	Balance  uint256.Int
	Nonce    uint64
	CodeHash common.Hash
	Code     []byte
}

// DefaultAccountInfo returns the info of an account that has never been
// used: no balance, no nonce, and no code.
func DefaultAccountInfo() AccountInfo {
	return AccountInfo{CodeHash: common.EmptyCodeHash}
}

// IsDefault reports whether the info equals DefaultAccountInfo().
func (a *AccountInfo) IsDefault() bool {
	return a.Balance.IsZero() && a.Nonce == 0 && a.CodeHash == common.EmptyCodeHash && len(a.Code) == 0
}

// Equal reports whether both infos describe the same account properties.
func (a *AccountInfo) Equal(b *AccountInfo) bool {
	return a.Balance.Eq(&b.Balance) && a.Nonce == b.Nonce && a.CodeHash == b.CodeHash && bytes.Equal(a.Code, b.Code)
}

func (a *AccountInfo) String() string {
	return fmt.Sprintf("{balance: %v, nonce: %d, code: %v (%d bytes)}", &a.Balance, a.Nonce, a.CodeHash, len(a.Code))
}

// AccountStatus is a set of flags recorded while executing a transaction.
type AccountStatus uint8

const (
	// Touched marks accounts accessed in a state-modifying way.
	Touched AccountStatus = 1 << iota
	// Created marks accounts created by the transaction.
	Created
	// SelfDestructed marks accounts destroyed by the transaction.
	SelfDestructed
)

func (s AccountStatus) String() string {
	var res []byte
	for _, flag := range []struct {
		status AccountStatus
		name   string
	}{{Touched, "touched"}, {Created, "created"}, {SelfDestructed, "selfdestructed"}} {
		if s&flag.status == 0 {
			continue
		}
		if len(res) > 0 {
			res = append(res, '|')
		}
		res = append(res, flag.name...)
	}
	if len(res) == 0 {
		return "none"
	}
	return string(res)
}

// StorageSlot tracks the value of a storage slot at the beginning of a
// transaction and after its execution.
type StorageSlot struct {
	OriginalValue uint256.Int
	PresentValue  uint256.Int
}

// IsChanged reports whether the transaction modified the slot.
func (s *StorageSlot) IsChanged() bool {
	return !s.OriginalValue.Eq(&s.PresentValue)
}

// Account is the state delta of a single account produced by a transaction.
type Account struct {
	Info    AccountInfo
	Storage map[uint256.Int]StorageSlot
	Status  AccountStatus
}

func NewAccount(info AccountInfo) *Account {
	return &Account{Info: info, Storage: map[uint256.Int]StorageSlot{}}
}

func (a *Account) IsTouched() bool {
	return a.Status&Touched != 0
}

func (a *Account) IsCreated() bool {
	return a.Status&Created != 0
}

func (a *Account) IsSelfDestructed() bool {
	return a.Status&SelfDestructed != 0
}

func (a *Account) MarkTouched() {
	a.Status |= Touched
}
