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

	"github.com/Fantom-foundation/evmkv/engine"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// storedAccountInfo is the persistent form of an engine.AccountInfo.
type storedAccountInfo struct {
	Balance  []byte
	Nonce    uint64
	CodeHash [32]byte
	Code     []byte
}

func encodeAccountInfo(info *engine.AccountInfo) ([]byte, error) {
	res, err := rlp.EncodeToBytes(&storedAccountInfo{
		Balance:  info.Balance.Bytes(),
		Nonce:    info.Nonce,
		CodeHash: info.CodeHash,
		Code:     info.Code,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode account info: %w", ErrSerialization, err)
	}
	return res, nil
}

func decodeAccountInfo(data []byte) (engine.AccountInfo, error) {
	var stored storedAccountInfo
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return engine.AccountInfo{}, fmt.Errorf("%w: invalid account info: %w", ErrSerialization, err)
	}
	if len(stored.Balance) > 32 {
		return engine.AccountInfo{}, fmt.Errorf("%w: balance exceeds 256 bits", ErrSerialization)
	}
	res := engine.AccountInfo{
		Nonce:    stored.Nonce,
		CodeHash: stored.CodeHash,
	}
	res.Balance.SetBytes(stored.Balance)
	if len(stored.Code) > 0 {
		res.Code = stored.Code
	}
	return res, nil
}

func encodeAccountState(state AccountState) ([]byte, error) {
	res, err := rlp.EncodeToBytes(uint8(state))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode account state: %w", ErrSerialization, err)
	}
	return res, nil
}

func decodeAccountState(data []byte) (AccountState, error) {
	var value uint8
	if err := rlp.DecodeBytes(data, &value); err != nil {
		return 0, fmt.Errorf("%w: invalid account state: %w", ErrSerialization, err)
	}
	res := AccountState(value)
	if !res.isValid() {
		return 0, fmt.Errorf("%w: unknown account state %d", ErrSerialization, value)
	}
	return res, nil
}

func encodeSlotValue(value *uint256.Int) ([]byte, error) {
	res, err := rlp.EncodeToBytes(value.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode slot value: %w", ErrSerialization, err)
	}
	return res, nil
}

func decodeSlotValue(data []byte) (uint256.Int, error) {
	var raw []byte
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return uint256.Int{}, fmt.Errorf("%w: invalid slot value: %w", ErrSerialization, err)
	}
	if len(raw) > 32 {
		return uint256.Int{}, fmt.Errorf("%w: slot value exceeds 256 bits", ErrSerialization)
	}
	var res uint256.Int
	res.SetBytes(raw)
	return res, nil
}

// DescribeValue decodes a stored value into a human readable form.
func DescribeValue(key Key, value []byte) (string, error) {
	switch key.Category {
	case AccountInfoCategory:
		info, err := decodeAccountInfo(value)
		if err != nil {
			return "", err
		}
		return info.String(), nil
	case AccountStateCategory:
		state, err := decodeAccountState(value)
		if err != nil {
			return "", err
		}
		return state.String(), nil
	case StorageCategory:
		slot, err := decodeSlotValue(value)
		if err != nil {
			return "", err
		}
		return slot.Dec(), nil
	}
	return "", fmt.Errorf("%w: unknown category %v", ErrSerialization, key.Category)
}
