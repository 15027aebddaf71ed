// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"bytes"
	"encoding/hex"
)

// Address is the 20-byte identifier of an account.
type Address [20]byte

// Hash is a 32-byte cryptographic hash, e.g. a code hash or a block hash.
type Hash [32]byte

// Compare orders addresses lexicographically by their byte representation.
func (a *Address) Compare(b *Address) int {
	return bytes.Compare(a[:], b[:])
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// HexToAddress parses the hex representation of an address, with or without
// a 0x prefix. Inputs shorter than 20 bytes are left-padded with zeros.
func HexToAddress(s string) (Address, error) {
	var res Address
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return res, err
	}
	if len(data) > len(res) {
		data = data[len(data)-len(res):]
	}
	copy(res[len(res)-len(data):], data)
	return res, nil
}
