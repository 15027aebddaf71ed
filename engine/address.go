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
	geth "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CreateAddress computes the address of a contract created by the given
// account using the given nonce.
func CreateAddress(creator common.Address, nonce uint64) common.Address {
	return common.Address(crypto.CreateAddress(geth.Address(creator), nonce))
}
