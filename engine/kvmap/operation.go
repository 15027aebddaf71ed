// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package kvmap

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Operation is a single call on the contract.
type Operation struct {
	Method string
	Key    uint64
	Value  uint64
}

func (o Operation) String() string {
	switch o.Method {
	case InsertKeyValue, InsertKeyValueBis:
		return fmt.Sprintf("%s(%d, %d)", o.Method, o.Key, o.Value)
	case Destroy:
		return Destroy + "()"
	}
	return fmt.Sprintf("%s(%d)", o.Method, o.Key)
}

// Input encodes the call data of the operation.
func (o Operation) Input() ([]byte, error) {
	switch o.Method {
	case InsertKeyValue, InsertKeyValueBis:
		return Pack(o.Method, *uint256.NewInt(o.Key), *uint256.NewInt(o.Value))
	case DeleteKey, ReadValue:
		return Pack(o.Method, *uint256.NewInt(o.Key))
	case Destroy:
		return Pack(o.Method)
	}
	return nil, fmt.Errorf("%w: unsupported method %s", ErrInvalidInput, o.Method)
}

// Scenario is a sequence of operations covering every kind of slot update:
// clearing an empty slot, setting it, rewriting an unchanged value,
// changing it, changing it twice within one call, and releasing it.
func Scenario() []Operation {
	return []Operation{
		{Method: DeleteKey, Key: 7},
		{Method: InsertKeyValue, Key: 7, Value: 5},
		{Method: InsertKeyValue, Key: 7, Value: 5},
		{Method: InsertKeyValue, Key: 7, Value: 7},
		{Method: InsertKeyValueBis, Key: 7, Value: 5},
		{Method: ReadValue, Key: 7},
		{Method: DeleteKey, Key: 7},
		{Method: ReadValue, Key: 7},
		{Method: ReadValue, Key: 5},
	}
}
