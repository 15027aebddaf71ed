// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
// Package kvmap provides a native implementation of a contract keeping a
// mapping from uint256 keys to uint256 values, laid out in storage the way
// the Solidity compiler places a mapping declared as the first state
// variable of a contract.
package kvmap

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/Fantom-foundation/evmkv/common"
	"github.com/Fantom-foundation/evmkv/engine"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/holiman/uint256"
)

// Code is the code deployed for contracts run by the Program.
var Code = []byte("native:ExampleKeyValueMap:v1")

const (
	ErrInvalidInput = common.ConstError("invalid input")
	ErrOverflow     = common.ConstError("arithmetic overflow")
)

const (
	InsertKeyValue    = "insert_key_value"
	InsertKeyValueBis = "insert_key_value_bis"
	DeleteKey         = "delete_key"
	ReadValue         = "read_value"
	Destroy           = "destroy"
)

const definition = `[
	{"type":"function","name":"insert_key_value","stateMutability":"nonpayable",
	 "inputs":[{"name":"key","type":"uint256"},{"name":"value","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"insert_key_value_bis","stateMutability":"nonpayable",
	 "inputs":[{"name":"key","type":"uint256"},{"name":"value","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"delete_key","stateMutability":"nonpayable",
	 "inputs":[{"name":"key","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"read_value","stateMutability":"nonpayable",
	 "inputs":[{"name":"key","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"destroy","stateMutability":"nonpayable",
	 "inputs":[],"outputs":[]}
]`

// ABI is the interface description of the contract.
var ABI = mustParse(definition)

func mustParse(def string) abi.ABI {
	res, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid contract ABI: %v", err))
	}
	return res
}

// Program implements the contract.
type Program struct{}

var _ engine.Program = Program{}

func (Program) Run(host engine.Host, input []byte) ([]byte, error) {
	method, err := ABI.MethodById(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	var result uint256.Int
	switch method.Name {
	case InsertKeyValue:
		key, value := toWord(args[0]), toWord(args[1])
		err = host.SStore(SlotOf(key), value)
	case InsertKeyValueBis:
		key, value := toWord(args[0]), toWord(args[1])
		slot := SlotOf(key)
		if err = host.SStore(slot, value); err != nil {
			break
		}
		next, overflow := new(uint256.Int).AddOverflow(&value, uint256.NewInt(1))
		if overflow {
			return nil, ErrOverflow
		}
		err = host.SStore(slot, *next)
	case DeleteKey:
		err = host.SStore(SlotOf(toWord(args[0])), uint256.Int{})
	case ReadValue:
		result, err = host.SLoad(SlotOf(toWord(args[0])))
	case Destroy:
		if err := host.SelfDestruct(host.Caller()); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unsupported method %s", ErrInvalidInput, method.Name)
	}
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(result.ToBig())
}

// SlotOf computes the storage slot holding the value of the given key.
func SlotOf(key uint256.Int) uint256.Int {
	keyWord := key.Bytes32()
	var position [32]byte
	hash := common.Keccak256(keyWord[:], position[:])
	var res uint256.Int
	res.SetBytes32(hash[:])
	return res
}

func toWord(arg any) uint256.Int {
	var res uint256.Int
	res.SetFromBig(arg.(*big.Int))
	return res
}

// Pack encodes a call of the given method.
func Pack(method string, args ...uint256.Int) ([]byte, error) {
	converted := make([]any, 0, len(args))
	for _, arg := range args {
		converted = append(converted, arg.ToBig())
	}
	return ABI.Pack(method, converted...)
}

// UnpackResult decodes the value returned by a call of the given method.
// Methods without result produce zero.
func UnpackResult(method string, output []byte) (uint256.Int, error) {
	values, err := ABI.Unpack(method, output)
	if err != nil {
		return uint256.Int{}, err
	}
	if len(values) == 0 {
		return uint256.Int{}, nil
	}
	return toWord(values[0]), nil
}
