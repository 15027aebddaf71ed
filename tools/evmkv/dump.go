// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package main

import (
	"fmt"

	"github.com/Fantom-foundation/evmkv/database/evmdb"
	"github.com/Fantom-foundation/evmkv/kvstore"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

var dumpCommand = cli.Command{
	Action: dump,
	Name:   "dump",
	Usage:  "lists all entries of a store with their decoded keys and values",
	Flags: []cli.Flag{
		&dbDirectoryFlag,
		&variantFlag,
		&compressionFlag,
		&rawFlag,
	},
}

var rawFlag = cli.BoolFlag{
	Name:  "raw",
	Usage: "print the encoded keys and values",
}

func dump(ctx *cli.Context) (err error) {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store, &err)

	iteratee, ok := store.(kvstore.Iteratee)
	if !ok {
		return fmt.Errorf("store variant %s does not support iteration", ctx.String(variantFlag.Name))
	}
	raw := ctx.Bool(rawFlag.Name)
	entries := 0
	err = iteratee.ForEach(nil, func(key, value []byte) error {
		entries++
		if raw {
			fmt.Printf("%s %s\n", hexutil.Encode(key), hexutil.Encode(value))
			return nil
		}
		decoded, err := evmdb.DecodeKey(key)
		if err != nil {
			fmt.Printf("%s %s (unknown key: %v)\n", hexutil.Encode(key), hexutil.Encode(value), err)
			return nil
		}
		description, err := evmdb.DescribeValue(decoded, value)
		if err != nil {
			description = fmt.Sprintf("%s (%v)", hexutil.Encode(value), err)
		}
		fmt.Printf("%-24v %s\n", decoded, description)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("%d entries\n", entries)
	return nil
}
