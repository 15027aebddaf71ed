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

	"github.com/Fantom-foundation/evmkv/common"
	"github.com/Fantom-foundation/evmkv/database/evmdb"
	"github.com/Fantom-foundation/evmkv/engine"
	"github.com/Fantom-foundation/evmkv/engine/kvmap"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var runCommand = cli.Command{
	Action: run,
	Name:   "run",
	Usage:  "deploys the key-value map contract and replays a sequence of operations on it",
	Flags: []cli.Flag{
		&dbDirectoryFlag,
		&variantFlag,
		&compressionFlag,
		&cacheSizeFlag,
		&cpuProfileFlag,
	},
}

// errContractDestroyed is reported if the contract of a previous run was
// destroyed. A redeployment would target an address outside of the stored
// namespaces.
const errContractDestroyed = common.ConstError("contract destroyed, use a fresh store")

func run(ctx *cli.Context) (err error) {
	if profile := ctx.String(cpuProfileFlag.Name); profile != "" {
		if err := StartCPUProfile(profile); err != nil {
			return err
		}
		defer StopCPUProfile()
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store, &err)

	db := evmdb.NewDatabase(store, evmdb.Parameters{})
	executor := engine.NewExecutor(db)
	codeHash := executor.Register(kvmap.Code, kvmap.Program{})

	owner := common.Address{}
	contract := engine.CreateAddress(owner, 0)
	info, err := db.Basic(contract)
	if err != nil {
		return err
	}
	if info == nil || info.CodeHash != codeHash {
		ownerInfo, err := db.Basic(owner)
		if err != nil {
			return err
		}
		if ownerInfo != nil && ownerInfo.Nonce > 0 {
			return fmt.Errorf("%w: no contract at %v", errContractDestroyed, contract)
		}
		log.Info("Deploying contract", "address", contract)
		if _, err := executor.Deploy(owner, kvmap.Code); err != nil {
			return fmt.Errorf("failed to deploy contract: %w", err)
		}
	} else {
		log.Info("Reusing deployed contract", "address", contract)
	}
	db.LogStatus()
	db.ResetStorageStats()

	for _, op := range kvmap.Scenario() {
		input, err := op.Input()
		if err != nil {
			return err
		}
		output, err := executor.Call(owner, contract, input)
		if err != nil {
			return fmt.Errorf("failed to execute %v: %w", op, err)
		}
		result, err := kvmap.UnpackResult(op.Method, output)
		if err != nil {
			return err
		}
		stats := db.StorageStats()
		fmt.Printf("%-28s result=%-4v %v\n", op, &result, stats)
		db.LogStatus()
		db.ResetStorageStats()
	}
	return db.Check()
}
