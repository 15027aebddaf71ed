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
	"os"
	"runtime/pprof"

	"github.com/Fantom-foundation/evmkv/kvstore"
	_ "github.com/Fantom-foundation/evmkv/kvstore/ethdbstore"
	_ "github.com/Fantom-foundation/evmkv/kvstore/ldb"
	_ "github.com/Fantom-foundation/evmkv/kvstore/memory"
	_ "github.com/Fantom-foundation/evmkv/kvstore/sqlite"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var (
	dbDirectoryFlag = cli.StringFlag{
		Name:  "dir",
		Usage: "the directory of the store, ignored by in-memory variants",
		Value: "evmkv-data",
	}
	variantFlag = cli.StringFlag{
		Name:  "variant",
		Usage: fmt.Sprintf("the store implementation, one of %v", kvstore.GetAllRegisteredVariants()),
		Value: string(kvstore.MemoryVariant),
	}
	compressionFlag = cli.BoolFlag{
		Name:  "compress",
		Usage: "snappy-compress stored values",
	}
	cacheSizeFlag = cli.IntFlag{
		Name:  "cache",
		Usage: "cache size of the store in MiB, 0 for a variant specific default",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "log level, 0=crit 1=error 2=warn 3=info 4=debug 5=trace",
		Value: 3,
	}
	cpuProfileFlag = cli.StringFlag{
		Name:  "cpuprofile",
		Usage: "the file to write a CPU profile to",
	}
)

func setupLogging(ctx *cli.Context) error {
	level := log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, level, false)
	log.SetDefault(log.NewLogger(handler))
	return nil
}

// openStore opens the store selected by the command line flags.
func openStore(ctx *cli.Context) (kvstore.Store, error) {
	return kvstore.NewStore(kvstore.Parameters{
		Variant:      kvstore.Variant(ctx.String(variantFlag.Name)),
		Directory:    ctx.String(dbDirectoryFlag.Name),
		CacheSizeMiB: ctx.Int(cacheSizeFlag.Name),
		Compression:  ctx.Bool(compressionFlag.Name),
	})
}

// closeStore closes the store, reporting failures through err unless an
// earlier error is reported already.
func closeStore(store kvstore.Store, err *error) {
	if closeErr := store.Close(); closeErr != nil {
		if *err == nil {
			*err = closeErr
		} else {
			log.Error("Failure closing store", "err", closeErr)
		}
	}
}

func StartCPUProfile(profileName string) error {
	f, err := os.Create(profileName)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %s", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		return fmt.Errorf("could not start CPU profile: %s", err)
	}
	return nil
}

func StopCPUProfile() {
	pprof.StopCPUProfile()
}
