// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package kvstore

import (
	"fmt"
	"sort"

	"github.com/Fantom-foundation/evmkv/common"
	"golang.org/x/exp/maps"
)

// ----------------------------------------------------------------------------
//                        for store users
// ----------------------------------------------------------------------------

// Parameters struct defining configuration parameters for store instances.
type Parameters struct {
	Variant      Variant
	Directory    string // ignored by in-memory variants
	CacheSizeMiB int    // 0 selects a variant specific default
	Compression  bool   // snappy-compress stored values
}

// UnsupportedConfiguration is the error returned if unsupported configuration
// parameters have been specified. The text may contain further details regarding the
// unsupported feature.
const UnsupportedConfiguration = common.ConstError("unsupported configuration")

// Variant names a backing store implementation.
type Variant string

const (
	MemoryVariant    Variant = "memory"
	LevelDbVariant   Variant = "ldb"
	SqliteVariant    Variant = "sqlite"
	EthMemoryVariant Variant = "eth-memory"
	PebbleVariant    Variant = "pebble"
)

// NewStore is the public interface for creating store instances. If for the
// given parameters a store can be constructed, the resulting store is returned.
// If the requested variant is not registered, the error is an
// UnsupportedConfiguration error. Variants are registered by importing their
// implementation packages.
func NewStore(params Parameters) (Store, error) {
	if params.Variant == "" {
		params.Variant = MemoryVariant
	}
	factory, found := storeFactoryRegistry[params.Variant]
	if !found {
		return nil, fmt.Errorf("%w: no registered implementation for %q", UnsupportedConfiguration, params.Variant)
	}
	store, err := factory(params)
	if err != nil {
		return nil, err
	}
	if params.Compression {
		store = NewCompressedStore(store)
	}
	return store, nil
}

// ----------------------------------------------------------------------------
//                      for store implementations
// ----------------------------------------------------------------------------

type StoreFactory func(params Parameters) (Store, error)

var storeFactoryRegistry = map[Variant]StoreFactory{}

// RegisterStoreFactory makes a store implementation available under the given
// variant name. It is intended to be called from init functions.
func RegisterStoreFactory(variant Variant, factory StoreFactory) {
	if _, found := storeFactoryRegistry[variant]; found {
		panic(fmt.Sprintf("attempted to register multiple factories for %v", variant))
	}
	storeFactoryRegistry[variant] = factory
}

func GetAllRegisteredStoreFactories() map[Variant]StoreFactory {
	return maps.Clone(storeFactoryRegistry)
}

// GetAllRegisteredVariants lists the registered variants in lexicographical order.
func GetAllRegisteredVariants() []Variant {
	res := maps.Keys(storeFactoryRegistry)
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
