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
	"testing"

	"github.com/Fantom-foundation/evmkv/common"
	"github.com/Fantom-foundation/evmkv/engine"
)

func TestRegistry_DefaultRegistryResolvesReservedAddresses(t *testing.T) {
	registry := DefaultRegistry()
	tests := []struct {
		address common.Address
		tag     NamespaceTag
		found   bool
	}{
		{common.Address{}, ZeroContractTag, true},
		{engine.CreateAddress(common.Address{}, 0), CreatedContractTag, true},
		{engine.CreateAddress(common.Address{}, 1), 0, false},
		{common.Address{1}, 0, false},
	}
	for _, test := range tests {
		tag, found := registry.Resolve(test.address)
		if found != test.found || tag != test.tag {
			t.Errorf("unexpected resolution of %v, wanted (%d, %t), got (%d, %t)", test.address, test.tag, test.found, tag, found)
		}
	}
}

func TestRegistry_ResolutionIsStable(t *testing.T) {
	registry := DefaultRegistry()
	address := engine.CreateAddress(common.Address{}, 0)
	first, _ := registry.Resolve(address)
	for i := 0; i < 10; i++ {
		if tag, _ := registry.Resolve(address); tag != first {
			t.Fatalf("resolution changed from %d to %d", first, tag)
		}
	}
}

func TestRegistry_DuplicatesAreRejected(t *testing.T) {
	match := AddressIs(common.Address{})
	if _, err := NewRegistry(
		Namespace{Tag: 1, Name: "a", Match: match},
		Namespace{Tag: 1, Name: "b", Match: match},
	); err == nil {
		t.Errorf("duplicate tags should be rejected")
	}
	if _, err := NewRegistry(
		Namespace{Tag: 1, Name: "a", Match: match},
		Namespace{Tag: 2, Name: "a", Match: match},
	); err == nil {
		t.Errorf("duplicate names should be rejected")
	}
	if _, err := NewRegistry(Namespace{Tag: 1, Name: "a"}); err == nil {
		t.Errorf("namespaces without matcher should be rejected")
	}
}

func TestRegistry_NamespacesAreListedByTag(t *testing.T) {
	registry, err := NewRegistry(
		Namespace{Tag: 7, Name: "seven", Match: AddressIs(common.Address{7})},
		Namespace{Tag: 3, Name: "three", Match: AddressIs(common.Address{3})},
	)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	namespaces := registry.Namespaces()
	if len(namespaces) != 2 || namespaces[0].Tag != 3 || namespaces[1].Tag != 7 {
		t.Errorf("unexpected namespaces %v", namespaces)
	}
	namespaces[0].Name = "modified"
	if cur, _ := registry.Lookup(3); cur.Name != "three" {
		t.Errorf("registry was modified through listed namespaces")
	}
	if _, found := registry.Lookup(5); found {
		t.Errorf("unknown tag should not be found")
	}
}

func TestRegistry_OverlappingMatchersResolveToLowestTag(t *testing.T) {
	all := func(common.Address) bool { return true }
	registry, err := NewRegistry(
		Namespace{Tag: 9, Name: "all", Match: all},
		Namespace{Tag: 4, Name: "one", Match: AddressIs(common.Address{1})},
	)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	if tag, _ := registry.Resolve(common.Address{1}); tag != 4 {
		t.Errorf("unexpected tag %d", tag)
	}
	if tag, _ := registry.Resolve(common.Address{2}); tag != 9 {
		t.Errorf("unexpected tag %d", tag)
	}
}
