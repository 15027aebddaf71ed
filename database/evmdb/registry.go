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
	"sort"

	"github.com/Fantom-foundation/evmkv/common"
	"github.com/Fantom-foundation/evmkv/engine"
)

// Namespace assigns a tag to the addresses accepted by its matcher.
type Namespace struct {
	Tag   NamespaceTag
	Name  string
	Match func(common.Address) bool
}

// AddressIs produces a matcher accepting exactly the given address.
func AddressIs(address common.Address) func(common.Address) bool {
	return func(candidate common.Address) bool {
		return candidate == address
	}
}

// Registry resolves addresses to the namespace their data is stored in.
// Registries are immutable. Addresses matched by several namespaces resolve
// to the one with the lowest tag.
type Registry struct {
	namespaces []Namespace
}

// NewRegistry creates a registry of the given namespaces. Tags and names
// need to be unique.
func NewRegistry(namespaces ...Namespace) (*Registry, error) {
	tags := map[NamespaceTag]struct{}{}
	names := map[string]struct{}{}
	for _, cur := range namespaces {
		if cur.Match == nil {
			return nil, fmt.Errorf("namespace %q has no matcher", cur.Name)
		}
		if _, found := tags[cur.Tag]; found {
			return nil, fmt.Errorf("duplicate namespace tag %d", cur.Tag)
		}
		if _, found := names[cur.Name]; found {
			return nil, fmt.Errorf("duplicate namespace name %q", cur.Name)
		}
		tags[cur.Tag] = struct{}{}
		names[cur.Name] = struct{}{}
	}
	res := append([]Namespace{}, namespaces...)
	sort.Slice(res, func(i, j int) bool { return res[i].Tag < res[j].Tag })
	return &Registry{namespaces: res}, nil
}

// DefaultRegistry accepts the zero address and the address of the first
// contract created by it.
func DefaultRegistry() *Registry {
	res, err := NewRegistry(
		Namespace{
			Tag:   ZeroContractTag,
			Name:  "zero-contract",
			Match: AddressIs(common.Address{}),
		},
		Namespace{
			Tag:   CreatedContractTag,
			Name:  "created-contract",
			Match: AddressIs(engine.CreateAddress(common.Address{}, 0)),
		},
	)
	if err != nil {
		panic(fmt.Sprintf("invalid default registry: %v", err))
	}
	return res
}

// Resolve obtains the tag of the given address, false if the address
// belongs to no namespace.
func (r *Registry) Resolve(address common.Address) (NamespaceTag, bool) {
	for _, cur := range r.namespaces {
		if cur.Match(address) {
			return cur.Tag, true
		}
	}
	return 0, false
}

// Namespaces lists the registered namespaces ordered by their tags.
func (r *Registry) Namespaces() []Namespace {
	return append([]Namespace{}, r.namespaces...)
}

// Lookup obtains the namespace with the given tag.
func (r *Registry) Lookup(tag NamespaceTag) (Namespace, bool) {
	for _, cur := range r.namespaces {
		if cur.Tag == tag {
			return cur, true
		}
	}
	return Namespace{}, false
}
