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

	"github.com/holiman/uint256"
)

// StorageStats is a snapshot of the counters of a session.
type StorageStats struct {
	NumberReset    uint64
	NumberSet      uint64
	NumberRelease  uint64
	NumberWarmRead uint64
	// NumberColdRead equals the number of cached slots.
	NumberColdRead uint64
}

func (s StorageStats) String() string {
	return fmt.Sprintf("reset=%d set=%d release=%d warm=%d cold=%d",
		s.NumberReset, s.NumberSet, s.NumberRelease, s.NumberWarmRead, s.NumberColdRead)
}

type slotId struct {
	tag   NamespaceTag
	index uint256.Int
}

// storageCache retains the slot values read during a session. Commits do
// not update cached values, so a session should span a single execution.
type storageCache struct {
	numberReset    uint64
	numberSet      uint64
	numberRelease  uint64
	numberWarmRead uint64
	slots          map[slotId]uint256.Int
}

func newStorageCache() *storageCache {
	return &storageCache{slots: map[slotId]uint256.Int{}}
}

// get looks up a slot, counting hits as warm reads.
func (c *storageCache) get(id slotId) (uint256.Int, bool) {
	res, found := c.slots[id]
	if found {
		c.numberWarmRead++
	}
	return res, found
}

// add records a value loaded from the store. Values loaded concurrently
// for the same slot are counted once.
func (c *storageCache) add(id slotId, value uint256.Int) {
	c.slots[id] = value
}

func (c *storageCache) addUpdates(counts slotCounts) {
	c.numberSet += counts.set
	c.numberReset += counts.reset
	c.numberRelease += counts.release
}

func (c *storageCache) stats() StorageStats {
	return StorageStats{
		NumberReset:    c.numberReset,
		NumberSet:      c.numberSet,
		NumberRelease:  c.numberRelease,
		NumberWarmRead: c.numberWarmRead,
		NumberColdRead: uint64(len(c.slots)),
	}
}

func (c *storageCache) reset() {
	*c = storageCache{slots: map[slotId]uint256.Int{}}
}

// slotCounts collects the slot updates of a single commit.
type slotCounts struct {
	set, reset, release, clean uint64
}

func (c *slotCounts) add(update SlotUpdate) {
	switch update {
	case SlotSet:
		c.set++
	case SlotReset:
		c.reset++
	case SlotRelease:
		c.release++
	case SlotClean:
		c.clean++
	}
}
