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
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/Fantom-foundation/evmkv/common"
	"github.com/Fantom-foundation/evmkv/engine"
	"github.com/Fantom-foundation/evmkv/kvstore"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

// Parameters configure a Database. Zero values select defaults.
type Parameters struct {
	// Registry defines the addresses the database can store data for. If
	// nil, DefaultRegistry() is used.
	Registry *Registry
	// Logger receives the diagnostic output of the database. If nil, a
	// child of the root logger is used.
	Logger log.Logger
	// Metrics receives statistics on reads and commits. May be nil.
	Metrics *Metrics
}

// Database provides the state of the accounts of a namespace registry to an
// execution engine, backed by an ordered key-value store.
//
// Storage reads are cached for the duration of a session, which ends with a
// call to ResetStorageStats. Commits do not update the cache, so sessions
// should not span multiple executions reading the same slots. This includes
// selfdestructs: a slot read before the account was destroyed keeps its old
// value until the session is reset.
//
// A failing commit poisons the database. Since Commit can not report
// errors, the failure is recorded and reported by Check and by every
// subsequent operation.
type Database struct {
	store    kvstore.Store
	registry *Registry
	log      log.Logger
	metrics  *Metrics

	// mu protects the fields below. It is never held while accessing the store.
	mu     sync.Mutex
	cache  *storageCache
	poison error
}

var (
	_ engine.Database       = (*Database)(nil)
	_ engine.DatabaseRef    = (*Database)(nil)
	_ engine.DatabaseCommit = (*Database)(nil)
	_ engine.Checkable      = (*Database)(nil)
)

// NewDatabase creates a database on top of the given store. The store
// remains owned by the caller.
func NewDatabase(store kvstore.Store, params Parameters) *Database {
	if params.Registry == nil {
		params.Registry = DefaultRegistry()
	}
	if params.Logger == nil {
		params.Logger = log.New("module", "evmdb")
	}
	return &Database{
		store:    store,
		registry: params.Registry,
		log:      params.Logger,
		metrics:  params.Metrics,
		cache:    newStorageCache(),
	}
}

// Check reports the error of a failed commit, if there was one.
func (d *Database) Check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checkLocked()
}

func (d *Database) checkLocked() error {
	if d.poison != nil {
		return fmt.Errorf("%w: %w", ErrPoisoned, d.poison)
	}
	return nil
}

func (d *Database) resolve(address common.Address) (NamespaceTag, error) {
	tag, found := d.registry.Resolve(address)
	if !found {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedAddress, address)
	}
	return tag, nil
}

func (d *Database) read(key []byte) ([]byte, error) {
	res, err := d.store.ReadValueBytes(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read key %x: %w", ErrStoreFailure, key, err)
	}
	return res, nil
}

func (d *Database) Basic(address common.Address) (*engine.AccountInfo, error) {
	return d.BasicRef(address)
}

// BasicRef obtains the stored account info of the given address, nil if
// none was stored yet.
func (d *Database) BasicRef(address common.Address) (*engine.AccountInfo, error) {
	if err := d.Check(); err != nil {
		return nil, err
	}
	tag, err := d.resolve(address)
	if err != nil {
		return nil, err
	}
	data, err := d.read(accountInfoKey(tag))
	if err != nil || data == nil {
		return nil, err
	}
	info, err := decodeAccountInfo(data)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (d *Database) CodeByHash(hash common.Hash) ([]byte, error) {
	return d.CodeByHashRef(hash)
}

// CodeByHashRef is not supported. Code is part of the account info.
func (d *Database) CodeByHashRef(hash common.Hash) ([]byte, error) {
	if err := d.Check(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: code lookup by hash %v", ErrUnsupportedOperation, hash)
}

func (d *Database) Storage(address common.Address, index uint256.Int) (uint256.Int, error) {
	return d.StorageRef(address, index)
}

// StorageRef obtains the value of a storage slot. Values are served from
// the session cache if possible, and loaded from the store otherwise.
func (d *Database) StorageRef(address common.Address, index uint256.Int) (uint256.Int, error) {
	if err := d.Check(); err != nil {
		return uint256.Int{}, err
	}
	tag, err := d.resolve(address)
	if err != nil {
		return uint256.Int{}, err
	}
	id := slotId{tag: tag, index: index}

	d.mu.Lock()
	value, found := d.cache.get(id)
	d.mu.Unlock()
	if found {
		d.log.Trace("Storage read", "cache", "warm", "tag", tag, "index", &index, "value", &value)
		d.metrics.observeRead(true)
		return value, nil
	}

	value, err = d.loadSlot(tag, &index)
	if err != nil {
		return uint256.Int{}, err
	}
	d.mu.Lock()
	d.cache.add(id, value)
	d.mu.Unlock()
	d.log.Trace("Storage read", "cache", "cold", "tag", tag, "index", &index, "value", &value)
	d.metrics.observeRead(false)
	return value, nil
}

func (d *Database) loadSlot(tag NamespaceTag, index *uint256.Int) (uint256.Int, error) {
	key, err := storageKey(tag, index)
	if err != nil {
		return uint256.Int{}, err
	}
	data, err := d.read(key)
	if err != nil || data == nil {
		return uint256.Int{}, err
	}
	return decodeSlotValue(data)
}

func (d *Database) BlockHash(number uint64) (common.Hash, error) {
	return d.BlockHashRef(number)
}

// BlockHashRef produces a deterministic hash for the given block number,
// the hash of its decimal representation.
func (d *Database) BlockHashRef(number uint64) (common.Hash, error) {
	if err := d.Check(); err != nil {
		return common.Hash{}, err
	}
	return common.Keccak256([]byte(strconv.FormatUint(number, 10))), nil
}

// AccountState obtains the persisted lifecycle state of the namespace of
// the given address.
func (d *Database) AccountState(address common.Address) (AccountState, error) {
	if err := d.Check(); err != nil {
		return NotExisting, err
	}
	tag, err := d.resolve(address)
	if err != nil {
		return NotExisting, err
	}
	return d.loadAccountState(tag)
}

func (d *Database) loadAccountState(tag NamespaceTag) (AccountState, error) {
	data, err := d.read(accountStateKey(tag))
	if err != nil || data == nil {
		return NotExisting, err
	}
	return decodeAccountState(data)
}

// StorageStats obtains a snapshot of the counters of the current session.
func (d *Database) StorageStats() StorageStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.stats()
}

// ResetStorageStats ends the current session, dropping all counters and
// cached values.
func (d *Database) ResetStorageStats() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.reset()
}

// LogStatus prints the counters of the current session.
func (d *Database) LogStatus() {
	stats := d.StorageStats()
	d.log.Info("Storage status",
		"reset", stats.NumberReset,
		"set", stats.NumberSet,
		"release", stats.NumberRelease,
		"warm", stats.NumberWarmRead,
		"cold", stats.NumberColdRead,
	)
}

// Commit applies the given changes. Failures are recorded and reported by
// Check and all later operations.
func (d *Database) Commit(changes map[common.Address]*engine.Account) {
	// The error is retained by the database.
	_ = d.CommitWithError(changes)
}

// CommitWithError applies the given changes atomically. Any failure poisons
// the database.
func (d *Database) CommitWithError(changes map[common.Address]*engine.Account) error {
	if err := d.Check(); err != nil {
		return err
	}
	if err := d.commit(changes); err != nil {
		d.mu.Lock()
		if d.poison == nil {
			d.poison = err
		}
		d.mu.Unlock()
		d.metrics.observeCommitFailure()
		d.log.Error("Commit failed, database is poisoned", "err", err)
		return err
	}
	return nil
}

func (d *Database) commit(changes map[common.Address]*engine.Account) error {
	addresses := maps.Keys(changes)
	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i].Compare(&addresses[j]) < 0
	})

	batch := kvstore.NewBatch()
	var counts slotCounts
	accounts := 0
	for _, address := range addresses {
		account := changes[address]
		if account == nil || !account.IsTouched() {
			continue
		}
		tag, found := d.registry.Resolve(address)
		if !found {
			if len(account.Storage) > 0 {
				return fmt.Errorf("%w: storage changes for %v", ErrUnsupportedAddress, address)
			}
			if !account.Info.IsDefault() {
				return fmt.Errorf("%w: account %v changed to %v", ErrUnsupportedBalanceTransfer, address, &account.Info)
			}
			continue
		}
		if err := d.addAccountUpdates(batch, tag, account, &counts); err != nil {
			return err
		}
		accounts++
	}

	if batch.IsEmpty() {
		d.log.Debug("Commit without changes", "accounts", accounts)
		return nil
	}
	if err := d.store.WriteBatch(batch); err != nil {
		return fmt.Errorf("%w: failed to write batch: %w", ErrStoreFailure, err)
	}

	d.mu.Lock()
	d.cache.addUpdates(counts)
	d.mu.Unlock()
	d.metrics.observeCommit(counts, batch.Len())
	d.log.Debug("Committed changes",
		"accounts", accounts, "operations", batch.Len(),
		"set", counts.set, "reset", counts.reset, "release", counts.release)
	return nil
}

func (d *Database) addAccountUpdates(batch *kvstore.Batch, tag NamespaceTag, account *engine.Account, counts *slotCounts) error {
	storedState, err := d.read(accountStateKey(tag))
	if err != nil {
		return err
	}

	if account.IsSelfDestructed() {
		batch.DeletePrefix(storagePrefix(tag))
		info := engine.DefaultAccountInfo()
		if err := d.putAccountInfo(batch, tag, &info); err != nil {
			return err
		}
		return putAccountState(batch, tag, storedState, nextAccountState(NotExisting, false, true))
	}

	if err := d.putAccountInfo(batch, tag, &account.Info); err != nil {
		return err
	}
	var state AccountState
	if account.IsCreated() {
		batch.DeletePrefix(storagePrefix(tag))
		state = nextAccountState(NotExisting, true, false)
	} else {
		prior := NotExisting
		if storedState != nil {
			if prior, err = decodeAccountState(storedState); err != nil {
				return err
			}
		}
		state = nextAccountState(prior, false, false)
	}
	if err := putAccountState(batch, tag, storedState, state); err != nil {
		return err
	}

	indexes := maps.Keys(account.Storage)
	sort.Slice(indexes, func(i, j int) bool { return indexes[i].Lt(&indexes[j]) })
	for _, index := range indexes {
		slot := account.Storage[index]
		original := slot.OriginalValue
		if account.IsCreated() {
			// All slots were removed by the prefix deletion above.
			original.Clear()
		}
		update := classifySlot(&original, &slot.PresentValue)
		d.log.Trace("Slot update", "tag", tag, "index", &index, "original", &original, "present", &slot.PresentValue, "update", update)

		key, err := storageKey(tag, &index)
		if err != nil {
			return err
		}
		switch update {
		case SlotUntouched:
			continue
		case SlotSet, SlotReset:
			value, err := encodeSlotValue(&slot.PresentValue)
			if err != nil {
				return err
			}
			batch.Put(key, value)
		case SlotRelease:
			batch.Delete(key)
		}
		counts.add(update)
	}
	return nil
}

func (d *Database) putAccountInfo(batch *kvstore.Batch, tag NamespaceTag, info *engine.AccountInfo) error {
	value, err := encodeAccountInfo(info)
	if err != nil {
		return err
	}
	return d.putIfChanged(batch, accountInfoKey(tag), value)
}

// putAccountState adds a put of the given state to the batch unless it
// matches the stored encoding.
func putAccountState(batch *kvstore.Batch, tag NamespaceTag, stored []byte, state AccountState) error {
	value, err := encodeAccountState(state)
	if err != nil {
		return err
	}
	if stored == nil || !bytes.Equal(stored, value) {
		batch.Put(accountStateKey(tag), value)
	}
	return nil
}

// putIfChanged adds a put to the batch unless the store holds the value
// already.
func (d *Database) putIfChanged(batch *kvstore.Batch, key, value []byte) error {
	stored, err := d.read(key)
	if err != nil {
		return err
	}
	if stored != nil && bytes.Equal(stored, value) {
		return nil
	}
	batch.Put(key, value)
	return nil
}
