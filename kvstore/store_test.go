// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package kvstore_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/Fantom-foundation/evmkv/kvstore"
	_ "github.com/Fantom-foundation/evmkv/kvstore/ethdbstore"
	_ "github.com/Fantom-foundation/evmkv/kvstore/ldb"
	_ "github.com/Fantom-foundation/evmkv/kvstore/memory"
	_ "github.com/Fantom-foundation/evmkv/kvstore/sqlite"
	"github.com/stretchr/testify/require"
)

func TestStoreConfigs_AllVariantsAreRegistered(t *testing.T) {
	want := []kvstore.Variant{
		kvstore.EthMemoryVariant,
		kvstore.LevelDbVariant,
		kvstore.MemoryVariant,
		kvstore.PebbleVariant,
		kvstore.SqliteVariant,
	}
	require.Equal(t, want, kvstore.GetAllRegisteredVariants())
}

func TestStoreConfigs_UnknownVariantIsRejected(t *testing.T) {
	_, err := kvstore.NewStore(kvstore.Parameters{Variant: "unknown"})
	if !errors.Is(err, kvstore.UnsupportedConfiguration) {
		t.Errorf("unexpected error, wanted %v, got %v", kvstore.UnsupportedConfiguration, err)
	}
}

func TestStoreConfigs_DefaultVariantIsInMemory(t *testing.T) {
	store, err := kvstore.NewStore(kvstore.Parameters{})
	require.NoError(t, err)
	defer store.Close()
	batch := kvstore.NewBatch()
	batch.Put([]byte{1}, []byte{2})
	require.NoError(t, store.WriteBatch(batch))
	value, err := store.ReadValueBytes([]byte{1})
	require.NoError(t, err)
	require.Equal(t, []byte{2}, value)
}

type storeConfig struct {
	variant     kvstore.Variant
	compression bool
}

func (c storeConfig) String() string {
	if c.compression {
		return fmt.Sprintf("%s-snappy", c.variant)
	}
	return string(c.variant)
}

func getAllConfigs() []storeConfig {
	var res []storeConfig
	for _, variant := range kvstore.GetAllRegisteredVariants() {
		res = append(res, storeConfig{variant: variant})
		res = append(res, storeConfig{variant: variant, compression: true})
	}
	return res
}

func openStore(t *testing.T, config storeConfig) kvstore.Store {
	t.Helper()
	store, err := kvstore.NewStore(kvstore.Parameters{
		Variant:     config.variant,
		Directory:   t.TempDir(),
		Compression: config.compression,
	})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return store
}

func write(t *testing.T, store kvstore.Store, fill func(batch *kvstore.Batch)) {
	t.Helper()
	batch := kvstore.NewBatch()
	fill(batch)
	if err := store.WriteBatch(batch); err != nil {
		t.Fatalf("failed to write batch: %v", err)
	}
}

func content(t *testing.T, store kvstore.Store, prefix []byte) map[string]string {
	t.Helper()
	iteratee, ok := store.(kvstore.Iteratee)
	if !ok {
		t.Fatalf("store does not support iteration")
	}
	res := map[string]string{}
	var last []byte
	err := iteratee.ForEach(prefix, func(key, value []byte) error {
		if last != nil && bytes.Compare(last, key) >= 0 {
			return fmt.Errorf("keys not in order: %x before %x", last, key)
		}
		last = bytes.Clone(key)
		res[fmt.Sprintf("%x", key)] = fmt.Sprintf("%x", value)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to iterate: %v", err)
	}
	return res
}

func TestStore_MissingKeysAreReportedAsNil(t *testing.T) {
	for _, config := range getAllConfigs() {
		t.Run(config.String(), func(t *testing.T) {
			store := openStore(t, config)
			value, err := store.ReadValueBytes([]byte{1, 2, 3})
			if err != nil {
				t.Fatalf("failed to read: %v", err)
			}
			if value != nil {
				t.Errorf("missing key should produce nil, got %x", value)
			}
		})
	}
}

func TestStore_PutValuesCanBeRead(t *testing.T) {
	for _, config := range getAllConfigs() {
		t.Run(config.String(), func(t *testing.T) {
			store := openStore(t, config)
			large := bytes.Repeat([]byte{1, 2, 3, 4}, 100)
			write(t, store, func(b *kvstore.Batch) {
				b.Put([]byte{1}, []byte{10})
				b.Put([]byte{2}, large)
				b.Put([]byte{1}, []byte{11})
			})
			value, err := store.ReadValueBytes([]byte{1})
			require.NoError(t, err)
			require.Equal(t, []byte{11}, value)
			value, err = store.ReadValueBytes([]byte{2})
			require.NoError(t, err)
			require.Equal(t, large, value)
		})
	}
}

func TestStore_DeletedValuesAreGone(t *testing.T) {
	for _, config := range getAllConfigs() {
		t.Run(config.String(), func(t *testing.T) {
			store := openStore(t, config)
			write(t, store, func(b *kvstore.Batch) {
				b.Put([]byte{1}, []byte{10})
				b.Put([]byte{2}, []byte{20})
			})
			write(t, store, func(b *kvstore.Batch) {
				b.Delete([]byte{1})
				b.Delete([]byte{3})
			})
			value, err := store.ReadValueBytes([]byte{1})
			require.NoError(t, err)
			require.Nil(t, value)
			require.Equal(t, map[string]string{"02": "14"}, content(t, store, nil))
		})
	}
}

func TestStore_PrefixDeletesRemoveAllKeysWithPrefix(t *testing.T) {
	for _, config := range getAllConfigs() {
		t.Run(config.String(), func(t *testing.T) {
			store := openStore(t, config)
			write(t, store, func(b *kvstore.Batch) {
				b.Put([]byte{0, 2}, []byte{1})
				b.Put([]byte{0, 2, 1}, []byte{2})
				b.Put([]byte{0, 2, 0xff}, []byte{3})
				b.Put([]byte{0, 3}, []byte{4})
				b.Put([]byte{0, 1}, []byte{5})
			})
			write(t, store, func(b *kvstore.Batch) {
				b.DeletePrefix([]byte{0, 2})
			})
			want := map[string]string{"0001": "05", "0003": "04"}
			require.Equal(t, want, content(t, store, nil))
		})
	}
}

func TestStore_PrefixDeletesHandleMaximumBytes(t *testing.T) {
	for _, config := range getAllConfigs() {
		t.Run(config.String(), func(t *testing.T) {
			store := openStore(t, config)
			write(t, store, func(b *kvstore.Batch) {
				b.Put([]byte{0xff, 0xff}, []byte{1})
				b.Put([]byte{0xff, 0xff, 1}, []byte{2})
				b.Put([]byte{0xff, 0xfe}, []byte{3})
			})
			write(t, store, func(b *kvstore.Batch) {
				b.DeletePrefix([]byte{0xff, 0xff})
			})
			require.Equal(t, map[string]string{"fffe": "03"}, content(t, store, nil))
		})
	}
}

func TestStore_BatchOperationsAreAppliedInOrder(t *testing.T) {
	for _, config := range getAllConfigs() {
		t.Run(config.String(), func(t *testing.T) {
			store := openStore(t, config)
			write(t, store, func(b *kvstore.Batch) {
				b.Put([]byte{2, 0}, []byte{1})
				b.Put([]byte{2, 1}, []byte{1})
			})
			write(t, store, func(b *kvstore.Batch) {
				b.Put([]byte{2, 2}, []byte{2})
				b.DeletePrefix([]byte{2})
				b.Put([]byte{2, 3}, []byte{3})
				b.Put([]byte{3}, []byte{4})
				b.Delete([]byte{3})
			})
			require.Equal(t, map[string]string{"0203": "03"}, content(t, store, nil))
		})
	}
}

func TestStore_IterationIsRestrictedToPrefix(t *testing.T) {
	for _, config := range getAllConfigs() {
		t.Run(config.String(), func(t *testing.T) {
			store := openStore(t, config)
			write(t, store, func(b *kvstore.Batch) {
				b.Put([]byte{1, 0, 2}, []byte{1})
				b.Put([]byte{1, 1}, []byte{2})
				b.Put([]byte{1, 0, 1}, []byte{3})
				b.Put([]byte{0, 0}, []byte{4})
			})
			want := map[string]string{"010001": "03", "010002": "01"}
			require.Equal(t, want, content(t, store, []byte{1, 0}))
		})
	}
}

func TestStore_IterationStopsOnError(t *testing.T) {
	for _, config := range getAllConfigs() {
		t.Run(config.String(), func(t *testing.T) {
			store := openStore(t, config)
			write(t, store, func(b *kvstore.Batch) {
				b.Put([]byte{1}, []byte{1})
				b.Put([]byte{2}, []byte{2})
			})
			injected := errors.New("injected")
			calls := 0
			err := store.(kvstore.Iteratee).ForEach(nil, func(key, value []byte) error {
				calls++
				return injected
			})
			if !errors.Is(err, injected) {
				t.Errorf("unexpected error, wanted %v, got %v", injected, err)
			}
			if calls != 1 {
				t.Errorf("iteration should have stopped after the first entry, got %d calls", calls)
			}
		})
	}
}

func TestStore_ContentSurvivesReopening(t *testing.T) {
	for _, variant := range []kvstore.Variant{kvstore.LevelDbVariant, kvstore.SqliteVariant, kvstore.PebbleVariant} {
		t.Run(string(variant), func(t *testing.T) {
			params := kvstore.Parameters{Variant: variant, Directory: t.TempDir()}
			store, err := kvstore.NewStore(params)
			require.NoError(t, err)
			write(t, store, func(b *kvstore.Batch) {
				b.Put([]byte{1, 2}, []byte{3, 4})
			})
			require.NoError(t, store.Close())

			store, err = kvstore.NewStore(params)
			require.NoError(t, err)
			defer store.Close()
			value, err := store.ReadValueBytes([]byte{1, 2})
			require.NoError(t, err)
			require.Equal(t, []byte{3, 4}, value)
		})
	}
}
