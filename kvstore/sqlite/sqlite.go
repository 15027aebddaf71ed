// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Fantom-foundation/evmkv/kvstore"
	_ "github.com/mattn/go-sqlite3"
	"github.com/syndtr/goleveldb/leveldb/util"
)

func init() {
	kvstore.RegisterStoreFactory(kvstore.SqliteVariant, func(params kvstore.Parameters) (kvstore.Store, error) {
		if err := os.MkdirAll(params.Directory, 0700); err != nil {
			return nil, err
		}
		return OpenStore(filepath.Join(params.Directory, "evmkv.sqlite"), params.CacheSizeMiB)
	})
}

var (
	// See https://www.sqlite.org/pragma.html
	kConfigureConnection = []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA locking_mode = EXCLUSIVE",
	}
)

const (
	kDefaultCacheSizeMiB = 64

	kCreateValueTable     = "CREATE TABLE IF NOT EXISTS kv (key BLOB PRIMARY KEY, value BLOB NOT NULL) WITHOUT ROWID"
	kGetValueStmt         = "SELECT value FROM kv WHERE key = ?"
	kPutValueStmt         = "INSERT OR REPLACE INTO kv(key, value) VALUES (?,?)"
	kDeleteValueStmt      = "DELETE FROM kv WHERE key = ?"
	kDeleteRangeStmt      = "DELETE FROM kv WHERE key >= ? AND key < ?"
	kDeleteOpenRangeStmt  = "DELETE FROM kv WHERE key >= ?"
	kIterateRangeStmt     = "SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key"
	kIterateOpenRangeStmt = "SELECT key, value FROM kv WHERE key >= ? ORDER BY key"
)

// Store is a kvstore.Store keeping all entries in a single SQLite table.
// Batches are applied within a transaction.
type Store struct {
	db                   *sql.DB
	getValueStmt         *sql.Stmt
	putValueStmt         *sql.Stmt
	deleteValueStmt      *sql.Stmt
	deleteRangeStmt      *sql.Stmt
	deleteOpenRangeStmt  *sql.Stmt
	iterateRangeStmt     *sql.Stmt
	iterateOpenRangeStmt *sql.Stmt
}

// OpenStore opens or creates a SQLite database in the given file.
func OpenStore(file string, cacheSizeMiB int) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+file)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite; %w", err)
	}
	// Pragmas are per connection, and the exclusive locking mode admits a single one.
	db.SetMaxOpenConns(1)

	if cacheSizeMiB <= 0 {
		cacheSizeMiB = kDefaultCacheSizeMiB
	}
	commands := append([]string{}, kConfigureConnection...)
	commands = append(commands, fmt.Sprintf("PRAGMA cache_size = -%d", cacheSizeMiB*1024))
	for _, cmd := range commands {
		if _, err := db.Exec(cmd); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure connection with %s; %w", cmd, err)
		}
	}
	if _, err := db.Exec(kCreateValueTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create value table; %w", err)
	}

	res := &Store{db: db}
	statements := []struct {
		target **sql.Stmt
		query  string
	}{
		{&res.getValueStmt, kGetValueStmt},
		{&res.putValueStmt, kPutValueStmt},
		{&res.deleteValueStmt, kDeleteValueStmt},
		{&res.deleteRangeStmt, kDeleteRangeStmt},
		{&res.deleteOpenRangeStmt, kDeleteOpenRangeStmt},
		{&res.iterateRangeStmt, kIterateRangeStmt},
		{&res.iterateOpenRangeStmt, kIterateOpenRangeStmt},
	}
	for _, cur := range statements {
		stmt, err := db.Prepare(cur.query)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare %q; %w", cur.query, err)
		}
		*cur.target = stmt
	}
	return res, nil
}

func (s *Store) ReadValueBytes(key []byte) ([]byte, error) {
	var value []byte
	err := s.getValueStmt.QueryRow(nonNil(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (s *Store) WriteBatch(batch *kvstore.Batch) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	var succeed bool
	defer func() {
		if !succeed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				panic(fmt.Errorf("failed to rollback; %s", err))
			}
		}
	}()

	if err := batch.Replay(txWriter{store: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	succeed = true
	return nil
}

type txWriter struct {
	store *Store
	tx    *sql.Tx
}

func (w txWriter) Put(key, value []byte) error {
	if _, err := w.tx.Stmt(w.store.putValueStmt).Exec(nonNil(key), nonNil(value)); err != nil {
		return fmt.Errorf("failed to put value; %w", err)
	}
	return nil
}

func (w txWriter) Delete(key []byte) error {
	if _, err := w.tx.Stmt(w.store.deleteValueStmt).Exec(nonNil(key)); err != nil {
		return fmt.Errorf("failed to delete value; %w", err)
	}
	return nil
}

func (w txWriter) DeletePrefix(prefix []byte) error {
	r := util.BytesPrefix(prefix)
	var err error
	if r.Limit == nil {
		_, err = w.tx.Stmt(w.store.deleteOpenRangeStmt).Exec(nonNil(r.Start))
	} else {
		_, err = w.tx.Stmt(w.store.deleteRangeStmt).Exec(nonNil(r.Start), r.Limit)
	}
	if err != nil {
		return fmt.Errorf("failed to delete prefix; %w", err)
	}
	return nil
}

// ForEach visits all entries with the given prefix in key order. Entries are
// loaded before fn is called, such that fn may access the store.
func (s *Store) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	r := util.BytesPrefix(prefix)
	var rows *sql.Rows
	var err error
	if r.Limit == nil {
		rows, err = s.iterateOpenRangeStmt.Query(nonNil(r.Start))
	} else {
		rows, err = s.iterateRangeStmt.Query(nonNil(r.Start), r.Limit)
	}
	if err != nil {
		return err
	}
	type entry struct{ key, value []byte }
	var entries []entry
	for rows.Next() {
		var cur entry
		if err := rows.Scan(&cur.key, &cur.value); err != nil {
			rows.Close()
			return err
		}
		entries = append(entries, cur)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, cur := range entries {
		if err := fn(cur.key, cur.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// nonNil makes sure empty slices are bound as empty blobs instead of NULL.
func nonNil(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}
