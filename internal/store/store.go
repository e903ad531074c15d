// Package store wraps badger/v4 as the engine's embedded, ordered
// key-value store: point get/put/delete, prefix-bounded ordered range
// scans, and an admin reset that mirrors the original server's FLUSHALL
// behavior of dropping and reopening the database.
//
// Transaction usage (db.Update/db.View, txn.Get/txn.Set/txn.Delete,
// NewIterator with DefaultIteratorOptions) follows
// marmos91-dittofs/pkg/store/metadata/badger and
// marmos91-dittofs/pkg/metadata/store/badger's own use of the library.
package store

import (
	"bytes"
	"errors"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Mode selects how the database is opened.
type Mode int

const (
	// ModeReadWrite opens a persistent, writable database.
	ModeReadWrite Mode = iota
	// ModeReadOnly opens a persistent database that rejects writes.
	ModeReadOnly
	// ModeInMemory opens a database backed by memory only; its contents
	// do not survive process restart.
	ModeInMemory
)

// Store is an embedded ordered key-value store.
type Store struct {
	db   *badger.DB
	dir  string
	mode Mode
	sync bool
}

// Open opens (creating if necessary) the database rooted at dir under
// the given mode. dir is ignored when mode is ModeInMemory. sync enables
// synchronous writes (fsync before a write is acknowledged); writes are
// asynchronous unless the caller opts in.
func Open(dir string, mode Mode, sync bool) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts = opts.WithLogger(nil).WithSyncWrites(sync)

	switch mode {
	case ModeInMemory:
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil).WithSyncWrites(sync)
	case ModeReadOnly:
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dir: dir, mode: mode, sync: sync}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReadOnly reports whether the store rejects writes.
func (s *Store) ReadOnly() bool {
	return s.mode == ModeReadOnly
}

// Get fetches the value stored under key, or ErrNotFound.
func (s *Store) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Put writes key=value, overwriting any existing value.
func (s *Store) Put(key, value []byte) error {
	if s.ReadOnly() {
		return errors.New("store: write attempted on read-only store")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes key. Deleting an absent key is not an error; the
// caller distinguishes "existed and removed" via Exists beforehand if
// needed.
func (s *Store) Delete(key []byte) error {
	if s.ReadOnly() {
		return errors.New("store: write attempted on read-only store")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Exists reports whether key is present.
func (s *Store) Exists(key []byte) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// ScanFunc is called once per key in ascending order during Scan.
// Returning false stops the scan early.
type ScanFunc func(key, value []byte) bool

// Scan iterates keys in ascending order starting at (or, if absent,
// immediately after) start, restricted to those with the given prefix.
// An empty prefix scans the whole keyspace from start onward.
func (s *Store) Scan(prefix, start []byte, fn ScanFunc) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := start
		if bytes.Compare(seek, prefix) < 0 {
			seek = prefix
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(key, val) {
				return nil
			}
		}
		return nil
	})
}

// Flush drops every key. A persistent database is closed, its data
// directory removed, and reopened fresh; an in-memory database has its
// keys dropped in place (DropAll) without being reopened.
func (s *Store) Flush() error {
	if s.ReadOnly() {
		return errors.New("store: flush attempted on read-only store")
	}
	if s.mode == ModeInMemory {
		if err := s.db.DropAll(); err != nil {
			return err
		}
		return nil
	}

	if err := s.db.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return err
	}
	fresh, err := Open(s.dir, s.mode, s.sync)
	if err != nil {
		return err
	}
	s.db = fresh.db
	return nil
}
