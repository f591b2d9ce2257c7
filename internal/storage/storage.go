package storage

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage closed")

// Storage is a key-value store backed by Pebble.
// Single writes and batch commits are fsynced: every accepted attestation
// must survive a crash once the caller has been told it succeeded.
type Storage struct {
	db *pebble.DB // db is the underlying Pebble database
}

// New opens (or creates) a store at the given path.
func New(path string) (*Storage, error) {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(8 << 20), // 8 MB cache
		MemTableSize:                4 << 20,                  // 4 MB memtable
		MemTableStopWritesThreshold: 2,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}

	return &Storage{db: db}, nil
}

// Get retrieves the value for the given key.
// Returns nil if the key does not exist.
func (s *Storage) Get(key []byte) ([]byte, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// Copy the value since it's invalid after closer.Close()
	result := make([]byte, len(value))
	copy(result, value)

	return result, nil
}

// Has reports whether key exists.
func (s *Storage) Has(key []byte) (bool, error) {
	value, err := s.Get(key)
	if err != nil {
		return false, err
	}

	return value != nil, nil
}

// Set durably stores a key-value pair.
func (s *Storage) Set(key, value []byte) error {
	if s.db == nil {
		return ErrClosed
	}

	return s.db.Set(key, value, pebble.Sync)
}

// Delete durably removes a key.
func (s *Storage) Delete(key []byte) error {
	if s.db == nil {
		return ErrClosed
	}

	return s.db.Delete(key, pebble.Sync)
}

// NewBatch starts an atomic write batch.
// Nothing is visible to readers until Commit succeeds.
func (s *Storage) NewBatch() *Batch {
	return &Batch{b: s.db.NewBatch()}
}

// IteratePrefix calls fn for each key-value pair with the given prefix.
// Keys are visited in lexicographic order. If fn returns an error,
// iteration stops and the error is returned.
func (s *Storage) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	if s.db == nil {
		return ErrClosed
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
// Increments the last byte; returns nil if prefix is all 0xFF (full range).
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	return nil
}

// Close flushes and closes the database.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	return err
}

// Batch groups writes that commit together or not at all.
type Batch struct {
	b    *pebble.Batch // b is the underlying Pebble batch
	done bool          // done is set once the batch is released
}

// Set stages a key-value pair.
func (b *Batch) Set(key, value []byte) error {
	return b.b.Set(key, value, nil)
}

// Delete stages a key removal.
func (b *Batch) Delete(key []byte) error {
	return b.b.Delete(key, nil)
}

// Len returns the number of staged operations.
func (b *Batch) Len() int {
	return int(b.b.Count())
}

// Commit durably applies every staged write atomically and releases the batch.
func (b *Batch) Commit() error {
	if b.done {
		return ErrClosed
	}
	defer b.Discard()

	return b.b.Commit(pebble.Sync)
}

// Discard drops the staged writes. Safe to call after Commit.
func (b *Batch) Discard() {
	if b.done {
		return
	}

	b.done = true
	_ = b.b.Close()
}
