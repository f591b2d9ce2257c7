// Package replay records which attestation ids have been consumed so that no
// claim is accepted twice, including across a redeployment.
package replay

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"ReserveGate/internal/attestation"
	"ReserveGate/internal/storage"
)

// defaultCacheSize bounds the in-memory cache of recently used ids.
const defaultCacheSize = 4096

// usedPrefix is the Pebble key prefix for consumed ids: "u:" + 32-byte id.
var usedPrefix = []byte("u:")

var (
	// ErrAlreadyUsed is returned when an id was consumed before.
	ErrAlreadyUsed = errors.New("attestation already used")

	// ErrNilPredecessor is returned by Migrate without a predecessor.
	ErrNilPredecessor = errors.New("predecessor registry not set")
)

// Lookup answers whether an id was consumed. Both Registry and Snapshot implement it.
type Lookup interface {
	IsUsed(id attestation.Hash) (bool, error)
}

// Registry is the set of consumed attestation ids, persisted in Pebble.
// Only positive answers are cached: an id never becomes unused.
type Registry struct {
	db    *storage.Storage                        // db is the underlying Pebble storage
	cache *lru.Cache[attestation.Hash, struct{}] // cache holds ids known to be used
}

// Open creates a registry over db. cacheSize <= 0 selects the default.
func Open(db *storage.Storage, cacheSize int) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	cache, err := lru.New[attestation.Hash, struct{}](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache:\n%w", err)
	}

	return &Registry{db: db, cache: cache}, nil
}

// IsUsed reports whether id was consumed.
func (r *Registry) IsUsed(id attestation.Hash) (bool, error) {
	if r.cache.Contains(id) {
		return true, nil
	}

	found, err := r.db.Has(makeKey(id))
	if err != nil {
		return false, fmt.Errorf("read used id:\n%w", err)
	}

	if found {
		r.cache.Add(id, struct{}{})
	}

	return found, nil
}

// MarkUsed consumes id on its own, failing with ErrAlreadyUsed if it was consumed before.
func (r *Registry) MarkUsed(id attestation.Hash) error {
	if err := r.CheckUnused(id); err != nil {
		return err
	}

	if err := r.db.Set(makeKey(id), []byte{1}); err != nil {
		return fmt.Errorf("persist used id:\n%w", err)
	}

	r.Remember(id)

	return nil
}

// CheckUnused returns ErrAlreadyUsed if id was consumed.
func (r *Registry) CheckUnused(id attestation.Hash) error {
	used, err := r.IsUsed(id)
	if err != nil {
		return err
	}

	if used {
		return fmt.Errorf("%w: %s", ErrAlreadyUsed, id)
	}

	return nil
}

// Stage writes the used mark for id into b. Nothing is visible until b commits;
// the caller then calls Remember.
func (r *Registry) Stage(b *storage.Batch, id attestation.Hash) error {
	return b.Set(makeKey(id), []byte{1})
}

// Remember records a committed id in the cache.
func (r *Registry) Remember(id attestation.Hash) {
	r.cache.Add(id, struct{}{})
}

// Migrate imports the used status of ids from predecessor. Ids already used
// here, or unused in the predecessor, are skipped. Returns the number of ids
// newly marked. All imports commit in one batch.
func (r *Registry) Migrate(ids []attestation.Hash, predecessor Lookup) (int, error) {
	if predecessor == nil {
		return 0, ErrNilPredecessor
	}

	b := r.db.NewBatch()
	defer b.Discard()

	staged := make(map[attestation.Hash]bool, len(ids))

	for _, id := range ids {
		if staged[id] {
			continue
		}

		used, err := r.IsUsed(id)
		if err != nil {
			return 0, err
		}
		if used {
			continue
		}

		prior, err := predecessor.IsUsed(id)
		if err != nil {
			return 0, fmt.Errorf("query predecessor for %s:\n%w", id, err)
		}
		if !prior {
			continue
		}

		if err := r.Stage(b, id); err != nil {
			return 0, fmt.Errorf("stage %s:\n%w", id, err)
		}
		staged[id] = true
	}

	if len(staged) == 0 {
		return 0, nil
	}

	if err := b.Commit(); err != nil {
		return 0, fmt.Errorf("commit migration:\n%w", err)
	}

	for id := range staged {
		r.Remember(id)
	}

	return len(staged), nil
}

// Count returns the number of consumed ids.
func (r *Registry) Count() (int, error) {
	n := 0
	err := r.db.IteratePrefix(usedPrefix, func(_, _ []byte) error {
		n++
		return nil
	})

	return n, err
}

// makeKey builds the Pebble key for a used id.
func makeKey(id attestation.Hash) []byte {
	key := make([]byte, len(usedPrefix)+len(id))
	copy(key, usedPrefix)
	copy(key[len(usedPrefix):], id[:])

	return key
}
