package api

import (
	"encoding/binary"
	"fmt"
	"time"

	"ReserveGate/internal/storage"
)

// envelopePrefix is the Pebble key prefix for executed envelopes:
// "e:" + digest + caller, valued with the expiry in unix seconds.
var envelopePrefix = []byte("e:")

// PersistEnvelopes records executed envelopes in db so a replay is refused
// across restarts and after the in-memory cache evicts it. Entries whose
// freshness window has passed are pruned.
func (s *Server) PersistEnvelopes(db *storage.Storage) error {
	now := s.clock().Unix()

	var expired [][]byte

	err := db.IteratePrefix(envelopePrefix, func(key, value []byte) error {
		if len(value) != 8 || int64(binary.BigEndian.Uint64(value)) < now {
			expired = append(expired, append([]byte(nil), key...))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan envelopes:\n%w", err)
	}

	b := db.NewBatch()
	defer b.Discard()

	for _, key := range expired {
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("stage prune:\n%w", err)
		}
	}

	if b.Len() > 0 {
		if err := b.Commit(); err != nil {
			return fmt.Errorf("prune envelopes:\n%w", err)
		}
	}

	s.seen = db

	return nil
}

// markExecuted records key and reports whether it was already executed.
func (s *Server) markExecuted(key envelopeKey, issuedAt int64) (bool, error) {
	if seen, _ := s.envelopes.ContainsOrAdd(key, struct{}{}); seen {
		return true, nil
	}

	if s.seen == nil {
		return false, nil
	}

	dbKey := makeEnvelopeKey(key)

	found, err := s.seen.Has(dbKey)
	if err != nil {
		s.envelopes.Remove(key)
		return false, fmt.Errorf("read envelope:\n%w", err)
	}
	if found {
		return true, nil
	}

	var expiry [8]byte
	binary.BigEndian.PutUint64(expiry[:], uint64(issuedAt+int64(EnvelopeMaxAge/time.Second)))

	if err := s.seen.Set(dbKey, expiry[:]); err != nil {
		s.envelopes.Remove(key)
		return false, fmt.Errorf("persist envelope:\n%w", err)
	}

	return false, nil
}

// makeEnvelopeKey builds the Pebble key for an executed envelope.
func makeEnvelopeKey(k envelopeKey) []byte {
	key := make([]byte, 0, len(envelopePrefix)+len(k.digest)+len(k.caller))
	key = append(key, envelopePrefix...)
	key = append(key, k.digest[:]...)
	key = append(key, k.caller[:]...)

	return key
}
