package storage

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"testing"
)

// benchStorage creates a storage for benchmarks.
func benchStorage(b *testing.B) *Storage {
	b.Helper()

	s, err := New(filepath.Join(b.TempDir(), "db"))
	if err != nil {
		b.Fatalf("failed to create storage: %v", err)
	}
	b.Cleanup(func() { s.Close() })

	return s
}

// usedKey builds a 34-byte key shaped like a consumed-id mark.
func usedKey(i int) []byte {
	key := make([]byte, 34)
	copy(key, "u:")
	binary.BigEndian.PutUint64(key[2:], uint64(i))
	return key
}

// BenchmarkCommitStateAndMark benchmarks the per-attestation write: one state
// record and one used mark in a single batch.
func BenchmarkCommitStateAndMark(b *testing.B) {
	s := benchStorage(b)

	state := make([]byte, 256)
	rand.Read(state)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		batch := s.NewBatch()
		if err := batch.Set([]byte("s:controller"), state); err != nil {
			b.Fatalf("set state: %v", err)
		}
		if err := batch.Set(usedKey(i), []byte{1}); err != nil {
			b.Fatalf("set mark: %v", err)
		}
		if err := batch.Commit(); err != nil {
			b.Fatalf("commit: %v", err)
		}
	}
}

// BenchmarkHas benchmarks used-id lookups against a populated store.
func BenchmarkHas(b *testing.B) {
	for _, n := range []int{1_000, 100_000} {
		b.Run(fmt.Sprintf("ids=%d", n), func(b *testing.B) {
			s := benchStorage(b)

			batch := s.NewBatch()
			for i := 0; i < n; i++ {
				if err := batch.Set(usedKey(i), []byte{1}); err != nil {
					b.Fatalf("set: %v", err)
				}
			}
			if err := batch.Commit(); err != nil {
				b.Fatalf("commit: %v", err)
			}

			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				// Half the lookups miss.
				if _, err := s.Has(usedKey(i % (2 * n))); err != nil {
					b.Fatalf("has: %v", err)
				}
			}
		})
	}
}

// BenchmarkIteratePrefix benchmarks the scan behind snapshot export.
func BenchmarkIteratePrefix(b *testing.B) {
	s := benchStorage(b)

	batch := s.NewBatch()
	for i := 0; i < 10_000; i++ {
		if err := batch.Set(usedKey(i), []byte{1}); err != nil {
			b.Fatalf("set: %v", err)
		}
	}
	if err := batch.Commit(); err != nil {
		b.Fatalf("commit: %v", err)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		count := 0
		err := s.IteratePrefix([]byte("u:"), func(_, _ []byte) error {
			count++
			return nil
		})
		if err != nil || count != 10_000 {
			b.Fatalf("iterate: got %d, %v", count, err)
		}
	}
}
