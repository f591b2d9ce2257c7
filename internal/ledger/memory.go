// Package ledger provides an in-process token ledger that honours the
// capacity the controller sets: issuance beyond capacity is refused.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	// ErrCapExceeded is returned by Mint when supply would exceed capacity.
	ErrCapExceeded = errors.New("mint exceeds capacity")

	// ErrInsufficientSupply is returned by Burn for more than is outstanding.
	ErrInsufficientSupply = errors.New("burn exceeds outstanding supply")

	// ErrInvalidAmount is returned for negative or nil amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Memory is a thread-safe ledger holding only aggregate supply and capacity.
type Memory struct {
	mu          sync.Mutex
	outstanding *big.Int // outstanding is the issued supply
	capacity    *big.Int // capacity is the issuance ceiling
}

// NewMemory creates a ledger with the given outstanding supply and zero capacity.
func NewMemory(outstanding *big.Int) *Memory {
	if outstanding == nil {
		outstanding = new(big.Int)
	}

	return &Memory{
		outstanding: new(big.Int).Set(outstanding),
		capacity:    new(big.Int),
	}
}

// OutstandingAmount returns the issued supply.
func (m *Memory) OutstandingAmount(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return new(big.Int).Set(m.outstanding), nil
}

// SetCapacity replaces the issuance ceiling. Capacity may drop below supply;
// that only blocks further minting.
func (m *Memory) SetCapacity(_ context.Context, capacity *big.Int) error {
	if !valid(capacity) {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.capacity = new(big.Int).Set(capacity)

	return nil
}

// Capacity returns the issuance ceiling.
func (m *Memory) Capacity() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return new(big.Int).Set(m.capacity)
}

// Mint issues amount if the new supply stays within capacity.
func (m *Memory) Mint(amount *big.Int) error {
	if !valid(amount) {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := new(big.Int).Add(m.outstanding, amount)
	if next.Cmp(m.capacity) > 0 {
		return fmt.Errorf("%w: supply %s, capacity %s", ErrCapExceeded, next, m.capacity)
	}

	m.outstanding = next

	return nil
}

// Burn retires amount of supply.
func (m *Memory) Burn(amount *big.Int) error {
	if !valid(amount) {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if amount.Cmp(m.outstanding) > 0 {
		return fmt.Errorf("%w: burn %s, outstanding %s", ErrInsufficientSupply, amount, m.outstanding)
	}

	m.outstanding = new(big.Int).Sub(m.outstanding, amount)

	return nil
}

func valid(v *big.Int) bool {
	return v != nil && v.Sign() >= 0
}
