// Package roles keeps the capability registry: which principals hold the
// validator, guardian and admin roles.
package roles

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ReserveGate/internal/storage"
)

// rolePrefix is the Pebble key prefix for role entries: "role:" + role byte + address.
var rolePrefix = []byte("role:")

var (
	// ErrZeroAddress is returned when granting a role to the zero address.
	ErrZeroAddress = errors.New("zero address")

	// ErrUnknownRole is returned for a role outside the known set.
	ErrUnknownRole = errors.New("unknown role")
)

// Role is a capability held by principals.
type Role uint8

const (
	// Validator may sign attestations that count toward quorum.
	Validator Role = iota + 1

	// Guardian may pause instantly and reduce capacity down to outstanding supply.
	Guardian

	// Admin may configure the controller, manage roles, unpause and reduce capacity below supply.
	Admin
)

// All lists every known role.
var All = []Role{Validator, Guardian, Admin}

// String returns the role name.
func (r Role) String() string {
	switch r {
	case Validator:
		return "validator"
	case Guardian:
		return "guardian"
	case Admin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Parse maps a role name to a role.
func Parse(name string) (Role, error) {
	for _, r := range All {
		if strings.EqualFold(name, r.String()) {
			return r, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// valid reports whether r is a known role.
func (r Role) valid() bool {
	return r >= Validator && r <= Admin
}

// Registry maps roles to principals, persisted in Pebble and mirrored in memory.
// It is safe for concurrent access.
type Registry struct {
	db *storage.Storage // db is the underlying Pebble storage

	mu      sync.RWMutex
	members map[Role]map[common.Address]bool // members is the in-memory mirror
}

// Open loads the registry from storage.
func Open(db *storage.Storage) (*Registry, error) {
	r := &Registry{
		db:      db,
		members: make(map[Role]map[common.Address]bool, len(All)),
	}

	for _, role := range All {
		r.members[role] = make(map[common.Address]bool)
	}

	err := db.IteratePrefix(rolePrefix, func(key, _ []byte) error {
		role, addr, ok := parseKey(key)
		if !ok {
			return fmt.Errorf("malformed role key %x", key)
		}

		r.members[role][addr] = true

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load roles:\n%w", err)
	}

	return r, nil
}

// Has reports whether addr holds role.
func (r *Registry) Has(role Role, addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.members[role][addr]
}

// Grant gives role to addr. Returns false if addr already held it.
func (r *Registry) Grant(role Role, addr common.Address) (bool, error) {
	if !role.valid() {
		return false, ErrUnknownRole
	}

	if addr == (common.Address{}) {
		return false, ErrZeroAddress
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[role][addr] {
		return false, nil
	}

	if err := r.db.Set(makeKey(role, addr), []byte{1}); err != nil {
		return false, fmt.Errorf("persist grant:\n%w", err)
	}

	r.members[role][addr] = true

	return true, nil
}

// GrantAll gives every listed role in one batch: either all grants persist or
// none do. Returns the grants that were new, per role in input order.
func (r *Registry) GrantAll(members map[Role][]common.Address) (map[Role][]common.Address, error) {
	for role, addrs := range members {
		if !role.valid() {
			return nil, ErrUnknownRole
		}

		for _, addr := range addrs {
			if addr == (common.Address{}) {
				return nil, fmt.Errorf("%w: %s", ErrZeroAddress, role)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.db.NewBatch()
	defer b.Discard()

	added := make(map[Role][]common.Address, len(members))

	for _, role := range All {
		seen := make(map[common.Address]bool, len(members[role]))

		for _, addr := range members[role] {
			if r.members[role][addr] || seen[addr] {
				continue
			}

			if err := b.Set(makeKey(role, addr), []byte{1}); err != nil {
				return nil, fmt.Errorf("stage grant:\n%w", err)
			}

			seen[addr] = true
			added[role] = append(added[role], addr)
		}
	}

	if b.Len() == 0 {
		return added, nil
	}

	if err := b.Commit(); err != nil {
		return nil, fmt.Errorf("persist grants:\n%w", err)
	}

	for role, addrs := range added {
		for _, addr := range addrs {
			r.members[role][addr] = true
		}
	}

	return added, nil
}

// Revoke removes role from addr. Returns false if addr did not hold it.
func (r *Registry) Revoke(role Role, addr common.Address) (bool, error) {
	if !role.valid() {
		return false, ErrUnknownRole
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.members[role][addr] {
		return false, nil
	}

	if err := r.db.Delete(makeKey(role, addr)); err != nil {
		return false, fmt.Errorf("persist revoke:\n%w", err)
	}

	delete(r.members[role], addr)

	return true, nil
}

// Count returns how many principals hold role.
func (r *Registry) Count(role Role) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.members[role])
}

// Members returns the holders of role sorted by address.
func (r *Registry) Members(role Role) []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]common.Address, 0, len(r.members[role]))
	for addr := range r.members[role] {
		result = append(result, addr)
	}

	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i][:], result[j][:]) < 0
	})

	return result
}

// makeKey builds the Pebble key for a role entry.
func makeKey(role Role, addr common.Address) []byte {
	key := make([]byte, 0, len(rolePrefix)+1+common.AddressLength)
	key = append(key, rolePrefix...)
	key = append(key, byte(role))
	key = append(key, addr[:]...)

	return key
}

// parseKey splits a role key into its role and address.
func parseKey(key []byte) (Role, common.Address, bool) {
	if len(key) != len(rolePrefix)+1+common.AddressLength {
		return 0, common.Address{}, false
	}

	role := Role(key[len(rolePrefix)])
	if !role.valid() {
		return 0, common.Address{}, false
	}

	return role, common.BytesToAddress(key[len(rolePrefix)+1:]), true
}
