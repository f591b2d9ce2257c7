// Package attestation defines the reserve attestation signed by validators,
// its canonical identifier and the digest validators sign.
package attestation

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/blake3"

	"ReserveGate/internal/types"
)

// idTag separates attestation ids from any other blake3 use.
var idTag = []byte("reservegate/attestation/v1")

// signedMessagePrefix is the EIP-191 personal message prefix for a 32-byte payload.
var signedMessagePrefix = []byte("\x19Ethereum Signed Message:\n32")

var (
	// ErrZeroReserve is returned for attestations claiming no reserve at all.
	ErrZeroReserve = errors.New("reserve value is zero")

	// ErrInvalidReserve is returned for negative or over-wide reserve values.
	ErrInvalidReserve = errors.New("reserve value out of range")

	// ErrIDMismatch is returned when an id does not match the attestation content.
	ErrIDMismatch = errors.New("attestation id does not match content")

	// ErrInvalidDomain is returned for a domain without chain or deployment identity.
	ErrInvalidDomain = errors.New("invalid attestation domain")
)

// Hash is a 32-byte identifier or digest.
type Hash [32]byte

// String returns the 0x-prefixed hex encoding.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// ParseHash decodes a 32-byte hex string with or without 0x prefix.
func ParseHash(s string) (Hash, error) {
	var h Hash

	b, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return h, fmt.Errorf("decode hash:\n%w", err)
	}

	if len(b) != len(h) {
		return h, fmt.Errorf("invalid hash size: got %d, want %d", len(b), len(h))
	}

	copy(h[:], b)

	return h, nil
}

// Domain binds attestations to one deployment on one network so a claim
// cannot be replayed elsewhere.
type Domain struct {
	ChainID    uint64         // ChainID identifies the network
	Deployment common.Address // Deployment identifies this controller instance
}

// Validate rejects a zero chain id or zero deployment address.
func (d Domain) Validate() error {
	if d.ChainID == 0 || d.Deployment == (common.Address{}) {
		return ErrInvalidDomain
	}

	return nil
}

// Attestation is a validator claim about the external reserve.
// Immutable once constructed.
type Attestation struct {
	ID                Hash      // ID is derived from every other field and the domain
	ReserveValue      *big.Int  // ReserveValue is the attested reserve amount
	Nonce             uint64    // Nonce distinguishes claims with equal content
	Timestamp         time.Time // Timestamp is when validators observed the reserve
	Entropy           Hash      // Entropy is caller-chosen randomness
	ExternalStateHash Hash      // ExternalStateHash commits to the observed external state
}

// New builds an attestation and derives its id for the given domain.
func New(domain Domain, reserve *big.Int, nonce uint64, ts time.Time, entropy, stateHash Hash) (*Attestation, error) {
	if !types.ValidAmount(reserve) {
		return nil, ErrInvalidReserve
	}

	a := &Attestation{
		ReserveValue:      new(big.Int).Set(reserve),
		Nonce:             nonce,
		Timestamp:         time.Unix(ts.Unix(), 0).UTC(),
		Entropy:           entropy,
		ExternalStateHash: stateHash,
	}
	a.ID = ComputeID(domain, a.ReserveValue, a.Nonce, a.Timestamp, a.Entropy, a.ExternalStateHash)

	return a, nil
}

// ComputeID derives the canonical identifier of an attestation.
// Layout: tag || chainID (8) || deployment (20) || reserve (32) || nonce (8) || unix seconds (8) || entropy (32) || state hash (32).
func ComputeID(domain Domain, reserve *big.Int, nonce uint64, ts time.Time, entropy, stateHash Hash) Hash {
	h := blake3.New()
	h.Write(idTag)

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], domain.ChainID)
	h.Write(buf[:])
	h.Write(domain.Deployment[:])

	h.Write(math.PaddedBigBytes(reserve, 32))

	binary.BigEndian.PutUint64(buf[:], nonce)
	h.Write(buf[:])

	binary.BigEndian.PutUint64(buf[:], uint64(ts.Unix()))
	h.Write(buf[:])

	h.Write(entropy[:])
	h.Write(stateHash[:])

	var id Hash
	h.Sum(id[:0])

	return id
}

// Check validates the content and that the id was derived from it under domain.
func (a *Attestation) Check(domain Domain) error {
	if a.ReserveValue == nil || a.ReserveValue.Sign() == 0 {
		return ErrZeroReserve
	}

	if !types.ValidAmount(a.ReserveValue) {
		return ErrInvalidReserve
	}

	want := ComputeID(domain, a.ReserveValue, a.Nonce, a.Timestamp, a.Entropy, a.ExternalStateHash)
	if want != a.ID {
		return ErrIDMismatch
	}

	return nil
}

// Digest returns the message validators sign for an attestation id.
// It is the EIP-191 personal-message hash of the id so standard wallets can sign it.
func Digest(id Hash) Hash {
	return Hash(crypto.Keccak256Hash(signedMessagePrefix, id[:]))
}

// trimHexPrefix strips a leading 0x or 0X.
func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}

	return s
}
