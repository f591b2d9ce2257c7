package attestation

import (
	"fmt"
	"math/big"
	"time"
)

// Wire is the JSON form of an attestation exchanged with relayers.
// Amounts are decimal strings and hashes are 0x-prefixed hex.
type Wire struct {
	ID                string `json:"id"`
	ReserveValue      string `json:"reserveValue"`
	Nonce             uint64 `json:"nonce"`
	Timestamp         int64  `json:"timestamp"`
	Entropy           string `json:"entropy"`
	ExternalStateHash string `json:"externalStateHash"`
}

// ToWire converts an attestation to its JSON form.
func (a *Attestation) ToWire() Wire {
	return Wire{
		ID:                a.ID.String(),
		ReserveValue:      a.ReserveValue.String(),
		Nonce:             a.Nonce,
		Timestamp:         a.Timestamp.Unix(),
		Entropy:           a.Entropy.String(),
		ExternalStateHash: a.ExternalStateHash.String(),
	}
}

// FromWire parses the JSON form. The id is taken as given; Check verifies it.
func FromWire(w Wire) (*Attestation, error) {
	id, err := ParseHash(w.ID)
	if err != nil {
		return nil, fmt.Errorf("id:\n%w", err)
	}

	reserve, ok := new(big.Int).SetString(w.ReserveValue, 10)
	if !ok {
		return nil, fmt.Errorf("reserveValue: invalid decimal %q", w.ReserveValue)
	}

	entropy, err := ParseHash(w.Entropy)
	if err != nil {
		return nil, fmt.Errorf("entropy:\n%w", err)
	}

	stateHash, err := ParseHash(w.ExternalStateHash)
	if err != nil {
		return nil, fmt.Errorf("externalStateHash:\n%w", err)
	}

	return &Attestation{
		ID:                id,
		ReserveValue:      reserve,
		Nonce:             w.Nonce,
		Timestamp:         time.Unix(w.Timestamp, 0).UTC(),
		Entropy:           entropy,
		ExternalStateHash: stateHash,
	}, nil
}
