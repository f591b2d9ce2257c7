// Package quorum checks that enough distinct authorized validators signed
// an attestation digest.
package quorum

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientQuorum is returned when fewer distinct authorized signers than required signed.
	ErrInsufficientQuorum = errors.New("insufficient quorum")

	// ErrInvalidThreshold is returned for a zero threshold.
	ErrInvalidThreshold = errors.New("invalid quorum threshold")
)

// Authorizer reports whether a recovered signer holds the validator capability.
type Authorizer func(signer common.Address) bool

// Result describes a successful verification.
type Result struct {
	Signers    []common.Address // Signers are the distinct authorized signers, in input order
	Duplicates int              // Duplicates counts signatures from an already-seen signer
	Ignored    int              // Ignored counts distinct signers without the validator capability
}

// Verify recovers every signer of digest and succeeds iff at least threshold
// distinct authorized signers are present.
//
// A single unrecoverable signature fails the whole call. Duplicate signers
// count once. Unauthorized signers are skipped without failing. The function
// has no side effects beyond calling isAuthorized.
func Verify(digest [32]byte, sigs []Signature, threshold uint32, isAuthorized Authorizer) (*Result, error) {
	if threshold == 0 {
		return nil, ErrInvalidThreshold
	}

	if len(sigs) == 0 {
		return nil, fmt.Errorf("%w: required %d, got 0", ErrInsufficientQuorum, threshold)
	}

	seen := make(map[common.Address]bool, len(sigs))
	res := &Result{}

	for i, sig := range sigs {
		signer, err := sig.Signer(digest)
		if err != nil {
			return nil, fmt.Errorf("signature %d:\n%w", i, err)
		}

		if seen[signer] {
			res.Duplicates++
			continue
		}
		seen[signer] = true

		if isAuthorized == nil || !isAuthorized(signer) {
			res.Ignored++
			continue
		}

		res.Signers = append(res.Signers, signer)
	}

	if len(res.Signers) < int(threshold) {
		return nil, fmt.Errorf("%w: required %d, got %d", ErrInsufficientQuorum, threshold, len(res.Signers))
	}

	return res, nil
}
