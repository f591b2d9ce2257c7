package quorum

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// ECDSASignatureSize is the size of a recoverable secp256k1 signature (r||s||v).
	ECDSASignatureSize = 65

	// recoveryIDIndex is the byte position of v in an ECDSA signature.
	recoveryIDIndex = 64
)

// ErrMalformedSignature is returned when a signer cannot be recovered or verified.
var ErrMalformedSignature = errors.New("malformed signature")

// Scheme identifies how a signature is checked.
type Scheme uint8

const (
	// SchemeECDSA is a recoverable secp256k1 signature; the signer is recovered.
	SchemeECDSA Scheme = iota + 1

	// SchemeBLS is a BLS12-381 min-pk signature with an explicit public key.
	SchemeBLS

	// SchemeEd25519 is an Ed25519 signature with an explicit public key.
	SchemeEd25519
)

// String returns the wire name of the scheme.
func (s Scheme) String() string {
	switch s {
	case SchemeECDSA:
		return "ecdsa"
	case SchemeBLS:
		return "bls"
	case SchemeEd25519:
		return "ed25519"
	default:
		return fmt.Sprintf("scheme(%d)", uint8(s))
	}
}

// ParseScheme maps a wire name to a scheme. An empty name means ECDSA.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "", "ecdsa", "secp256k1":
		return SchemeECDSA, nil
	case "bls":
		return SchemeBLS, nil
	case "ed25519":
		return SchemeEd25519, nil
	default:
		return 0, fmt.Errorf("unknown signature scheme %q", name)
	}
}

// Signature is one validator's signature over an attestation digest.
type Signature struct {
	Scheme    Scheme // Scheme selects recovery or explicit-key verification
	PublicKey []byte // PublicKey is required for BLS and Ed25519, ignored for ECDSA
	Bytes     []byte // Bytes is the raw signature
}

// Signer returns the address of the party that produced sig over digest.
// Any failure is reported as ErrMalformedSignature.
func (sig Signature) Signer(digest [32]byte) (common.Address, error) {
	switch sig.Scheme {
	case SchemeECDSA:
		return recoverECDSA(digest, sig.Bytes)
	case SchemeBLS:
		if !VerifyBLS(sig.Bytes, digest[:], sig.PublicKey) {
			return common.Address{}, fmt.Errorf("%w: bls verification failed", ErrMalformedSignature)
		}
		return KeyAddress(sig.PublicKey), nil
	case SchemeEd25519:
		if len(sig.PublicKey) != ed25519.PublicKeySize || len(sig.Bytes) != ed25519.SignatureSize {
			return common.Address{}, fmt.Errorf("%w: invalid ed25519 sizes", ErrMalformedSignature)
		}
		if !ed25519.Verify(ed25519.PublicKey(sig.PublicKey), digest[:], sig.Bytes) {
			return common.Address{}, fmt.Errorf("%w: ed25519 verification failed", ErrMalformedSignature)
		}
		return KeyAddress(sig.PublicKey), nil
	default:
		return common.Address{}, fmt.Errorf("%w: unknown %s", ErrMalformedSignature, sig.Scheme)
	}
}

// KeyAddress derives the principal address of an explicit public key:
// the last 20 bytes of keccak256(pubkey), as Ethereum does for secp256k1 keys.
func KeyAddress(pubkey []byte) common.Address {
	return common.BytesToAddress(crypto.Keccak256(pubkey)[12:])
}

// recoverECDSA recovers the signer address of a 65-byte secp256k1 signature.
func recoverECDSA(digest [32]byte, sig []byte) (common.Address, error) {
	if len(sig) != ECDSASignatureSize {
		return common.Address{}, fmt.Errorf("%w: invalid length: expected %d, got %d", ErrMalformedSignature, ECDSASignatureSize, len(sig))
	}

	pub, err := crypto.SigToPub(digest[:], normalizeSignature(sig))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// normalizeSignature converts the recovery id from Ethereum format (27/28)
// to the raw format (0/1) expected by crypto.SigToPub.
func normalizeSignature(sig []byte) []byte {
	normalized := make([]byte, ECDSASignatureSize)
	copy(normalized, sig)

	switch normalized[recoveryIDIndex] {
	case 27:
		normalized[recoveryIDIndex] = 0
	case 28:
		normalized[recoveryIDIndex] = 1
	}

	return normalized
}
