package quorum

import (
	"crypto/rand"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
)

const (
	// BLSPublicKeySize is the size of a compressed BLS public key in bytes.
	BLSPublicKeySize = 48

	// BLSSignatureSize is the size of a compressed BLS signature in bytes.
	BLSSignatureSize = 96
)

// blsDST is the domain separation tag for BLS signatures.
var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

// BLSKeyPair holds a BLS private/public key pair.
// Validators that attest from BLS-only signing setups use it; the node itself never signs.
type BLSKeyPair struct {
	secret *blst.SecretKey // secret is the private key
	public *blst.P1Affine  // public is the public key
}

// GenerateBLSKey creates a new BLS key pair from a random seed.
func GenerateBLSKey() (*BLSKeyPair, error) {
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, fmt.Errorf("generate random seed:\n%w", err)
	}

	return GenerateBLSKeyFromSeed(ikm[:])
}

// GenerateBLSKeyFromSeed creates a BLS key pair from a deterministic seed of at least 32 bytes.
func GenerateBLSKeyFromSeed(seed []byte) (*BLSKeyPair, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("seed must be at least 32 bytes")
	}

	secret := blst.KeyGen(seed)
	if secret == nil {
		return nil, fmt.Errorf("failed to generate BLS key")
	}

	return &BLSKeyPair{
		secret: secret,
		public: new(blst.P1Affine).From(secret),
	}, nil
}

// Sign creates a compressed BLS signature over message.
func (k *BLSKeyPair) Sign(message []byte) []byte {
	return new(blst.P2Affine).Sign(k.secret, message, blsDST).Compress()
}

// PublicKeyBytes returns the compressed public key bytes.
func (k *BLSKeyPair) PublicKeyBytes() []byte {
	return k.public.Compress()
}

// VerifyBLS checks a compressed BLS signature against a message and public key.
// Both points are group-checked, so infinity keys and off-curve points fail.
func VerifyBLS(signature, message, publicKey []byte) bool {
	if len(signature) != BLSSignatureSize || len(publicKey) != BLSPublicKeySize {
		return false
	}

	sig := new(blst.P2Affine).Uncompress(signature)
	if sig == nil {
		return false
	}

	pk := new(blst.P1Affine).Uncompress(publicKey)
	if pk == nil {
		return false
	}

	return sig.Verify(true, pk, true, message, blsDST)
}
