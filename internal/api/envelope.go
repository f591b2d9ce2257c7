package api

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"ReserveGate/internal/attestation"
	"ReserveGate/internal/quorum"
)

// EnvelopeMaxAge bounds how far issuedAt may be from the server clock.
const EnvelopeMaxAge = 5 * time.Minute

// envelopeTag separates admin envelope digests from attestation digests.
var envelopeTag = []byte("reservegate/admin/v1")

// Admin actions.
const (
	ActionSetDailyLimit      = "set_daily_limit"
	ActionSetCollateralRatio = "set_collateral_ratio"
	ActionSetThreshold       = "set_threshold"
	ActionGrantRole          = "grant_role"
	ActionRevokeRole         = "revoke_role"
	ActionMigrate            = "migrate_attestations"
	ActionPause              = "pause"
	ActionRequestUnpause     = "request_unpause"
	ActionExecuteUnpause     = "execute_unpause"
	ActionEmergencyReduceCap = "emergency_reduce_cap"
)

var (
	// ErrEnvelopeExpired is returned for an envelope outside the freshness window.
	ErrEnvelopeExpired = errors.New("admin envelope expired")

	// ErrEnvelopeReplayed is returned for an envelope seen before.
	ErrEnvelopeReplayed = errors.New("admin envelope replayed")
)

// Envelope is a signed admin request. The caller is the recovered signer.
type Envelope struct {
	Action    string          `json:"action"`           // Action names the admin operation
	Params    json.RawMessage `json:"params,omitempty"` // Params holds the action parameters
	IssuedAt  int64           `json:"issuedAt"`         // IssuedAt is unix seconds at signing
	Signature string          `json:"signature"`        // Signature is a hex 65-byte secp256k1 signature
}

// Param payloads per action.
type (
	AmountParams struct {
		Amount string `json:"amount"`
	}

	RatioParams struct {
		RatioBps uint32 `json:"ratioBps"`
	}

	ThresholdParams struct {
		Threshold uint32 `json:"threshold"`
	}

	RoleParams struct {
		Role    string `json:"role"`
		Account string `json:"account"`
	}

	MigrateParams struct {
		Snapshot []byte `json:"snapshot"` // Snapshot is an export of the predecessor, base64 in JSON
	}

	ReduceParams struct {
		NewCap string `json:"newCap"`
		Reason string `json:"reason"`
	}
)

// AdminResponse is returned for an executed admin action.
type AdminResponse struct {
	Action   string `json:"action"`
	Caller   string `json:"caller"`
	Capacity string `json:"capacity,omitempty"`
	Imported int    `json:"imported,omitempty"`
}

// EnvelopeDigest is the keccak256 hash an admin signs:
// tag || chainID (8) || deployment (20) || action || 0x00 || params || issuedAt (8).
func EnvelopeDigest(domain attestation.Domain, action string, params []byte, issuedAt int64) [32]byte {
	var chain, issued [8]byte
	binary.BigEndian.PutUint64(chain[:], domain.ChainID)
	binary.BigEndian.PutUint64(issued[:], uint64(issuedAt))

	return crypto.Keccak256Hash(
		envelopeTag,
		chain[:],
		domain.Deployment[:],
		[]byte(action),
		[]byte{0},
		params,
		issued[:],
	)
}

// SignEnvelope builds an envelope for action signed by key.
func SignEnvelope(domain attestation.Domain, key *ecdsa.PrivateKey, action string, params any, issuedAt time.Time) (*Envelope, error) {
	var raw json.RawMessage

	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params:\n%w", err)
		}
		raw = b
	}

	digest := EnvelopeDigest(domain, action, raw, issuedAt.Unix())

	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, fmt.Errorf("sign envelope:\n%w", err)
	}

	return &Envelope{
		Action:    action,
		Params:    raw,
		IssuedAt:  issuedAt.Unix(),
		Signature: common.Bytes2Hex(sig),
	}, nil
}

// Open checks freshness at now and recovers the caller.
// Returns the digest for replay tracking.
func (e *Envelope) Open(domain attestation.Domain, now time.Time) (common.Address, [32]byte, error) {
	issued := time.Unix(e.IssuedAt, 0)
	if age := now.Sub(issued); age > EnvelopeMaxAge || age < -EnvelopeMaxAge {
		return common.Address{}, [32]byte{}, fmt.Errorf("%w: issued %s", ErrEnvelopeExpired, issued.UTC().Format(time.RFC3339))
	}

	sig, err := decodeHex(e.Signature)
	if err != nil {
		return common.Address{}, [32]byte{}, fmt.Errorf("%w: %v", quorum.ErrMalformedSignature, err)
	}

	digest := EnvelopeDigest(domain, e.Action, e.Params, e.IssuedAt)

	caller, err := quorum.Signature{Scheme: quorum.SchemeECDSA, Bytes: sig}.Signer(digest)
	if err != nil {
		return common.Address{}, [32]byte{}, err
	}

	return caller, digest, nil
}
