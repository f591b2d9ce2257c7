package api

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"ReserveGate/internal/attestation"
	"ReserveGate/internal/audit"
	"ReserveGate/internal/capacity"
	"ReserveGate/internal/quorum"
)

// SignatureWire is the JSON form of one validator signature.
type SignatureWire struct {
	Scheme    string `json:"scheme,omitempty"`    // Scheme is ecdsa (default), bls or ed25519
	PublicKey string `json:"publicKey,omitempty"` // PublicKey is hex, required for bls and ed25519
	Signature string `json:"signature"`           // Signature is hex
}

// SubmitRequest is the body of POST /attestations.
type SubmitRequest struct {
	Attestation attestation.Wire `json:"attestation"`
	Signatures  []SignatureWire  `json:"signatures"`
}

// SubmitResponse is returned for an accepted attestation.
type SubmitResponse struct {
	ID       string `json:"id"`
	Capacity string `json:"capacity"`
}

// UsedResponse answers GET /attestations/{id}.
type UsedResponse struct {
	ID   string `json:"id"`
	Used bool   `json:"used"`
}

// StatusResponse is the JSON form of capacity.Status. Amounts are decimal strings.
type StatusResponse struct {
	AttestedReserve    string `json:"attestedReserve"`
	CollateralRatioBps uint32 `json:"collateralRatioBps"`
	CurrentCapacity    string `json:"currentCapacity"`
	Outstanding        string `json:"outstanding"`
	HealthRatioBps     string `json:"healthRatioBps"`
	Healthy            bool   `json:"healthy"`
	Threshold          uint32 `json:"threshold"`
	DailyLimit         string `json:"dailyLimit"`
	WindowStart        int64  `json:"windowStart"`
	NetIncrease        string `json:"netIncrease"`
	NetDecrease        string `json:"netDecrease"`
	RemainingIncrease  string `json:"remainingIncrease"`
	Paused             bool   `json:"paused"`
	PendingUnpauseAt   int64  `json:"pendingUnpauseAt,omitempty"`
	UnpauseReadyAt     int64  `json:"unpauseReadyAt,omitempty"`
	LastAttestationAt  int64  `json:"lastAttestationAt,omitempty"`
	Validators         int    `json:"validators"`
	Guardians          int    `json:"guardians"`
	Admins             int    `json:"admins"`
}

// EventsResponse answers GET /events.
type EventsResponse struct {
	Events []audit.Event `json:"events"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

// SignatureToWire converts a signature to its JSON form.
func SignatureToWire(sig quorum.Signature) SignatureWire {
	w := SignatureWire{
		Scheme:    sig.Scheme.String(),
		Signature: hex.EncodeToString(sig.Bytes),
	}

	if len(sig.PublicKey) > 0 {
		w.PublicKey = hex.EncodeToString(sig.PublicKey)
	}

	return w
}

// parseSignatures decodes the JSON signature list.
func parseSignatures(ws []SignatureWire) ([]quorum.Signature, error) {
	sigs := make([]quorum.Signature, len(ws))

	for i, w := range ws {
		scheme, err := quorum.ParseScheme(w.Scheme)
		if err != nil {
			return nil, fmt.Errorf("signature %d:\n%w", i, err)
		}

		b, err := decodeHex(w.Signature)
		if err != nil {
			return nil, fmt.Errorf("signature %d:\n%w", i, err)
		}

		var pub []byte
		if w.PublicKey != "" {
			if pub, err = decodeHex(w.PublicKey); err != nil {
				return nil, fmt.Errorf("signature %d public key:\n%w", i, err)
			}
		}

		sigs[i] = quorum.Signature{Scheme: scheme, PublicKey: pub, Bytes: b}
	}

	return sigs, nil
}

// statusToWire converts a controller status.
func statusToWire(s *capacity.Status) StatusResponse {
	return StatusResponse{
		AttestedReserve:    s.AttestedReserve.String(),
		CollateralRatioBps: s.CollateralRatioBps,
		CurrentCapacity:    s.CurrentCapacity.String(),
		Outstanding:        s.Outstanding.String(),
		HealthRatioBps:     s.HealthRatioBps.String(),
		Healthy:            s.Healthy,
		Threshold:          s.Threshold,
		DailyLimit:         s.DailyLimit.String(),
		WindowStart:        unix(s.WindowStart),
		NetIncrease:        s.NetIncrease.String(),
		NetDecrease:        s.NetDecrease.String(),
		RemainingIncrease:  s.RemainingIncrease.String(),
		Paused:             s.Paused,
		PendingUnpauseAt:   unix(s.PendingUnpauseAt),
		UnpauseReadyAt:     unix(s.UnpauseReadyAt),
		LastAttestationAt:  unix(s.LastAttestationAt),
		Validators:         s.Validators,
		Guardians:          s.Guardians,
		Admins:             s.Admins,
	}
}

// parseAmount decodes a decimal amount string.
func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", s)
	}

	return v, nil
}

// decodeHex decodes hex with or without 0x prefix.
func decodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}

	return hex.DecodeString(s)
}

// unix returns seconds since epoch, or 0 for the zero time.
func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.Unix()
}
