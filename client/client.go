// Package client talks to a ReserveGate node over HTTP.
package client

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ReserveGate/internal/api"
	"ReserveGate/internal/attestation"
	"ReserveGate/internal/audit"
	"ReserveGate/internal/quorum"
)

// Client connects to a node.
type Client struct {
	baseURL string             // baseURL is the node address, e.g. "http://127.0.0.1:8080"
	domain  attestation.Domain // domain binds admin envelopes to the node's deployment
	http    *http.Client       // http performs requests
	clock   func() time.Time   // clock stamps admin envelopes
}

// New creates a client. A bare host:port is treated as http.
func New(nodeAddr string, domain attestation.Domain) *Client {
	if !strings.Contains(nodeAddr, "://") {
		nodeAddr = "http://" + nodeAddr
	}

	return &Client{
		baseURL: strings.TrimRight(nodeAddr, "/"),
		domain:  domain,
		http:    &http.Client{Timeout: 30 * time.Second},
		clock:   time.Now,
	}
}

// SubmitAttestation submits att with its validator signatures and returns
// the resulting capacity.
func (c *Client) SubmitAttestation(ctx context.Context, att *attestation.Attestation, sigs []quorum.Signature) (*big.Int, error) {
	req := api.SubmitRequest{
		Attestation: att.ToWire(),
		Signatures:  make([]api.SignatureWire, len(sigs)),
	}

	for i, sig := range sigs {
		req.Signatures[i] = api.SignatureToWire(sig)
	}

	var resp api.SubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/attestations", req, &resp); err != nil {
		return nil, fmt.Errorf("submit attestation:\n%w", err)
	}

	capacity, ok := new(big.Int).SetString(resp.Capacity, 10)
	if !ok {
		return nil, fmt.Errorf("invalid capacity in response: %q", resp.Capacity)
	}

	return capacity, nil
}

// Status returns the controller status.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("status:\n%w", err)
	}

	return &resp, nil
}

// IsAttestationUsed reports whether id was consumed.
func (c *Client) IsAttestationUsed(ctx context.Context, id attestation.Hash) (bool, error) {
	var resp api.UsedResponse
	if err := c.doJSON(ctx, http.MethodGet, "/attestations/"+id.String(), nil, &resp); err != nil {
		return false, fmt.Errorf("attestation status:\n%w", err)
	}

	return resp.Used, nil
}

// Events returns up to limit recent events, newest first. An empty kind matches all.
func (c *Client) Events(ctx context.Context, kind audit.Kind, limit int) ([]audit.Event, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("kind", string(kind))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp api.EventsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("events:\n%w", err)
	}

	return resp.Events, nil
}

// Export downloads the node's used-id snapshot.
func (c *Client) Export(ctx context.Context) ([]byte, error) {
	data, err := c.do(ctx, http.MethodGet, "/export", nil)
	if err != nil {
		return nil, fmt.Errorf("export:\n%w", err)
	}

	return data, nil
}

// Admin signs action with key and executes it on the node.
func (c *Client) Admin(ctx context.Context, key *ecdsa.PrivateKey, action string, params any) (*api.AdminResponse, error) {
	env, err := api.SignEnvelope(c.domain, key, action, params, c.clock())
	if err != nil {
		return nil, err
	}

	var resp api.AdminResponse
	if err := c.doJSON(ctx, http.MethodPost, "/admin", env, &resp); err != nil {
		return nil, fmt.Errorf("admin %s:\n%w", action, err)
	}

	return &resp, nil
}

// Pause pauses the controller as the guardian holding key.
func (c *Client) Pause(ctx context.Context, key *ecdsa.PrivateKey) error {
	_, err := c.Admin(ctx, key, api.ActionPause, nil)
	return err
}

// EmergencyReduceCap lowers capacity to newCap and returns the new capacity.
func (c *Client) EmergencyReduceCap(ctx context.Context, key *ecdsa.PrivateKey, newCap *big.Int, reason string) (*big.Int, error) {
	resp, err := c.Admin(ctx, key, api.ActionEmergencyReduceCap, api.ReduceParams{NewCap: newCap.String(), Reason: reason})
	if err != nil {
		return nil, err
	}

	capacity, ok := new(big.Int).SetString(resp.Capacity, 10)
	if !ok {
		return nil, fmt.Errorf("invalid capacity in response: %q", resp.Capacity)
	}

	return capacity, nil
}

// Migrate imports a predecessor's exported snapshot and returns the number of new ids.
func (c *Client) Migrate(ctx context.Context, key *ecdsa.PrivateKey, snapshot []byte) (int, error) {
	resp, err := c.Admin(ctx, key, api.ActionMigrate, api.MigrateParams{Snapshot: snapshot})
	if err != nil {
		return 0, err
	}

	return resp.Imported, nil
}
