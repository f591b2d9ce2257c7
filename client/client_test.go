package client

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"ReserveGate/internal/api"
	"ReserveGate/internal/attestation"
	"ReserveGate/internal/audit"
	"ReserveGate/internal/capacity"
	"ReserveGate/internal/ledger"
	"ReserveGate/internal/quorum"
	"ReserveGate/internal/roles"
	"ReserveGate/internal/storage"
)

var testDomain = attestation.Domain{
	ChainID:    7,
	Deployment: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
}

// startNode runs a controller behind httptest and returns a client plus keys.
func startNode(t *testing.T) (*Client, []*ecdsa.PrivateKey, *ecdsa.PrivateKey) {
	t.Helper()

	dir := t.TempDir()

	db, err := storage.New(filepath.Join(dir, "db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	journal, err := audit.OpenJournal(filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	ctrl, err := capacity.Open(context.Background(), db, ledger.NewMemory(nil), journal, capacity.Config{
		Domain:             testDomain,
		InitialCapacity:    new(big.Int),
		CollateralRatioBps: 10_000,
		DailyLimit:         big.NewInt(1_000),
		Threshold:          2,
	})
	require.NoError(t, err)

	admin, err := crypto.GenerateKey()
	require.NoError(t, err)

	validators := make([]*ecdsa.PrivateKey, 2)
	members := map[roles.Role][]common.Address{
		roles.Admin:    {crypto.PubkeyToAddress(admin.PublicKey)},
		roles.Guardian: {crypto.PubkeyToAddress(admin.PublicKey)},
	}
	for i := range validators {
		validators[i], err = crypto.GenerateKey()
		require.NoError(t, err)
		members[roles.Validator] = append(members[roles.Validator], crypto.PubkeyToAddress(validators[i].PublicKey))
	}
	require.NoError(t, ctrl.Bootstrap(context.Background(), members))

	ts := httptest.NewServer(api.New(":0", ctrl, journal, testDomain).Handler())
	t.Cleanup(ts.Close)

	return New(ts.URL, testDomain), validators, admin
}

// signed builds an attestation timestamped a second ago, signed by keys.
func signed(t *testing.T, reserve int64, nonce uint64, keys []*ecdsa.PrivateKey) (*attestation.Attestation, []quorum.Signature) {
	t.Helper()

	att, err := attestation.New(testDomain, big.NewInt(reserve), nonce, time.Now().Add(-time.Second), attestation.Hash{}, attestation.Hash{})
	require.NoError(t, err)

	digest := attestation.Digest(att.ID)
	sigs := make([]quorum.Signature, len(keys))
	for i, key := range keys {
		b, err := crypto.Sign(digest[:], key)
		require.NoError(t, err)
		sigs[i] = quorum.Signature{Scheme: quorum.SchemeECDSA, Bytes: b}
	}

	return att, sigs
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, validators, admin := startNode(t)

	att, sigs := signed(t, 800, 1, validators)

	capacity, err := c.SubmitAttestation(ctx, att, sigs)
	require.NoError(t, err)
	require.Equal(t, "800", capacity.String())

	used, err := c.IsAttestationUsed(ctx, att.ID)
	require.NoError(t, err)
	require.True(t, used)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, "200", st.RemainingIncrease)

	events, err := c.Events(ctx, audit.KindCapacityIncreased, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)

	reduced, err := c.EmergencyReduceCap(ctx, admin, big.NewInt(100), "test")
	require.NoError(t, err)
	require.Equal(t, "100", reduced.String())

	snapshot, err := c.Export(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, snapshot)

	n, err := c.Migrate(ctx, admin, snapshot)
	require.NoError(t, err)
	require.Zero(t, n, "own ids are already used")
}

// TestClientErrors tests that server rejections surface as APIError with class.
func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c, validators, admin := startNode(t)

	att, sigs := signed(t, 800, 1, validators[:1])

	_, err := c.SubmitAttestation(ctx, att, sigs)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.Equal(t, "authorization", apiErr.Class)

	fixed := time.Now()
	c.clock = func() time.Time { return fixed }

	require.NoError(t, c.Pause(ctx, admin))

	err = c.Pause(ctx, admin)
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.Status, "identical envelope")

	stranger, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = c.Admin(ctx, stranger, api.ActionRequestUnpause, nil)
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.Status)
}
