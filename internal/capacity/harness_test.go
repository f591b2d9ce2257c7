package capacity

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"ReserveGate/internal/attestation"
	"ReserveGate/internal/audit"
	"ReserveGate/internal/ledger"
	"ReserveGate/internal/quorum"
	"ReserveGate/internal/roles"
	"ReserveGate/internal/storage"
)

var testDomain = attestation.Domain{
	ChainID:    31337,
	Deployment: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// recordingSink keeps every emitted event.
type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Emit(ctx context.Context, ev audit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, ev)

	return nil
}

// kinds returns the emitted event kinds in order.
func (s *recordingSink) kinds() []audit.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]audit.Kind, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Kind
	}

	return out
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
}

// switchLedger wraps a memory ledger and can be told to fail SetCapacity.
type switchLedger struct {
	*ledger.Memory
	fail bool
}

func (l *switchLedger) SetCapacity(ctx context.Context, capacity *big.Int) error {
	if l.fail {
		return context.DeadlineExceeded
	}

	return l.Memory.SetCapacity(ctx, capacity)
}

// harness is a controller with five validators, one admin and one guardian.
type harness struct {
	t        *testing.T
	ctx      context.Context
	path     string
	db       *storage.Storage
	ctrl     *Controller
	ledger   *switchLedger
	clock    *fakeClock
	sink     *recordingSink
	cfg      Config
	keys     []*ecdsa.PrivateKey
	admin    common.Address
	guardian common.Address
	stranger common.Address
	nonce    uint64
}

// testConfig returns the parameters of the reference scenario.
func testConfig(clock *fakeClock) Config {
	return Config{
		Domain:             testDomain,
		UnpauseDelay:       time.Hour,
		InitialCapacity:    big.NewInt(10_000_000),
		CollateralRatioBps: 11_000,
		DailyLimit:         big.NewInt(1_000_000),
		Threshold:          3,
		Clock:              clock.Now,
	}
}

// newHarness opens a controller over a fresh store. mutate may adjust the config.
func newHarness(t *testing.T, outstanding int64, mutate func(*Config)) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		ctx:      context.Background(),
		path:     filepath.Join(t.TempDir(), "db"),
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		sink:     &recordingSink{},
		ledger:   &switchLedger{Memory: ledger.NewMemory(big.NewInt(outstanding))},
		admin:    common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		guardian: common.HexToAddress("0x00000000000000000000000000000000000000b1"),
		stranger: common.HexToAddress("0x00000000000000000000000000000000000000c1"),
	}

	h.cfg = testConfig(h.clock)
	if mutate != nil {
		mutate(&h.cfg)
	}

	h.open()
	t.Cleanup(func() { h.db.Close() })

	validators := make([]common.Address, 5)
	for i := range validators {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)

		h.keys = append(h.keys, key)
		validators[i] = crypto.PubkeyToAddress(key.PublicKey)
	}

	err := h.ctrl.Bootstrap(h.ctx, map[roles.Role][]common.Address{
		roles.Admin:     {h.admin},
		roles.Guardian:  {h.guardian},
		roles.Validator: validators,
	})
	require.NoError(t, err)

	h.sink.reset()

	return h
}

// open opens the store and controller at h.path.
func (h *harness) open() {
	h.t.Helper()

	db, err := storage.New(h.path)
	require.NoError(h.t, err)

	ctrl, err := Open(h.ctx, db, h.ledger, h.sink, h.cfg)
	require.NoError(h.t, err)

	h.db = db
	h.ctrl = ctrl
}

// reopen closes and reopens the store, simulating a restart.
func (h *harness) reopen() {
	h.t.Helper()

	require.NoError(h.t, h.db.Close())
	h.open()
}

// attest builds an attestation one second after the previous one.
func (h *harness) attest(reserve int64) *attestation.Attestation {
	h.t.Helper()

	h.clock.Advance(time.Second)
	h.nonce++

	att, err := attestation.New(testDomain, big.NewInt(reserve), h.nonce, h.clock.Now(),
		attestation.Hash{byte(h.nonce)}, attestation.Hash{0x5e})
	require.NoError(h.t, err)

	return att
}

// sign returns signatures over att from the first n validators.
func (h *harness) sign(att *attestation.Attestation, n int) []quorum.Signature {
	h.t.Helper()

	digest := attestation.Digest(att.ID)

	sigs := make([]quorum.Signature, n)
	for i := 0; i < n; i++ {
		b, err := crypto.Sign(digest[:], h.keys[i])
		require.NoError(h.t, err)

		sigs[i] = quorum.Signature{Scheme: quorum.SchemeECDSA, Bytes: b}
	}

	return sigs
}

// process submits att with signatures from the first three validators.
func (h *harness) process(att *attestation.Attestation) (*big.Int, error) {
	return h.ctrl.ProcessAttestation(h.ctx, att, h.sign(att, 3))
}

// requireCapacity asserts both the controller's and the ledger's capacity.
func (h *harness) requireCapacity(want int64) {
	h.t.Helper()

	st, err := h.ctrl.Status(h.ctx)
	require.NoError(h.t, err)
	require.Equal(h.t, big.NewInt(want).String(), st.CurrentCapacity.String(), "controller capacity")
	require.Equal(h.t, big.NewInt(want).String(), h.ledger.Capacity().String(), "ledger capacity")
}

// requireClass asserts err is a controller error of class and wraps target.
func requireClass(t *testing.T, err error, class Class, target error) {
	t.Helper()

	require.Error(t, err)
	require.Equal(t, class, ClassOf(err), "class of %v", err)
	require.ErrorIs(t, err, class)

	if target != nil {
		require.ErrorIs(t, err, target)
	}
}
