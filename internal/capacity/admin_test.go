package capacity

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ReserveGate/internal/audit"
	"ReserveGate/internal/ledger"
	"ReserveGate/internal/lifecycle"
	"ReserveGate/internal/roles"
	"ReserveGate/internal/storage"
)

// TestEmergencyReduceCapRoles tests the separation of duties: a guardian may
// reduce capacity but not below outstanding supply; an admin may, with a reason.
func TestEmergencyReduceCapRoles(t *testing.T) {
	h := newHarness(t, 5_000_000, nil)

	_, err := h.ctrl.EmergencyReduceCap(h.ctx, h.guardian, big.NewInt(4_000_000), "reserve custodian halted")
	requireClass(t, err, ClassAuthorization, ErrAdminRequired)
	h.requireCapacity(10_000_000)

	capacity, err := h.ctrl.EmergencyReduceCap(h.ctx, h.guardian, big.NewInt(6_000_000), "custodian delay")
	require.NoError(t, err)
	require.Equal(t, "6000000", capacity.String())

	_, err = h.ctrl.EmergencyReduceCap(h.ctx, h.admin, big.NewInt(1_000_000), "")
	requireClass(t, err, ClassValidation, ErrEmptyReason)

	_, err = h.ctrl.EmergencyReduceCap(h.ctx, h.admin, big.NewInt(1_000_000), "   ")
	requireClass(t, err, ClassValidation, ErrEmptyReason)

	capacity, err = h.ctrl.EmergencyReduceCap(h.ctx, h.admin, big.NewInt(1_000_000), "custodian insolvent")
	require.NoError(t, err)
	require.Equal(t, "1000000", capacity.String())
	h.requireCapacity(1_000_000)
	require.Equal(t, "9000000", h.ctrl.NetDailyDecrease().String())

	kinds := h.sink.kinds()
	require.Equal(t, []audit.Kind{audit.KindEmergencyCapReduced, audit.KindEmergencyCapReduced}, kinds)
	require.Equal(t, "custodian insolvent", h.sink.events[1].Attrs["reason"])
}

func TestEmergencyReduceCapValidation(t *testing.T) {
	h := newHarness(t, 0, nil)

	_, err := h.ctrl.EmergencyReduceCap(h.ctx, h.stranger, big.NewInt(1), "x")
	requireClass(t, err, ClassAuthorization, ErrUnauthorized)

	_, err = h.ctrl.EmergencyReduceCap(h.ctx, h.admin, big.NewInt(10_000_000), "x")
	requireClass(t, err, ClassValidation, ErrNotReduction)

	_, err = h.ctrl.EmergencyReduceCap(h.ctx, h.admin, big.NewInt(-1), "x")
	requireClass(t, err, ClassValidation, ErrInvalidAmount)
}

// TestEmergencyReduceWhilePaused tests that the override ignores the pause
// state and the exhausted rate limiter.
func TestEmergencyReduceWhilePaused(t *testing.T) {
	h := newHarness(t, 0, nil)

	_, err := h.process(h.attest(12_100_000))
	require.NoError(t, err)
	require.NoError(t, h.ctrl.Pause(h.ctx, h.guardian))

	capacity, err := h.ctrl.EmergencyReduceCap(h.ctx, h.guardian, big.NewInt(0), "halt issuance")
	require.NoError(t, err)
	require.Zero(t, capacity.Sign())
	h.requireCapacity(0)
}

// TestPauseLifecycle walks pause, cancelled unpause, timelock and resume.
func TestPauseLifecycle(t *testing.T) {
	h := newHarness(t, 0, nil)

	requireClass(t, h.ctrl.Pause(h.ctx, h.admin), ClassAuthorization, ErrUnauthorized)
	requireClass(t, h.ctrl.RequestUnpause(h.ctx, h.admin), ClassLifecycle, lifecycle.ErrNotPaused)
	requireClass(t, h.ctrl.ExecuteUnpause(h.ctx, h.admin), ClassLifecycle, lifecycle.ErrNoUnpauseRequest)

	require.NoError(t, h.ctrl.Pause(h.ctx, h.guardian))
	requireClass(t, h.ctrl.Pause(h.ctx, h.guardian), ClassLifecycle, lifecycle.ErrAlreadyPaused)

	_, err := h.process(h.attest(12_100_000))
	requireClass(t, err, ClassLifecycle, lifecycle.ErrPaused)

	_, err = h.ctrl.SetCollateralRatio(h.ctx, h.admin, 12_000)
	requireClass(t, err, ClassLifecycle, lifecycle.ErrPaused)

	requireClass(t, h.ctrl.RequestUnpause(h.ctx, h.guardian), ClassAuthorization, ErrUnauthorized)
	require.NoError(t, h.ctrl.RequestUnpause(h.ctx, h.admin))
	requireClass(t, h.ctrl.RequestUnpause(h.ctx, h.admin), ClassLifecycle, lifecycle.ErrUnpauseAlreadyRequested)

	h.clock.Advance(30 * time.Minute)
	requireClass(t, h.ctrl.ExecuteUnpause(h.ctx, h.admin), ClassLifecycle, lifecycle.ErrTimelockActive)

	// Pausing again cancels the pending request.
	require.NoError(t, h.ctrl.Pause(h.ctx, h.guardian))

	st, err := h.ctrl.Status(h.ctx)
	require.NoError(t, err)
	require.True(t, st.Paused)
	require.True(t, st.PendingUnpauseAt.IsZero())

	h.clock.Advance(time.Hour)
	requireClass(t, h.ctrl.ExecuteUnpause(h.ctx, h.admin), ClassLifecycle, lifecycle.ErrNoUnpauseRequest)

	require.NoError(t, h.ctrl.RequestUnpause(h.ctx, h.admin))
	h.clock.Advance(time.Hour)
	require.NoError(t, h.ctrl.ExecuteUnpause(h.ctx, h.admin))

	_, err = h.process(h.attest(12_100_000))
	require.NoError(t, err)

	require.Equal(t, []audit.Kind{
		audit.KindPaused,
		audit.KindUnpauseRequested,
		audit.KindUnpauseCancelled,
		audit.KindUnpauseRequested,
		audit.KindUnpaused,
		audit.KindAttestationProcessed,
		audit.KindCapacityIncreased,
	}, h.sink.kinds())
}

// TestSetCollateralRatio tests that tightening applies immediately without
// the rate limiter and loosening waits for the next attestation.
func TestSetCollateralRatio(t *testing.T) {
	h := newHarness(t, 0, nil)

	// Before any attestation there is no reserve to recompute against.
	capacity, err := h.ctrl.SetCollateralRatio(h.ctx, h.admin, 20_000)
	require.NoError(t, err)
	require.Equal(t, "10000000", capacity.String())
	_, err = h.ctrl.SetCollateralRatio(h.ctx, h.admin, 11_000)
	require.NoError(t, err)

	_, err = h.process(h.attest(12_100_000))
	require.NoError(t, err)
	require.Zero(t, h.ctrl.RemainingDailyIncreaseAllowance().Sign())

	capacity, err = h.ctrl.SetCollateralRatio(h.ctx, h.admin, 12_100)
	require.NoError(t, err)
	require.Equal(t, "10000000", capacity.String())
	h.requireCapacity(10_000_000)
	require.Equal(t, "1000000", h.ctrl.NetDailyDecrease().String())

	capacity, err = h.ctrl.SetCollateralRatio(h.ctx, h.admin, 10_000)
	require.NoError(t, err)
	require.Equal(t, "10000000", capacity.String(), "loosening does not raise capacity")

	_, err = h.ctrl.SetCollateralRatio(h.ctx, h.admin, 9_999)
	requireClass(t, err, ClassValidation, ErrInvalidRatio)

	_, err = h.ctrl.SetCollateralRatio(h.ctx, h.guardian, 12_000)
	requireClass(t, err, ClassAuthorization, ErrUnauthorized)
}

func TestSetThresholdAndLimit(t *testing.T) {
	h := newHarness(t, 0, nil)

	requireClass(t, h.ctrl.SetThreshold(h.ctx, h.admin, 0), ClassValidation, ErrInvalidThreshold)
	requireClass(t, h.ctrl.SetThreshold(h.ctx, h.guardian, 4), ClassAuthorization, ErrUnauthorized)
	require.NoError(t, h.ctrl.SetThreshold(h.ctx, h.admin, 4))

	att := h.attest(11_000_000)
	_, err := h.process(att)
	requireClass(t, err, ClassAuthorization, nil)

	_, err = h.ctrl.ProcessAttestation(h.ctx, att, h.sign(att, 4))
	require.NoError(t, err)

	requireClass(t, h.ctrl.SetDailyLimit(h.ctx, h.admin, nil), ClassValidation, ErrInvalidAmount)
	require.NoError(t, h.ctrl.SetDailyLimit(h.ctx, h.admin, big.NewInt(42)))
	require.Equal(t, "42", h.ctrl.RemainingDailyIncreaseAllowance().String())
}

// TestRoles tests grant, revoke and the last-admin guard.
func TestRoles(t *testing.T) {
	h := newHarness(t, 0, nil)
	other := common.HexToAddress("0x00000000000000000000000000000000000000a2")

	requireClass(t, h.ctrl.GrantRole(h.ctx, h.guardian, roles.Admin, other), ClassAuthorization, ErrUnauthorized)
	requireClass(t, h.ctrl.GrantRole(h.ctx, h.admin, roles.Admin, common.Address{}), ClassValidation, roles.ErrZeroAddress)
	requireClass(t, h.ctrl.RevokeRole(h.ctx, h.admin, roles.Admin, h.admin), ClassValidation, ErrLastAdmin)

	require.NoError(t, h.ctrl.GrantRole(h.ctx, h.admin, roles.Admin, other))
	require.NoError(t, h.ctrl.GrantRole(h.ctx, h.admin, roles.Admin, other))
	require.True(t, h.ctrl.HasRole(roles.Admin, other))

	require.NoError(t, h.ctrl.RevokeRole(h.ctx, other, roles.Admin, h.admin))
	require.False(t, h.ctrl.HasRole(roles.Admin, h.admin))
	requireClass(t, h.ctrl.RevokeRole(h.ctx, other, roles.Admin, other), ClassValidation, ErrLastAdmin)

	require.Equal(t, []audit.Kind{audit.KindRoleGranted, audit.KindRoleRevoked}, h.sink.kinds())
}

// TestRevokedValidatorStopsCounting tests that quorum follows role changes.
func TestRevokedValidatorStopsCounting(t *testing.T) {
	h := newHarness(t, 0, nil)

	st, err := h.ctrl.Status(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 5, st.Validators)

	att := h.attest(11_000_000)
	sigs := h.sign(att, 3)

	validators := h.ctrl.roles.Members(roles.Validator)
	for _, v := range validators {
		require.NoError(t, h.ctrl.RevokeRole(h.ctx, h.admin, roles.Validator, v))
	}

	_, err = h.ctrl.ProcessAttestation(h.ctx, att, sigs)
	requireClass(t, err, ClassAuthorization, nil)
}

// TestBootstrapFailureLeavesNoRoles tests that a rejected bootstrap grants
// nothing, so a corrected list can still be applied.
func TestBootstrapFailureLeavesNoRoles(t *testing.T) {
	ctx := context.Background()

	db, err := storage.New(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sink := &recordingSink{}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	ctrl, err := Open(ctx, db, ledger.NewMemory(nil), sink, testConfig(clock))
	require.NoError(t, err)

	admin := common.HexToAddress("0x00000000000000000000000000000000000000d1")
	guardian := common.HexToAddress("0x00000000000000000000000000000000000000d2")

	err = ctrl.Bootstrap(ctx, map[roles.Role][]common.Address{
		roles.Guardian: {guardian},
		roles.Admin:    {admin, {}},
	})
	requireClass(t, err, ClassValidation, roles.ErrZeroAddress)
	require.False(t, ctrl.HasRole(roles.Admin, admin))
	require.False(t, ctrl.HasRole(roles.Guardian, guardian))
	require.Empty(t, sink.kinds())

	err = ctrl.Bootstrap(ctx, map[roles.Role][]common.Address{
		roles.Guardian: {guardian},
		roles.Admin:    {admin},
	})
	require.NoError(t, err)
	require.True(t, ctrl.HasRole(roles.Admin, admin))
	require.True(t, ctrl.HasRole(roles.Guardian, guardian))
	require.Equal(t, []audit.Kind{audit.KindRoleGranted, audit.KindRoleGranted}, sink.kinds())
}
