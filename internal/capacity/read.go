package capacity

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ReserveGate/internal/attestation"
	"ReserveGate/internal/replay"
	"ReserveGate/internal/roles"
)

// Status is a snapshot of the controller for operators.
type Status struct {
	AttestedReserve    *big.Int
	CollateralRatioBps uint32
	CurrentCapacity    *big.Int
	Outstanding        *big.Int
	HealthRatioBps     *big.Int
	Healthy            bool
	Threshold          uint32

	DailyLimit        *big.Int
	WindowStart       time.Time
	NetIncrease       *big.Int
	NetDecrease       *big.Int
	RemainingIncrease *big.Int

	Paused            bool
	PendingUnpauseAt  time.Time
	UnpauseReadyAt    time.Time
	LastAttestationAt time.Time

	Validators int
	Guardians  int
	Admins     int
}

// HealthRatio returns outstanding * 10000 / attestedReserve in bps.
// With no attested reserve the ratio is defined as 0.
func (c *Controller) HealthRatio(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	reserve := new(big.Int).Set(c.state.AttestedReserve)
	c.mu.Unlock()

	outstanding, err := c.ledger.OutstandingAmount(ctx)
	if err != nil {
		return nil, fail(ClassInternal, "health ratio", fmt.Errorf("read outstanding amount:\n%w", err))
	}

	return healthRatio(outstanding, reserve), nil
}

// IsGloballyHealthy reports whether outstanding supply is backed at the
// collateral ratio: outstanding * ratio <= reserve * 10000. Nothing
// outstanding is always healthy.
func (c *Controller) IsGloballyHealthy(ctx context.Context) (bool, error) {
	c.mu.Lock()
	reserve := new(big.Int).Set(c.state.AttestedReserve)
	ratio := c.state.CollateralRatioBps
	c.mu.Unlock()

	outstanding, err := c.ledger.OutstandingAmount(ctx)
	if err != nil {
		return false, fail(ClassInternal, "health check", fmt.Errorf("read outstanding amount:\n%w", err))
	}

	return healthy(outstanding, reserve, ratio), nil
}

// RemainingDailyIncreaseAllowance returns the capacity increase still
// possible in the window effective now.
func (c *Controller) RemainingDailyIncreaseAllowance() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.Limiter.RemainingIncreaseAllowance(c.cfg.now())
}

// NetDailyIncrease returns the capacity added in the window effective now.
func (c *Controller) NetDailyIncrease() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.Limiter.NetIncrease(c.cfg.now())
}

// NetDailyDecrease returns the capacity removed in the window effective now.
func (c *Controller) NetDailyDecrease() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.Limiter.NetDecrease(c.cfg.now())
}

// IsAttestationUsed reports whether id was consumed.
func (c *Controller) IsAttestationUsed(id attestation.Hash) (bool, error) {
	used, err := c.used.IsUsed(id)
	if err != nil {
		return false, fail(ClassInternal, "is attestation used", err)
	}

	return used, nil
}

// HasRole reports whether account holds role.
func (c *Controller) HasRole(role roles.Role, account common.Address) bool {
	return c.roles.Has(role, account)
}

// ExportUsed returns the compressed snapshot of consumed ids for a successor deployment.
func (c *Controller) ExportUsed() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.used.Export()
	if err != nil {
		return nil, fail(ClassInternal, "export used ids", err)
	}

	return data, nil
}

// Predecessor returns the controller's used-id registry for migrating into
// a successor running in the same process.
func (c *Controller) Predecessor() replay.Lookup {
	return c.used
}

// Status returns a consistent snapshot of the controller.
func (c *Controller) Status(ctx context.Context) (*Status, error) {
	outstanding, err := c.ledger.OutstandingAmount(ctx)
	if err != nil {
		return nil, fail(ClassInternal, "status", fmt.Errorf("read outstanding amount:\n%w", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.now()
	s := c.state.clone()

	return &Status{
		AttestedReserve:    s.AttestedReserve,
		CollateralRatioBps: s.CollateralRatioBps,
		CurrentCapacity:    s.CurrentCapacity,
		Outstanding:        outstanding,
		HealthRatioBps:     healthRatio(outstanding, s.AttestedReserve),
		Healthy:            healthy(outstanding, s.AttestedReserve, s.CollateralRatioBps),
		Threshold:          s.Threshold,
		DailyLimit:         s.Limiter.DailyLimit,
		WindowStart:        s.Limiter.Window.Start,
		NetIncrease:        s.Limiter.NetIncrease(now),
		NetDecrease:        s.Limiter.NetDecrease(now),
		RemainingIncrease:  s.Limiter.RemainingIncreaseAllowance(now),
		Paused:             s.Lifecycle.Paused,
		PendingUnpauseAt:   s.Lifecycle.PendingUnpauseAt,
		UnpauseReadyAt:     s.Lifecycle.UnpauseReadyAt(c.cfg.UnpauseDelay),
		LastAttestationAt:  s.LastAttestationAt,
		Validators:         c.roles.Count(roles.Validator),
		Guardians:          c.roles.Count(roles.Guardian),
		Admins:             c.roles.Count(roles.Admin),
	}, nil
}

// healthRatio returns outstanding * 10000 / reserve, or 0 without reserve.
func healthRatio(outstanding, reserve *big.Int) *big.Int {
	if reserve.Sign() == 0 {
		return new(big.Int)
	}

	ratio := new(big.Int).Mul(outstanding, big.NewInt(bpsDenominator))

	return ratio.Quo(ratio, reserve)
}

// healthy reports outstanding * ratio <= reserve * 10000.
func healthy(outstanding, reserve *big.Int, ratioBps uint32) bool {
	if outstanding.Sign() == 0 {
		return true
	}

	if reserve.Sign() == 0 {
		return false
	}

	lhs := new(big.Int).Mul(outstanding, new(big.Int).SetUint64(uint64(ratioBps)))
	rhs := new(big.Int).Mul(reserve, big.NewInt(bpsDenominator))

	return lhs.Cmp(rhs) <= 0
}
