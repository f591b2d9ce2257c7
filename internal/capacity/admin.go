package capacity

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ReserveGate/internal/attestation"
	"ReserveGate/internal/audit"
	"ReserveGate/internal/lifecycle"
	"ReserveGate/internal/replay"
	"ReserveGate/internal/roles"
	"ReserveGate/internal/types"
)

// Bootstrap grants the initial role holders. It only runs while no admin
// exists and must name at least one admin.
func (c *Controller) Bootstrap(ctx context.Context, members map[roles.Role][]common.Address) error {
	const op = "bootstrap"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roles.Count(roles.Admin) > 0 {
		return fail(ClassLifecycle, op, ErrAlreadyBootstrapped)
	}

	if len(members[roles.Admin]) == 0 {
		return fail(ClassValidation, op, errors.New("at least one admin required"))
	}

	added, err := c.roles.GrantAll(members)
	if err != nil {
		return fail(classOfRoleErr(err), op, err)
	}

	now := c.cfg.now()

	for _, role := range roles.All {
		for _, account := range added[role] {
			c.emit(ctx, audit.KindRoleGranted, now, map[string]string{
				"role":    role.String(),
				"account": account.Hex(),
				"caller":  "bootstrap",
			})
		}
	}

	c.log.Info("roles bootstrapped",
		"admins", c.roles.Count(roles.Admin),
		"guardians", c.roles.Count(roles.Guardian),
		"validators", c.roles.Count(roles.Validator),
	)

	return nil
}

// SetDailyLimit replaces the daily increase limit. The current window is kept.
func (c *Controller) SetDailyLimit(ctx context.Context, caller common.Address, limit *big.Int) error {
	const op = "set daily limit"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authorize(op, caller, roles.Admin); err != nil {
		return err
	}

	if !types.ValidAmount(limit) {
		return c.reject(op, ClassValidation, ErrInvalidAmount)
	}

	previous := c.state.Limiter.DailyLimit

	next := c.state.clone()
	next.Limiter = next.Limiter.WithDailyLimit(limit)

	if err := c.commit(ctx, op, next, nil); err != nil {
		return err
	}

	c.log.Info("daily limit updated", "from", previous, "to", limit, "caller", caller)
	c.emit(ctx, audit.KindDailyLimitUpdated, c.cfg.now(), map[string]string{
		"from":   previous.String(),
		"to":     limit.String(),
		"caller": caller.Hex(),
	})

	return nil
}

// SetCollateralRatio replaces the collateral ratio and recomputes the target
// against the attested reserve. A lower target applies at once, bypassing the
// rate limiter; a higher one waits for the next attestation. Before the first
// attestation there is no reserve to recompute against and capacity is kept.
// Returns the resulting capacity.
func (c *Controller) SetCollateralRatio(ctx context.Context, caller common.Address, ratioBps uint32) (*big.Int, error) {
	const op = "set collateral ratio"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authorize(op, caller, roles.Admin); err != nil {
		return nil, err
	}

	if err := c.state.Lifecycle.RequireUnpaused(); err != nil {
		return nil, c.reject(op, ClassLifecycle, err)
	}

	if ratioBps < bpsDenominator {
		return nil, c.reject(op, ClassValidation, fmt.Errorf("%w: %d", ErrInvalidRatio, ratioBps))
	}

	now := c.cfg.now()
	previousRatio := c.state.CollateralRatioBps
	previous := c.state.CurrentCapacity

	next := c.state.clone()
	next.CollateralRatioBps = ratioBps

	delta := new(big.Int)
	if next.AttestedReserve.Sign() > 0 {
		target := targetCapacity(next.AttestedReserve, ratioBps)
		if target.Cmp(previous) < 0 {
			delta.Sub(previous, target)
			next.Limiter = next.Limiter.RecordDecrease(now, delta)
			next.CurrentCapacity = target
		}
	}

	if err := c.commit(ctx, op, next, nil); err != nil {
		return nil, err
	}

	c.log.Info("collateral ratio updated", "from", previousRatio, "to", ratioBps, "capacity", next.CurrentCapacity)
	c.emit(ctx, audit.KindCollateralRatioUpdated, now, map[string]string{
		"from":   fmt.Sprint(previousRatio),
		"to":     fmt.Sprint(ratioBps),
		"caller": caller.Hex(),
	})

	if delta.Sign() > 0 {
		c.emit(ctx, audit.KindCapacityDecreased, now, map[string]string{
			"from":  previous.String(),
			"to":    next.CurrentCapacity.String(),
			"delta": delta.String(),
		})
	}

	return new(big.Int).Set(next.CurrentCapacity), nil
}

// SetThreshold replaces the minimum number of distinct validator signatures.
func (c *Controller) SetThreshold(ctx context.Context, caller common.Address, threshold uint32) error {
	const op = "set threshold"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authorize(op, caller, roles.Admin); err != nil {
		return err
	}

	if threshold == 0 {
		return c.reject(op, ClassValidation, ErrInvalidThreshold)
	}

	previous := c.state.Threshold

	next := c.state.clone()
	next.Threshold = threshold

	if err := c.commit(ctx, op, next, nil); err != nil {
		return err
	}

	if validators := c.roles.Count(roles.Validator); uint32(validators) < threshold {
		c.log.Warn("threshold exceeds validator count", "threshold", threshold, "validators", validators)
	}

	c.log.Info("threshold updated", "from", previous, "to", threshold)
	c.emit(ctx, audit.KindThresholdUpdated, c.cfg.now(), map[string]string{
		"from":   fmt.Sprint(previous),
		"to":     fmt.Sprint(threshold),
		"caller": caller.Hex(),
	})

	return nil
}

// GrantRole gives role to account. Granting a held role is a no-op.
func (c *Controller) GrantRole(ctx context.Context, caller common.Address, role roles.Role, account common.Address) error {
	const op = "grant role"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authorize(op, caller, roles.Admin); err != nil {
		return err
	}

	added, err := c.roles.Grant(role, account)
	if err != nil {
		return c.reject(op, classOfRoleErr(err), err)
	}

	if !added {
		return nil
	}

	c.log.Info("role granted", "role", role, "account", account, "caller", caller)
	c.emit(ctx, audit.KindRoleGranted, c.cfg.now(), map[string]string{
		"role":    role.String(),
		"account": account.Hex(),
		"caller":  caller.Hex(),
	})

	return nil
}

// RevokeRole removes role from account. The last admin cannot be revoked.
func (c *Controller) RevokeRole(ctx context.Context, caller common.Address, role roles.Role, account common.Address) error {
	const op = "revoke role"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authorize(op, caller, roles.Admin); err != nil {
		return err
	}

	if role == roles.Admin && c.roles.Has(roles.Admin, account) && c.roles.Count(roles.Admin) == 1 {
		return c.reject(op, ClassValidation, ErrLastAdmin)
	}

	removed, err := c.roles.Revoke(role, account)
	if err != nil {
		return c.reject(op, classOfRoleErr(err), err)
	}

	if !removed {
		return nil
	}

	c.log.Info("role revoked", "role", role, "account", account, "caller", caller)
	c.emit(ctx, audit.KindRoleRevoked, c.cfg.now(), map[string]string{
		"role":    role.String(),
		"account": account.Hex(),
		"caller":  caller.Hex(),
	})

	return nil
}

// MigrateAttestations imports the used status of ids from a predecessor
// deployment. Returns the number of newly imported ids.
func (c *Controller) MigrateAttestations(ctx context.Context, caller common.Address, ids []attestation.Hash, predecessor replay.Lookup) (int, error) {
	const op = "migrate attestations"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authorize(op, caller, roles.Admin); err != nil {
		return 0, err
	}

	n, err := c.used.Migrate(ids, predecessor)
	if err != nil {
		if errors.Is(err, replay.ErrNilPredecessor) {
			return 0, c.reject(op, ClassValidation, err)
		}
		return 0, fail(ClassInternal, op, err)
	}

	c.log.Info("attestations migrated", "requested", len(ids), "imported", n)
	c.emit(ctx, audit.KindAttestationsMigrated, c.cfg.now(), map[string]string{
		"requested": fmt.Sprint(len(ids)),
		"imported":  fmt.Sprint(n),
		"caller":    caller.Hex(),
	})

	return n, nil
}

// Pause stops attestation processing. Pausing while an unpause is pending
// cancels the request.
func (c *Controller) Pause(ctx context.Context, caller common.Address) error {
	const op = "pause"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authorize(op, caller, roles.Guardian); err != nil {
		return err
	}

	lc, transitions, err := c.state.Lifecycle.Pause()
	if err != nil {
		return c.reject(op, ClassLifecycle, err)
	}

	return c.applyLifecycle(ctx, op, caller, lc, transitions)
}

// RequestUnpause starts the unpause timelock.
func (c *Controller) RequestUnpause(ctx context.Context, caller common.Address) error {
	const op = "request unpause"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authorize(op, caller, roles.Admin); err != nil {
		return err
	}

	lc, err := c.state.Lifecycle.RequestUnpause(c.cfg.now())
	if err != nil {
		return c.reject(op, ClassLifecycle, err)
	}

	return c.applyLifecycle(ctx, op, caller, lc, []lifecycle.Transition{lifecycle.TransitionUnpauseRequested})
}

// ExecuteUnpause resumes processing once the timelock has elapsed.
func (c *Controller) ExecuteUnpause(ctx context.Context, caller common.Address) error {
	const op = "execute unpause"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authorize(op, caller, roles.Admin); err != nil {
		return err
	}

	lc, err := c.state.Lifecycle.ExecuteUnpause(c.cfg.now(), c.cfg.UnpauseDelay)
	if err != nil {
		return c.reject(op, ClassLifecycle, err)
	}

	return c.applyLifecycle(ctx, op, caller, lc, []lifecycle.Transition{lifecycle.TransitionUnpaused})
}

// applyLifecycle commits a lifecycle change and emits one event per transition.
func (c *Controller) applyLifecycle(ctx context.Context, op string, caller common.Address, lc lifecycle.State, transitions []lifecycle.Transition) error {
	next := c.state.clone()
	next.Lifecycle = lc

	if err := c.commit(ctx, op, next, nil); err != nil {
		return err
	}

	now := c.cfg.now()
	for _, t := range transitions {
		c.log.Info("lifecycle "+string(t), "caller", caller)
		c.emit(ctx, audit.Kind(t), now, map[string]string{"caller": caller.Hex()})
	}

	return nil
}

// EmergencyReduceCap lowers capacity immediately, regardless of pause state
// and the rate limiter. Guardians and admins may call it; going below the
// outstanding supply requires admin. Returns the new capacity.
func (c *Controller) EmergencyReduceCap(ctx context.Context, caller common.Address, newCap *big.Int, reason string) (*big.Int, error) {
	const op = "emergency reduce cap"

	c.mu.Lock()
	defer c.mu.Unlock()

	isAdmin := c.roles.Has(roles.Admin, caller)
	if !isAdmin && !c.roles.Has(roles.Guardian, caller) {
		return nil, c.reject(op, ClassAuthorization, fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex()))
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, c.reject(op, ClassValidation, ErrEmptyReason)
	}

	if !types.ValidAmount(newCap) {
		return nil, c.reject(op, ClassValidation, ErrInvalidAmount)
	}

	previous := c.state.CurrentCapacity
	if newCap.Cmp(previous) >= 0 {
		return nil, c.reject(op, ClassValidation, fmt.Errorf("%w: %s >= %s", ErrNotReduction, newCap, previous))
	}

	outstanding, err := c.ledger.OutstandingAmount(ctx)
	if err != nil {
		return nil, fail(ClassInternal, op, fmt.Errorf("read outstanding amount:\n%w", err))
	}

	if newCap.Cmp(outstanding) < 0 && !isAdmin {
		return nil, c.reject(op, ClassAuthorization, fmt.Errorf("%w: cap %s, outstanding %s", ErrAdminRequired, newCap, outstanding))
	}

	now := c.cfg.now()
	delta := new(big.Int).Sub(previous, newCap)

	next := c.state.clone()
	next.CurrentCapacity = new(big.Int).Set(newCap)
	next.Limiter = next.Limiter.RecordDecrease(now, delta)

	if err := c.commit(ctx, op, next, nil); err != nil {
		return nil, err
	}

	c.log.Warn("emergency capacity reduction", "from", previous, "to", newCap, "caller", caller, "reason", reason)
	c.emit(ctx, audit.KindEmergencyCapReduced, now, map[string]string{
		"from":        previous.String(),
		"to":          newCap.String(),
		"delta":       delta.String(),
		"outstanding": outstanding.String(),
		"reason":      reason,
		"caller":      caller.Hex(),
	})

	return new(big.Int).Set(next.CurrentCapacity), nil
}

// authorize requires caller to hold role.
func (c *Controller) authorize(op string, caller common.Address, role roles.Role) error {
	if c.roles.Has(role, caller) {
		return nil
	}

	return c.reject(op, ClassAuthorization, fmt.Errorf("%w: %s is not %s", ErrUnauthorized, caller.Hex(), role))
}

// classOfRoleErr maps role registry errors.
func classOfRoleErr(err error) Class {
	if errors.Is(err, roles.ErrZeroAddress) || errors.Is(err, roles.ErrUnknownRole) {
		return ClassValidation
	}

	return ClassInternal
}
