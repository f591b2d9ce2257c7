// Package capacity turns quorum-signed reserve attestations into rate-limited
// changes of the token issuance capacity.
//
// Every operation runs under one mutex. Mutations are staged on a copy of
// the state and committed in a single Pebble batch together with the
// attestation's used mark, so a failed call leaves nothing behind.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ReserveGate/internal/attestation"
	"ReserveGate/internal/audit"
	"ReserveGate/internal/logger"
	"ReserveGate/internal/quorum"
	"ReserveGate/internal/replay"
	"ReserveGate/internal/roles"
	"ReserveGate/internal/storage"
)

// Ledger is the token ledger that enforces capacity at issuance time.
type Ledger interface {
	OutstandingAmount(ctx context.Context) (*big.Int, error)
	SetCapacity(ctx context.Context, capacity *big.Int) error
}

// Controller owns the capacity state, the used-id registry and the role registry.
type Controller struct {
	cfg    Config           // cfg holds the validated configuration
	db     *storage.Storage // db persists state, used ids and roles
	ledger Ledger           // ledger receives capacity changes
	sink   audit.Sink       // sink receives committed events
	used   *replay.Registry // used is the attestation identity registry
	roles  *roles.Registry  // roles maps capabilities to accounts
	log    *slog.Logger     // log is the component logger

	mu    sync.Mutex
	state State // state is the last committed state
}

// Open loads the controller from db, writing genesis state from cfg on first use.
// The ledger is brought in line with the persisted capacity.
func Open(ctx context.Context, db *storage.Storage, ledger Ledger, sink audit.Sink, cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config:\n%w", err)
	}

	if sink == nil {
		sink = audit.Discard{}
	}

	used, err := replay.Open(db, cfg.ReplayCacheSize)
	if err != nil {
		return nil, fmt.Errorf("open used ids:\n%w", err)
	}

	roleRegistry, err := roles.Open(db)
	if err != nil {
		return nil, fmt.Errorf("open roles:\n%w", err)
	}

	c := &Controller{
		cfg:    cfg,
		db:     db,
		ledger: ledger,
		sink:   sink,
		used:   used,
		roles:  roleRegistry,
		log:    logger.With("component", "capacity"),
	}

	if err := c.load(); err != nil {
		return nil, err
	}

	if err := ledger.SetCapacity(ctx, c.state.CurrentCapacity); err != nil {
		return nil, fmt.Errorf("sync ledger capacity:\n%w", err)
	}

	return c, nil
}

// load reads persisted state or writes genesis.
func (c *Controller) load() error {
	data, err := c.db.Get(stateKey)
	if err != nil {
		return fmt.Errorf("read state:\n%w", err)
	}

	if data == nil {
		c.state = genesisState(&c.cfg, c.cfg.now())

		if err := c.db.Set(stateKey, encodeState(c.state)); err != nil {
			return fmt.Errorf("write genesis state:\n%w", err)
		}

		c.log.Info("genesis state written",
			"capacity", c.state.CurrentCapacity,
			"ratio_bps", c.state.CollateralRatioBps,
			"daily_limit", c.state.Limiter.DailyLimit,
			"threshold", c.state.Threshold,
		)

		return nil
	}

	state, err := decodeState(data)
	if err != nil {
		return err
	}

	c.state = state
	c.log.Info("state loaded", "capacity", state.CurrentCapacity, "paused", state.Lifecycle.Paused)

	return nil
}

// ProcessAttestation verifies att against sigs and moves capacity toward
// reserve * 10000 / ratio. Increases are bounded by the daily limit;
// decreases always apply. Returns the resulting capacity.
//
// A rejected attestation, including one refused by the rate limiter, does not
// consume its id and may be resubmitted.
func (c *Controller) ProcessAttestation(ctx context.Context, att *attestation.Attestation, sigs []quorum.Signature) (*big.Int, error) {
	const op = "process attestation"

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.now()

	if err := c.state.Lifecycle.RequireUnpaused(); err != nil {
		return nil, c.reject(op, ClassLifecycle, err)
	}

	if att == nil {
		return nil, c.reject(op, ClassValidation, ErrNilAttestation)
	}

	if err := att.Check(c.cfg.Domain); err != nil {
		return nil, c.reject(op, ClassValidation, err)
	}

	if err := c.checkFreshness(op, att.Timestamp, now); err != nil {
		return nil, err
	}

	result, err := quorum.Verify(attestation.Digest(att.ID), sigs, c.state.Threshold, c.isValidator)
	if err != nil {
		return nil, c.reject(op, quorumClass(err), err)
	}

	// A consumed id reports AlreadyUsed even though its timestamp is stale too.
	if err := c.used.CheckUnused(att.ID); err != nil {
		if errors.Is(err, replay.ErrAlreadyUsed) {
			return nil, c.reject(op, ClassReplay, err)
		}
		return nil, fail(ClassInternal, op, err)
	}

	if last := c.state.LastAttestationAt; !last.IsZero() && !att.Timestamp.After(last) {
		return nil, c.reject(op, ClassReplay, fmt.Errorf("%w: %s <= %s", ErrStaleAttestation,
			att.Timestamp.Format(time.RFC3339), last.Format(time.RFC3339)))
	}

	next := c.state.clone()
	next.AttestedReserve = new(big.Int).Set(att.ReserveValue)
	next.LastAttestationAt = att.Timestamp

	previous := c.state.CurrentCapacity
	target := targetCapacity(next.AttestedReserve, next.CollateralRatioBps)
	delta := new(big.Int)

	var change audit.Kind

	switch target.Cmp(previous) {
	case 1:
		delta.Sub(target, previous)

		limiter, err := next.Limiter.TryConsumeIncrease(now, delta)
		if err != nil {
			return nil, c.reject(op, ClassRateLimit, err)
		}

		next.Limiter = limiter
		next.CurrentCapacity = target
		change = audit.KindCapacityIncreased

	case -1:
		delta.Sub(previous, target)

		next.Limiter = next.Limiter.RecordDecrease(now, delta)
		next.CurrentCapacity = target
		change = audit.KindCapacityDecreased
	}

	if err := c.commit(ctx, op, next, &att.ID); err != nil {
		return nil, err
	}

	c.log.Info("attestation processed",
		"id", att.ID,
		"reserve", att.ReserveValue,
		"signers", len(result.Signers),
		"capacity", next.CurrentCapacity,
	)

	c.emit(ctx, audit.KindAttestationProcessed, now, map[string]string{
		"id":       att.ID.String(),
		"reserve":  att.ReserveValue.String(),
		"nonce":    fmt.Sprint(att.Nonce),
		"signers":  fmt.Sprint(len(result.Signers)),
		"capacity": next.CurrentCapacity.String(),
	})

	if change != "" {
		c.emit(ctx, change, now, map[string]string{
			"from":  previous.String(),
			"to":    next.CurrentCapacity.String(),
			"delta": delta.String(),
			"id":    att.ID.String(),
		})
	}

	return new(big.Int).Set(next.CurrentCapacity), nil
}

// checkFreshness enforces maximum age and clock skew.
func (c *Controller) checkFreshness(op string, ts, now time.Time) error {
	if maxAge := c.cfg.MaxAttestationAge; maxAge > 0 && now.Sub(ts) > maxAge {
		return c.reject(op, ClassValidation, fmt.Errorf("%w: age %s", ErrExpiredAttestation, now.Sub(ts)))
	}

	if ts.After(now.Add(c.cfg.MaxClockSkew)) {
		return c.reject(op, ClassValidation, fmt.Errorf("%w: %s", ErrFutureAttestation, ts.Format(time.RFC3339)))
	}

	return nil
}

// isValidator is the quorum authorizer.
func (c *Controller) isValidator(signer common.Address) bool {
	return c.roles.Has(roles.Validator, signer)
}

// commit persists next, together with usedID when set, and pushes a changed
// capacity to the ledger. The ledger is updated first and restored if the
// batch fails, so the ledger never runs ahead of persisted state.
func (c *Controller) commit(ctx context.Context, op string, next State, usedID *attestation.Hash) error {
	b := c.db.NewBatch()
	defer b.Discard()

	if err := b.Set(stateKey, encodeState(next)); err != nil {
		return fail(ClassInternal, op, fmt.Errorf("stage state:\n%w", err))
	}

	if usedID != nil {
		if err := c.used.Stage(b, *usedID); err != nil {
			return fail(ClassInternal, op, fmt.Errorf("stage used id:\n%w", err))
		}
	}

	capacityChanged := next.CurrentCapacity.Cmp(c.state.CurrentCapacity) != 0
	if capacityChanged {
		if err := c.ledger.SetCapacity(ctx, next.CurrentCapacity); err != nil {
			c.log.Error("ledger rejected capacity", "op", op, "error", err)
			return fail(ClassInternal, op, fmt.Errorf("set ledger capacity:\n%w", err))
		}
	}

	if err := b.Commit(); err != nil {
		if capacityChanged {
			if rbErr := c.ledger.SetCapacity(context.WithoutCancel(ctx), c.state.CurrentCapacity); rbErr != nil {
				c.log.Error("ledger capacity rollback failed", "op", op, "capacity", c.state.CurrentCapacity, "error", rbErr)
			}
		}

		return fail(ClassInternal, op, fmt.Errorf("commit state:\n%w", err))
	}

	c.state = next
	if usedID != nil {
		c.used.Remember(*usedID)
	}

	return nil
}

// reject logs a refused operation at debug and returns it classified.
func (c *Controller) reject(op string, class Class, err error) error {
	c.log.Debug("rejected", "op", op, "class", class, "error", err)

	return fail(class, op, err)
}

// emit delivers an event. Sink failures are logged, never returned:
// the state change they describe is already committed. The caller's
// cancellation is dropped so a disconnected client cannot lose the record.
func (c *Controller) emit(ctx context.Context, kind audit.Kind, at time.Time, attrs map[string]string) {
	ev := audit.Event{Kind: kind, At: at, Attrs: attrs}

	if err := c.sink.Emit(context.WithoutCancel(ctx), ev); err != nil {
		c.log.Warn("event sink failed", "kind", kind, "error", err)
	}
}

// quorumClass maps a verifier error to its class.
func quorumClass(err error) Class {
	switch {
	case errors.Is(err, quorum.ErrMalformedSignature):
		return ClassValidation
	case errors.Is(err, quorum.ErrInsufficientQuorum):
		return ClassAuthorization
	default:
		return ClassInternal
	}
}

// targetCapacity returns reserve * 10000 / ratioBps, rounded down.
func targetCapacity(reserve *big.Int, ratioBps uint32) *big.Int {
	target := new(big.Int).Mul(reserve, big.NewInt(bpsDenominator))

	return target.Quo(target, new(big.Int).SetUint64(uint64(ratioBps)))
}
