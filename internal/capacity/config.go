package capacity

import (
	"fmt"
	"math/big"
	"time"

	"ReserveGate/internal/attestation"
	"ReserveGate/internal/types"
)

// bpsDenominator is 100% in basis points.
const bpsDenominator = 10_000

// Config holds controller parameters. Genesis values seed the persisted state
// the first time a store is opened and are ignored afterwards.
type Config struct {
	Domain attestation.Domain // Domain binds attestation ids to this deployment

	UnpauseDelay      time.Duration // UnpauseDelay is the timelock between request and execution
	MaxAttestationAge time.Duration // MaxAttestationAge rejects older attestations; 0 disables
	MaxClockSkew      time.Duration // MaxClockSkew bounds how far ahead a timestamp may be
	ReplayCacheSize   int           // ReplayCacheSize bounds the used-id cache; 0 selects the default

	InitialCapacity    *big.Int // InitialCapacity is the genesis capacity
	CollateralRatioBps uint32   // CollateralRatioBps is the genesis ratio, >= 10000
	DailyLimit         *big.Int // DailyLimit is the genesis daily increase limit
	Threshold          uint32   // Threshold is the genesis signature threshold

	Clock func() time.Time // Clock supplies the current time; nil means time.Now
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Domain.Validate(); err != nil {
		return err
	}

	if c.UnpauseDelay < 0 || c.MaxAttestationAge < 0 || c.MaxClockSkew < 0 {
		return fmt.Errorf("durations must not be negative")
	}

	if !types.ValidAmount(c.InitialCapacity) {
		return fmt.Errorf("initial capacity: %w", ErrInvalidAmount)
	}

	if !types.ValidAmount(c.DailyLimit) {
		return fmt.Errorf("daily limit: %w", ErrInvalidAmount)
	}

	if c.CollateralRatioBps < bpsDenominator {
		return ErrInvalidRatio
	}

	if c.Threshold == 0 {
		return ErrInvalidThreshold
	}

	return nil
}

// now returns the configured clock reading in UTC.
func (c *Config) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}

	return c.Clock().UTC()
}
