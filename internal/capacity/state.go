package capacity

import (
	"fmt"
	"math/big"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	"ReserveGate/internal/lifecycle"
	"ReserveGate/internal/ratelimit"
	"ReserveGate/internal/types"
)

// stateVersion is the persisted ControllerState format version.
const stateVersion = 1

// stateKey is the Pebble key holding the controller state.
var stateKey = []byte("s:controller")

// State is everything the controller persists besides used ids and roles.
// It is treated as a value: operations build a modified copy and commit it.
type State struct {
	AttestedReserve    *big.Int          // AttestedReserve is the last accepted reserve value
	CollateralRatioBps uint32            // CollateralRatioBps is the required backing in bps
	CurrentCapacity    *big.Int          // CurrentCapacity is the issuance ceiling
	Threshold          uint32            // Threshold is the minimum distinct validator signatures
	Limiter            ratelimit.Limiter // Limiter is the daily increase limiter
	Lifecycle          lifecycle.State   // Lifecycle is the pause state
	LastAttestationAt  time.Time         // LastAttestationAt is the newest accepted attestation timestamp
}

// genesisState builds the initial state from cfg.
func genesisState(cfg *Config, now time.Time) State {
	return State{
		AttestedReserve:    new(big.Int),
		CollateralRatioBps: cfg.CollateralRatioBps,
		CurrentCapacity:    new(big.Int).Set(cfg.InitialCapacity),
		Threshold:          cfg.Threshold,
		Limiter:            ratelimit.New(cfg.DailyLimit, now),
	}
}

// clone returns a deep copy.
func (s State) clone() State {
	next := s
	next.AttestedReserve = new(big.Int).Set(s.AttestedReserve)
	next.CurrentCapacity = new(big.Int).Set(s.CurrentCapacity)
	next.Limiter = s.Limiter.Clone()

	return next
}

// encodeState serializes s as a ControllerState table.
func encodeState(s State) []byte {
	builder := flatbuffers.NewBuilder(512)

	reserve := types.CreateAmount(builder, s.AttestedReserve)
	capacity := types.CreateAmount(builder, s.CurrentCapacity)
	limit := types.CreateAmount(builder, s.Limiter.DailyLimit)
	increased := types.CreateAmount(builder, s.Limiter.Window.NetIncreased)
	decreased := types.CreateAmount(builder, s.Limiter.Window.NetDecreased)

	types.ControllerStateStart(builder)
	types.ControllerStateAddVersion(builder, stateVersion)
	types.ControllerStateAddAttestedReserve(builder, reserve)
	types.ControllerStateAddCollateralRatioBps(builder, s.CollateralRatioBps)
	types.ControllerStateAddCurrentCapacity(builder, capacity)
	types.ControllerStateAddThreshold(builder, s.Threshold)
	types.ControllerStateAddDailyLimit(builder, limit)
	types.ControllerStateAddWindowStart(builder, unixNano(s.Limiter.Window.Start))
	types.ControllerStateAddNetIncreased(builder, increased)
	types.ControllerStateAddNetDecreased(builder, decreased)
	types.ControllerStateAddPaused(builder, s.Lifecycle.Paused)
	types.ControllerStateAddPendingUnpauseAt(builder, unixNano(s.Lifecycle.PendingUnpauseAt))
	types.ControllerStateAddLastAttestationAt(builder, unixNano(s.LastAttestationAt))
	builder.Finish(types.ControllerStateEnd(builder))

	return builder.FinishedBytes()
}

// decodeState parses a persisted ControllerState.
func decodeState(data []byte) (s State, retErr error) {
	// FlatBuffers panics on malformed data, recover gracefully
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("%w: malformed table", ErrCorruptState)
		}
	}()

	if len(data) < 8 {
		return s, fmt.Errorf("%w: too short", ErrCorruptState)
	}

	fb := types.GetRootAsControllerState(data, 0)

	if v := fb.Version(); v != stateVersion {
		return s, fmt.Errorf("%w: unsupported version %d", ErrCorruptState, v)
	}

	amounts := []struct {
		name string
		raw  []byte
		dst  **big.Int
	}{
		{"attested reserve", fb.AttestedReserveBytes(), &s.AttestedReserve},
		{"current capacity", fb.CurrentCapacityBytes(), &s.CurrentCapacity},
		{"daily limit", fb.DailyLimitBytes(), &s.Limiter.DailyLimit},
		{"net increased", fb.NetIncreasedBytes(), &s.Limiter.Window.NetIncreased},
		{"net decreased", fb.NetDecreasedBytes(), &s.Limiter.Window.NetDecreased},
	}

	for _, a := range amounts {
		v, err := types.ParseAmount(a.raw)
		if err != nil {
			return s, fmt.Errorf("%w: %s: %v", ErrCorruptState, a.name, err)
		}
		*a.dst = v
	}

	s.CollateralRatioBps = fb.CollateralRatioBps()
	s.Threshold = fb.Threshold()
	s.Limiter.Window.Start = fromUnixNano(fb.WindowStart())
	s.Lifecycle = lifecycle.State{
		Paused:           fb.Paused(),
		PendingUnpauseAt: fromUnixNano(fb.PendingUnpauseAt()),
	}
	s.LastAttestationAt = fromUnixNano(fb.LastAttestationAt())

	if err := s.Lifecycle.Check(); err != nil {
		return s, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	if s.CollateralRatioBps < bpsDenominator || s.Threshold == 0 {
		return s, fmt.Errorf("%w: parameters out of range", ErrCorruptState)
	}

	return s, nil
}

// unixNano encodes t, mapping the zero time to 0.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}

// fromUnixNano decodes a timestamp written by unixNano.
func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}

	return time.Unix(0, n).UTC()
}
