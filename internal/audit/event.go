// Package audit carries controller events to their sinks: the process log
// and a persistent SQLite journal.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"
)

// Kind names an event.
type Kind string

const (
	KindAttestationProcessed   Kind = "attestation_processed"
	KindCapacityIncreased      Kind = "capacity_increased"
	KindCapacityDecreased      Kind = "capacity_decreased"
	KindPaused                 Kind = "paused"
	KindUnpauseRequested       Kind = "unpause_requested"
	KindUnpauseCancelled       Kind = "unpause_cancelled"
	KindUnpaused               Kind = "unpaused"
	KindEmergencyCapReduced    Kind = "emergency_cap_reduced"
	KindCollateralRatioUpdated Kind = "collateral_ratio_updated"
	KindDailyLimitUpdated      Kind = "daily_limit_updated"
	KindThresholdUpdated       Kind = "threshold_updated"
	KindRoleGranted            Kind = "role_granted"
	KindRoleRevoked            Kind = "role_revoked"
	KindAttestationsMigrated   Kind = "attestations_migrated"
)

// Event is one committed state change.
type Event struct {
	Seq   int64             `json:"seq,omitempty"` // Seq is the journal sequence number; zero before persistence
	Kind  Kind              `json:"kind"`          // Kind names the change
	At    time.Time         `json:"at"`            // At is the controller clock at commit
	Attrs map[string]string `json:"attrs"`         // Attrs holds the change details
}

// Sink receives events after the state change they describe is committed.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// LogSink writes events to a slog logger.
type LogSink struct {
	Log *slog.Logger // Log receives one INFO line per event
}

// Emit logs ev with its attributes in key order.
func (s LogSink) Emit(ctx context.Context, ev Event) error {
	keys := make([]string, 0, len(ev.Attrs))
	for k := range ev.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k, ev.Attrs[k])
	}

	s.Log.InfoContext(ctx, "event "+string(ev.Kind), args...)

	return nil
}

// Multi fans an event out to every sink. All sinks are tried; errors are joined.
type Multi []Sink

// Emit delivers ev to each sink in order.
func (m Multi) Emit(ctx context.Context, ev Event) error {
	var errs []error

	for _, s := range m {
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

// Emit does nothing.
func (Discard) Emit(context.Context, Event) error { return nil }
