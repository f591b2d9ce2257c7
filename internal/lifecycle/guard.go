// Package lifecycle implements the pause / timelocked unpause state machine.
//
// States are Unpaused and Paused{pending}. A pending unpause request only
// exists while paused; Check rejects any other combination.
package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPaused is returned when an operation requires the unpaused state.
	ErrPaused = errors.New("system is paused")

	// ErrAlreadyPaused is returned by Pause while paused with nothing to cancel.
	ErrAlreadyPaused = errors.New("already paused")

	// ErrNotPaused is returned by RequestUnpause while unpaused.
	ErrNotPaused = errors.New("not paused")

	// ErrUnpauseAlreadyRequested is returned by RequestUnpause with a request pending.
	ErrUnpauseAlreadyRequested = errors.New("unpause already requested")

	// ErrNoUnpauseRequest is returned by ExecuteUnpause without a pending request.
	ErrNoUnpauseRequest = errors.New("no unpause request")

	// ErrTimelockActive is returned by ExecuteUnpause before the delay elapsed.
	ErrTimelockActive = errors.New("unpause timelock active")

	// ErrInvalidState is returned for an unpaused state carrying a pending request.
	ErrInvalidState = errors.New("pending unpause while unpaused")
)

// Transition names a state change for events and logs.
type Transition string

const (
	TransitionPaused           Transition = "paused"
	TransitionUnpauseCancelled Transition = "unpause_cancelled"
	TransitionUnpauseRequested Transition = "unpause_requested"
	TransitionUnpaused         Transition = "unpaused"
)

// State is the lifecycle state. The zero value is Unpaused.
type State struct {
	Paused           bool      // Paused gates attestation processing and cap edits
	PendingUnpauseAt time.Time // PendingUnpauseAt is when unpause was requested; zero if none
}

// Pending reports whether an unpause request is outstanding.
func (s State) Pending() bool {
	return !s.PendingUnpauseAt.IsZero()
}

// Check asserts the state invariant.
func (s State) Check() error {
	if !s.Paused && s.Pending() {
		return ErrInvalidState
	}

	return nil
}

// RequireUnpaused returns ErrPaused while paused.
func (s State) RequireUnpaused() error {
	if s.Paused {
		return ErrPaused
	}

	return nil
}

// Pause moves to Paused. Pausing while paused is only valid when it cancels
// a pending unpause; the returned transitions list what happened in order.
func (s State) Pause() (State, []Transition, error) {
	if err := s.Check(); err != nil {
		return s, nil, err
	}

	if s.Paused && !s.Pending() {
		return s, nil, ErrAlreadyPaused
	}

	var transitions []Transition
	if s.Pending() {
		transitions = append(transitions, TransitionUnpauseCancelled)
	}
	if !s.Paused {
		transitions = append(transitions, TransitionPaused)
	}

	return State{Paused: true}, transitions, nil
}

// RequestUnpause records now as the start of the unpause timelock.
func (s State) RequestUnpause(now time.Time) (State, error) {
	if !s.Paused {
		return s, ErrNotPaused
	}

	if s.Pending() {
		return s, ErrUnpauseAlreadyRequested
	}

	return State{Paused: true, PendingUnpauseAt: now}, nil
}

// ExecuteUnpause moves to Unpaused once delay has elapsed since the request.
func (s State) ExecuteUnpause(now time.Time, delay time.Duration) (State, error) {
	if err := s.Check(); err != nil {
		return s, err
	}

	if !s.Pending() {
		return s, ErrNoUnpauseRequest
	}

	readyAt := s.PendingUnpauseAt.Add(delay)
	if now.Before(readyAt) {
		return s, fmt.Errorf("%w: ready at %s", ErrTimelockActive, readyAt.UTC().Format(time.RFC3339))
	}

	return State{}, nil
}

// UnpauseReadyAt returns when a pending request can execute, or zero.
func (s State) UnpauseReadyAt(delay time.Duration) time.Time {
	if !s.Pending() {
		return time.Time{}
	}

	return s.PendingUnpauseAt.Add(delay)
}
