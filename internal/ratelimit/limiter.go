// Package ratelimit bounds how fast issuance capacity may grow over a rolling
// 24 hour window. Decreases are recorded but never limited.
package ratelimit

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// WindowDuration is the length of one accounting window.
const WindowDuration = 24 * time.Hour

// ErrExceedsDailyLimit is returned when an increase would pass the daily limit.
var ErrExceedsDailyLimit = errors.New("exceeds daily limit")

// Window accumulates net capacity changes since Start.
type Window struct {
	Start        time.Time // Start is when the current window began
	NetIncreased *big.Int  // NetIncreased is the capacity added in this window
	NetDecreased *big.Int  // NetDecreased is the capacity removed in this window
}

// Limiter is the daily rate limiter state. Methods never mutate the receiver:
// they return the updated limiter so callers can stage it and commit later.
type Limiter struct {
	DailyLimit *big.Int // DailyLimit is the maximum increase per window
	Window     Window   // Window is the current accounting window
}

// New creates a limiter whose first window starts at now.
func New(dailyLimit *big.Int, now time.Time) Limiter {
	return Limiter{
		DailyLimit: new(big.Int).Set(dailyLimit),
		Window:     freshWindow(now),
	}
}

// Clone returns a deep copy.
func (l Limiter) Clone() Limiter {
	return Limiter{
		DailyLimit: cloneInt(l.DailyLimit),
		Window: Window{
			Start:        l.Window.Start,
			NetIncreased: cloneInt(l.Window.NetIncreased),
			NetDecreased: cloneInt(l.Window.NetDecreased),
		},
	}
}

// Expired reports whether a full window has elapsed at now.
func (l Limiter) Expired(now time.Time) bool {
	return now.Sub(l.Window.Start) >= WindowDuration
}

// advance returns a copy whose window is reset when expired at now.
// The reset happens inside each operation so that the check and the update
// see the same window.
func (l Limiter) advance(now time.Time) Limiter {
	next := l.Clone()
	if next.Expired(now) {
		next.Window = freshWindow(now)
	}

	return next
}

// RemainingIncreaseAllowance returns how much capacity may still be added at now.
func (l Limiter) RemainingIncreaseAllowance(now time.Time) *big.Int {
	w := l.advance(now)

	remaining := new(big.Int).Sub(w.DailyLimit, w.Window.NetIncreased)
	if remaining.Sign() < 0 {
		return new(big.Int)
	}

	return remaining
}

// NetIncrease returns the capacity added in the window effective at now.
func (l Limiter) NetIncrease(now time.Time) *big.Int {
	return l.advance(now).Window.NetIncreased
}

// NetDecrease returns the capacity removed in the window effective at now.
func (l Limiter) NetDecrease(now time.Time) *big.Int {
	return l.advance(now).Window.NetDecreased
}

// TryConsumeIncrease returns the limiter with amount added to the window,
// or ErrExceedsDailyLimit when NetIncreased+amount > DailyLimit.
func (l Limiter) TryConsumeIncrease(now time.Time, amount *big.Int) (Limiter, error) {
	next := l.advance(now)

	total := new(big.Int).Add(next.Window.NetIncreased, amount)
	if total.Cmp(next.DailyLimit) > 0 {
		return l, fmt.Errorf("%w: requested %s, remaining %s", ErrExceedsDailyLimit, amount, new(big.Int).Sub(next.DailyLimit, next.Window.NetIncreased))
	}

	next.Window.NetIncreased = total

	return next, nil
}

// RecordDecrease returns the limiter with amount added to the decrease counter.
// It always succeeds.
func (l Limiter) RecordDecrease(now time.Time, amount *big.Int) Limiter {
	next := l.advance(now)
	next.Window.NetDecreased = new(big.Int).Add(next.Window.NetDecreased, amount)

	return next
}

// WithDailyLimit returns the limiter with a new limit and the current window kept.
func (l Limiter) WithDailyLimit(limit *big.Int) Limiter {
	next := l.Clone()
	next.DailyLimit = new(big.Int).Set(limit)

	return next
}

// freshWindow returns an empty window starting at now.
func freshWindow(now time.Time) Window {
	return Window{Start: now, NetIncreased: new(big.Int), NetDecreased: new(big.Int)}
}

// cloneInt copies v, mapping nil to zero.
func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}

	return new(big.Int).Set(v)
}
