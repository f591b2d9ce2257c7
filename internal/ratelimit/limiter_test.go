package ratelimit

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// TestBoundaryExact tests that consuming exactly the limit succeeds and one more fails.
func TestBoundaryExact(t *testing.T) {
	l := New(big.NewInt(1_000_000), t0)

	l, err := l.TryConsumeIncrease(t0, big.NewInt(400_000))
	if err != nil {
		t.Fatalf("first increase: %v", err)
	}

	over, err := l.TryConsumeIncrease(t0, big.NewInt(600_001))
	if !errors.Is(err, ErrExceedsDailyLimit) {
		t.Fatalf("limit+1: got %v, want ErrExceedsDailyLimit", err)
	}

	if over.Window.NetIncreased.Cmp(big.NewInt(400_000)) != 0 {
		t.Errorf("failed increase must not change state: got %s", over.Window.NetIncreased)
	}

	l, err = l.TryConsumeIncrease(t0, big.NewInt(600_000))
	if err != nil {
		t.Fatalf("exact limit: %v", err)
	}

	if got := l.RemainingIncreaseAllowance(t0); got.Sign() != 0 {
		t.Errorf("remaining: got %s, want 0", got)
	}
}

// TestWindowReset tests that a failed increase succeeds once 24h have elapsed.
func TestWindowReset(t *testing.T) {
	l := New(big.NewInt(100), t0)

	l, _ = l.TryConsumeIncrease(t0, big.NewInt(100))

	almost := t0.Add(WindowDuration - time.Second)
	if _, err := l.TryConsumeIncrease(almost, big.NewInt(1)); !errors.Is(err, ErrExceedsDailyLimit) {
		t.Fatalf("before reset: got %v, want ErrExceedsDailyLimit", err)
	}

	later := t0.Add(WindowDuration)
	next, err := l.TryConsumeIncrease(later, big.NewInt(60))
	if err != nil {
		t.Fatalf("after reset: %v", err)
	}

	if !next.Window.Start.Equal(later) {
		t.Errorf("window start: got %v, want %v", next.Window.Start, later)
	}

	if next.Window.NetIncreased.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("net increased: got %s, want 60", next.Window.NetIncreased)
	}
}

// TestDecreaseNeverBlocked tests that decreases apply with an exhausted allowance.
func TestDecreaseNeverBlocked(t *testing.T) {
	l := New(big.NewInt(10), t0)
	l, _ = l.TryConsumeIncrease(t0, big.NewInt(10))

	l = l.RecordDecrease(t0, big.NewInt(1_000_000_000))

	if l.Window.NetDecreased.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Errorf("net decreased: got %s", l.Window.NetDecreased)
	}

	if l.RemainingIncreaseAllowance(t0).Sign() != 0 {
		t.Error("decrease must not restore increase allowance")
	}
}

// TestDecreaseAdvancesWindow tests that a decrease after expiry starts a new window.
func TestDecreaseAdvancesWindow(t *testing.T) {
	l := New(big.NewInt(10), t0)
	l, _ = l.TryConsumeIncrease(t0, big.NewInt(10))

	later := t0.Add(WindowDuration + time.Hour)
	l = l.RecordDecrease(later, big.NewInt(3))

	if !l.Window.Start.Equal(later) || l.Window.NetIncreased.Sign() != 0 {
		t.Errorf("window not reset: start=%v increased=%s", l.Window.Start, l.Window.NetIncreased)
	}
}

// TestViewsDoNotMutate tests that read helpers leave the limiter untouched.
func TestViewsDoNotMutate(t *testing.T) {
	l := New(big.NewInt(50), t0)
	l, _ = l.TryConsumeIncrease(t0, big.NewInt(20))

	later := t0.Add(2 * WindowDuration)

	if got := l.RemainingIncreaseAllowance(later); got.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("remaining after expiry: got %s, want 50", got)
	}

	if got := l.NetIncrease(later); got.Sign() != 0 {
		t.Errorf("net increase after expiry: got %s, want 0", got)
	}

	if l.Window.NetIncreased.Cmp(big.NewInt(20)) != 0 || !l.Window.Start.Equal(t0) {
		t.Error("views must not mutate the stored window")
	}
}

// TestLoweredLimitSaturates tests that a limit below the consumed amount yields zero allowance.
func TestLoweredLimitSaturates(t *testing.T) {
	l := New(big.NewInt(100), t0)
	l, _ = l.TryConsumeIncrease(t0, big.NewInt(80))
	l = l.WithDailyLimit(big.NewInt(50))

	if got := l.RemainingIncreaseAllowance(t0); got.Sign() != 0 {
		t.Errorf("remaining: got %s, want 0", got)
	}
}
