package capacity

import (
	"errors"
	"fmt"
)

// Class groups errors by how a caller can recover from them.
// A Class is itself an error so errors.Is(err, ClassReplay) works.
type Class int

const (
	ClassNone Class = iota
	ClassValidation
	ClassAuthorization
	ClassReplay
	ClassRateLimit
	ClassLifecycle
	ClassInternal
)

// Error returns the class name.
func (c Class) Error() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassAuthorization:
		return "authorization"
	case ClassReplay:
		return "replay"
	case ClassRateLimit:
		return "rate limit"
	case ClassLifecycle:
		return "lifecycle"
	case ClassInternal:
		return "internal"
	default:
		return "none"
	}
}

// String returns the class name.
func (c Class) String() string {
	return c.Error()
}

var (
	// ErrUnauthorized is returned when the caller lacks the required role.
	ErrUnauthorized = errors.New("caller lacks required role")

	// ErrAdminRequired is returned when a guardian reduces capacity below outstanding supply.
	ErrAdminRequired = errors.New("reducing below outstanding supply requires admin")

	// ErrEmptyReason is returned by EmergencyReduceCap without a reason.
	ErrEmptyReason = errors.New("reason must not be empty")

	// ErrNotReduction is returned by EmergencyReduceCap when the new cap is not lower.
	ErrNotReduction = errors.New("new capacity must be below current capacity")

	// ErrInvalidAmount is returned for negative or over-wide amounts.
	ErrInvalidAmount = errors.New("amount out of range")

	// ErrInvalidRatio is returned for a collateral ratio under 100%.
	ErrInvalidRatio = errors.New("collateral ratio below 10000 bps")

	// ErrInvalidThreshold is returned for a zero signature threshold.
	ErrInvalidThreshold = errors.New("threshold must be at least 1")

	// ErrLastAdmin is returned when revoking the only admin.
	ErrLastAdmin = errors.New("cannot revoke the last admin")

	// ErrAlreadyBootstrapped is returned by Bootstrap once an admin exists.
	ErrAlreadyBootstrapped = errors.New("roles already bootstrapped")

	// ErrNilAttestation is returned by ProcessAttestation without an attestation.
	ErrNilAttestation = errors.New("attestation is nil")

	// ErrStaleAttestation is returned for an attestation not newer than the last accepted one.
	ErrStaleAttestation = errors.New("attestation not newer than last accepted")

	// ErrExpiredAttestation is returned for an attestation older than the maximum age.
	ErrExpiredAttestation = errors.New("attestation too old")

	// ErrFutureAttestation is returned for an attestation timestamped past the allowed clock skew.
	ErrFutureAttestation = errors.New("attestation timestamp in the future")

	// ErrCorruptState is returned when persisted controller state fails to decode.
	ErrCorruptState = errors.New("corrupt controller state")
)

// Error is a classified controller error.
type Error struct {
	Class Class  // Class is the recovery class
	Op    string // Op is the controller operation that failed
	Err   error  // Err is the underlying cause
}

// Error formats as "op: class: cause".
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Class, e.Err)
}

// Unwrap exposes both the class and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	return []error{e.Class, e.Err}
}

// ClassOf returns the class of err. Unclassified errors are internal.
func ClassOf(err error) Class {
	if err == nil {
		return ClassNone
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}

	return ClassInternal
}

// fail builds a classified error.
func fail(class Class, op string, err error) error {
	return &Error{Class: class, Op: op, Err: err}
}
