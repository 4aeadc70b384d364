/*
errors.go - Error taxonomy for the reconciliation engine

CATEGORIES:
  1. Structural invariant violations: a malformed instrument or an
     unrecognized frequency. These abort the computation for that
     instrument and surface to the caller. They indicate a collaborator
     contract violation, never something to repair silently.
  2. Recoverable outcomes: unapplied payments and negative closure
     verdicts. These are part of the normal result (LedgerState.Unapplied,
     ClosureVerdict) and are deliberately NOT errors.

USAGE:
  if errors.Is(err, engine.ErrInvalidInstrument) { ... }
  var schedErr *engine.ScheduleError
  if errors.As(err, &schedErr) { ... }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInstrument is returned for malformed or contradictory
	// instrument state, e.g. is_closed without a closure date.
	ErrInvalidInstrument = errors.New("invalid instrument")

	// ErrUnknownFrequency is returned when an instrument carries a payment
	// frequency the schedule generator does not recognize. The schema-level
	// check should make this impossible.
	ErrUnknownFrequency = errors.New("unknown payment frequency")

	// ErrInvalidPayment is returned for a payment row violating the
	// schema-level invariants (non-positive amount, dangling source id).
	ErrInvalidPayment = errors.New("invalid payment")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInstrumentError reports which instrument is malformed and why.
type InvalidInstrumentError struct {
	InstrumentID string
	Reason       string
}

func (e *InvalidInstrumentError) Error() string {
	return fmt.Sprintf("invalid instrument %s: %s", e.InstrumentID, e.Reason)
}

func (e *InvalidInstrumentError) Unwrap() error { return ErrInvalidInstrument }

// ScheduleError reports an unrecognized frequency.
type ScheduleError struct {
	Frequency Frequency
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("cannot generate schedule: unknown frequency %q", e.Frequency)
}

func (e *ScheduleError) Unwrap() error { return ErrUnknownFrequency }

// InvalidPaymentError reports a payment row violating its invariants.
type InvalidPaymentError struct {
	PaymentID string
	Reason    string
}

func (e *InvalidPaymentError) Error() string {
	return fmt.Sprintf("invalid payment %s: %s", e.PaymentID, e.Reason)
}

func (e *InvalidPaymentError) Unwrap() error { return ErrInvalidPayment }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsContractViolation reports whether the error indicates a collaborator
// handed the engine data the persisted schema should have rejected.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrInvalidInstrument) ||
		errors.Is(err, ErrUnknownFrequency) ||
		errors.Is(err, ErrInvalidPayment)
}
