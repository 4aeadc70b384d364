/*
Package engine is the ledger reconciliation engine for lending instruments.

PURPOSE:
  Given an instrument (vehicle lease, outside-interest loan, or borrowed
  loan) and the payments recorded against it, derive its financial state:
  the due periods implied by its frequency and start date, what was
  expected and received per period, the cumulative rollup, and whether the
  instrument is eligible for closure.

KEY CONCEPTS IN THIS FILE (types.go):
  - Instrument: the common shape the three lending kinds expose
  - DuePeriod: one expected-payment window, derived, never persisted
  - PeriodState: expected vs received vs status for one period
  - Rollup: cumulative totals and outstanding balance
  - ClosureVerdict: machine-readable closable/not-closable decision

DESIGN PRINCIPLES:
  1. Pure computation: no store access, no clock reads, no locks.
     The as-of date is an explicit parameter everywhere.
  2. Precision: decimal.Decimal for every monetary value.
  3. Derived over stored: period status is computed from payments;
     a stored payment status is treated as an annotated override.
  4. Nothing dropped: payments that fit no period are reported as
     unapplied, never discarded.

SEE ALSO:
  - ledger.go: PaymentEntry and ledger ordering
  - schedule.go: due-period generation
  - reconcile.go: the reconciliation walk
  - closure.go: closure eligibility
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS - Mirror the persisted schema constraints
// =============================================================================

// Frequency is how often an instrument expects a payment.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyBimonthly Frequency = "bimonthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// MonthStep returns the number of calendar months per due period,
// or 0 for an unrecognized frequency.
func (f Frequency) MonthStep() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyBimonthly:
		return 2
	case FrequencyQuarterly:
		return 3
	default:
		return 0
	}
}

func (f Frequency) Valid() bool { return f.MonthStep() != 0 }

// Direction of a payment relative to the instrument's obligation.
type Direction string

const (
	DirectionCredit Direction = "credit" // money received toward the obligation
	DirectionDebit  Direction = "debit"  // money paid out by the business
)

func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// PaymentStatus classifies how fully a due period is settled.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "PAID"
	StatusPartial PaymentStatus = "PARTIAL"
	StatusPending PaymentStatus = "PENDING"
)

func (s PaymentStatus) Valid() bool {
	return s == StatusPaid || s == StatusPartial || s == StatusPending
}

// SourceType identifies which kind of record a payment belongs to.
type SourceType string

const (
	SourceVehicle         SourceType = "vehicle"
	SourceOutsideInterest SourceType = "outside_interest"
	SourceLoan            SourceType = "loan"
	SourceOther           SourceType = "other" // unattached record
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceVehicle, SourceOutsideInterest, SourceLoan, SourceOther:
		return true
	}
	return false
}

// =============================================================================
// INSTRUMENT - Common shape of the three lending kinds
// =============================================================================

// Instrument is what the engine needs to know about a lending record.
// The instrument package provides the concrete kinds (Vehicle,
// OutsideInterest, Loan); the engine has no knowledge of their extra fields.
//
// PeriodicDue is the amount expected per due period, already expressed per
// the stated frequency. A quarterly instrument's rate is a quarterly rate;
// the engine never rescales it. Callers that store monthly-equivalent rates
// must convert before implementing this interface.
type Instrument interface {
	// ID is the store-owned opaque identifier.
	ID() string

	// Source returns which payment source_type this instrument matches.
	Source() SourceType

	// Principal is the amount lent or borrowed. Always positive.
	Principal() decimal.Decimal

	// PeriodicDue is the expected amount per due period.
	// Flat rent for vehicles, principal * rate / 100 for interest-bearing kinds.
	PeriodicDue() decimal.Decimal

	// StartDate is when the instrument became active.
	StartDate() Date

	// PayFrequency is the due-period cadence.
	PayFrequency() Frequency

	// Closed reports whether the instrument is closed and, if so, when.
	Closed() (bool, Date)

	// Deleted reports whether the instrument is soft-deleted.
	Deleted() bool
}

// =============================================================================
// DUE PERIOD - One expected obligation window (derived, never persisted)
// =============================================================================

type DuePeriod struct {
	Start    Date            `json:"period_start"`
	End      Date            `json:"period_end"`
	Expected decimal.Decimal `json:"expected_amount"`
}

// Contains reports whether a date falls within [Start, End].
func (p DuePeriod) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

func (p DuePeriod) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// RECONCILIATION OUTPUT
// =============================================================================

// PeriodState is the reconciled state of one due period.
type PeriodState struct {
	Period    DuePeriod       `json:"period"`
	Expected  decimal.Decimal `json:"expected"`
	Received  decimal.Decimal `json:"received"` // credits dated inside the period
	Shortfall decimal.Decimal `json:"shortfall"`
	Status    PaymentStatus   `json:"status"`
}

// Rollup is the instrument-level cumulative summary across all due periods
// materialized up to the as-of date.
type Rollup struct {
	CumulativeExpected decimal.Decimal `json:"cumulative_expected"`
	CumulativeReceived decimal.Decimal `json:"cumulative_received"`

	// DebitTotal is money paid out against this instrument (e.g. a partial
	// principal return). Debits reduce the outstanding balance directly and
	// never participate in per-period status classification.
	DebitTotal decimal.Decimal `json:"debit_total"`

	// CarryForward is overpayment left after the last materialized period,
	// available to the next period. Never refunded or truncated.
	CarryForward decimal.Decimal `json:"carry_forward"`

	UnappliedTotal     decimal.Decimal `json:"unapplied_total"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"` // always >= 0

	// OverdueDays counts calendar days since the end of the earliest period
	// that is not fully settled. Zero when everything is paid up.
	OverdueDays int `json:"overdue_days"`
}

// LedgerState is the full reconciliation result for one instrument.
type LedgerState struct {
	InstrumentID string        `json:"instrument_id"`
	Source       SourceType    `json:"source_type"`
	AsOf         Date          `json:"as_of"`
	Periods      []PeriodState `json:"periods"`

	// Unapplied are credit payments dated before the first due period or
	// after the last materialized one. Reported, never silently dropped.
	Unapplied []PaymentEntry `json:"unapplied"`

	Rollup Rollup `json:"rollup"`
}

// =============================================================================
// CLOSURE VERDICT
// =============================================================================

// ClosureReason explains a negative closure verdict.
type ClosureReason string

const (
	ReasonAlreadyClosed ClosureReason = "already_closed"
	ReasonOutstanding   ClosureReason = "outstanding_balance"
	ReasonDeleted       ClosureReason = "deleted"
)

// ClosureVerdict is the engine's answer to "may this instrument close?".
// A negative verdict is a normal outcome, not an error. The engine only
// reports; it never flips the closed flag itself.
type ClosureVerdict struct {
	Closable bool          `json:"closable"`
	Reason   ClosureReason `json:"reason,omitempty"`

	// ClosureDate is the existing closure date when Reason is already_closed,
	// so a repeated close request can be answered idempotently.
	ClosureDate Date `json:"closure_date,omitempty"`

	// Outstanding is the remaining balance when Reason is outstanding_balance.
	Outstanding decimal.Decimal `json:"outstanding,omitempty"`
}

// =============================================================================
// STATUS CONSISTENCY
// =============================================================================

// StatusMismatch flags a stored payment status that disagrees with the
// engine-derived status of the period containing the payment. The stored
// value may be a deliberate operator override (e.g. an agreed write-off);
// the description is preserved so the override stays explainable.
type StatusMismatch struct {
	PaymentID   string        `json:"payment_id"`
	Stored      PaymentStatus `json:"stored"`
	Derived     PaymentStatus `json:"derived"`
	Period      DuePeriod     `json:"period"`
	Description string        `json:"description,omitempty"`
}
