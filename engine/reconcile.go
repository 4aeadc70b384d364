/*
reconcile.go - The reconciliation walk

PURPOSE:
  Matches recorded payments to due periods and classifies each period as
  PAID, PARTIAL, or PENDING. This is the core computation of the system:
  everything downstream (closure eligibility, dashboards, overdue sweeps)
  consumes its output.

ALGORITHM:
  Walk due periods chronologically. For each period, sum the credit
  payments dated inside [start, end], add any credit carried over from the
  previous period, and compare against the expected amount:

    effective == 0         -> PENDING
    effective <  expected  -> PARTIAL (shortfall = expected - effective)
    effective >= expected  -> PAID    (surplus carries forward)

  Overpayment is never refunded or truncated; it reduces the next period's
  required sum. Credits dated before the first period or after the last
  materialized one are reported as unapplied. Debits bypass period status
  entirely and only reduce the cumulative outstanding balance.

CONSERVATION:
  sum(per-period received) + sum(unapplied) == sum(all credit amounts).
  Every credit lands in exactly one bucket.

RATE CONTRACT:
  The expected amount per period comes from Instrument.PeriodicDue, which
  is defined to be already expressed per the stated frequency. The engine
  performs no frequency rescaling of rates.
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// Reconcile computes the full ledger state for one instrument as of a date.
//
// The computation is pure and bounded: no store access, no clock, no
// internal concurrency. The caller is responsible for reading instrument
// and payments inside one consistent snapshot. Calling twice with the same
// inputs yields the same output.
//
// Structural problems (malformed instrument, unknown frequency) abort with
// an error. Unapplied payments are a normal part of the result.
func Reconcile(inst Instrument, payments []PaymentEntry, asOf Date) (LedgerState, error) {
	if err := ValidateInstrument(inst); err != nil {
		return LedgerState{}, err
	}

	periods, err := ScheduleFor(inst, asOf)
	if err != nil {
		return LedgerState{}, err
	}

	ledger := Ledger(payments).Sorted()
	credits := ledger.Credits()
	debits := ledger.Debits()

	state := LedgerState{
		InstrumentID: inst.ID(),
		Source:       inst.Source(),
		AsOf:         asOf,
	}

	// Credits before the first period can only happen for payments predating
	// the start date; with no periods at all, every credit is unapplied.
	next := 0
	if len(periods) > 0 {
		for next < len(credits) && credits[next].Date.Before(periods[0].Start) {
			state.Unapplied = append(state.Unapplied, credits[next])
			next++
		}
	}

	carry := decimal.Zero
	cumulativeExpected := decimal.Zero
	cumulativeReceived := decimal.Zero
	overdueSince := Date{}

	for _, period := range periods {
		received := decimal.Zero
		for next < len(credits) && credits[next].Date.BeforeOrEqual(period.End) {
			received = received.Add(credits[next].Amount)
			next++
		}

		effective := received.Add(carry)
		ps := PeriodState{
			Period:    period,
			Expected:  period.Expected,
			Received:  received,
			Shortfall: decimal.Max(decimal.Zero, period.Expected.Sub(effective)),
		}

		switch {
		case effective.GreaterThanOrEqual(period.Expected):
			ps.Status = StatusPaid
			carry = effective.Sub(period.Expected)
		case effective.IsZero():
			ps.Status = StatusPending
			carry = decimal.Zero
		default:
			ps.Status = StatusPartial
			carry = decimal.Zero
		}

		if ps.Status != StatusPaid && overdueSince.IsZero() {
			overdueSince = period.End
		}

		cumulativeExpected = cumulativeExpected.Add(period.Expected)
		cumulativeReceived = cumulativeReceived.Add(received)
		state.Periods = append(state.Periods, ps)
	}

	// Whatever credits remain are dated past the last materialized period.
	for next < len(credits) {
		state.Unapplied = append(state.Unapplied, credits[next])
		next++
	}

	debitTotal := debits.Total()
	state.Rollup = Rollup{
		CumulativeExpected: cumulativeExpected,
		CumulativeReceived: cumulativeReceived,
		DebitTotal:         debitTotal,
		CarryForward:       carry,
		UnappliedTotal:     Ledger(state.Unapplied).Total(),
		OutstandingBalance: decimal.Max(decimal.Zero,
			cumulativeExpected.Sub(cumulativeReceived).Sub(debitTotal)),
	}
	if !overdueSince.IsZero() && overdueSince.Before(asOf) {
		state.Rollup.OverdueDays = overdueSince.DaysUntil(asOf)
	}

	return state, nil
}

// ValidateInstrument fails fast on contradictory instrument state.
// Malformed state is surfaced, never silently repaired.
func ValidateInstrument(inst Instrument) error {
	closed, closureDate := inst.Closed()

	switch {
	case !inst.Principal().IsPositive():
		return &InvalidInstrumentError{InstrumentID: inst.ID(), Reason: "principal must be positive"}
	case !inst.PeriodicDue().IsPositive():
		return &InvalidInstrumentError{InstrumentID: inst.ID(), Reason: "periodic due amount must be positive"}
	case inst.StartDate().IsZero():
		return &InvalidInstrumentError{InstrumentID: inst.ID(), Reason: "start date required"}
	case closed && closureDate.IsZero():
		return &InvalidInstrumentError{InstrumentID: inst.ID(), Reason: "closed without closure date"}
	case !closed && !closureDate.IsZero():
		return &InvalidInstrumentError{InstrumentID: inst.ID(), Reason: "closure date set on open instrument"}
	case closed && closureDate.Before(inst.StartDate()):
		return &InvalidInstrumentError{InstrumentID: inst.ID(), Reason: "closure date precedes start date"}
	}
	return nil
}
