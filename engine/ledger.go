/*
ledger.go - The payment ledger

PURPOSE:
  A PaymentEntry records one credit or debit against an instrument. The
  ledger is the ordered set of entries for a single instrument; the
  reconciliation walk consumes it chronologically.

INVARIANTS:
  - Amounts are strictly positive; direction carries the sign.
  - An entry belongs to exactly one instrument via source type + source id.
    A missing source id is only legal for source_type "other".
  - Entries are never edited in place. Amendments are new entries.
  - A stored status is an annotation, possibly an operator override; the
    engine derives the authoritative status per period (see status.go).

SEE ALSO:
  - reconcile.go: consumes the ledger
  - status.go: stored-vs-derived status check
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT ENTRY
// =============================================================================

type PaymentEntry struct {
	ID         string          `json:"id"`
	SourceType SourceType      `json:"source_type"`
	SourceID   string          `json:"source_id,omitempty"`
	Direction  Direction       `json:"payment_type"`
	Amount     decimal.Decimal `json:"amount"`
	Date       Date            `json:"payment_date"`
	Status     PaymentStatus   `json:"payment_status"`

	// Description explains the payment, and in particular any operator
	// override of the derived status.
	Description string `json:"description,omitempty"`
}

// Validate checks the row-level invariants the persisted schema also
// enforces. Zero-amount payments are rejected here, upstream of the engine.
func (p PaymentEntry) Validate() error {
	switch {
	case !p.SourceType.Valid():
		return &InvalidPaymentError{PaymentID: p.ID, Reason: "unknown source_type " + string(p.SourceType)}
	case p.SourceID == "" && p.SourceType != SourceOther:
		return &InvalidPaymentError{PaymentID: p.ID, Reason: "source_id required for source_type " + string(p.SourceType)}
	case !p.Direction.Valid():
		return &InvalidPaymentError{PaymentID: p.ID, Reason: "unknown payment_type " + string(p.Direction)}
	case !p.Amount.IsPositive():
		return &InvalidPaymentError{PaymentID: p.ID, Reason: "amount must be positive"}
	case !p.Status.Valid():
		return &InvalidPaymentError{PaymentID: p.ID, Reason: "unknown payment_status " + string(p.Status)}
	case p.Date.IsZero():
		return &InvalidPaymentError{PaymentID: p.ID, Reason: "payment_date required"}
	}
	return nil
}

// =============================================================================
// LEDGER - Ordered entries for one instrument
// =============================================================================

type Ledger []PaymentEntry

// Sorted returns a chronologically ordered copy. Entries on the same day
// keep their original relative order, so reconciliation is stable.
func (l Ledger) Sorted() Ledger {
	out := make(Ledger, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Credits returns the credit-direction entries in order.
func (l Ledger) Credits() Ledger {
	var out Ledger
	for _, p := range l {
		if p.Direction == DirectionCredit {
			out = append(out, p)
		}
	}
	return out
}

// Debits returns the debit-direction entries in order.
func (l Ledger) Debits() Ledger {
	var out Ledger
	for _, p := range l {
		if p.Direction == DirectionDebit {
			out = append(out, p)
		}
	}
	return out
}

// Total sums the amounts of all entries.
func (l Ledger) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range l {
		sum = sum.Add(p.Amount)
	}
	return sum
}
