/*
store.go - Persistence interface for instruments and payments

PURPOSE:
  Defines the boundary between the reconciliation engine's collaborators
  and the database. The engine itself never touches a store; the calling
  layer reads an instrument plus its payments in one consistent snapshot,
  reconciles, and writes back at most a closure transition.

CONTRACT:
  - Payments are append-only. Amendments are new entries, never edits.
  - Close is serialized per instrument and idempotent: a second close on an
    already-closed record is a no-op reporting the original closure date.
  - Soft delete applies to vehicles and outside-interest records only.
  - Reads of a soft-deleted record still succeed (closure verdicts need
    them); listings exclude them unless asked.

IMPLEMENTATIONS:
  - store/memory.go: in-memory, for tests and dev
  - store/sqlite:    production SQLite
*/
package store

import (
	"context"
	"errors"

	"github.com/warp/lending-engine/engine"
	"github.com/warp/lending-engine/instrument"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when no record matches the given source and id.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateID is returned when saving a record whose id already exists
	// under a different kind, or appending a payment with a reused id.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrNoSoftDelete is returned when soft delete is requested for a kind
	// that does not support it (loans, unattached payments).
	ErrNoSoftDelete = errors.New("kind does not support soft delete")
)

// =============================================================================
// STORE
// =============================================================================

// Filter narrows instrument listings.
type Filter struct {
	// Closed filters by closure state when non-nil.
	Closed *bool

	// IncludeDeleted includes soft-deleted records in listings.
	IncludeDeleted bool
}

// Store persists instruments and their payment ledgers.
type Store interface {
	// SaveVehicle inserts or updates a vehicle record.
	SaveVehicle(ctx context.Context, v *instrument.Vehicle) error
	SaveOutsideInterest(ctx context.Context, o *instrument.OutsideInterest) error
	SaveLoan(ctx context.Context, l *instrument.Loan) error

	// Get returns the instrument for a source type and id. Soft-deleted
	// records are returned; source_type "other" has no instruments.
	Get(ctx context.Context, source engine.SourceType, id string) (engine.Instrument, error)

	ListVehicles(ctx context.Context, f Filter) ([]*instrument.Vehicle, error)
	ListOutsideInterests(ctx context.Context, f Filter) ([]*instrument.OutsideInterest, error)
	ListLoans(ctx context.Context, f Filter) ([]*instrument.Loan, error)

	// CloseInstrument flips the record to closed as of the given date.
	// Idempotent: closing an already-closed record returns the original
	// closure date without error or modification.
	CloseInstrument(ctx context.Context, source engine.SourceType, id string, asOf engine.Date) (engine.Date, error)

	// SoftDelete marks a vehicle or outside-interest record deleted.
	SoftDelete(ctx context.Context, source engine.SourceType, id string, at engine.Date) error

	// AppendPayment adds a ledger entry. Entries are validated against the
	// row-level invariants before insert; an attached entry must reference
	// an existing instrument.
	AppendPayment(ctx context.Context, p engine.PaymentEntry) error

	// ListPayments returns the entries for one instrument, chronologically.
	ListPayments(ctx context.Context, source engine.SourceType, sourceID string) ([]engine.PaymentEntry, error)

	// AllPayments returns every entry, chronologically.
	AllPayments(ctx context.Context) ([]engine.PaymentEntry, error)
}
