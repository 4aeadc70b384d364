/*
Package instrument defines the three lending kinds the engine reconciles.

A Vehicle is leased out for a flat rent per period. An OutsideInterest is
money lent at interest. A Loan is money borrowed. All three share the same
shape (principal, frequency, start date, closure state) and differ only in
how the per-period expected amount is derived, so each implements
engine.Instrument rather than duplicating the reconciliation logic.

Instruments are mutated only by closure and soft delete. Changed terms mean
closing the record and opening a new one; amendments to money flow are new
payment entries, never edits.
*/
package instrument

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/lending-engine/engine"
)

// LenderType categorizes who a loan was borrowed from.
type LenderType string

const (
	LenderBank     LenderType = "bank"
	LenderPersonal LenderType = "personal"
	LenderOther    LenderType = "other"
)

func (lt LenderType) Valid() bool {
	return lt == LenderBank || lt == LenderPersonal || lt == LenderOther
}

// =============================================================================
// RECORD - Fields common to all three kinds
// =============================================================================

type Record struct {
	RecordID    string           `json:"id"`
	Amount      decimal.Decimal  `json:"principle_amount"`
	Frequency   engine.Frequency `json:"payment_frequency"`
	Start       engine.Date      `json:"start_date"`
	IsClosed    bool             `json:"is_closed"`
	ClosureDate engine.Date      `json:"closure_date,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

func newRecord(principal decimal.Decimal, freq engine.Frequency, start engine.Date) Record {
	return Record{
		RecordID:  uuid.NewString(),
		Amount:    principal,
		Frequency: freq,
		Start:     start,
		CreatedAt: time.Now().UTC(),
	}
}

func (r *Record) ID() string                     { return r.RecordID }
func (r *Record) Principal() decimal.Decimal     { return r.Amount }
func (r *Record) StartDate() engine.Date         { return r.Start }
func (r *Record) PayFrequency() engine.Frequency { return r.Frequency }
func (r *Record) Closed() (bool, engine.Date)    { return r.IsClosed, r.ClosureDate }
func (r *Record) Deleted() bool                  { return false }

// Close marks the record closed as of the given date. Closing an already
// closed record is a no-op that reports the original closure date, so the
// operation stays idempotent under retry.
func (r *Record) Close(asOf engine.Date) (closureDate engine.Date, changed bool) {
	if r.IsClosed {
		return r.ClosureDate, false
	}
	r.IsClosed = true
	r.ClosureDate = asOf
	return asOf, true
}

func (r *Record) validate() error {
	switch {
	case !r.Amount.IsPositive():
		return &engine.InvalidInstrumentError{InstrumentID: r.RecordID, Reason: "principal must be positive"}
	case !r.Frequency.Valid():
		return &engine.InvalidInstrumentError{InstrumentID: r.RecordID, Reason: "unknown payment frequency " + string(r.Frequency)}
	case r.Start.IsZero():
		return &engine.InvalidInstrumentError{InstrumentID: r.RecordID, Reason: "start date required"}
	case r.IsClosed && r.ClosureDate.IsZero():
		return &engine.InvalidInstrumentError{InstrumentID: r.RecordID, Reason: "closed without closure date"}
	case !r.IsClosed && !r.ClosureDate.IsZero():
		return &engine.InvalidInstrumentError{InstrumentID: r.RecordID, Reason: "closure date set on open instrument"}
	case r.IsClosed && r.ClosureDate.Before(r.Start):
		return &engine.InvalidInstrumentError{InstrumentID: r.RecordID, Reason: "closure date precedes start date"}
	}
	return nil
}

func validateRate(id string, rate decimal.Decimal) error {
	if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return &engine.InvalidInstrumentError{InstrumentID: id, Reason: "interest rate must be in (0, 100]"}
	}
	return nil
}

// =============================================================================
// VEHICLE - Leased out for a flat rent per period
// =============================================================================

type Vehicle struct {
	Record
	Name      string          `json:"vehicle_name"`
	LendTo    string          `json:"lend_to"`
	Rent      decimal.Decimal `json:"rent"`
	DeletedAt *engine.Date    `json:"deleted_at,omitempty"`
}

func NewVehicle(name, lendTo string, principal, rent decimal.Decimal, freq engine.Frequency, start engine.Date) *Vehicle {
	return &Vehicle{
		Record: newRecord(principal, freq, start),
		Name:   name,
		LendTo: lendTo,
		Rent:   rent,
	}
}

func (v *Vehicle) Source() engine.SourceType      { return engine.SourceVehicle }
func (v *Vehicle) PeriodicDue() decimal.Decimal   { return v.Rent }
func (v *Vehicle) Deleted() bool                  { return v.DeletedAt != nil }
func (v *Vehicle) SoftDelete(at engine.Date)      { v.DeletedAt = &at }

func (v *Vehicle) Validate() error {
	if err := v.Record.validate(); err != nil {
		return err
	}
	if !v.Rent.IsPositive() {
		return &engine.InvalidInstrumentError{InstrumentID: v.RecordID, Reason: "rent must be positive"}
	}
	if v.Name == "" {
		return &engine.InvalidInstrumentError{InstrumentID: v.RecordID, Reason: "vehicle name required"}
	}
	return nil
}

// =============================================================================
// OUTSIDE INTEREST - Money lent at interest
// =============================================================================

// OutsideInterest carries two parallel rates: InterestRate is the
// percentage per stated frequency and drives the expected amount;
// LocalRate is the same figure quoted in the local per-100 convention,
// kept for display and bookkeeping only.
type OutsideInterest struct {
	Record
	ToWhom       string          `json:"to_whom"`
	Category     string          `json:"category"`
	LendTo       string          `json:"lend_to"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	LocalRate    decimal.Decimal `json:"local_rate,omitempty"`
	DeletedAt    *engine.Date    `json:"deleted_at,omitempty"`
}

func NewOutsideInterest(toWhom, category, lendTo string, principal, rate decimal.Decimal, freq engine.Frequency, start engine.Date) *OutsideInterest {
	return &OutsideInterest{
		Record:       newRecord(principal, freq, start),
		ToWhom:       toWhom,
		Category:     category,
		LendTo:       lendTo,
		InterestRate: rate,
		LocalRate:    rate,
	}
}

func (o *OutsideInterest) Source() engine.SourceType { return engine.SourceOutsideInterest }

// PeriodicDue is principal * rate / 100. The rate is already expressed per
// the stated frequency, so no rescaling happens here.
func (o *OutsideInterest) PeriodicDue() decimal.Decimal {
	return o.Amount.Mul(o.InterestRate).Div(decimal.NewFromInt(100))
}

func (o *OutsideInterest) Deleted() bool             { return o.DeletedAt != nil }
func (o *OutsideInterest) SoftDelete(at engine.Date) { o.DeletedAt = &at }

func (o *OutsideInterest) Validate() error {
	if err := o.Record.validate(); err != nil {
		return err
	}
	if err := validateRate(o.RecordID, o.InterestRate); err != nil {
		return err
	}
	if o.ToWhom == "" {
		return &engine.InvalidInstrumentError{InstrumentID: o.RecordID, Reason: "to_whom required"}
	}
	return nil
}

// =============================================================================
// LOAN - Money borrowed
// =============================================================================

// Loan has no soft delete; borrowed records are only ever closed.
type Loan struct {
	Record
	LenderName   string          `json:"lender_name"`
	LenderType   LenderType      `json:"lender_type"`
	InterestRate decimal.Decimal `json:"interest_rate"`
}

func NewLoan(lenderName string, lenderType LenderType, principal, rate decimal.Decimal, freq engine.Frequency, start engine.Date) *Loan {
	return &Loan{
		Record:       newRecord(principal, freq, start),
		LenderName:   lenderName,
		LenderType:   lenderType,
		InterestRate: rate,
	}
}

func (l *Loan) Source() engine.SourceType { return engine.SourceLoan }

func (l *Loan) PeriodicDue() decimal.Decimal {
	return l.Amount.Mul(l.InterestRate).Div(decimal.NewFromInt(100))
}

func (l *Loan) Validate() error {
	if err := l.Record.validate(); err != nil {
		return err
	}
	if err := validateRate(l.RecordID, l.InterestRate); err != nil {
		return err
	}
	if !l.LenderType.Valid() {
		return &engine.InvalidInstrumentError{InstrumentID: l.RecordID, Reason: "unknown lender type " + string(l.LenderType)}
	}
	if l.LenderName == "" {
		return &engine.InvalidInstrumentError{InstrumentID: l.RecordID, Reason: "lender name required"}
	}
	return nil
}

// interface conformance
var (
	_ engine.Instrument = (*Vehicle)(nil)
	_ engine.Instrument = (*OutsideInterest)(nil)
	_ engine.Instrument = (*Loan)(nil)
)
