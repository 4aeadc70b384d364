/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All monetary fields are shopspring decimals, serialized as quoted
  strings. Clients must never send floats for amounts.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: LedgerState, Rollup, ClosureVerdict
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lending-engine/engine"
	"github.com/warp/lending-engine/instrument"
)

// =============================================================================
// INSTRUMENT TYPES
// =============================================================================

// CreateVehicleRequest is the request to register a leased-out vehicle.
type CreateVehicleRequest struct {
	VehicleName      string          `json:"vehicle_name"`
	LendTo           string          `json:"lend_to"`
	PrincipleAmount  decimal.Decimal `json:"principle_amount"`
	Rent             decimal.Decimal `json:"rent"`
	PaymentFrequency string          `json:"payment_frequency"`
	DateOfLending    string          `json:"date_of_lending"`
}

// CreateOutsideInterestRequest is the request to register money lent at interest.
type CreateOutsideInterestRequest struct {
	ToWhom           string          `json:"to_whom"`
	Category         string          `json:"category"`
	LendTo           string          `json:"lend_to"`
	PrincipleAmount  decimal.Decimal `json:"principle_amount"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	LocalRate        decimal.Decimal `json:"local_rate"`
	PaymentFrequency string          `json:"payment_frequency"`
	DateOfLending    string          `json:"date_of_lending"`
}

// CreateLoanRequest is the request to register a borrowed loan.
type CreateLoanRequest struct {
	LenderName       string          `json:"lender_name"`
	LenderType       string          `json:"lender_type"`
	PrincipleAmount  decimal.Decimal `json:"principle_amount"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	PaymentFrequency string          `json:"payment_frequency"`
	DateOfBorrowing  string          `json:"date_of_borrowing"`
}

// InstrumentDTO is the common response shape for all three kinds. Kind-specific
// fields are present only when set.
type InstrumentDTO struct {
	ID               string          `json:"id"`
	SourceType       string          `json:"source_type"`
	PrincipleAmount  decimal.Decimal `json:"principle_amount"`
	PeriodicDue      decimal.Decimal `json:"periodic_due"`
	PaymentFrequency string          `json:"payment_frequency"`
	StartDate        string          `json:"start_date"`
	IsClosed         bool            `json:"is_closed"`
	ClosureDate      string          `json:"closure_date,omitempty"`
	Deleted          bool            `json:"deleted,omitempty"`
	CreatedAt        string          `json:"created_at,omitempty"`

	VehicleName  string           `json:"vehicle_name,omitempty"`
	LendTo       string           `json:"lend_to,omitempty"`
	Rent         *decimal.Decimal `json:"rent,omitempty"`
	ToWhom       string           `json:"to_whom,omitempty"`
	Category     string           `json:"category,omitempty"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
	LocalRate    *decimal.Decimal `json:"local_rate,omitempty"`
	LenderName   string           `json:"lender_name,omitempty"`
	LenderType   string           `json:"lender_type,omitempty"`
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// CreatePaymentRequest appends one ledger entry. The id is generated when
// omitted; supplying one makes the append idempotent under retry.
type CreatePaymentRequest struct {
	ID            string          `json:"id,omitempty"`
	SourceType    string          `json:"source_type"`
	SourceID      string          `json:"source_id,omitempty"`
	PaymentType   string          `json:"payment_type"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   string          `json:"payment_date"`
	PaymentStatus string          `json:"payment_status"`
	Description   string          `json:"description,omitempty"`
}

// =============================================================================
// LEDGER TYPES
// =============================================================================

// PeriodStateDTO is one due period with its derived status.
type PeriodStateDTO struct {
	Start     string          `json:"start"`
	End       string          `json:"end"`
	Expected  decimal.Decimal `json:"expected"`
	Received  decimal.Decimal `json:"received"`
	Shortfall decimal.Decimal `json:"shortfall"`
	Status    string          `json:"status"`
}

// RollupDTO is the cumulative view across all materialized periods.
type RollupDTO struct {
	CumulativeExpected decimal.Decimal `json:"cumulative_expected"`
	CumulativeReceived decimal.Decimal `json:"cumulative_received"`
	DebitTotal         decimal.Decimal `json:"debit_total"`
	CarryForward       decimal.Decimal `json:"carry_forward"`
	UnappliedTotal     decimal.Decimal `json:"unapplied_total"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	OverdueDays        int             `json:"overdue_days"`
}

// LedgerStateDTO is the reconciled view of one instrument.
type LedgerStateDTO struct {
	InstrumentID string               `json:"instrument_id"`
	SourceType   string               `json:"source_type"`
	AsOf         string               `json:"as_of"`
	Periods      []PeriodStateDTO     `json:"periods"`
	Unapplied    []engine.PaymentEntry `json:"unapplied,omitempty"`
	Rollup       RollupDTO            `json:"rollup"`
}

// ClosureVerdictDTO reports whether an instrument may be closed.
type ClosureVerdictDTO struct {
	Closable    bool             `json:"closable"`
	Reason      string           `json:"reason,omitempty"`
	ClosureDate string           `json:"closure_date,omitempty"`
	Outstanding *decimal.Decimal `json:"outstanding,omitempty"`
}

// StatusMismatchDTO flags a stored payment status disagreeing with the
// derived period status.
type StatusMismatchDTO struct {
	PaymentID   string `json:"payment_id"`
	Stored      string `json:"stored"`
	Derived     string `json:"derived"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Description string `json:"description,omitempty"`
}

// DashboardDTO aggregates outstanding positions across all open instruments.
type DashboardDTO struct {
	AsOf             string          `json:"as_of"`
	OpenInstruments  int             `json:"open_instruments"`
	OverdueCount     int             `json:"overdue_count"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	TotalUnapplied   decimal.Decimal `json:"total_unapplied"`

	// ReceivedThisMonth sums credit entries dated in the as-of calendar month,
	// across all instruments including closed ones.
	ReceivedThisMonth decimal.Decimal `json:"received_this_month"`

	Items []DashboardItem `json:"items"`
}

// DashboardItem is one instrument's position in the dashboard.
type DashboardItem struct {
	InstrumentID string          `json:"instrument_id"`
	SourceType   string          `json:"source_type"`
	Label        string          `json:"label"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	OverdueDays  int             `json:"overdue_days"`
}

// =============================================================================
// AUTH TYPES
// =============================================================================

type LoginRequest struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toVehicleDTO(v *instrument.Vehicle) InstrumentDTO {
	dto := baseDTO(&v.Record, engine.SourceVehicle, v.PeriodicDue(), v.Deleted())
	dto.VehicleName = v.Name
	dto.LendTo = v.LendTo
	rent := v.Rent
	dto.Rent = &rent
	return dto
}

func toOutsideInterestDTO(o *instrument.OutsideInterest) InstrumentDTO {
	dto := baseDTO(&o.Record, engine.SourceOutsideInterest, o.PeriodicDue(), o.Deleted())
	dto.ToWhom = o.ToWhom
	dto.Category = o.Category
	dto.LendTo = o.LendTo
	rate, local := o.InterestRate, o.LocalRate
	dto.InterestRate = &rate
	dto.LocalRate = &local
	return dto
}

func toLoanDTO(l *instrument.Loan) InstrumentDTO {
	dto := baseDTO(&l.Record, engine.SourceLoan, l.PeriodicDue(), false)
	dto.LenderName = l.LenderName
	dto.LenderType = string(l.LenderType)
	rate := l.InterestRate
	dto.InterestRate = &rate
	return dto
}

func baseDTO(r *instrument.Record, source engine.SourceType, due decimal.Decimal, deleted bool) InstrumentDTO {
	dto := InstrumentDTO{
		ID:               r.RecordID,
		SourceType:       string(source),
		PrincipleAmount:  r.Amount,
		PeriodicDue:      due,
		PaymentFrequency: string(r.Frequency),
		StartDate:        r.Start.String(),
		IsClosed:         r.IsClosed,
		Deleted:          deleted,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}
	if !r.ClosureDate.IsZero() {
		dto.ClosureDate = r.ClosureDate.String()
	}
	return dto
}

func toLedgerStateDTO(state engine.LedgerState) LedgerStateDTO {
	dto := LedgerStateDTO{
		InstrumentID: state.InstrumentID,
		SourceType:   string(state.Source),
		AsOf:         state.AsOf.String(),
		Unapplied:    state.Unapplied,
		Periods:      make([]PeriodStateDTO, len(state.Periods)),
		Rollup: RollupDTO{
			CumulativeExpected: state.Rollup.CumulativeExpected,
			CumulativeReceived: state.Rollup.CumulativeReceived,
			DebitTotal:         state.Rollup.DebitTotal,
			CarryForward:       state.Rollup.CarryForward,
			UnappliedTotal:     state.Rollup.UnappliedTotal,
			OutstandingBalance: state.Rollup.OutstandingBalance,
			OverdueDays:        state.Rollup.OverdueDays,
		},
	}
	for i, ps := range state.Periods {
		dto.Periods[i] = PeriodStateDTO{
			Start:     ps.Period.Start.String(),
			End:       ps.Period.End.String(),
			Expected:  ps.Expected,
			Received:  ps.Received,
			Shortfall: ps.Shortfall,
			Status:    string(ps.Status),
		}
	}
	return dto
}

func toClosureVerdictDTO(v engine.ClosureVerdict) ClosureVerdictDTO {
	dto := ClosureVerdictDTO{
		Closable: v.Closable,
		Reason:   string(v.Reason),
	}
	if !v.ClosureDate.IsZero() {
		dto.ClosureDate = v.ClosureDate.String()
	}
	if v.Outstanding.IsPositive() {
		outstanding := v.Outstanding
		dto.Outstanding = &outstanding
	}
	return dto
}

func toStatusMismatchDTOs(mismatches []engine.StatusMismatch) []StatusMismatchDTO {
	dtos := make([]StatusMismatchDTO, len(mismatches))
	for i, m := range mismatches {
		dtos[i] = StatusMismatchDTO{
			PaymentID:   m.PaymentID,
			Stored:      string(m.Stored),
			Derived:     string(m.Derived),
			PeriodStart: m.Period.Start.String(),
			PeriodEnd:   m.Period.End.String(),
			Description: m.Description,
		}
	}
	return dtos
}
