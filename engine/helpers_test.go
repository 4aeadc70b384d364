package engine_test

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lending-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// testInstrument is a minimal engine.Instrument with configurable fields.
type testInstrument struct {
	id          string
	source      engine.SourceType
	principal   decimal.Decimal
	due         decimal.Decimal
	start       engine.Date
	freq        engine.Frequency
	closed      bool
	closureDate engine.Date
	deleted     bool
}

func (t *testInstrument) ID() string                        { return t.id }
func (t *testInstrument) Source() engine.SourceType         { return t.source }
func (t *testInstrument) Principal() decimal.Decimal        { return t.principal }
func (t *testInstrument) PeriodicDue() decimal.Decimal      { return t.due }
func (t *testInstrument) StartDate() engine.Date            { return t.start }
func (t *testInstrument) PayFrequency() engine.Frequency    { return t.freq }
func (t *testInstrument) Closed() (bool, engine.Date)       { return t.closed, t.closureDate }
func (t *testInstrument) Deleted() bool                     { return t.deleted }

func date(y int, m time.Month, d int) engine.Date {
	return engine.NewDate(y, m, d)
}

func amt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// monthlyVehicle matches the canonical scenario: rent 5000 per month,
// lending started 2024-01-10.
func monthlyVehicle() *testInstrument {
	return &testInstrument{
		id:        "veh-1",
		source:    engine.SourceVehicle,
		principal: amt(100000),
		due:       amt(5000),
		start:     date(2024, time.January, 10),
		freq:      engine.FrequencyMonthly,
	}
}

func credit(id string, d engine.Date, amount int64) engine.PaymentEntry {
	return engine.PaymentEntry{
		ID:         id,
		SourceType: engine.SourceVehicle,
		SourceID:   "veh-1",
		Direction:  engine.DirectionCredit,
		Amount:     amt(amount),
		Date:       d,
		Status:     engine.StatusPaid,
	}
}

func debit(id string, d engine.Date, amount int64) engine.PaymentEntry {
	p := credit(id, d, amount)
	p.Direction = engine.DirectionDebit
	return p
}
