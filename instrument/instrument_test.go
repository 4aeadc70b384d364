package instrument_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lending-engine/engine"
	"github.com/warp/lending-engine/instrument"
)

func d(y int, m time.Month, day int) engine.Date { return engine.NewDate(y, m, day) }

func amt(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// =============================================================================
// CONSTRUCTION AND DERIVED DUE
// =============================================================================

func TestNewVehicle_FlatRentIsThePeriodicDue(t *testing.T) {
	v := instrument.NewVehicle("Tata Ace", "Ravi", amt(250000), amt(5000),
		engine.FrequencyMonthly, d(2024, time.January, 10))

	require.NoError(t, v.Validate())
	assert.NotEmpty(t, v.ID())
	assert.Equal(t, engine.SourceVehicle, v.Source())
	assert.True(t, v.PeriodicDue().Equal(amt(5000)))
	assert.False(t, v.Deleted())
}

func TestNewOutsideInterest_DueIsPrincipalTimesRate(t *testing.T) {
	// 50000 at 2% per month -> 1000 per period. The rate is per stated
	// frequency; quarterly with the same figures still yields 1000.
	o := instrument.NewOutsideInterest("Suresh", "business", "Suresh", amt(50000),
		amt(2), engine.FrequencyMonthly, d(2024, time.January, 1))

	require.NoError(t, o.Validate())
	assert.True(t, o.PeriodicDue().Equal(amt(1000)))
	assert.True(t, o.LocalRate.Equal(amt(2)), "local rate mirrors the percent rate by default")

	q := instrument.NewOutsideInterest("Suresh", "business", "Suresh", amt(50000),
		amt(2), engine.FrequencyQuarterly, d(2024, time.January, 1))
	assert.True(t, q.PeriodicDue().Equal(amt(1000)))
}

func TestNewLoan_DueIsPrincipalTimesRate(t *testing.T) {
	l := instrument.NewLoan("HDFC", instrument.LenderBank, amt(200000), amt(1),
		engine.FrequencyMonthly, d(2024, time.March, 5))

	require.NoError(t, l.Validate())
	assert.Equal(t, engine.SourceLoan, l.Source())
	assert.True(t, l.PeriodicDue().Equal(amt(2000)))
}

func TestOutsideInterest_FractionalRate(t *testing.T) {
	o := instrument.NewOutsideInterest("Kumar", "personal", "Kumar", amt(50000),
		decimal.RequireFromString("1.5"), engine.FrequencyMonthly, d(2024, time.January, 1))

	assert.True(t, o.PeriodicDue().Equal(amt(750)))
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate_RejectsBadFields(t *testing.T) {
	start := d(2024, time.January, 10)

	tests := []struct {
		name string
		inst interface{ Validate() error }
	}{
		{"zero principal", instrument.NewVehicle("Ace", "Ravi", decimal.Zero, amt(5000), engine.FrequencyMonthly, start)},
		{"zero rent", instrument.NewVehicle("Ace", "Ravi", amt(100000), decimal.Zero, engine.FrequencyMonthly, start)},
		{"missing name", instrument.NewVehicle("", "Ravi", amt(100000), amt(5000), engine.FrequencyMonthly, start)},
		{"bad frequency", instrument.NewVehicle("Ace", "Ravi", amt(100000), amt(5000), engine.Frequency("weekly"), start)},
		{"zero rate", instrument.NewOutsideInterest("S", "c", "S", amt(50000), decimal.Zero, engine.FrequencyMonthly, start)},
		{"rate above 100", instrument.NewOutsideInterest("S", "c", "S", amt(50000), amt(101), engine.FrequencyMonthly, start)},
		{"missing to_whom", instrument.NewOutsideInterest("", "c", "S", amt(50000), amt(2), engine.FrequencyMonthly, start)},
		{"bad lender type", instrument.NewLoan("HDFC", instrument.LenderType("cooperative"), amt(100000), amt(1), engine.FrequencyMonthly, start)},
		{"missing lender name", instrument.NewLoan("", instrument.LenderBank, amt(100000), amt(1), engine.FrequencyMonthly, start)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.inst.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, engine.ErrInvalidInstrument)
		})
	}
}

func TestValidate_ClosureConsistency(t *testing.T) {
	v := instrument.NewVehicle("Ace", "Ravi", amt(100000), amt(5000),
		engine.FrequencyMonthly, d(2024, time.January, 10))

	v.IsClosed = true
	assert.Error(t, v.Validate(), "closed without closure date")

	v.ClosureDate = d(2023, time.December, 1)
	assert.Error(t, v.Validate(), "closure before start")

	v.ClosureDate = d(2024, time.June, 1)
	assert.NoError(t, v.Validate())
}

// =============================================================================
// CLOSE AND SOFT DELETE
// =============================================================================

func TestClose_IsIdempotent(t *testing.T) {
	// GIVEN: An open vehicle
	// WHEN: Closing twice with different dates
	// THEN: The second close changes nothing and reports the original date

	v := instrument.NewVehicle("Ace", "Ravi", amt(100000), amt(5000),
		engine.FrequencyMonthly, d(2024, time.January, 10))

	first, changed := v.Close(d(2024, time.June, 1))
	assert.True(t, changed)
	assert.Equal(t, d(2024, time.June, 1), first)

	second, changed := v.Close(d(2024, time.August, 15))
	assert.False(t, changed)
	assert.Equal(t, d(2024, time.June, 1), second, "original closure date wins")

	closed, at := v.Closed()
	assert.True(t, closed)
	assert.Equal(t, d(2024, time.June, 1), at)
}

func TestSoftDelete_MarksVehicleAndOutsideInterest(t *testing.T) {
	v := instrument.NewVehicle("Ace", "Ravi", amt(100000), amt(5000),
		engine.FrequencyMonthly, d(2024, time.January, 10))
	v.SoftDelete(d(2024, time.July, 1))
	assert.True(t, v.Deleted())
	require.NotNil(t, v.DeletedAt)
	assert.Equal(t, d(2024, time.July, 1), *v.DeletedAt)

	o := instrument.NewOutsideInterest("S", "c", "S", amt(50000), amt(2),
		engine.FrequencyMonthly, d(2024, time.January, 1))
	o.SoftDelete(d(2024, time.July, 1))
	assert.True(t, o.Deleted())
}

func TestInstruments_ReconcileThroughTheEngine(t *testing.T) {
	// The concrete kinds plug straight into the reconciliation walk.
	o := instrument.NewOutsideInterest("Suresh", "business", "Suresh", amt(50000),
		amt(2), engine.FrequencyMonthly, d(2024, time.January, 1))

	state, err := engine.Reconcile(o, []engine.PaymentEntry{{
		ID:         "pay-1",
		SourceType: engine.SourceOutsideInterest,
		SourceID:   o.ID(),
		Direction:  engine.DirectionCredit,
		Amount:     amt(600),
		Date:       d(2024, time.February, 1),
		Status:     engine.StatusPartial,
	}}, d(2024, time.February, 15))
	require.NoError(t, err)

	require.Len(t, state.Periods, 2)
	assert.Equal(t, engine.StatusPartial, state.Periods[1].Status)
	assert.True(t, state.Periods[1].Shortfall.Equal(amt(400)))
}
