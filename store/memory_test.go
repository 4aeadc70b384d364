package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lending-engine/engine"
	"github.com/warp/lending-engine/instrument"
	"github.com/warp/lending-engine/store"
)

func d(y int, m time.Month, day int) engine.Date { return engine.NewDate(y, m, day) }

func amt(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func newVehicle() *instrument.Vehicle {
	return instrument.NewVehicle("Tata Ace", "Ravi", amt(250000), amt(5000),
		engine.FrequencyMonthly, d(2024, time.January, 10))
}

func payment(id string, source engine.SourceType, sourceID string, day engine.Date, amount int64) engine.PaymentEntry {
	return engine.PaymentEntry{
		ID:         id,
		SourceType: source,
		SourceID:   sourceID,
		Direction:  engine.DirectionCredit,
		Amount:     amt(amount),
		Date:       day,
		Status:     engine.StatusPaid,
	}
}

// =============================================================================
// INSTRUMENT ROUND TRIPS
// =============================================================================

func TestMemory_SaveAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	v := newVehicle()
	require.NoError(t, s.SaveVehicle(ctx, v))

	got, err := s.Get(ctx, engine.SourceVehicle, v.ID())
	require.NoError(t, err)
	assert.Equal(t, v.ID(), got.ID())
	assert.True(t, got.PeriodicDue().Equal(amt(5000)))

	_, err = s.Get(ctx, engine.SourceVehicle, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemory_SaveRejectsInvalidRecord(t *testing.T) {
	s := store.NewMemory()
	v := newVehicle()
	v.Rent = decimal.Zero

	err := s.SaveVehicle(context.Background(), v)
	assert.ErrorIs(t, err, engine.ErrInvalidInstrument)
}

func TestMemory_ListFilters(t *testing.T) {
	// GIVEN: One open, one closed, one soft-deleted vehicle
	// WHEN: Listing with different filters
	// THEN: Closure filter and deletion visibility behave independently

	ctx := context.Background()
	s := store.NewMemory()

	open := newVehicle()
	closed := newVehicle()
	closed.Close(d(2024, time.June, 1))
	deleted := newVehicle()
	deleted.SoftDelete(d(2024, time.July, 1))

	require.NoError(t, s.SaveVehicle(ctx, open))
	require.NoError(t, s.SaveVehicle(ctx, closed))
	require.NoError(t, s.SaveVehicle(ctx, deleted))

	all, err := s.ListVehicles(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "soft-deleted excluded by default")

	withDeleted, err := s.ListVehicles(ctx, store.Filter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, withDeleted, 3)

	isClosed := true
	closedOnly, err := s.ListVehicles(ctx, store.Filter{Closed: &isClosed})
	require.NoError(t, err)
	require.Len(t, closedOnly, 1)
	assert.Equal(t, closed.ID(), closedOnly[0].ID())
}

func TestMemory_GetReturnsSoftDeletedRecords(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	v := newVehicle()
	require.NoError(t, s.SaveVehicle(ctx, v))
	require.NoError(t, s.SoftDelete(ctx, engine.SourceVehicle, v.ID(), d(2024, time.July, 1)))

	got, err := s.Get(ctx, engine.SourceVehicle, v.ID())
	require.NoError(t, err)
	assert.True(t, got.Deleted())
}

// =============================================================================
// CLOSE AND SOFT DELETE
// =============================================================================

func TestMemory_CloseInstrumentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	v := newVehicle()
	require.NoError(t, s.SaveVehicle(ctx, v))

	first, err := s.CloseInstrument(ctx, engine.SourceVehicle, v.ID(), d(2024, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, d(2024, time.June, 1), first)

	second, err := s.CloseInstrument(ctx, engine.SourceVehicle, v.ID(), d(2024, time.August, 15))
	require.NoError(t, err)
	assert.Equal(t, d(2024, time.June, 1), second, "retry reports the original date")

	_, err = s.CloseInstrument(ctx, engine.SourceVehicle, "missing", d(2024, time.June, 1))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemory_SoftDeleteOnlyForSupportedKinds(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	l := instrument.NewLoan("HDFC", instrument.LenderBank, amt(200000), amt(1),
		engine.FrequencyMonthly, d(2024, time.March, 5))
	require.NoError(t, s.SaveLoan(ctx, l))

	err := s.SoftDelete(ctx, engine.SourceLoan, l.ID(), d(2024, time.July, 1))
	assert.ErrorIs(t, err, store.ErrNoSoftDelete)
}

// =============================================================================
// PAYMENT LEDGER
// =============================================================================

func TestMemory_AppendPaymentValidations(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	v := newVehicle()
	require.NoError(t, s.SaveVehicle(ctx, v))

	p := payment("pay-1", engine.SourceVehicle, v.ID(), d(2024, time.February, 8), 5000)
	require.NoError(t, s.AppendPayment(ctx, p))

	// Reused id.
	assert.ErrorIs(t, s.AppendPayment(ctx, p), store.ErrDuplicateID)

	// Attached payment must reference an existing instrument.
	orphan := payment("pay-2", engine.SourceVehicle, "missing", d(2024, time.February, 8), 5000)
	assert.ErrorIs(t, s.AppendPayment(ctx, orphan), store.ErrNotFound)

	// Unattached entries need no instrument.
	other := payment("pay-3", engine.SourceOther, "", d(2024, time.February, 8), 250)
	assert.NoError(t, s.AppendPayment(ctx, other))

	// Row-level invariants still apply.
	bad := payment("pay-4", engine.SourceVehicle, v.ID(), d(2024, time.February, 8), -10)
	assert.ErrorIs(t, s.AppendPayment(ctx, bad), engine.ErrInvalidPayment)
}

func TestMemory_ListPaymentsChronological(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	v := newVehicle()
	require.NoError(t, s.SaveVehicle(ctx, v))

	// Inserted out of order on purpose.
	require.NoError(t, s.AppendPayment(ctx, payment("pay-2", engine.SourceVehicle, v.ID(), d(2024, time.March, 8), 5000)))
	require.NoError(t, s.AppendPayment(ctx, payment("pay-1", engine.SourceVehicle, v.ID(), d(2024, time.February, 8), 5000)))

	got, err := s.ListPayments(ctx, engine.SourceVehicle, v.ID())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "pay-1", got[0].ID)
	assert.Equal(t, "pay-2", got[1].ID)
}

func TestMemory_FeedsReconciliation(t *testing.T) {
	// Store snapshot in, ledger state out. The canonical one-payment case.
	ctx := context.Background()
	s := store.NewMemory()

	v := newVehicle()
	require.NoError(t, s.SaveVehicle(ctx, v))
	require.NoError(t, s.AppendPayment(ctx, payment("pay-1", engine.SourceVehicle, v.ID(), d(2024, time.February, 8), 5000)))

	inst, err := s.Get(ctx, engine.SourceVehicle, v.ID())
	require.NoError(t, err)
	payments, err := s.ListPayments(ctx, engine.SourceVehicle, v.ID())
	require.NoError(t, err)

	state, err := engine.Reconcile(inst, payments, d(2024, time.March, 1))
	require.NoError(t, err)
	require.Len(t, state.Periods, 2)
	assert.Equal(t, engine.StatusPaid, state.Periods[0].Status)
	assert.True(t, state.Rollup.OutstandingBalance.Equal(amt(5000)))
}
