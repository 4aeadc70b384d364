package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lending-engine/engine"
)

// =============================================================================
// STORED-VS-DERIVED STATUS CHECK
// =============================================================================

func TestCheckStatuses_AgreementProducesNoMismatches(t *testing.T) {
	payments := []engine.PaymentEntry{
		credit("pay-1", date(2024, time.February, 8), 5000), // stored PAID
	}
	state, err := engine.Reconcile(monthlyVehicle(), payments, date(2024, time.February, 20))
	require.NoError(t, err)

	assert.Empty(t, engine.CheckStatuses(state, payments))
}

func TestCheckStatuses_FlagsDisagreementWithDescription(t *testing.T) {
	// GIVEN: A payment stored as PAID inside a period the walk derives PARTIAL
	// WHEN: Checking statuses
	// THEN: The mismatch is flagged with both statuses and the operator note

	p := credit("pay-1", date(2024, time.January, 20), 3000)
	p.Description = "write-off agreed with lessee"
	payments := []engine.PaymentEntry{p}

	state, err := engine.Reconcile(monthlyVehicle(), payments, date(2024, time.February, 1))
	require.NoError(t, err)
	require.Equal(t, engine.StatusPartial, state.Periods[0].Status)

	mismatches := engine.CheckStatuses(state, payments)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "pay-1", mismatches[0].PaymentID)
	assert.Equal(t, engine.StatusPaid, mismatches[0].Stored)
	assert.Equal(t, engine.StatusPartial, mismatches[0].Derived)
	assert.Equal(t, date(2024, time.January, 10), mismatches[0].Period.Start)
	assert.Equal(t, "write-off agreed with lessee", mismatches[0].Description)
}

func TestCheckStatuses_SkipsDebits(t *testing.T) {
	payments := []engine.PaymentEntry{
		debit("deb-1", date(2024, time.January, 20), 3000),
	}
	state, err := engine.Reconcile(monthlyVehicle(), payments, date(2024, time.February, 1))
	require.NoError(t, err)

	assert.Empty(t, engine.CheckStatuses(state, payments))
}

func TestCheckStatuses_SkipsUnappliedPayments(t *testing.T) {
	// A credit before the first period has no containing period to compare.
	payments := []engine.PaymentEntry{
		credit("early", date(2024, time.January, 2), 5000),
	}
	state, err := engine.Reconcile(monthlyVehicle(), payments, date(2024, time.February, 1))
	require.NoError(t, err)
	require.Len(t, state.Unapplied, 1)

	assert.Empty(t, engine.CheckStatuses(state, payments))
}

func TestCheckStatuses_NeverMutatesState(t *testing.T) {
	p := credit("pay-1", date(2024, time.January, 20), 3000)
	payments := []engine.PaymentEntry{p}

	state, err := engine.Reconcile(monthlyVehicle(), payments, date(2024, time.February, 1))
	require.NoError(t, err)
	before := state.Periods[0].Status

	_ = engine.CheckStatuses(state, payments)
	assert.Equal(t, before, state.Periods[0].Status)
	assert.Equal(t, engine.StatusPaid, payments[0].Status, "stored status untouched")
}
