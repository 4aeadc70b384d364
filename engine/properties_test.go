package engine_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lending-engine/engine"
)

// =============================================================================
// LEDGER INVARIANTS
//
// Randomized payment histories (fixed seed, reproducible) checked against
// the properties the reconciliation walk guarantees regardless of input.
// =============================================================================

func randomPayments(r *rand.Rand, n int) []engine.PaymentEntry {
	payments := make([]engine.PaymentEntry, 0, n)
	for i := 0; i < n; i++ {
		p := credit(
			fmt.Sprintf("pay-%d", i),
			date(2024, time.January, 1).AddDays(r.Intn(400)),
			int64(1+r.Intn(12000)),
		)
		if r.Intn(5) == 0 {
			p.Direction = engine.DirectionDebit
		}
		payments = append(payments, p)
	}
	return payments
}

func TestReconcile_EveryCreditLandsInExactlyOneBucket(t *testing.T) {
	// sum(per-period received) + sum(unapplied) == sum(all credits)
	r := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		payments := randomPayments(r, 1+r.Intn(15))
		asOf := date(2024, time.January, 1).AddDays(r.Intn(450))

		state, err := engine.Reconcile(monthlyVehicle(), payments, asOf)
		require.NoError(t, err)

		applied := decimal.Zero
		for _, ps := range state.Periods {
			applied = applied.Add(ps.Received)
		}
		total := engine.Ledger(payments).Credits().Total()

		assert.True(t, applied.Add(state.Rollup.UnappliedTotal).Equal(total),
			"run %d: applied %s + unapplied %s != credits %s",
			run, applied, state.Rollup.UnappliedTotal, total)
	}
}

func TestReconcile_OutstandingNeverNegative(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		payments := randomPayments(r, r.Intn(20))
		asOf := date(2024, time.January, 1).AddDays(r.Intn(450))

		state, err := engine.Reconcile(monthlyVehicle(), payments, asOf)
		require.NoError(t, err)

		assert.False(t, state.Rollup.OutstandingBalance.IsNegative(),
			"run %d: outstanding %s", run, state.Rollup.OutstandingBalance)
		for _, ps := range state.Periods {
			assert.False(t, ps.Shortfall.IsNegative())
		}
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	// Same snapshot in, same state out. Order of the input slice must not
	// matter either since the walk sorts by date.
	r := rand.New(rand.NewSource(99))
	payments := randomPayments(r, 12)
	asOf := date(2024, time.September, 1)

	first, err := engine.Reconcile(monthlyVehicle(), payments, asOf)
	require.NoError(t, err)

	shuffled := make([]engine.PaymentEntry, len(payments))
	copy(shuffled, payments)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	second, err := engine.Reconcile(monthlyVehicle(), shuffled, asOf)
	require.NoError(t, err)

	assert.Equal(t, first.Periods, second.Periods)
	assert.Equal(t, first.Rollup, second.Rollup)
}

func TestReconcile_PaidPeriodsHaveZeroShortfall(t *testing.T) {
	r := rand.New(rand.NewSource(3))

	for run := 0; run < 50; run++ {
		payments := randomPayments(r, r.Intn(15))
		state, err := engine.Reconcile(monthlyVehicle(), payments, date(2024, time.December, 1))
		require.NoError(t, err)

		for _, ps := range state.Periods {
			switch ps.Status {
			case engine.StatusPaid:
				assert.True(t, ps.Shortfall.IsZero())
			case engine.StatusPending, engine.StatusPartial:
				assert.True(t, ps.Shortfall.IsPositive())
			}
		}
	}
}

func TestReconcile_LaterAsOfNeverShrinksExpected(t *testing.T) {
	// Advancing the as-of date only appends periods; cumulative expected is
	// monotonically non-decreasing.
	payments := []engine.PaymentEntry{
		credit("pay-1", date(2024, time.February, 1), 4000),
	}

	prev := decimal.Zero
	for days := 0; days < 365; days += 30 {
		asOf := date(2024, time.January, 10).AddDays(days)
		state, err := engine.Reconcile(monthlyVehicle(), payments, asOf)
		require.NoError(t, err)

		assert.True(t, state.Rollup.CumulativeExpected.GreaterThanOrEqual(prev),
			"expected shrank at asOf %s", asOf)
		prev = state.Rollup.CumulativeExpected
	}
}
