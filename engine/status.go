/*
status.go - Stored-vs-derived payment status check

PURPOSE:
  A payment row persists a status, but status is really a derived fact
  about the period the payment settles. Operators may deliberately override
  it (marking a PARTIAL period PAID after an agreed write-off), so the two
  can legitimately disagree. This validator flags every disagreement
  instead of silently reconciling; the engine never mutates stored status.

  Derived status is authoritative for engine decisions (closure, rollup).
  Stored status is surfaced for audit, with the entry's description
  preserved as the override explanation.
*/
package engine

// CheckStatuses compares each credit payment's stored status against the
// derived status of the period containing it. Debits carry no period
// status, and unapplied payments have no period to compare against; both
// are skipped.
func CheckStatuses(state LedgerState, payments []PaymentEntry) []StatusMismatch {
	var mismatches []StatusMismatch

	for _, p := range payments {
		if p.Direction != DirectionCredit {
			continue
		}
		ps, ok := periodContaining(state.Periods, p.Date)
		if !ok {
			continue
		}
		if p.Status != ps.Status {
			mismatches = append(mismatches, StatusMismatch{
				PaymentID:   p.ID,
				Stored:      p.Status,
				Derived:     ps.Status,
				Period:      ps.Period,
				Description: p.Description,
			})
		}
	}
	return mismatches
}

func periodContaining(periods []PeriodState, d Date) (PeriodState, bool) {
	for _, ps := range periods {
		if ps.Period.Contains(d) {
			return ps, true
		}
	}
	return PeriodState{}, false
}
