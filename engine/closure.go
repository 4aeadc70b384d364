/*
closure.go - Closure eligibility

PURPOSE:
  Decides whether an instrument may transition to closed. The engine only
  renders the verdict; the store layer performs the actual flip and must
  serialize it per instrument so a repeated close is an idempotent no-op.

RULES:
  - Already closed     -> not closable, reason already_closed, with the
                          original closure date so retries can be answered.
  - Soft-deleted       -> not closable, reason deleted, even if settled.
  - Outstanding > 0    -> not closable, reason outstanding_balance. Any
                          force-close happens through an explicit override
                          path outside the engine.
  - Otherwise          -> closable. All dues through the current period are
                          satisfied, carry-forward credit included.
*/
package engine

// CanClose renders the closure verdict for an instrument given its
// reconciled rollup. A negative verdict is a normal outcome, never an error.
func CanClose(inst Instrument, rollup Rollup) ClosureVerdict {
	if closed, at := inst.Closed(); closed {
		return ClosureVerdict{
			Closable:    false,
			Reason:      ReasonAlreadyClosed,
			ClosureDate: at,
		}
	}

	if inst.Deleted() {
		return ClosureVerdict{Closable: false, Reason: ReasonDeleted}
	}

	if rollup.OutstandingBalance.IsPositive() {
		return ClosureVerdict{
			Closable:    false,
			Reason:      ReasonOutstanding,
			Outstanding: rollup.OutstandingBalance,
		}
	}

	return ClosureVerdict{Closable: true}
}
