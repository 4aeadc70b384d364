/*
Package sweep runs the scheduled overdue sweep.

PURPOSE:
  Periodically reconciles every open instrument and logs the ones with an
  outstanding balance past due, plus any stored-vs-derived status
  disagreements. The sweep is strictly read-only: it never mutates records,
  closes instruments, or repairs statuses. It exists so overdue positions
  surface in the logs without anyone opening the dashboard.

DESIGN:
  - robfig/cron drives the schedule (default: daily at 06:00)
  - Each run walks vehicles, outside interests, and loans that are open
  - A malformed record is logged and skipped, never fatal to the run

USAGE:
  s := sweep.New(st, "0 6 * * *", logger)
  s.Start()
  defer s.Stop()

SEE ALSO:
  - engine/reconcile.go: the computation each sweep performs
  - api/handlers.go: the dashboard view of the same data
*/
package sweep

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/warp/lending-engine/engine"
	"github.com/warp/lending-engine/store"
)

// Sweeper reconciles open instruments on a cron schedule.
type Sweeper struct {
	store    store.Store
	log      logrus.FieldLogger
	schedule string
	cron     *cron.Cron
}

// New creates a sweeper. The schedule is a standard five-field cron
// expression.
func New(s store.Store, schedule string, log logrus.FieldLogger) *Sweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{
		store:    s,
		log:      log,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start registers the sweep and begins the cron loop.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunNow(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithField("schedule", s.schedule).Info("overdue sweep started")
	return nil
}

// Stop halts the cron loop. A sweep already in flight finishes.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("overdue sweep stopped")
}

// RunNow performs one sweep immediately.
func (s *Sweeper) RunNow(ctx context.Context) {
	asOf := engine.Today()
	open := false
	filter := store.Filter{Closed: &open}

	var instruments []engine.Instrument

	vehicles, err := s.store.ListVehicles(ctx, filter)
	if err != nil {
		s.log.WithError(err).Error("sweep: failed to list vehicles")
		return
	}
	for _, v := range vehicles {
		instruments = append(instruments, v)
	}

	interests, err := s.store.ListOutsideInterests(ctx, filter)
	if err != nil {
		s.log.WithError(err).Error("sweep: failed to list outside interests")
		return
	}
	for _, o := range interests {
		instruments = append(instruments, o)
	}

	loans, err := s.store.ListLoans(ctx, filter)
	if err != nil {
		s.log.WithError(err).Error("sweep: failed to list loans")
		return
	}
	for _, l := range loans {
		instruments = append(instruments, l)
	}

	overdue, mismatched := 0, 0
	for _, inst := range instruments {
		payments, err := s.store.ListPayments(ctx, inst.Source(), inst.ID())
		if err != nil {
			s.log.WithError(err).WithField("id", inst.ID()).Error("sweep: failed to list payments")
			continue
		}

		state, err := engine.Reconcile(inst, payments, asOf)
		if err != nil {
			s.log.WithError(err).WithField("id", inst.ID()).Warn("sweep: skipping malformed record")
			continue
		}

		if state.Rollup.OverdueDays > 0 {
			overdue++
			s.log.WithFields(logrus.Fields{
				"source":       inst.Source(),
				"id":           inst.ID(),
				"outstanding":  state.Rollup.OutstandingBalance.String(),
				"overdue_days": state.Rollup.OverdueDays,
			}).Warn("instrument overdue")
		}

		for _, m := range engine.CheckStatuses(state, payments) {
			mismatched++
			s.log.WithFields(logrus.Fields{
				"payment_id": m.PaymentID,
				"stored":     m.Stored,
				"derived":    m.Derived,
				"period":     m.Period.Start.String(),
			}).Warn("stored payment status disagrees with derived status")
		}
	}

	s.log.WithFields(logrus.Fields{
		"as_of":      asOf.String(),
		"checked":    len(instruments),
		"overdue":    overdue,
		"mismatches": mismatched,
	}).Info("overdue sweep completed")
}
