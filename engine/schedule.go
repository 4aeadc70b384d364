/*
schedule.go - Due-period generation

PURPOSE:
  Derives the sequence of due periods from an instrument's start date and
  payment frequency. A monthly instrument starting on the 10th owes one
  payment per window [10th .. 9th of next month]; bimonthly and quarterly
  stretch the window to 2 and 3 months.

DETERMINISM:
  Same inputs always yield the same sequence. Boundaries are computed from
  the anchor date each time (never chained), so day-of-month clamping in a
  short month does not drift later boundaries. Naive calendar dates only;
  no timezone or locale involvement.

MATERIALIZATION:
  The sequence is unbounded going forward; only periods whose start falls
  on or before the as-of date are materialized. An as-of before the start
  date yields an empty sequence, which is not an error.
*/
package engine

// Schedule generates the due periods for an instrument anchored at start,
// materializing every period with Start <= asOf. The Expected amount is
// left zero; ScheduleFor fills it from the instrument.
//
// An unrecognized frequency is a ScheduleError: the persisted schema
// constrains frequency, so seeing anything else means a collaborator
// contract violation.
func Schedule(start Date, freq Frequency, asOf Date) ([]DuePeriod, error) {
	step := freq.MonthStep()
	if step == 0 {
		return nil, &ScheduleError{Frequency: freq}
	}
	if asOf.Before(start) {
		return nil, nil
	}

	var periods []DuePeriod
	for k := 0; ; k++ {
		periodStart := start.AddMonths(k * step)
		if periodStart.After(asOf) {
			break
		}
		periodEnd := start.AddMonths((k + 1) * step).AddDays(-1)
		periods = append(periods, DuePeriod{Start: periodStart, End: periodEnd})
	}
	return periods, nil
}

// ScheduleFor generates the due periods for an instrument with the expected
// amount filled in. A closed instrument is frozen: no periods are generated
// beyond its closure date regardless of asOf.
func ScheduleFor(inst Instrument, asOf Date) ([]DuePeriod, error) {
	horizon := asOf
	if closed, at := inst.Closed(); closed && at.Before(horizon) {
		horizon = at
	}

	periods, err := Schedule(inst.StartDate(), inst.PayFrequency(), horizon)
	if err != nil {
		return nil, err
	}

	due := inst.PeriodicDue()
	for i := range periods {
		periods[i].Expected = due
	}
	return periods, nil
}
