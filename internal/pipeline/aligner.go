package pipeline

import (
	"time"

	"streamflow-platform/internal/models"
)

// AlignmentReport counts raw-series anomalies resolved during alignment.
// These are diagnostics, never errors: duplicates keep the first
// occurrence, out-of-range dates are dropped.
type AlignmentReport struct {
	Duplicates int
	OutOfRange int
}

// AlignSeries joins a raw series onto the calendar: one point per calendar
// day, value present when exactly one in-range observation exists for that
// day, nil otherwise. The output length always equals len(calendar),
// regardless of raw input shape.
//
// Policy:
//   - duplicate dates keep the first observation in input order
//   - dates outside the calendar are dropped
//   - nil raw values stay missing, identical to an absent day
func AlignSeries(calendar []time.Time, raw models.RawSeries) (models.AlignedSeries, AlignmentReport) {
	report := AlignmentReport{}
	aligned := make(models.AlignedSeries, len(calendar))

	if len(calendar) == 0 {
		return aligned, report
	}

	start, end := calendar[0], calendar[len(calendar)-1]

	byDate := make(map[string]*float64, len(raw))
	for _, obs := range raw {
		date := models.DateOnly(obs.Date)
		if date.Before(start) || date.After(end) {
			report.OutOfRange++
			continue
		}

		key := date.Format("2006-01-02")
		if _, seen := byDate[key]; seen {
			report.Duplicates++
			continue
		}
		byDate[key] = obs.Value
	}

	for i, day := range calendar {
		aligned[i] = models.AlignedPoint{
			Date:  day,
			Value: byDate[day.Format("2006-01-02")],
		}
	}

	return aligned, report
}
