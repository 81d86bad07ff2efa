package pipeline

import (
	"time"

	"streamflow-platform/internal/models"
)

// GenerateCalendar produces the ordered sequence of every calendar day in
// the range, inclusive on both ends, step one day. Deterministic: the same
// range always yields the identical sequence, which anchors the
// completeness denominator.
func GenerateCalendar(r models.CalendarRange) []time.Time {
	days := make([]time.Time, 0, r.TotalDays())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
