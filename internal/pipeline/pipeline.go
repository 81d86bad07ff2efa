// Package pipeline implements the calendar-alignment and
// completeness-classification core: given a site, a raw observation
// series, and a calendar window, it produces a gap-filled daily series, a
// completeness percentage, and a classification decision.
//
// Every function here is pure and stateless. Invocations share no mutable
// state, so the pipeline may run for any number of sites in parallel with
// no coordination.
package pipeline

import (
	"streamflow-platform/internal/models"
)

// Outcome bundles everything one pipeline run produces for a site
type Outcome struct {
	Summary      models.SiteSummary
	Aligned      models.AlignedSeries
	Completeness models.CompletenessResult
	Report       AlignmentReport
}

// Run executes the full per-site pipeline: calendar generation, series
// alignment, completeness evaluation, classification. The raw series is an
// input value; fetching it is the caller's concern.
func Run(site models.Site, window models.CalendarRange, raw models.RawSeries, threshold float64) (*Outcome, error) {
	calendar := GenerateCalendar(window)

	aligned, report := AlignSeries(calendar, raw)
	completeness := EvaluateCompleteness(aligned)

	summary, err := Classify(site, completeness, threshold)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Summary:      summary,
		Aligned:      aligned,
		Completeness: completeness,
		Report:       report,
	}, nil
}
