package pipeline

import (
	"streamflow-platform/internal/models"
)

// Classify decides whether a site's record is complete enough against the
// threshold (inclusive: percent == threshold classifies complete) and
// assembles the per-site summary, copying identity fields through from the
// catalog record unchanged.
//
// The threshold is validated once at batch start, but an out-of-range
// value is still rejected here for direct callers.
func Classify(site models.Site, result models.CompletenessResult, threshold float64) (models.SiteSummary, error) {
	if threshold < 0 || threshold > 100 {
		return models.SiteSummary{}, &models.ThresholdRangeError{Threshold: threshold}
	}

	return models.SiteSummary{
		SiteID:          site.SiteID,
		Name:            site.Name,
		RegionCode:      site.RegionCode,
		Longitude:       site.Longitude,
		Latitude:        site.Latitude,
		PercentComplete: result.Percent,
		IsComplete:      result.Percent >= threshold,
	}, nil
}
