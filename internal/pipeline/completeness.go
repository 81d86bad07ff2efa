package pipeline

import (
	"streamflow-platform/internal/models"
)

// EvaluateCompleteness counts present days in an aligned series and
// derives the completeness percentage at full precision. Rounding for
// display happens only at the presentation boundary, never here. A
// degenerate empty series yields 0 rather than dividing by zero.
func EvaluateCompleteness(aligned models.AlignedSeries) models.CompletenessResult {
	result := models.CompletenessResult{
		TotalDays: len(aligned),
	}

	for _, p := range aligned {
		if p.Value != nil {
			result.PresentDays++
		}
	}

	if result.TotalDays > 0 {
		result.Percent = float64(result.PresentDays) / float64(result.TotalDays) * 100
	}

	return result
}
