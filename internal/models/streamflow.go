package models

import (
	"time"
)

// Site represents a streamflow monitoring site from the NWIS catalog
type Site struct {
	SiteID     string    `json:"site_id" db:"site_id"`
	Name       string    `json:"station_name" db:"station_name"`
	RegionCode string    `json:"region_code" db:"region_code"`
	Longitude  float64   `json:"longitude" db:"longitude"`
	Latitude   float64   `json:"latitude" db:"latitude"`
	CreatedAt  time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// RawObservation is one externally sourced (date, value) pair.
// NULL / provider sentinel values represented as nil pointers
type RawObservation struct {
	Date  time.Time
	Value *float64
}

// RawSeries is the sparse, possibly out-of-order observation set for one
// site as obtained from the data source. May contain duplicate dates and
// dates outside the requested window.
type RawSeries []RawObservation

// CalendarRange is the inclusive daily window the completeness denominator
// is computed over. Construct via NewCalendarRange; Start and End are bare
// UTC dates and Start <= End holds for every constructed value.
type CalendarRange struct {
	Start time.Time
	End   time.Time
}

// NewCalendarRange builds a calendar range from inclusive start and end
// dates. Returns InvalidRangeError when start is after end.
func NewCalendarRange(start, end time.Time) (CalendarRange, error) {
	start = DateOnly(start)
	end = DateOnly(end)

	if start.After(end) {
		return CalendarRange{}, &InvalidRangeError{Start: start, End: end}
	}

	return CalendarRange{Start: start, End: end}, nil
}

// TotalDays returns the number of calendar days in the range, inclusive.
func (r CalendarRange) TotalDays() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// DateOnly truncates a timestamp to a bare UTC calendar date. The wall
// date is read in the timestamp's own location, so a zoned midnight keeps
// its date instead of shifting across the UTC boundary. Any
// timezone-bearing timestamp from the provider must pass through here
// before entering the pipeline.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AlignedPoint is one calendar day of an aligned series. A nil Value means
// the day has no observation.
type AlignedPoint struct {
	Date  time.Time `json:"date"`
	Value *float64  `json:"value,omitempty"`
}

// AlignedSeries is a raw series re-expressed on a dense daily calendar:
// exactly one point per day of the CalendarRange, in ascending date order.
type AlignedSeries []AlignedPoint

// AlignedObservation is the persisted form of one aligned series point
type AlignedObservation struct {
	ID           int64     `json:"id" db:"id"`
	SiteID       string    `json:"site_id" db:"site_id"`
	ObsDate      time.Time `json:"obs_date" db:"obs_date"`
	DischargeCFS *float64  `json:"discharge_cfs,omitempty" db:"discharge_cfs"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// CompletenessResult captures how much of the calendar window a site's
// record actually covers
type CompletenessResult struct {
	PresentDays int     `json:"present_days"`
	TotalDays   int     `json:"total_days"`
	Percent     float64 `json:"percent"`
}

// SiteSummary is the per-site outcome of the completeness pipeline.
// Immutable once produced; identity fields are copied through from the
// catalog Site unchanged.
type SiteSummary struct {
	SiteID          string  `json:"site_id" db:"site_id"`
	Name            string  `json:"station_name" db:"station_name"`
	RegionCode      string  `json:"region_code" db:"region_code"`
	Longitude       float64 `json:"longitude" db:"longitude"`
	Latitude        float64 `json:"latitude" db:"latitude"`
	PercentComplete float64 `json:"percent_complete" db:"percent_complete"`
	IsComplete      bool    `json:"is_complete" db:"is_complete"`
}

// CompletenessRecord is the persisted form of a SiteSummary together with
// the window and threshold it was computed against
type CompletenessRecord struct {
	ID              int64     `json:"id" db:"id"`
	SiteID          string    `json:"site_id" db:"site_id"`
	PercentComplete float64   `json:"percent_complete" db:"percent_complete"`
	IsComplete      bool      `json:"is_complete" db:"is_complete"`
	Threshold       float64   `json:"threshold" db:"threshold"`
	WindowStart     time.Time `json:"window_start" db:"window_start"`
	WindowEnd       time.Time `json:"window_end" db:"window_end"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
