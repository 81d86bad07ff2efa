package models

import (
	"fmt"
	"time"
)

// InvalidRangeError reports a calendar range whose start is after its end.
// Raised at construction; never recovered from at runtime
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid calendar range: start %s is after end %s",
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

// IsTransient returns false as range errors are configuration mistakes
func (e *InvalidRangeError) IsTransient() bool {
	return false
}

// ThresholdRangeError reports a completeness threshold outside [0, 100]
type ThresholdRangeError struct {
	Threshold float64
}

func (e *ThresholdRangeError) Error() string {
	return fmt.Sprintf("completeness threshold %.2f outside valid range [0, 100]", e.Threshold)
}

func (e *ThresholdRangeError) IsTransient() bool {
	return false
}

// ConfigError reports an invalid configuration value. Fatal to the whole
// batch: validated once before any site is processed
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s=%q: %s", e.Field, e.Value, e.Message)
}

func (e *ConfigError) IsTransient() bool {
	return false
}

// FetchError reports a failure talking to the external data source for one
// site or region. Recovered locally: the affected site is skipped and the
// batch continues
type FetchError struct {
	SiteID     string
	RegionCode string
	Stage      string // "catalog" or "series"
	Err        error
}

func (e *FetchError) Error() string {
	target := e.SiteID
	if target == "" {
		target = e.RegionCode
	}
	return fmt.Sprintf("fetch %s failed for %s: %v", e.Stage, target, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransient returns true: the data source may recover on a later run
func (e *FetchError) IsTransient() bool {
	return true
}

// PersistenceError reports an output destination that cannot be created or
// written. Fatal at batch start when it concerns a destination directory
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed for %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) IsTransient() bool {
	return false
}
