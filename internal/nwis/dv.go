package nwis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"streamflow-platform/internal/models"
)

// dvResponse mirrors the daily values service's WaterML-style JSON
// envelope, reduced to the fields the pipeline needs
type dvResponse struct {
	Value struct {
		TimeSeries []struct {
			Variable struct {
				NoDataValue float64 `json:"noDataValue"`
			} `json:"variable"`
			Values []struct {
				Value []dvPoint `json:"value"`
			} `json:"values"`
		} `json:"timeSeries"`
	} `json:"value"`
}

type dvPoint struct {
	Value    string `json:"value"`
	DateTime string `json:"dateTime"`
}

// dvTimeLayouts covers the timestamp shapes the service has been observed
// to emit
var dvTimeLayouts = []string{
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05.000",
	time.RFC3339,
	"2006-01-02",
}

// parseDailyValues converts a daily values JSON payload into a raw series.
// The provider's noDataValue sentinel and empty values become nil; any
// time-of-day or timezone component is discarded here so only bare UTC
// dates enter the pipeline. An empty payload yields an empty series.
func parseDailyValues(body []byte) (models.RawSeries, error) {
	series := make(models.RawSeries, 0)
	if len(body) == 0 {
		return series, nil
	}

	var resp dvResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode daily values payload: %w", err)
	}

	for _, ts := range resp.Value.TimeSeries {
		noData := ts.Variable.NoDataValue

		for _, block := range ts.Values {
			for _, point := range block.Value {
				date, err := parseDVTime(point.DateTime)
				if err != nil {
					return nil, fmt.Errorf("bad observation timestamp %q: %w", point.DateTime, err)
				}

				series = append(series, models.RawObservation{
					Date:  models.DateOnly(date),
					Value: parseDVValue(point.Value, noData),
				})
			}
		}
	}

	return series, nil
}

func parseDVTime(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range dvTimeLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseDVValue maps the provider's string value to a measurement;
// unparseable values and the no-data sentinel are both missing
func parseDVValue(raw string, noData float64) *float64 {
	if raw == "" {
		return nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v == noData {
		return nil
	}

	return &v
}
