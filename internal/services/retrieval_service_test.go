package services

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamflow-platform/internal/export"
	"streamflow-platform/internal/models"
	"streamflow-platform/pkg/logging"
	"streamflow-platform/pkg/metrics"
)

var testMetrics = metrics.NewCollector("services_test")

// fakeClient satisfies nwis.Client without network access
type fakeClient struct {
	catalogs map[string][]models.Site
	series   map[string]models.RawSeries
	fetchErr map[string]error
}

func (f *fakeClient) FetchCatalog(_ context.Context, regionCode string) ([]models.Site, error) {
	sites, ok := f.catalogs[regionCode]
	if !ok {
		return nil, &models.FetchError{RegionCode: regionCode, Stage: "catalog", Err: errors.New("unknown region")}
	}
	return sites, nil
}

func (f *fakeClient) FetchSeries(_ context.Context, siteID, _ string, _, _ time.Time) (models.RawSeries, error) {
	if err, ok := f.fetchErr[siteID]; ok {
		return nil, err
	}
	return f.series[siteID], nil
}

func fv(v float64) *float64 {
	return &v
}

func testWindow(t *testing.T) models.CalendarRange {
	t.Helper()
	window, err := models.NewCalendarRange(
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1970, 1, 3, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return window
}

func newTestService(t *testing.T, client *fakeClient) (*RetrievalService, string, string) {
	t.Helper()

	outputDir := t.TempDir()
	completeDir := t.TempDir()
	logger := logging.NewStructuredLogger("services-test", "0.0.0", logging.FatalLevel)
	writer := export.NewWriter(outputDir, completeDir, logger, testMetrics)

	return NewRetrievalService(client, writer, nil, logger, testMetrics), outputDir, completeDir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunBatch(t *testing.T) {
	full := models.Site{SiteID: "11266500", Name: "MERCED R", RegionCode: "CA", Longitude: -119.5, Latitude: 37.7}
	sparse := models.Site{SiteID: "10336660", Name: "BLACKWOOD C", RegionCode: "CA", Longitude: -120.2, Latitude: 39.1}
	empty := models.Site{SiteID: "14372300", Name: "CHETCO R", RegionCode: "OR", Longitude: -124.1, Latitude: 42.1}
	broken := models.Site{SiteID: "12013500", Name: "NASELLE R", RegionCode: "WA", Longitude: -123.7, Latitude: 46.4}

	client := &fakeClient{
		catalogs: map[string][]models.Site{
			"CA": {full, sparse},
			"OR": {empty},
			"WA": {broken},
		},
		series: map[string]models.RawSeries{
			"11266500": {
				{Date: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), Value: fv(1)},
				{Date: time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC), Value: fv(2)},
				{Date: time.Date(1970, 1, 3, 0, 0, 0, 0, time.UTC), Value: fv(3)},
			},
			"10336660": {
				{Date: time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC), Value: fv(5)},
			},
		},
		fetchErr: map[string]error{
			"12013500": &models.FetchError{SiteID: "12013500", Stage: "series", Err: errors.New("timeout")},
		},
	}

	svc, outputDir, completeDir := newTestService(t, client)

	result, err := svc.Run(context.Background(), BatchOptions{
		RegionCodes:   []string{"CA", "OR", "WA"},
		ParameterCode: "00060",
		Window:        testWindow(t),
		Threshold:     95,
		Workers:       3,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalSites)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Complete)
	assert.Equal(t, 1, result.EmptySeries)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "12013500", result.Failures[0].SiteID)

	// Summaries keep catalog order and only carry successful sites.
	require.Len(t, result.Summaries, 2)
	assert.Equal(t, "11266500", result.Summaries[0].SiteID)
	assert.True(t, result.Summaries[0].IsComplete)
	assert.Equal(t, "10336660", result.Summaries[1].SiteID)
	assert.False(t, result.Summaries[1].IsComplete)
	assert.InDelta(t, 100.0/3.0, result.Summaries[1].PercentComplete, 1e-9)

	// Metadata file covers the whole catalog, failures included.
	metaRows := readCSV(t, filepath.Join(outputDir, "sites_metadata.csv"))
	assert.Len(t, metaRows, 5)

	// Summary file covers successful sites only.
	summaryRows := readCSV(t, filepath.Join(outputDir, "completeness_summary.csv"))
	require.Len(t, summaryRows, 3)
	assert.Equal(t, "100.0", summaryRows[1][4])
	assert.Equal(t, "33.3", summaryRows[2][4])

	// Per-site series files exist for both successes, with one row per
	// calendar day.
	fullRows := readCSV(t, filepath.Join(outputDir, "CA_11266500_MERCED_R.csv"))
	assert.Len(t, fullRows, 4)
	sparseRows := readCSV(t, filepath.Join(outputDir, "CA_10336660_BLACKWOOD_C.csv"))
	assert.Len(t, sparseRows, 4)

	// Only the complete site is duplicated into the complete tier.
	_, err = os.Stat(filepath.Join(completeDir, "CA_11266500_MERCED_R.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(completeDir, "CA_10336660_BLACKWOOD_C.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunBatchRegionFailureIsNonFatal(t *testing.T) {
	site := models.Site{SiteID: "11266500", Name: "MERCED R", RegionCode: "CA"}

	client := &fakeClient{
		catalogs: map[string][]models.Site{"CA": {site}},
		series: map[string]models.RawSeries{
			"11266500": {{Date: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), Value: fv(1)}},
		},
	}

	svc, _, _ := newTestService(t, client)

	result, err := svc.Run(context.Background(), BatchOptions{
		RegionCodes: []string{"ZZ", "CA"},
		Window:      testWindow(t),
		Threshold:   50,
		Workers:     2,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalSites, "failed region skipped, good region processed")
	assert.Equal(t, 1, result.Succeeded)
}

func TestRunBatchNoSites(t *testing.T) {
	client := &fakeClient{catalogs: map[string][]models.Site{}}
	svc, outputDir, _ := newTestService(t, client)

	result, err := svc.Run(context.Background(), BatchOptions{
		RegionCodes: []string{"ZZ"},
		Window:      testWindow(t),
		Threshold:   95,
		Workers:     1,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalSites)
	assert.Empty(t, result.Summaries)

	// Nothing was written for an empty catalog.
	_, err = os.Stat(filepath.Join(outputDir, "sites_metadata.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunBatchRejectsBadThreshold(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeClient{})

	_, err := svc.Run(context.Background(), BatchOptions{
		RegionCodes: []string{"CA"},
		Window:      testWindow(t),
		Threshold:   101,
		Workers:     1,
	})
	require.Error(t, err)
	assert.IsType(t, &models.ThresholdRangeError{}, err)
}
