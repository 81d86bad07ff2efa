package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamflow-platform/internal/models"
	"streamflow-platform/internal/repository"
	"streamflow-platform/internal/services"
	"streamflow-platform/pkg/logging"
	"streamflow-platform/pkg/metrics"
)

var testMetrics = metrics.NewCollector("handlers_test")

// fakeRepo satisfies repository.SiteRepository without a database
type fakeRepo struct {
	sites     map[string]*models.Site
	series    map[string][]*models.AlignedObservation
	summaries []*models.SiteSummary
	healthErr error
}

func (f *fakeRepo) UpsertSite(context.Context, *models.Site) error { return nil }

func (f *fakeRepo) GetSite(_ context.Context, siteID string) (*models.Site, error) {
	site, ok := f.sites[siteID]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "site", ID: siteID}
	}
	return site, nil
}

func (f *fakeRepo) ListSites(_ context.Context, filter repository.SiteFilter) ([]*models.Site, int, error) {
	sites := make([]*models.Site, 0, len(f.sites))
	for _, site := range f.sites {
		if filter.RegionCode != nil && site.RegionCode != *filter.RegionCode {
			continue
		}
		sites = append(sites, site)
	}
	return sites, len(sites), nil
}

func (f *fakeRepo) ReplaceAlignedSeries(context.Context, string, models.AlignedSeries) error {
	return nil
}

func (f *fakeRepo) GetAlignedSeries(_ context.Context, siteID string, _, _ *time.Time) ([]*models.AlignedObservation, error) {
	return f.series[siteID], nil
}

func (f *fakeRepo) UpsertCompleteness(context.Context, *models.CompletenessRecord) error {
	return nil
}

func (f *fakeRepo) GetSummaries(_ context.Context, filter repository.SummaryFilter) ([]*models.SiteSummary, int, error) {
	summaries := make([]*models.SiteSummary, 0, len(f.summaries))
	for _, summary := range f.summaries {
		if filter.CompleteOnly && !summary.IsComplete {
			continue
		}
		if filter.MinPercent != nil && summary.PercentComplete < *filter.MinPercent {
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, len(summaries), nil
}

func (f *fakeRepo) HealthCheck(context.Context) error { return f.healthErr }

func newTestHandler(repo *fakeRepo) *SiteHandler {
	logger := logging.NewStructuredLogger("handlers-test", "0.0.0", logging.FatalLevel)
	summaryService := services.NewSummaryService(repo, logger, testMetrics)
	return NewSiteHandler(summaryService, logger, testMetrics)
}

func newTestRouter(repo *fakeRepo) *mux.Router {
	router := mux.NewRouter()
	newTestHandler(repo).RegisterRoutes(router)
	return router
}

func TestListSites(t *testing.T) {
	repo := &fakeRepo{
		sites: map[string]*models.Site{
			"11266500": {SiteID: "11266500", Name: "MERCED R", RegionCode: "CA"},
			"14372300": {SiteID: "14372300", Name: "CHETCO R", RegionCode: "OR"},
		},
	}
	router := newTestRouter(repo)

	req := httptest.NewRequest("GET", "/api/sites", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response PaginatedResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, 2, response.Total)
	assert.Equal(t, 1, response.Page)
	assert.Equal(t, 100, response.Limit)
	assert.Equal(t, 1, response.TotalPages)
}

func TestListSitesRegionFilter(t *testing.T) {
	repo := &fakeRepo{
		sites: map[string]*models.Site{
			"11266500": {SiteID: "11266500", RegionCode: "CA"},
			"14372300": {SiteID: "14372300", RegionCode: "OR"},
		},
	}
	router := newTestRouter(repo)

	req := httptest.NewRequest("GET", "/api/sites?region_code=OR", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response PaginatedResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, 1, response.Total)
}

func TestGetSiteSeries(t *testing.T) {
	repo := &fakeRepo{
		sites: map[string]*models.Site{
			"11266500": {SiteID: "11266500", RegionCode: "CA"},
		},
		series: map[string][]*models.AlignedObservation{
			"11266500": {
				{ID: 1, SiteID: "11266500", ObsDate: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
				{ID: 2, SiteID: "11266500", ObsDate: time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)},
			},
		},
	}
	router := newTestRouter(repo)

	req := httptest.NewRequest("GET", "/api/sites/11266500/series", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		SiteID string            `json:"site_id"`
		Series []json.RawMessage `json:"series"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "11266500", response.SiteID)
	assert.Len(t, response.Series, 2)
}

func TestGetSiteSeriesNotFound(t *testing.T) {
	router := newTestRouter(&fakeRepo{sites: map[string]*models.Site{}})

	req := httptest.NewRequest("GET", "/api/sites/00000000/series", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSiteSeriesBadDate(t *testing.T) {
	router := newTestRouter(&fakeRepo{sites: map[string]*models.Site{}})

	req := httptest.NewRequest("GET", "/api/sites/11266500/series?start_date=01/01/1970", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Contains(t, response.Message, "start_date")
}

func TestGetCompleteness(t *testing.T) {
	repo := &fakeRepo{
		summaries: []*models.SiteSummary{
			{SiteID: "11266500", PercentComplete: 100, IsComplete: true},
			{SiteID: "10336660", PercentComplete: 33.3, IsComplete: false},
		},
	}
	router := newTestRouter(repo)

	tests := []struct {
		name      string
		url       string
		wantTotal int
	}{
		{"all summaries", "/api/completeness", 2},
		{"complete only", "/api/completeness?complete=true", 1},
		{"min percent", "/api/completeness?min_percent=50", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)

			var response PaginatedResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
			assert.Equal(t, tt.wantTotal, response.Total)
		})
	}
}

func TestGetCompletenessBadMinPercent(t *testing.T) {
	router := newTestRouter(&fakeRepo{})

	req := httptest.NewRequest("GET", "/api/completeness?min_percent=150", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&fakeRepo{})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "healthy", status["status"])
}

func TestHealthCheckDegraded(t *testing.T) {
	router := newTestRouter(&fakeRepo{healthErr: errors.New("connection refused")})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "degraded", status["status"])
}
