// Package nwis talks to the USGS National Water Information System: the
// site service for catalog metadata and the daily values service for raw
// discharge series. It is the only package that touches the network; the
// pipeline consumes its output as plain values.
package nwis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"streamflow-platform/internal/models"
	"streamflow-platform/pkg/logging"
	"streamflow-platform/pkg/metrics"
)

const (
	defaultSiteURL = "https://waterservices.usgs.gov/nwis/site/"
	defaultDVURL   = "https://waterservices.usgs.gov/nwis/dv/"
	userAgent      = "streamflow-platform/1.0"
)

// Client is the injected fetch capability: catalog and series retrieval
// for the completeness batch. Implementations must be safe for concurrent
// use.
type Client interface {
	FetchCatalog(ctx context.Context, regionCode string) ([]models.Site, error)
	FetchSeries(ctx context.Context, siteID, paramCode string, start, end time.Time) (models.RawSeries, error)
}

// HTTPClient implements Client against the public NWIS web services
type HTTPClient struct {
	httpClient *http.Client
	siteURL    string
	dvURL      string
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithBaseURLs overrides the service endpoints, used by tests
func WithBaseURLs(siteURL, dvURL string) Option {
	return func(c *HTTPClient) {
		c.siteURL = siteURL
		c.dvURL = dvURL
	}
}

// WithTimeout overrides the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = timeout
	}
}

// NewHTTPClient creates an NWIS client
func NewHTTPClient(logger *logging.StructuredLogger, metricsCollector *metrics.Collector, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		siteURL:    defaultSiteURL,
		dvURL:      defaultDVURL,
		logger:     logger,
		metrics:    metricsCollector,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchCatalog retrieves streamflow site metadata for one region code.
// The site service answers in RDB (tab-delimited) format.
func (c *HTTPClient) FetchCatalog(ctx context.Context, regionCode string) ([]models.Site, error) {
	startTime := time.Now()

	params := url.Values{}
	params.Set("format", "rdb")
	params.Set("stateCd", regionCode)
	params.Set("parameterCd", "00060")
	params.Set("siteType", "ST")
	params.Set("siteStatus", "all")

	body, err := c.get(ctx, c.siteURL, params)
	if err != nil {
		c.metrics.RecordFetchError("catalog")
		return nil, &models.FetchError{RegionCode: regionCode, Stage: "catalog", Err: err}
	}

	sites, err := parseSiteRDB(body, regionCode)
	if err != nil {
		c.metrics.RecordFetchError("catalog_parse")
		return nil, &models.FetchError{RegionCode: regionCode, Stage: "catalog", Err: err}
	}

	duration := time.Since(startTime)
	c.metrics.FetchDuration.WithLabelValues("catalog").Observe(duration.Seconds())

	c.logger.Info(ctx, "[NWIS_CATALOG] Site catalog fetched", logging.Fields{
		"region_code": regionCode,
		"site_count":  len(sites),
		"duration_ms": duration.Milliseconds(),
	})

	return sites, nil
}

// FetchSeries retrieves one site's daily values for the inclusive date
// range. An empty series is a legitimate result, not an error. Timestamps
// are normalized to bare UTC dates and the provider's no-data sentinel
// maps to a nil value.
func (c *HTTPClient) FetchSeries(ctx context.Context, siteID, paramCode string, start, end time.Time) (models.RawSeries, error) {
	startTime := time.Now()

	params := url.Values{}
	params.Set("format", "json")
	params.Set("sites", siteID)
	params.Set("parameterCd", paramCode)
	params.Set("startDT", start.Format("2006-01-02"))
	params.Set("endDT", end.Format("2006-01-02"))

	body, err := c.get(ctx, c.dvURL, params)
	if err != nil {
		c.metrics.RecordFetchError("series")
		return nil, &models.FetchError{SiteID: siteID, Stage: "series", Err: err}
	}

	series, err := parseDailyValues(body)
	if err != nil {
		c.metrics.RecordFetchError("series_parse")
		return nil, &models.FetchError{SiteID: siteID, Stage: "series", Err: err}
	}

	duration := time.Since(startTime)
	c.metrics.FetchDuration.WithLabelValues("series").Observe(duration.Seconds())

	c.logger.Debug(ctx, "[NWIS_SERIES] Daily values fetched", logging.Fields{
		"site_id":           siteID,
		"parameter_code":    paramCode,
		"observation_count": len(series),
		"duration_ms":       duration.Milliseconds(),
	})

	return series, nil
}

// get performs one GET request and reads the whole body
func (c *HTTPClient) get(ctx context.Context, baseURL string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	c.metrics.FetchRequestsTotal.Inc()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// NWIS answers 404 when a query matches no sites at all.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}
