package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"streamflow-platform/internal/export"
	"streamflow-platform/internal/models"
	"streamflow-platform/internal/nwis"
	"streamflow-platform/internal/pipeline"
	"streamflow-platform/internal/repository"
	"streamflow-platform/pkg/logging"
	"streamflow-platform/pkg/metrics"
)

// RetrievalService orchestrates one completeness batch: catalog fetch,
// per-site pipeline fan-out, CSV export, and optional persistence.
type RetrievalService struct {
	client  nwis.Client
	writer  *export.Writer
	repo    repository.SiteRepository // nil disables persistence
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// BatchOptions configures one retrieval batch
type BatchOptions struct {
	RegionCodes   []string
	ParameterCode string
	Window        models.CalendarRange
	Threshold     float64
	Workers       int
}

// SiteFailure records one site that could not be processed
type SiteFailure struct {
	SiteID string
	Reason string
}

// BatchResult contains batch statistics. Summaries holds one record per
// successfully processed site, in catalog order.
type BatchResult struct {
	TotalSites  int
	Succeeded   int
	Complete    int
	EmptySeries int
	Failed      int
	Summaries   []models.SiteSummary
	Failures    []SiteFailure
	Duration    time.Duration
}

// siteOutcome is one worker's result slot
type siteOutcome struct {
	summary *models.SiteSummary
	empty   bool
	err     error
}

// NewRetrievalService creates a retrieval service. Pass a nil repository
// to run without a database.
func NewRetrievalService(
	client nwis.Client,
	writer *export.Writer,
	repo repository.SiteRepository,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *RetrievalService {
	return &RetrievalService{
		client:  client,
		writer:  writer,
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Run executes one batch. Per-site failures are recorded and skipped;
// only configuration problems and the total absence of output
// destinations abort the batch.
func (s *RetrievalService) Run(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	startTime := time.Now()
	ctx = logging.WithBatchID(ctx, fmt.Sprintf("batch-%d", startTime.Unix()))

	if opts.Threshold < 0 || opts.Threshold > 100 {
		return nil, &models.ThresholdRangeError{Threshold: opts.Threshold}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	s.logger.Info(ctx, "[BATCH_START] Starting completeness batch", logging.Fields{
		"regions":        opts.RegionCodes,
		"parameter_code": opts.ParameterCode,
		"window_start":   opts.Window.Start.Format("2006-01-02"),
		"window_end":     opts.Window.End.Format("2006-01-02"),
		"threshold":      opts.Threshold,
		"workers":        opts.Workers,
		"stage":          "INITIALIZATION",
	})

	sites := s.fetchCatalogs(ctx, opts.RegionCodes)

	result := &BatchResult{
		TotalSites: len(sites),
		Failures:   make([]SiteFailure, 0),
	}

	if len(sites) == 0 {
		s.logger.Warn(ctx, "[BATCH_EMPTY] No sites found for given regions", logging.Fields{
			"regions": opts.RegionCodes,
		})
		result.Duration = time.Since(startTime)
		return result, nil
	}

	if _, err := s.writer.WriteSiteMetadata(ctx, sites); err != nil {
		return nil, err
	}

	// One result slot per site: workers never share mutable state.
	outcomes := make([]siteOutcome, len(sites))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, site := range sites {
		i, site := i, site
		g.Go(func() error {
			outcomes[i] = s.processSite(groupCtx, site, opts)
			return nil
		})
	}

	// Workers always return nil; Wait only orders the slot writes.
	_ = g.Wait()

	for i, outcome := range outcomes {
		switch {
		case outcome.err != nil:
			result.Failed++
			result.Failures = append(result.Failures, SiteFailure{
				SiteID: sites[i].SiteID,
				Reason: outcome.err.Error(),
			})
			s.metrics.RecordSiteOutcome("failed")
		case outcome.empty:
			result.EmptySeries++
			s.metrics.RecordSiteOutcome("empty")
		default:
			result.Succeeded++
			if outcome.summary.IsComplete {
				result.Complete++
				s.metrics.RecordSiteOutcome("complete")
			} else {
				s.metrics.RecordSiteOutcome("incomplete")
			}
			result.Summaries = append(result.Summaries, *outcome.summary)
		}
	}

	if _, err := s.writer.WriteSummary(ctx, result.Summaries); err != nil {
		return nil, err
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[BATCH_COMPLETE] Completeness batch finished", logging.Fields{
		"total_sites":      result.TotalSites,
		"succeeded":        result.Succeeded,
		"complete":         result.Complete,
		"empty_series":     result.EmptySeries,
		"failed":           result.Failed,
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}

// fetchCatalogs merges the site catalogs of all requested regions. A
// region whose catalog cannot be fetched is logged and skipped; the batch
// continues with the remaining regions.
func (s *RetrievalService) fetchCatalogs(ctx context.Context, regionCodes []string) []models.Site {
	sites := make([]models.Site, 0)

	for _, region := range regionCodes {
		regionSites, err := s.client.FetchCatalog(ctx, region)
		if err != nil {
			s.logger.Error(ctx, "[CATALOG_ERROR] Region catalog fetch failed", logging.Fields{
				"region_code": region,
				"stage":       "CATALOG",
			}, err)
			continue
		}
		sites = append(sites, regionSites...)
	}

	return sites
}

// processSite runs the full per-site path: fetch, align, classify,
// export, persist. Every error is returned in the outcome slot, never
// propagated to other sites.
func (s *RetrievalService) processSite(ctx context.Context, site models.Site, opts BatchOptions) siteOutcome {
	raw, err := s.client.FetchSeries(ctx, site.SiteID, opts.ParameterCode, opts.Window.Start, opts.Window.End)
	if err != nil {
		s.logger.Error(ctx, "[SITE_FETCH_ERROR] Series fetch failed", logging.Fields{
			"site_id": site.SiteID,
			"stage":   "SERIES_FETCH",
		}, err)
		return siteOutcome{err: err}
	}

	// The provider legitimately returns nothing for sites with no daily
	// record in the window; such sites are omitted from the summary.
	if len(raw) == 0 {
		s.logger.Info(ctx, "[SITE_EMPTY] No observations in window", logging.Fields{
			"site_id": site.SiteID,
		})
		return siteOutcome{empty: true}
	}

	pipelineStart := time.Now()
	outcome, err := pipeline.Run(site, opts.Window, raw, opts.Threshold)
	if err != nil {
		return siteOutcome{err: err}
	}
	s.metrics.PipelineDuration.Observe(time.Since(pipelineStart).Seconds())
	s.metrics.CompletenessPercent.Observe(outcome.Summary.PercentComplete)

	if outcome.Report.Duplicates > 0 || outcome.Report.OutOfRange > 0 {
		s.logger.Warn(ctx, "[SITE_ALIGNMENT_ANOMALY] Raw series needed cleanup", logging.Fields{
			"site_id":      site.SiteID,
			"duplicates":   outcome.Report.Duplicates,
			"out_of_range": outcome.Report.OutOfRange,
		})
	}

	seriesPath, err := s.writer.WriteAlignedSeries(ctx, site, outcome.Aligned)
	if err != nil {
		return siteOutcome{err: err}
	}

	if outcome.Summary.IsComplete {
		if _, err := s.writer.CopyToComplete(ctx, seriesPath); err != nil {
			return siteOutcome{err: err}
		}
	}

	if s.repo != nil {
		if err := s.persistSite(ctx, site, outcome, opts); err != nil {
			return siteOutcome{err: err}
		}
	}

	s.logger.Info(ctx, "[SITE_COMPLETE] Site processed", logging.Fields{
		"site_id":          site.SiteID,
		"percent_complete": outcome.Summary.PercentComplete,
		"is_complete":      outcome.Summary.IsComplete,
	})

	return siteOutcome{summary: &outcome.Summary}
}

// persistSite stores catalog record, aligned series, and completeness
// result for one site
func (s *RetrievalService) persistSite(ctx context.Context, site models.Site, outcome *pipeline.Outcome, opts BatchOptions) error {
	if err := s.repo.UpsertSite(ctx, &site); err != nil {
		return err
	}

	if err := s.repo.ReplaceAlignedSeries(ctx, site.SiteID, outcome.Aligned); err != nil {
		return err
	}

	record := &models.CompletenessRecord{
		SiteID:          site.SiteID,
		PercentComplete: outcome.Summary.PercentComplete,
		IsComplete:      outcome.Summary.IsComplete,
		Threshold:       opts.Threshold,
		WindowStart:     opts.Window.Start,
		WindowEnd:       opts.Window.End,
	}

	return s.repo.UpsertCompleteness(ctx, record)
}
