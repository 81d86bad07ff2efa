package services

import (
	"context"
	"time"

	"streamflow-platform/internal/models"
	"streamflow-platform/internal/repository"
	"streamflow-platform/pkg/logging"
	"streamflow-platform/pkg/metrics"
)

// SummaryService serves persisted sites, aligned series, and
// completeness summaries to the API layer
type SummaryService struct {
	repo    repository.SiteRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSummaryService creates a new summary service
func NewSummaryService(repo repository.SiteRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SummaryService {
	return &SummaryService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ListSites retrieves sites with filtering
func (s *SummaryService) ListSites(ctx context.Context, filter repository.SiteFilter) ([]*models.Site, int, error) {
	return s.repo.ListSites(ctx, filter)
}

// GetSite retrieves one site by id
func (s *SummaryService) GetSite(ctx context.Context, siteID string) (*models.Site, error) {
	return s.repo.GetSite(ctx, siteID)
}

// GetAlignedSeries retrieves one site's stored daily series
func (s *SummaryService) GetAlignedSeries(ctx context.Context, siteID string, startDate, endDate *time.Time) ([]*models.AlignedObservation, error) {
	return s.repo.GetAlignedSeries(ctx, siteID, startDate, endDate)
}

// GetSummaries retrieves completeness summaries with filtering
func (s *SummaryService) GetSummaries(ctx context.Context, filter repository.SummaryFilter) ([]*models.SiteSummary, int, error) {
	return s.repo.GetSummaries(ctx, filter)
}

// HealthCheck checks repository availability
func (s *SummaryService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
