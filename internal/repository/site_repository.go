package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"streamflow-platform/internal/models"
	"streamflow-platform/pkg/database"
	"streamflow-platform/pkg/logging"
	"streamflow-platform/pkg/metrics"
)

// SiteRepository provides data access for sites, aligned series, and
// completeness results
type SiteRepository interface {
	// Site operations
	UpsertSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, siteID string) (*models.Site, error)
	ListSites(ctx context.Context, filter SiteFilter) ([]*models.Site, int, error)

	// Aligned series operations
	ReplaceAlignedSeries(ctx context.Context, siteID string, aligned models.AlignedSeries) error
	GetAlignedSeries(ctx context.Context, siteID string, startDate, endDate *time.Time) ([]*models.AlignedObservation, error)

	// Completeness operations
	UpsertCompleteness(ctx context.Context, record *models.CompletenessRecord) error
	GetSummaries(ctx context.Context, filter SummaryFilter) ([]*models.SiteSummary, int, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// SiteFilter defines filters for querying sites
type SiteFilter struct {
	RegionCode *string
	Limit      int
	Offset     int
}

// SummaryFilter defines filters for querying completeness summaries
type SummaryFilter struct {
	CompleteOnly bool
	MinPercent   *float64
	Limit        int
	Offset       int
}

// siteRepository implements SiteRepository
type siteRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSiteRepository creates a new site repository
func NewSiteRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) SiteRepository {
	return &siteRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// UpsertSite creates or refreshes a site catalog record
func (r *siteRepository) UpsertSite(ctx context.Context, site *models.Site) error {
	query := `
		INSERT INTO sites (site_id, station_name, region_code, longitude, latitude, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (site_id) DO UPDATE SET
			station_name = EXCLUDED.station_name,
			region_code = EXCLUDED.region_code,
			longitude = EXCLUDED.longitude,
			latitude = EXCLUDED.latitude,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, "upsert_site", query,
		site.SiteID,
		site.Name,
		site.RegionCode,
		site.Longitude,
		site.Latitude,
		now,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert site: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_UPSERT_SITE] Site stored", logging.Fields{
		"site_id":     site.SiteID,
		"region_code": site.RegionCode,
	})

	return nil
}

// GetSite retrieves a site by ID
func (r *siteRepository) GetSite(ctx context.Context, siteID string) (*models.Site, error) {
	query := `
		SELECT site_id, station_name, region_code, longitude, latitude, created_at, updated_at
		FROM sites
		WHERE site_id = $1
	`

	var site models.Site
	err := r.db.GetContext(ctx, "get_site", &site, query, siteID)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "site",
			ID:       siteID,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}

	return &site, nil
}

// ListSites retrieves sites with optional region filtering and pagination
func (r *siteRepository) ListSites(ctx context.Context, filter SiteFilter) ([]*models.Site, int, error) {
	query := `
		SELECT site_id, station_name, region_code, longitude, latitude, created_at, updated_at
		FROM sites
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.RegionCode != nil {
		query += fmt.Sprintf(" AND region_code = $%d", argNum)
		args = append(args, *filter.RegionCode)
		argNum++
	}

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_sites", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sites: %w", err)
	}

	query += " ORDER BY site_id"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var sites []*models.Site
	err = r.db.SelectContext(ctx, "list_sites", &sites, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sites: %w", err)
	}

	return sites, totalCount, nil
}

// ReplaceAlignedSeries swaps a site's stored daily series for a freshly
// aligned one inside a single transaction, keeping the one-row-per-day
// shape intact for readers
func (r *siteRepository) ReplaceAlignedSeries(ctx context.Context, siteID string, aligned models.AlignedSeries) error {
	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.logger.Debug(ctx, "[REPO_REPLACE_SERIES] Aligned series stored", logging.Fields{
			"site_id":     siteID,
			"row_count":   len(aligned),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM aligned_observations WHERE site_id = $1`, siteID); err != nil {
		return fmt.Errorf("failed to clear aligned series: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO aligned_observations (site_id, obs_date, discharge_cfs, created_at)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, point := range aligned {
		if _, err := stmt.ExecContext(ctx, siteID, point.Date, point.Value, now); err != nil {
			return fmt.Errorf("failed to insert aligned observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetAlignedSeries retrieves a site's stored daily series, optionally
// clipped to a date range
func (r *siteRepository) GetAlignedSeries(ctx context.Context, siteID string, startDate, endDate *time.Time) ([]*models.AlignedObservation, error) {
	query := `
		SELECT id, site_id, obs_date, discharge_cfs, created_at
		FROM aligned_observations
		WHERE site_id = $1
	`
	args := []interface{}{siteID}
	argNum := 2

	if startDate != nil {
		query += fmt.Sprintf(" AND obs_date >= $%d", argNum)
		args = append(args, *startDate)
		argNum++
	}

	if endDate != nil {
		query += fmt.Sprintf(" AND obs_date <= $%d", argNum)
		args = append(args, *endDate)
		argNum++
	}

	query += " ORDER BY obs_date"

	var observations []*models.AlignedObservation
	err := r.db.SelectContext(ctx, "get_aligned_series", &observations, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get aligned series: %w", err)
	}

	return observations, nil
}

// UpsertCompleteness creates or updates a site's completeness result
func (r *siteRepository) UpsertCompleteness(ctx context.Context, record *models.CompletenessRecord) error {
	query := `
		INSERT INTO completeness_summaries (
			site_id, percent_complete, is_complete, threshold,
			window_start, window_end, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (site_id) DO UPDATE SET
			percent_complete = EXCLUDED.percent_complete,
			is_complete = EXCLUDED.is_complete,
			threshold = EXCLUDED.threshold,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	now := time.Now().UTC()
	err := r.db.DB().QueryRowContext(ctx, query,
		record.SiteID,
		record.PercentComplete,
		record.IsComplete,
		record.Threshold,
		record.WindowStart,
		record.WindowEnd,
		now,
		now,
	).Scan(&record.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert completeness: %w", err)
	}

	return nil
}

// GetSummaries retrieves completeness summaries joined with site identity
// fields, with filtering and pagination
func (r *siteRepository) GetSummaries(ctx context.Context, filter SummaryFilter) ([]*models.SiteSummary, int, error) {
	query := `
		SELECT s.site_id, s.station_name, s.region_code, s.longitude, s.latitude,
		       c.percent_complete, c.is_complete
		FROM completeness_summaries c
		JOIN sites s ON s.site_id = c.site_id
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.CompleteOnly {
		query += " AND c.is_complete"
	}

	if filter.MinPercent != nil {
		query += fmt.Sprintf(" AND c.percent_complete >= $%d", argNum)
		args = append(args, *filter.MinPercent)
		argNum++
	}

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_summaries", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count summaries: %w", err)
	}

	query += " ORDER BY c.percent_complete DESC, s.site_id"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var summaries []*models.SiteSummary
	err = r.db.SelectContext(ctx, "get_summaries", &summaries, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get summaries: %w", err)
	}

	return summaries, totalCount, nil
}

// HealthCheck performs a repository health check
func (r *siteRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
