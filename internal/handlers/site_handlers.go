package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"streamflow-platform/internal/repository"
	"streamflow-platform/internal/services"
	"streamflow-platform/pkg/logging"
	"streamflow-platform/pkg/metrics"
)

// SiteHandler handles the read API over persisted batch results
type SiteHandler struct {
	summaryService *services.SummaryService
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
}

// NewSiteHandler creates a new site handler
func NewSiteHandler(
	summaryService *services.SummaryService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *SiteHandler {
	return &SiteHandler{
		summaryService: summaryService,
		logger:         logger,
		metrics:        metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// ListSites handles GET /api/sites
func (h *SiteHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/sites").Observe(duration.Seconds())
	}()

	page, limit := parsePagination(r)
	offset := (page - 1) * limit

	filter := repository.SiteFilter{
		Limit:  limit,
		Offset: offset,
	}

	if region := r.URL.Query().Get("region_code"); region != "" {
		filter.RegionCode = &region
	}

	sites, total, err := h.summaryService.ListSites(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_SITES_ERROR] Failed to list sites", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/sites")
		h.sendError(w, r, "failed to retrieve sites", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/sites", "GET", "200")
	h.sendJSON(w, paginate(sites, total, page, limit), http.StatusOK)
}

// GetSiteSeries handles GET /api/sites/{site_id}/series
func (h *SiteHandler) GetSiteSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/sites/series").Observe(duration.Seconds())
	}()

	siteID := mux.Vars(r)["site_id"]

	var startDate, endDate *time.Time
	if s := r.URL.Query().Get("start_date"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			h.sendError(w, r, "invalid start_date format, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		startDate = &parsed
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			h.sendError(w, r, "invalid end_date format, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		endDate = &parsed
	}

	if _, err := h.summaryService.GetSite(ctx, siteID); err != nil {
		if _, ok := err.(*repository.NotFoundError); ok {
			h.sendError(w, r, "site not found", http.StatusNotFound)
			return
		}
		h.metrics.RecordAPIError("internal_error", "/api/sites/series")
		h.sendError(w, r, "failed to retrieve site", http.StatusInternalServerError)
		return
	}

	observations, err := h.summaryService.GetAlignedSeries(ctx, siteID, startDate, endDate)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_SERIES_ERROR] Failed to get aligned series", logging.Fields{
			"site_id": siteID,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/sites/series")
		h.sendError(w, r, "failed to retrieve aligned series", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/sites/series", "GET", "200")
	h.sendJSON(w, map[string]interface{}{
		"site_id": siteID,
		"series":  observations,
	}, http.StatusOK)
}

// GetCompleteness handles GET /api/completeness
func (h *SiteHandler) GetCompleteness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/completeness").Observe(duration.Seconds())
	}()

	page, limit := parsePagination(r)
	offset := (page - 1) * limit

	filter := repository.SummaryFilter{
		Limit:  limit,
		Offset: offset,
	}

	if r.URL.Query().Get("complete") == "true" {
		filter.CompleteOnly = true
	}

	if s := r.URL.Query().Get("min_percent"); s != "" {
		minPercent, err := strconv.ParseFloat(s, 64)
		if err != nil || minPercent < 0 || minPercent > 100 {
			h.sendError(w, r, "invalid min_percent, expected number in [0, 100]", http.StatusBadRequest)
			return
		}
		filter.MinPercent = &minPercent
	}

	summaries, total, err := h.summaryService.GetSummaries(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_COMPLETENESS_ERROR] Failed to get summaries", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/completeness")
		h.sendError(w, r, "failed to retrieve completeness summaries", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/completeness", "GET", "200")
	h.sendJSON(w, paginate(summaries, total, page, limit), http.StatusOK)
}

// HealthCheck handles GET /health
func (h *SiteHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.summaryService.HealthCheck(ctx); err != nil {
		status["status"] = "degraded"
		h.logger.Error(ctx, "[HEALTH_CHECK_ERROR] Repository unavailable", logging.Fields{}, err)
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// parsePagination reads page and limit query params with defaults
func parsePagination(r *http.Request) (int, int) {
	page := 1
	limit := 100

	if s := r.URL.Query().Get("page"); s != "" {
		if p, err := strconv.Atoi(s); err == nil && p > 0 {
			page = p
		}
	}

	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	return page, limit
}

func paginate(data interface{}, total, page, limit int) PaginatedResponse {
	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
}

// sendJSON sends a JSON response
func (h *SiteHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *SiteHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all API routes
func (h *SiteHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/sites", h.ListSites).Methods("GET")
	router.HandleFunc("/api/sites/{site_id}/series", h.GetSiteSeries).Methods("GET")
	router.HandleFunc("/api/completeness", h.GetCompleteness).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
