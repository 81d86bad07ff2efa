// Package export writes the batch outputs: the site metadata table, one
// aligned-series file per site, the completeness summary, and the
// complete-tier copies. File naming is deterministic and filesystem-safe.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"streamflow-platform/internal/models"
	"streamflow-platform/pkg/logging"
	"streamflow-platform/pkg/metrics"
)

const (
	metadataFileName = "sites_metadata.csv"
	summaryFileName  = "completeness_summary.csv"
	dateLayout       = "2006-01-02"
)

var unsafeNameChars = regexp.MustCompile(`[^\w\-]`)

// SafeFileName replaces every character outside [A-Za-z0-9_-] with an
// underscore so station names can appear in filenames
func SafeFileName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// SiteFileName derives the per-site output filename from region code,
// site id, and sanitized display name. Deterministic for a given site.
func SiteFileName(site models.Site) string {
	return fmt.Sprintf("%s_%s_%s.csv", site.RegionCode, site.SiteID, SafeFileName(site.Name))
}

// EnsureWritable creates the directory if needed and probes it with a
// throwaway write. Called before any fetching begins so an unusable
// destination fails the batch up front.
func EnsureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &models.PersistenceError{Path: dir, Err: err}
	}

	probe := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return &models.PersistenceError{Path: dir, Err: err}
	}
	if err := os.Remove(probe); err != nil {
		return &models.PersistenceError{Path: dir, Err: err}
	}

	return nil
}

// Writer persists batch outputs as CSV files
type Writer struct {
	outputDir   string
	completeDir string
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
}

// NewWriter creates a CSV writer for the two output tiers
func NewWriter(outputDir, completeDir string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Writer {
	return &Writer{
		outputDir:   outputDir,
		completeDir: completeDir,
		logger:      logger,
		metrics:     metricsCollector,
	}
}

// WriteSiteMetadata writes the merged catalog as one row per site
func (w *Writer) WriteSiteMetadata(ctx context.Context, sites []models.Site) (string, error) {
	path := filepath.Join(w.outputDir, metadataFileName)

	rows := make([][]string, 0, len(sites)+1)
	rows = append(rows, []string{"site_id", "station_name", "region_code", "longitude", "latitude"})
	for _, site := range sites {
		rows = append(rows, []string{
			site.SiteID,
			site.Name,
			site.RegionCode,
			formatCoord(site.Longitude),
			formatCoord(site.Latitude),
		})
	}

	if err := w.writeRows(path, rows); err != nil {
		return "", err
	}

	w.logger.Info(ctx, "[EXPORT_METADATA] Site metadata written", logging.Fields{
		"path":       path,
		"site_count": len(sites),
	})

	return path, nil
}

// WriteAlignedSeries writes one site's dense daily series: calendar date,
// value (empty cell when missing), site id, longitude, latitude
func (w *Writer) WriteAlignedSeries(ctx context.Context, site models.Site, aligned models.AlignedSeries) (string, error) {
	path := filepath.Join(w.outputDir, SiteFileName(site))

	rows := make([][]string, 0, len(aligned)+1)
	rows = append(rows, []string{"date", "discharge_cfs", "site_id", "longitude", "latitude"})
	for _, point := range aligned {
		value := ""
		if point.Value != nil {
			value = strconv.FormatFloat(*point.Value, 'f', -1, 64)
		}
		rows = append(rows, []string{
			point.Date.Format(dateLayout),
			value,
			site.SiteID,
			formatCoord(site.Longitude),
			formatCoord(site.Latitude),
		})
	}

	if err := w.writeRows(path, rows); err != nil {
		return "", err
	}

	w.logger.Debug(ctx, "[EXPORT_SERIES] Aligned series written", logging.Fields{
		"path":      path,
		"site_id":   site.SiteID,
		"row_count": len(aligned),
	})

	return path, nil
}

// CopyToComplete duplicates a per-site file into the complete tier
func (w *Writer) CopyToComplete(ctx context.Context, srcPath string) (string, error) {
	dstPath := filepath.Join(w.completeDir, filepath.Base(srcPath))

	src, err := os.Open(srcPath)
	if err != nil {
		w.metrics.RecordExportError("copy_error")
		return "", &models.PersistenceError{Path: srcPath, Err: err}
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		w.metrics.RecordExportError("copy_error")
		return "", &models.PersistenceError{Path: dstPath, Err: err}
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		w.metrics.RecordExportError("copy_error")
		return "", &models.PersistenceError{Path: dstPath, Err: err}
	}

	w.logger.Debug(ctx, "[EXPORT_COMPLETE_COPY] Copied to complete tier", logging.Fields{
		"path": dstPath,
	})

	return dstPath, nil
}

// WriteSummary writes the completeness summary, one row per successfully
// processed site. Percentages are rounded to one decimal here, at the
// presentation boundary.
func (w *Writer) WriteSummary(ctx context.Context, summaries []models.SiteSummary) (string, error) {
	path := filepath.Join(w.outputDir, summaryFileName)

	rows := make([][]string, 0, len(summaries)+1)
	rows = append(rows, []string{"site_id", "station_name", "longitude", "latitude", "percent_complete"})
	for _, s := range summaries {
		rows = append(rows, []string{
			s.SiteID,
			s.Name,
			formatCoord(s.Longitude),
			formatCoord(s.Latitude),
			strconv.FormatFloat(s.PercentComplete, 'f', 1, 64),
		})
	}

	if err := w.writeRows(path, rows); err != nil {
		return "", err
	}

	w.logger.Info(ctx, "[EXPORT_SUMMARY] Completeness summary written", logging.Fields{
		"path":       path,
		"site_count": len(summaries),
	})

	return path, nil
}

// writeRows writes all rows to a CSV file, header included
func (w *Writer) writeRows(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		w.metrics.RecordExportError("create_error")
		return &models.PersistenceError{Path: path, Err: err}
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.WriteAll(rows); err != nil {
		w.metrics.RecordExportError("write_error")
		return &models.PersistenceError{Path: path, Err: err}
	}

	if err := file.Close(); err != nil {
		w.metrics.RecordExportError("write_error")
		return &models.PersistenceError{Path: path, Err: err}
	}

	w.metrics.ExportRowsTotal.Add(float64(len(rows) - 1))

	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
