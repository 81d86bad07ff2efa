package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"streamflow-platform/internal/config"
	"streamflow-platform/internal/export"
	"streamflow-platform/internal/models"
	"streamflow-platform/internal/nwis"
	"streamflow-platform/internal/repository"
	"streamflow-platform/internal/services"
	"streamflow-platform/pkg/database"
	"streamflow-platform/pkg/logging"
	"streamflow-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	regions := flag.String("regions", "", "Comma-separated state codes to retrieve (overrides RETRIEVAL_REGIONS)")
	outputDir := flag.String("output-dir", "", "Directory for aligned series and summary CSVs (overrides RETRIEVAL_OUTPUT_DIR)")
	completeDir := flag.String("complete-dir", "", "Directory for complete-site copies (overrides RETRIEVAL_COMPLETE_DIR)")
	startDate := flag.String("start", "", "Window start date YYYY-MM-DD (overrides RETRIEVAL_START_DATE)")
	endDate := flag.String("end", "", "Window end date YYYY-MM-DD (overrides RETRIEVAL_END_DATE)")
	threshold := flag.Float64("threshold", -1, "Completeness threshold percent (overrides RETRIEVAL_THRESHOLD)")
	workers := flag.Int("workers", 0, "Concurrent site workers (overrides RETRIEVAL_WORKERS)")
	store := flag.Bool("store", false, "Persist results to PostgreSQL in addition to CSV output")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	applyFlagOverrides(cfg, *regions, *outputDir, *completeDir, *threshold, *workers)

	if *startDate != "" {
		if cfg.Retrieval.StartDate, err = time.Parse("2006-01-02", *startDate); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -start date %q: expected YYYY-MM-DD\n", *startDate)
			os.Exit(1)
		}
	}
	if *endDate != "" {
		if cfg.Retrieval.EndDate, err = time.Parse("2006-01-02", *endDate); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -end date %q: expected YYYY-MM-DD\n", *endDate)
			os.Exit(1)
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logLevel := logging.InfoLevel
	if cfg.Logging.Level == "debug" {
		logLevel = logging.DebugLevel
	}

	logger := logging.NewStructuredLogger("streamflow-retriever", "1.0.0", logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[RETRIEVER_START] Starting streamflow retrieval batch", logging.Fields{
		"version":      "1.0.0",
		"regions":      cfg.Retrieval.RegionCodes,
		"window_start": cfg.Retrieval.StartDate.Format("2006-01-02"),
		"window_end":   cfg.Retrieval.EndDate.Format("2006-01-02"),
		"threshold":    cfg.Retrieval.Threshold,
		"workers":      cfg.Retrieval.Workers,
		"output_dir":   cfg.Retrieval.OutputDir,
		"store":        *store,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("streamflow_retriever")

	// Output destinations must be writable before any network activity
	for _, dir := range []string{cfg.Retrieval.OutputDir, cfg.Retrieval.CompleteDir} {
		if err := export.EnsureWritable(dir); err != nil {
			logger.Fatal(ctx, "[RETRIEVER_ERROR] Output directory not writable", logging.Fields{
				"dir": dir,
			}, err)
		}
	}

	window, err := models.NewCalendarRange(cfg.Retrieval.StartDate, cfg.Retrieval.EndDate)
	if err != nil {
		logger.Fatal(ctx, "[RETRIEVER_ERROR] Invalid retrieval window", logging.Fields{}, err)
	}

	// Optional persistence
	var repo repository.SiteRepository
	if *store {
		dbConfig := &database.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}

		db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[RETRIEVER_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()

		repo = repository.NewSiteRepository(db, logger, metricsCollector)
	}

	client := nwis.NewHTTPClient(logger, metricsCollector, nwis.WithTimeout(cfg.Retrieval.FetchTimeout))
	writer := export.NewWriter(cfg.Retrieval.OutputDir, cfg.Retrieval.CompleteDir, logger, metricsCollector)
	retrievalService := services.NewRetrievalService(client, writer, repo, logger, metricsCollector)

	result, err := retrievalService.Run(ctx, services.BatchOptions{
		RegionCodes:   cfg.Retrieval.RegionCodes,
		ParameterCode: cfg.Retrieval.ParameterCode,
		Window:        window,
		Threshold:     cfg.Retrieval.Threshold,
		Workers:       cfg.Retrieval.Workers,
	})
	if err != nil {
		logger.Fatal(ctx, "[RETRIEVAL_ERROR] Batch failed", logging.Fields{}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("RETRIEVAL COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Sites:       %d\n", result.TotalSites)
	fmt.Printf("Succeeded:         %d\n", result.Succeeded)
	fmt.Printf("Complete Sites:    %d\n", result.Complete)
	fmt.Printf("Empty Series:      %d\n", result.EmptySeries)
	fmt.Printf("Failed:            %d\n", result.Failed)
	fmt.Printf("Duration:          %v\n", result.Duration)

	if len(result.Summaries) > 0 {
		fmt.Println()
		printSummaryTable(result.Summaries)
	}

	if len(result.Failures) > 0 {
		fmt.Printf("\nFailures (%d):\n", len(result.Failures))
		for i, failure := range result.Failures {
			if i < 10 {
				fmt.Printf("  - %s: %s\n", failure.SiteID, failure.Reason)
			}
		}
		if len(result.Failures) > 10 {
			fmt.Printf("  ... and %d more failures\n", len(result.Failures)-10)
		}
	}

	logger.Info(ctx, "[RETRIEVER_COMPLETE] Batch completed", logging.Fields{
		"total_sites":      result.TotalSites,
		"succeeded":        result.Succeeded,
		"complete":         result.Complete,
		"failed":           result.Failed,
		"duration_seconds": result.Duration.Seconds(),
	})
}

// applyFlagOverrides layers non-empty flag values over the env-derived
// configuration
func applyFlagOverrides(cfg *config.Config, regions, outputDir, completeDir string, threshold float64, workers int) {
	if regions != "" {
		parts := strings.Split(regions, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				list = append(list, strings.ToUpper(trimmed))
			}
		}
		cfg.Retrieval.RegionCodes = list
	}
	if outputDir != "" {
		cfg.Retrieval.OutputDir = outputDir
	}
	if completeDir != "" {
		cfg.Retrieval.CompleteDir = completeDir
	}
	if threshold >= 0 {
		cfg.Retrieval.Threshold = threshold
	}
	if workers > 0 {
		cfg.Retrieval.Workers = workers
	}
}

// printSummaryTable renders the per-site completeness table
func printSummaryTable(summaries []models.SiteSummary) {
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)

	rows := make([][]string, 0, len(summaries))
	for _, summary := range summaries {
		status := "incomplete"
		if summary.IsComplete {
			status = "complete"
		}
		rows = append(rows, []string{
			summary.SiteID,
			summary.RegionCode,
			summary.Name,
			strconv.FormatFloat(summary.PercentComplete, 'f', 1, 64),
			status,
		})
	}

	table.Header([]string{"Site", "State", "Station Name", "Percent", "Status"})
	table.Bulk(rows)
	table.Render()
}
