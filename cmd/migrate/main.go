package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"

	"streamflow-platform/internal/config"
)

// schemaTables are the tables the up migration must leave behind. Verified
// after applying so a partially created schema fails here instead of on
// the first retrieval batch.
var schemaTables = []string{"sites", "aligned_observations", "completeness_summaries"}

func main() {
	direction := flag.String("direction", "up", "Apply (up) or roll back (down) the streamflow schema")
	migrationsDir := flag.String("migrations-dir", "migrations", "Directory holding the schema SQL files")
	flag.Parse()

	if *direction != "up" && *direction != "down" {
		fmt.Fprintf(os.Stderr, "Unknown direction %q: use up or down\n", *direction)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Connect to database
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to ping database: %v\n", err)
		os.Exit(1)
	}

	migrationFile := filepath.Join(*migrationsDir, fmt.Sprintf("001_create_schema.%s.sql", *direction))
	content, err := os.ReadFile(migrationFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read migration file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Applying streamflow schema migration: %s\n", migrationFile)

	if _, err := db.Exec(string(content)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute migration: %v\n", err)
		os.Exit(1)
	}

	if *direction == "up" {
		if err := verifySchema(db); err != nil {
			fmt.Fprintf(os.Stderr, "Schema verification failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Schema verified: sites, aligned_observations, completeness_summaries present")
	}

	fmt.Println("Migration completed successfully")
}

// verifySchema confirms every table the retriever and API depend on exists
func verifySchema(db *sql.DB) error {
	for _, table := range schemaTables {
		var regclass sql.NullString
		if err := db.QueryRow("SELECT to_regclass($1)", table).Scan(&regclass); err != nil {
			return fmt.Errorf("checking table %s: %w", table, err)
		}
		if !regclass.Valid {
			return fmt.Errorf("table %s missing after up migration", table)
		}
	}
	return nil
}
