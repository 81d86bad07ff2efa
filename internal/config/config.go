package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"streamflow-platform/internal/models"
)

const dateLayout = "2006-01-02"

var regionCodePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Retrieval RetrievalConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RetrievalConfig holds batch retrieval configuration
type RetrievalConfig struct {
	RegionCodes   []string
	ParameterCode string
	StartDate     time.Time
	EndDate       time.Time
	Threshold     float64
	OutputDir     string
	CompleteDir   string
	Workers       int
	FetchTimeout  time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// LoadConfig loads configuration from environment variables, reading a
// local .env file first when present
func LoadConfig() (*Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "streamflow"),
			Password:        getEnv("DB_PASSWORD", "streamflow"),
			Database:        getEnv("DB_NAME", "streamflow"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Retrieval: RetrievalConfig{
			RegionCodes:   getEnvList("RETRIEVAL_REGIONS", []string{"CA", "OR", "WA", "ID", "NV", "UT", "AZ", "MT", "WY", "CO", "NM"}),
			ParameterCode: getEnv("RETRIEVAL_PARAMETER_CODE", "00060"),
			Threshold:     getEnvFloat("RETRIEVAL_THRESHOLD", 95),
			OutputDir:     getEnv("RETRIEVAL_OUTPUT_DIR", "./data/final"),
			CompleteDir:   getEnv("RETRIEVAL_COMPLETE_DIR", "./data/complete"),
			Workers:       getEnvInt("RETRIEVAL_WORKERS", 4),
			FetchTimeout:  getEnvDuration("RETRIEVAL_FETCH_TIMEOUT", 120*time.Second),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	var err error
	cfg.Retrieval.StartDate, err = getEnvDate("RETRIEVAL_START_DATE", "1970-01-01")
	if err != nil {
		return nil, err
	}
	cfg.Retrieval.EndDate, err = getEnvDate("RETRIEVAL_END_DATE", "2024-12-31")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants. Called once before any site is
// processed; a failure here aborts the batch before network activity
func (c *Config) Validate() error {
	if c.Retrieval.StartDate.After(c.Retrieval.EndDate) {
		return &models.ConfigError{
			Field: "RETRIEVAL_START_DATE",
			Value: c.Retrieval.StartDate.Format(dateLayout),
			Message: fmt.Sprintf("start date is after end date %s",
				c.Retrieval.EndDate.Format(dateLayout)),
		}
	}

	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 100 {
		return &models.ConfigError{
			Field:   "RETRIEVAL_THRESHOLD",
			Value:   strconv.FormatFloat(c.Retrieval.Threshold, 'f', -1, 64),
			Message: "threshold must be within [0, 100]",
		}
	}

	if len(c.Retrieval.RegionCodes) == 0 {
		return &models.ConfigError{
			Field:   "RETRIEVAL_REGIONS",
			Value:   "",
			Message: "at least one region code is required",
		}
	}

	for _, region := range c.Retrieval.RegionCodes {
		if !regionCodePattern.MatchString(region) {
			return &models.ConfigError{
				Field:   "RETRIEVAL_REGIONS",
				Value:   region,
				Message: "region codes must be two letters",
			}
		}
	}

	if c.Retrieval.Workers < 1 {
		return &models.ConfigError{
			Field:   "RETRIEVAL_WORKERS",
			Value:   strconv.Itoa(c.Retrieval.Workers),
			Message: "worker count must be at least 1",
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &models.ConfigError{
			Field:   "SERVER_PORT",
			Value:   strconv.Itoa(c.Server.Port),
			Message: "port must be within [1, 65535]",
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}

func getEnvDate(key, fallback string) (time.Time, error) {
	value := getEnv(key, fallback)

	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, &models.ConfigError{
			Field:   key,
			Value:   value,
			Message: "expected date in YYYY-MM-DD format",
		}
	}
	return parsed, nil
}
