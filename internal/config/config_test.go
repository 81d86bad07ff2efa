package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamflow-platform/internal/models"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "00060", cfg.Retrieval.ParameterCode)
	assert.Equal(t, 95.0, cfg.Retrieval.Threshold)
	assert.Len(t, cfg.Retrieval.RegionCodes, 11)
	assert.Equal(t, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Retrieval.StartDate)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), cfg.Retrieval.EndDate)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_REGIONS", "CA, OR")
	t.Setenv("RETRIEVAL_THRESHOLD", "80")
	t.Setenv("RETRIEVAL_START_DATE", "2000-01-01")
	t.Setenv("RETRIEVAL_END_DATE", "2000-12-31")
	t.Setenv("RETRIEVAL_WORKERS", "8")
	t.Setenv("DB_PORT", "5433")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"CA", "OR"}, cfg.Retrieval.RegionCodes)
	assert.Equal(t, 80.0, cfg.Retrieval.Threshold)
	assert.Equal(t, 8, cfg.Retrieval.Workers)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Retrieval.StartDate)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigBadDate(t *testing.T) {
	t.Setenv("RETRIEVAL_START_DATE", "01/02/2000")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.IsType(t, &models.ConfigError{}, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults valid",
			mutate: func(*Config) {},
		},
		{
			name: "start after end",
			mutate: func(c *Config) {
				c.Retrieval.StartDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
				c.Retrieval.EndDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			},
			wantErr: true,
		},
		{
			name:    "threshold below range",
			mutate:  func(c *Config) { c.Retrieval.Threshold = -0.1 },
			wantErr: true,
		},
		{
			name:    "threshold above range",
			mutate:  func(c *Config) { c.Retrieval.Threshold = 100.1 },
			wantErr: true,
		},
		{
			name:   "threshold boundary values valid",
			mutate: func(c *Config) { c.Retrieval.Threshold = 100 },
		},
		{
			name:    "no regions",
			mutate:  func(c *Config) { c.Retrieval.RegionCodes = nil },
			wantErr: true,
		},
		{
			name:    "malformed region code",
			mutate:  func(c *Config) { c.Retrieval.RegionCodes = []string{"CA", "C4"} },
			wantErr: true,
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Retrieval.Workers = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.IsType(t, &models.ConfigError{}, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
