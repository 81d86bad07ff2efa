package database

import "testing"

func TestConfigDSN(t *testing.T) {
	cfg := &Config{
		Host:     "db.internal",
		Port:     5433,
		User:     "streamflow",
		Password: "secret",
		Database: "streamflow",
		SSLMode:  "require",
	}

	want := "host=db.internal port=5433 user=streamflow password=secret dbname=streamflow sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
