// Package config loads the daemon configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultDatabaseURL   = "routes.db"
	defaultCheckInterval = 10 * time.Second
	defaultAPIToken      = "this_is_something_secret"
	defaultPort          = "8172"
	defaultMetricsAddr   = ":2112"
)

// Config holds the daemon configuration.
type Config struct {
	// DatabaseURL is the DuckDB database file. Empty selects an
	// in-memory database.
	DatabaseURL string

	// CheckInterval is the reconciler sweep period.
	CheckInterval time.Duration

	// APIToken is the shared bearer secret for the HTTP API.
	APIToken string

	// Port is the API listener port.
	Port string

	// MetricsAddr is the Prometheus listener address. Empty disables
	// the metrics listener.
	MetricsAddr string
}

// Load builds a Config from environment variables, filling defaults for
// anything unset. DATABASE_URL and METRICS_ADDR distinguish unset from
// set-but-empty: DATABASE_URL= selects an in-memory database and
// METRICS_ADDR= disables the metrics listener.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL: defaultDatabaseURL,
		APIToken:    getenv("APITOKEN", defaultAPIToken),
		Port:        getenv("PORT", defaultPort),
		MetricsAddr: defaultMetricsAddr,
	}
	if v, ok := os.LookupEnv("DATABASE_URL"); ok {
		cfg.DatabaseURL = v
	}
	if v, ok := os.LookupEnv("METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}

	interval, err := getenvSeconds("ROUTE_CHECK_INTERVAL", defaultCheckInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.CheckInterval = interval

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Config{}, fmt.Errorf("invalid PORT=%q: %w", cfg.Port, err)
	}
	return cfg, nil
}

// ListenAddr returns the API listen address for Port.
func (c Config) ListenAddr() string {
	return ":" + c.Port
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvSeconds(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("invalid %s=%q: must be positive", key, v)
	}
	return time.Duration(secs) * time.Second, nil
}
