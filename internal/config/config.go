// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the API server and the ingest job.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"].
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// RedisURL enables the driver stats cache when set, e.g. redis://localhost:6379/0.
	RedisURL string

	// StatsCacheTTL is how long cached driver stats live. Defaults to 60s.
	StatsCacheTTL time.Duration

	Ingest Ingest
}

// Ingest configures cmd/ingest.
type Ingest struct {
	IncomingPath string
	HistoryDir   string
	RejectedDir  string

	// PollInterval and WaitTimeout control how long a run waits for the file.
	PollInterval time.Duration
	WaitTimeout  time.Duration

	// Retries is how many times a failed load is retried, RetryDelay apart.
	Retries    int
	RetryDelay time.Duration

	// PageSize is the number of rows sent per database round trip.
	PageSize int

	// Schedule runs the job repeatedly at this interval. Zero runs it once.
	Schedule time.Duration

	// MetricsPort serves /metrics while the job runs. Empty disables it.
	MetricsPort string

	// Location is the zone trip_date values are interpreted in.
	Location *time.Location

	// AutoMigrate applies the embedded migrations before the first run.
	AutoMigrate bool
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config.LoadDotEnv: %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or naming
// the first variable whose value cannot be parsed.
func Load() (Config, error) {
	p := &parser{}
	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CORSOrigins:   splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		RedisURL:      os.Getenv("REDIS_URL"),
		StatsCacheTTL: p.duration("STATS_CACHE_TTL", 60*time.Second),
		Ingest: Ingest{
			IncomingPath: getEnv("INGEST_INCOMING_PATH", "/data/incoming/output.csv"),
			HistoryDir:   getEnv("INGEST_HISTORY_DIR", "/data/history"),
			RejectedDir:  getEnv("INGEST_REJECTED_DIR", "/data/rejected"),
			PollInterval: p.duration("INGEST_POLL_INTERVAL", 30*time.Second),
			WaitTimeout:  p.duration("INGEST_WAIT_TIMEOUT", 5*time.Minute),
			Retries:      p.int("INGEST_RETRIES", 1),
			RetryDelay:   p.duration("INGEST_RETRY_DELAY", 5*time.Minute),
			PageSize:     p.int("INGEST_PAGE_SIZE", 500),
			Schedule:     p.duration("INGEST_SCHEDULE", 0),
			MetricsPort:  os.Getenv("INGEST_METRICS_PORT"),
			Location:     p.location("INGEST_TIMEZONE"),
			AutoMigrate:  p.bool("INGEST_AUTO_MIGRATE", false),
		},
	}
	if p.err != nil {
		return Config{}, p.err
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// parser accumulates the first parse error so Load can read every variable
// in one expression.
type parser struct {
	err error
}

func (p *parser) fail(key, val string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid value %q for %s: %w", val, key, err)
	}
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err == nil && d < 0 {
		err = errors.New("must not be negative")
	}
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err == nil && n < 0 {
		err = errors.New("must not be negative")
	}
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) bool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

// location resolves an IANA zone name; empty or "Local" is the host zone.
func (p *parser) location(key string) *time.Location {
	v := os.Getenv(key)
	if v == "" || v == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		p.fail(key, v, err)
		return time.Local
	}
	return loc
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
