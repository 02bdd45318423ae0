package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Config holds all application configuration.
type Config struct {
	DBDriver string // sqlite or postgres
	DBDSN    string
	Addr     string

	Interval     time.Duration
	FeedURL      string
	FeedAPIKey   string
	FeedFile     string
	FeedTimeout  time.Duration
	FeedLookback time.Duration

	DispatchWorkers int
	UserPageSize    int
	ProductPageSize int

	WebhookURL string
	LogMode    string

	Tracing          bool
	TraceSampleRatio float64

	// MockMode replaces the NVD feed with synthetic CVEs.
	MockMode     bool
	MockScenario string
	MockSeed     int64
}

// Load builds a Config from environment variables. Flags registered with
// BindFlags override these values once the flag set is parsed.
func Load() *Config {
	cfg := &Config{}

	cfg.DBDriver = getEnv("CVEWATCH_DB_DRIVER", "sqlite")
	cfg.DBDSN = getEnv("CVEWATCH_DB_DSN", "")
	cfg.Addr = getEnv("CVEWATCH_ADDR", ":8080")

	cfg.Interval = getEnvDuration("CVEWATCH_INTERVAL", 15*time.Minute)
	cfg.FeedURL = getEnv("CVEWATCH_FEED_URL", "https://services.nvd.nist.gov/rest/json/cves/2.0")
	cfg.FeedAPIKey = getEnv("CVEWATCH_FEED_API_KEY", "")
	cfg.FeedFile = getEnv("CVEWATCH_FEED_FILE", "")
	cfg.FeedTimeout = getEnvDuration("CVEWATCH_FEED_TIMEOUT", 2*time.Minute)
	cfg.FeedLookback = getEnvDuration("CVEWATCH_FEED_LOOKBACK", 24*time.Hour)

	cfg.DispatchWorkers = getEnvInt("CVEWATCH_DISPATCH_WORKERS", 4)
	cfg.UserPageSize = getEnvInt("CVEWATCH_USER_PAGE_SIZE", 200)
	cfg.ProductPageSize = getEnvInt("CVEWATCH_PRODUCT_PAGE_SIZE", 500)

	cfg.WebhookURL = getEnv("CVEWATCH_WEBHOOK_URL", "")
	cfg.LogMode = getEnv("CVEWATCH_LOG_MODE", "development")
	cfg.Tracing = getEnvBool("CVEWATCH_TRACING", false)
	cfg.TraceSampleRatio = getEnvFloat("CVEWATCH_TRACE_SAMPLE_RATIO", 1.0)

	cfg.MockMode = getEnvBool("CVEWATCH_MOCK", false)
	cfg.MockScenario = getEnv("CVEWATCH_MOCK_SCENARIO", "default")
	cfg.MockSeed = int64(getEnvInt("CVEWATCH_MOCK_SEED", 1))

	return cfg
}

// BindFlags registers command line overrides on fs.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.DBDriver, "db-driver", c.DBDriver, "Database driver (sqlite or postgres)")
	fs.StringVar(&c.DBDSN, "db", c.DBDSN, "Database DSN (SQLite path or PostgreSQL connection string)")
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP server address")
	fs.DurationVar(&c.Interval, "interval", c.Interval, "Pipeline interval")
	fs.StringVar(&c.FeedURL, "feed-url", c.FeedURL, "NVD CVE API endpoint")
	fs.StringVar(&c.FeedAPIKey, "feed-api-key", c.FeedAPIKey, "NVD API key")
	fs.StringVar(&c.FeedFile, "feed-file", c.FeedFile, "Read CVEs from a local NVD JSON file instead of the API")
	fs.DurationVar(&c.FeedTimeout, "feed-timeout", c.FeedTimeout, "Timeout for one feed fetch")
	fs.DurationVar(&c.FeedLookback, "feed-lookback", c.FeedLookback, "Window fetched on the first cycle")
	fs.IntVar(&c.DispatchWorkers, "workers", c.DispatchWorkers, "Parallel dispatch workers")
	fs.IntVar(&c.UserPageSize, "user-page-size", c.UserPageSize, "Users loaded per dispatch page")
	fs.IntVar(&c.ProductPageSize, "product-page-size", c.ProductPageSize, "Products loaded per expansion page")
	fs.StringVar(&c.WebhookURL, "webhook-url", c.WebhookURL, "Deliver notifications to this URL (empty logs them)")
	fs.StringVar(&c.LogMode, "log-mode", c.LogMode, "Log mode (development or production)")
	fs.BoolVar(&c.Tracing, "tracing", c.Tracing, "Export OpenTelemetry traces to stdout")
	fs.Float64Var(&c.TraceSampleRatio, "trace-sample-ratio", c.TraceSampleRatio, "Fraction of cycles traced (0 to 1)")
	fs.BoolVar(&c.MockMode, "mock", c.MockMode, "Use a synthetic CVE feed")
	fs.StringVar(&c.MockScenario, "mock-scenario", c.MockScenario, "Synthetic feed scenario (default, crowded, quiet)")
	fs.Int64Var(&c.MockSeed, "mock-seed", c.MockSeed, "Seed for the synthetic feed")
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch strings.ToLower(c.DBDriver) {
	case "sqlite":
		if c.DBDSN == "" {
			c.DBDSN = getDefaultDBPath()
		}
	case "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("postgres driver requires a DSN")
		}
	default:
		return fmt.Errorf("unsupported db driver %q", c.DBDriver)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("trace sample ratio must be within [0, 1]")
	}
	if c.DispatchWorkers < 1 {
		c.DispatchWorkers = 1
	}
	if c.UserPageSize < 1 {
		c.UserPageSize = 200
	}
	if c.ProductPageSize < 1 {
		c.ProductPageSize = 500
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getDefaultDBPath returns the default database path in user's home directory.
// Creates the directory if it doesn't exist.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return "cvewatch.db"
	}

	dir := filepath.Join(home, ".cvewatch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Could not create .cvewatch directory, using current dir: %v", err)
		return "cvewatch.db"
	}

	return filepath.Join(dir, "cvewatch.db")
}
