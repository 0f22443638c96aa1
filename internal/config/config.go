// Package config loads the coordinator's startup configuration: the
// session-cookie signing secret, the web base URL used to build device-code
// verification links, the listen address, logging settings, the probe-event
// timeout and the worker count. The store connection settings are not here;
// store.LoadConfigFromEnv reads them. All
// of it comes from the environment, optionally pre-loaded from a .env file
// the way cmd/coordinator's predecessor did it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// defaultProbeEventTimeout is how long a ProbeEvent may sit unanswered
// before the expiry sweep marks it errored, per spec.md's suspension-point
// guidance for the probe round trip.
const defaultProbeEventTimeout = 10 * time.Minute

// Config is the coordinator's resolved startup configuration. Store
// connectivity itself is loaded separately by store.LoadConfigFromEnv —
// this Config only covers what the Admission API and its ambient stack
// need directly.
type Config struct {
	// CookieSecret signs the session cookie the Admission API trusts to
	// extract a user id. Session cookie issuance itself is out of scope;
	// this secret only has to match whatever issued it.
	CookieSecret string

	// WebBaseURL is prefixed onto the device-code verification path to
	// build the verification_uri returned by POST /api/auth/device.
	WebBaseURL string

	// HTTPAddr is the address the Admission API listens on.
	HTTPAddr string

	// LogLevel and LogFilePath configure the process-wide slog handler.
	// LogFilePath empty means log to stderr.
	LogLevel    slog.Level
	LogFilePath string

	// ProbeEventTimeout bounds how long a dispatched ProbeEvent waits for a
	// result before the expiry sweep marks it errored.
	ProbeEventTimeout time.Duration

	// WorkerConcurrency is the Durable Task Runtime's worker pool size.
	WorkerConcurrency int
}

// Load reads configuration from the environment, first loading envPath (a
// .env file) if present. A missing .env file is not an error — it's normal
// in containerized deployments where the environment is already populated.
func Load(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	cookieSecret := os.Getenv("SESSION_COOKIE_SECRET")
	if cookieSecret == "" {
		return nil, fmt.Errorf("config: SESSION_COOKIE_SECRET is required")
	}

	cfg := &Config{
		CookieSecret:      cookieSecret,
		WebBaseURL:        getEnv("WEB_BASE_URL", "http://localhost:8080"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		LogLevel:          parseLevel(getEnv("LOG_LEVEL", "info")),
		LogFilePath:       os.Getenv("LOG_FILE_PATH"),
		ProbeEventTimeout: defaultProbeEventTimeout,
		WorkerConcurrency: 2,
	}

	if v := os.Getenv("PROBE_EVENT_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ProbeEventTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WorkerConcurrency = n
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
