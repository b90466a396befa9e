package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration values used by the backend service.
type Config struct {
	// ServerAddress is the host:port pair the HTTP server listens on. Defaults to ":18111".
	ServerAddress string

	// DatabaseURL is the Postgres DSN used by database/sql. When empty the
	// service keeps plans and payments in memory.
	DatabaseURL string

	// StripeSecretKey enables the payment gateway. When empty, charge token
	// requests answer 503.
	StripeSecretKey string

	// StripeAPIURL overrides the Stripe API base URL.
	StripeAPIURL string

	GatewayTimeout          time.Duration
	GatewayFailureThreshold int
	GatewayOpenTimeout      time.Duration

	LogLevel  string
	LogFormat string
}

const (
	defaultServerAddress           = ":18111"
	defaultGatewayTimeout          = 10 * time.Second
	defaultGatewayFailureThreshold = 5
	defaultGatewayOpenTimeout      = 30 * time.Second
	defaultLogLevel                = "info"
	defaultLogFormat               = "json"

	envServerAddress           = "BACKEND_ADDR"
	envDatabaseURL             = "DATABASE_URL"
	envStripeSecretKey         = "STRIPE_SECRET_KEY"
	envStripeAPIURL            = "STRIPE_API_URL"
	envGatewayTimeout          = "GATEWAY_TIMEOUT"
	envGatewayFailureThreshold = "GATEWAY_FAILURE_THRESHOLD"
	envGatewayOpenTimeout      = "GATEWAY_OPEN_TIMEOUT"
	envLogLevel                = "LOG_LEVEL"
	envLogFormat               = "LOG_FORMAT"
)

// LoadDotEnv loads .env-style files for local development. Missing files are
// ignored and variables already present in the environment win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{"../.env", ".env"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// Load reads configuration from environment variables, applies defaults, and returns
// a Config structure. Malformed values return an error.
func Load() (Config, error) {
	cfg := Config{
		ServerAddress:   firstNonEmpty(os.Getenv(envServerAddress), defaultServerAddress),
		DatabaseURL:     strings.TrimSpace(os.Getenv(envDatabaseURL)),
		StripeSecretKey: strings.TrimSpace(os.Getenv(envStripeSecretKey)),
		StripeAPIURL:    strings.TrimSpace(os.Getenv(envStripeAPIURL)),
		LogLevel:        strings.ToLower(firstNonEmpty(os.Getenv(envLogLevel), defaultLogLevel)),
		LogFormat:       strings.ToLower(firstNonEmpty(os.Getenv(envLogFormat), defaultLogFormat)),
	}

	var err error
	if cfg.GatewayTimeout, err = durationEnv(envGatewayTimeout, defaultGatewayTimeout); err != nil {
		return Config{}, err
	}
	if cfg.GatewayOpenTimeout, err = durationEnv(envGatewayOpenTimeout, defaultGatewayOpenTimeout); err != nil {
		return Config{}, err
	}
	if cfg.GatewayFailureThreshold, err = intEnv(envGatewayFailureThreshold, defaultGatewayFailureThreshold); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL != "" {
		if _, err := url.Parse(cfg.DatabaseURL); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envDatabaseURL, err)
		}
	}
	if cfg.StripeAPIURL != "" {
		u, err := url.Parse(cfg.StripeAPIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return Config{}, fmt.Errorf("invalid %s: %q", envStripeAPIURL, cfg.StripeAPIURL)
		}
	}

	switch cfg.LogFormat {
	case "json", "console":
	default:
		return Config{}, fmt.Errorf("invalid %s: %q (want json or console)", envLogFormat, cfg.LogFormat)
	}

	return cfg, nil
}

// UseMemoryStore reports whether no database is configured.
func (c Config) UseMemoryStore() bool {
	return c.DatabaseURL == ""
}

// GatewayEnabled reports whether a Stripe key is configured.
func (c Config) GatewayEnabled() bool {
	return c.StripeSecretKey != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}
