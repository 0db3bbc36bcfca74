package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Denial policies for guarded areas.
const (
	DenialRedirect = "redirect"
	DenialInline   = "inline"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	CORSAllowedOrigins []string

	// APIBaseURL is where the portal reaches the identity API. Empty means in-process.
	APIBaseURL string
	JWTSecret  string
	JWTIssuer  string
	TokenTTL   time.Duration

	RedisURL    string
	DatabaseURL string
	// SeedUsersPath is a YAML file loaded into the in-memory repositories when no database is configured.
	SeedUsersPath string

	CredentialCookie string
	CookieSecure     bool
	CSRFKey          string

	SessionFreshness     time.Duration
	IdentityErrorTTL     time.Duration
	IdentityFetchTimeout time.Duration
	DenialPolicy         string

	RateLimitPerMinute  int
	LoginAttemptsPerMin int
	SweepInterval       time.Duration

	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	tokenTTL, err := parseDurationEnv("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	freshness, err := parseDurationEnv("SESSION_FRESHNESS", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	errorTTL, err := parseDurationEnv("IDENTITY_ERROR_TTL", 10*time.Second)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDurationEnv("IDENTITY_FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := parseDurationEnv("SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}
	loginLimit, err := strconv.Atoi(getEnv("LOGIN_RATE_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATE_LIMIT: %w", err)
	}

	environment := getEnv("ENVIRONMENT", "development")
	cookieSecure, err := parseBoolEnv("COOKIE_SECURE", environment == "production")
	if err != nil {
		return nil, err
	}

	policy := strings.ToLower(getEnv("DENIAL_POLICY", DenialRedirect))
	if policy != DenialRedirect && policy != DenialInline {
		return nil, fmt.Errorf("invalid DENIAL_POLICY: %q (want %s or %s)", policy, DenialRedirect, DenialInline)
	}

	cfg := &Config{
		Environment: environment,
		ServerPort:  port,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),

		APIBaseURL: strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		JWTIssuer:  getEnv("JWT_ISSUER", "academyportal"),
		TokenTTL:   tokenTTL,

		RedisURL:      os.Getenv("REDIS_URL"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SeedUsersPath: os.Getenv("SEED_USERS_PATH"),

		CredentialCookie: getEnv("CREDENTIAL_COOKIE", "token"),
		CookieSecure:     cookieSecure,
		CSRFKey:          os.Getenv("CSRF_KEY"),

		SessionFreshness:     freshness,
		IdentityErrorTTL:     errorTTL,
		IdentityFetchTimeout: fetchTimeout,
		DenialPolicy:         policy,

		RateLimitPerMinute:  rateLimit,
		LoginAttemptsPerMin: loginLimit,
		SweepInterval:       sweepInterval,

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "academyportal"),
	}

	if cfg.Environment == "production" {
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(cfg.CSRFKey) < 32 {
			return nil, fmt.Errorf("CSRF_KEY must be at least 32 bytes in production")
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
