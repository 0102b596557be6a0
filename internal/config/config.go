package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// HS256 requires keys of at least the hash size (RFC 7518 §3.2); go-jose
// enforces this at signing time, so a shorter secret must fail at startup
// instead of on every login.
const minSecretLength = 32

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AccessTokenSecret  string
	AccessTokenTTL     time.Duration
	RefreshTokenSecret string
	RefreshTokenTTL    time.Duration

	AccessTokenCookie  string
	RefreshTokenCookie string

	AdminEmail    string
	AdminPassword string

	LockoutAttempts int
	LockoutWindow   time.Duration
	RateLimitRPM    int

	TelemetryEndpoint string
	TelemetryInsecure bool
}

// Load reads configuration from environment variables with sane defaults.
// Token lifetimes use compound duration strings such as "15m" or "7d"; a
// malformed or missing lifetime parses to zero.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:        getEnv("APP_ENV", "development"),
		HTTPPort:           getEnv("HTTP_PORT", "3000"),
		ServiceName:        getEnv("SERVICE_NAME", "knowledge-base-auth"),
		ReadHeaderTimeout:  getDuration("HTTP_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownTimeout:    getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		AccessTokenSecret:  os.Getenv("JWT_SECRET"),
		AccessTokenTTL:     ParseCompoundDuration(getEnv("JWT_EXPIRATION_TIME_IN_MINUTES", "15m")),
		RefreshTokenSecret: os.Getenv("JWT_REFRESH_SECRET"),
		RefreshTokenTTL:    ParseCompoundDuration(os.Getenv("JWT_REFRESH_EXPIRATION_TIME_IN_DAYS")),
		AccessTokenCookie:  getEnv("JWT_ACCESS_TOKEN_NAME", "accessToken"),
		RefreshTokenCookie: getEnv("JWT_REFRESH_TOKEN_NAME", "refreshToken"),
		AdminEmail:         strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		LockoutAttempts:    getInt("LOGIN_LOCKOUT_ATTEMPTS", 5),
		LockoutWindow:      getDuration("LOGIN_LOCKOUT_WINDOW", 15*time.Minute),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:  getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AccessTokenSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.AccessTokenSecret) < minSecretLength {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength)
	}
	if cfg.RefreshTokenSecret == "" {
		return Config{}, fmt.Errorf("JWT_REFRESH_SECRET is required")
	}
	if len(cfg.RefreshTokenSecret) < minSecretLength {
		return Config{}, fmt.Errorf("JWT_REFRESH_SECRET must be at least %d bytes", minSecretLength)
	}
	if cfg.RefreshTokenSecret == cfg.AccessTokenSecret {
		return Config{}, fmt.Errorf("JWT_REFRESH_SECRET must differ from JWT_SECRET")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}
