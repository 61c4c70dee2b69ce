// Package config loads application configuration from environment
// variables, optionally seeded from .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env       string `validate:"required"`                           // APP_ENV (development, staging, production)
	Port      string `validate:"required,numeric"`                   // APP_PORT
	LogLevel  string `validate:"oneof=debug info warn warning error"` // LOG_LEVEL
	LogFormat string `validate:"oneof=text json"`                    // LOG_FORMAT

	StorageDriver string `validate:"oneof=memory mysql"`              // STORAGE_DRIVER
	DBUser        string `validate:"required_if=StorageDriver mysql"` // DB_USER
	DBPass        string // DB_PASS (empty allowed)
	DBHost        string `validate:"required_if=StorageDriver mysql"` // DB_HOST
	DBPort        string `validate:"required_if=StorageDriver mysql"` // DB_PORT
	DBName        string `validate:"required_if=StorageDriver mysql"` // DB_NAME
	SeedDemoData  bool   // SEED_DEMO_DATA

	JWTSecret     string // JWT_SECRET; bearer identity is disabled when empty
	AccessTTLMin  int    `validate:"min=1"`    // ACCESS_TOKEN_TTL_MIN
	DefaultUserID string `validate:"required"` // DEFAULT_USER_ID

	AppID            string        // APP_ID
	DevPortalAPIKey  string        // DEV_PORTAL_API_KEY
	WorldcoinBaseURL string        `validate:"required,url"` // WORLDCOIN_BASE_URL
	VerifyTimeout    time.Duration `validate:"gt=0"`         // VERIFY_TIMEOUT
	MockVerification bool          // MOCK_VERIFICATION

	TreasuryAddress     string `validate:"required"`                             // TREASURY_ADDRESS
	LedgerEventsEnabled bool   // LEDGER_EVENTS_ENABLED
	RabbitURL           string `validate:"required_if=LedgerEventsEnabled true"` // RABBITMQ_URL
	LedgerLogPath       string `validate:"required"`                             // LEDGER_LOG_PATH
	LedgerPollSpec      string // LEDGER_POLL_SPEC; empty disables the poller

	SentryDSN string // SENTRY_DSN

	Redis     RedisConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// IsDevelopment reports whether the service runs in the development
// environment.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development") || strings.EqualFold(c.Env, "dev")
}

// VerificationConfigured reports whether credentials for the external
// verification service are present.
func (c Config) VerificationConfigured() bool {
	return c.AppID != "" && c.DevPortalAPIKey != ""
}

// Load reads .env files (missing files are ignored), then environment
// variables, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load(".env.local", ".env")

	env := envStr("APP_ENV", "development")
	cfg := Config{
		Env:       env,
		Port:      envStr("APP_PORT", "5000"),
		LogLevel:  strings.ToLower(envStr("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(envStr("LOG_FORMAT", "text")),

		StorageDriver: strings.ToLower(envStr("STORAGE_DRIVER", "memory")),
		DBUser:        os.Getenv("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"),
		DBHost:        envStr("DB_HOST", "localhost"),
		DBPort:        envStr("DB_PORT", "3306"),
		DBName:        os.Getenv("DB_NAME"),
		SeedDemoData:  envBool("SEED_DEMO_DATA", true),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		AccessTTLMin:  envInt("ACCESS_TOKEN_TTL_MIN", 60),
		DefaultUserID: envStr("DEFAULT_USER_ID", "demo-user-1"),

		AppID:            os.Getenv("APP_ID"),
		DevPortalAPIKey:  os.Getenv("DEV_PORTAL_API_KEY"),
		WorldcoinBaseURL: strings.TrimRight(envStr("WORLDCOIN_BASE_URL", "https://developer.worldcoin.org"), "/"),
		VerifyTimeout:    envDur("VERIFY_TIMEOUT", 10*time.Second),

		TreasuryAddress:     envStr("TREASURY_ADDRESS", "0x742d35cc6639c0532fda7df8e0fd7b30a9b7a34c"),
		LedgerEventsEnabled: envBool("LEDGER_EVENTS_ENABLED", false),
		RabbitURL:           os.Getenv("RABBITMQ_URL"),
		LedgerLogPath:       envStr("LEDGER_LOG_PATH", "logs/ledger.log"),
		LedgerPollSpec:      envStr("LEDGER_POLL_SPEC", "@every 30s"),

		SentryDSN: os.Getenv("SENTRY_DSN"),

		Redis:     LoadRedisConfig(),
		Cache:     LoadCacheConfig(),
		RateLimit: LoadRateLimitConfig(),
	}
	cfg.MockVerification = envBool("MOCK_VERIFICATION", cfg.IsDevelopment())

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
