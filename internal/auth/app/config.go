package app

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/lanternauth/lantern/pkg/jwtx"
)

type Config struct {
	SigningKey    string // Required: base64 HMAC-SHA512 signing key (64+ bytes decoded)
	EncryptionKey string // Required: base64 AES-128 key wrapping key (exactly 16 bytes decoded)

	Issuer        string        // Issuer claim for tokens (default: lantern)
	Audience      string        // Audience claim for tokens (default: "*")
	TokenLifetime time.Duration // Access token lifetime (default: 1560 minutes)
	ClockSkew     time.Duration // Leeway for exp/nbf checks (default: 0)

	ChallengeScheme     string // WWW-Authenticate scheme (default: Bearer)
	IncludeErrorDetails bool   // Include error details in challenges (default: true)
	SaveToken           bool   // Attach the raw token to successful results (default: true)

	RefreshStore string // Refresh token backend: sqlite or redis (default: sqlite)
	RedisAddr    string // Redis address, required when RefreshStore is redis

	DatabaseFile        string        // Path to SQLite database file (default: ./lantern.db)
	PepperFile          string        // Path to password hashing pepper file (default: ./pepper)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		SigningKey:    os.Getenv("LANTERN_SIGNING_KEY"),
		EncryptionKey: os.Getenv("LANTERN_ENCRYPTION_KEY"),

		Issuer:        getEnvOrDefault("LANTERN_ISSUER", "lantern"),
		Audience:      getEnvOrDefault("LANTERN_AUDIENCE", jwtx.WildcardAudience),
		TokenLifetime: getEnvDurationOrDefault("LANTERN_TOKEN_LIFETIME", jwtx.DefaultTokenLifetimeMinutes*time.Minute),
		ClockSkew:     getEnvDurationOrDefault("LANTERN_CLOCK_SKEW", 0),

		ChallengeScheme:     getEnvOrDefault("LANTERN_CHALLENGE_SCHEME", "Bearer"),
		IncludeErrorDetails: getEnvBoolOrDefault("LANTERN_INCLUDE_ERROR_DETAILS", true),
		SaveToken:           getEnvBoolOrDefault("LANTERN_SAVE_TOKEN", true),

		RefreshStore: getEnvOrDefault("LANTERN_REFRESH_STORE", "sqlite"),
		RedisAddr:    os.Getenv("LANTERN_REDIS_ADDR"),

		DatabaseFile:        getEnvOrDefault("LANTERN_DATABASE_FILE", "lantern.db"),
		PepperFile:          getEnvOrDefault("LANTERN_PEPPER_FILE", "pepper"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Keys decodes and validates the configured key material. Both keys are
// required; there are no generated fallbacks since tokens must survive
// restarts and be shared across replicas.
func (c Config) Keys() (signing, encryption []byte, err error) {
	if c.SigningKey == "" {
		return nil, nil, errors.New("LANTERN_SIGNING_KEY is required")
	}
	if c.EncryptionKey == "" {
		return nil, nil, errors.New("LANTERN_ENCRYPTION_KEY is required")
	}

	signing, err = base64.StdEncoding.DecodeString(c.SigningKey)
	if err != nil {
		return nil, nil, fmt.Errorf("LANTERN_SIGNING_KEY is not valid base64: %w", err)
	}
	encryption, err = base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("LANTERN_ENCRYPTION_KEY is not valid base64: %w", err)
	}
	return signing, encryption, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Duration syntax first (e.g. "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
