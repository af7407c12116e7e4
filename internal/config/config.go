package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction      bool
	ProdOrigins       string
	HTTPAddr          string
	DBDSN             string
	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	BcryptCost        int

	LogLevel  string
	LogFormat string

	Reservation ReservationConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig

	// AMQPURL enables booking event publishing when set.
	AMQPURL string
}

// ReservationConfig tunes the seat reservation transactions.
type ReservationConfig struct {
	LockTimeout         time.Duration
	ReleaseSeatOnCancel bool
}

// RedisConfig describes the Redis connection used for rate limiting.
// An empty Addr disables Redis-backed features.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig configures the token bucket applied to reservation requests.
type RateLimitConfig struct {
	Capacity       int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	var err error

	// Production origin (default: empty)
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	appEnvStr := getEnv("APP_ENV", "dev")
	cfg.IsProduction = appEnvStr == PROD_STRING

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Database DSN is required
	cfg.DBDSN = os.Getenv("DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}

	// JWT secret is required for signing tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// JWT access token TTL, parse as time.Duration (e.g. "15m", "1h").
	cfg.JWTAccessTokenTTL, err = getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TOKEN_TTL: %w", err)
	}

	// Bcrypt cost for password hashing (default: 12)
	cfg.BcryptCost, err = getEnvAsInt("BCRYPT_COST", 12)
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	// Upper bound on how long a reservation waits for a seat row lock.
	cfg.Reservation.LockTimeout, err = getEnvAsDuration("RESERVATION_LOCK_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RESERVATION_LOCK_TIMEOUT: %w", err)
	}
	cfg.Reservation.ReleaseSeatOnCancel, err = getEnvAsBool("RELEASE_SEAT_ON_CANCEL", true)
	if err != nil {
		return nil, fmt.Errorf("invalid RELEASE_SEAT_ON_CANCEL: %w", err)
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB, err = getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.RateLimit.Capacity, err = getEnvAsInt("RATE_LIMIT_CAPACITY", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_CAPACITY: %w", err)
	}
	if cfg.RateLimit.Capacity < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_CAPACITY must be positive")
	}
	cfg.RateLimit.RefillInterval, err = getEnvAsDuration("RATE_LIMIT_REFILL_INTERVAL", time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_INTERVAL: %w", err)
	}
	cfg.RateLimit.TTL, err = getEnvAsDuration("RATE_LIMIT_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_TTL: %w", err)
	}
	cfg.RateLimit.Prefix = getEnv("RATE_LIMIT_PREFIX", "rl")

	cfg.AMQPURL = getEnv("AMQP_URL", "")

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		// Return 0 and a wrapped error to provide context
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid duration: %w", key, valStr, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("env %s must be a positive duration", key)
	}

	return val, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return false, fmt.Errorf("env %s value %q is not a valid bool: %w", key, valStr, err)
	}

	return val, nil
}
