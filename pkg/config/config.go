package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// SequenceAllocatorKind selects how event sequence numbers are generated.
// "counter" locks a single counter row for the duration of the transaction
// and yields dense numbering; "serial" uses a native PostgreSQL sequence and
// tolerates skips on rollback.
const (
	SequenceAllocatorCounter = "counter"
	SequenceAllocatorSerial  = "serial"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration
	DatabaseURL string

	// Redis configuration (best-effort event fan-out)
	RedisURL      string
	RedisPassword string

	// External payout provider
	ProviderURL     string
	ProviderAPIKey  string
	ProviderTimeout time.Duration

	// Worker dispatcher
	WorkerConcurrency  int
	WorkerQueueSize    int
	MaxPayoutRetries   int
	RetryBackoffBase   time.Duration
	RetryBackoffCap    time.Duration
	SweepInterval      time.Duration
	ProcessingStaleAge time.Duration

	// Event log
	SequenceAllocator string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		ProviderURL:        getEnv("PROVIDER_URL", ""),
		ProviderAPIKey:     getEnv("PROVIDER_API_KEY", ""),
		ProviderTimeout:    getEnvAsDuration("PROVIDER_TIMEOUT", 30*time.Second),
		WorkerConcurrency:  getEnvAsInt("WORKER_CONCURRENCY", 4),
		WorkerQueueSize:    getEnvAsInt("WORKER_QUEUE_SIZE", 1024),
		MaxPayoutRetries:   getEnvAsInt("MAX_PAYOUT_RETRIES", 3),
		RetryBackoffBase:   getEnvAsDuration("RETRY_BACKOFF_BASE", time.Second),
		RetryBackoffCap:    getEnvAsDuration("RETRY_BACKOFF_CAP", 60*time.Second),
		SweepInterval:      getEnvAsDuration("SWEEP_INTERVAL", 30*time.Second),
		ProcessingStaleAge: getEnvAsDuration("PROCESSING_STALE_AGE", 5*time.Minute),
		SequenceAllocator:  getEnv("SEQUENCE_ALLOCATOR", SequenceAllocatorCounter),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}

	if c.MaxPayoutRetries < 0 {
		return fmt.Errorf("MAX_PAYOUT_RETRIES cannot be negative")
	}

	if c.SequenceAllocator != SequenceAllocatorCounter && c.SequenceAllocator != SequenceAllocatorSerial {
		return fmt.Errorf("SEQUENCE_ALLOCATOR must be %q or %q", SequenceAllocatorCounter, SequenceAllocatorSerial)
	}

	// The provider URL is required in production; development falls back to
	// the sandbox provider.
	if c.ProviderURL == "" && c.IsProduction() {
		return fmt.Errorf("PROVIDER_URL is required in production")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
