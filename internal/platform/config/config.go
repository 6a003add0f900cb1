package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	Server     Server
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	JWT        JWTConfig
	Dispatch   DispatchConfig
	Lock       LockConfig
	Log        LogConfig
	Extraction ExtractionConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects Postgres stores when URL is set; otherwise the
// in-memory stores are used.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig enables the distributed lock when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the audit event sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers     []string
	EventsTopic string
}

type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
}

// DispatchConfig bounds notification fan-out.
type DispatchConfig struct {
	Workers          int
	RecipientTimeout time.Duration
}

type LockConfig struct {
	TTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// ExtractionConfig points at the external text extractor. Without a URL
// every attachment gets the placeholder.
type ExtractionConfig struct {
	URL         string
	Placeholder string
	Timeout     time.Duration
}

const defaultSigningKey = "dev-secret-key-change-in-production"

// Load reads optional .env files and then builds Config from the environment.
// Missing files are ignored; variables already set in the environment win.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []error
	cfg := Config{
		Server: Server{
			Addr:            getString("DOCCONTROL_ADDR", ":8080"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getInt("DATABASE_MAX_OPEN_CONNS", 20, &errs),
			MaxIdleConns: getInt("DATABASE_MAX_IDLE_CONNS", 5, &errs),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			EventsTopic: getString("KAFKA_EVENTS_TOPIC", "doccontrol.events"),
		},
		JWT: JWTConfig{
			// Use a default for development - should be overridden in production
			SigningKey: getString("JWT_SIGNING_KEY", defaultSigningKey),
			Issuer:     getString("JWT_ISSUER", "doccontrol"),
			Audience:   getString("JWT_AUDIENCE", "doccontrol-api"),
		},
		Dispatch: DispatchConfig{
			Workers:          getInt("DISPATCH_WORKERS", 8, &errs),
			RecipientTimeout: getDuration("DISPATCH_RECIPIENT_TIMEOUT", 2*time.Second, &errs),
		},
		Lock: LockConfig{
			TTL: getDuration("LOCK_TTL", 30*time.Second, &errs),
		},
		Log: LogConfig{
			Level:  getString("LOG_LEVEL", "info"),
			Format: getString("LOG_FORMAT", "json"),
		},
		Extraction: ExtractionConfig{
			URL:         os.Getenv("EXTRACTION_URL"),
			Placeholder: getString("EXTRACTION_PLACEHOLDER", "[text extraction unavailable]"),
			Timeout:     getDuration("EXTRACTION_TIMEOUT", 5*time.Second, &errs),
		},
	}
	if cfg.Dispatch.Workers < 1 {
		errs = append(errs, fmt.Errorf("DISPATCH_WORKERS must be positive, got %d", cfg.Dispatch.Workers))
	}
	if cfg.Dispatch.RecipientTimeout <= 0 {
		errs = append(errs, errors.New("DISPATCH_RECIPIENT_TIMEOUT must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// UsesDefaultSigningKey reports whether the development signing key is active.
func (c Config) UsesDefaultSigningKey() bool {
	return c.JWT.SigningKey == defaultSigningKey
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
