// Package config loads application configuration from defaults, a YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: APP_DATABASE__URL sets database.url.
const EnvPrefix = "APP_"

// Config holds the whole application configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Log          LogConfig          `koanf:"log"`
	JWT          JWTConfig          `koanf:"jwt"`
	CORS         CORSConfig         `koanf:"cors"`
	Reservations ReservationsConfig `koanf:"reservations"`
	Admin        AdminConfig        `koanf:"admin"`
	Redis        RedisConfig        `koanf:"redis"`
	Feed         FeedConfig         `koanf:"feed"`
	RateLimit    RateLimitConfig    `koanf:"rate_limit"`
}

// ServerConfig configures the HTTP servers.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool and migrations.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrationsPath  string        `koanf:"migrations_path"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// JWTConfig configures verification of identity provider tokens.
type JWTConfig struct {
	SecretKey string        `koanf:"secret_key"`
	Issuer    string        `koanf:"issuer"`
	Audience  string        `koanf:"audience"`
	Leeway    time.Duration `koanf:"leeway"`
}

// CORSConfig configures allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// ReservationsConfig configures the reservation lifecycle.
type ReservationsConfig struct {
	// Timezone defines the calendar day used for "today" when validating reservation dates.
	Timezone string `koanf:"timezone"`
}

// AdminConfig configures role administration policy.
type AdminConfig struct {
	PreventSelfDemotion bool `koanf:"prevent_self_demotion"`
}

// RedisConfig configures the cross-instance change feed bridge.
type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Channel  string `koanf:"channel"`
}

// FeedConfig configures change feed subscribers.
type FeedConfig struct {
	BufferSize   int           `koanf:"buffer_size"`
	PingInterval time.Duration `koanf:"ping_interval"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// RateLimitConfig configures per-user limits on reservation submission.
type RateLimitConfig struct {
	SubmitRPS   float64 `koanf:"submit_rps"`
	SubmitBurst int     `koanf:"submit_burst"`
}

// Location returns the configured reservation time zone.
func (c ReservationsConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			RequestTimeout:    30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  60 * time.Second,
			ConnectAttempts: 5,
			MigrationsPath:  "migrations",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			Leeway: 30 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Reservations: ReservationsConfig{
			Timezone: "UTC",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "reservations:changes",
		},
		Feed: FeedConfig{
			BufferSize:   64,
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			SubmitRPS:   1,
			SubmitBurst: 5,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (skipped
// when it does not exist), then APP_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Comma-separated list from the environment
	if raw := k.String("cors.allowed_origins"); raw != "" && strings.Contains(raw, ",") {
		cfg.CORS.AllowedOrigins = splitList(raw)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required values.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	}
	if _, err := c.Reservations.Location(); err != nil {
		errs = append(errs, fmt.Errorf("reservations.timezone: %w", err))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	if c.Feed.BufferSize <= 0 {
		errs = append(errs, errors.New("feed.buffer_size must be positive"))
	}
	if c.RateLimit.SubmitRPS <= 0 {
		errs = append(errs, errors.New("rate_limit.submit_rps must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// envKey maps APP_DATABASE__URL to database.url.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
