// Package config loads service settings from an optional YAML file, an
// optional .env file and the process environment, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"routeplanner/internal/model"
)

type Config struct {
	Port     string         `yaml:"port"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Rate     RateConfig     `yaml:"rate"`
	Webhooks WebhookConfig  `yaml:"webhooks"`
	Auth     AuthConfig     `yaml:"auth"`
	// Solver holds service-wide solver defaults. Tenant overrides and
	// request config are overlaid on top.
	Solver model.SolveConfig `yaml:"solver"`
}

type DatabaseConfig struct {
	// Driver is "pgx" or "sqlite". Empty with an empty URL selects the in-memory store.
	Driver  string `yaml:"driver"`
	URL     string `yaml:"url"`
	Migrate bool   `yaml:"migrate"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// RateConfig limits requests per tenant. RPS 0 disables limiting.
type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type WebhookConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	PollInterval time.Duration `yaml:"pollInterval"`
	Timeout      time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	// Mode is "dev" (tenant:role bearer tokens) or "hmac" (HS256 JWT).
	Mode       string `yaml:"mode"`
	HMACSecret string `yaml:"hmacSecret"`
}

// Default returns the built-in settings.
func Default() *Config {
	penalty := 10000.0
	return &Config{
		Port:     "8080",
		Database: DatabaseConfig{Migrate: true},
		Rate:     RateConfig{RPS: 0, Burst: 20},
		Webhooks: WebhookConfig{MaxAttempts: 10, PollInterval: time.Second, Timeout: 5 * time.Second},
		Auth:     AuthConfig{Mode: "dev"},
		Solver: model.SolveConfig{
			MaxIterations:     2000,
			ParallelRuns:      1,
			UnassignedPenalty: &penalty,
			Metric:            "euclidean",
		},
	}
}

// Load reads .env (if present), then the YAML file named by
// ROUTEPLANNER_CONFIG (default config.yaml, optional), then environment
// overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found (using environment variables)")
	}
	path := os.Getenv("ROUTEPLANNER_CONFIG")
	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return FromEnv()
	}
	return cfg, err
}

// FromEnv applies environment overrides to the defaults.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads path over the defaults and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("DATABASE_URL", &c.Database.URL)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("REDIS_URL", &c.Redis.URL)
	str("AUTH_MODE", &c.Auth.Mode)
	str("AUTH_HMAC_SECRET", &c.Auth.HMACSecret)
	str("SOLVER_METRIC", &c.Solver.Metric)

	var errs []error
	atoi := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	atoi("RATE_BURST", &c.Rate.Burst)
	atoi("WEBHOOK_MAX_ATTEMPTS", &c.Webhooks.MaxAttempts)
	atoi("SOLVER_MAX_ITERATIONS", &c.Solver.MaxIterations)
	atoi("SOLVER_MAX_DURATION_MS", &c.Solver.MaxDurationMs)
	atoi("SOLVER_PARALLEL_RUNS", &c.Solver.ParallelRuns)

	if v := os.Getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: RATE_RPS: %w", err))
		} else {
			c.Rate.RPS = f
		}
	}
	if v := os.Getenv("DB_MIGRATE"); v != "" {
		c.Database.Migrate = v != "false"
	}
	if v := os.Getenv("SOLVER_RANDOM_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: SOLVER_RANDOM_SEED: %w", err))
		} else {
			c.Solver.RandomSeed = &n
		}
	}
	if v := os.Getenv("SOLVER_RETURN_TO_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: SOLVER_RETURN_TO_START: %w", err))
		} else {
			c.Solver.ReturnToStart = &b
		}
	}
	return errors.Join(errs...)
}

// Validate checks ranges. Solver values are checked again by the solver.
func (c *Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("config: port is required")
	case c.Database.URL != "" && c.Database.Driver != "" && c.Database.Driver != "pgx" && c.Database.Driver != "sqlite":
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	case c.Rate.RPS < 0 || c.Rate.Burst < 0:
		return errors.New("config: rate limits must be non-negative")
	case c.Webhooks.MaxAttempts < 1:
		return errors.New("config: webhooks.maxAttempts must be >= 1")
	case c.Auth.Mode != "dev" && c.Auth.Mode != "hmac":
		return fmt.Errorf("config: unknown auth mode %q", c.Auth.Mode)
	case c.Auth.Mode == "hmac" && c.Auth.HMACSecret == "":
		return errors.New("config: auth.hmacSecret is required in hmac mode")
	case c.Solver.MaxIterations < 0 || c.Solver.MaxDurationMs < 0 || c.Solver.ParallelRuns < 0:
		return errors.New("config: solver limits must be non-negative")
	}
	return nil
}

// DatabaseDriver resolves the driver for a non-empty URL: an explicit
// driver wins, postgres:// URLs select pgx, anything else sqlite.
func (c *Config) DatabaseDriver() string {
	if c.Database.Driver != "" {
		return c.Database.Driver
	}
	u := strings.ToLower(c.Database.URL)
	if strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://") {
		return "pgx"
	}
	return "sqlite"
}
