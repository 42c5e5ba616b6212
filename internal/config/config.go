package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreFile     = "file"
)

// Config is the complete service configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Engine EngineConfig `yaml:"engine"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port            string        `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects and configures the decision-model store
type StoreConfig struct {
	// Backend is one of memory, postgres or file
	Backend     string `yaml:"backend"`
	DatabaseURL string `yaml:"database_url"`

	// ModelDir is the root of the <tenant>/<owner>/*.dmn tree for the file backend
	ModelDir string `yaml:"model_dir"`

	// Watch reloads scopes when their files change (file backend only)
	Watch bool `yaml:"watch"`

	RetryAttempts uint64        `yaml:"retry_attempts"`
	RetryInitial  time.Duration `yaml:"retry_initial"`
}

// EngineConfig configures reloads and matching
type EngineConfig struct {
	ReloadTimeout time.Duration `yaml:"reload_timeout"`

	// RefreshSchedule is a cron expression; empty disables scheduled refresh
	RefreshSchedule string `yaml:"refresh_schedule"`

	// CacheTTL expires snapshots so the next query reloads them; 0 disables expiry
	CacheTTL time.Duration `yaml:"cache_ttl"`

	MinScore float64 `yaml:"min_score"`
}

// Default returns the configuration used when no file or environment overrides are given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Backend:       StoreMemory,
			RetryAttempts: 3,
			RetryInitial:  200 * time.Millisecond,
		},
		Engine: EngineConfig{
			ReloadTimeout: 30 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path (if not empty),
// then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variables on top of the file configuration.
// A malformed value is an error rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("PORT"); val != "" {
		cfg.Server.Port = val
	}
	if val := os.Getenv("DATABASE_URL"); val != "" {
		cfg.Store.DatabaseURL = val
		if os.Getenv("DMN_STORE") == "" {
			cfg.Store.Backend = StorePostgres
		}
	}
	if val := os.Getenv("DMN_STORE"); val != "" {
		cfg.Store.Backend = strings.ToLower(val)
	}
	if val := os.Getenv("DMN_MODEL_DIR"); val != "" {
		cfg.Store.ModelDir = val
	}
	if val := os.Getenv("DMN_WATCH"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid DMN_WATCH %q: %w", val, err)
		}
		cfg.Store.Watch = b
	}
	if val := os.Getenv("DMN_RETRY_ATTEMPTS"); val != "" {
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid DMN_RETRY_ATTEMPTS %q: %w", val, err)
		}
		cfg.Store.RetryAttempts = n
	}
	if val := os.Getenv("DMN_RELOAD_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid DMN_RELOAD_TIMEOUT %q: %w", val, err)
		}
		cfg.Engine.ReloadTimeout = d
	}
	if val := os.Getenv("DMN_REFRESH_SCHEDULE"); val != "" {
		cfg.Engine.RefreshSchedule = val
	}
	if val := os.Getenv("DMN_CACHE_TTL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid DMN_CACHE_TTL %q: %w", val, err)
		}
		cfg.Engine.CacheTTL = d
	}
	if val := os.Getenv("DMN_MIN_SCORE"); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid DMN_MIN_SCORE %q: %w", val, err)
		}
		cfg.Engine.MinScore = f
	}
	return nil
}

// Validate checks field ranges and backend-specific requirements
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres backend"))
		}
	case StoreFile:
		if c.Store.ModelDir == "" {
			errs = append(errs, errors.New("store.model_dir is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q must be one of memory, postgres, file", c.Store.Backend))
	}

	if c.Store.Watch && c.Store.Backend != StoreFile {
		errs = append(errs, errors.New("store.watch requires the file backend"))
	}
	if c.Engine.ReloadTimeout <= 0 {
		errs = append(errs, errors.New("engine.reload_timeout must be positive"))
	}
	if c.Engine.CacheTTL < 0 {
		errs = append(errs, errors.New("engine.cache_ttl cannot be negative"))
	}
	if c.Engine.MinScore < 0 || c.Engine.MinScore >= 1 {
		errs = append(errs, fmt.Errorf("engine.min_score %v must be in [0, 1)", c.Engine.MinScore))
	}

	return errors.Join(errs...)
}
