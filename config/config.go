// Package config loads the xflow YAML configuration and builds the logger,
// validator and storage it describes.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-hclog"
	"github.com/songzhibin97/xflow/storage"
	"github.com/songzhibin97/xflow/validation"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrInvalidConfig indicates a config file that cannot be parsed or fails validation.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

// Config is the top-level configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Validation ValidationConfig `yaml:"validation"`
	Storage    StorageConfig    `yaml:"storage"`
}

// LogConfig controls the hclog logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn error off"`
	JSON  bool   `yaml:"json"`
}

// ValidationConfig selects which built-in checks run.
type ValidationConfig struct {
	SkipChecks []string `yaml:"skip_checks"`
}

// StorageConfig selects the registry backend.
type StorageConfig struct {
	Backend string      `yaml:"backend" validate:"oneof=memory redis"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig mirrors storage.RedisOptions.
type RedisConfig struct {
	Addr         string        `yaml:"addr" validate:"required,hostname_port"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db" validate:"gte=0"`
	PoolSize     int           `yaml:"pool_size" validate:"gte=0"`
	MinIdleConns int           `yaml:"min_idle_conns" validate:"gte=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" validate:"gte=0"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Redis: RedisConfig{
				Addr:         "localhost:6379",
				PoolSize:     10,
				MinIdleConns: 2,
				IdleTimeout:  5 * time.Minute,
			},
		},
	}
}

// Parse decodes YAML config data. Fields left unset take their Default value.
func Parse(data []byte) (*Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidConfig, err)
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints and that every skipped check exists.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, e := range fieldErrs {
			msgs = append(msgs, formatValidationError(e))
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
	}

	known := make(map[string]bool)
	for _, name := range validation.CheckNames() {
		known[name] = true
	}
	for _, name := range c.Validation.SkipChecks {
		if !known[name] {
			return fmt.Errorf("%w: unknown check %q in validation.skip_checks", ErrInvalidConfig, name)
		}
	}
	return nil
}

// formatValidationError converts a validator field error to a readable message.
func formatValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, e.Param(), e.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %q", field, e.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}

// NewLogger builds a named logger writing to w.
func (c *Config) NewLogger(name string, w io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(c.Log.Level),
		JSONFormat: c.Log.JSON,
		Output:     w,
	})
}

// ValidatorOptions returns the validation options implied by the config.
func (c *Config) ValidatorOptions(logger hclog.Logger) []validation.Option {
	return []validation.Option{
		validation.WithLogger(logger),
		validation.SkipChecks(c.Validation.SkipChecks...),
	}
}

// OpenStorage connects the configured backend. The returned close function
// is always non-nil.
func (c *Config) OpenStorage() (storage.Storage, func() error, error) {
	switch c.Storage.Backend {
	case BackendRedis:
		r := c.Storage.Redis
		store, err := storage.NewRedisStorage(storage.RedisOptions{
			Addr:         r.Addr,
			Password:     r.Password,
			DB:           r.DB,
			PoolSize:     r.PoolSize,
			MinIdleConns: r.MinIdleConns,
			IdleTimeout:  r.IdleTimeout,
		})
		if err != nil {
			return nil, func() error { return nil }, err
		}
		return store, store.Close, nil
	default:
		return storage.NewMemoryStorage(), func() error { return nil }, nil
	}
}
