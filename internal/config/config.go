// Package config loads diffstack settings from file, environment, and
// defaults.
package config

import (
	"errors"
	"fmt"
)

// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	// Repository is the path to the git repository diffs are applied to.
	Repository string `mapstructure:"repository"`

	// MappingFile is the path of the append-only diff-to-commit record.
	// Relative paths are resolved against the repository.
	MappingFile string `mapstructure:"mapping_file"`

	// IntegrationRef names the integration branch used for candidate
	// resolution.
	IntegrationRef string `mapstructure:"integration_ref"`

	// MaxCandidates caps the base-commit search per diff; zero means
	// unbounded.
	MaxCandidates int `mapstructure:"max_candidates"`

	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the metrics endpoint settings.
type MetricsConfig struct {
	// Listen is the address serving /metrics; empty disables the endpoint.
	Listen string `mapstructure:"listen"`
}

// Defaults applied when the config file and environment are silent.
const (
	DefaultMappingFile    = ".diffstack-mapping"
	DefaultIntegrationRef = "origin/master"
	DefaultMaxCandidates  = 0
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// Validation errors.
var (
	ErrNegativeMaxCandidates = errors.New("max_candidates must not be negative")
	ErrBadLogLevel           = errors.New("logging.level must be debug, info, warn, or error")
	ErrBadLogFormat          = errors.New("logging.format must be text or json")
)

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.MaxCandidates < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeMaxCandidates, c.MaxCandidates)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrBadLogLevel, c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrBadLogFormat, c.Logging.Format)
	}

	return nil
}
