// Package config loads ebsreaper configuration from the environment and an optional TOML file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v9"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// Defaults.
const (
	DefaultAgeDays     = 30
	DefaultServiceName = "ebsreaper"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
)

// DefaultWhitelistTags are the tag keys that protect a volume unless overridden.
var DefaultWhitelistTags = []string{"Keep", "DoNotDelete"}

// Validation errors.
var (
	ErrInvalidAgeDays   = errors.New("age_days must be >= 0")
	ErrEmptyWhitelist   = errors.New("whitelist_tags must not contain empty keys")
	ErrInvalidLogLevel  = errors.New("log level is not recognised")
	ErrInvalidLogFormat = errors.New("log format must be json or console")
)

// Config is the root configuration. Built once at startup and passed by value.
type Config struct {
	Cleanup CleanupConfig `toml:"cleanup"`
	AWS     AWSConfig     `toml:"aws"`
	OTEL    OTELConfig    `toml:"otel"`
	Log     LogConfig     `toml:"log"`
}

// CleanupConfig controls what the run deletes.
type CleanupConfig struct {
	DryRun        bool     `toml:"dry_run" env:"DRY_RUN"`
	AgeDays       int      `toml:"age_days" env:"AGE_DAYS"`
	WhitelistTags []string `toml:"whitelist_tags" env:"WHITELIST_TAGS"`
	SNSTopicARN   string   `toml:"sns_arn" env:"SNS_ARN"`
}

// AWSConfig holds AWS provider settings. Empty values fall back to the SDK default chain.
type AWSConfig struct {
	Region  string `toml:"region" env:"AWS_REGION"`
	Profile string `toml:"profile" env:"AWS_PROFILE"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string `toml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool   `toml:"insecure" env:"OTEL_INSECURE"`
	ServiceName string `toml:"service_name" env:"OTEL_SERVICE_NAME"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" env:"LOG_LEVEL"`
	Format string `toml:"format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Cleanup: CleanupConfig{
			DryRun:        true,
			AgeDays:       DefaultAgeDays,
			WhitelistTags: append([]string(nil), DefaultWhitelistTags...),
		},
		OTEL: OTELConfig{ServiceName: DefaultServiceName},
		Log:  LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Load builds the configuration: defaults, then the TOML file at path (if
// non-empty), then environment variables. The result is validated.
func Load(path string) (Config, error) {
	return load(path, nil)
}

// load is Load with an injectable environment; nil means the process environment.
func load(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is operator input
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := overlayEnv(&cfg, environ); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func overlayEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{
		Environment: environ,
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(true):       parseBool,
			reflect.TypeOf([]string{}): parseStringList,
		},
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// parseBool treats only a case-insensitive "true" as true.
func parseBool(v string) (interface{}, error) {
	return strings.EqualFold(strings.TrimSpace(v), "true"), nil
}

// parseStringList decodes a JSON array of strings.
func parseStringList(v string) (interface{}, error) {
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil, fmt.Errorf("expected JSON array of strings: %w", err)
	}
	return out, nil
}

// Validate checks the configuration and reports every problem found.
func (c Config) Validate() error {
	var err error

	if c.Cleanup.AgeDays < 0 {
		err = multierr.Append(err, fmt.Errorf("%w (got %d)", ErrInvalidAgeDays, c.Cleanup.AgeDays))
	}
	for _, k := range c.Cleanup.WhitelistTags {
		if strings.TrimSpace(k) == "" {
			err = multierr.Append(err, ErrEmptyWhitelist)
			break
		}
	}
	if _, perr := zerolog.ParseLevel(c.Log.Level); perr != nil || c.Log.Level == "" {
		err = multierr.Append(err, fmt.Errorf("%w (got %q)", ErrInvalidLogLevel, c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("%w (got %q)", ErrInvalidLogFormat, c.Log.Format))
	}

	return err
}

// NotificationsEnabled reports whether a topic is configured. The topic is
// not validated here; a bad one surfaces as a failed publish.
func (c CleanupConfig) NotificationsEnabled() bool {
	return c.SNSTopicARN != ""
}
