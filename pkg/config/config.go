// Package config provides configuration loading and validation for astrule.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/astrule/pkg/safeconv"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers     = errors.New("scan workers must not be negative")
	ErrInvalidMaxFileSize = errors.New("invalid max file size")
	ErrInvalidFormat      = errors.New("invalid output format")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
)

// Output formats.
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
)

// EnvPrefix prefixes environment overrides, e.g. ASTRULE_SCAN_WORKERS.
const EnvPrefix = "ASTRULE"

var (
	validFormats   = []string{FormatText, FormatTable, FormatJSON}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Config holds all configuration for astrule.
type Config struct {
	Rules     RulesConfig     `mapstructure:"rules"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// RulesConfig lists rule files and directories.
type RulesConfig struct {
	Paths []string `mapstructure:"paths"`
}

// ScanConfig holds scanner configuration.
type ScanConfig struct {
	// MaxFileSize is human readable, e.g. "512KiB" or "2MB".
	MaxFileSize string `mapstructure:"max_file_size"`
	// Language forces a grammar instead of detecting one per file.
	Language string `mapstructure:"language"`
	// Workers bounds concurrent file scans; 0 means GOMAXPROCS.
	Workers int `mapstructure:"workers"`
}

// OutputConfig holds report rendering configuration.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// MaxFileSizeBytes parses Scan.MaxFileSize.
func (c *Config) MaxFileSizeBytes() (int64, error) {
	size, err := humanize.ParseBytes(c.Scan.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxFileSize, c.Scan.MaxFileSize, err)
	}

	bytes, err := safeconv.Uint64ToInt64(size)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxFileSize, c.Scan.MaxFileSize, err)
	}

	return bytes, nil
}

// LoadConfig loads configuration from file and environment variables. With
// an empty path .astrule.yaml is looked up in the working directory and in
// $HOME; a missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".astrule")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		panic(fmt.Sprintf("config: decode defaults: %v", unmarshalErr))
	}

	return &config
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("rules.paths", []string{DefaultRulesPath})

	viperCfg.SetDefault("scan.workers", DefaultScanWorkers)
	viperCfg.SetDefault("scan.max_file_size", DefaultScanMaxFileSize)
	viperCfg.SetDefault("scan.language", DefaultScanLanguage)

	viperCfg.SetDefault("output.format", DefaultOutputFormat)
	viperCfg.SetDefault("output.color", DefaultOutputColor)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.json", DefaultLoggingJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", DefaultTelemetryEndpoint)
	viperCfg.SetDefault("telemetry.otlp_insecure", DefaultTelemetryInsecure)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultTelemetrySampleRatio)
}

// Validate checks a configuration that was not produced by LoadConfig, such
// as one modified by command line flags.
func (c *Config) Validate() error {
	return validateConfig(c)
}

func validateConfig(config *Config) error {
	if config.Scan.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Scan.Workers)
	}

	if _, err := config.MaxFileSizeBytes(); err != nil {
		return err
	}

	if !slices.Contains(validFormats, config.Output.Format) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrInvalidFormat, config.Output.Format, strings.Join(validFormats, ", "))
	}

	if !slices.Contains(validLogLevels, strings.ToLower(config.Logging.Level)) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}
