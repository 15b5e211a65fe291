// Package config provides configuration loading and validation for textdedup.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers       = errors.New("workers must be non-negative")
	ErrInvalidMode          = errors.New("dedup-mode must be one of sentence, line, paragraph, document")
	ErrInvalidMaxLength     = errors.New("max-length must be non-negative")
	ErrInvalidSampleRatio   = errors.New("otlp sample ratio must be in [0, 1]")
)

// Default configuration values.
const (
	defaultDedupMode       = "sentence"
	defaultWorkers         = 0 // 0 means runtime.NumCPU().
	defaultMaxLength       = 0 // 0 means unlimited.
	defaultWriteDuplicates = false
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
)

// Config holds all configuration for the textdedup CLI.
type Config struct {
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// PipelineConfig holds dedup-pipeline-specific configuration.
type PipelineConfig struct {
	DedupMode        string `mapstructure:"dedup_mode"`
	MaxLength        int    `mapstructure:"max_length"`
	Workers          int    `mapstructure:"workers"`
	WriteDuplicates  bool   `mapstructure:"write_duplicates"`
	MemoryBudget     string `mapstructure:"memory_budget"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds OTel exporter configuration.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// LoadConfig loads configuration from file and environment variables.
// configPath, when empty, searches for "textdedup.yaml" in the current
// directory, "./config", and "/etc/textdedup".
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("textdedup")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/textdedup")
	}

	viperCfg.SetEnvPrefix("TEXTDEDUP")
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

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("pipeline.dedup_mode", defaultDedupMode)
	viperCfg.SetDefault("pipeline.max_length", defaultMaxLength)
	viperCfg.SetDefault("pipeline.workers", defaultWorkers)
	viperCfg.SetDefault("pipeline.write_duplicates", defaultWriteDuplicates)
	viperCfg.SetDefault("pipeline.memory_budget", "")

	viperCfg.SetDefault("logging.level", defaultLogLevel)
	viperCfg.SetDefault("logging.format", defaultLogFormat)

	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.sample_ratio", 0.0)
}

var validDedupModes = map[string]bool{
	"sentence":  true,
	"line":      true,
	"paragraph": true,
	"document":  true,
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Pipeline.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Pipeline.Workers)
	}

	if !validDedupModes[config.Pipeline.DedupMode] {
		return fmt.Errorf("%w: %q", ErrInvalidMode, config.Pipeline.DedupMode)
	}

	if config.Pipeline.MaxLength < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxLength, config.Pipeline.MaxLength)
	}

	if config.Observability.SampleRatio < 0 || config.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %f", ErrInvalidSampleRatio, config.Observability.SampleRatio)
	}

	return nil
}
