package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads, parses and validates the YAML configuration file,
// applying defaults before returning.
func LoadConfig(filename string) (*Config, error) {
	fileBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(fileBytes, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in '%s': %w", filename, err)
	}

	ApplyDefaults(&cfg)
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration carrying only defaults, used when no
// configuration file is present and everything comes from flags.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset values with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Import.BatchSize == 0 {
		cfg.Import.BatchSize = DefaultBatchSize
	}
	if cfg.Database.Table == "" {
		cfg.Database.Table = DefaultTable
	}
}

// ValidateConfig rejects configurations that cannot drive a run.
func ValidateConfig(cfg *Config) error {
	if cfg.Import.BatchSize < 1 {
		return fmt.Errorf("config: import.batch_size must be at least 1, got %d", cfg.Import.BatchSize)
	}
	if cfg.Import.MaxRows < 0 {
		return fmt.Errorf("config: import.max_rows cannot be negative, got %d", cfg.Import.MaxRows)
	}
	if cfg.Rejects != nil && cfg.Rejects.File == "" {
		return fmt.Errorf("config: rejects.file is required when a rejects section is present")
	}
	return nil
}
