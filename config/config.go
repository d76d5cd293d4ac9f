package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configSubdir   = "config"
	configFileName = "landgov_config.json"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	// Set defaults for query server
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = 8080
	}

	// Set defaults for ledger confirmation handling
	if cfg.Ledger.ConfirmTimeoutSeconds == 0 {
		cfg.Ledger.ConfirmTimeoutSeconds = 120
	}
	if cfg.Ledger.ConfirmPollSeconds == 0 {
		cfg.Ledger.ConfirmPollSeconds = 2
	}

	// Set governance defaults
	if cfg.Governance.VotingPeriodSeconds == 0 {
		cfg.Governance.VotingPeriodSeconds = 604800
	}
	if cfg.Governance.TimelockDelaySeconds == 0 {
		cfg.Governance.TimelockDelaySeconds = 172800
	}
	if cfg.Governance.QuorumRequired == "" {
		cfg.Governance.QuorumRequired = "0"
	}
	if cfg.Governance.ThresholdPercent == 0 {
		cfg.Governance.ThresholdPercent = 50.0
	}
	if cfg.Governance.ThresholdPercent < 0 || cfg.Governance.ThresholdPercent > 100 {
		return fmt.Errorf("threshold percent must be between 0 and 100")
	}
	if cfg.Governance.SweepIntervalSeconds == 0 {
		cfg.Governance.SweepIntervalSeconds = 30
	}
	if cfg.Governance.SweepBatchSize == 0 {
		cfg.Governance.SweepBatchSize = 100
	}

	// Set content store defaults
	if cfg.ContentStore.TimeoutSeconds == 0 {
		cfg.ContentStore.TimeoutSeconds = 30
	}

	return nil
}

// Save writes the given config to <basePath>/config/landgov_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, configSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(configDir, configFileName)
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load reads the config from <basePath>/config/landgov_config.json.
// If the file does not exist, the embedded default config is returned.
func Load(basePath string) (*Config, error) {
	configPath := filepath.Join(basePath, configSubdir, configFileName)

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return Default()
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns the embedded default configuration
func Default() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded default config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid default config: %w", err)
	}
	return &cfg, nil
}
