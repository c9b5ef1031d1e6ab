// Package config loads and validates the range server's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Sim     SimConfig     `yaml:"sim"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig covers the process's listen surfaces and static assets.
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	StaticDir   string `yaml:"static_dir"`
	Topology    string `yaml:"topology"` // optional topology template file
}

// SimConfig tunes the simulation's delays and score adjustments.
type SimConfig struct {
	ScanRevertDelay time.Duration `yaml:"scan_revert_delay"`
	AttackDelay     time.Duration `yaml:"attack_delay"`
	ExpiryDelay     time.Duration `yaml:"expiry_delay"`
	PatchReward     int           `yaml:"patch_reward"`
	AttackPenalty   int           `yaml:"attack_penalty"`
}

// LoggingConfig mirrors the logging package's options.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	File          string `yaml:"file"`
	FileMaxSizeMB int    `yaml:"file_max_size_mb"`
}

// Default returns the standard configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:  ":3000",
			MetricsAddr: ":9090",
			StaticDir:   "web",
		},
		Sim: SimConfig{
			ScanRevertDelay: 3 * time.Second,
			AttackDelay:     2 * time.Second,
			ExpiryDelay:     5 * time.Second,
			PatchReward:     5,
			AttackPenalty:   15,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the given YAML file. A missing file yields
// the defaults; fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration section by section.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("configuration is nil")
	}
	if err := validateServer(&c.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateSim(&c.Sim); err != nil {
		return fmt.Errorf("sim config: %w", err)
	}
	if err := validateLogging(&c.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}
	if cfg.MetricsAddr == "" {
		return fmt.Errorf("metrics_addr cannot be empty")
	}
	return nil
}

func validateSim(cfg *SimConfig) error {
	if cfg.ScanRevertDelay <= 0 {
		return fmt.Errorf("scan_revert_delay must be positive")
	}
	if cfg.AttackDelay <= 0 {
		return fmt.Errorf("attack_delay must be positive")
	}
	if cfg.ExpiryDelay <= 0 {
		return fmt.Errorf("expiry_delay must be positive")
	}
	if cfg.PatchReward <= 0 {
		return fmt.Errorf("patch_reward must be positive")
	}
	if cfg.AttackPenalty <= 0 {
		return fmt.Errorf("attack_penalty must be positive")
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	switch cfg.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown level %q", cfg.Level)
	}
	switch cfg.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown format %q", cfg.Format)
	}
	if cfg.FileMaxSizeMB < 0 {
		return fmt.Errorf("file_max_size_mb cannot be negative")
	}
	return nil
}
