package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	def := Default()
	if cfg.Server.ListenAddr != def.Server.ListenAddr {
		t.Fatalf("listen_addr = %q, want default %q", cfg.Server.ListenAddr, def.Server.ListenAddr)
	}
	if cfg.Sim.ScanRevertDelay != 3*time.Second {
		t.Fatalf("scan_revert_delay = %v, want 3s", cfg.Sim.ScanRevertDelay)
	}
	if cfg.Sim.AttackPenalty != 15 {
		t.Fatalf("attack_penalty = %d, want 15", cfg.Sim.AttackPenalty)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  listen_addr: ":8080"
sim:
  attack_delay: 500ms
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Fatalf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Sim.AttackDelay != 500*time.Millisecond {
		t.Fatalf("attack_delay = %v, want 500ms", cfg.Sim.AttackDelay)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Server.MetricsAddr != ":9090" {
		t.Fatalf("metrics_addr = %q, want default :9090", cfg.Server.MetricsAddr)
	}
	if cfg.Sim.ExpiryDelay != 5*time.Second {
		t.Fatalf("expiry_delay = %v, want default 5s", cfg.Sim.ExpiryDelay)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("Load accepted malformed YAML")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.Server.ListenAddr = "" }},
		{"empty metrics addr", func(c *Config) { c.Server.MetricsAddr = "" }},
		{"zero scan revert delay", func(c *Config) { c.Sim.ScanRevertDelay = 0 }},
		{"negative attack delay", func(c *Config) { c.Sim.AttackDelay = -time.Second }},
		{"zero expiry delay", func(c *Config) { c.Sim.ExpiryDelay = 0 }},
		{"zero patch reward", func(c *Config) { c.Sim.PatchReward = 0 }},
		{"zero attack penalty", func(c *Config) { c.Sim.AttackPenalty = 0 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"negative log size", func(c *Config) { c.Logging.FileMaxSizeMB = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate accepted %s", tc.name)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Validate on defaults: %v", err)
	}
}
