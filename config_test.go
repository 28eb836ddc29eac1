package sessionkit

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := validateConfig(DefaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Monitor.PollInterval != 10*time.Second {
		t.Fatalf("poll interval = %v", cfg.Monitor.PollInterval)
	}
	if cfg.Monitor.WarningLeadTime != 5*time.Minute {
		t.Fatalf("warning lead time = %v", cfg.Monitor.WarningLeadTime)
	}
	if cfg.Audit.Enabled {
		t.Fatal("audit enabled by default")
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("metrics disabled by default")
	}
	if cfg.Store.Digest.Memory == 0 || cfg.Store.Digest.TagLength == 0 {
		t.Fatalf("digest config not populated: %+v", cfg.Store.Digest)
	}
}

func TestValidateConfigRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative poll interval", func(c *Config) { c.Monitor.PollInterval = -time.Second }},
		{"negative warning lead", func(c *Config) { c.Monitor.WarningLeadTime = -time.Minute }},
		{"negative audit buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := validateConfig(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
