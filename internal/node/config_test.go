package node

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.RecheckSlow != 66 {
		t.Errorf("RecheckSlow: got %d, want 66", cfg.RecheckSlow)
	}
	if cfg.Pulse.Trigger != 255*time.Microsecond || cfg.Pulse.Unit != 32*time.Microsecond {
		t.Errorf("pulse timing: got %+v", cfg.Pulse)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"trigger not longer than unit", func(c *Config) { c.Pulse.Trigger = c.Pulse.Unit }},
		{"zero unit", func(c *Config) { c.Pulse.Unit = 0 }},
		{"no samples", func(c *Config) { c.Samples = 0 }},
		{"recheck too small", func(c *Config) { c.RecheckSlow = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
