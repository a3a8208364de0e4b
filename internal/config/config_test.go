package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if !strings.HasSuffix(cfg.Registry, "config.json") {
		t.Errorf("Registry = %q, want a config.json path", cfg.Registry)
	}
	if cfg.WriteTimeout != DefaultWriteTimeout || !cfg.Advertise || cfg.Headless {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Addr() != "0.0.0.0:8000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("AVIATOR_PORT", "9100")
	t.Setenv("AVIATOR_LOG_LEVEL", "DEBUG")
	t.Setenv("AVIATOR_HEADLESS", "true")

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9100 || cfg.LogLevel != "debug" || !cfg.Headless {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("AVIATOR_PORT", "9100")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", DefaultPort, "")
	flags.Duration("write-timeout", DefaultWriteTimeout, "")
	if err := flags.Parse([]string{"--port", "9200", "--write-timeout", "2s"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	v := New()
	if err := BindFlags(v, flags); err != nil {
		t.Fatalf("BindFlags() error = %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9200 || cfg.WriteTimeout != 2*time.Second {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Port:         8000,
		Registry:     "/tmp/config.json",
		LogLevel:     "info",
		LogFormat:    "text",
		WriteTimeout: time.Second,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"empty registry", func(c *Config) { c.Registry = "" }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
		{"zero timeout", func(c *Config) { c.WriteTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("Validate() accepted %+v", c)
			}
		})
	}
}
