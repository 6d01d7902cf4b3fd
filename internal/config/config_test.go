package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)
	SetDefaults()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Publish.MaxConcurrent != 4 {
		t.Errorf("publish.max_concurrent = %d", cfg.Publish.MaxConcurrent)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("retry.max_attempts = %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Registry.Command != "cargo" || len(cfg.Registry.Args) != 1 {
		t.Errorf("registry command = %q %v", cfg.Registry.Command, cfg.Registry.Args)
	}
	if !cfg.Logging.Enabled || cfg.Logging.Level != "info" {
		t.Errorf("logging defaults wrong: %+v", cfg.Logging)
	}
}

func TestLoadOverride(t *testing.T) {
	resetViper(t)
	SetDefaults()
	viper.Set("publish.max_concurrent", 8)
	viper.Set("retry.base_delay_seconds", 5)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Publish.MaxConcurrent != 8 {
		t.Errorf("override lost: %d", cfg.Publish.MaxConcurrent)
	}
	if cfg.Retry.BaseDelay().Seconds() != 5 {
		t.Errorf("base delay = %v", cfg.Retry.BaseDelay())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	resetViper(t)
	SetDefaults()
	viper.Set("publish.max_concurrent", 0)
	viper.Set("logging.level", "loud")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "publish.max_concurrent") || !strings.Contains(msg, "logging.level") {
		t.Errorf("validation errors incomplete: %s", msg)
	}
}

func TestGetFallsBackToDefaults(t *testing.T) {
	resetViper(t)
	SetDefaults()
	viper.Set("publish.max_concurrent", -1)

	cfg := Get()
	if cfg.Publish.MaxConcurrent != 4 {
		t.Errorf("Get did not fall back to defaults: %d", cfg.Publish.MaxConcurrent)
	}
}

func TestConfigDirRespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigDir(); got != "/tmp/xdg/freighter" {
		t.Errorf("ConfigDir = %q", got)
	}
}
