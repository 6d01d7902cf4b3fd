package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Freighter configuration
type Config struct {
	Publish  PublishConfig  `mapstructure:"publish"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Registry RegistryConfig `mapstructure:"registry"`
	Bundle   BundleConfig   `mapstructure:"bundle"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// PublishConfig controls the publishing phase
type PublishConfig struct {
	// MaxConcurrent is the maximum number of packages published in parallel
	// within one dependency tier (default: 4)
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// TimeoutSeconds is the per-package publish timeout in seconds (0 = no timeout)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// RetryConfig controls retry behavior for transient publish failures
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per package, including the first (default: 3)
	MaxAttempts int `mapstructure:"max_attempts"`
	// BaseDelaySeconds is the delay after the first failed attempt (default: 2)
	BaseDelaySeconds int `mapstructure:"base_delay_seconds"`
	// MaxDelaySeconds caps the exponential backoff (default: 60)
	MaxDelaySeconds int `mapstructure:"max_delay_seconds"`
	// Jitter is the fraction of each delay randomized in both directions, 0-1 (default: 0.2)
	Jitter float64 `mapstructure:"jitter"`
}

// RegistryConfig controls how packages are pushed to the registry
type RegistryConfig struct {
	// Command is the publish tool invoked in each package directory (default: "cargo")
	Command string `mapstructure:"command"`
	// Args are the arguments passed to the publish tool (default: ["publish"])
	Args []string `mapstructure:"args"`
}

// BundleConfig controls installer bundle builds
type BundleConfig struct {
	// Command is the bundle tool invoked in the workspace (default: "cargo")
	Command string `mapstructure:"command"`
	// Args are the arguments passed to the bundle tool (default: ["bundle", "--release"])
	Args []string `mapstructure:"args"`
	// Platforms are the bundle formats built during a release
	// Options: "deb", "rpm", "appimage", "app", "dmg", "msi", "nsis"
	Platforms []string `mapstructure:"platforms"`
	// Target is an optional target triple passed to the bundle tool
	Target string `mapstructure:"target"`
}

// GitHubConfig identifies the repository releases are created against
type GitHubConfig struct {
	// Owner is the repository owner (org or user). Empty disables GitHub releases.
	Owner string `mapstructure:"owner"`
	// Repo is the repository name. Empty disables GitHub releases.
	Repo string `mapstructure:"repo"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// PathsConfig controls where Freighter stores data
type PathsConfig struct {
	// TempDir is the directory where isolated release workspaces are cloned.
	// If empty, the system temp directory is used.
	TempDir string `mapstructure:"temp_dir"`
}

// Timeout returns the per-package publish timeout as a time.Duration (0 means disabled)
func (p *PublishConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// BaseDelay returns the initial backoff as a time.Duration
func (r *RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelaySeconds) * time.Second
}

// MaxDelay returns the backoff cap as a time.Duration
func (r *RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelaySeconds) * time.Second
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Publish: PublishConfig{
			MaxConcurrent:  4,
			TimeoutSeconds: 600, // 10 minutes per package
		},
		Retry: RetryConfig{
			MaxAttempts:      3,
			BaseDelaySeconds: 2,
			MaxDelaySeconds:  60,
			Jitter:           0.2,
		},
		Registry: RegistryConfig{
			Command: "cargo",
			Args:    []string{"publish"},
		},
		Bundle: BundleConfig{
			Command:   "cargo",
			Args:      []string{"bundle", "--release"},
			Platforms: []string{},
			Target:    "",
		},
		GitHub: GitHubConfig{
			Owner: "",
			Repo:  "",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Paths: PathsConfig{
			TempDir: "", // Empty means use the system temp directory
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Publish defaults
	viper.SetDefault("publish.max_concurrent", defaults.Publish.MaxConcurrent)
	viper.SetDefault("publish.timeout_seconds", defaults.Publish.TimeoutSeconds)

	// Retry defaults
	viper.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	viper.SetDefault("retry.base_delay_seconds", defaults.Retry.BaseDelaySeconds)
	viper.SetDefault("retry.max_delay_seconds", defaults.Retry.MaxDelaySeconds)
	viper.SetDefault("retry.jitter", defaults.Retry.Jitter)

	// Registry defaults
	viper.SetDefault("registry.command", defaults.Registry.Command)
	viper.SetDefault("registry.args", defaults.Registry.Args)

	// Bundle defaults
	viper.SetDefault("bundle.command", defaults.Bundle.Command)
	viper.SetDefault("bundle.args", defaults.Bundle.Args)
	viper.SetDefault("bundle.platforms", defaults.Bundle.Platforms)
	viper.SetDefault("bundle.target", defaults.Bundle.Target)

	// GitHub defaults
	viper.SetDefault("github.owner", defaults.GitHub.Owner)
	viper.SetDefault("github.repo", defaults.GitHub.Repo)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	// Paths defaults
	viper.SetDefault("paths.temp_dir", defaults.Paths.TempDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "freighter")
	}
	// Fall back to ~/.config/freighter
	home, err := os.UserHomeDir()
	if err != nil {
		return ".freighter"
	}
	return filepath.Join(home, ".config", "freighter")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
