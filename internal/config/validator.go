package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/freighter-dev/freighter/internal/bundler"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "publish.max_concurrent")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePublish()...)
	errors = append(errors, c.validateRetry()...)
	errors = append(errors, c.validateRegistry()...)
	errors = append(errors, c.validateBundle()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validatePublish validates the PublishConfig
func (c *Config) validatePublish() []ValidationError {
	var errors []ValidationError

	if c.Publish.MaxConcurrent < 1 {
		errors = append(errors, ValidationError{
			Field:   "publish.max_concurrent",
			Value:   c.Publish.MaxConcurrent,
			Message: "must be at least 1",
		})
	}
	if c.Publish.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "publish.timeout_seconds",
			Value:   c.Publish.TimeoutSeconds,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateRetry validates the RetryConfig
func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	if c.Retry.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_attempts",
			Value:   c.Retry.MaxAttempts,
			Message: "must be at least 1",
		})
	}
	if c.Retry.BaseDelaySeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.base_delay_seconds",
			Value:   c.Retry.BaseDelaySeconds,
			Message: "must be non-negative",
		})
	}
	if c.Retry.MaxDelaySeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_delay_seconds",
			Value:   c.Retry.MaxDelaySeconds,
			Message: "must be non-negative",
		})
	}
	if c.Retry.MaxDelaySeconds > 0 && c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		errors = append(errors, ValidationError{
			Field:   "retry.max_delay_seconds",
			Value:   c.Retry.MaxDelaySeconds,
			Message: "must not be smaller than retry.base_delay_seconds",
		})
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.jitter",
			Value:   c.Retry.Jitter,
			Message: "must be between 0 and 1",
		})
	}

	return errors
}

// validateRegistry validates the RegistryConfig
func (c *Config) validateRegistry() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Registry.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "registry.command",
			Value:   c.Registry.Command,
			Message: "must not be empty",
		})
	}

	return errors
}

// validateBundle validates the BundleConfig
func (c *Config) validateBundle() []ValidationError {
	var errors []ValidationError

	if len(c.Bundle.Platforms) > 0 && strings.TrimSpace(c.Bundle.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "bundle.command",
			Value:   c.Bundle.Command,
			Message: "must not be empty when bundle.platforms is set",
		})
	}
	for _, p := range c.Bundle.Platforms {
		if _, err := bundler.ParsePlatform(p); err != nil {
			errors = append(errors, ValidationError{
				Field:   "bundle.platforms",
				Value:   p,
				Message: err.Error(),
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
