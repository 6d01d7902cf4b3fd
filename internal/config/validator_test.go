package config

import (
	"strings"
	"testing"
)

func TestValidateDefaultsClean(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("defaults must validate: %v", errs)
	}
}

func TestValidateRetryBounds(t *testing.T) {
	cfg := Default()
	cfg.Retry.MaxAttempts = 0
	cfg.Retry.Jitter = 1.5
	cfg.Retry.BaseDelaySeconds = 30
	cfg.Retry.MaxDelaySeconds = 10

	errs := cfg.Validate()
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %v", errs)
	}
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, want := range []string{"retry.max_attempts", "retry.jitter", "retry.max_delay_seconds"} {
		if !fields[want] {
			t.Errorf("missing error for %s: %v", want, errs)
		}
	}
}

func TestValidateBundlePlatforms(t *testing.T) {
	cfg := Default()
	cfg.Bundle.Platforms = []string{"deb", "snap"}

	errs := cfg.Validate()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if errs[0].Field != "bundle.platforms" || !strings.Contains(errs[0].Message, "snap") {
		t.Errorf("unexpected error: %v", errs[0])
	}
}

func TestValidateBundleCommandRequiredWithPlatforms(t *testing.T) {
	cfg := Default()
	cfg.Bundle.Platforms = []string{"deb"}
	cfg.Bundle.Command = "  "

	errs := cfg.Validate()
	if len(errs) != 1 || errs[0].Field != "bundle.command" {
		t.Errorf("expected bundle.command error, got %v", errs)
	}
}

func TestValidationErrorsFormatting(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("count missing: %s", msg)
	}

	single := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if strings.Contains(single.Error(), "validation errors") {
		t.Errorf("single error should not be enumerated: %s", single.Error())
	}
}
