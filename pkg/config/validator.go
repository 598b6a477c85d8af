package config

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

// validate runs struct-tag validation (go-playground/validator) plus the
// cross-field checks that tags can't express, matching the teacher's
// ValidateAll's "validate in dependency order, fail fast" shape.
func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return err
	}

	if !cfg.Executor.AutonomyLevel.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAutonomy, cfg.Executor.AutonomyLevel)
	}

	for _, rule := range cfg.Trigger.LogRules {
		if rule.Pattern == "" {
			return &ValidationError{Field: "trigger.log_rules[].pattern", Err: fmt.Errorf("empty pattern for rule %q", rule.Name)}
		}
	}

	if err := validateBackendURL("trigger_llm.backend_url", cfg.TriggerLLM.BackendURL); err != nil {
		return err
	}
	if err := validateBackendURL("review_llm.backend_url", cfg.ReviewLLM.BackendURL); err != nil {
		return err
	}
	if err := validateBackendURL("meta_llm.backend_url", cfg.MetaLLM.BackendURL); err != nil {
		return err
	}

	return nil
}

// validateBackendURL allows an empty URL (tier disabled / test mode) but
// rejects a malformed one, matching the teacher's fail-fast-on-garbage,
// permit-unset-optionals posture.
func validateBackendURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: field, Err: fmt.Errorf("invalid backend URL %q", raw)}
	}
	return nil
}
