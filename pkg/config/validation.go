package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Store.Type == "badger" && cfg.Store.Badger["dir"] == nil && cfg.Store.Badger["in_memory"] == nil {
		return fmt.Errorf("store.badger: dir is required when store.type is badger")
	}

	if cfg.Transport.Burst > 0 && cfg.Transport.RequestsPerSecond == 0 {
		return fmt.Errorf("transport.burst: requires transport.requests_per_second")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
