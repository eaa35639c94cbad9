package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags plus the custom
// rules that cannot be expressed in tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules checks cross-field constraints.
func validateCustomRules(cfg *Config) error {
	// The fs transport cannot work without a root directory.
	if cfg.Transport.Type == "fs" {
		if _, ok := cfg.Transport.FS["root"]; !ok {
			return fmt.Errorf("transport.fs: root is required when transport.type is %q", cfg.Transport.Type)
		}
	}

	// A persistent cache needs somewhere to persist.
	if cfg.Cache.Type == "badger" {
		_, hasDir := cfg.Cache.Badger["dir"]
		inMemory, _ := cfg.Cache.Badger["in_memory"].(bool)
		if !hasDir && !inMemory {
			return fmt.Errorf("cache.badger: dir is required unless in_memory is set")
		}
	}

	return nil
}

// formatValidationError turns validator's error soup into one readable
// message per failing field.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if ok := errors.As(err, &verrs); !ok {
		return err
	}

	var problems []string
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s: failed %q validation", strings.ToLower(fe.Namespace()), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}
