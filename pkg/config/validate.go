package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// getValidator returns a shared validator that reports fields by their
// config key (mapstructure tag) rather than their Go name.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks cfg for invalid values. Struct tag rules run first, then
// checks that span several fields.
//
// Errors name the offending key as it appears in the config file, e.g.
// "server.port: must satisfy max=65535 (got 70000)".
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return validateCrossFields(cfg)
}

func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s (got %v)", key, rule, fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func validateCrossFields(cfg *Config) error {
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint: required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return errors.New("telemetry.profiling.endpoint: required when profiling is enabled")
	}
	if cfg.Metrics.Enabled && cfg.Server.Port != 0 && cfg.Metrics.Port == cfg.Server.Port {
		return fmt.Errorf("metrics.port: %d is already used by server.port", cfg.Metrics.Port)
	}
	return nil
}
