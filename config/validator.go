package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

var environments = []string{"development", "staging", "production"}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their config keys, e.g. "server.rate_limit.burst".
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("env", validateEnvironment)
	_ = v.RegisterValidation("host", validateHost)
	_ = v.RegisterValidation("glob", validateGlob)
	return v
}

// ConfigError represents a validation error for a specific field.
type ConfigError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of config errors.
type ValidationErrors []ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// ValidateWithDetails validates cfg and returns ValidationErrors listing
// every offending key.
func ValidateWithDetails(cfg *Config) error {
	err := validate.Struct(cfg)
	var fieldErrs validator.ValidationErrors
	if err != nil && !errors.As(err, &fieldErrs) {
		return err
	}

	var details ValidationErrors
	for _, fe := range fieldErrs {
		details = append(details, ConfigError{
			Field:   configKey(fe.Namespace()),
			Message: formatValidationError(fe),
			Value:   fe.Value(),
		})
	}
	if deps, ok := cfg.validateDependencies().(ValidationErrors); ok {
		details = append(details, deps...)
	}
	if len(details) > 0 {
		return details
	}
	return nil
}

// configKey drops the root struct name from a validator namespace.
func configKey(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "env":
		return fmt.Sprintf("must be one of %v", environments)
	case "host":
		return "must be a hostname or IP address"
	case "glob":
		return "must be a valid glob pattern"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

func validateEnvironment(fl validator.FieldLevel) bool {
	return slices.Contains(environments, fl.Field().String())
}

// validateHost accepts hostnames and IPv4/IPv6 addresses. The empty string
// means all interfaces.
func validateHost(fl validator.FieldLevel) bool {
	return !strings.ContainsFunc(fl.Field().String(), func(r rune) bool {
		return !isValidHostChar(r)
	})
}

func isValidHostChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '.', r == ':', r == '_':
		return true
	}
	return false
}

// validateGlob accepts doublestar patterns such as "defs/**/*.yaml".
func validateGlob(fl validator.FieldLevel) bool {
	pattern := fl.Field().String()
	return pattern != "" && doublestar.ValidatePattern(pattern)
}
