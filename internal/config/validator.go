package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// upstreamNamePattern mirrors upstream.Spec's name constraint: kept as its
// own regexp so this package does not import the domain layer just to
// validate a string shape.
var upstreamNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// RegisterCustomValidators registers the proxy-specific validation rules.
// Must be called before validating a ProxyConfig.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("upstream_name", validateUpstreamName); err != nil {
		return fmt.Errorf("failed to register upstream_name validator: %w", err)
	}
	return nil
}

func validateUpstreamName(fl validator.FieldLevel) bool {
	return upstreamNamePattern.MatchString(fl.Field().String())
}

// Validate runs struct-tag validation plus cross-field checks: unique,
// well-formed upstream names and a non-empty command per upstream. A
// malformed document is ConfigInvalid.
func Validate(c *ProxyConfig) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	for name, up := range c.McpServers {
		if !upstreamNamePattern.MatchString(name) {
			return fmt.Errorf("mcpServers: upstream name %q must match %s", name, upstreamNamePattern.String())
		}
		if strings.TrimSpace(up.Command) == "" {
			return fmt.Errorf("mcpServers.%s: command is required", name)
		}
	}

	if err := validatePositive(c.ProxySettings); err != nil {
		return err
	}

	return nil
}

func validatePositive(p ProxySettings) error {
	if p.MaxResponseSize <= 0 {
		return errors.New("proxySettings.maxResponseSize must be greater than zero")
	}
	if p.CacheMaxEntries <= 0 {
		return errors.New("proxySettings.cacheMaxEntries must be greater than zero")
	}
	if p.CacheTTLSeconds <= 0 {
		return errors.New("proxySettings.cacheTTLSeconds must be greater than zero")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors into a single
// user-facing message, joining every failed field.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "upstream_name":
		return fmt.Sprintf("%s must match %s", field, upstreamNamePattern.String())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
