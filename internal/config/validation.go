package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/conneroisu/hrserve/internal/errors"
	"github.com/conneroisu/hrserve/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
		}
	}

	return builder.String()
}

// Validate returns a config error describing every problem in config, or nil.
func Validate(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if !result.HasErrors() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}

	err := errors.NewConfigError(errors.ErrCodeConfigInvalid, strings.Join(messages, "; "))
	for _, e := range result.Errors {
		err.WithContext(e.Field, e.Value)
	}

	return err
}

// ValidateConfigWithDetails performs validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateServerConfigDetails(&config.Server, result)
	validateWatchConfigDetails(&config.Watch, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	// Port 0 lets the system pick a port; tests rely on it.
	if config.Port < 0 || config.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			Suggestions: []string{
				"Common development ports: 3000, 8000, 8080",
				"Port 0 allows the system to assign an available port",
			},
		})
	} else if config.Port > 0 && config.Port < 1024 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: "port below 1024 requires elevated privileges",
		})
	}

	if err := validateHostname(config.Host); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.host",
			Value:   config.Host,
			Message: err.Error(),
			Suggestions: []string{
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces",
			},
		})
	}

	if config.MaxConcurrentRequests < 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.max_concurrent_requests",
			Value:   config.MaxConcurrentRequests,
			Message: "must be at least 1",
		})
	}

	if config.ShutdownTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.shutdown_timeout",
			Value:   config.ShutdownTimeout,
			Message: "cannot be negative",
		})
	}

	if config.Root == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.root",
			Value:   config.Root,
			Message: "served directory cannot be empty",
		})
	} else if info, err := os.Stat(config.Root); err != nil || !info.IsDir() {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "server.root",
			Value:       config.Root,
			Message:     fmt.Sprintf("directory %s doesn't exist", config.Root),
			Suggestions: []string{"Create the directory or pass --root"},
		})
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if !config.Enabled {
		return
	}

	if config.Debounce <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "watch.debounce",
			Value:   config.Debounce,
			Message: "debounce must be positive",
		})
	}

	for _, path := range config.Paths {
		if _, err := os.Stat(path); err != nil {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   "watch.paths",
				Value:   path,
				Message: fmt.Sprintf("watch path %s is not accessible", path),
			})
		}
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.level",
			Value:       config.Level,
			Message:     err.Error(),
			Suggestions: []string{"Use one of debug, info, warn, error"},
		})
	}

	switch config.Format {
	case "", "text", "json":
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "log.format",
			Value:   config.Format,
			Message: fmt.Sprintf("unknown log format %q", config.Format),
		})
	}
}

// validateHostname accepts empty hosts (all interfaces), IP literals and
// plain DNS names.
func validateHostname(host string) error {
	if host == "" || net.ParseIP(host) != nil {
		return nil
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", "/", " "}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("host contains invalid character: %s", char)
		}
	}

	if len(host) > 253 {
		return fmt.Errorf("host name too long")
	}

	return nil
}
