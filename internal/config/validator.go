package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "storage.capacity")
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

	errors = append(errors, c.validateStorage()...)
	errors = append(errors, c.validateNetwork()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateViewer()...)

	return errors
}

// validateStorage validates the StorageConfig
func (c *Config) validateStorage() []ValidationError {
	var errors []ValidationError
	s := c.Storage

	if !slices.Contains(ValidBackends(), s.Backend) {
		errors = append(errors, ValidationError{
			Field:   "storage.backend",
			Value:   s.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}

	if s.Backend == "postgres" && s.DSN == "" {
		errors = append(errors, ValidationError{
			Field:   "storage.dsn",
			Value:   s.DSN,
			Message: "is required for the postgres backend",
		})
	}

	needsDir := s.Backend == "file" || (s.Backend == "sqlite" && s.DSN == "")
	if needsDir && s.Dir == "" {
		errors = append(errors, ValidationError{
			Field:   "storage.dir",
			Value:   s.Dir,
			Message: fmt.Sprintf("is required for the %s backend", s.Backend),
		})
	}

	if s.Capacity <= 0 {
		errors = append(errors, ValidationError{
			Field:   "storage.capacity",
			Value:   s.Capacity,
			Message: "must be positive",
		})
	}

	if s.NetworkCapacity <= 0 {
		errors = append(errors, ValidationError{
			Field:   "storage.network_capacity",
			Value:   s.NetworkCapacity,
			Message: "must be positive",
		})
	}

	if s.MaxFileSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "storage.max_file_size",
			Value:   s.MaxFileSize,
			Message: "must be positive",
		})
	}

	if s.MaxFiles < 1 {
		errors = append(errors, ValidationError{
			Field:   "storage.max_files",
			Value:   s.MaxFiles,
			Message: "must be at least 1",
		})
	}

	if s.SubscriberBuffer < 1 {
		errors = append(errors, ValidationError{
			Field:   "storage.subscriber_buffer",
			Value:   s.SubscriberBuffer,
			Message: "must be at least 1",
		})
	}

	if s.OverflowPolicy != "" && !slices.Contains(ValidOverflowPolicies(), s.OverflowPolicy) {
		errors = append(errors, ValidationError{
			Field:   "storage.overflow_policy",
			Value:   s.OverflowPolicy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidOverflowPolicies(), ", ")),
		})
	}

	return errors
}

// validateNetwork validates the NetworkConfig
func (c *Config) validateNetwork() []ValidationError {
	var errors []ValidationError

	// 0 disables truncation
	if c.Network.MaxBodySize < 0 {
		errors = append(errors, ValidationError{
			Field:   "network.max_body_size",
			Value:   c.Network.MaxBodySize,
			Message: "must be non-negative",
		})
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

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateViewer validates the ViewerConfig
func (c *Config) validateViewer() []ValidationError {
	var errors []ValidationError

	if c.Viewer.RefreshLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "viewer.refresh_limit",
			Value:   c.Viewer.RefreshLimit,
			Message: "must be positive",
		})
	}

	return errors
}
