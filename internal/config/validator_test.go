package config

import (
	"strings"
	"testing"
)

func hasFieldError(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config should be valid, got: %v", ValidationErrors(errs))
	}
}

func TestConfig_Validate_Storage(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		field   string
		wantErr bool
	}{
		{"memory backend", func(c *Config) { c.Storage.Backend = "memory" }, "storage.backend", false},
		{"sqlite backend", func(c *Config) { c.Storage.Backend = "sqlite" }, "storage.backend", false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend", true},
		{"empty backend", func(c *Config) { c.Storage.Backend = "" }, "storage.backend", true},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }, "storage.dsn", true},
		{"postgres with dsn", func(c *Config) {
			c.Storage.Backend = "postgres"
			c.Storage.DSN = "postgres://localhost/logscope"
		}, "storage.dsn", false},
		{"file without dir", func(c *Config) { c.Storage.Dir = "" }, "storage.dir", true},
		{"sqlite with dsn only", func(c *Config) {
			c.Storage.Backend = "sqlite"
			c.Storage.Dir = ""
			c.Storage.DSN = "/tmp/x.db"
		}, "storage.dir", false},
		{"memory without dir", func(c *Config) {
			c.Storage.Backend = "memory"
			c.Storage.Dir = ""
		}, "storage.dir", false},
		{"zero capacity", func(c *Config) { c.Storage.Capacity = 0 }, "storage.capacity", true},
		{"negative network capacity", func(c *Config) { c.Storage.NetworkCapacity = -1 }, "storage.network_capacity", true},
		{"zero max file size", func(c *Config) { c.Storage.MaxFileSize = 0 }, "storage.max_file_size", true},
		{"zero max files", func(c *Config) { c.Storage.MaxFiles = 0 }, "storage.max_files", true},
		{"one max file", func(c *Config) { c.Storage.MaxFiles = 1 }, "storage.max_files", false},
		{"zero subscriber buffer", func(c *Config) { c.Storage.SubscriberBuffer = 0 }, "storage.subscriber_buffer", true},
		{"drop newest policy", func(c *Config) { c.Storage.OverflowPolicy = "drop_newest" }, "storage.overflow_policy", false},
		{"empty policy", func(c *Config) { c.Storage.OverflowPolicy = "" }, "storage.overflow_policy", false},
		{"unknown policy", func(c *Config) { c.Storage.OverflowPolicy = "block" }, "storage.overflow_policy", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			got := hasFieldError(cfg.Validate(), tt.field)
			if got != tt.wantErr {
				t.Errorf("error on %s = %v, want %v", tt.field, got, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_Network(t *testing.T) {
	cfg := Default()
	cfg.Network.MaxBodySize = 0
	if hasFieldError(cfg.Validate(), "network.max_body_size") {
		t.Error("0 should disable truncation, not fail validation")
	}

	cfg.Network.MaxBodySize = -5
	if !hasFieldError(cfg.Validate(), "network.max_body_size") {
		t.Error("expected error for negative max_body_size")
	}
}

func TestConfig_Validate_Logging(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", ""} {
			cfg := Default()
			cfg.Logging.Level = level
			if hasFieldError(cfg.Validate(), "logging.level") {
				t.Errorf("level %q should be valid", level)
			}
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "trace"
		if !hasFieldError(cfg.Validate(), "logging.level") {
			t.Error("expected error for invalid log level")
		}
	})

	t.Run("case sensitive log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "INFO"
		if !hasFieldError(cfg.Validate(), "logging.level") {
			t.Error("expected error for uppercase log level")
		}
	})

	t.Run("rotation bounds", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxSizeMB = 0
		if hasFieldError(cfg.Validate(), "logging.max_size_mb") {
			t.Error("0 should disable rotation")
		}
		cfg.Logging.MaxSizeMB = 2000
		if !hasFieldError(cfg.Validate(), "logging.max_size_mb") {
			t.Error("expected error above the size ceiling")
		}
		cfg.Logging.MaxSizeMB = 10
		cfg.Logging.MaxBackups = -1
		if !hasFieldError(cfg.Validate(), "logging.max_backups") {
			t.Error("expected error for negative max_backups")
		}
	})
}

func TestConfig_Validate_Viewer(t *testing.T) {
	cfg := Default()
	cfg.Viewer.RefreshLimit = 0
	if !hasFieldError(cfg.Validate(), "viewer.refresh_limit") {
		t.Error("expected error for zero refresh_limit")
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Storage.Capacity = -1
	cfg.Storage.MaxFiles = 0
	cfg.Logging.Level = "loud"

	errs := cfg.Validate()
	if len(errs) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(errs), ValidationErrors(errs))
	}
}

func TestValidLogLevels(t *testing.T) {
	levels := ValidLogLevels()
	expected := []string{"debug", "info", "warn", "error"}
	if strings.Join(levels, ",") != strings.Join(expected, ",") {
		t.Errorf("ValidLogLevels() = %v, want %v", levels, expected)
	}
}
