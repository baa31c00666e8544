package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides, e.g.
// LOGSCOPE_STORAGE_BACKEND.
const EnvPrefix = "LOGSCOPE"

// Config represents the complete logscope configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage" yaml:"storage" toml:"storage"`
	Network NetworkConfig `mapstructure:"network" yaml:"network" toml:"network"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" toml:"logging"`
	Viewer  ViewerConfig  `mapstructure:"viewer" yaml:"viewer" toml:"viewer"`
}

// StorageConfig selects and sizes the backing stores
type StorageConfig struct {
	// Backend is one of "memory", "file", "sqlite", "postgres" (default: "file")
	Backend string `mapstructure:"backend" yaml:"backend" toml:"backend"`
	// DSN is the postgres connection URL. For sqlite it overrides the
	// database path, which defaults to <dir>/logscope.db.
	DSN string `mapstructure:"dsn" yaml:"dsn" toml:"dsn"`
	// Capacity is the maximum number of log entries kept by the memory and SQL backends
	Capacity int `mapstructure:"capacity" yaml:"capacity" toml:"capacity"`
	// NetworkCapacity is the same bound for network entries
	NetworkCapacity int `mapstructure:"network_capacity" yaml:"network_capacity" toml:"network_capacity"`
	// Dir is the root directory of the file and sqlite backends.
	// Log and network stores live in separate subdirectories.
	Dir string `mapstructure:"dir" yaml:"dir" toml:"dir"`
	// MaxFileSize is the size in bytes at which the file backend rotates
	MaxFileSize int64 `mapstructure:"max_file_size" yaml:"max_file_size" toml:"max_file_size"`
	// MaxFiles is the number of files the file backend retains
	MaxFiles int `mapstructure:"max_files" yaml:"max_files" toml:"max_files"`
	// SubscriberBuffer is the queue length of each Observe subscriber
	SubscriberBuffer int `mapstructure:"subscriber_buffer" yaml:"subscriber_buffer" toml:"subscriber_buffer"`
	// OverflowPolicy decides which entry a full subscriber queue loses:
	// "drop_oldest" (default) or "drop_newest"
	OverflowPolicy string `mapstructure:"overflow_policy" yaml:"overflow_policy" toml:"overflow_policy"`
}

// NetworkConfig controls HTTP exchange capture
type NetworkConfig struct {
	// MaxBodySize is the number of characters of each body kept (0 = unlimited)
	MaxBodySize int `mapstructure:"max_body_size" yaml:"max_body_size" toml:"max_body_size"`
}

// LoggingConfig controls logscope's own diagnostic logging
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level" toml:"level"`
	// File is the diagnostics file; empty means stderr
	File string `mapstructure:"file" yaml:"file" toml:"file"`
	// MaxSizeMB rotates the diagnostics file at this size (0 = never)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	// MaxBackups is the number of rotated diagnostics files kept
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups" toml:"max_backups"`
	// Compress zstd-compresses rotated diagnostics files
	Compress bool `mapstructure:"compress" yaml:"compress" toml:"compress"`
}

// ViewerConfig controls the terminal viewer
type ViewerConfig struct {
	// RefreshLimit is the number of entries loaded and kept on screen
	RefreshLimit int `mapstructure:"refresh_limit" yaml:"refresh_limit" toml:"refresh_limit"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:          "file",
			Capacity:         10_000,
			NetworkCapacity:  1_000,
			Dir:              DefaultDataDir(),
			MaxFileSize:      1 << 20, // 1MB
			MaxFiles:         5,
			SubscriberBuffer: 64,
			OverflowPolicy:   "drop_oldest",
		},
		Network: NetworkConfig{
			MaxBodySize: 10_000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Viewer: ViewerConfig{
			RefreshLimit: 500,
		},
	}
}

// SetDefaults registers default values and environment overrides with viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// SetDefaultsOn registers the default value of every key with v
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("storage.backend", defaults.Storage.Backend)
	v.SetDefault("storage.dsn", defaults.Storage.DSN)
	v.SetDefault("storage.capacity", defaults.Storage.Capacity)
	v.SetDefault("storage.network_capacity", defaults.Storage.NetworkCapacity)
	v.SetDefault("storage.dir", defaults.Storage.Dir)
	v.SetDefault("storage.max_file_size", defaults.Storage.MaxFileSize)
	v.SetDefault("storage.max_files", defaults.Storage.MaxFiles)
	v.SetDefault("storage.subscriber_buffer", defaults.Storage.SubscriberBuffer)
	v.SetDefault("storage.overflow_policy", defaults.Storage.OverflowPolicy)

	v.SetDefault("network.max_body_size", defaults.Network.MaxBodySize)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.compress", defaults.Logging.Compress)

	v.SetDefault("viewer.refresh_limit", defaults.Viewer.RefreshLimit)
}

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Storage.Dir = expandHome(cfg.Storage.Dir)
	cfg.Logging.File = expandHome(cfg.Logging.File)

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// LogDir is the file store directory for application logs.
func (s *StorageConfig) LogDir() string {
	return filepath.Join(s.Dir, "logs")
}

// NetworkDir is the file store directory for network entries.
func (s *StorageConfig) NetworkDir() string {
	return filepath.Join(s.Dir, "network")
}

// SQLitePath is the sqlite database file: DSN when set, else <dir>/logscope.db.
func (s *StorageConfig) SQLitePath() string {
	if s.DSN != "" {
		return s.DSN
	}
	return filepath.Join(s.Dir, "logscope.db")
}

// expandHome resolves a leading "~" to the user's home directory
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "logscope")
	}
	// Fall back to ~/.config/logscope
	home, err := os.UserHomeDir()
	if err != nil {
		return ".logscope"
	}
	return filepath.Join(home, ".config", "logscope")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultDataDir returns where persistent stores live by default
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "logscope")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".logscope"
	}
	return filepath.Join(home, ".local", "share", "logscope")
}

// ValidBackends returns the list of valid storage backends
func ValidBackends() []string {
	return []string{"memory", "file", "sqlite", "postgres"}
}

// ValidOverflowPolicies returns the list of valid subscriber overflow policies
func ValidOverflowPolicies() []string {
	return []string{"drop_oldest", "drop_newest"}
}
