// Package config provides CLI commands for managing logscope configuration.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	appconfig "github.com/Iron-Ham/logscope/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Wrapper functions for exec to allow testing
var execLookPath = exec.LookPath
var execCommand = exec.Command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify logscope configuration",
	Long: `View or modify logscope configuration.

Use 'config show' to display the effective configuration.
Use subcommands to modify settings or create a config file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration: defaults, overridden by the config file,
overridden by LOGSCOPE_* environment variables.`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  logscope config set storage.backend sqlite
  logscope config set storage.max_files 10
  logscope config set logging.compress true

Run 'logscope config show' to list every key. The value is validated before
the file is written.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at $XDG_CONFIG_HOME/logscope/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file location",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE:  runConfigEdit,
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset configuration to defaults",
	Long: `Reset configuration values to their defaults.

Without arguments, resets all configuration to defaults.
With a key argument, resets only that specific key.

Examples:
  logscope config reset                   # Reset all to defaults
  logscope config reset storage.max_files # Reset only storage.max_files`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigReset,
}

var (
	showFormat string
	initForce  bool
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configResetCmd)

	configShowCmd.Flags().StringVarP(&showFormat, "format", "f", "yaml", "Output format: yaml or toml")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

// Register adds all config-related commands to the given parent command.
// This is the main entry point for integrating the config subpackage with
// the root command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var data []byte
	switch strings.ToLower(showFormat) {
	case "yaml", "yml":
		data, err = yaml.Marshal(cfg)
	case "toml":
		data, err = toml.Marshal(cfg)
	default:
		return fmt.Errorf("unsupported format %q (supported: yaml, toml)", showFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}
	_, err = out.Write(data)
	return err
}

// defaults returns a viper instance holding only the default values.
func defaults() *viper.Viper {
	v := viper.New()
	appconfig.SetDefaultsOn(v)
	return v
}

// configKeys lists every known key.
func configKeys() []string {
	keys := defaults().AllKeys()
	slices.Sort(keys)
	return keys
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])
	value := args[1]

	if !slices.Contains(configKeys(), key) {
		return fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(configKeys(), ", "))
	}

	// Parse the value as the type of the key's default
	var typedValue any
	switch defaults().Get(key).(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = b
	case int, int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		typedValue = n
	default:
		typedValue = value
	}

	previous := viper.Get(key)
	viper.Set(key, typedValue)
	if _, err := appconfig.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

// writeConfig writes viper's settings to the file in use, or to the default
// config file when none was read.
func writeConfig() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = appconfig.ConfigFile()
		if err := os.MkdirAll(appconfig.ConfigDir(), 0o755); err != nil {
			return "", fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configFile, nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := appconfig.ConfigDir()
	configFile := appconfig.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s\nUse 'logscope config set' to modify values or --force to overwrite", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent()), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize logscope's behavior.")
	return nil
}

// defaultConfigContent renders a commented config file holding the defaults.
func defaultConfigContent() string {
	d := appconfig.Default()
	return fmt.Sprintf(`# logscope configuration

storage:
  # Backend: memory, file, sqlite or postgres
  backend: %s
  # postgres connection URL, or a sqlite database path overriding <dir>/logscope.db
  dsn: ""
  # Entries kept by the memory and SQL backends
  capacity: %d
  network_capacity: %d
  # Root directory of the file and sqlite backends
  dir: %s
  # File backend: rotate at this many bytes, keep this many files
  max_file_size: %d
  max_files: %d
  # Queue length of each live subscriber, and what a full queue drops:
  # drop_oldest or drop_newest
  subscriber_buffer: %d
  overflow_policy: %s

network:
  # Characters of each request/response body kept (0 = unlimited)
  max_body_size: %d

# logscope's own diagnostics
logging:
  # debug, info, warn or error
  level: %s
  # Diagnostics file; empty means stderr
  file: ""
  # Rotate the diagnostics file at this size, keep this many backups
  max_size_mb: %d
  max_backups: %d
  # zstd-compress rotated diagnostics files
  compress: %t

viewer:
  # Entries loaded and kept on screen
  refresh_limit: %d
`,
		d.Storage.Backend, d.Storage.Capacity, d.Storage.NetworkCapacity, d.Storage.Dir,
		d.Storage.MaxFileSize, d.Storage.MaxFiles, d.Storage.SubscriberBuffer, d.Storage.OverflowPolicy,
		d.Network.MaxBodySize,
		d.Logging.Level, d.Logging.MaxSizeMB, d.Logging.MaxBackups, d.Logging.Compress,
		d.Viewer.RefreshLimit,
	)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := appconfig.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", configFile)
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_STORAGE_BACKEND)\n", appconfig.EnvPrefix, appconfig.EnvPrefix)
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = appconfig.ConfigFile()
	}

	// Check if config file exists, if not create it
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "Config file doesn't exist, creating with defaults...")
		if err := runConfigInit(cmd, args); err != nil {
			return err
		}
		configFile = appconfig.ConfigFile()
	}

	// Find an editor
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		// Try common editors
		for _, e := range []string{"vim", "nano", "vi"} {
			if _, err := execLookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set $EDITOR environment variable")
	}

	editorCmd := execCommand(editor, configFile)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config file saved: %s\n", configFile)
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	d := defaults()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		// Reset all values
		for _, key := range configKeys() {
			viper.Set(key, d.Get(key))
		}
		fmt.Fprintln(out, "Reset all configuration to defaults.")
	} else {
		key := strings.ToLower(args[0])
		if !slices.Contains(configKeys(), key) {
			return fmt.Errorf("unknown configuration key: %s\nRun 'logscope config show' to see valid keys", key)
		}
		viper.Set(key, d.Get(key))
		fmt.Fprintf(out, "Reset %s to default: %v\n", key, d.Get(key))
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}
