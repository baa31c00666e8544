package config

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	appconfig "github.com/Iron-Ham/logscope/internal/config"
	"github.com/spf13/viper"
)

// setup isolates viper and the config directory for one test.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	viper.Reset()
	t.Cleanup(viper.Reset)
	appconfig.SetDefaults()
	showFormat = "yaml"
	initForce = false
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	configCmd.SetOut(&buf)
	configCmd.SetErr(&buf)
	configCmd.SetArgs(args)
	err := configCmd.Execute()
	return buf.String(), err
}

func readConfigFile(t *testing.T, path string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig(%s) failed: %v", path, err)
	}
	return v
}

func TestConfigShow(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		setup(t)
		out, err := execute(t, "show")
		if err != nil {
			t.Fatalf("show failed: %v", err)
		}
		for _, want := range []string{"# Config file: (none - using defaults)", "backend: file", "max_files: 5", "refresh_limit: 500"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("toml", func(t *testing.T) {
		setup(t)
		out, err := execute(t, "show", "--format", "toml")
		if err != nil {
			t.Fatalf("show failed: %v", err)
		}
		for _, want := range []string{"[storage]", "[viewer]", "refresh_limit = 500"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("environment override", func(t *testing.T) {
		setup(t)
		t.Setenv("LOGSCOPE_STORAGE_BACKEND", "memory")
		out, err := execute(t, "show")
		if err != nil {
			t.Fatalf("show failed: %v", err)
		}
		if !strings.Contains(out, "backend: memory") {
			t.Errorf("environment override not shown:\n%s", out)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		setup(t)
		if _, err := execute(t, "show", "--format", "ini"); err == nil {
			t.Error("expected an error for an unsupported format")
		}
	})

	t.Run("invalid configuration", func(t *testing.T) {
		setup(t)
		viper.Set("storage.max_files", 0)
		if _, err := execute(t, "show"); err == nil {
			t.Error("expected an error for an invalid configuration")
		}
	})
}

func TestConfigSet(t *testing.T) {
	t.Run("writes typed values", func(t *testing.T) {
		setup(t)
		out, err := execute(t, "set", "storage.max_files", "9")
		if err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if !strings.Contains(out, "Set storage.max_files = 9") {
			t.Errorf("unexpected output: %s", out)
		}
		if _, err := execute(t, "set", "logging.compress", "true"); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if _, err := execute(t, "set", "Storage.Backend", "sqlite"); err != nil {
			t.Fatalf("set failed: %v", err)
		}

		v := readConfigFile(t, appconfig.ConfigFile())
		if got := v.GetInt("storage.max_files"); got != 9 {
			t.Errorf("storage.max_files = %d, want 9", got)
		}
		if !v.GetBool("logging.compress") {
			t.Error("logging.compress = false, want true")
		}
		if got := v.GetString("storage.backend"); got != "sqlite" {
			t.Errorf("storage.backend = %q, want sqlite", got)
		}
	})

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "storage.colour", "blue"},
		{"not a bool", "logging.compress", "maybe"},
		{"not an integer", "storage.max_files", "many"},
		{"fails validation", "storage.backend", "cassandra"},
		{"out of range", "storage.max_files", "0"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			setup(t)
			if _, err := execute(t, "set", tt.key, tt.value); err == nil {
				t.Fatalf("set %s %s should fail", tt.key, tt.value)
			}
			if _, err := appconfig.Load(); err != nil {
				t.Errorf("configuration left invalid: %v", err)
			}
			if _, err := os.Stat(appconfig.ConfigFile()); !os.IsNotExist(err) {
				t.Error("config file written despite the error")
			}
		})
	}
}

func TestConfigInit(t *testing.T) {
	setup(t)

	out, err := execute(t, "init")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	path := appconfig.ConfigFile()
	if !strings.Contains(out, path) {
		t.Errorf("output should name %s: %s", path, out)
	}

	v := readConfigFile(t, path)
	d := appconfig.Default()
	if got := v.GetString("storage.backend"); got != d.Storage.Backend {
		t.Errorf("storage.backend = %q, want %q", got, d.Storage.Backend)
	}
	if got := v.GetInt("storage.max_files"); got != d.Storage.MaxFiles {
		t.Errorf("storage.max_files = %d, want %d", got, d.Storage.MaxFiles)
	}
	if got := v.GetInt("viewer.refresh_limit"); got != d.Viewer.RefreshLimit {
		t.Errorf("viewer.refresh_limit = %d, want %d", got, d.Viewer.RefreshLimit)
	}

	if _, err := execute(t, "init"); err == nil {
		t.Error("init should refuse to overwrite an existing file")
	}

	if err := os.WriteFile(path, []byte("storage:\n  max_files: 2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := execute(t, "init", "--force"); err != nil {
		t.Fatalf("init --force failed: %v", err)
	}
	if got := readConfigFile(t, path).GetInt("storage.max_files"); got != d.Storage.MaxFiles {
		t.Errorf("storage.max_files = %d after --force, want %d", got, d.Storage.MaxFiles)
	}
}

func TestConfigPath(t *testing.T) {
	t.Run("no config file", func(t *testing.T) {
		setup(t)
		out, err := execute(t, "path")
		if err != nil {
			t.Fatalf("path failed: %v", err)
		}
		for _, want := range []string{"Default path: " + appconfig.ConfigFile(), "LOGSCOPE_STORAGE_BACKEND"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("active config file", func(t *testing.T) {
		dir := setup(t)
		path := filepath.Join(dir, "custom.yaml")
		if err := os.WriteFile(path, []byte("viewer:\n  refresh_limit: 20\n"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig failed: %v", err)
		}

		out, err := execute(t, "path")
		if err != nil {
			t.Fatalf("path failed: %v", err)
		}
		if !strings.Contains(out, "Active config: "+path) {
			t.Errorf("output should name the active file:\n%s", out)
		}
	})
}

func TestConfigReset(t *testing.T) {
	t.Run("one key", func(t *testing.T) {
		setup(t)
		viper.Set("storage.max_files", 9)
		viper.Set("viewer.refresh_limit", 20)

		out, err := execute(t, "reset", "storage.max_files")
		if err != nil {
			t.Fatalf("reset failed: %v", err)
		}
		if !strings.Contains(out, "Reset storage.max_files to default: 5") {
			t.Errorf("unexpected output: %s", out)
		}
		v := readConfigFile(t, appconfig.ConfigFile())
		if got := v.GetInt("storage.max_files"); got != 5 {
			t.Errorf("storage.max_files = %d, want 5", got)
		}
		if got := v.GetInt("viewer.refresh_limit"); got != 20 {
			t.Errorf("viewer.refresh_limit = %d, want 20 (untouched)", got)
		}
	})

	t.Run("everything", func(t *testing.T) {
		setup(t)
		viper.Set("storage.backend", "memory")
		viper.Set("viewer.refresh_limit", 20)

		if _, err := execute(t, "reset"); err != nil {
			t.Fatalf("reset failed: %v", err)
		}
		v := readConfigFile(t, appconfig.ConfigFile())
		if got := v.GetString("storage.backend"); got != "file" {
			t.Errorf("storage.backend = %q, want file", got)
		}
		if got := v.GetInt("viewer.refresh_limit"); got != 500 {
			t.Errorf("viewer.refresh_limit = %d, want 500", got)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		setup(t)
		if _, err := execute(t, "reset", "storage.colour"); err == nil {
			t.Error("expected an error for an unknown key")
		}
	})
}

func TestConfigEdit(t *testing.T) {
	setup(t)
	t.Setenv("EDITOR", "my-editor")

	var gotName string
	var gotArgs []string
	origCommand := execCommand
	t.Cleanup(func() { execCommand = origCommand })
	execCommand = func(name string, args ...string) *exec.Cmd {
		gotName, gotArgs = name, args
		return exec.Command("true")
	}

	out, err := execute(t, "edit")
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if gotName != "my-editor" || len(gotArgs) != 1 || gotArgs[0] != appconfig.ConfigFile() {
		t.Errorf("editor invoked as %s %v", gotName, gotArgs)
	}
	if _, err := os.Stat(appconfig.ConfigFile()); err != nil {
		t.Errorf("edit should create a missing config file: %v", err)
	}
	if !strings.Contains(out, "Config file saved") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestConfigEdit_NoEditor(t *testing.T) {
	setup(t)
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	origLookPath := execLookPath
	t.Cleanup(func() { execLookPath = origLookPath })
	execLookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	if _, err := execute(t, "edit"); err == nil {
		t.Error("expected an error when no editor is available")
	}
}
