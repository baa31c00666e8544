package cmd

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/logscope/internal/logentry"
)

// resetFlags restores every flag in the tree to its default so that
// commands can be executed repeatedly in one test binary.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// executeCommand runs the root command with args and returns captured output
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	resetFlags(rootCmd)
	t.Cleanup(func() {
		viper.Reset()
		resetFlags(rootCmd)
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// setupConfig writes a config file pointing the file backend at a temporary
// directory and returns its path.
func setupConfig(t *testing.T, extra string) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "storage:\n  backend: file\n  dir: " + filepath.Join(dir, "data") + "\n" +
		"logging:\n  level: error\n" + extra
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func run(t *testing.T, cfg string, args ...string) string {
	t.Helper()
	out, err := executeCommand(t, "", append([]string{"--config", cfg}, args...)...)
	if err != nil {
		t.Fatalf("logscope %v failed: %v\n%s", args, err, out)
	}
	return out
}

func decodeLogLines(t *testing.T, out string) []logentry.LogEntry {
	t.Helper()
	var entries []logentry.LogEntry
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		e, err := logentry.LogCodec{}.Decode([]byte(line))
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "logscope" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "logscope")
	}

	expected := []string{"add", "query", "count", "clear", "stats", "follow", "export", "view", "fetch", "config"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, name := range expected {
		if !cmdMap[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestAddQueryCount(t *testing.T) {
	cfg := setupConfig(t, "")

	id := strings.TrimSpace(run(t, cfg, "add", "--level", "info", "--tag", "app", "started"))
	if id == "" {
		t.Error("add should print the entry ID")
	}
	run(t, cfg, "add", "--level", "warning", "--tag", "db", "--meta", "table=users", "slow", "query")
	run(t, cfg, "add", "--level", "error", "--tag", "db", "--throwable", "trace", "connection reset")

	if got := strings.TrimSpace(run(t, cfg, "count")); got != "3" {
		t.Errorf("count = %q, want 3", got)
	}

	t.Run("oldest first", func(t *testing.T) {
		entries := decodeLogLines(t, run(t, cfg, "query", "--format", "jsonl"))
		want := []string{"started", "slow query", "connection reset"}
		if len(entries) != len(want) {
			t.Fatalf("got %d entries, want %d", len(entries), len(want))
		}
		for i, e := range entries {
			if e.Message != want[i] {
				t.Errorf("entries[%d].Message = %q, want %q", i, e.Message, want[i])
			}
		}
		if entries[0].ID != id {
			t.Errorf("first entry ID = %q, want %q", entries[0].ID, id)
		}
		if entries[1].Metadata["table"] != "users" || entries[2].Throwable != "trace" {
			t.Errorf("metadata or throwable lost: %+v", entries[1:])
		}
	})

	t.Run("newest first", func(t *testing.T) {
		entries := decodeLogLines(t, run(t, cfg, "query", "--format", "jsonl", "--newest-first", "--limit", "1"))
		if len(entries) != 1 || entries[0].Message != "connection reset" {
			t.Errorf("got %+v, want only the newest entry", entries)
		}
	})

	t.Run("filters", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
			want []string
		}{
			{"min level", []string{"--min-level", "warning"}, []string{"slow query", "connection reset"}},
			{"levels", []string{"--level", "info,error"}, []string{"started", "connection reset"}},
			{"tag", []string{"--tag", "app"}, []string{"started"}},
			{"tag pattern", []string{"--tag-pattern", "d*"}, []string{"slow query", "connection reset"}},
			{"search", []string{"--search", "RESET"}, []string{"connection reset"}},
			{"metadata", []string{"--meta", "table=users"}, []string{"slow query"}},
			{"since", []string{"--since", "1h"}, []string{"started", "slow query", "connection reset"}},
			{"until past", []string{"--until", "2000-01-01T00:00:00Z"}, nil},
		}
		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				args := append([]string{"query", "--format", "jsonl"}, tt.args...)
				entries := decodeLogLines(t, run(t, cfg, args...))
				if len(entries) != len(tt.want) {
					t.Fatalf("got %d entries, want %v", len(entries), tt.want)
				}
				for i, e := range entries {
					if e.Message != tt.want[i] {
						t.Errorf("entries[%d] = %q, want %q", i, e.Message, tt.want[i])
					}
				}
			})
		}
	})

	t.Run("pretty output", func(t *testing.T) {
		out := run(t, cfg, "query", "--tag", "app")
		if !strings.Contains(out, "started") || !strings.Contains(out, "app") {
			t.Errorf("pretty output = %q", out)
		}
	})
}

func TestQuery_InvalidInput(t *testing.T) {
	cfg := setupConfig(t, "")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown level", []string{"query", "--level", "loud"}},
		{"unknown min level", []string{"query", "--min-level", "loud"}},
		{"bad since", []string{"query", "--since", "yesterday"}},
		{"bad format", []string{"query", "--format", "xml"}},
		{"negative limit", []string{"query", "--limit", "-1"}},
		{"failed and successful", []string{"query", "--network", "--failed", "--successful"}},
		{"bad metadata", []string{"query", "--meta", "novalue"}},
		{"add unknown level", []string{"add", "--level", "loud", "msg"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := executeCommand(t, "", append([]string{"--config", cfg}, tt.args...)...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestQuery_InvalidConfig(t *testing.T) {
	cfg := setupConfig(t, "viewer:\n  refresh_limit: 0\n")
	if _, err := executeCommand(t, "", "--config", cfg, "count"); err == nil {
		t.Error("expected an invalid configuration error")
	}
}

func TestQuery_NetworkEmpty(t *testing.T) {
	cfg := setupConfig(t, "")
	out := run(t, cfg, "query", "--network", "--format", "json")
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("empty network query = %q, want []", out)
	}
}

func TestClear(t *testing.T) {
	cfg := setupConfig(t, "")
	run(t, cfg, "add", "one")
	run(t, cfg, "add", "two")

	t.Run("declined", func(t *testing.T) {
		out, err := executeCommand(t, "n\n", "--config", cfg, "clear")
		if err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		if !strings.Contains(out, "Remove 2 log entries?") || !strings.Contains(out, "Aborted.") {
			t.Errorf("unexpected output: %q", out)
		}
		if got := strings.TrimSpace(run(t, cfg, "count")); got != "2" {
			t.Errorf("count after declined clear = %s, want 2", got)
		}
	})

	t.Run("confirmed", func(t *testing.T) {
		out, err := executeCommand(t, "y\n", "--config", cfg, "clear")
		if err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		if !strings.Contains(out, "Removed 2 log entries.") {
			t.Errorf("unexpected output: %q", out)
		}
		if got := strings.TrimSpace(run(t, cfg, "count")); got != "0" {
			t.Errorf("count after clear = %s, want 0", got)
		}
	})

	t.Run("nothing to clear", func(t *testing.T) {
		out := run(t, cfg, "clear", "--yes")
		if !strings.Contains(out, "No log entries to clear.") {
			t.Errorf("unexpected output: %q", out)
		}
	})
}

func TestStats(t *testing.T) {
	cfg := setupConfig(t, "")
	run(t, cfg, "add", "one")

	out := run(t, cfg, "stats")
	for _, want := range []string{"Backend: file", "logs", "network", "Entries:      1", "Active file:  0"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestExport(t *testing.T) {
	cfg := setupConfig(t, "")
	run(t, cfg, "add", "--tag", "app", "first")
	run(t, cfg, "add", "--tag", "app", "second")

	path := filepath.Join(t.TempDir(), "out", "logs.csv")
	run(t, cfg, "export", path)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2", len(records))
	}
	if records[0][0] != "id" || records[1][4] != "first" || records[2][4] != "second" {
		t.Errorf("unexpected records: %v", records)
	}

	t.Run("stdout with format override", func(t *testing.T) {
		out := run(t, cfg, "export", "-", "--format", "jsonl")
		if entries := decodeLogLines(t, out); len(entries) != 2 {
			t.Errorf("got %d entries on stdout, want 2", len(entries))
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := executeCommand(t, "", "--config", cfg, "export", "-", "--format", "xml"); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestFetch(t *testing.T) {
	cfg := setupConfig(t, "")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	out := run(t, cfg, "fetch", server.URL+"/health", server.URL+"/missing")
	if !strings.Contains(out, "/health") || !strings.Contains(out, "404") {
		t.Errorf("unexpected fetch output: %q", out)
	}

	if got := strings.TrimSpace(run(t, cfg, "count", "--network")); got != "2" {
		t.Errorf("network count = %s, want 2", got)
	}

	out = run(t, cfg, "query", "--network", "--failed", "--format", "jsonl")
	if lines := strings.Count(strings.TrimSpace(out), "\n") + 1; lines != 1 || !strings.Contains(out, "/missing") {
		t.Errorf("failed exchanges = %q, want only /missing", out)
	}

	t.Run("unreachable host", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		url := dead.URL
		dead.Close()

		if _, err := executeCommand(t, "", "--config", cfg, "fetch", "--timeout", "2s", url); err == nil {
			t.Fatal("expected an error for an unreachable host")
		}

		entries := decodeLogLines(t, run(t, cfg, "query", "--tag", fetchTag, "--format", "jsonl"))
		if len(entries) != 1 || entries[0].Message != "request failed" || entries[0].Level != logentry.LevelError {
			t.Errorf("got %+v, want one error entry", entries)
		}
		if got := strings.TrimSpace(run(t, cfg, "count", "--network")); got != "3" {
			t.Errorf("network count = %s, want 3", got)
		}
	})

	t.Run("bad header", func(t *testing.T) {
		if _, err := executeCommand(t, "", "--config", cfg, "fetch", "-H", "nocolon", server.URL); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestFollow_MemoryBackendRejected(t *testing.T) {
	cfg := setupConfig(t, "")
	t.Setenv("LOGSCOPE_STORAGE_BACKEND", "memory")

	if _, err := executeCommand(t, "", "--config", cfg, "follow"); err == nil {
		t.Error("expected follow to reject the memory backend")
	}
}
