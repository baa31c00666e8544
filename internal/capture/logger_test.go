package capture

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/event"
	"github.com/Iron-Ham/logscope/internal/logentry"
	"github.com/Iron-Ham/logscope/internal/logging"
	"github.com/Iron-Ham/logscope/internal/storage"
)

func TestLogger_LevelsAndMetadata(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryLogStorage()
	defer store.Close()

	log := NewLogger(store)
	log.Verbose("app", "v")
	log.Debug("app", "d")
	log.Info("app", "i", "user", 42)
	log.Warn("app", "w")
	log.Error("app", "e")
	log.Fatal("app", "f")

	got, err := store.Query(ctx, logentry.MatchAll, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("got %d entries, want 6", len(got))
	}

	wantLevels := []logentry.Level{
		logentry.LevelFatal, logentry.LevelError, logentry.LevelWarning,
		logentry.LevelInfo, logentry.LevelDebug, logentry.LevelVerbose,
	}
	for i, e := range got {
		if e.Level != wantLevels[i] {
			t.Errorf("entry %d level = %s, want %s", i, e.Level, wantLevels[i])
		}
	}
	if v, _ := got[3].MetadataValue("user"); v != "42" {
		t.Errorf("metadata user = %q, want 42", v)
	}
}

func TestLogger_MinLevel(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryLogStorage()
	defer store.Close()

	log := NewLogger(store, WithMinLevel(logentry.LevelWarning))
	log.Debug("app", "dropped")
	log.Info("app", "dropped")
	log.Warn("app", "kept")

	if log.Enabled(logentry.LevelInfo) {
		t.Error("INFO should be disabled")
	}
	if count, _ := store.Count(ctx); count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestLogger_WithTagAndException(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryLogStorage()
	defer store.Close()

	net := NewLogger(store).WithTag("net")
	net.Exception("request failed", fmt.Errorf("dial tcp: connection refused"), "host", "api")

	got, _ := store.Query(ctx, logentry.MatchAll, 0)
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	e := got[0]
	if e.Tag != "net" || e.Level != logentry.LevelError {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Throwable != "dial tcp: connection refused" {
		t.Errorf("Throwable = %q", e.Throwable)
	}
	if v, _ := e.MetadataValue("host"); v != "api" {
		t.Errorf("metadata host = %q", v)
	}
}

func TestLogger_FailuresAreNotReturned(t *testing.T) {
	store := storage.NewInMemoryLogStorage()
	_ = store.Close()

	var buf bytes.Buffer
	bus := event.NewBus()
	var failures []event.CaptureFailedEvent
	bus.Subscribe(event.TypeCaptureFailed, func(e event.Event) {
		failures = append(failures, e.(event.CaptureFailedEvent))
	})

	log := NewLogger(store,
		WithDiagnostics(logging.NewWriterLogger(&buf, logging.LevelDebug)),
		WithEventBus(bus),
	)
	log.Info("app", "lost")

	if log.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", log.Failures())
	}
	if len(failures) != 1 || failures[0].Source != "logger" {
		t.Fatalf("capture events = %+v", failures)
	}
	if !errors.Is(failures[0].Err, errors.ErrStoreClosed) {
		t.Errorf("event error = %v, want ErrStoreClosed", failures[0].Err)
	}
	if !strings.Contains(buf.String(), "failed to store log entry") {
		t.Errorf("diagnostic log missing failure: %s", buf.String())
	}
}

func TestMetadataOption(t *testing.T) {
	tests := []struct {
		name string
		kv   []any
		want map[string]string
	}{
		{"empty", nil, nil},
		{"pairs", []any{"a", 1, "b", true}, map[string]string{"a": "1", "b": "true"}},
		{"dangling", []any{"a", "x", "b"}, map[string]string{"a": "x", "b": ""}},
		{"non-string key", []any{7, "seven"}, map[string]string{"7": "seven"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			e := logentry.NewLogEntry(logentry.LevelInfo, "t", "m", metadataOption(tt.kv))
			if len(e.Metadata) != len(tt.want) {
				t.Fatalf("metadata = %v, want %v", e.Metadata, tt.want)
			}
			for k, v := range tt.want {
				if e.Metadata[k] != v {
					t.Errorf("metadata[%q] = %q, want %q", k, e.Metadata[k], v)
				}
			}
		})
	}
}
