// Package testutil provides testing utilities for logscope tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/logscope/internal/logentry"
)

// BaseTime is the timestamp of the first fixture entry.
var BaseTime = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

// StableIDs replaces the entry ID generator with a counter producing
// "id-1", "id-2", ... for the duration of the test.
func StableIDs(t *testing.T) {
	t.Helper()

	var n atomic.Int64
	restore := logentry.SetIDGenerator(func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	})
	t.Cleanup(restore)
}

// LogEntries builds one entry per message, tagged tag at level, with
// timestamps one second apart starting at BaseTime.
func LogEntries(level logentry.Level, tag string, messages ...string) []logentry.LogEntry {
	entries := make([]logentry.LogEntry, len(messages))
	for i, msg := range messages {
		entries[i] = logentry.NewLogEntry(level, tag, msg,
			logentry.WithTimestamp(BaseTime.Add(time.Duration(i)*time.Second)))
	}
	return entries
}

// NetworkEntry builds a completed GET exchange with the given status code.
func NetworkEntry(url string, status int) logentry.NetworkLogEntry {
	return logentry.NewNetworkLogEntry(logentry.NetworkRequest{
		URL:          url,
		Method:       "GET",
		ResponseCode: logentry.Ptr(status),
		Duration:     25 * time.Millisecond,
	})
}

// FailedNetworkEntry builds an exchange that never received a response.
func FailedNetworkEntry(url, errMsg string) logentry.NetworkLogEntry {
	return logentry.NewNetworkLogEntry(logentry.NetworkRequest{
		URL:    url,
		Method: "GET",
		Error:  errMsg,
	})
}

// Messages returns the message of every entry, in order.
func Messages(entries []logentry.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

// AssertMessages fails the test unless entries carry exactly want, in order.
func AssertMessages(t *testing.T, entries []logentry.LogEntry, want ...string) {
	t.Helper()

	got := Messages(entries)
	if strings.Join(got, ",") != strings.Join(want, ",") || len(got) != len(want) {
		t.Fatalf("messages = %v, want %v", got, want)
	}
}

// Receive reads one value from ch or fails the test after timeout.
func Receive[E any](t *testing.T, ch <-chan E, timeout time.Duration) E {
	t.Helper()

	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before a value arrived")
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("no value received within %v", timeout)
	}
	var zero E
	return zero
}

// AssertNoValue fails the test if ch yields a value within wait.
func AssertNoValue[E any](t *testing.T, ch <-chan E, wait time.Duration) {
	t.Helper()

	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unexpected value received: %v", v)
		}
	case <-time.After(wait):
	}
}

// AssertClosed fails the test unless ch is closed within timeout, draining
// any buffered values.
func AssertClosed[E any](t *testing.T, ch <-chan E, timeout time.Duration) {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("channel not closed within %v", timeout)
		}
	}
}

// WriteFile writes content to dir/name, creating dir as needed.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// Context returns a context canceled when the test ends.
func Context(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
