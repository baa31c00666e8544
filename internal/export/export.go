// Package export writes query results to files for post-hoc debugging and
// sharing. Entries are written in the order given, which for store queries
// is newest first.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/logentry"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatText  Format = "text"
	FormatCSV   Format = "csv"
	FormatYAML  Format = "yaml"
)

// CompressedSuffix marks output paths that are zstd-compressed.
const CompressedSuffix = ".zst"

const textTimeLayout = "2006-01-02 15:04:05.000"

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatJSON, FormatJSONL, FormatText, FormatCSV, FormatYAML}
}

// ParseFormat converts a format name to a Format. "yml" and "ndjson" are
// accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", errors.NewValidationError(
		fmt.Sprintf("unsupported export format (supported: %s)", formatList()),
	).WithField("format").WithValue(s)
}

// FormatFromPath infers the format from the output file extension, ignoring
// a trailing .zst. It falls back to JSON.
func FormatFromPath(path string) Format {
	path = strings.TrimSuffix(path, CompressedSuffix)
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if f, err := ParseFormat(ext); err == nil {
		return f
	}
	return FormatJSON
}

func formatList() string {
	names := make([]string, 0, len(Formats()))
	for _, f := range Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// Logs writes log entries to w in format.
func Logs(w io.Writer, entries []logentry.LogEntry, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, entries)
	case FormatJSONL:
		return writeJSONL(w, entries, logentry.LogCodec{}.Encode)
	case FormatText:
		return writeLogText(w, entries)
	case FormatCSV:
		return writeLogCSV(w, entries)
	case FormatYAML:
		return writeYAML(w, entries)
	default:
		_, err := ParseFormat(string(format))
		return err
	}
}

// Network writes network entries to w in format.
func Network(w io.Writer, entries []logentry.NetworkLogEntry, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, entries)
	case FormatJSONL:
		return writeJSONL(w, entries, logentry.NetworkCodec{}.Encode)
	case FormatText:
		return writeNetworkText(w, entries)
	case FormatCSV:
		return writeNetworkCSV(w, entries)
	case FormatYAML:
		return writeYAML(w, entries)
	default:
		_, err := ParseFormat(string(format))
		return err
	}
}

// ToFile creates path on fs and hands write a writer for it. Paths ending in
// .zst are zstd-compressed.
func ToFile(fs afero.Fs, path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	if !strings.HasSuffix(path, CompressedSuffix) {
		return write(file)
	}

	enc, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := write(enc); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return nil
}

// LogsToFile writes entries to path, choosing the format from the extension.
func LogsToFile(fs afero.Fs, path string, entries []logentry.LogEntry) error {
	format := FormatFromPath(path)
	return ToFile(fs, path, func(w io.Writer) error {
		return Logs(w, entries, format)
	})
}

// NetworkToFile writes entries to path, choosing the format from the extension.
func NetworkToFile(fs afero.Fs, path string, entries []logentry.NetworkLogEntry) error {
	format := FormatFromPath(path)
	return ToFile(fs, path, func(w io.Writer) error {
		return Network(w, entries, format)
	})
}

func writeJSON[E any](w io.Writer, entries []E) error {
	if entries == nil {
		entries = []E{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}

func writeJSONL[E any](w io.Writer, entries []E, encode func(E) ([]byte, error)) error {
	for _, e := range entries {
		line, err := encode(e)
		if err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	return nil
}

func writeYAML[E any](w io.Writer, entries []E) error {
	if entries == nil {
		entries = []E{}
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return encoder.Close()
}

// writeLogText writes one line per entry:
//
//	[TIMESTAMP] LEVEL tag - message {metadata}
//
// followed by the throwable, indented, when present.
func writeLogText(w io.Writer, entries []logentry.LogEntry) error {
	for _, e := range entries {
		var b strings.Builder
		fmt.Fprintf(&b, "[%s] %-7s %s - %s", e.Timestamp.Format(textTimeLayout), e.Level, e.Tag, e.Message)
		if len(e.Metadata) > 0 {
			b.WriteByte(' ')
			b.WriteString(metadataText(e.Metadata))
		}
		b.WriteByte('\n')
		if e.Throwable != "" {
			for _, line := range strings.Split(strings.TrimRight(e.Throwable, "\n"), "\n") {
				b.WriteString("    ")
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
		if _, err := io.WriteString(w, b.String()); err != nil {
			return fmt.Errorf("failed to write text entry: %w", err)
		}
	}
	return nil
}

func writeNetworkText(w io.Writer, entries []logentry.NetworkLogEntry) error {
	for _, e := range entries {
		outcome := strconv.Itoa(e.StatusCode())
		if e.ResponseCode == nil {
			outcome = "---"
		}
		line := fmt.Sprintf("[%s] %s %s -> %s (%s)",
			e.Timestamp.Format(textTimeLayout), e.Method, e.URL, outcome, e.Duration.Round(time.Millisecond))
		if e.Error != "" {
			line += " error: " + e.Error
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return fmt.Errorf("failed to write text entry: %w", err)
		}
	}
	return nil
}

func writeLogCSV(w io.Writer, entries []logentry.LogEntry) error {
	writer := csv.NewWriter(w)

	headers := []string{"id", "timestamp", "level", "tag", "message", "throwable", "metadata"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range entries {
		metadata := ""
		if len(e.Metadata) > 0 {
			if b, err := json.Marshal(e.Metadata); err == nil {
				metadata = string(b)
			}
		}
		record := []string{
			e.ID,
			e.Timestamp.Format(time.RFC3339Nano),
			e.Level.String(),
			e.Tag,
			e.Message,
			e.Throwable,
			metadata,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeNetworkCSV(w io.Writer, entries []logentry.NetworkLogEntry) error {
	writer := csv.NewWriter(w)

	headers := []string{"id", "timestamp", "method", "url", "status", "duration_ms", "error", "request_body", "response_body"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range entries {
		status := ""
		if e.ResponseCode != nil {
			status = strconv.Itoa(*e.ResponseCode)
		}
		record := []string{
			e.ID,
			e.Timestamp.Format(time.RFC3339Nano),
			e.Method,
			e.URL,
			status,
			strconv.FormatInt(e.Duration.Milliseconds(), 10),
			e.Error,
			deref(e.RequestBody),
			deref(e.ResponseBody),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// metadataText renders metadata as sorted key=value pairs in braces.
func metadataText(md map[string]string) string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+md[k])
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
