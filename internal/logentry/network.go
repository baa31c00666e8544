package logentry

import (
	"encoding/json"
	"maps"
	"time"
	"unicode/utf8"
)

const (
	// DefaultMaxBodySize is the body length, in characters, beyond which
	// request and response bodies are truncated.
	DefaultMaxBodySize = 10_000

	// TruncationMarker is appended to bodies cut at the size limit.
	TruncationMarker = "\n... [truncated]"
)

// NetworkRequest carries the raw facts of one HTTP exchange, as observed by
// an interceptor, before they are frozen into a NetworkLogEntry.
type NetworkRequest struct {
	ID              string
	Timestamp       time.Time
	URL             string
	Method          string
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string
	RequestBody     *string
	ResponseBody    *string
	ResponseCode    *int
	Duration        time.Duration
	Error           string
}

// NetworkLogEntry is one HTTP request/response record.
type NetworkLogEntry struct {
	ID              string
	Timestamp       time.Time
	URL             string
	Method          string
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string
	RequestBody     *string
	ResponseBody    *string
	// ResponseCode is nil when the request never completed.
	ResponseCode *int
	Duration     time.Duration
	Error        string
}

// NetworkOption customizes NetworkLogEntry construction.
type NetworkOption func(*networkOptions)

type networkOptions struct {
	maxBodySize int
}

// WithMaxBodySize overrides DefaultMaxBodySize. Non-positive values disable truncation.
func WithMaxBodySize(n int) NetworkOption {
	return func(o *networkOptions) {
		o.maxBodySize = n
	}
}

// NewNetworkLogEntry freezes req into an entry. Bodies are truncated here,
// once, so stored entries never change size on read.
func NewNetworkLogEntry(req NetworkRequest, opts ...NetworkOption) NetworkLogEntry {
	o := networkOptions{maxBodySize: DefaultMaxBodySize}
	for _, opt := range opts {
		opt(&o)
	}

	id := req.ID
	if id == "" {
		id = NewID()
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return NetworkLogEntry{
		ID:              id,
		Timestamp:       ts,
		URL:             req.URL,
		Method:          req.Method,
		RequestHeaders:  cloneHeaders(req.RequestHeaders),
		ResponseHeaders: cloneHeaders(req.ResponseHeaders),
		RequestBody:     TruncateBody(req.RequestBody, o.maxBodySize),
		ResponseBody:    TruncateBody(req.ResponseBody, o.maxBodySize),
		ResponseCode:    clonePtr(req.ResponseCode),
		Duration:        req.Duration,
		Error:           req.Error,
	}
}

// TruncateBody returns body cut to max characters with TruncationMarker
// appended, or body itself when it fits. A nil body stays nil.
func TruncateBody(body *string, max int) *string {
	if body == nil {
		return nil
	}
	s := *body
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return &s
	}

	n := 0
	for i := range s {
		if n == max {
			cut := s[:i] + TruncationMarker
			return &cut
		}
		n++
	}
	return &s
}

// IsSuccessful reports a 2xx response code.
func (e NetworkLogEntry) IsSuccessful() bool {
	return e.ResponseCode != nil && *e.ResponseCode >= 200 && *e.ResponseCode <= 299
}

// IsFailed reports a transport error or a request that never completed.
func (e NetworkLogEntry) IsFailed() bool {
	return e.Error != "" || e.ResponseCode == nil
}

// StatusCode returns the response code, or 0 when absent.
func (e NetworkLogEntry) StatusCode() int {
	if e.ResponseCode == nil {
		return 0
	}
	return *e.ResponseCode
}

// networkRecord is the serialized shape of a NetworkLogEntry.
type networkRecord struct {
	ID              string            `json:"id" yaml:"id"`
	Timestamp       time.Time         `json:"timestamp" yaml:"timestamp"`
	URL             string            `json:"url" yaml:"url"`
	Method          string            `json:"method" yaml:"method"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty" yaml:"request_headers,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty" yaml:"response_headers,omitempty"`
	RequestBody     *string           `json:"request_body,omitempty" yaml:"request_body,omitempty"`
	ResponseBody    *string           `json:"response_body,omitempty" yaml:"response_body,omitempty"`
	ResponseCode    *int              `json:"response_code,omitempty" yaml:"response_code,omitempty"`
	DurationMs      int64             `json:"duration_ms" yaml:"duration_ms"`
	Error           string            `json:"error,omitempty" yaml:"error,omitempty"`
}

func (e NetworkLogEntry) record() networkRecord {
	return networkRecord{
		ID:              e.ID,
		Timestamp:       e.Timestamp,
		URL:             e.URL,
		Method:          e.Method,
		RequestHeaders:  e.RequestHeaders,
		ResponseHeaders: e.ResponseHeaders,
		RequestBody:     e.RequestBody,
		ResponseBody:    e.ResponseBody,
		ResponseCode:    e.ResponseCode,
		DurationMs:      e.Duration.Milliseconds(),
		Error:           e.Error,
	}
}

// MarshalJSON encodes the entry with the duration in whole milliseconds.
func (e NetworkLogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.record())
}

// MarshalYAML implements yaml.Marshaler with the same shape as MarshalJSON.
func (e NetworkLogEntry) MarshalYAML() (any, error) {
	return e.record(), nil
}

func cloneHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	return maps.Clone(h)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v. Handy for optional body and status fields.
func Ptr[T any](v T) *T {
	return &v
}
