package logentry

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewNetworkLogEntry_Defaults(t *testing.T) {
	e := NewNetworkLogEntry(NetworkRequest{URL: "https://example.com", Method: "GET"})
	if e.ID == "" {
		t.Error("expected generated ID")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected capture timestamp")
	}
	if e.RequestBody != nil || e.ResponseBody != nil {
		t.Error("absent bodies should stay nil")
	}
}

func TestNewNetworkLogEntry_Truncation(t *testing.T) {
	long := strings.Repeat("a", DefaultMaxBodySize+500)
	short := "ok"

	e := NewNetworkLogEntry(NetworkRequest{
		URL:          "https://example.com/upload",
		Method:       "POST",
		RequestBody:  &long,
		ResponseBody: &short,
	})

	want := strings.Repeat("a", DefaultMaxBodySize) + TruncationMarker
	if *e.RequestBody != want {
		t.Errorf("request body length = %d, want %d", len(*e.RequestBody), len(want))
	}
	if *e.ResponseBody != "ok" {
		t.Errorf("response body = %q, want ok", *e.ResponseBody)
	}
}

func TestTruncateBody(t *testing.T) {
	tests := []struct {
		name string
		body *string
		max  int
		want *string
	}{
		{"nil", nil, 10, nil},
		{"fits", Ptr("hello"), 5, Ptr("hello")},
		{"cut", Ptr("hello world"), 5, Ptr("hello" + TruncationMarker)},
		{"runes", Ptr("héllo wörld"), 4, Ptr("héll" + TruncationMarker)},
		{"disabled", Ptr("hello world"), 0, Ptr("hello world")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateBody(tt.body, tt.max)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("TruncateBody() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("TruncateBody() = %q, want %q", *got, *tt.want)
			}
		})
	}
}

func TestNewNetworkLogEntry_CustomMaxBodySize(t *testing.T) {
	body := "0123456789"
	e := NewNetworkLogEntry(NetworkRequest{RequestBody: &body}, WithMaxBodySize(4))
	if *e.RequestBody != "0123"+TruncationMarker {
		t.Errorf("RequestBody = %q", *e.RequestBody)
	}
}

func TestNetworkLogEntry_Outcome(t *testing.T) {
	tests := []struct {
		name       string
		code       *int
		errMsg     string
		successful bool
		failed     bool
	}{
		{"200", Ptr(200), "", true, false},
		{"299", Ptr(299), "", true, false},
		{"404", Ptr(404), "", false, false},
		{"500", Ptr(500), "", false, false},
		{"timeout", nil, "timeout", false, true},
		{"no response", nil, "", false, true},
		{"error with code", Ptr(200), "reset", true, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			e := NewNetworkLogEntry(NetworkRequest{ResponseCode: tt.code, Error: tt.errMsg})
			if got := e.IsSuccessful(); got != tt.successful {
				t.Errorf("IsSuccessful() = %v, want %v", got, tt.successful)
			}
			if got := e.IsFailed(); got != tt.failed {
				t.Errorf("IsFailed() = %v, want %v", got, tt.failed)
			}
		})
	}
}

func TestNewNetworkLogEntry_CopiesInputs(t *testing.T) {
	code := 201
	headers := map[string]string{"Accept": "json"}
	e := NewNetworkLogEntry(NetworkRequest{ResponseCode: &code, RequestHeaders: headers})

	code = 500
	headers["Accept"] = "xml"

	if e.StatusCode() != 201 {
		t.Errorf("StatusCode() = %d, want 201", e.StatusCode())
	}
	if e.RequestHeaders["Accept"] != "json" {
		t.Error("headers should be copied at construction")
	}
}

func TestNetworkLogEntry_MarshalJSON(t *testing.T) {
	e := NewNetworkLogEntry(NetworkRequest{
		ID:       "n1",
		URL:      "https://example.com",
		Method:   "GET",
		Duration: 1500 * time.Millisecond,
	})

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m["duration_ms"] != float64(1500) {
		t.Errorf("duration_ms = %v, want 1500", m["duration_ms"])
	}
	if _, ok := m["response_code"]; ok {
		t.Error("absent response code should be omitted")
	}
}
