package logentry

import (
	"slices"
	"strings"
	"time"
)

// NetworkLogFilter selects NetworkLogEntry values with the same AND
// semantics as LogFilter. Status constraints never match an entry that has
// no response code.
type NetworkLogFilter struct {
	// Methods restricts entries to these HTTP methods (case-insensitive).
	Methods []string

	// StatusCodes restricts entries to these exact response codes.
	StatusCodes []int

	// MinStatus and MaxStatus are inclusive bounds on the response code.
	MinStatus *int
	MaxStatus *int

	// URLContains is a case-insensitive substring of the URL.
	URLContains string

	// URLPattern is a glob pattern the full URL must match.
	URLPattern string

	// OnlyFailed keeps entries for which IsFailed is true.
	OnlyFailed bool

	// OnlySuccessful keeps entries for which IsSuccessful is true.
	OnlySuccessful bool

	// Search is a case-insensitive substring of URL, method, bodies or error.
	Search string

	StartTime time.Time
	EndTime   time.Time
}

// MatchAllNetwork is the network filter with no constraints.
var MatchAllNetwork = NetworkLogFilter{}

// IsEmpty reports whether the filter places no constraints.
func (f NetworkLogFilter) IsEmpty() bool {
	return len(f.Methods) == 0 &&
		len(f.StatusCodes) == 0 &&
		f.MinStatus == nil &&
		f.MaxStatus == nil &&
		f.URLContains == "" &&
		f.URLPattern == "" &&
		!f.OnlyFailed &&
		!f.OnlySuccessful &&
		f.Search == "" &&
		f.StartTime.IsZero() &&
		f.EndTime.IsZero()
}

// Matches reports whether e satisfies every constraint in f.
func (f NetworkLogFilter) Matches(e NetworkLogEntry) bool {
	if len(f.Methods) > 0 && !slices.ContainsFunc(f.Methods, func(m string) bool {
		return strings.EqualFold(m, e.Method)
	}) {
		return false
	}

	if len(f.StatusCodes) > 0 || f.MinStatus != nil || f.MaxStatus != nil {
		if e.ResponseCode == nil {
			return false
		}
		code := *e.ResponseCode
		if len(f.StatusCodes) > 0 && !slices.Contains(f.StatusCodes, code) {
			return false
		}
		if f.MinStatus != nil && code < *f.MinStatus {
			return false
		}
		if f.MaxStatus != nil && code > *f.MaxStatus {
			return false
		}
	}

	if f.URLContains != "" && !containsFold(f.URLContains, e.URL) {
		return false
	}

	if f.URLPattern != "" && !matchGlob(f.URLPattern, e.URL) {
		return false
	}

	if f.OnlyFailed && !e.IsFailed() {
		return false
	}

	if f.OnlySuccessful && !e.IsSuccessful() {
		return false
	}

	if !withinRange(e.Timestamp, f.StartTime, f.EndTime) {
		return false
	}

	if f.Search != "" && !containsFold(f.Search, e.URL, e.Method, deref(e.RequestBody), deref(e.ResponseBody), e.Error) {
		return false
	}

	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
