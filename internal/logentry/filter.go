package logentry

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

// LogFilter selects LogEntry values. Every field is optional: a zero or
// empty field places no constraint. A filter matches an entry iff every
// constraint that is set holds.
type LogFilter struct {
	// Levels restricts entries to this set of levels.
	Levels []Level

	// MinLevel restricts entries to this level or above.
	MinLevel *Level

	// Tags restricts entries to these exact tags.
	Tags []string

	// TagPattern is a glob pattern (e.g. "net.*") the tag must match.
	// An invalid pattern matches nothing.
	TagPattern string

	// Search is a case-insensitive substring of message, tag or throwable.
	Search string

	// StartTime and EndTime are inclusive bounds on the timestamp. Inverted
	// ranges are not validated and match nothing.
	StartTime time.Time
	EndTime   time.Time

	// Metadata requires every key to be present with an equal value.
	Metadata map[string]string
}

// MatchAll is the filter with no constraints.
var MatchAll = LogFilter{}

// IsEmpty reports whether the filter places no constraints.
func (f LogFilter) IsEmpty() bool {
	return len(f.Levels) == 0 &&
		f.MinLevel == nil &&
		len(f.Tags) == 0 &&
		f.TagPattern == "" &&
		f.Search == "" &&
		f.StartTime.IsZero() &&
		f.EndTime.IsZero() &&
		len(f.Metadata) == 0
}

// Matches reports whether e satisfies every constraint in f.
func (f LogFilter) Matches(e LogEntry) bool {
	if len(f.Levels) > 0 && !slices.Contains(f.Levels, e.Level) {
		return false
	}

	if f.MinLevel != nil && e.Level < *f.MinLevel {
		return false
	}

	if len(f.Tags) > 0 && !slices.Contains(f.Tags, e.Tag) {
		return false
	}

	if f.TagPattern != "" && !matchGlob(f.TagPattern, e.Tag) {
		return false
	}

	if !withinRange(e.Timestamp, f.StartTime, f.EndTime) {
		return false
	}

	for k, want := range f.Metadata {
		if got, ok := e.Metadata[k]; !ok || got != want {
			return false
		}
	}

	if f.Search != "" && !containsFold(f.Search, e.Message, e.Tag, e.Throwable) {
		return false
	}

	return true
}

func withinRange(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && ts.After(end) {
		return false
	}
	return true
}

// containsFold reports whether needle occurs in any haystack, ignoring case.
func containsFold(needle string, haystacks ...string) bool {
	needle = strings.ToLower(needle)
	for _, h := range haystacks {
		if h != "" && strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

type compiledGlob struct {
	g   glob.Glob
	err error
}

// globCache holds compiled patterns keyed by pattern text. Filters are plain
// values, so compilation is memoized here instead of on the filter.
var globCache sync.Map

func matchGlob(pattern, s string) bool {
	cached, ok := globCache.Load(pattern)
	if !ok {
		g, err := glob.Compile(pattern)
		cached, _ = globCache.LoadOrStore(pattern, compiledGlob{g: g, err: err})
	}
	c := cached.(compiledGlob)
	if c.err != nil {
		return false
	}
	return c.g.Match(s)
}

// ValidatePattern reports whether pattern is a valid glob.
func ValidatePattern(pattern string) error {
	_, err := glob.Compile(pattern)
	return err
}
