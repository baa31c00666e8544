package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/logentry"
	"github.com/spf13/cobra"
)

// filterFlags holds the filter flags shared by query, count, export, follow
// and view. Log flags and network flags are registered together; --network
// selects which store they apply to.
type filterFlags struct {
	network bool

	levels     []string
	minLevel   string
	tags       []string
	tagPattern string
	metadata   []string

	methods    []string
	statuses   []int
	minStatus  int
	maxStatus  int
	url        string
	urlPattern string
	failed     bool
	successful bool

	search string
	since  string
	until  string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVarP(&f.network, "network", "n", false, "Operate on captured HTTP exchanges instead of log entries")

	flags.StringSliceVarP(&f.levels, "level", "l", nil, "Only these levels (verbose, debug, info, warning, error, fatal)")
	flags.StringVar(&f.minLevel, "min-level", "", "Only this level or above")
	flags.StringSliceVarP(&f.tags, "tag", "t", nil, "Only these exact tags")
	flags.StringVar(&f.tagPattern, "tag-pattern", "", "Glob the tag must match (e.g. 'net.*')")
	flags.StringArrayVar(&f.metadata, "meta", nil, "Require metadata key=value (repeatable)")

	flags.StringSliceVar(&f.methods, "method", nil, "Only these HTTP methods")
	flags.IntSliceVar(&f.statuses, "status", nil, "Only these response codes")
	flags.IntVar(&f.minStatus, "min-status", 0, "Lowest response code")
	flags.IntVar(&f.maxStatus, "max-status", 0, "Highest response code")
	flags.StringVar(&f.url, "url", "", "URL substring (case-insensitive)")
	flags.StringVar(&f.urlPattern, "url-pattern", "", "Glob the full URL must match")
	flags.BoolVar(&f.failed, "failed", false, "Only failed exchanges (error or status >= 400)")
	flags.BoolVar(&f.successful, "successful", false, "Only successful exchanges (2xx)")

	flags.StringVarP(&f.search, "search", "s", "", "Case-insensitive text search")
	flags.StringVar(&f.since, "since", "", "Only entries after this time (duration like 15m, or RFC3339)")
	flags.StringVar(&f.until, "until", "", "Only entries before this time (duration like 15m, or RFC3339)")
}

// timeRange resolves --since and --until relative to now.
func (f *filterFlags) timeRange(now time.Time) (start, end time.Time, err error) {
	if start, err = parseTimeFlag("since", f.since, now); err != nil {
		return
	}
	end, err = parseTimeFlag("until", f.until, now)
	return
}

// logFilter builds the log filter described by the flags.
func (f *filterFlags) logFilter(now time.Time) (logentry.LogFilter, error) {
	var filter logentry.LogFilter

	for _, name := range f.levels {
		level, err := logentry.ParseLevel(name)
		if err != nil {
			return filter, err
		}
		filter.Levels = append(filter.Levels, level)
	}
	if f.minLevel != "" {
		level, err := logentry.ParseLevel(f.minLevel)
		if err != nil {
			return filter, err
		}
		filter.MinLevel = &level
	}

	md, err := parseKeyValues(f.metadata)
	if err != nil {
		return filter, err
	}

	filter.Tags = f.tags
	filter.TagPattern = f.tagPattern
	filter.Metadata = md
	filter.Search = f.search
	filter.StartTime, filter.EndTime, err = f.timeRange(now)
	return filter, err
}

// networkFilter builds the network filter described by the flags.
func (f *filterFlags) networkFilter(now time.Time) (logentry.NetworkLogFilter, error) {
	var filter logentry.NetworkLogFilter
	if f.failed && f.successful {
		return filter, errors.NewValidationError("--failed and --successful are mutually exclusive")
	}

	filter.Methods = f.methods
	filter.StatusCodes = f.statuses
	if f.minStatus > 0 {
		filter.MinStatus = logentry.Ptr(f.minStatus)
	}
	if f.maxStatus > 0 {
		filter.MaxStatus = logentry.Ptr(f.maxStatus)
	}
	filter.URLContains = f.url
	filter.URLPattern = f.urlPattern
	filter.OnlyFailed = f.failed
	filter.OnlySuccessful = f.successful
	filter.Search = f.search

	var err error
	filter.StartTime, filter.EndTime, err = f.timeRange(now)
	return filter, err
}

func parseTimeFlag(name, value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(-d), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, errors.NewValidationError("must be a duration (15m) or an RFC3339 time").
		WithField(name).WithValue(value)
}

func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.NewValidationError(fmt.Sprintf("expected key=value, got %q", pair)).WithField("meta")
		}
		out[key] = value
	}
	return out, nil
}
