// Package logentry defines the records logscope captures and the filters
// used to select them.
//
// # Main Types
//
//   - [LogEntry]: one application log record (level, tag, message, throwable, metadata)
//   - [NetworkLogEntry]: one HTTP exchange with bodies truncated at construction
//   - [LogFilter], [NetworkLogFilter]: AND-combined optional criteria
//   - [Codec]: single-line record encoding shared by the persistent stores
//
// Entries are immutable values. Constructors assign a UUID and the capture
// time; options override either for replay and tests.
//
// # Filters
//
// A zero-valued filter matches everything ([MatchAll], [MatchAllNetwork]).
// Each populated field adds one constraint:
//
//	minLevel := logentry.LevelWarning
//	filter := logentry.LogFilter{
//	    MinLevel:   &minLevel,
//	    TagPattern: "net.*",
//	    Search:     "timeout",
//	}
//	if filter.Matches(entry) { ... }
package logentry
