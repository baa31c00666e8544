package logentry

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/logscope/internal/errors"
)

// Level is the severity of a LogEntry. Levels are ordered:
// Verbose < Debug < Info < Warning < Error < Fatal.
type Level int

const (
	LevelVerbose Level = iota
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

var levelNames = [...]string{
	LevelVerbose: "VERBOSE",
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
	LevelFatal:   "FATAL",
}

// Levels returns every level in ascending order.
func Levels() []Level {
	return []Level{LevelVerbose, LevelDebug, LevelInfo, LevelWarning, LevelError, LevelFatal}
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= LevelVerbose && l <= LevelFatal
}

// String returns the upper-case level name.
func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// Short returns the single-letter form used by compact renderers.
func (l Level) Short() string {
	if !l.Valid() {
		return "?"
	}
	return levelNames[l][:1]
}

// ParseLevel converts a level name to a Level. Matching is case-insensitive
// and accepts single-letter aliases and WARN.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "VERBOSE", "V", "TRACE":
		return LevelVerbose, nil
	case "DEBUG", "D":
		return LevelDebug, nil
	case "INFO", "I":
		return LevelInfo, nil
	case "WARNING", "WARN", "W":
		return LevelWarning, nil
	case "ERROR", "E":
		return LevelError, nil
	case "FATAL", "F", "ASSERT":
		return LevelFatal, nil
	}
	return 0, errors.NewValidationError("unknown log level").WithField("level").WithValue(s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, errors.NewValidationError("invalid log level").WithValue(int(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
