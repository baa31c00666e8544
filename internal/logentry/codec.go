package logentry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fastjson"

	"github.com/Iron-Ham/logscope/internal/errors"
)

// Codec converts entries to and from single-line records. Encoded records
// never contain a newline; persistent stores add the line terminator.
type Codec[E any] interface {
	Encode(entry E) ([]byte, error)
	Decode(line []byte) (E, error)
	EntryID(entry E) string
}

// parserPool is shared by all codecs; fastjson parsers are not goroutine safe.
var parserPool fastjson.ParserPool

// LogCodec is the line codec for LogEntry.
type LogCodec struct{}

// Encode marshals e as a compact JSON object.
func (LogCodec) Encode(e LogEntry) ([]byte, error) {
	return json.Marshal(e)
}

// EntryID returns e.ID.
func (LogCodec) EntryID(e LogEntry) string {
	return e.ID
}

// Decode parses one record. Any structural problem is reported as
// errors.ErrCorruptRecord so callers can skip the line.
func (LogCodec) Decode(line []byte) (LogEntry, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := parseObject(p, line)
	if err != nil {
		return LogEntry{}, err
	}

	id, ts, err := identity(v)
	if err != nil {
		return LogEntry{}, err
	}

	level, err := ParseLevel(string(v.GetStringBytes("level")))
	if err != nil {
		return LogEntry{}, corrupt("level", err)
	}

	return LogEntry{
		ID:        id,
		Timestamp: ts,
		Level:     level,
		Tag:       string(v.GetStringBytes("tag")),
		Message:   string(v.GetStringBytes("message")),
		Throwable: string(v.GetStringBytes("throwable")),
		Metadata:  stringMap(v, "metadata"),
	}, nil
}

// NetworkCodec is the line codec for NetworkLogEntry.
type NetworkCodec struct{}

// Encode marshals e as a compact JSON object.
func (NetworkCodec) Encode(e NetworkLogEntry) ([]byte, error) {
	return json.Marshal(e)
}

// EntryID returns e.ID.
func (NetworkCodec) EntryID(e NetworkLogEntry) string {
	return e.ID
}

// Decode parses one record produced by Encode.
func (NetworkCodec) Decode(line []byte) (NetworkLogEntry, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := parseObject(p, line)
	if err != nil {
		return NetworkLogEntry{}, err
	}

	id, ts, err := identity(v)
	if err != nil {
		return NetworkLogEntry{}, err
	}

	entry := NetworkLogEntry{
		ID:              id,
		Timestamp:       ts,
		URL:             string(v.GetStringBytes("url")),
		Method:          string(v.GetStringBytes("method")),
		RequestHeaders:  stringMap(v, "request_headers"),
		ResponseHeaders: stringMap(v, "response_headers"),
		RequestBody:     optionalString(v, "request_body"),
		ResponseBody:    optionalString(v, "response_body"),
		Duration:        time.Duration(v.GetInt64("duration_ms")) * time.Millisecond,
		Error:           string(v.GetStringBytes("error")),
	}

	if rc := v.Get("response_code"); rc != nil && rc.Type() != fastjson.TypeNull {
		code, err := rc.Int()
		if err != nil {
			return NetworkLogEntry{}, corrupt("response_code", err)
		}
		entry.ResponseCode = &code
	}

	return entry, nil
}

func parseObject(p *fastjson.Parser, line []byte) (*fastjson.Value, error) {
	v, err := p.ParseBytes(line)
	if err != nil {
		return nil, corrupt("json", err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, corrupt("json", fmt.Errorf("expected object, got %s", v.Type()))
	}
	return v, nil
}

func identity(v *fastjson.Value) (string, time.Time, error) {
	id := string(v.GetStringBytes("id"))
	if id == "" {
		return "", time.Time{}, corrupt("id", errors.New("missing"))
	}
	ts, err := time.Parse(time.RFC3339Nano, string(v.GetStringBytes("timestamp")))
	if err != nil {
		return "", time.Time{}, corrupt("timestamp", err)
	}
	return id, ts, nil
}

func stringMap(v *fastjson.Value, key string) map[string]string {
	obj := v.GetObject(key)
	if obj == nil || obj.Len() == 0 {
		return nil
	}
	m := make(map[string]string, obj.Len())
	obj.Visit(func(k []byte, val *fastjson.Value) {
		if b, err := val.StringBytes(); err == nil {
			m[string(k)] = string(b)
		}
	})
	return m
}

func optionalString(v *fastjson.Value, key string) *string {
	field := v.Get(key)
	if field == nil {
		return nil
	}
	b, err := field.StringBytes()
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func corrupt(field string, cause error) error {
	return fmt.Errorf("%w: %s: %v", errors.ErrCorruptRecord, field, cause)
}
