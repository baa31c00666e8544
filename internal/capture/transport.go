package capture

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/event"
	"github.com/Iron-Ham/logscope/internal/logentry"
	"github.com/Iron-Ham/logscope/internal/logging"
	"github.com/Iron-Ham/logscope/internal/storage"
)

// Transport is an http.RoundTripper that records every exchange it carries
// as a NetworkLogEntry. Bodies are captured up to the body limit and handed
// back to the caller intact.
type Transport struct {
	// Base performs the request. http.DefaultTransport when nil.
	Base http.RoundTripper

	store    storage.NetworkLogStorage
	opts     options
	log       *logging.Logger
	failures  atomic.Uint64
	transient atomic.Uint64
}

// NewTransport creates a Transport recording into store.
func NewTransport(store storage.NetworkLogStorage, base http.RoundTripper, opts ...Option) *Transport {
	o := newOptions(opts)
	return &Transport{
		Base:  base,
		store: store,
		opts:  o,
		log:   o.diagnostics.WithComponent("capture").With("source", "transport"),
	}
}

// Client returns an http.Client using t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Failures returns how many exchanges could not be stored.
func (t *Transport) Failures() uint64 {
	return t.failures.Load()
}

// TransientFailures returns how many of Failures were caused by conditions
// that may clear on their own, such as a locked database.
func (t *Transport) TransientFailures() uint64 {
	return t.transient.Load()
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	reqBody, out, err := t.captureRequestBody(req)
	if err != nil {
		return nil, err
	}

	resp, rtErr := t.base().RoundTrip(out)

	record := logentry.NetworkRequest{
		Timestamp:      start,
		URL:            req.URL.String(),
		Method:         method(req),
		RequestHeaders: flattenHeader(req.Header),
		RequestBody:    reqBody,
	}

	if rtErr != nil {
		record.Error = rtErr.Error()
	} else {
		code := resp.StatusCode
		record.ResponseCode = &code
		record.ResponseHeaders = flattenHeader(resp.Header)
		record.ResponseBody = t.captureResponseBody(resp)
	}
	record.Duration = time.Since(start)

	entry := logentry.NewNetworkLogEntry(record, logentry.WithMaxBodySize(t.opts.maxBodySize))
	// A canceled request is still worth recording.
	if err := t.store.Add(context.WithoutCancel(req.Context()), entry); err != nil {
		t.fail(entry.ID, err)
	}

	return resp, rtErr
}

func (t *Transport) fail(entryID string, err error) {
	t.failures.Add(1)
	retryable := errors.IsRetryable(err)
	if retryable {
		t.transient.Add(1)
	}
	captureErr := errors.NewCaptureError("transport", err)
	t.log.Warn("failed to store network entry",
		"entry_id", entryID, "error", captureErr, "retryable", retryable)
	t.opts.bus.Publish(event.NewCaptureFailedEvent("transport", entryID, captureErr))
}

// captureLimit is the number of body bytes read to capture maxBodySize
// characters, plus one so truncation can be detected.
func (t *Transport) captureLimit() int64 {
	if t.opts.maxBodySize <= 0 {
		return -1
	}
	return int64(t.opts.maxBodySize)*utf8.UTFMax + 1
}

// captureRequestBody reads the request body and returns a request carrying
// an equivalent body, leaving req untouched.
func (t *Transport) captureRequestBody(req *http.Request) (*string, *http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, req, nil
	}

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err == nil {
			defer func() { _ = body.Close() }()
			buf, err := readPrefix(body, t.captureLimit())
			if err == nil {
				s := string(buf)
				return &s, req, nil
			}
		}
	}

	buf, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, nil, err
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(buf))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}

	s := string(buf)
	return &s, out, nil
}

// captureResponseBody reads up to the capture limit from the response and
// splices the consumed bytes back in front of the rest of the stream.
func (t *Transport) captureResponseBody(resp *http.Response) *string {
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil
	}

	buf, err := readPrefix(resp.Body, t.captureLimit())
	resp.Body = &splicedBody{
		Reader: io.MultiReader(bytes.NewReader(buf), resp.Body),
		Closer: resp.Body,
	}
	if err != nil {
		t.log.Debug("response body capture incomplete", "error", err)
	}

	s := string(buf)
	return &s
}

type splicedBody struct {
	io.Reader
	io.Closer
}

func readPrefix(r io.Reader, limit int64) ([]byte, error) {
	if limit < 0 {
		return io.ReadAll(r)
	}
	return io.ReadAll(io.LimitReader(r, limit))
}

func method(req *http.Request) string {
	if req.Method == "" {
		return http.MethodGet
	}
	return req.Method
}

func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}
