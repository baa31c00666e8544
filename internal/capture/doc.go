// Package capture produces entries from a host application.
//
// [Logger] is the logging facade: one call per entry, with optional
// key/value metadata. [Transport] wraps an http.RoundTripper and records
// every exchange, capturing bodies up to the configured limit while handing
// the caller an untouched response stream.
//
// Neither producer surfaces storage failures to the host. Failures are
// counted, written to the diagnostic logger and published as
// event.CaptureFailedEvent.
package capture
