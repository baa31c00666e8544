// Package logging provides structured diagnostic logging for logscope itself.
//
// This package wraps Go's log/slog to provide JSON-formatted diagnostics for
// the storage layer and the capture producers. It is distinct from the
// entries logscope captures on behalf of the host application: those go to a
// store, these go to stderr or a diagnostics file so operators can see
// rotation, corrupt records and swallowed capture failures.
//
// # Thread Safety
//
// [Logger] is safe for concurrent use. Child loggers created via With*
// methods share the underlying writer and file mutex.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/diagnostics.log", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	storeLogger := logger.WithComponent("storage").WithStore("file", "logs")
//	storeLogger.Info("rotated", "index", 4)
//
// # Testing
//
// Use [NopLogger] to discard all output, or [NewWriterLogger] with a
// bytes.Buffer to assert on emitted records.
//
// # Configuration
//
//	logging:
//	  level: info
//	  file: ""   # empty means stderr
package logging
