// Package logger configures structured logging for canvasvault.
//
// It builds log/slog loggers with:
//
//   - JSON (default) or text output
//   - a process-wide level that can be changed at runtime
//   - redaction of secrets and truncation of bulky payloads such as image
//     data URLs
//   - request ID propagation through context
package logger
