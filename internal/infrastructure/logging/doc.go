// Package logging provides structured logging for Stockwise Core.
//
// This package wraps Go's standard log/slog package to provide consistent,
// structured logging across the application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	logger.Error("failed to connect", "error", err)
//
// # Security
//
// Never log secrets, tokens, passwords, or password hashes. Authentication
// failure reasons (unknown user vs wrong password) are logged server-side
// only; clients receive a single collapsed message.
package logging
