// Package logging provides structured logging configuration for protomock.
//
// This package wraps log/slog so that the façade, the dispatcher and the gRPC
// bridge all log the same way. It supports configurable log levels and
// output formats.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("mock server started", "http_port", 8080)
//
// Components accept a *slog.Logger through a WithLogger option and tag it
// with logging.Component. If no logger is provided they fall back to
// logging.Nop().
//
// # Headers
//
// Header sets are logged as a single group with keys in sorted order:
//
//	logger.Info("request", logging.Headers(headers))
package logging
