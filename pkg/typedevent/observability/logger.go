// Package observability provides the structured logging, metrics and
// tracing used by typedevent events.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// EnrichLogger adds event context to a logger.
// Returns a new logger with event_id and event_name fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "4b0e...", "order.created")
//	enriched.Info("invoking") // includes event_id, event_name
func EnrichLogger(logger *slog.Logger, eventID, eventName string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_id", eventID),
		slog.String("event_name", eventName),
	)
}

// LogInvokeStart logs the start of an invocation.
func LogInvokeStart(logger *slog.Logger, op string, handlers int) {
	if logger == nil {
		return
	}
	logger.Debug("invocation starting",
		slog.String("operation", op),
		slog.Int("handlers", handlers),
	)
}

// LogInvokeComplete logs a successful invocation.
func LogInvokeComplete(logger *slog.Logger, op string, durationMs float64, handlers int) {
	if logger == nil {
		return
	}
	logger.Debug("invocation completed",
		slog.String("operation", op),
		slog.Float64("duration_ms", durationMs),
		slog.Int("handlers", handlers),
	)
}

// LogInvokeError logs an invocation that surfaced a handler failure.
func LogInvokeError(logger *slog.Logger, op string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("invocation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogHandlerFailure logs a single handler failure. Swallowed failures are
// logged at WARN since nobody else will see them.
func LogHandlerFailure(logger *slog.Logger, handler string, index int, err error, swallowed bool) {
	if logger == nil {
		return
	}
	level := slog.LevelError
	if swallowed {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "handler failed",
		slog.String("handler", handler),
		slog.Int("index", index),
		slog.String("error", err.Error()),
		slog.Bool("swallowed", swallowed),
	)
}

// LogLateFailure logs an async handler, invoked synchronously, whose
// Awaitable failed after the invocation returned.
func LogLateFailure(logger *slog.Logger, handler string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("handler failed after invocation returned",
		slog.String("handler", handler),
		slog.String("error", err.Error()),
	)
}

// LogHandlerReclaimed logs a weak handler reclaimed by the garbage collector.
func LogHandlerReclaimed(logger *slog.Logger, handler string) {
	if logger == nil {
		return
	}
	logger.Info("handler reclaimed",
		slog.String("handler", handler),
	)
}

// LogHandlerFoundDead logs a weak handler found collected during invocation.
func LogHandlerFoundDead(logger *slog.Logger, handler string) {
	if logger == nil {
		return
	}
	logger.Debug("handler found dead",
		slog.String("handler", handler),
	)
}

// LogJournalError logs a reclamation journal failure (non-fatal).
func LogJournalError(logger *slog.Logger, handler string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal write failed",
		slog.String("handler", handler),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
