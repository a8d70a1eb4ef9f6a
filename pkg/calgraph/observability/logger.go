// Package observability provides structured logging, metrics, and tracing
// for calgraph.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds event context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, 42)
//	enriched.Info("publishing") // includes event_id
func EnrichLogger(logger *slog.Logger, eventID int64) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.Int64("event_id", eventID))
}

// LogEventCreated logs a committed event creation.
func LogEventCreated(logger *slog.Logger, eventID int64, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("event created",
		slog.Int64("event_id", eventID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogCreateError logs a failed (rolled back) event creation.
func LogCreateError(logger *slog.Logger, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("event creation failed",
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogPublishError logs a notification that could not be published (non-fatal).
func LogPublishError(logger *slog.Logger, eventID int64, attempts int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("notification publish failed",
		slog.Int64("event_id", eventID),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
}

// LogDecodeError logs a notification payload that was skipped.
func LogDecodeError(logger *slog.Logger, topic string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("skipping undecodable notification",
		slog.String("topic", topic),
		slog.String("error", err.Error()),
	)
}

// LogSubscriberDropped logs a notification dropped for a slow subscriber.
func LogSubscriberDropped(logger *slog.Logger, subscriberID string, eventID int64) {
	if logger == nil {
		return
	}
	logger.Warn("subscriber buffer full, notification dropped",
		slog.String("subscriber_id", subscriberID),
		slog.Int64("event_id", eventID),
	)
}

// LogBatch logs one batched satellite lookup.
func LogBatch(logger *slog.Logger, entity string, requested, unique int) {
	if logger == nil {
		return
	}
	logger.Debug("loader batch",
		slog.String("entity", entity),
		slog.Int("requested", requested),
		slog.Int("unique", unique),
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
		return float64(time.Since(start).Milliseconds())
	}
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
