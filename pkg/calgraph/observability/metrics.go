package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records calgraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordCreate records one createEvent pipeline run.
	RecordCreate(ctx context.Context, duration time.Duration, err error)

	// RecordPublish records one notification publish (after retries).
	RecordPublish(ctx context.Context, topic string, err error)

	// RecordDrop records a notification dropped for a slow subscriber.
	RecordDrop(ctx context.Context, subscriberID string)

	// RecordDecodeError records a skipped, undecodable notification.
	RecordDecodeError(ctx context.Context, topic string)

	// RecordBatch records one batched satellite query.
	RecordBatch(ctx context.Context, entity string, size int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	eventsCreated metric.Int64Counter
	eventsFailed  metric.Int64Counter
	createLatency metric.Float64Histogram
	published     metric.Int64Counter
	publishFailed metric.Int64Counter
	dropped       metric.Int64Counter
	decodeErrors  metric.Int64Counter
	batchSize     metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter("calgraph"))
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates the instruments on the given meter.
func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	m := &otelMetrics{}
	var err error

	if m.eventsCreated, err = meter.Int64Counter("calgraph.events.created",
		metric.WithDescription("Number of events committed"),
	); err != nil {
		return nil, err
	}

	if m.eventsFailed, err = meter.Int64Counter("calgraph.events.failed",
		metric.WithDescription("Number of event creations rolled back or rejected"),
	); err != nil {
		return nil, err
	}

	if m.createLatency, err = meter.Float64Histogram("calgraph.events.create_latency_ms",
		metric.WithDescription("Event creation latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.published, err = meter.Int64Counter("calgraph.notifications.published",
		metric.WithDescription("Number of notifications published"),
	); err != nil {
		return nil, err
	}

	if m.publishFailed, err = meter.Int64Counter("calgraph.notifications.publish_failed",
		metric.WithDescription("Number of notifications that could not be published"),
	); err != nil {
		return nil, err
	}

	if m.dropped, err = meter.Int64Counter("calgraph.notifications.dropped",
		metric.WithDescription("Number of notifications dropped for slow subscribers"),
	); err != nil {
		return nil, err
	}

	if m.decodeErrors, err = meter.Int64Counter("calgraph.notifications.decode_errors",
		metric.WithDescription("Number of undecodable notifications skipped"),
	); err != nil {
		return nil, err
	}

	if m.batchSize, err = meter.Int64Histogram("calgraph.loader.batch_size",
		metric.WithDescription("Distinct event ids per batched satellite query"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordCreate records one pipeline run.
func (m *otelMetrics) RecordCreate(ctx context.Context, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.createLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.eventsFailed.Add(ctx, 1)
		return
	}
	m.eventsCreated.Add(ctx, 1)
}

// RecordPublish records a publish outcome.
func (m *otelMetrics) RecordPublish(ctx context.Context, topic string, err error) {
	attrs := metric.WithAttributes(attribute.String("topic", topic))
	if err != nil {
		m.publishFailed.Add(ctx, 1, attrs)
		return
	}
	m.published.Add(ctx, 1, attrs)
}

// RecordDrop records a dropped notification.
func (m *otelMetrics) RecordDrop(ctx context.Context, subscriberID string) {
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("subscriber_id", subscriberID)))
}

// RecordDecodeError records a skipped notification.
func (m *otelMetrics) RecordDecodeError(ctx context.Context, topic string) {
	m.decodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

// RecordBatch records a batch size.
func (m *otelMetrics) RecordBatch(ctx context.Context, entity string, size int) {
	m.batchSize.Record(ctx, int64(size), metric.WithAttributes(attribute.String("entity", entity)))
}
