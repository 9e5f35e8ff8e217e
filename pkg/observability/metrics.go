// Package observability provides OpenTelemetry metric instruments for the
// command engine, event store, and projection engine.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the backend.
type Metrics struct {
	// Command metrics
	CommandDuration metric.Float64Histogram
	CommandTotal    metric.Int64Counter
	CommandErrors   metric.Int64Counter
	CommandRetries  metric.Int64Counter

	// Event store metrics
	EventsPushed      metric.Int64Counter
	EventStoreLatency metric.Float64Histogram

	// Projection metrics
	ProjectionLag    metric.Float64Gauge
	ProjectionErrors metric.Int64Counter

	// Event bus metrics
	BusMessages metric.Int64Counter
}

// NewMetrics creates all metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.CommandDuration, err = meter.Float64Histogram(
		"auriga.command.duration",
		metric.WithDescription("Command execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.duration: %w", err)
	}

	m.CommandTotal, err = meter.Int64Counter(
		"auriga.command.total",
		metric.WithDescription("Total commands executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.total: %w", err)
	}

	m.CommandErrors, err = meter.Int64Counter(
		"auriga.command.errors",
		metric.WithDescription("Total command errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.errors: %w", err)
	}

	m.CommandRetries, err = meter.Int64Counter(
		"auriga.command.retries",
		metric.WithDescription("Command retries after concurrency conflicts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.retries: %w", err)
	}

	m.EventsPushed, err = meter.Int64Counter(
		"auriga.events.pushed",
		metric.WithDescription("Total events pushed to the event store"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events.pushed: %w", err)
	}

	m.EventStoreLatency, err = meter.Float64Histogram(
		"auriga.eventstore.latency",
		metric.WithDescription("Event store operation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating eventstore.latency: %w", err)
	}

	m.ProjectionLag, err = meter.Float64Gauge(
		"auriga.projection.lag",
		metric.WithDescription("Projection lag in positions behind the event stream"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating projection.lag: %w", err)
	}

	m.ProjectionErrors, err = meter.Int64Counter(
		"auriga.projection.errors",
		metric.WithDescription("Projection processing errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating projection.errors: %w", err)
	}

	m.BusMessages, err = meter.Int64Counter(
		"auriga.bus.messages",
		metric.WithDescription("Event notifications published to the bus"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating bus.messages: %w", err)
	}

	return m, nil
}

// RecordCommand records a command execution.
func (m *Metrics) RecordCommand(ctx context.Context, commandName string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("command", commandName),
	}

	m.CommandDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.CommandTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil {
		errorAttrs := append(attrs, attribute.String("error_type", fmt.Sprintf("%T", err)))
		m.CommandErrors.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
	}
}

// RecordRetry records a push retry after a concurrency conflict.
func (m *Metrics) RecordRetry(ctx context.Context, commandName string) {
	if m == nil {
		return
	}
	m.CommandRetries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", commandName),
	))
}

// RecordPush records an event store push.
func (m *Metrics) RecordPush(ctx context.Context, duration time.Duration, eventCount int) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation", "push"),
	}
	m.EventStoreLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.EventsPushed.Add(ctx, int64(eventCount), metric.WithAttributes(attrs...))
}

// RecordProjectionLag records how many positions behind a projection is.
func (m *Metrics) RecordProjectionLag(ctx context.Context, projectionName string, lag float64) {
	if m == nil {
		return
	}
	m.ProjectionLag.Record(ctx, lag, metric.WithAttributes(
		attribute.String("projection", projectionName),
	))
}

// RecordProjectionError records a projection processing error.
func (m *Metrics) RecordProjectionError(ctx context.Context, projectionName string, errorType string) {
	if m == nil {
		return
	}
	m.ProjectionErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("projection", projectionName),
		attribute.String("error_type", errorType),
	))
}

// RecordBusMessages records published bus notifications.
func (m *Metrics) RecordBusMessages(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.BusMessages.Add(ctx, int64(count))
}
