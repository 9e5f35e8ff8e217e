package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config configures the telemetry stack.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// MetricReader is pluggable (Prometheus, OTLP, stdout, manual in tests).
	// When nil, metrics are recorded against no-op instruments.
	MetricReader sdkmetric.Reader
}

// Telemetry bundles the meter provider and the backend's instruments.
type Telemetry struct {
	MeterProvider metric.MeterProvider
	Metrics       *Metrics

	shutdown func(context.Context) error
}

// Init initializes OpenTelemetry metrics with graceful degradation.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tel := &Telemetry{}

	if cfg.MetricReader != nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(cfg.MetricReader),
		)
		tel.MeterProvider = mp
		tel.shutdown = mp.Shutdown
		otel.SetMeterProvider(mp)
	} else {
		tel.MeterProvider = otel.GetMeterProvider()
	}

	meter := tel.MeterProvider.Meter("github.com/auriga-id/auriga")
	metrics, err := NewMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	tel.Metrics = metrics

	return tel, nil
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}
