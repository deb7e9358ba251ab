// Package observability provides OpenTelemetry instrumentation for tracing and metrics.
package observability

import (
	"context"
	"errors"
	"fmt"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Metrics owns the meter provider and the registry its exporter feeds.
// A CLI run is too short to be scraped, so the registry is written to a
// node_exporter textfile instead of being served.
type Metrics struct {
	Registry *promclient.Registry
	provider *metric.MeterProvider
}

// InitMetrics initializes the global OpenTelemetry meter provider with a
// Prometheus exporter backed by a private registry.
func InitMetrics() (*Metrics, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	return &Metrics{Registry: registry, provider: provider}, nil
}

// WriteTextfile writes the current metric values to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := promclient.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// Shutdown writes the textfile, if any, and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context, path string) error {
	writeErr := m.WriteTextfile(path)
	return errors.Join(writeErr, m.provider.Shutdown(ctx))
}
