// Package telemetry wires the storage engine's OTel metric instruments to a
// real exporter. Until Init is called, every instrument created via
// otel.Meter(...) forwards to the SDK's no-op global provider, so dispatch
// and notifier instrumentation is always safe to register at package init
// time regardless of whether a caller ever enables export.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Init installs a periodic stdout metric exporter as the global
// MeterProvider. It is intended for local development and diagnostics; a
// production embedder would instead call otel.SetMeterProvider with its own
// provider before opening a Store.
func Init() (shutdown func(context.Context) error, err error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	provider := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// InitTracing installs a stdout span exporter as the global TracerProvider,
// so the write-task span internal/dispatch's writer loop starts on
// otel.Tracer(...) (a no-op until this or an embedder's own provider is
// installed) actually exports somewhere.
func InitTracing() (shutdown func(context.Context) error, err error) {
	exporter, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
