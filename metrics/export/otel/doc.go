// Package otel provides OpenTelemetry metric exporter bindings for the
// session lifecycle counters.
//
// [NewOTelExporter] registers an Int64ObservableCounter per lifecycle metric.
// A single callback reads [sessionkit.Orchestrator.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate orchestrator state.
package otel
