// Package otel publishes goAuthClient refresh, gateway and session counters through
// an OpenTelemetry meter.
//
// [NewOTelExporter] creates one Int64ObservableCounter per counter and a set of
// Int64ObservableGauge instruments per histogram bucket. A single callback reads
// [goAuthClient.Client.MetricsSnapshot] on each collection cycle, so the exporter
// never holds state of its own. Callers own the MeterProvider.
package otel
