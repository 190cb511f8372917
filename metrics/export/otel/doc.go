// Package otel publishes oroauth counters through an OpenTelemetry meter.
//
// [NewExporter] registers a few attribute-keyed instruments rather than one
// instrument per engine counter: login attempts carry an "outcome" attribute,
// session checks a "result", logouts a "scope", and latency buckets an
// "operation" and an "le" upper bound. A single callback reads
// [oroauth.Engine.MetricsSnapshot] on each collection cycle.
//
// Callers own the MeterProvider; the exporter only borrows a Meter.
package otel
