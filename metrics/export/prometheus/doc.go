// Package prometheus exports Engine metrics through client_golang.
//
// [Collector] turns each scrape into const metrics built from a fresh
// [oroauth.Engine.MetricsSnapshot]. [Handler] wraps it in a dedicated
// registry for mounting at /metrics.
package prometheus
