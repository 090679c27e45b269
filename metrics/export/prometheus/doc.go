// Package prometheus exposes goAuthClient metrics through prometheus/client_golang.
//
// [PrometheusExporter] is a prometheus.Collector reading [goAuthClient.Client.MetricsSnapshot]
// on every scrape. Register it with any registry, or mount [PrometheusExporter.Handler],
// which serves it from a private registry. Counter names are goauthclient_*_total; the
// single histogram is goauthclient_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global Prometheus registry.
//   - Mutate client state.
package prometheus
