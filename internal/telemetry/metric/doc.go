// Package metric provides Prometheus metrics for canvasvault.
//
// Metrics include:
//
//   - Storage mode and failover counters
//   - Per-collection storage operation counters
//   - Snapshot export/import durations, record counts and failures
//   - HTTP request counters and latency histograms
//
// Metrics are exposed at /metrics in Prometheus format. All Registry
// methods are safe to call on a nil *Registry, which records nothing.
package metric
