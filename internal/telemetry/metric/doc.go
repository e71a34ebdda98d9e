// Package metric provides Prometheus metrics for the snapshot store.
//
// Metrics include:
//
//   - Type compositions by result
//   - Snapshot saves, loads and deletes
//   - Identity cache hits and size
//   - Proxy resolutions by result
//   - Record load latency
//   - HTTP requests and latency by route
//
// Metrics are exposed through Handler in Prometheus format, or
// written as text with WriteText.
package metric
