// Package server provides the shared state of the MCP server and the
// Prometheus metrics endpoint.
//
// ServerContext caches one mailbox client per account and serializes
// extraction runs: BeginRun fails with ErrRunInProgress while another run
// is active. MetricsServer exposes /metrics from the instrumentation
// provider's private registry together with the HealthChecker endpoints
// (/healthz, /readyz, /healthz/detailed).
package server
