// Package monitoring exposes Prometheus metrics for the session engine
// and a gin middleware that records control-plane request metrics.
package monitoring
