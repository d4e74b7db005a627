// Package middleware provides gin middleware for the control plane:
// CORS and per-client rate limiting.
package middleware
