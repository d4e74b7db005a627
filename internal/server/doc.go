// Package server is the HTTP control plane: a gin router exposing the
// JSON-RPC tool surface at /rpc (one message per POST), a WebSocket
// endpoint at /ws (one message per frame), Prometheus metrics and a
// health probe.
package server
