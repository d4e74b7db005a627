// Package jsonrpc implements the newline-delimited JSON-RPC 2.0 message
// model and transports used to drive the session engine remotely.
//
// Each line is exactly one Request, Response or Notification; there is no
// batching. IDs round-trip exactly, whether integer or string.
package jsonrpc
