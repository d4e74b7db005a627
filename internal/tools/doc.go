// Package tools is the external control surface: a registry of named
// operations (create a session, send input, read output) invocable with
// JSON arguments, and a dispatcher that serves the registry over any
// jsonrpc.Transport.
package tools
