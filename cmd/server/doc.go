// Command server runs the terminal session daemon. It serves the
// JSON-RPC tool surface over HTTP/WebSocket by default, or over
// stdin/stdout with -stdio for use as a child controller process.
package main
