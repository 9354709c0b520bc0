// Package server implements the HTTP and WebSocket transport for the relay.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, the wire protocol, routing, and HTTP handlers to
// keep the codebase maintainable and testable as the project grows. The
// chat semantics themselves live in the chat package; this package moves
// bytes and serializes events onto the hub loop.
package server
