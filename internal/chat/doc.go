// Package chat implements the relay's core state: the room registry,
// member identity and session tracking, per-room message history, and the
// broadcast planning that turns each state change into a set of targeted
// emissions.
//
// The package is transport-free. Callers feed it connection-scoped events
// (join, send, rename, disconnect) and deliver the emissions it returns.
// State is not internally synchronized: the caller must serialize access,
// which the hub does by funnelling every event through a single loop.
package chat
