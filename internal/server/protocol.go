// Package server defines the JSON envelope framing used on the WebSocket
// wire and helpers shared across client and hub logic.
package server

import (
	"encoding/json"
	"strings"
)

// Envelope frames every WebSocket message in both directions as
// {"event": ..., "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound event names accepted from clients.
const (
	EventJoin        = "join"
	EventSendMessage = "sendMessage"
	EventRename      = "rename"
)

// JoinRequest asks to join a room under a display name. Any name and any
// room are accepted; a name already present in the room reclaims that
// member's identity.
type JoinRequest struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// SendMessageRequest posts a message to the sender's current room.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// RenameRequest changes the sender's display name while keeping its
// original identity.
type RenameRequest struct {
	Username string `json:"username"`
}

// encodeEvent marshals an outbound event frame.
func encodeEvent(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: payload})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
