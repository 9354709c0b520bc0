// Package testhelpers provides common utilities and helper functions for testing the relay.
//
// This package contains reusable test utilities that are shared across unit and integration tests.
// It provides functions for creating test servers, driving the WebSocket event protocol, and
// asserting response properties to reduce code duplication in test files.
package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomrelay/roomrelay/internal/server"
)

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
// It fails the test with a descriptive error message if the status codes don't match.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
// It fails the test with a descriptive error message if the content types don't match.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket creates a WebSocket connection to the specified URL with
// the given Origin header. It returns the connection or an error if the
// connection fails.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// Emit sends one event frame over the WebSocket connection.
func Emit(conn *websocket.Conn, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(server.Envelope{Event: event, Data: payload})
}

// Join sends a join event for the given username and room.
func Join(conn *websocket.Conn, username, room string) error {
	return Emit(conn, server.EventJoin, server.JoinRequest{Username: username, Room: room})
}

// SendChat sends a sendMessage event with the given text.
func SendChat(conn *websocket.Conn, text string) error {
	return Emit(conn, server.EventSendMessage, server.SendMessageRequest{Text: text})
}

// Rename sends a rename event with the given username.
func Rename(conn *websocket.Conn, username string) error {
	return Emit(conn, server.EventRename, server.RenameRequest{Username: username})
}

// ReceiveEvent reads the next event frame from the connection and returns
// its name and raw data payload.
func ReceiveEvent(conn *websocket.Conn, timeout time.Duration) (string, json.RawMessage, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", nil, err
	}

	var env server.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return "", nil, err
	}
	return env.Event, env.Data, nil
}

// WaitForEvent reads frames until one matching the event name arrives and
// decodes its payload into target. Intervening frames of other types are
// discarded. Fails the test if no matching frame arrives within the timeout.
func WaitForEvent(t *testing.T, conn *websocket.Conn, event string, target any, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		name, data, err := ReceiveEvent(conn, time.Until(deadline))
		if err != nil {
			t.Fatalf("Error waiting for %q event: %v", event, err)
		}
		if name != event {
			continue
		}
		if target == nil {
			return
		}
		if err := json.Unmarshal(data, target); err != nil {
			t.Fatalf("Error decoding %q payload: %v", event, err)
		}
		return
	}
	t.Fatalf("Timed out waiting for %q event", event)
}

// WaitForMessageText reads frames until a message event with the given text
// arrives, returning its full payload. Other frames are discarded.
func WaitForMessageText(t *testing.T, conn *websocket.Conn, text string, timeout time.Duration) map[string]any {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		name, data, err := ReceiveEvent(conn, time.Until(deadline))
		if err != nil {
			t.Fatalf("Error waiting for message %q: %v", text, err)
		}
		if name != "message" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("Error decoding message payload: %v", err)
		}
		if payload["text"] == text {
			return payload
		}
	}
	t.Fatalf("Timed out waiting for message %q", text)
	return nil
}

// ExpectNoEvent asserts that no frame arrives on the connection within the
// timeout.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no event, but received one")
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

var roomCounter atomic.Int64

// UniqueRoomName returns a room name unused by other tests in this process.
// The hub's room registry is process-global and rooms are never deleted, so
// tests isolate themselves by room.
func UniqueRoomName(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), roomCounter.Add(1))
}
