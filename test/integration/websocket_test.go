// Package integration contains integration tests for the relay server.
//
// These tests verify that multiple components work together correctly by testing
// the complete system behavior with real HTTP servers, WebSocket connections,
// and end-to-end functionality. Integration tests ensure that the system works
// as expected when all components are assembled together.
package integration

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomrelay/roomrelay/internal/chat"
	"github.com/roomrelay/roomrelay/internal/server"
	"github.com/roomrelay/roomrelay/test/testhelpers"
)

const eventTimeout = 2 * time.Second

func buildWebSocketURL(t *testing.T, serverURL string) string {
	t.Helper()
	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("Failed to parse test server URL: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"
	return u.String()
}

func configureServerForTest(t *testing.T, baseURL string, customize func(cfg *server.Config)) {
	t.Helper()
	cfg := server.NewConfig()
	cfg.AllowedOrigins = append([]string{baseURL}, cfg.AllowedOrigins...)
	if customize != nil {
		customize(cfg)
	}
	server.SetConfig(cfg)
	t.Cleanup(func() {
		server.SetConfig(nil)
	})
}

// connectAndJoin dials the relay and joins the given room, draining the
// join's own roomsList frame so the caller starts from a quiet connection.
func connectAndJoin(t *testing.T, wsURL, origin, username, room string) *websocket.Conn {
	t.Helper()

	conn, err := testhelpers.ConnectWebSocket(wsURL, origin)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}

	if err := testhelpers.Join(conn, username, room); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}
	testhelpers.WaitForEvent(t, conn, "roomsList", nil, eventTimeout)

	return conn
}

// TestWebSocketEndpointIntegration tests the WebSocket endpoint with full server integration.
// It verifies that WebSocket connections can be established and that invalid
// requests are rejected in a real server environment.
func TestWebSocketEndpointIntegration(t *testing.T) {
	server.StartHub()

	mux := server.SetupRoutes()
	testServer := httptest.NewServer(mux)
	defer testServer.Close()
	configureServerForTest(t, testServer.URL, nil)

	wsURL := buildWebSocketURL(t, testServer.URL)

	t.Run("Successful WebSocket Connection", func(t *testing.T) {
		conn, err := testhelpers.ConnectWebSocket(wsURL, testServer.URL)
		if err != nil {
			t.Fatalf("Failed to connect to WebSocket: %v", err)
		}
		defer func() { _ = conn.Close() }()

		if err := testhelpers.CloseWebSocket(conn); err != nil {
			t.Errorf("Failed to close connection: %v", err)
		}
	})

	t.Run("Invalid HTTP Method", func(t *testing.T) {
		resp, err := http.Post(testServer.URL+"/ws", "text/plain", strings.NewReader("test"))
		if err != nil {
			t.Fatalf("Failed to make POST request: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("Expected status %d for POST request, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
		}
	})

	t.Run("GET Without WebSocket Headers", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/ws")
		if err != nil {
			t.Fatalf("Failed to make GET request: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status %d for GET without WebSocket headers, got %d", http.StatusBadRequest, resp.StatusCode)
		}
	})
}

// TestJoinFlow tests the complete join sequence: the joiner receives a
// welcome message, a room snapshot listing itself, and a directory update
// reporting the new room.
func TestJoinFlow(t *testing.T) {
	server.StartHub()

	mux := server.SetupRoutes()
	testServer := httptest.NewServer(mux)
	defer testServer.Close()
	configureServerForTest(t, testServer.URL, nil)

	wsURL := buildWebSocketURL(t, testServer.URL)
	room := testhelpers.UniqueRoomName("join-flow")

	conn, err := testhelpers.ConnectWebSocket(wsURL, testServer.URL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := testhelpers.Join(conn, "alice", room); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}

	welcome := testhelpers.WaitForMessageText(t, conn, "Welcome to "+room+" room, alice!", eventTimeout)
	if welcome["username"] != chat.SystemName {
		t.Errorf("Expected welcome from %q, got %q", chat.SystemName, welcome["username"])
	}
	if welcome["originalUsername"] != chat.SystemName {
		t.Errorf("Expected welcome originalUsername %q, got %q", chat.SystemName, welcome["originalUsername"])
	}

	var snapshot chat.RoomData
	testhelpers.WaitForEvent(t, conn, "roomData", &snapshot, eventTimeout)
	if snapshot.Room != room {
		t.Errorf("Expected snapshot for room %q, got %q", room, snapshot.Room)
	}
	if len(snapshot.Users) != 1 || snapshot.Users[0].Username != "alice" {
		t.Errorf("Expected snapshot with alice only, got %v", snapshot.Users)
	}
	if len(snapshot.Messages) != 0 {
		t.Errorf("Expected empty history in a fresh room, got %d messages", len(snapshot.Messages))
	}

	var directory []chat.RoomInfo
	testhelpers.WaitForEvent(t, conn, "roomsList", &directory, eventTimeout)
	found := false
	for _, info := range directory {
		if info.Name == room {
			found = true
			if info.UserCount != 1 {
				t.Errorf("Expected userCount 1 for %q, got %d", room, info.UserCount)
			}
		}
	}
	if !found {
		t.Errorf("Expected room %q in directory, got %v", room, directory)
	}
}

// TestInvalidFramesAreIgnored verifies that malformed JSON and unknown
// events are dropped without killing the connection.
func TestInvalidFramesAreIgnored(t *testing.T) {
	server.StartHub()

	mux := server.SetupRoutes()
	testServer := httptest.NewServer(mux)
	defer testServer.Close()
	configureServerForTest(t, testServer.URL, nil)

	wsURL := buildWebSocketURL(t, testServer.URL)
	room := testhelpers.UniqueRoomName("invalid-frames")

	conn, err := testhelpers.ConnectWebSocket(wsURL, testServer.URL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("Failed to send malformed frame: %v", err)
	}
	if err := testhelpers.Emit(conn, "bogusEvent", map[string]string{"x": "y"}); err != nil {
		t.Fatalf("Failed to send unknown event: %v", err)
	}

	// The connection still works: a join succeeds afterwards.
	if err := testhelpers.Join(conn, "alice", room); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}
	testhelpers.WaitForMessageText(t, conn, "Welcome to "+room+" room, alice!", eventTimeout)
}

// TestWhitespaceMessagesAreDropped verifies that empty and whitespace-only
// message text is rejected at the boundary and triggers no broadcast.
func TestWhitespaceMessagesAreDropped(t *testing.T) {
	server.StartHub()

	mux := server.SetupRoutes()
	testServer := httptest.NewServer(mux)
	defer testServer.Close()
	configureServerForTest(t, testServer.URL, nil)

	wsURL := buildWebSocketURL(t, testServer.URL)
	room := testhelpers.UniqueRoomName("whitespace")

	conn := connectAndJoin(t, wsURL, testServer.URL, "alice", room)
	defer func() { _ = conn.Close() }()

	if err := testhelpers.SendChat(conn, "   "); err != nil {
		t.Fatalf("Failed to send whitespace message: %v", err)
	}
	if err := testhelpers.SendChat(conn, ""); err != nil {
		t.Fatalf("Failed to send empty message: %v", err)
	}

	testhelpers.ExpectNoEvent(t, conn, 300*time.Millisecond)
}

// TestRenameFlow verifies the rename event over the wire: the room sees a
// rename notice and the snapshot shows the new display name on past
// messages while originalUsername is preserved.
func TestRenameFlow(t *testing.T) {
	server.StartHub()

	mux := server.SetupRoutes()
	testServer := httptest.NewServer(mux)
	defer testServer.Close()
	configureServerForTest(t, testServer.URL, nil)

	wsURL := buildWebSocketURL(t, testServer.URL)
	room := testhelpers.UniqueRoomName("rename-flow")

	conn := connectAndJoin(t, wsURL, testServer.URL, "alice", room)
	defer func() { _ = conn.Close() }()

	if err := testhelpers.SendChat(conn, "before rename"); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
	testhelpers.WaitForMessageText(t, conn, "before rename", eventTimeout)

	if err := testhelpers.Rename(conn, "alicia"); err != nil {
		t.Fatalf("Failed to send rename: %v", err)
	}

	testhelpers.WaitForMessageText(t, conn, "alice is now known as alicia", eventTimeout)

	var snapshot chat.RoomData
	testhelpers.WaitForEvent(t, conn, "roomData", &snapshot, eventTimeout)
	if len(snapshot.Users) != 1 || snapshot.Users[0].Username != "alicia" {
		t.Fatalf("Expected member renamed to alicia, got %v", snapshot.Users)
	}
	if snapshot.Users[0].OriginalUsername != "alice" {
		t.Errorf("Expected originalUsername alice, got %q", snapshot.Users[0].OriginalUsername)
	}

	foundRewritten := false
	for _, msg := range snapshot.Messages {
		if msg.Text == "before rename" {
			foundRewritten = true
			if msg.Username != "alicia" {
				t.Errorf("Expected past message shown as alicia, got %q", msg.Username)
			}
			if msg.OriginalUsername != "alice" {
				t.Errorf("Expected past message originalUsername alice, got %q", msg.OriginalUsername)
			}
		}
	}
	if !foundRewritten {
		t.Error("Expected past message in snapshot after rename")
	}
}
