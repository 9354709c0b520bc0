// Package server exposes HTTP handlers, including WebSocket upgrades, the
// room directory API, health checks, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/roomrelay/roomrelay/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler handles WebSocket upgrade requests and manages client connections.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, creates a new Client instance, and registers it with the hub,
// which starts the client's read/write pumps.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, hub, r.RemoteAddr)

	select {
	case client.hub.register <- client:
	case <-client.hub.ctx.Done():
		_ = conn.Close()
	}
}

// RoomsHandler serves GET /api/rooms: the current room directory as JSON.
// The directory works without any live WebSocket connection and reports
// every room ever created with its live member count.
func RoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Rooms endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	directory := hub.Directory()
	if directory == nil {
		directory = []chat.RoomInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(directory); err != nil {
		log.Printf("Error writing rooms response: %v", err)
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Room relay server is running!")
}

// TestPageHandler serves an HTML test page for exercising the relay by hand.
// It provides a minimal interface to join a room, send messages, rename,
// and watch the room snapshot and directory update live.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Room Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages, #members, #rooms {
            border: 1px solid #ccc;
            padding: 10px;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #messages { height: 260px; overflow-y: scroll; }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; cursor: pointer; }
        .system { color: gray; font-style: italic; }
    </style>
</head>
<body>
    <h1>Room Relay Test</h1>

    <div>
        <input type="text" id="username" placeholder="Username" value="tester">
        <input type="text" id="room" placeholder="Room" value="general">
        <button onclick="join()">Join</button>
        <button onclick="rename()">Rename</button>
    </div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>

    <h3>Messages</h3>
    <div id="messages"></div>
    <h3>Members</h3>
    <div id="members"></div>
    <h3>Rooms</h3>
    <div id="rooms"></div>

    <script>
        const ws = new WebSocket('ws://' + location.host + '/ws');

        ws.onmessage = function(e) {
            const frame = JSON.parse(e.data);
            if (frame.event === 'message') {
                const div = document.createElement('div');
                if (frame.data.username === 'System') div.className = 'system';
                div.textContent = frame.data.username + ': ' + frame.data.text;
                const messages = document.getElementById('messages');
                messages.appendChild(div);
                messages.scrollTop = messages.scrollHeight;
            } else if (frame.event === 'roomData') {
                document.getElementById('members').textContent =
                    frame.data.users.map(u => u.username).join(', ');
            } else if (frame.event === 'roomsList') {
                document.getElementById('rooms').textContent =
                    frame.data.map(r => r.name + ' (' + r.userCount + ')').join(', ');
            }
        };

        function emit(event, data) {
            ws.send(JSON.stringify({event: event, data: data}));
        }

        function join() {
            emit('join', {
                username: document.getElementById('username').value,
                room: document.getElementById('room').value
            });
        }

        function rename() {
            emit('rename', {username: document.getElementById('username').value});
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            if (input.value.trim()) {
                emit('sendMessage', {text: input.value});
                input.value = '';
            }
        }

        document.getElementById('messageInput').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') sendMessage();
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
