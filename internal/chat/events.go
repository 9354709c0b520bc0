// Package chat defines the outbound event vocabulary and the audience
// targeting used by the hub when delivering broadcasts.
package chat

// Outbound event names as they appear on the wire.
const (
	EventMessage   = "message"
	EventRoomData  = "roomData"
	EventRoomsList = "roomsList"
)

// Scope selects the audience of an emission.
type Scope int

const (
	// ScopeConn targets a single connection.
	ScopeConn Scope = iota
	// ScopeRoom targets every current member of a room.
	ScopeRoom
	// ScopeRoomExcept targets every current member of a room except one
	// connection (the join-notice case).
	ScopeRoomExcept
	// ScopeAll targets every connection regardless of room.
	ScopeAll
)

// Emission is one outbound event with its audience. State operations return
// emissions in delivery order; the hub resolves audiences against current
// membership and writes the frames.
type Emission struct {
	Scope Scope
	Conn  ConnID // target for ScopeConn, exclusion for ScopeRoomExcept
	Room  string
	Event string
	Data  any
}

func toConn(conn ConnID, event string, data any) Emission {
	return Emission{Scope: ScopeConn, Conn: conn, Event: event, Data: data}
}

func toRoom(room, event string, data any) Emission {
	return Emission{Scope: ScopeRoom, Room: room, Event: event, Data: data}
}

func toRoomExcept(room string, conn ConnID, event string, data any) Emission {
	return Emission{Scope: ScopeRoomExcept, Room: room, Conn: conn, Event: event, Data: data}
}

func toAll(event string, data any) Emission {
	return Emission{Scope: ScopeAll, Event: event, Data: data}
}
