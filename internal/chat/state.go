// Package chat implements the session state machine: join with
// reclaim-by-name, message append, explicit rename, and disconnect, each
// returning the broadcasts it triggers.
package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the process-wide chat state: the room registry plus the
// connection-to-member index. It must only be touched from the hub's event
// loop; no operation here takes locks.
type State struct {
	registry *Registry
	byConn   map[ConnID]*Member
}

// NewState creates empty chat state with the default room registered.
func NewState() *State {
	return &State{
		registry: NewRegistry(),
		byConn:   make(map[ConnID]*Member),
	}
}

// Join adds the connection to the room, creating the room on demand. If a
// current member of the room already holds the requested name, the join is a
// reclaim: that member's connection id is rebound to the new connection and
// no member is added. Two distinct end-users picking the same name in one
// room therefore merge; that is accepted behavior, not an error.
//
// Join never fails. It returns, in delivery order: a welcome to the joiner,
// a join notice to the rest of the room, a room snapshot to the room, and a
// directory update to every connection.
func (s *State) Join(conn ConnID, username, roomName string) []Emission {
	// A connection holds at most one membership. Joining again under a new
	// room or name first leaves the previous room, notices included, so no
	// stale member lingers there.
	var left []Emission
	if prev, ok := s.byConn[conn]; ok && (prev.Room != roomName || prev.DisplayName != username) {
		left = s.Disconnect(conn)
	}

	room := s.registry.GetOrCreate(roomName)

	if m := room.memberByName(username); m != nil {
		delete(s.byConn, m.Conn)
		m.Conn = conn
		s.byConn[conn] = m
	} else {
		m := &Member{
			ID:           uuid.NewString(),
			Conn:         conn,
			DisplayName:  username,
			OriginalName: username,
			Room:         roomName,
		}
		room.members = append(room.members, m)
		room.names[m.ID] = username
		s.byConn[conn] = m
	}

	welcome := s.systemMessage(fmt.Sprintf("Welcome to %s room, %s!", roomName, username))
	notice := s.systemMessage(fmt.Sprintf("%s has joined the room", username))
	return append(left,
		toConn(conn, EventMessage, welcome),
		toRoomExcept(roomName, conn, EventMessage, notice),
		toRoom(roomName, EventRoomData, room.snapshot()),
		toAll(EventRoomsList, s.registry.Directory()),
	)
}

// Send appends the text to the sender's room history and returns the message
// broadcast plus an updated snapshot, both to the whole room including the
// sender. A send from an unknown connection (a message racing a disconnect)
// is silently dropped.
func (s *State) Send(conn ConnID, text string) []Emission {
	m, ok := s.byConn[conn]
	if !ok {
		return nil
	}
	room := s.registry.lookup(m.Room)

	rec := Record{
		ID:           uuid.NewString(),
		Text:         text,
		MemberID:     m.ID,
		OriginalName: m.OriginalName,
		Author:       conn,
		Timestamp:    time.Now().UnixMilli(),
	}
	room.history = append(room.history, rec)

	return []Emission{
		toRoom(m.Room, EventMessage, room.resolve(rec)),
		toRoom(m.Room, EventRoomData, room.snapshot()),
	}
}

// Rename changes the member's display name while keeping its original name,
// so every past message from the identity shows the new name in later
// snapshots. A rename from an unknown connection, to the current name, or to
// a name another current member of the room holds is a no-op.
func (s *State) Rename(conn ConnID, username string) []Emission {
	m, ok := s.byConn[conn]
	if !ok || username == m.DisplayName {
		return nil
	}
	room := s.registry.lookup(m.Room)
	if room.memberByName(username) != nil {
		return nil
	}

	prev := m.DisplayName
	m.DisplayName = username
	room.names[m.ID] = username

	notice := s.systemMessage(fmt.Sprintf("%s is now known as %s", prev, username))
	return []Emission{
		toRoom(m.Room, EventMessage, notice),
		toRoom(m.Room, EventRoomData, room.snapshot()),
	}
}

// Disconnect removes the member from its room and from the connection index.
// History stays attributed to the member's original name. Unknown
// connections (never joined, or superseded by a reclaim) are a no-op.
func (s *State) Disconnect(conn ConnID) []Emission {
	m, ok := s.byConn[conn]
	if !ok {
		return nil
	}
	delete(s.byConn, conn)
	room := s.registry.lookup(m.Room)
	room.removeMember(conn)

	notice := s.systemMessage(fmt.Sprintf("%s has left the room", m.DisplayName))
	return []Emission{
		toRoom(m.Room, EventMessage, notice),
		toRoom(m.Room, EventRoomData, room.snapshot()),
		toAll(EventRoomsList, s.registry.Directory()),
	}
}

// Directory returns the current room directory snapshot.
func (s *State) Directory() []RoomInfo {
	return s.registry.Directory()
}

// RoomConns lists the connection ids of the room's current members, used by
// the hub to resolve room-scoped emissions.
func (s *State) RoomConns(roomName string) []ConnID {
	room := s.registry.lookup(roomName)
	if room == nil {
		return nil
	}
	conns := make([]ConnID, 0, len(room.members))
	for _, m := range room.members {
		conns = append(conns, m.Conn)
	}
	return conns
}

func (s *State) systemMessage(text string) MessagePayload {
	return MessagePayload{
		ID:               uuid.NewString(),
		Text:             text,
		Username:         SystemName,
		OriginalUsername: SystemName,
		Timestamp:        time.Now().UnixMilli(),
	}
}
