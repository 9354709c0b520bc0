// Package chat defines the message history records and the wire payload
// shapes shared by the core and the transport layer.
package chat

// ConnID identifies a live transport connection. It is reassigned to an
// existing member when the same display name rejoins a room.
type ConnID string

// SystemName is the author of welcome and presence notices.
const SystemName = "System"

// Record is one stored history entry. Records are immutable once appended;
// the author's current display name is resolved at read time by MemberID
// through the room's name index, so a rename never touches stored records.
// OriginalName is carried for the wire payload only, it is not an identity.
type Record struct {
	ID           string
	Text         string
	MemberID     string
	OriginalName string
	Author       ConnID
	Timestamp    int64
}

// MessagePayload is the wire shape of a chat or system message.
type MessagePayload struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	Username         string `json:"username"`
	OriginalUsername string `json:"originalUsername"`
	Timestamp        int64  `json:"timestamp"`
	UserID           string `json:"userId,omitempty"`
}

// UserPayload is the wire shape of a room member.
type UserPayload struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	OriginalUsername string `json:"originalUsername"`
}

// RoomData is the full-replace room snapshot sent after every membership or
// history change. Receivers overwrite local state with it wholesale.
type RoomData struct {
	Room     string           `json:"room"`
	Users    []UserPayload    `json:"users"`
	Messages []MessagePayload `json:"messages"`
}

// RoomInfo is one directory entry, also served by GET /api/rooms.
type RoomInfo struct {
	Name      string `json:"name"`
	UserCount int    `json:"userCount"`
}
