// Package chat implements the room registry: lazy room creation, the
// directory snapshot, and per-room membership and history storage.
package chat

// DefaultRoom exists from process start so the directory is never empty.
const DefaultRoom = "general"

// Member is a connected user. Exactly one room at a time; DisplayName is
// unique among the room's current members. ID is the stable identity history
// records are attributed to: it survives renames and connection reclaims,
// and is never reused, so two members who picked the same original name
// stay distinct.
type Member struct {
	ID           string
	Conn         ConnID
	DisplayName  string
	OriginalName string
	Room         string
}

// Room holds a room's members in join order, its append-only history, and
// the member-id-to-current-display-name index used to resolve history reads.
// Entries in names are never removed, so messages from departed members keep
// the name their author last held.
type Room struct {
	Name    string
	members []*Member
	history []Record
	names   map[string]string
}

func newRoom(name string) *Room {
	return &Room{Name: name, names: make(map[string]string)}
}

// memberByName returns the current member holding the display name, or nil.
func (r *Room) memberByName(displayName string) *Member {
	for _, m := range r.members {
		if m.DisplayName == displayName {
			return m
		}
	}
	return nil
}

func (r *Room) removeMember(conn ConnID) {
	for i, m := range r.members {
		if m.Conn == conn {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

// resolve projects a stored record to its wire shape with the author's
// current display name.
func (r *Room) resolve(rec Record) MessagePayload {
	name, ok := r.names[rec.MemberID]
	if !ok {
		name = rec.OriginalName
	}
	return MessagePayload{
		ID:               rec.ID,
		Text:             rec.Text,
		Username:         name,
		OriginalUsername: rec.OriginalName,
		Timestamp:        rec.Timestamp,
		UserID:           string(rec.Author),
	}
}

// snapshot builds the full-replace RoomData for the room's current state.
func (r *Room) snapshot() RoomData {
	users := make([]UserPayload, 0, len(r.members))
	for _, m := range r.members {
		users = append(users, UserPayload{
			ID:               string(m.Conn),
			Username:         m.DisplayName,
			OriginalUsername: m.OriginalName,
		})
	}
	messages := make([]MessagePayload, 0, len(r.history))
	for _, rec := range r.history {
		messages = append(messages, r.resolve(rec))
	}
	return RoomData{Room: r.Name, Users: users, Messages: messages}
}

// Registry owns the set of rooms. Rooms are created on first join and never
// removed for the lifetime of the process, so the directory only grows.
type Registry struct {
	rooms map[string]*Room
	order []string
}

// NewRegistry creates a registry pre-seeded with the default room.
func NewRegistry() *Registry {
	reg := &Registry{rooms: make(map[string]*Room)}
	reg.GetOrCreate(DefaultRoom)
	return reg
}

// GetOrCreate returns the named room, creating it empty if unknown.
// Idempotent; never fails.
func (reg *Registry) GetOrCreate(name string) *Room {
	if room, ok := reg.rooms[name]; ok {
		return room
	}
	room := newRoom(name)
	reg.rooms[name] = room
	reg.order = append(reg.order, name)
	return room
}

// lookup returns the named room or nil. Used where the room is known to
// exist already, such as operations on a current member's own room.
func (reg *Registry) lookup(name string) *Room {
	return reg.rooms[name]
}

// Directory snapshots every known room with its live member count, in
// registry insertion order.
func (reg *Registry) Directory() []RoomInfo {
	list := make([]RoomInfo, 0, len(reg.order))
	for _, name := range reg.order {
		list = append(list, RoomInfo{Name: name, UserCount: len(reg.rooms[name].members)})
	}
	return list
}
