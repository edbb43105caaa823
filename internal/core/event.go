package core

import (
	"time"

	"github.com/pocketgarden/pocketgarden-server/internal/store"
)

// EventKind is a notification the hub emits to clients.
type EventKind int

const (
	// EventFriendOnline notifies that an accepted friend connected.
	EventFriendOnline EventKind = iota
	// EventFriendOffline notifies that an accepted friend disconnected.
	EventFriendOffline
	// EventFriendRequestReceived notifies the target of a new friend request.
	EventFriendRequestReceived
	// EventFriendRequestResponded notifies the requester of accept/reject.
	EventFriendRequestResponded
	// EventUnfriended notifies the other party of an unfriend.
	EventUnfriended
	// EventNewMessage delivers a chat message.
	EventNewMessage
	// EventFriendGardenUpdate delivers a friend's public garden update.
	EventFriendGardenUpdate
	// EventGardenVisitRequest asks the garden owner to admit a visitor.
	EventGardenVisitRequest
	// EventGardenVisitResult relays the owner's answer to the requester.
	EventGardenVisitResult
	// EventAdminAction delivers an administrative notice to one session.
	EventAdminAction
	// EventAdminAnnouncement delivers an announcement to every session.
	EventAdminAnnouncement
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	User     Identity // the peer the event is about
	Accepted bool     // for EventFriendRequestResponded
	Message  *store.Message
	Garden   *GardenUpdate
	Visit    *Visit
	Action   string // EventAdminAction subtype
	Notice   string // admin notice or announcement text
}

// GardenUpdate carries a garden payload in fan-out events, uncompressed.
type GardenUpdate struct {
	Slot      int
	Blob      []byte
	IsPublic  bool
	UpdatedAt time.Time
}

// Visit correlates a garden visit request with its response.
type Visit struct {
	VisitID string
	Allowed bool
	Blob    []byte
}

// OnlineUser is one row of the presence snapshot.
type OnlineUser struct {
	ID       int64
	Username string
	LastSeen time.Time
}

// Admin action subtypes.
const (
	AdminActionForceLogout = "force_logout"
	AdminActionMuteNotice  = "mute_notice"
)
