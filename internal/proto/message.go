package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeSendMessage        = "send_message"
	InboundTypeSendFriendRequest  = "send_friend_request"
	InboundTypeRespondRequest     = "respond_friend_request"
	InboundTypeUnfriend           = "unfriend_user"
	InboundTypeGardenUpdate       = "garden_update"
	InboundTypeGardenGet          = "garden_get"
	InboundTypeVisitGarden        = "visit_garden"
	InboundTypeGardenVisitRespond = "garden_visit_response"
	InboundTypeWhoIsOnline        = "who_is_online"

	OutboundTypeAck   = "ack"
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Event names used in the outbound envelope.
const (
	EventNameFriendOnline       = "friend_online"
	EventNameFriendOffline      = "friend_offline"
	EventNameRequestReceived    = "friend_request_received"
	EventNameRequestResponded   = "friend_request_responded"
	EventNameUnfriended         = "unfriended"
	EventNameNewMessage         = "new_message"
	EventNameGardenUpdate       = "friend_garden_update"
	EventNameGardenVisitRequest = "garden_visit_request"
	EventNameGardenVisitResult  = "garden_visit_result"
	EventNameAdminAction        = "admin_action"
	EventNameAdminAnnouncement  = "admin_announcement"
)

// SendMessageData is a chat message from the client. A missing receiver_id
// means broadcast.
type SendMessageData struct {
	ReceiverID *int64 `json:"receiver_id,omitempty"`
	Message    string `json:"message"`
}

// SendFriendRequestData requests friendship with a user by name.
type SendFriendRequestData struct {
	TargetUsername string `json:"target_username"`
}

// RespondFriendRequestData accepts or rejects a pending request.
type RespondFriendRequestData struct {
	FromID   int64 `json:"from_id"`
	Accepted bool  `json:"accepted"`
}

// UnfriendData removes an accepted friendship.
type UnfriendData struct {
	FriendID int64 `json:"friend_id"`
}

// GardenUpdateData saves the client's garden snapshot for one slot. Slot 0
// means the default slot. Blob is base64 on the wire.
type GardenUpdateData struct {
	Slot     int    `json:"slot,omitempty"`
	Blob     []byte `json:"blob"`
	IsPublic bool   `json:"is_public"`
}

// GardenGetData reads the client's own garden snapshot back.
type GardenGetData struct {
	Slot int `json:"slot,omitempty"`
}

// VisitGardenData asks to visit another user's garden.
type VisitGardenData struct {
	TargetID int64 `json:"target_id"`
}

// GardenVisitResponseData is the owner's answer to a visit request.
type GardenVisitResponseData struct {
	RequesterID int64  `json:"requester_id"`
	VisitID     string `json:"visit_id"`
	Allowed     bool   `json:"allowed"`
	Blob        []byte `json:"blob,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// UserRef identifies the peer an event is about.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// EventPresence notifies that a friend came online or went offline.
type EventPresence struct {
	User UserRef `json:"user"`
}

// EventFriendRequest notifies the target of a new friend request.
type EventFriendRequest struct {
	From UserRef `json:"from"`
}

// EventFriendResponse notifies the requester of accept or reject.
type EventFriendResponse struct {
	User     UserRef `json:"user"`
	Accepted bool    `json:"accepted"`
}

// EventUnfriended notifies the other party of an unfriend.
type EventUnfriended struct {
	User UserRef `json:"user"`
}

// EventNewMessage delivers a chat message.
type EventNewMessage struct {
	ID        int64   `json:"id"`
	Sender    UserRef `json:"sender"`
	Broadcast bool    `json:"broadcast"`
	Message   string  `json:"message"`
	TS        int64   `json:"ts"`
}

// MessageSentAck acknowledges a send attempt to the sender.
type MessageSentAck struct {
	Success   bool  `json:"success"`
	MessageID int64 `json:"message_id,omitempty"`
}

// FriendRequestAck acknowledges that a friend request went out.
type FriendRequestAck struct {
	Target UserRef `json:"target"`
}

// EventGardenUpdate delivers a friend's public garden snapshot.
type EventGardenUpdate struct {
	User      UserRef `json:"user"`
	Slot      int     `json:"slot"`
	Blob      []byte  `json:"blob"`
	UpdatedAt int64   `json:"updated_at"`
}

// GardenSnapshot is the client's own garden read back via garden_get, or the
// ack payload of a garden_update.
type GardenSnapshot struct {
	Slot      int    `json:"slot"`
	Blob      []byte `json:"blob,omitempty"`
	IsPublic  bool   `json:"is_public"`
	UpdatedAt int64  `json:"updated_at"`
}

// EventGardenVisitRequest asks the garden owner to admit a visitor.
type EventGardenVisitRequest struct {
	Requester UserRef `json:"requester"`
	VisitID   string  `json:"visit_id"`
}

// GardenVisitAck acknowledges a visit request with its correlation id.
type GardenVisitAck struct {
	VisitID string `json:"visit_id"`
}

// EventGardenVisitResult relays the owner's answer to the requester.
type EventGardenVisitResult struct {
	Owner   UserRef `json:"owner"`
	VisitID string  `json:"visit_id"`
	Allowed bool    `json:"allowed"`
	Blob    []byte  `json:"blob,omitempty"`
}

// EventAdminAction delivers an administrative notice to one session.
type EventAdminAction struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
}

// EventAdminAnnouncement is a server-wide announcement.
type EventAdminAnnouncement struct {
	Message string `json:"message"`
}

// OnlineUser is one row of the who_is_online answer.
type OnlineUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	LastSeen int64  `json:"last_seen"`
}

// OnlineList answers who_is_online.
type OnlineList struct {
	Users []OnlineUser `json:"users"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
