package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/pocketgarden/pocketgarden-server/internal/moderation"
	"github.com/pocketgarden/pocketgarden-server/internal/service/friends"
	"github.com/pocketgarden/pocketgarden-server/internal/service/garden"
	"github.com/pocketgarden/pocketgarden-server/internal/store"
)

// Hub owns the session registry and the presence view derived from it, and
// routes every chat, friend, garden, and admin event. Registry mutations run
// under a single mutex; persistence happens outside the lock, and each
// operation's events only fire after its own persistence step completed.
//
// The registry is pure in-memory state: a cold start is empty and the
// durable stores are the only source of truth.
type Hub struct {
	store   store.Store
	gate    *moderation.Gate
	friends *friends.Service
	gardens *garden.Service
	log     *zerolog.Logger

	maxMessageLen int

	mu       sync.Mutex
	sessions map[int64]*Client
	presence map[int64]OnlineUser
}

// NewHub creates a hub. maxMessageLen of 0 falls back to a default.
func NewHub(st store.Store, gate *moderation.Gate, friendsSvc *friends.Service, gardenSvc *garden.Service, logger *zerolog.Logger, maxMessageLen int) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if maxMessageLen <= 0 {
		maxMessageLen = 2000
	}
	return &Hub{
		store:         st,
		gate:          gate,
		friends:       friendsSvc,
		gardens:       gardenSvc,
		log:           logger,
		maxMessageLen: maxMessageLen,
		sessions:      make(map[int64]*Client),
		presence:      make(map[int64]OnlineUser),
	}
}

// Admit installs a client as its user's single live session, evicting any
// prior session for the same user (last-connect-wins, no notice to the
// evicted handle), then notifies accepted live friends and updates the
// durable online flag best-effort.
func (h *Hub) Admit(ctx context.Context, client *Client) {
	uid := client.User.ID

	friendIDs, err := h.friends.AcceptedFriends(ctx, uid)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", uid).Msg("failed to list friends for presence broadcast")
	}

	h.mu.Lock()
	prev := h.sessions[uid]
	h.sessions[uid] = client
	h.presence[uid] = OnlineUser{ID: uid, Username: client.User.Username, LastSeen: time.Now()}
	recipients := h.liveClientsLocked(friendIDs)
	h.mu.Unlock()

	if prev != nil && prev != client {
		prev.Close("session replaced")
		h.log.Info().Int64("user_id", uid).Str("old_conn", prev.ID).Str("new_conn", client.ID).Msg("evicted prior session")
	}

	ev := &Event{Kind: EventFriendOnline, User: client.User}
	for _, friend := range recipients {
		friend.Deliver(ev)
	}

	h.setOnlineFlag(uid, true)
	h.log.Info().Int64("user_id", uid).Str("conn", client.ID).Msg("session admitted")
}

// Remove deletes the client's session if it is still the current one for its
// user, notifies accepted live friends, and clears the durable online flag
// best-effort. Calls for superseded (evicted) clients are no-ops.
func (h *Hub) Remove(client *Client) {
	uid := client.User.ID

	friendIDs, err := h.friends.AcceptedFriends(context.Background(), uid)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", uid).Msg("failed to list friends for offline broadcast")
	}

	h.mu.Lock()
	if h.sessions[uid] != client {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, uid)
	delete(h.presence, uid)
	recipients := h.liveClientsLocked(friendIDs)
	h.mu.Unlock()

	ev := &Event{Kind: EventFriendOffline, User: client.User}
	for _, friend := range recipients {
		friend.Deliver(ev)
	}

	h.setOnlineFlag(uid, false)
	h.log.Info().Int64("user_id", uid).Str("conn", client.ID).Msg("session removed")
}

// SendMessage gates, persists, and routes one chat message. A nil receiverID
// is a broadcast to every live session except the sender's. The returned
// message (or error) is the sender's synchronous acknowledgment of the send
// attempt; delivery itself is fire-and-forget.
func (h *Hub) SendMessage(ctx context.Context, client *Client, receiverID *int64, text string) (*store.Message, error) {
	if text == "" {
		return nil, coreError(ErrCodeBadRequest, "message is required")
	}
	if len(text) > h.maxMessageLen {
		return nil, coreError(ErrCodeBadRequest, fmt.Sprintf("message exceeds %d bytes", h.maxMessageLen))
	}

	if err := h.gate.CheckMessage(ctx, client.User.ID, client.User.IsAdmin, text); err != nil {
		return nil, err
	}

	msg := &store.Message{
		SenderID:   client.User.ID,
		ReceiverID: receiverID,
		Body:       text,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	ev := &Event{Kind: EventNewMessage, User: client.User, Message: msg}

	h.mu.Lock()
	var recipients []*Client
	if receiverID == nil {
		recipients = make([]*Client, 0, len(h.sessions))
		for uid, c := range h.sessions {
			if uid == client.User.ID {
				continue
			}
			recipients = append(recipients, c)
		}
	} else if target, ok := h.sessions[*receiverID]; ok {
		recipients = append(recipients, target)
	}
	h.mu.Unlock()

	if receiverID != nil && len(recipients) == 0 {
		// Recipient offline: the durable write stands, live delivery is
		// silently skipped.
		h.log.Debug().Int64("sender_id", client.User.ID).Int64("receiver_id", *receiverID).Msg("recipient offline, message persisted only")
	}
	for _, recipient := range recipients {
		recipient.Deliver(ev)
	}
	return msg, nil
}

// SendFriendRequest runs the request state machine and notifies the target's
// live session, if any.
func (h *Hub) SendFriendRequest(ctx context.Context, client *Client, targetUsername string) (*store.User, error) {
	target, err := h.friends.Request(ctx, client.User.ID, targetUsername)
	if err != nil {
		return nil, err
	}

	if session := h.liveClient(target.ID); session != nil {
		session.Deliver(&Event{Kind: EventFriendRequestReceived, User: client.User})
	}
	return target, nil
}

// RespondFriendRequest accepts or rejects a pending request from fromID and
// notifies the requester's live session, if any.
func (h *Hub) RespondFriendRequest(ctx context.Context, client *Client, fromID int64, accepted bool) error {
	var err error
	if accepted {
		err = h.friends.Accept(ctx, client.User.ID, fromID)
	} else {
		err = h.friends.Reject(ctx, client.User.ID, fromID)
	}
	if err != nil {
		return err
	}

	if session := h.liveClient(fromID); session != nil {
		session.Deliver(&Event{Kind: EventFriendRequestResponded, User: client.User, Accepted: accepted})
	}
	return nil
}

// Unfriend removes the friendship in both directions and notifies the other
// party's live session, if any.
func (h *Hub) Unfriend(ctx context.Context, client *Client, friendID int64) error {
	if err := h.friends.Unfriend(ctx, client.User.ID, friendID); err != nil {
		return err
	}

	if session := h.liveClient(friendID); session != nil {
		session.Deliver(&Event{Kind: EventUnfriended, User: client.User})
	}
	return nil
}

// UpdateGarden persists the (user, slot) record and, when the record is
// public, fans the raw payload out to accepted friends with live sessions.
// Private updates are persisted but never broadcast.
func (h *Hub) UpdateGarden(ctx context.Context, client *Client, slot int, blob []byte, isPublic bool) (*store.Garden, error) {
	rec, err := h.gardens.Update(ctx, client.User.ID, slot, blob, isPublic)
	if err != nil {
		return nil, err
	}

	if !isPublic {
		return rec, nil
	}

	friendIDs, err := h.friends.AcceptedFriends(ctx, client.User.ID)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", client.User.ID).Msg("failed to list friends for garden fan-out")
		return rec, nil
	}

	h.mu.Lock()
	recipients := h.liveClientsLocked(friendIDs)
	h.mu.Unlock()

	ev := &Event{
		Kind: EventFriendGardenUpdate,
		User: client.User,
		Garden: &GardenUpdate{
			Slot:      rec.Slot,
			Blob:      blob,
			IsPublic:  true,
			UpdatedAt: rec.UpdatedAt,
		},
	}
	for _, friend := range recipients {
		friend.Deliver(ev)
	}
	return rec, nil
}

// LoadGarden returns the caller's own decompressed garden payload.
func (h *Hub) LoadGarden(ctx context.Context, client *Client, slot int) ([]byte, *store.Garden, error) {
	return h.gardens.Load(ctx, client.User.ID, slot)
}

// VisitGarden forwards a visit request to the target's live session and
// returns the correlation id. Targets without a live session reject the
// request immediately.
func (h *Hub) VisitGarden(_ context.Context, client *Client, targetID int64) (string, error) {
	session := h.liveClient(targetID)
	if session == nil {
		return "", coreError(ErrCodeNotFound, "user is not online")
	}

	visitID := uuid.NewString()
	session.Deliver(&Event{
		Kind:  EventGardenVisitRequest,
		User:  client.User,
		Visit: &Visit{VisitID: visitID},
	})
	return visitID, nil
}

// RespondGardenVisit relays the owner's answer back to the requester's live
// session. If the requester went offline the response is silently dropped;
// there is no queuing.
func (h *Hub) RespondGardenVisit(_ context.Context, client *Client, requesterID int64, visitID string, allowed bool, blob []byte) {
	session := h.liveClient(requesterID)
	if session == nil {
		h.log.Debug().Int64("requester_id", requesterID).Str("visit_id", visitID).Msg("visit requester offline, response dropped")
		return
	}
	session.Deliver(&Event{
		Kind:  EventGardenVisitResult,
		User:  client.User,
		Visit: &Visit{VisitID: visitID, Allowed: allowed, Blob: blob},
	})
}

// ForceLogout delivers a terminal notice to the user's live session, removes
// it from the registry (triggering the offline broadcast), and closes the
// connection. Returns false if the user had no live session.
func (h *Hub) ForceLogout(userID int64, reason string) bool {
	client := h.liveClient(userID)
	if client == nil {
		return false
	}
	client.Deliver(&Event{Kind: EventAdminAction, Action: AdminActionForceLogout, Notice: reason})
	h.Remove(client)
	client.Close("forced logout")
	return true
}

// MuteNotice delivers an administrative mute notice to the user's live
// session. Non-fatal if the user is offline.
func (h *Hub) MuteNotice(userID int64, message string) bool {
	client := h.liveClient(userID)
	if client == nil {
		return false
	}
	return client.Deliver(&Event{Kind: EventAdminAction, Action: AdminActionMuteNotice, Notice: message})
}

// Announce broadcasts an announcement to every live session and returns the
// number of sessions it was queued for.
func (h *Hub) Announce(payload string) int {
	h.mu.Lock()
	recipients := make([]*Client, 0, len(h.sessions))
	for _, c := range h.sessions {
		recipients = append(recipients, c)
	}
	h.mu.Unlock()

	ev := &Event{Kind: EventAdminAnnouncement, Notice: payload}
	delivered := 0
	for _, recipient := range recipients {
		if recipient.Deliver(ev) {
			delivered++
		}
	}
	return delivered
}

// OnlineSnapshot returns the presence view, sorted by username.
func (h *Hub) OnlineSnapshot() []OnlineUser {
	h.mu.Lock()
	users := make([]OnlineUser, 0, len(h.presence))
	for _, entry := range h.presence {
		users = append(users, entry)
	}
	h.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// IsOnline reports whether a user has a live session.
func (h *Hub) IsOnline(userID int64) bool {
	return h.liveClient(userID) != nil
}

// CloseAll closes every live session. Used on shutdown; the registry is not
// drained since the process is going away.
func (h *Hub) CloseAll(reason string) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.sessions))
	for _, c := range h.sessions {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close(reason)
	}
}

func (h *Hub) liveClient(userID int64) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[userID]
}

// liveClientsLocked resolves live sessions for the given user ids. Callers
// must hold h.mu.
func (h *Hub) liveClientsLocked(userIDs []int64) []*Client {
	clients := make([]*Client, 0, len(userIDs))
	for _, id := range userIDs {
		if c, ok := h.sessions[id]; ok {
			clients = append(clients, c)
		}
	}
	return clients
}

// setOnlineFlag updates the durable online flag without blocking the caller.
// Failures are logged and swallowed; the registry stays authoritative for
// liveness.
func (h *Hub) setOnlineFlag(userID int64, online bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.store.SetOnline(ctx, userID, online); err != nil {
			h.log.Warn().Err(err).Int64("user_id", userID).Bool("online", online).Msg("failed to update durable online flag")
		}
	}()
}
