package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pocketgarden/pocketgarden-server/internal/moderation"
	"github.com/pocketgarden/pocketgarden-server/internal/service/friends"
	"github.com/pocketgarden/pocketgarden-server/internal/service/garden"
	"github.com/pocketgarden/pocketgarden-server/internal/store"
)

type edgeKey struct {
	userID   int64
	friendID int64
}

type gardenKey struct {
	userID int64
	slot   int
}

// memStore is an in-memory store.Store for hub tests. The hub updates the
// durable online flag from goroutines, so access is mutex-guarded.
type memStore struct {
	mu       sync.Mutex
	users    map[int64]*store.User
	bans     map[int64]*store.Ban
	mutes    map[int64]*store.Mute
	words    []string
	edges    map[edgeKey]*store.FriendEdge
	messages []*store.Message
	gardens  map[gardenKey]*store.Garden
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[int64]*store.User),
		bans:    make(map[int64]*store.Ban),
		mutes:   make(map[int64]*store.Mute),
		edges:   make(map[edgeKey]*store.FriendEdge),
		gardens: make(map[gardenKey]*store.Garden),
	}
}

func (m *memStore) addUser(id int64, username string, isAdmin bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &store.User{ID: id, Username: username, IsAdmin: isAdmin}
}

// befriend installs the two accepted edges of a mutual friendship.
func (m *memStore) befriend(a, b int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[edgeKey{a, b}] = &store.FriendEdge{UserID: a, FriendID: b, Status: store.FriendStatusAccepted}
	m.edges[edgeKey{b, a}] = &store.FriendEdge{UserID: b, FriendID: a, Status: store.FriendStatusAccepted}
}

func (m *memStore) CreateUser(_ context.Context, username string, isAdmin bool) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.users) + 1)
	u := &store.User{ID: id, Username: username, IsAdmin: isAdmin}
	m.users[id] = u
	return u, nil
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memStore) SetOnline(_ context.Context, userID int64, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	u.IsOnline = online
	u.LastSeen = time.Now()
	return nil
}

func (m *memStore) IsAdmin(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return false, errors.New("user not found")
	}
	return u.IsAdmin, nil
}

func (m *memStore) GetBanStatus(_ context.Context, userID int64) (*store.Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bans[userID], nil
}

func (m *memStore) SetBan(_ context.Context, userID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans[userID] = &store.Ban{UserID: userID, Reason: reason}
	return nil
}

func (m *memStore) ClearBan(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bans, userID)
	return nil
}

func (m *memStore) GetMuteStatus(_ context.Context, userID int64) (*store.Mute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutes[userID], nil
}

func (m *memStore) SetMute(_ context.Context, userID int64, until *time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutes[userID] = &store.Mute{UserID: userID, MutedUntil: until, Reason: reason}
	return nil
}

func (m *memStore) ClearMute(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mutes, userID)
	return nil
}

func (m *memStore) ListFilterWords(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.words...), nil
}

func (m *memStore) AddFilterWord(_ context.Context, word string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words = append(m.words, strings.ToLower(word))
	return nil
}

func (m *memStore) RemoveFilterWord(_ context.Context, word string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	word = strings.ToLower(word)
	kept := m.words[:0]
	for _, w := range m.words {
		if w != word {
			kept = append(kept, w)
		}
	}
	m.words = kept
	return nil
}

func (m *memStore) InsertEdge(_ context.Context, userID, friendID int64, status store.FriendStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[edgeKey{userID, friendID}] = &store.FriendEdge{UserID: userID, FriendID: friendID, Status: status}
	return nil
}

func (m *memStore) UpdateEdgeStatus(_ context.Context, userID, friendID int64, status store.FriendStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	edge, ok := m.edges[edgeKey{userID, friendID}]
	if !ok {
		return errors.New("friend edge not found")
	}
	edge.Status = status
	return nil
}

func (m *memStore) GetEdge(_ context.Context, userID, friendID int64) (*store.FriendEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.edges[edgeKey{userID, friendID}], nil
}

func (m *memStore) GetEdgeBetween(_ context.Context, a, b int64) (*store.FriendEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.edges[edgeKey{a, b}]; ok {
		return e, nil
	}
	return m.edges[edgeKey{b, a}], nil
}

func (m *memStore) DeleteEdgesBetween(_ context.Context, a, b int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for _, key := range []edgeKey{{a, b}, {b, a}} {
		if _, ok := m.edges[key]; ok {
			delete(m.edges, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memStore) ListAcceptedFriendIDs(_ context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for key, edge := range m.edges {
		if key.userID == userID && edge.Status == store.FriendStatusAccepted {
			ids = append(ids, key.friendID)
		}
	}
	return ids, nil
}

func (m *memStore) SaveMessage(_ context.Context, msg *store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = int64(len(m.messages) + 1)
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memStore) GetMessage(_ context.Context, id int64) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, nil
}

func (m *memStore) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *memStore) UpsertGarden(_ context.Context, g *store.Garden) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	cp.UpdatedAt = time.Now()
	m.gardens[gardenKey{g.UserID, g.Slot}] = &cp
	return nil
}

func (m *memStore) GetGarden(_ context.Context, userID int64, slot int) (*store.Garden, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gardens[gardenKey{userID, slot}], nil
}

func (m *memStore) Close() error { return nil }

func newTestHub(t *testing.T) (*Hub, *memStore) {
	t.Helper()
	st := newMemStore()
	hub := NewHub(st, moderation.NewGate(st), friends.New(st), garden.New(st), nil, 0)
	return hub, st
}

// connect admits a fresh client for the given identity.
func connect(t *testing.T, hub *Hub, id int64, username string, isAdmin bool) *Client {
	t.Helper()
	client := NewClient(username+"-conn", Identity{ID: id, Username: username, IsAdmin: isAdmin}, 16)
	hub.Admit(context.Background(), client)
	return client
}

func mustEvent(t *testing.T, c *Client, kind EventKind) *Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.Events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

// noEvent asserts that no event is queued for the client.
func noEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.Events:
		t.Fatalf("expected no event, got kind %v", ev.Kind)
	default:
	}
}
