package core

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/pocketgarden/pocketgarden-server/internal/moderation"
	"github.com/pocketgarden/pocketgarden-server/internal/service/friends"
)

func TestAdmitEvictsPriorSession(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "alice", false)

	first := connect(t, hub, 1, "alice", false)
	second := connect(t, hub, 1, "alice", false)

	select {
	case <-first.Done():
		if first.CloseReason() != "session replaced" {
			t.Fatalf("unexpected close reason: %q", first.CloseReason())
		}
	default:
		t.Fatal("expected first session to be closed on eviction")
	}

	snapshot := hub.OnlineSnapshot()
	if len(snapshot) != 1 || snapshot[0].ID != 1 {
		t.Fatalf("expected exactly one online entry for user 1, got %+v", snapshot)
	}

	// The evicted handle's disconnect must not tear down the live session.
	hub.Remove(first)
	if !hub.IsOnline(1) {
		t.Fatal("expected user to stay online after stale remove")
	}

	hub.Remove(second)
	if hub.IsOnline(1) {
		t.Fatal("expected user offline after removing current session")
	}
}

func TestPresenceBroadcastToAcceptedFriends(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "alice", false)
	st.addUser(2, "bob", false)
	st.addUser(3, "carol", false)
	st.befriend(1, 2)
	// carol is online but not a friend; she must see nothing.

	bob := connect(t, hub, 2, "bob", false)
	carol := connect(t, hub, 3, "carol", false)

	alice := connect(t, hub, 1, "alice", false)
	online := mustEvent(t, bob, EventFriendOnline)
	if online.User.ID != 1 || online.User.Username != "alice" {
		t.Fatalf("unexpected online event: %+v", online)
	}
	noEvent(t, carol)

	hub.Remove(alice)
	offline := mustEvent(t, bob, EventFriendOffline)
	if offline.User.ID != 1 {
		t.Fatalf("unexpected offline event: %+v", offline)
	}
	noEvent(t, carol)

	if hub.IsOnline(1) {
		t.Fatal("expected alice to be cleared from the registry")
	}
}

func TestSendMessageDirect(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "alice", false)
	st.addUser(2, "bob", false)

	alice := connect(t, hub, 1, "alice", false)
	bob := connect(t, hub, 2, "bob", false)

	receiver := int64(2)
	msg, err := hub.SendMessage(context.Background(), alice, &receiver, "hi bob")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.ID == 0 {
		t.Fatal("expected persisted message to carry an id")
	}

	ev := mustEvent(t, bob, EventNewMessage)
	if ev.Message.Body != "hi bob" || ev.User.ID != 1 {
		t.Fatalf("unexpected message event: %+v", ev)
	}
	noEvent(t, alice)
}

func TestSendMessageOfflineReceiverPersistsOnly(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "alice", false)
	st.addUser(2, "bob", false)

	alice := connect(t, hub, 1, "alice", false)

	receiver := int64(2)
	msg, err := hub.SendMessage(context.Background(), alice, &receiver, "you there?")
	if err != nil {
		t.Fatalf("send to offline user must still succeed, got %v", err)
	}
	if msg.ID == 0 || st.messageCount() != 1 {
		t.Fatalf("expected durable write despite offline receiver, got count %d", st.messageCount())
	}
}

func TestSendMessageBroadcast(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "alice", false)
	st.addUser(2, "bob", false)
	st.addUser(3, "carol", false)
	st.addUser(4, "dave", false)

	alice := connect(t, hub, 1, "alice", false)
	others := []*Client{
		connect(t, hub, 2, "bob", false),
		connect(t, hub, 3, "carol", false),
		connect(t, hub, 4, "dave", false),
	}

	msg, err := hub.SendMessage(context.Background(), alice, nil, "hello everyone")
	if err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	if msg.ReceiverID != nil {
		t.Fatalf("expected broadcast message to persist with nil receiver, got %v", msg.ReceiverID)
	}

	for _, other := range others {
		ev := mustEvent(t, other, EventNewMessage)
		if ev.Message.Body != "hello everyone" {
			t.Fatalf("unexpected broadcast payload: %+v", ev)
		}
		noEvent(t, other)
	}
	noEvent(t, alice)
}

func TestSendMessageMutedRejected(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "spammer", false)
	st.addUser(2, "bob", false)
	if err := st.SetMute(context.Background(), 1, nil, "spam"); err != nil {
		t.Fatalf("set mute: %v", err)
	}

	spammer := connect(t, hub, 1, "spammer", false)
	bob := connect(t, hub, 2, "bob", false)

	_, err := hub.SendMessage(context.Background(), spammer, nil, "buy my stuff")
	var muted *moderation.MutedError
	if !errors.As(err, &muted) || !muted.Permanent {
		t.Fatalf("expected permanent MutedError, got %v", err)
	}
	if st.messageCount() != 0 {
		t.Fatal("rejected message must not be persisted")
	}
	noEvent(t, bob)
}

func TestSendMessageAdminBypassesMute(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "mod", true)
	st.addUser(2, "bob", false)
	if err := st.SetMute(context.Background(), 1, nil, "test mute"); err != nil {
		t.Fatalf("set mute: %v", err)
	}

	mod := connect(t, hub, 1, "mod", true)
	bob := connect(t, hub, 2, "bob", false)

	if _, err := hub.SendMessage(context.Background(), mod, nil, "maintenance soon"); err != nil {
		t.Fatalf("expected admin send to succeed despite mute, got %v", err)
	}
	mustEvent(t, bob, EventNewMessage)
}

func TestSendMessageFiltered(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "alice", false)
	st.addUser(2, "mod", true)
	st.addUser(3, "bob", false)
	if err := st.AddFilterWord(context.Background(), "scam"); err != nil {
		t.Fatalf("add filter word: %v", err)
	}

	alice := connect(t, hub, 1, "alice", false)
	mod := connect(t, hub, 2, "mod", true)
	bob := connect(t, hub, 3, "bob", false)

	_, err := hub.SendMessage(context.Background(), alice, nil, "this is a scam")
	var filtered *moderation.FilteredContentError
	if !errors.As(err, &filtered) {
		t.Fatalf("expected FilteredContentError, got %v", err)
	}
	if len(filtered.Matched) != 1 || filtered.Matched[0] != "scam" {
		t.Fatalf("expected matched word scam, got %v", filtered.Matched)
	}
	if st.messageCount() != 0 {
		t.Fatal("filtered message must not be persisted")
	}
	noEvent(t, bob)

	// The identical message from an admin is delivered verbatim.
	if _, err := hub.SendMessage(context.Background(), mod, nil, "this is a scam"); err != nil {
		t.Fatalf("expected admin message to pass filter, got %v", err)
	}
	ev := mustEvent(t, bob, EventNewMessage)
	if ev.Message.Body != "this is a scam" {
		t.Fatalf("expected verbatim delivery, got %q", ev.Message.Body)
	}
}

func TestFriendRequestFlow(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "alice", false)
	st.addUser(2, "bob", false)

	alice := connect(t, hub, 1, "alice", false)
	bob := connect(t, hub, 2, "bob", false)

	target, err := hub.SendFriendRequest(context.Background(), alice, "Bob")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if target.ID != 2 {
		t.Fatalf("expected case-insensitive resolution to bob, got %+v", target)
	}
	req := mustEvent(t, bob, EventFriendRequestReceived)
	if req.User.ID != 1 || req.User.Username != "alice" {
		t.Fatalf("unexpected request event: %+v", req)
	}

	// Second request without an intervening reject/unfriend fails.
	if _, err := hub.SendFriendRequest(context.Background(), alice, "bob"); !errors.Is(err, friends.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}

	if err := hub.RespondFriendRequest(context.Background(), bob, 1, true); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	resp := mustEvent(t, alice, EventFriendRequestResponded)
	if !resp.Accepted || resp.User.ID != 2 {
		t.Fatalf("unexpected response event: %+v", resp)
	}

	forward, _ := st.GetEdge(context.Background(), 1, 2)
	reverse, _ := st.GetEdge(context.Background(), 2, 1)
	if forward == nil || reverse == nil {
		t.Fatal("expected accepted edges in both directions")
	}

	if err := hub.Unfriend(context.Background(), bob, 1); err != nil {
		t.Fatalf("unfriend failed: %v", err)
	}
	mustEvent(t, alice, EventUnfriended)
	if deleted, _ := st.DeleteEdgesBetween(context.Background(), 1, 2); deleted != 0 {
		t.Fatal("expected unfriend to have deleted both edges already")
	}
}

func TestGardenFanout(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "alice", false)
	st.addUser(2, "bob", false)
	st.addUser(3, "carol", false)
	st.befriend(1, 2)
	// carol is online but not a friend.

	alice := connect(t, hub, 1, "alice", false)
	bob := connect(t, hub, 2, "bob", false)
	carol := connect(t, hub, 3, "carol", false)
	mustEvent(t, alice, EventFriendOnline) // drain bob's presence event

	blob := []byte("rows of sunflowers")
	rec, err := hub.UpdateGarden(context.Background(), alice, 1, blob, true)
	if err != nil {
		t.Fatalf("public update failed: %v", err)
	}
	if rec.RawSize != len(blob) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	ev := mustEvent(t, bob, EventFriendGardenUpdate)
	if ev.User.ID != 1 || !bytes.Equal(ev.Garden.Blob, blob) || ev.Garden.Slot != 1 {
		t.Fatalf("unexpected garden event: %+v", ev)
	}
	noEvent(t, bob)
	noEvent(t, carol)

	// Private updates persist but never broadcast.
	if _, err := hub.UpdateGarden(context.Background(), alice, 1, []byte("secret redesign"), false); err != nil {
		t.Fatalf("private update failed: %v", err)
	}
	noEvent(t, bob)

	raw, loaded, err := hub.LoadGarden(context.Background(), alice, 1)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(raw) != "secret redesign" || loaded.IsPublic {
		t.Fatalf("expected persisted private record, got %q public=%v", raw, loaded.IsPublic)
	}
}

func TestGardenVisitFlow(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "alice", false)
	st.addUser(2, "bob", false)

	alice := connect(t, hub, 1, "alice", false)
	bob := connect(t, hub, 2, "bob", false)

	visitID, err := hub.VisitGarden(context.Background(), alice, 2)
	if err != nil {
		t.Fatalf("visit request failed: %v", err)
	}
	req := mustEvent(t, bob, EventGardenVisitRequest)
	if req.User.ID != 1 || req.Visit.VisitID != visitID {
		t.Fatalf("unexpected visit request: %+v", req)
	}

	hub.RespondGardenVisit(context.Background(), bob, 1, visitID, true, []byte("come on in"))
	res := mustEvent(t, alice, EventGardenVisitResult)
	if !res.Visit.Allowed || res.Visit.VisitID != visitID || string(res.Visit.Blob) != "come on in" {
		t.Fatalf("unexpected visit result: %+v", res)
	}

	// Requester gone: the response is silently dropped.
	hub.Remove(alice)
	hub.RespondGardenVisit(context.Background(), bob, 1, visitID, false, nil)

	// Target offline: the request is rejected up front.
	var coreErr *CoreError
	if _, err := hub.VisitGarden(context.Background(), bob, 1); !errors.As(err, &coreErr) || coreErr.Code != ErrCodeNotFound {
		t.Fatalf("expected not_found for offline target, got %v", err)
	}
}

func TestForceLogout(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "alice", false)
	st.addUser(2, "bob", false)
	st.befriend(1, 2)

	alice := connect(t, hub, 1, "alice", false)
	bob := connect(t, hub, 2, "bob", false)
	mustEvent(t, alice, EventFriendOnline)

	if !hub.ForceLogout(1, "terms violation") {
		t.Fatal("expected force logout to find the live session")
	}

	notice := mustEvent(t, alice, EventAdminAction)
	if notice.Action != AdminActionForceLogout || notice.Notice != "terms violation" {
		t.Fatalf("unexpected admin action: %+v", notice)
	}
	select {
	case <-alice.Done():
	default:
		t.Fatal("expected connection to be closed")
	}
	if hub.IsOnline(1) {
		t.Fatal("expected session removal")
	}
	mustEvent(t, bob, EventFriendOffline)

	if hub.ForceLogout(1, "again") {
		t.Fatal("expected force logout of offline user to report false")
	}
}

func TestMuteNoticeAndAnnounce(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "alice", false)
	st.addUser(2, "bob", false)

	alice := connect(t, hub, 1, "alice", false)
	bob := connect(t, hub, 2, "bob", false)

	if !hub.MuteNotice(1, "you have been muted for 1h") {
		t.Fatal("expected mute notice delivery")
	}
	ev := mustEvent(t, alice, EventAdminAction)
	if ev.Action != AdminActionMuteNotice {
		t.Fatalf("unexpected action: %+v", ev)
	}
	if hub.MuteNotice(99, "nobody home") {
		t.Fatal("expected mute notice to offline user to report false")
	}

	if got := hub.Announce("maintenance at noon"); got != 2 {
		t.Fatalf("expected announcement to reach 2 sessions, got %d", got)
	}
	mustEvent(t, alice, EventAdminAnnouncement)
	mustEvent(t, bob, EventAdminAnnouncement)
}

func TestOnlineSnapshotSorted(t *testing.T) {
	hub, st := newTestHub(t)
	st.addUser(1, "zoe", false)
	st.addUser(2, "abe", false)

	connect(t, hub, 1, "zoe", false)
	connect(t, hub, 2, "abe", false)

	snapshot := hub.OnlineSnapshot()
	if len(snapshot) != 2 || snapshot[0].Username != "abe" || snapshot[1].Username != "zoe" {
		t.Fatalf("expected snapshot sorted by username, got %+v", snapshot)
	}
	if snapshot[0].LastSeen.IsZero() {
		t.Fatal("expected last seen to be populated")
	}
}
