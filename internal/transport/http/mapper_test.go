package http

import (
	"errors"
	"testing"
	"time"

	"github.com/pocketgarden/pocketgarden-server/internal/core"
	"github.com/pocketgarden/pocketgarden-server/internal/moderation"
	"github.com/pocketgarden/pocketgarden-server/internal/proto"
	"github.com/pocketgarden/pocketgarden-server/internal/service/friends"
	"github.com/pocketgarden/pocketgarden-server/internal/service/garden"
	"github.com/pocketgarden/pocketgarden-server/internal/store"
)

func TestErrorToProto(t *testing.T) {
	until := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		err  error
		code string
	}{
		{"banned", &moderation.BannedError{Reason: "harassment"}, "banned"},
		{"muted", &moderation.MutedError{Until: until}, "muted"},
		{"filtered", &moderation.FilteredContentError{Matched: []string{"scam"}}, "filtered_content"},
		{"self request", friends.ErrSelfRequest, "self_request"},
		{"duplicate request", friends.ErrDuplicateRequest, "duplicate_request"},
		{"unknown user", friends.ErrUserNotFound, "not_found"},
		{"no friendship", friends.ErrNotFound, "not_found"},
		{"no garden", garden.ErrNotFound, "not_found"},
		{"bad slot", garden.ErrInvalidSlot, "bad_request"},
		{"core error", &core.CoreError{Code: core.ErrCodeBadRequest, Message: "nope"}, "bad_request"},
		{"opaque", errors.New("disk on fire"), "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			perr := errorToProto(tc.err)
			if perr.Code != tc.code {
				t.Fatalf("expected code %q, got %q (%q)", tc.code, perr.Code, perr.Msg)
			}
		})
	}

	// Internal errors must not leak details to the wire.
	if msg := errorToProto(errors.New("dsn=secret")).Msg; msg != "internal server error" {
		t.Fatalf("expected opaque internal message, got %q", msg)
	}
}

func TestOutboundFromEvent(t *testing.T) {
	sender := core.Identity{ID: 7, Username: "alice"}
	now := time.Now()

	t.Run("broadcast message", func(t *testing.T) {
		out := outboundFromEvent(&core.Event{
			Kind:    core.EventNewMessage,
			User:    sender,
			Message: &store.Message{ID: 3, SenderID: 7, Body: "hello", CreatedAt: now},
		})
		if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventNameNewMessage {
			t.Fatalf("unexpected envelope: %+v", out)
		}
		data, ok := out.Data.(proto.EventNewMessage)
		if !ok {
			t.Fatalf("unexpected data type: %T", out.Data)
		}
		if !data.Broadcast || data.Sender.ID != 7 || data.Message != "hello" {
			t.Fatalf("unexpected payload: %+v", data)
		}
	})

	t.Run("direct message", func(t *testing.T) {
		receiver := int64(9)
		out := outboundFromEvent(&core.Event{
			Kind:    core.EventNewMessage,
			User:    sender,
			Message: &store.Message{ID: 4, SenderID: 7, ReceiverID: &receiver, Body: "psst", CreatedAt: now},
		})
		if data := out.Data.(proto.EventNewMessage); data.Broadcast {
			t.Fatalf("direct message flagged as broadcast: %+v", data)
		}
	})

	t.Run("garden update", func(t *testing.T) {
		out := outboundFromEvent(&core.Event{
			Kind:   core.EventFriendGardenUpdate,
			User:   sender,
			Garden: &core.GardenUpdate{Slot: 2, Blob: []byte("plants"), IsPublic: true, UpdatedAt: now},
		})
		if out.Event != proto.EventNameGardenUpdate {
			t.Fatalf("unexpected event name: %q", out.Event)
		}
		data := out.Data.(proto.EventGardenUpdate)
		if data.Slot != 2 || string(data.Blob) != "plants" || data.User.Username != "alice" {
			t.Fatalf("unexpected payload: %+v", data)
		}
	})

	t.Run("admin action", func(t *testing.T) {
		out := outboundFromEvent(&core.Event{
			Kind:   core.EventAdminAction,
			Action: core.AdminActionForceLogout,
			Notice: "terms violation",
		})
		data := out.Data.(proto.EventAdminAction)
		if data.Action != "force_logout" || data.Message != "terms violation" {
			t.Fatalf("unexpected payload: %+v", data)
		}
	})

	t.Run("visit round trip", func(t *testing.T) {
		out := outboundFromEvent(&core.Event{
			Kind:  core.EventGardenVisitResult,
			User:  sender,
			Visit: &core.Visit{VisitID: "v-1", Allowed: true, Blob: []byte("garden")},
		})
		data := out.Data.(proto.EventGardenVisitResult)
		if !data.Allowed || data.VisitID != "v-1" || data.Owner.ID != 7 {
			t.Fatalf("unexpected payload: %+v", data)
		}
	})
}
