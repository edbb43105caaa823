package http

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pocketgarden/pocketgarden-server/internal/core"
	"github.com/pocketgarden/pocketgarden-server/internal/moderation"
	"github.com/pocketgarden/pocketgarden-server/internal/proto"
	"github.com/pocketgarden/pocketgarden-server/internal/service/friends"
	"github.com/pocketgarden/pocketgarden-server/internal/service/garden"
)

// handleInbound executes one client frame against the hub and builds the
// synchronous reply. Every inbound gets exactly one reply envelope whose
// Event mirrors the request type; async notifications flow separately
// through the client's event channel.
func (h *WSHandler) handleInbound(ctx context.Context, client *core.Client, inbound proto.Inbound) proto.Outbound {
	switch inbound.Type {
	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badPayload(inbound.Type)
		}
		msg, err := h.hub.SendMessage(ctx, client, data.ReceiverID, data.Message)
		if err != nil {
			return errorReply(inbound.Type, err)
		}
		return ackReply(inbound.Type, proto.MessageSentAck{Success: true, MessageID: msg.ID})

	case proto.InboundTypeSendFriendRequest:
		var data proto.SendFriendRequestData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badPayload(inbound.Type)
		}
		if data.TargetUsername == "" {
			return errorReply(inbound.Type, &core.CoreError{Code: core.ErrCodeBadRequest, Message: "target_username is required"})
		}
		target, err := h.hub.SendFriendRequest(ctx, client, data.TargetUsername)
		if err != nil {
			return errorReply(inbound.Type, err)
		}
		return ackReply(inbound.Type, proto.FriendRequestAck{Target: proto.UserRef{ID: target.ID, Username: target.Username}})

	case proto.InboundTypeRespondRequest:
		var data proto.RespondFriendRequestData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badPayload(inbound.Type)
		}
		if err := h.hub.RespondFriendRequest(ctx, client, data.FromID, data.Accepted); err != nil {
			return errorReply(inbound.Type, err)
		}
		return ackReply(inbound.Type, nil)

	case proto.InboundTypeUnfriend:
		var data proto.UnfriendData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badPayload(inbound.Type)
		}
		if err := h.hub.Unfriend(ctx, client, data.FriendID); err != nil {
			return errorReply(inbound.Type, err)
		}
		return ackReply(inbound.Type, nil)

	case proto.InboundTypeGardenUpdate:
		var data proto.GardenUpdateData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badPayload(inbound.Type)
		}
		rec, err := h.hub.UpdateGarden(ctx, client, data.Slot, data.Blob, data.IsPublic)
		if err != nil {
			return errorReply(inbound.Type, err)
		}
		return ackReply(inbound.Type, proto.GardenSnapshot{
			Slot:      rec.Slot,
			IsPublic:  rec.IsPublic,
			UpdatedAt: rec.UpdatedAt.Unix(),
		})

	case proto.InboundTypeGardenGet:
		var data proto.GardenGetData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badPayload(inbound.Type)
		}
		raw, rec, err := h.hub.LoadGarden(ctx, client, data.Slot)
		if err != nil {
			return errorReply(inbound.Type, err)
		}
		return ackReply(inbound.Type, proto.GardenSnapshot{
			Slot:      rec.Slot,
			Blob:      raw,
			IsPublic:  rec.IsPublic,
			UpdatedAt: rec.UpdatedAt.Unix(),
		})

	case proto.InboundTypeVisitGarden:
		var data proto.VisitGardenData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badPayload(inbound.Type)
		}
		visitID, err := h.hub.VisitGarden(ctx, client, data.TargetID)
		if err != nil {
			return errorReply(inbound.Type, err)
		}
		return ackReply(inbound.Type, proto.GardenVisitAck{VisitID: visitID})

	case proto.InboundTypeGardenVisitRespond:
		var data proto.GardenVisitResponseData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badPayload(inbound.Type)
		}
		h.hub.RespondGardenVisit(ctx, client, data.RequesterID, data.VisitID, data.Allowed, data.Blob)
		return ackReply(inbound.Type, nil)

	case proto.InboundTypeWhoIsOnline:
		snapshot := h.hub.OnlineSnapshot()
		users := make([]proto.OnlineUser, 0, len(snapshot))
		for _, u := range snapshot {
			users = append(users, proto.OnlineUser{ID: u.ID, Username: u.Username, LastSeen: u.LastSeen.Unix()})
		}
		return ackReply(inbound.Type, proto.OnlineList{Users: users})

	default:
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: "invalid_message", Msg: "unknown message type"},
		}
	}
}

func ackReply(event string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeAck, Event: event, Data: data}
}

func errorReply(event string, err error) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Event: event, Error: errorToProto(err)}
}

func badPayload(event string) proto.Outbound {
	return errorReply(event, &core.CoreError{Code: core.ErrCodeBadRequest, Message: "malformed payload"})
}

// errorToProto maps domain errors to wire error codes.
func errorToProto(err error) *proto.Error {
	var banned *moderation.BannedError
	if errors.As(err, &banned) {
		return &proto.Error{Code: core.ErrCodeBanned, Msg: banned.Error()}
	}
	var muted *moderation.MutedError
	if errors.As(err, &muted) {
		return &proto.Error{Code: core.ErrCodeMuted, Msg: muted.Error()}
	}
	var filtered *moderation.FilteredContentError
	if errors.As(err, &filtered) {
		return &proto.Error{Code: core.ErrCodeFiltered, Msg: filtered.Error()}
	}
	var coreErr *core.CoreError
	if errors.As(err, &coreErr) {
		return &proto.Error{Code: coreErr.Code, Msg: coreErr.Message}
	}

	switch {
	case errors.Is(err, friends.ErrSelfRequest):
		return &proto.Error{Code: core.ErrCodeSelfRequest, Msg: err.Error()}
	case errors.Is(err, friends.ErrDuplicateRequest):
		return &proto.Error{Code: core.ErrCodeDuplicateRequest, Msg: err.Error()}
	case errors.Is(err, friends.ErrUserNotFound), errors.Is(err, friends.ErrNotFound), errors.Is(err, garden.ErrNotFound):
		return &proto.Error{Code: core.ErrCodeNotFound, Msg: err.Error()}
	case errors.Is(err, garden.ErrInvalidSlot):
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: err.Error()}
	}

	return &proto.Error{Code: core.ErrCodeInternal, Msg: "internal server error"}
}

// outboundFromEvent converts a hub event into its wire envelope.
func outboundFromEvent(event *core.Event) proto.Outbound {
	ref := proto.UserRef{ID: event.User.ID, Username: event.User.Username}

	switch event.Kind {
	case core.EventFriendOnline:
		return eventEnvelope(proto.EventNameFriendOnline, proto.EventPresence{User: ref})
	case core.EventFriendOffline:
		return eventEnvelope(proto.EventNameFriendOffline, proto.EventPresence{User: ref})
	case core.EventFriendRequestReceived:
		return eventEnvelope(proto.EventNameRequestReceived, proto.EventFriendRequest{From: ref})
	case core.EventFriendRequestResponded:
		return eventEnvelope(proto.EventNameRequestResponded, proto.EventFriendResponse{User: ref, Accepted: event.Accepted})
	case core.EventUnfriended:
		return eventEnvelope(proto.EventNameUnfriended, proto.EventUnfriended{User: ref})
	case core.EventNewMessage:
		return eventEnvelope(proto.EventNameNewMessage, proto.EventNewMessage{
			ID:        event.Message.ID,
			Sender:    ref,
			Broadcast: event.Message.ReceiverID == nil,
			Message:   event.Message.Body,
			TS:        event.Message.CreatedAt.Unix(),
		})
	case core.EventFriendGardenUpdate:
		return eventEnvelope(proto.EventNameGardenUpdate, proto.EventGardenUpdate{
			User:      ref,
			Slot:      event.Garden.Slot,
			Blob:      event.Garden.Blob,
			UpdatedAt: event.Garden.UpdatedAt.Unix(),
		})
	case core.EventGardenVisitRequest:
		return eventEnvelope(proto.EventNameGardenVisitRequest, proto.EventGardenVisitRequest{
			Requester: ref,
			VisitID:   event.Visit.VisitID,
		})
	case core.EventGardenVisitResult:
		return eventEnvelope(proto.EventNameGardenVisitResult, proto.EventGardenVisitResult{
			Owner:   ref,
			VisitID: event.Visit.VisitID,
			Allowed: event.Visit.Allowed,
			Blob:    event.Visit.Blob,
		})
	case core.EventAdminAction:
		return eventEnvelope(proto.EventNameAdminAction, proto.EventAdminAction{
			Action:  event.Action,
			Message: event.Notice,
		})
	case core.EventAdminAnnouncement:
		return eventEnvelope(proto.EventNameAdminAnnouncement, proto.EventAdminAnnouncement{Message: event.Notice})
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func eventEnvelope(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}
