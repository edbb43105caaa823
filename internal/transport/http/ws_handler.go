package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pocketgarden/pocketgarden-server/internal/auth"
	"github.com/pocketgarden/pocketgarden-server/internal/config"
	"github.com/pocketgarden/pocketgarden-server/internal/core"
	"github.com/pocketgarden/pocketgarden-server/internal/moderation"
	"github.com/pocketgarden/pocketgarden-server/internal/proto"
)

// errClientClosed signals that the hub closed the client (eviction, forced
// logout, shutdown) and the socket should follow.
var errClientClosed = errors.New("client closed by hub")

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	gate *moderation.Gate
	log  *zerolog.Logger

	messageRate float64
	burst       int
	eventBuffer int
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authSvc *auth.Service, gate *moderation.Gate, cfg config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		hub:         hub,
		auth:        authSvc,
		gate:        gate,
		log:         logger,
		messageRate: cfg.WSMessageRate,
		burst:       cfg.WSMessageBurst,
		eventBuffer: cfg.EventBufferSize,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	claims, err := h.auth.ValidateToken(bearerToken(r))
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth rejected")
		stdhttp.Error(w, "invalid token", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	// Bans reject the connection itself; the close reason carries them.
	if err := h.gate.CheckConnect(ctx, claims.UserID); err != nil {
		var banned *moderation.BannedError
		if errors.As(err, &banned) {
			h.log.Info().Int64("user_id", claims.UserID).Str("reason", banned.Reason).Msg("banned user rejected")
			_ = wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: core.ErrCodeBanned, Msg: banned.Error()},
			})
			conn.Close(websocket.StatusPolicyViolation, banned.Error())
			return
		}
		h.log.Error().Err(err).Int64("user_id", claims.UserID).Msg("connect gate check failed")
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}

	client := core.NewClient(uuid.NewString(), core.Identity{
		ID:       claims.UserID,
		Username: claims.Username,
		IsAdmin:  claims.IsAdmin,
	}, h.eventBuffer)
	h.hub.Admit(ctx, client)
	defer h.hub.Remove(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if errors.Is(err, errClientClosed) {
		status = websocket.StatusGoingAway
		if r := client.CloseReason(); r != "" {
			reason = r
		}
		err = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := rate.NewLimiter(rate.Limit(h.messageRate), h.burst)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.Allow() {
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages, slow down"},
			}); err != nil {
				return err
			}
			continue
		}

		reply := h.handleInbound(ctx, client, inbound)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			// Flush queued events (the forced-logout notice in particular)
			// before tearing the socket down.
			for {
				select {
				case event := <-client.Events:
					if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
						return errClientClosed
					}
				default:
					return errClientClosed
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// bearerToken pulls the credential from the Authorization header or, for
// browser clients that cannot set headers on WebSocket dials, the token
// query parameter.
func bearerToken(r *stdhttp.Request) string {
	header := r.Header.Get("Authorization")
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return r.URL.Query().Get("token")
}
