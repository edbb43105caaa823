package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pocketgarden/pocketgarden-server/internal/core"
)

// AdminHandlers is the REST bridge the external administrative component
// drives. It only touches live sessions; moderation records themselves are
// written by that component directly.
type AdminHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(hub *core.Hub, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{hub: hub, log: logger}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ForceLogoutRequest names the user to disconnect.
type ForceLogoutRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Reason string `json:"reason"`
}

// MuteNoticeRequest carries a mute notification for a live session.
type MuteNoticeRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// AnnounceRequest is a server-wide announcement.
type AnnounceRequest struct {
	Message string `json:"message" binding:"required"`
}

// DeliveredResponse reports whether a per-user notice reached a live session.
type DeliveredResponse struct {
	Delivered bool `json:"delivered"`
}

// AnnounceResponse reports how many sessions an announcement was queued for.
type AnnounceResponse struct {
	Sessions int `json:"sessions"`
}

// OnlineUserResponse is one row of the online snapshot.
type OnlineUserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	LastSeen int64  `json:"last_seen"`
}

// OnlineResponse is the full online snapshot.
type OnlineResponse struct {
	Users []OnlineUserResponse `json:"users"`
}

// ForceLogout disconnects a user's live session with a terminal notice.
// POST /api/admin/force-logout
func (h *AdminHandlers) ForceLogout(c *gin.Context) {
	var req ForceLogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid force-logout request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	delivered := h.hub.ForceLogout(req.UserID, req.Reason)
	h.log.Info().Int64("user_id", req.UserID).Bool("delivered", delivered).Msg("force logout requested")
	c.JSON(http.StatusOK, DeliveredResponse{Delivered: delivered})
}

// MuteNotice pushes a mute notification to a user's live session. The mute
// record itself is already persisted by the caller; offline users simply see
// the mute on their next send.
// POST /api/admin/mute-notice
func (h *AdminHandlers) MuteNotice(c *gin.Context) {
	var req MuteNoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid mute-notice request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	delivered := h.hub.MuteNotice(req.UserID, req.Message)
	c.JSON(http.StatusOK, DeliveredResponse{Delivered: delivered})
}

// Announce broadcasts a message to every live session.
// POST /api/admin/announce
func (h *AdminHandlers) Announce(c *gin.Context) {
	var req AnnounceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid announce request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	sessions := h.hub.Announce(req.Message)
	h.log.Info().Int("sessions", sessions).Msg("announcement broadcast")
	c.JSON(http.StatusOK, AnnounceResponse{Sessions: sessions})
}

// Online returns the current presence snapshot, sorted by username.
// GET /api/admin/online
func (h *AdminHandlers) Online(c *gin.Context) {
	snapshot := h.hub.OnlineSnapshot()
	users := make([]OnlineUserResponse, 0, len(snapshot))
	for _, u := range snapshot {
		users = append(users, OnlineUserResponse{ID: u.ID, Username: u.Username, LastSeen: u.LastSeen.Unix()})
	}
	c.JSON(http.StatusOK, OnlineResponse{Users: users})
}
