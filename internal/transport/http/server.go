package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pocketgarden/pocketgarden-server/internal/auth"
	"github.com/pocketgarden/pocketgarden-server/internal/config"
	"github.com/pocketgarden/pocketgarden-server/internal/core"
	"github.com/pocketgarden/pocketgarden-server/internal/moderation"
)

// NewServer builds the HTTP server: health check, the WebSocket endpoint,
// and the gin-backed admin API.
func NewServer(hub *core.Hub, authSvc *auth.Service, gate *moderation.Gate, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/ws", NewWSHandler(hub, authSvc, gate, cfg, logger))
	mux.Handle("/api/", newAdminRouter(hub, authSvc, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func newAdminRouter(hub *core.Hub, authSvc *auth.Service, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	handlers := NewAdminHandlers(hub, logger)
	admin := router.Group("/api/admin", AdminAuthMiddleware(authSvc, logger))
	admin.POST("/force-logout", handlers.ForceLogout)
	admin.POST("/mute-notice", handlers.MuteNotice)
	admin.POST("/announce", handlers.Announce)
	admin.GET("/online", handlers.Online)

	return router
}

func healthHandler(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
	_, _ = fmt.Fprint(w, "ok")
}
