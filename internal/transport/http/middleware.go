package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pocketgarden/pocketgarden-server/internal/auth"
)

const (
	// ContextKeyAdminSubject is the context key for the authenticated admin
	// identity ("secret" when the shared secret was used).
	ContextKeyAdminSubject = "admin_subject"
)

// AdminAuthMiddleware guards the admin API. It accepts either a JWT carrying
// the admin claim or the configured shared admin secret.
func AdminAuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug().Msg("missing authorization header")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug().Msg("invalid authorization header format")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header format"})
			c.Abort()
			return
		}

		credential := parts[1]
		if claims, err := authService.ValidateAdminToken(credential); err == nil {
			c.Set(ContextKeyAdminSubject, claims.Username)
			c.Next()
			return
		}
		if err := authService.VerifyAdminSecret(credential); err == nil {
			c.Set(ContextKeyAdminSubject, "secret")
			c.Next()
			return
		}

		logger.Debug().Msg("admin auth rejected")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid admin credentials"})
		c.Abort()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
