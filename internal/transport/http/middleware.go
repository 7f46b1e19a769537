package httptransport

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"versecast/internal/domain/auth"
)

// BearerAuth validates the Authorization header against the token
// helper and stores the client identity in the request context.
func BearerAuth(tokens *auth.AuthToken, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			RespondError(c, http.StatusUnauthorized, "missing bearer token", nil)
			c.Abort()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		ok, clientID, err := tokens.VerifyToken(token)
		if err != nil || !ok {
			if logger != nil {
				logger.Warn("rejected api token", "error", err)
			}
			RespondError(c, http.StatusUnauthorized, "invalid bearer token", nil)
			c.Abort()
			return
		}

		c.Set("client_id", clientID)
		c.Next()
	}
}
