package middleware

import (
	"fmt"
	"log/slog"

	"github.com/OriginalCade/todo-app/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "session"

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "userID"

// SessionAuth verifies the session cookie and stores the user id in the
// request context; on any failure it short-circuits with a generic 401 so
// handlers never run without a verified identity. Verification detail is
// logged server-side only.
//
// There is no server-side revocation: logout merely clears the client
// cookie, so a token copied beforehand keeps verifying.
func SessionAuth(jwtSecret string, logger *slog.Logger) gin.HandlerFunc {
	secret := []byte(jwtSecret)
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie(SessionCookie)
		if err != nil || tokenStr == "" {
			apperr.Write(c, logger, apperr.ErrUnauthorized)
			c.Abort()
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			if logger != nil && err != nil {
				logger.Warn("session verify failed", slog.String("error", err.Error()))
			}
			apperr.Write(c, logger, apperr.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Next()
	}
}
