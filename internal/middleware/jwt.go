package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/missoes/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextSessionID is the key for the session (token id) in gin context.
	ContextSessionID = "session_id"
	// ContextAccess is the key for the resolved access.Access in gin context.
	ContextAccess = "access"
)

// SessionValidator parses a bearer token and checks that its session is still live.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (userID uuid.UUID, sessionID string, err error)
}

// JWT returns a middleware that validates the bearer token and sets the session in context.
// Requests without an Authorization header continue anonymously; guards decide what they may see.
func JWT(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		userID, sessionID, err := sessions.ValidateSession(c.Request.Context(), parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, userID)
		c.Set(ContextSessionID, sessionID)
		c.Next()
	}
}

// UserID returns the authenticated user of the request, or uuid.Nil.
func UserID(c *gin.Context) uuid.UUID {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil
	}
	id, _ := v.(uuid.UUID)
	return id
}

// SessionID returns the session of the request, or "".
func SessionID(c *gin.Context) string {
	return c.GetString(ContextSessionID)
}
