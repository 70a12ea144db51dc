package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/missoes/backend/config"
	"github.com/missoes/backend/pkg/response"
)

// APIKey requires the public anon key in the apikey header when one is configured.
// The service-role key is accepted as well.
func APIKey(keys config.KeysConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keys.AnonKey == "" {
			c.Next()
			return
		}
		got := c.GetHeader("apikey")
		if equalKey(got, keys.AnonKey) || (keys.ServiceKeyConfigured() && equalKey(got, keys.ServiceRoleKey)) {
			c.Next()
			return
		}
		response.Unauthorized(c, "invalid api key")
		c.Abort()
	}
}

// RequireServiceKey blocks privileged routes while the service-role key is missing
// or still holds the placeholder value.
func RequireServiceKey(keys config.KeysConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keys.ServiceKeyConfigured() {
			c.Next()
			return
		}
		response.WriteProblem(c, http.StatusInternalServerError, response.Problem{
			Error:    "Service Role Key not configured",
			Details:  "SERVICE_ROLE_KEY is missing, empty, or still has the placeholder value",
			Hint:     "The service-role key is the elevated credential, distinct from PUBLIC_ANON_KEY",
			Solution: "Set SERVICE_ROLE_KEY in the environment (or .env) and restart the server",
		})
		c.Abort()
	}
}

func equalKey(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
