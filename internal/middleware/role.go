package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/internal/metrics"
	"github.com/missoes/backend/pkg/response"
)

// DeniedMessage is shown to authenticated callers below the required tier.
const DeniedMessage = "Você não tem permissão para acessar esta página."

// AccessResolver resolves the access context of a user.
type AccessResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) access.Access
}

// RequireLevel returns a middleware that runs the handler only when the caller's
// tier meets required. Anonymous callers get 401 with a redirect to sign-in;
// authenticated callers below the tier get the fixed "Acesso Negado" body.
func RequireLevel(resolver AccessResolver, required access.Level) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := resolve(c, resolver)
		if !a.Authenticated() {
			if required > access.LevelUnauthenticated {
				metrics.GuardDenials.WithLabelValues(required.String(), "unauthenticated").Inc()
				response.WriteDenied(c, http.StatusUnauthorized, response.Denied{
					Error:    "authentication required",
					Redirect: "/signin",
				})
				c.Abort()
				return
			}
			c.Next()
			return
		}
		if !a.CanAccess(required) {
			metrics.GuardDenials.WithLabelValues(required.String(), a.Level.String()).Inc()
			deny(c)
			return
		}
		c.Next()
	}
}

// DenyOrganization blocks organization admins from super-admin pages. Run after RequireLevel.
func DenyOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		a := CurrentAccess(c)
		if a.IsOrganization() {
			metrics.GuardDenials.WithLabelValues(access.LevelAdmin.String(), a.Level.String()).Inc()
			deny(c)
			return
		}
		c.Next()
	}
}

// CurrentAccess returns the access resolved by RequireLevel, or an anonymous one.
func CurrentAccess(c *gin.Context) access.Access {
	v, ok := c.Get(ContextAccess)
	if !ok {
		return access.Anonymous()
	}
	a, ok := v.(access.Access)
	if !ok {
		return access.Anonymous()
	}
	return a
}

func resolve(c *gin.Context, resolver AccessResolver) access.Access {
	if v, ok := c.Get(ContextAccess); ok {
		if a, ok := v.(access.Access); ok {
			return a
		}
	}
	a := resolver.Resolve(c.Request.Context(), UserID(c))
	c.Set(ContextAccess, a)
	return a
}

func deny(c *gin.Context) {
	response.WriteDenied(c, http.StatusForbidden, response.Denied{
		Error:    "Acesso Negado",
		Message:  DeniedMessage,
		Redirect: "/",
	})
	c.Abort()
}
