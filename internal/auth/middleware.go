package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

// CookieName is the session cookie set on login.
const CookieName = "session_id"

const contextKeyIdentity = "identity"

// IdentityFromContext returns the identity set by RequireSession.
func IdentityFromContext(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

// RequireSession returns a middleware that checks for a valid session cookie
// and puts the session identity in context. If missing or invalid, responds with 401.
func RequireSession(sessions *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(CookieName)
		if err != nil || sid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		id, ok, err := sessions.Identity(c.Request.Context(), sid)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		c.Set(contextKeyIdentity, id)
		c.Next()
	}
}
