// README: Bearer-token auth middleware resolving the caller into an identity.Principal.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"freightbid/internal/identity"
)

const principalKey = "freight.principal"

// Auth rejects requests without a resolvable bearer token with 401.
func Auth(resolver identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		p, err := resolver.Resolve(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// CallerPrincipal returns the principal stored by Auth.
func CallerPrincipal(c *gin.Context) (identity.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return identity.Principal{}, false
	}
	p, ok := v.(identity.Principal)
	return p, ok
}

func CallerUID(c *gin.Context) string {
	p, _ := CallerPrincipal(c)
	return p.IdentityID.String()
}

func CallerRole(c *gin.Context) identity.Role {
	p, _ := CallerPrincipal(c)
	return p.Role
}
