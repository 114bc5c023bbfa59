package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sds-backend/internal/shared/auth"
	"sds-backend/internal/shared/server/respond"
)

const (
	userIDKey = "userId"
	claimsKey = "userClaims"
)

// Auth validates the bearer token and stores the session claims in context.
// Requests without a valid token are rejected; public routes are registered
// outside the group carrying this middleware.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthenticated", "Authentication required", nil)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthenticated", "missing or invalid token", nil)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthenticated", "missing or invalid token", nil)
			return
		}

		claims, err := auth.VerifyJWT(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthenticated", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.Sub)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the session holds at least one of the roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthenticated", "Authentication required", nil)
			return
		}
		if !claims.HasRole(roles...) {
			respond.Error(c, http.StatusForbidden, "forbidden", "Insufficient permissions", nil)
			return
		}
		c.Next()
	}
}

// ClaimsFromContext fetches the session claims set by the auth middleware.
func ClaimsFromContext(c *gin.Context) (auth.Claims, bool) {
	if c == nil {
		return auth.Claims{}, false
	}
	val, ok := c.Get(claimsKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := val.(auth.Claims)
	return claims, ok
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
