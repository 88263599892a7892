package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/auth"
	"github.com/lalith-99/agora/internal/engine"
)

// Context key for the caller's identity in gin.Context. A constant so a
// typo'd key fails at compile time instead of silently returning nil.
const ContextKeyIdentity = "identity"

// AuthMiddleware validates the bearer token and stores the caller's
// identity for handlers downstream. Invalid or missing tokens abort the
// chain with a 401 — the handler never runs.
//
// The secret comes in as a parameter so the middleware doesn't import the
// config package and tests can pass any secret.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyIdentity, engine.Identity{
			UserID:      claims.UserID,
			DisplayName: claims.DisplayName,
			PhotoURL:    claims.PhotoURL,
			Role:        claims.Role,
		})
		c.Next()
	}
}

// GetIdentity extracts the caller's identity. The zero Identity (UserID ==
// uuid.Nil) means anonymous; the engine rejects it where identity matters.
func GetIdentity(c *gin.Context) engine.Identity {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return engine.Identity{UserID: uuid.Nil}
	}
	id, ok := val.(engine.Identity)
	if !ok {
		return engine.Identity{UserID: uuid.Nil}
	}
	return id
}
