package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/jwt"
	redisstore "github.com/rooms-songpig/songpig-rooms-sub000/pkg/redis"
)

// Context keys set by the middleware.
const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
)

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		// WebSocket clients cannot set headers, they pass the token as a
		// query parameter instead.
		return c.Query("token")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return parts[0]
}

func authenticate(c *gin.Context, secret []byte, sessions *redisstore.SessionStore, token string) bool {
	claims, err := jwt.ValidateToken(secret, token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return false
	}

	// The session record makes tokens revocable: logout or an admin
	// disable removes it and the token stops working.
	session, err := sessions.GetSession(c.Request.Context(), claims.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return false
	}
	if session.Token != token || time.Now().After(session.ExpiresAt) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return false
	}

	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUserRole, claims.Role)
	return true
}

// RequireAuth rejects requests without a valid, unrevoked session token.
func RequireAuth(secret []byte, sessions *redisstore.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		if authenticate(c, secret, sessions, token) {
			c.Next()
		}
	}
}

// OptionalAuth authenticates when a token is present and lets anonymous
// requests through with no identity set. Invite-code lookups use this.
func OptionalAuth(secret []byte, sessions *redisstore.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		if authenticate(c, secret, sessions, token) {
			c.Next()
		}
	}
}

// Identity returns the authenticated user id and role, empty for guests.
func Identity(c *gin.Context) (string, string) {
	return c.GetString(ContextUserID), c.GetString(ContextUserRole)
}
