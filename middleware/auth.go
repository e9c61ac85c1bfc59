package middleware

import (
	"errors"
	"net/http"
	"strings"

	"product-wizard-service/common/auth"

	"github.com/gin-gonic/gin"
)

const (
	UserContextKey  = "userID"
	RoleContextKey  = "role"
	EmailContextKey = "email"
)

// AuthMiddleware trusts identity headers injected by the API gateway and
// falls back to a Bearer access token when they are absent.
func AuthMiddleware(verifier *auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := auth.Identity{
			UserID: c.GetHeader("X-User-ID"),
			Role:   c.GetHeader("X-User-Role"),
			Email:  c.GetHeader("X-User-Email"),
		}

		if id.UserID == "" {
			if v, err := c.Cookie("user_id"); err == nil && v != "" {
				id.UserID = v
				if r, err := c.Cookie("user_role"); err == nil {
					id.Role = r
				}
				if e, err := c.Cookie("user_email"); err == nil {
					id.Email = e
				}
			}
		}

		if id.UserID == "" && verifier != nil {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				if tokID, err := verifier.IdentityFromToken(strings.TrimPrefix(h, "Bearer ")); err == nil {
					id = tokID
				}
			}
		}

		if id.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(UserContextKey, id.UserID)
		c.Set(RoleContextKey, id.Role)
		c.Set(EmailContextKey, id.Email)
		c.Next()
	}
}

// GetUserID extracts the user ID from the Gin context.
func GetUserID(c *gin.Context) (string, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id, nil
		}
	}
	return "", errors.New("user ID not found in context")
}

// AdminOnly restricts access to admin role.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(RoleContextKey)
		if !strings.EqualFold(role, "admin") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			return
		}
		c.Next()
	}
}
