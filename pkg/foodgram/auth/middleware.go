package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyUserID is the key for user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyEmail is the key for email in gin context
	ContextKeyEmail = "email"
	// ContextKeySystemRole is the key for system role in gin context
	ContextKeySystemRole = "system_role"
)

// parseAuthHeader accepts "Bearer <token>" and "Token <token>".
func parseAuthHeader(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	scheme := strings.ToLower(parts[0])
	if scheme != "bearer" && scheme != "token" {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// authenticate sets user info from the Authorization header. It returns
// false after writing a 401 when a header is present but unusable.
func authenticate(c *gin.Context) bool {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return true
	}

	tokenString, ok := parseAuthHeader(authHeader)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
		return false
	}

	claims, err := ValidateToken(tokenString)
	if err != nil {
		if err == ErrExpiredToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
		} else {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		}
		return false
	}

	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyEmail, claims.Email)
	c.Set(ContextKeySystemRole, claims.SystemRole)
	return true
}

// OptionalAuth identifies the caller when a token is sent and lets
// anonymous requests through.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c) {
			return
		}
		c.Next()
	}
}

// AuthMiddleware validates JWT tokens and requires an authenticated caller
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		if !authenticate(c) {
			return
		}
		c.Next()
	}
}

// IsSafeMethod reports whether method only reads
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// ReadOnlyOrAuthenticated lets anyone read and requires a caller for writes.
// Use after OptionalAuth.
func ReadOnlyOrAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if _, ok := GetUserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Next()
	}
}

// RequireAdmin middleware checks if the user has admin system role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextKeySystemRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		if role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		c.Next()
	}
}

// GetUserID returns the user ID from the gin context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// ViewerID returns the caller's user ID, or 0 for anonymous requests
func ViewerID(c *gin.Context) uint {
	id, _ := GetUserID(c)
	return id
}

// GetSystemRole returns the system role from the gin context
func GetSystemRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(ContextKeySystemRole)
	if !exists {
		return "", false
	}
	s, ok := role.(string)
	return s, ok
}
