package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lockboxlabs/warden/internal/domain"
	"github.com/lockboxlabs/warden/internal/service"
)

const (
	identityKey    = "authIdentity"
	bearerTokenKey = "bearerToken"
)

// Auth validates the Authorization header and attaches the verified identity.
type Auth struct {
	AuthService *service.AuthService
}

// ValidateToken ensures the request has a valid bearer token backed by a
// live session.
func (m *Auth) ValidateToken(c *gin.Context) {
	raw, ok := BearerToken(c.Request)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token_invalid", "error_description": "Bearer token required."})
		return
	}

	identity, err := m.AuthService.Verify(c.Request.Context(), raw)
	if err != nil {
		respondAuthFailure(c, err)
		return
	}

	c.Set(identityKey, identity)
	c.Set(bearerTokenKey, raw)
	c.Next()
}

// GetIdentity exposes the verified identity to handlers.
func GetIdentity(c *gin.Context) (domain.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

// GetBearerToken returns the raw bearer token the middleware validated.
func GetBearerToken(c *gin.Context) (string, bool) {
	value, ok := c.Get(bearerTokenKey)
	if !ok {
		return "", false
	}
	raw, ok := value.(string)
	return raw, ok
}

// BearerToken extracts the bearer credential from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	raw := strings.TrimSpace(parts[1])
	return raw, raw != ""
}

func respondAuthFailure(c *gin.Context, err error) {
	if authErr, ok := err.(*service.AuthError); ok {
		c.AbortWithStatusJSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Description})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Verification failed."})
}
