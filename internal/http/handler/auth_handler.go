package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lockboxlabs/warden/internal/domain"
	"github.com/lockboxlabs/warden/internal/http/middleware"
	"github.com/lockboxlabs/warden/internal/service"
)

// AuthHandler exposes the auth lifecycle over HTTP.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "error_description": "username and password are required."})
		return
	}

	result, err := h.Auth.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Metadata: requestMetadata(c),
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "error_description": "username and password are required."})
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
		Metadata: requestMetadata(c),
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Logout handles POST /auth/logout. It answers 200 regardless of token
// state; only a storage failure produces an error response.
func (h *AuthHandler) Logout(c *gin.Context) {
	raw, _ := middleware.BearerToken(c.Request)
	if err := h.Auth.Logout(c.Request.Context(), raw); err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// LogoutAll handles POST /auth/logout/all, revoking every session of the
// authenticated user.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	raw, ok := middleware.GetBearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token_invalid", "error_description": "Bearer token required."})
		return
	}

	count, err := h.Auth.LogoutAll(c.Request.Context(), raw)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "revoked": count})
}

// Refresh handles POST /auth/refresh: rotation, not extension in place.
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, ok := middleware.BearerToken(c.Request)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token_invalid", "error_description": "Bearer token required."})
		return
	}

	result, err := h.Auth.Refresh(c.Request.Context(), raw, requestMetadata(c))
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Me handles GET /auth/me for the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token_invalid", "error_description": "Authentication required."})
		return
	}

	user, err := h.Auth.GetUserInfo(c.Request.Context(), identity.UserID)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Healthz reports liveness.
func (h *AuthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func requestMetadata(c *gin.Context) domain.SessionMetadata {
	return domain.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func respondAuthError(c *gin.Context, err error) {
	if authErr, ok := err.(*service.AuthError); ok {
		c.JSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Description})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal error."})
}
