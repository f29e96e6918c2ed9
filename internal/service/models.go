package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/lockboxlabs/warden/internal/domain"
)

// AuthError standardizes caller-facing failures at the service boundary.
// Internal storage or crypto errors are never surfaced through it.
type AuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newAuthError(code, desc string, status int) *AuthError {
	return &AuthError{Code: code, Description: desc, Status: status}
}

// invalidCredentials is shared by the unknown-user and wrong-password paths
// so the two are byte-identical on the wire.
func invalidCredentials() *AuthError {
	return newAuthError("invalid_credentials", "Wrong username or password.", http.StatusUnauthorized)
}

func tokenInvalid() *AuthError {
	return newAuthError("token_invalid", "Invalid access token.", http.StatusUnauthorized)
}

func tokenExpired() *AuthError {
	return newAuthError("token_expired", "Access token expired.", http.StatusUnauthorized)
}

// UserViewModel is the user payload returned by auth operations. It never
// carries the password hash.
type UserViewModel struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserViewModel(user domain.User) UserViewModel {
	return UserViewModel{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

// RegisterInput carries registration parameters plus issuance metadata.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	Metadata domain.SessionMetadata
}

// LoginInput carries login parameters plus issuance metadata.
type LoginInput struct {
	Username string
	Password string
	Metadata domain.SessionMetadata
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User      UserViewModel `json:"user"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// TokenResult is returned by Refresh.
type TokenResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
