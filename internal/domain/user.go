package domain

import "time"

// User represents an end user that can authenticate against the service.
// Username and Email are stored lowercase; uniqueness is enforced by the
// credential store's constraints, not by application-level checks.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
