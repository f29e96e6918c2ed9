package repository

import (
	"context"
	"time"

	"github.com/lockboxlabs/warden/internal/domain"
)

// UserRepository exposes persistence for user identities. Implementations
// enforce username/email uniqueness with their own constraints so racing
// registrations fail with domain.ErrUserExists rather than inserting twice.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
}

// SessionRepository is the authoritative registry of issued tokens keyed by
// tokenID. A record being present is necessary but not sufficient for
// validity; callers must also check the stored expiry because sweeping is
// lazy.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) (domain.Session, error)
	GetByTokenID(ctx context.Context, tokenID string) (domain.Session, error)
	// Revoke removes a session. Revoking an absent tokenID is a no-op.
	Revoke(ctx context.Context, tokenID string) error
	// RevokeAllForUser removes every session owned by userID and returns
	// the number removed. A login racing this call may have its fresh
	// session survive or be deleted; no ordering is guaranteed.
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
	// DeleteExpired removes sessions whose expiry precedes now. It is safe
	// to call at any cadence; correctness never depends on it.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionStore is the authoritative backend behind the cache decorator. It
// extends SessionRepository with the enumeration bulk revocation needs to
// invalidate cached entries.
type SessionStore interface {
	SessionRepository
	// TokenIDsForUser lists the tokenIDs of every session owned by userID.
	TokenIDsForUser(ctx context.Context, userID int64) ([]string, error)
}

// SessionCache is an optional read-through cache in front of the registry.
// Misses and errors fall back to the authoritative store.
type SessionCache interface {
	Save(ctx context.Context, session domain.Session, ttl time.Duration) error
	Get(ctx context.Context, tokenID string) (*domain.Session, error)
	Delete(ctx context.Context, tokenID string) error
}
