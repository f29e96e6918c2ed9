package domain

import "time"

// Session records one issued token in the registry. A session is valid iff
// it is still present and ExpiresAt is in the future; the expiry sweep is
// best-effort hygiene, so readers must check ExpiresAt themselves.
type Session struct {
	ID        int64
	TokenID   string
	UserID    int64
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Expired reports whether the session's stored expiry has passed.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// TokenPayload is the verified content of a signed token. It is derived from
// a Session at issuance and reconstructed at verification time; it is never
// persisted.
type TokenPayload struct {
	UserID    int64
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Identity is the result of a successful token verification, handed to
// downstream authorization.
type Identity struct {
	UserID   int64
	Username string
}

// SessionMetadata captures issuance context for a session.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}
