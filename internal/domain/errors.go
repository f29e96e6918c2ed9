package domain

import "errors"

var (
	// ErrNotFound signals a missing user or session record.
	ErrNotFound = errors.New("auth: not found")
	// ErrUserExists indicates a username or email uniqueness violation.
	ErrUserExists = errors.New("auth: user already exists")
	// ErrSessionConflict indicates a duplicate tokenID in the registry.
	ErrSessionConflict = errors.New("auth: session token id already exists")
	// ErrTokenInvalid indicates malformed, tampered, or revoked tokens.
	ErrTokenInvalid = errors.New("auth: token invalid")
	// ErrTokenExpired indicates a well-signed token past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTimeout indicates a store interaction exceeded its deadline.
	ErrTimeout = errors.New("auth: store timeout")
	// ErrHashing signals an underlying entropy or resource failure.
	ErrHashing = errors.New("auth: hashing failure")
)
