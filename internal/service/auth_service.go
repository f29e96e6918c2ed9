package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lockboxlabs/warden/internal/domain"
	"github.com/lockboxlabs/warden/internal/password"
	"github.com/lockboxlabs/warden/internal/repository"
	"github.com/lockboxlabs/warden/internal/token"
)

const (
	minPasswordLen = 8
	minUsernameLen = 3
	maxUsernameLen = 50
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// AuthService composes the credential store, password hasher, token issuer,
// and session registry into the register/login/logout/refresh/verify
// lifecycle. It owns the Anonymous -> Authenticated -> Revoked/Expired
// transitions; no operation is retried internally.
type AuthService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	hasher    *password.Hasher
	issuer    *token.Issuer
	snowflake *snowflake.Node
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, hasher *password.Hasher, issuer *token.Issuer, node *snowflake.Node, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		issuer:    issuer,
		snowflake: node,
		logger:    logger,
		tracer:    otel.Tracer("github.com/lockboxlabs/warden/internal/service"),
		now:       time.Now,
	}
}

// Register creates a user and an initial authenticated session. Uniqueness
// races surface as user_exists from the store's own constraint.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	username := normalizeIdentifier(in.Username)
	email := normalizeIdentifier(in.Email)
	if err := validateUsername(username); err != nil {
		return AuthResult{}, err
	}
	if len(in.Password) < minPasswordLen {
		return AuthResult{}, newAuthError("validation_error", fmt.Sprintf("Password must be at least %d characters.", minPasswordLen), http.StatusBadRequest)
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	model := domain.User{
		ID:           s.snowflake.Generate().Int64(),
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		IsActive:     true,
	}

	created, err := s.users.Create(ctx, model)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, s.mapRegistrationError(err)
	}

	result, err := s.issueSession(ctx, created, in.Metadata)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, err
	}

	s.audit("register.success", "user_id", created.ID, "username", created.Username)
	return result, nil
}

// Login authenticates username/password and issues a session. Unknown users
// and wrong passwords fail identically, and a dummy hash comparison runs
// when the lookup misses so latency does not leak account existence.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	username := normalizeIdentifier(in.Username)
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.DummyVerify(in.Password)
			s.audit("login.failed", "username", username)
			return AuthResult{}, invalidCredentials()
		}
		span.RecordError(err)
		return AuthResult{}, s.mapStoreFailure(err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.audit("login.failed", "username", username)
		return AuthResult{}, invalidCredentials()
	}

	if !user.IsActive {
		return AuthResult{}, newAuthError("account_inactive", "Account is disabled.", http.StatusForbidden)
	}

	result, err := s.issueSession(ctx, user, in.Metadata)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, err
	}

	s.audit("login.success", "user_id", user.ID, "username", user.Username)
	return result, nil
}

// Verify checks the token signature and expiry, then cross-checks the
// session registry: a missing or store-expired session fails token_invalid
// even when the signed claims still validate.
func (s *AuthService) Verify(ctx context.Context, signed string) (domain.Identity, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Verify")
	defer span.End()

	user, _, err := s.verifySession(ctx, signed)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: user.ID, Username: user.Username}, nil
}

// Refresh rotates the session: the old tokenID is revoked and a fresh token
// with a full TTL is issued. Metadata is captured anew from the refresh
// request rather than carried over.
func (s *AuthService) Refresh(ctx context.Context, signed string, meta domain.SessionMetadata) (TokenResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	user, session, err := s.verifySession(ctx, signed)
	if err != nil {
		return TokenResult{}, err
	}

	if err := s.sessions.Revoke(ctx, session.TokenID); err != nil {
		span.RecordError(err)
		return TokenResult{}, s.mapStoreFailure(err)
	}

	result, err := s.issueSession(ctx, user, meta)
	if err != nil {
		span.RecordError(err)
		return TokenResult{}, err
	}

	s.audit("refresh.success", "user_id", user.ID, "old_token_id", session.TokenID)
	return TokenResult{Token: result.Token, ExpiresAt: result.ExpiresAt}, nil
}

// Logout revokes the session named by the token. The signature must be
// intact to name a tokenID, but expiry is ignored so stale tokens remain
// revocable. Unverifiable tokens and already-revoked sessions are no-ops.
func (s *AuthService) Logout(ctx context.Context, signed string) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	payload, err := s.issuer.Extract(signed)
	if err != nil {
		// Nothing to revoke; logout stays idempotent.
		return nil
	}

	if err := s.sessions.Revoke(ctx, payload.TokenID); err != nil {
		span.RecordError(err)
		return s.mapStoreFailure(err)
	}

	s.audit("logout.success", "user_id", payload.UserID, "token_id", payload.TokenID)
	return nil
}

// LogoutAll verifies the token and revokes every session owned by its user.
// A login racing this call may keep or lose its fresh session; callers get
// eventual consistency, not a serialization point.
func (s *AuthService) LogoutAll(ctx context.Context, signed string) (int64, error) {
	ctx, span := s.startSpan(ctx, "AuthService.LogoutAll")
	defer span.End()

	user, _, err := s.verifySession(ctx, signed)
	if err != nil {
		return 0, err
	}

	count, err := s.sessions.RevokeAllForUser(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		return 0, s.mapStoreFailure(err)
	}

	s.audit("logout_all.success", "user_id", user.ID, "revoked", count)
	return count, nil
}

// GetUserInfo loads the profile view for an authenticated user.
func (s *AuthService) GetUserInfo(ctx context.Context, userID int64) (UserViewModel, error) {
	ctx, span := s.startSpan(ctx, "AuthService.GetUserInfo")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrNotFound) {
			return UserViewModel{}, tokenInvalid()
		}
		return UserViewModel{}, s.mapStoreFailure(err)
	}
	return newUserViewModel(user), nil
}

// SweepExpired removes sessions past their expiry. The jobs package runs it
// on a ticker; correctness never depends on the cadence because every read
// checks expiry itself.
func (s *AuthService) SweepExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

func (s *AuthService) verifySession(ctx context.Context, signed string) (domain.User, domain.Session, error) {
	payload, err := s.issuer.Verify(signed)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return domain.User{}, domain.Session{}, tokenExpired()
		}
		return domain.User{}, domain.Session{}, tokenInvalid()
	}

	session, err := s.sessions.GetByTokenID(ctx, payload.TokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.Session{}, tokenInvalid()
		}
		return domain.User{}, domain.Session{}, s.mapStoreFailure(err)
	}

	// The stored expiry can disagree with the signed claim under clock skew,
	// and the sweep is lazy. Both checks share the same leeway so a token
	// inside the skew window never flips from token_expired to token_invalid.
	if session.UserID != payload.UserID || session.Expired(s.now().Add(-token.ExpiryLeeway)) {
		return domain.User{}, domain.Session{}, tokenInvalid()
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.Session{}, tokenInvalid()
		}
		return domain.User{}, domain.Session{}, s.mapStoreFailure(err)
	}

	return user, session, nil
}

func (s *AuthService) issueSession(ctx context.Context, user domain.User, meta domain.SessionMetadata) (AuthResult, error) {
	tokenID := uuid.NewString()
	signed, payload, err := s.issuer.Issue(user.ID, tokenID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}

	session := domain.Session{
		ID:        s.snowflake.Generate().Int64(),
		TokenID:   tokenID,
		UserID:    user.ID,
		ExpiresAt: payload.ExpiresAt,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	if _, err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, domain.ErrSessionConflict) {
			// Cryptographically improbable tokenID collision; surface it
			// rather than silently reissue.
			return AuthResult{}, fmt.Errorf("session token id collision: %w", err)
		}
		return AuthResult{}, s.mapStoreFailure(err)
	}

	return AuthResult{
		User:      newUserViewModel(user),
		Token:     signed,
		ExpiresAt: payload.ExpiresAt,
	}, nil
}

func (s *AuthService) mapRegistrationError(err error) error {
	if errors.Is(err, domain.ErrUserExists) {
		return newAuthError("user_exists", "Username or email already registered.", http.StatusConflict)
	}
	return s.mapStoreFailure(err)
}

func (s *AuthService) mapStoreFailure(err error) error {
	if errors.Is(err, domain.ErrTimeout) {
		return newAuthError("timeout", "Storage deadline exceeded.", http.StatusServiceUnavailable)
	}
	return err
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func normalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func validateUsername(username string) error {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return newAuthError("validation_error", fmt.Sprintf("Username must be %d-%d characters.", minUsernameLen, maxUsernameLen), http.StatusBadRequest)
	}
	if !usernamePattern.MatchString(username) {
		return newAuthError("validation_error", "Username may contain letters, digits, and underscores only.", http.StatusBadRequest)
	}
	return nil
}
