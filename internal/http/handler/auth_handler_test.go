package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lockboxlabs/warden/internal/config"
	"github.com/lockboxlabs/warden/internal/domain"
	httptransport "github.com/lockboxlabs/warden/internal/http"
	"github.com/lockboxlabs/warden/internal/http/handler"
	httpmiddleware "github.com/lockboxlabs/warden/internal/http/middleware"
	"github.com/lockboxlabs/warden/internal/password"
	"github.com/lockboxlabs/warden/internal/service"
	"github.com/lockboxlabs/warden/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	hasher, err := password.NewHasher(password.Params{Time: 1, Memory: 8 * 1024})
	require.NoError(t, err)
	issuer := token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := service.NewAuthService(newUserStore(), newSessionStore(), hasher, issuer, node, zap.NewNop())

	cfg := config.Config{
		ServiceName:        "warden-test",
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Authorization", "Content-Type"},
	}
	return httptransport.NewRouter(cfg, handler.NewAuthHandler(svc), &httpmiddleware.Auth{AuthService: svc}, nil)
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", `{"username":"alice","password":"password123"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var registered struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	require.Equal(t, "alice", registered.User.Username)
	require.NotEmpty(t, registered.Token)
	require.True(t, registered.ExpiresAt.After(time.Now()))

	// Wrong password and unknown user must be byte-identical responses.
	wrongPass := doJSON(t, router, http.MethodPost, "/auth/login", `{"username":"alice","password":"wrongpass"}`, "")
	require.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	unknownUser := doJSON(t, router, http.MethodPost, "/auth/login", `{"username":"bob","password":"anything"}`, "")
	require.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	require.Equal(t, wrongPass.Body.String(), unknownUser.Body.String())

	// Duplicate registration conflicts, case-insensitively.
	rec = doJSON(t, router, http.MethodPost, "/auth/register", `{"username":"Alice","password":"password456"}`, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/login", `{"username":"alice","password":"password123"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterValidationErrors(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", `{"username":"alice"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/register", `{"username":"alice","password":"short"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "validation_error")
}

func TestMeRequiresValidToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", `{"username":"alice","password":"password123","email":"alice@example.com"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var registered struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))

	rec = doJSON(t, router, http.MethodGet, "/auth/me", "", registered.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"username":"alice"`)
	require.NotContains(t, rec.Body.String(), "password")

	rec = doJSON(t, router, http.MethodGet, "/auth/me", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/auth/me", "", "garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", `{"username":"alice","password":"password123"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var registered struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))

	rec = doJSON(t, router, http.MethodPost, "/auth/logout", "", registered.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/auth/me", "", registered.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout is idempotent, even with no token at all.
	rec = doJSON(t, router, http.MethodPost, "/auth/logout", "", registered.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/auth/logout", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshRotates(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", `{"username":"alice","password":"password123"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var registered struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))

	rec = doJSON(t, router, http.MethodPost, "/auth/refresh", "", registered.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	require.NotEqual(t, registered.Token, rotated.Token)

	rec = doJSON(t, router, http.MethodGet, "/auth/me", "", registered.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/auth/me", "", rotated.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/refresh", "", registered.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutAll(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", `{"username":"alice","password":"password123"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var first struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = doJSON(t, router, http.MethodPost, "/auth/login", `{"username":"alice","password":"password123"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var second struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))

	rec = doJSON(t, router, http.MethodPost, "/auth/logout/all", "", second.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"revoked":2`)

	rec = doJSON(t, router, http.MethodGet, "/auth/me", "", first.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/auth/me", "", second.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ---- in-memory stores ----

type userStore struct {
	mu     sync.Mutex
	byName map[string]domain.User
	byID   map[int64]domain.User
}

func newUserStore() *userStore {
	return &userStore{byName: map[string]domain.User{}, byID: map[int64]domain.User{}}
}

func (s *userStore) Create(ctx context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[user.Username]; exists {
		return domain.User{}, domain.ErrUserExists
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	s.byName[user.Username] = user
	s.byID[user.ID] = user
	return user, nil
}

func (s *userStore) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byName[username]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (s *userStore) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: map[string]domain.Session{}}
}

func (s *sessionStore) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.TokenID]; exists {
		return domain.Session{}, domain.ErrSessionConflict
	}
	session.CreatedAt = time.Now()
	s.sessions[session.TokenID] = session
	return session, nil
}

func (s *sessionStore) GetByTokenID(ctx context.Context, tokenID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[tokenID]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return session, nil
}

func (s *sessionStore) Revoke(ctx context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenID)
	return nil
}

func (s *sessionStore) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for tokenID, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, tokenID)
			count++
		}
	}
	return count, nil
}

func (s *sessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for tokenID, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, tokenID)
			count++
		}
	}
	return count, nil
}
