package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lockboxlabs/warden/internal/domain"
)

// cacheTTLCap bounds how long a cached session can survive a failed
// invalidation. Revocations delete cache entries directly; if a delete is
// lost, the entry still ages out within this window.
const cacheTTLCap = 30 * time.Second

// CachedSessionRepo layers a SessionCache over the authoritative registry.
// The cache only serves reads; all mutations go to the store first. Cache
// failures degrade to store reads.
type CachedSessionRepo struct {
	store  SessionStore
	cache  SessionCache
	logger *zap.Logger
}

var _ SessionRepository = (*CachedSessionRepo)(nil)

func NewCachedSessionRepo(store SessionStore, cache SessionCache, logger *zap.Logger) *CachedSessionRepo {
	if logger == nil {
		logger = zap.L()
	}
	return &CachedSessionRepo{store: store, cache: cache, logger: logger}
}

func (r *CachedSessionRepo) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	created, err := r.store.Create(ctx, session)
	if err != nil {
		return domain.Session{}, err
	}
	r.fill(ctx, created)
	return created, nil
}

func (r *CachedSessionRepo) GetByTokenID(ctx context.Context, tokenID string) (domain.Session, error) {
	cached, err := r.cache.Get(ctx, tokenID)
	if err != nil {
		r.logger.Warn("session cache read failed", zap.Error(err))
	} else if cached != nil {
		return *cached, nil
	}

	session, err := r.store.GetByTokenID(ctx, tokenID)
	if err != nil {
		return domain.Session{}, err
	}
	r.fill(ctx, session)
	return session, nil
}

func (r *CachedSessionRepo) Revoke(ctx context.Context, tokenID string) error {
	// Invalidate before the store delete: a revoked session must never be
	// served from cache even if the store call fails and is retried.
	if err := r.cache.Delete(ctx, tokenID); err != nil {
		r.logger.Warn("session cache invalidate failed", zap.Error(err))
	}
	return r.store.Revoke(ctx, tokenID)
}

func (r *CachedSessionRepo) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	// Enumerate before deleting so every cached entry can be invalidated;
	// a revoked session must not keep being served until its cache TTL runs
	// out. Enumeration failure aborts the revocation rather than leaving
	// stale entries behind.
	tokenIDs, err := r.store.TokenIDsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, tokenID := range tokenIDs {
		if err := r.cache.Delete(ctx, tokenID); err != nil {
			r.logger.Warn("session cache invalidate failed", zap.Error(err))
		}
	}
	return r.store.RevokeAllForUser(ctx, userID)
}

func (r *CachedSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	// Cache entries expire on their own TTLs; only the store needs sweeping.
	return r.store.DeleteExpired(ctx, now)
}

func (r *CachedSessionRepo) fill(ctx context.Context, session domain.Session) {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if ttl > cacheTTLCap {
		ttl = cacheTTLCap
	}
	if err := r.cache.Save(ctx, session, ttl); err != nil {
		r.logger.Warn("session cache save failed", zap.Error(err))
	}
}
