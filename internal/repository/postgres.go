package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lockboxlabs/warden/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository = (*PostgresUserRepo)(nil)
	_ SessionStore   = (*PostgresSessionRepo)(nil)
)

// PostgresUserRepo implements UserRepository over pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const insertUserSQL = `INSERT INTO users (id, username, email, password_hash, is_active)
VALUES ($1, $2, NULLIF($3, ''), $4, $5)
RETURNING id, username, COALESCE(email, ''), password_hash, is_active, created_at, updated_at`

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.IsActive,
	)

	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapStoreError("create user", err)
	}
	return created, nil
}

const selectUserByUsernameSQL = `SELECT id, username, COALESCE(email, ''), password_hash, is_active, created_at, updated_at
FROM users WHERE username = $1`

func (r *PostgresUserRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserByUsernameSQL, username)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapStoreError("get user by username", err)
	}
	return user, nil
}

const selectUserByIDSQL = `SELECT id, username, COALESCE(email, ''), password_hash, is_active, created_at, updated_at
FROM users WHERE id = $1`

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserByIDSQL, userID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapStoreError("get user by id", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// PostgresSessionRepo implements SessionRepository over pgx. Every mutation
// is a single atomic statement so an abandoned call cannot leave the
// registry half-mutated.
type PostgresSessionRepo struct {
	db *pgxpool.Pool
}

func NewPostgresSessionRepo(pool *pgxpool.Pool) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: pool}
}

const insertSessionSQL = `INSERT INTO sessions (id, token_id, user_id, expires_at, ip_address, user_agent)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, token_id, user_id, expires_at, ip_address, user_agent, created_at`

func (r *PostgresSessionRepo) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	row := r.db.QueryRow(ctx, insertSessionSQL,
		session.ID,
		session.TokenID,
		session.UserID,
		session.ExpiresAt,
		session.IPAddress,
		session.UserAgent,
	)

	created, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapStoreError("create session", err)
	}
	return created, nil
}

const selectSessionSQL = `SELECT id, token_id, user_id, expires_at, ip_address, user_agent, created_at
FROM sessions WHERE token_id = $1`

func (r *PostgresSessionRepo) GetByTokenID(ctx context.Context, tokenID string) (domain.Session, error) {
	row := r.db.QueryRow(ctx, selectSessionSQL, tokenID)
	session, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapStoreError("get session", err)
	}
	return session, nil
}

func (r *PostgresSessionRepo) Revoke(ctx context.Context, tokenID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token_id = $1`, tokenID); err != nil {
		return mapStoreError("revoke session", err)
	}
	return nil
}

func (r *PostgresSessionRepo) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, mapStoreError("revoke user sessions", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresSessionRepo) TokenIDsForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT token_id FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, mapStoreError("list user sessions", err)
	}
	defer rows.Close()

	var tokenIDs []string
	for rows.Next() {
		var tokenID string
		if err := rows.Scan(&tokenID); err != nil {
			return nil, mapStoreError("list user sessions", err)
		}
		tokenIDs = append(tokenIDs, tokenID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError("list user sessions", err)
	}
	return tokenIDs, nil
}

func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, mapStoreError("sweep sessions", err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (domain.Session, error) {
	var session domain.Session
	err := row.Scan(
		&session.ID,
		&session.TokenID,
		&session.UserID,
		&session.ExpiresAt,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
	)
	return session, err
}

// mapStoreError translates driver errors into the domain taxonomy so raw
// storage errors never cross the service boundary unmapped.
func mapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, domain.ErrTimeout)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.TableName {
		case "sessions":
			return domain.ErrSessionConflict
		default:
			return domain.ErrUserExists
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
