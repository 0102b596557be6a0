package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slava-viktorov/simple-knowledge-base/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository         = (*PostgresUserRepo)(nil)
	_ RoleRepository         = (*PostgresRoleRepo)(nil)
	_ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
)

const selectUserSQL = `
SELECT u.id, u.email, u.username, u.password_hash, COALESCE(u.source, ''), u.role_id,
       r.id, r.name, r.created_at, r.updated_at,
       u.created_at, u.updated_at
FROM users u
JOIN roles r ON r.id = u.role_id`

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (domain.User, error) {
	user, err := r.scanUser(ctx, selectUserSQL+` WHERE u.id = $1`, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	user, err := r.scanUser(ctx, selectUserSQL+` WHERE u.email = $1`, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

const insertUserSQL = `
INSERT INTO users (id, email, username, password_hash, source, role_id)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if _, err := r.db.Exec(ctx, insertUserSQL,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Source,
		user.RoleID,
	); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return r.FindByID(ctx, user.ID)
}

func (r *PostgresUserRepo) scanUser(ctx context.Context, query string, args ...any) (domain.User, error) {
	var user domain.User
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Source,
		&user.RoleID,
		&user.Role.ID,
		&user.Role.Name,
		&user.Role.CreatedAt,
		&user.Role.UpdatedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// PostgresRoleRepo implements RoleRepository on pgx.
type PostgresRoleRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRoleRepo(pool *pgxpool.Pool) *PostgresRoleRepo {
	return &PostgresRoleRepo{db: pool}
}

func (r *PostgresRoleRepo) FindByName(ctx context.Context, name string) (domain.Role, error) {
	var role domain.Role
	err := r.db.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM roles WHERE name = $1`, name,
	).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return domain.Role{}, fmt.Errorf("find role by name: %w", err)
	}
	return role, nil
}

// PostgresRefreshTokenRepo implements the refresh token ledger on pgx.
type PostgresRefreshTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRefreshTokenRepo(pool *pgxpool.Pool) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: pool}
}

const insertRefreshTokenSQL = `
INSERT INTO refresh_tokens (id, token_id, token_hash, is_revoked, user_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, token_id, token_hash, is_revoked, revoked_at, user_id, created_at, updated_at`

func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, record domain.RefreshToken) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, insertRefreshTokenSQL,
		record.ID,
		record.TokenID,
		record.TokenHash,
		record.IsRevoked,
		record.UserID,
	)
	created, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("create refresh token: %w", err)
	}
	return created, nil
}

const selectRefreshTokenSQL = `
SELECT id, token_id, token_hash, is_revoked, revoked_at, user_id, created_at, updated_at
FROM refresh_tokens`

func (r *PostgresRefreshTokenRepo) FindByTokenID(ctx context.Context, tokenID string) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, selectRefreshTokenSQL+` WHERE token_id = $1`, tokenID)
	record, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("find refresh token by token id: %w", err)
	}
	return record, nil
}

func (r *PostgresRefreshTokenRepo) FindByTokenHash(ctx context.Context, tokenHash string) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, selectRefreshTokenSQL+` WHERE token_hash = $1`, tokenHash)
	record, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("find refresh token by hash: %w", err)
	}
	return record, nil
}

// Revoke transitions a not-yet-revoked record. The is_revoked guard makes the
// transition atomic, so of two concurrent rotations of the same token exactly
// one observes true here.
func (r *PostgresRefreshTokenRepo) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens
		 SET is_revoked = true, revoked_at = now(), updated_at = now()
		 WHERE token_hash = $1 AND is_revoked = false`,
		tokenHash,
	)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens
		 SET is_revoked = true, revoked_at = now(), updated_at = now()
		 WHERE user_id = $1 AND is_revoked = false`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRefreshTokenRepo) DeleteByID(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete refresh token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRefreshToken(row rowScanner) (domain.RefreshToken, error) {
	var record domain.RefreshToken
	err := row.Scan(
		&record.ID,
		&record.TokenID,
		&record.TokenHash,
		&record.IsRevoked,
		&record.RevokedAt,
		&record.UserID,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, err
	}
	return record, nil
}
