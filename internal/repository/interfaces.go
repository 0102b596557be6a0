package repository

import (
	"context"
	"time"

	"github.com/slava-viktorov/simple-knowledge-base/internal/domain"
)

// UserRepository exposes the user directory reads the auth core depends on.
// Absent rows surface as wrapped pgx.ErrNoRows.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
}

// RoleRepository resolves roles by name.
type RoleRepository interface {
	FindByName(ctx context.Context, name string) (domain.Role, error)
}

// RefreshTokenRepository is the persisted ledger of issued refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, record domain.RefreshToken) (domain.RefreshToken, error)
	FindByTokenID(ctx context.Context, tokenID string) (domain.RefreshToken, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (domain.RefreshToken, error)

	// Revoke marks the record matching tokenHash revoked and reports whether
	// this call performed the transition. An already revoked record yields
	// false, which lets callers detect concurrent rotation of the same token.
	Revoke(ctx context.Context, tokenHash string) (bool, error)

	// RevokeAllForUser bulk-revokes every active record owned by the user and
	// returns how many were transitioned.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	// DeleteByID hard-deletes a record. Maintenance only; normal flows never
	// delete.
	DeleteByID(ctx context.Context, id int64) (bool, error)
}

// LoginAttemptStore tracks failed login attempts per email for lockout.
type LoginAttemptStore interface {
	RegisterFailure(ctx context.Context, email string, window time.Duration) (int64, error)
	Reset(ctx context.Context, email string) error
	FailureCount(ctx context.Context, email string) (int64, error)
}
