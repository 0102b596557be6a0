package domain

import "time"

// RefreshToken is a persisted ledger record for one issued refresh token.
// The raw signed token is never stored, only its SHA-256 hex digest. TokenID
// mirrors the jti claim embedded in the token and is the lookup key, so a
// record can be found and revoked without knowing the secret itself.
//
// Revocation is terminal: once IsRevoked flips to true there is no way back.
type RefreshToken struct {
	ID        int64
	TokenID   string
	TokenHash string
	IsRevoked bool
	RevokedAt *time.Time
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
