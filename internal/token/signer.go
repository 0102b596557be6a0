package token

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/slava-viktorov/simple-knowledge-base/internal/config"
	"github.com/slava-viktorov/simple-knowledge-base/internal/domain"
)

var signatureAlgorithms = []gojose.SignatureAlgorithm{gojose.HS256}

// Claims is the decoded payload shared by both token kinds: the subject user,
// their email, and the token's unique jti. For refresh tokens the jti doubles
// as the ledger lookup key.
type Claims struct {
	UserID  string
	Email   string
	TokenID string
}

// Pair bundles one freshly issued access/refresh token pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

type emailClaim struct {
	Email string `json:"email"`
}

// Signer issues and verifies access and refresh JWTs. The two kinds are
// signed with independent secrets so a leaked secret compromises only one of
// them.
type Signer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewSigner builds a Signer from the configured secrets and lifetimes.
func NewSigner(cfg config.Config) *Signer {
	return &Signer{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
	}
}

// GenerateAccessToken issues a short-lived access token for the user.
func (s *Signer) GenerateAccessToken(userID, email string) (string, error) {
	return sign(s.accessSecret, s.accessTTL, userID, email)
}

// GenerateRefreshToken issues a refresh token for the user. Its jti is
// independent of any access token's.
func (s *Signer) GenerateRefreshToken(userID, email string) (string, error) {
	return sign(s.refreshSecret, s.refreshTTL, userID, email)
}

// GenerateTokens issues both token kinds concurrently.
func (s *Signer) GenerateTokens(ctx context.Context, userID, email string) (Pair, error) {
	var pair Pair
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		access, err := s.GenerateAccessToken(userID, email)
		pair.AccessToken = access
		return err
	})
	g.Go(func() error {
		refresh, err := s.GenerateRefreshToken(userID, email)
		pair.RefreshToken = refresh
		return err
	})
	if err := g.Wait(); err != nil {
		return Pair{}, err
	}
	return pair, nil
}

// DecodeRefreshToken reads the claims of a refresh token without verifying
// signature or expiry. It is meant for tokens this process just signed; the
// decode still fails closed when the payload shape is off.
func (s *Signer) DecodeRefreshToken(raw string) (Claims, error) {
	parsed, err := gojwt.ParseSigned(raw, signatureAlgorithms)
	if err != nil {
		return Claims{}, domain.ErrInvalidRefreshToken()
	}

	var std gojwt.Claims
	var extra emailClaim
	if err := parsed.UnsafeClaimsWithoutVerification(&std, &extra); err != nil {
		return Claims{}, domain.ErrInvalidRefreshToken()
	}
	return checkShape(std, extra, domain.ErrInvalidRefreshToken())
}

// VerifyRefreshTokenPayload verifies signature and expiry against the
// refresh secret and returns the claims.
func (s *Signer) VerifyRefreshTokenPayload(raw string) (Claims, error) {
	return verify(raw, s.refreshSecret, domain.ErrInvalidRefreshToken())
}

// VerifyAccessToken verifies signature and expiry against the access secret
// and returns the claims.
func (s *Signer) VerifyAccessToken(raw string) (Claims, error) {
	return verify(raw, s.accessSecret, domain.ErrInvalidAccessToken())
}

// VerifyAccessTokenPayload verifies an access token, discarding its claims.
func (s *Signer) VerifyAccessTokenPayload(raw string) error {
	_, err := s.VerifyAccessToken(raw)
	return err
}

// HashRefreshToken returns the hex-encoded SHA-256 digest of the raw signed
// token. The ledger stores this digest, never the token itself.
func (s *Signer) HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// VerifyRefreshToken reports whether the presented token hashes to
// storedHash.
func (s *Signer) VerifyRefreshToken(raw, storedHash string) bool {
	computed := s.HashRefreshToken(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// RefreshTokenExpiresIn returns the configured refresh token lifetime. Zero
// means the lifetime is unconfigured; callers must tolerate that.
func (s *Signer) RefreshTokenExpiresIn() time.Duration {
	return s.refreshTTL
}

func sign(secret []byte, ttl time.Duration, userID, email string) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:  userID,
		ID:       uuid.NewString(),
		IssuedAt: gojwt.NewNumericDate(now),
	}
	// A zero lifetime means the lifetime is unconfigured; the token then
	// carries no expiry, mirroring the session cookie it travels in.
	if ttl != 0 {
		std.Expiry = gojwt.NewNumericDate(now.Add(ttl))
	}

	serialized, err := gojwt.Signed(signer).Claims(std).Claims(emailClaim{Email: email}).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return serialized, nil
}

func verify(raw string, secret []byte, authErr *domain.AuthError) (Claims, error) {
	parsed, err := gojwt.ParseSigned(raw, signatureAlgorithms)
	if err != nil {
		return Claims{}, authErr
	}

	var std gojwt.Claims
	var extra emailClaim
	if err := parsed.Claims(secret, &std, &extra); err != nil {
		return Claims{}, authErr
	}
	// Zero leeway: go-jose's default tolerates a full minute past expiry,
	// which would keep a rotated-away token alive.
	if err := std.ValidateWithLeeway(gojwt.Expected{Time: time.Now()}, 0); err != nil {
		return Claims{}, authErr
	}
	return checkShape(std, extra, authErr)
}

func checkShape(std gojwt.Claims, extra emailClaim, authErr *domain.AuthError) (Claims, error) {
	if std.Subject == "" || std.ID == "" || extra.Email == "" {
		return Claims{}, authErr
	}
	return Claims{UserID: std.Subject, Email: extra.Email, TokenID: std.ID}, nil
}
