package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/slava-viktorov/simple-knowledge-base/internal/config"
	"github.com/slava-viktorov/simple-knowledge-base/internal/domain"
	"github.com/slava-viktorov/simple-knowledge-base/internal/password"
	"github.com/slava-viktorov/simple-knowledge-base/internal/repository"
	"github.com/slava-viktorov/simple-knowledge-base/internal/token"
)

// LoginResult is what a successful login returns: the authenticated user and
// a fresh token pair.
type LoginResult struct {
	User   domain.User
	Tokens token.Pair
}

// AuthService orchestrates login, logout, and refresh token rotation. It
// holds no state of its own; all coordination happens through the refresh
// token ledger.
type AuthService struct {
	users    repository.UserRepository
	ledger   repository.RefreshTokenRepository
	attempts repository.LoginAttemptStore
	signer   *token.Signer
	node     *snowflake.Node
	cfg      config.Config
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewAuthService wires dependencies. attempts may be nil, which disables
// login lockout.
func NewAuthService(users repository.UserRepository, ledger repository.RefreshTokenRepository, attempts repository.LoginAttemptStore, signer *token.Signer, node *snowflake.Node, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		ledger:   ledger,
		attempts: attempts,
		signer:   signer,
		node:     node,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("github.com/slava-viktorov/simple-knowledge-base/internal/service"),
	}
}

// Login verifies the credentials and issues a token pair, persisting the
// refresh token's hash in the ledger. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, pass string) (LoginResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(email))
	if err := s.checkLockout(ctx, normalized); err != nil {
		return LoginResult{}, err
	}

	user, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		if isNotFound(err) {
			s.registerFailure(ctx, normalized)
			return LoginResult{}, domain.ErrInvalidCredentials()
		}
		span.RecordError(err)
		return LoginResult{}, fmt.Errorf("login lookup user: %w", err)
	}

	ok, err := password.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		s.registerFailure(ctx, normalized)
		return LoginResult{}, domain.ErrInvalidCredentials()
	}
	s.resetFailures(ctx, normalized)

	tokens, err := s.issueAndPersist(ctx, user.ID, user.Email)
	if err != nil {
		span.RecordError(err)
		return LoginResult{}, err
	}

	s.audit("login.success", "user_id", user.ID)
	return LoginResult{User: user, Tokens: tokens}, nil
}

// Logout revokes the presented refresh token. The stored hash is re-checked
// against the presented token, so a forged token that reuses a known jti
// cannot revoke someone else's session.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	claims, err := s.signer.VerifyRefreshTokenPayload(refreshToken)
	if err != nil {
		return err
	}

	record, err := s.activeRecord(ctx, claims.TokenID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !s.signer.VerifyRefreshToken(refreshToken, record.TokenHash) {
		return domain.ErrTokenRevoked()
	}

	transitioned, err := s.ledger.Revoke(ctx, record.TokenHash)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("logout revoke token: %w", err)
	}
	if !transitioned {
		return domain.ErrTokenRevoked()
	}

	s.audit("logout.success", "user_id", record.UserID, "token_id", record.TokenID)
	return nil
}

// RefreshTokens rotates the presented refresh token: the old ledger record is
// revoked before the new pair is issued, so the old token is unusable the
// moment the new one exists. If a concurrent rotation already revoked the
// record, the conditional revoke reports no transition and the call fails.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (token.Pair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.RefreshTokens")
	defer span.End()

	claims, err := s.signer.VerifyRefreshTokenPayload(refreshToken)
	if err != nil {
		return token.Pair{}, err
	}

	record, err := s.activeRecord(ctx, claims.TokenID)
	if err != nil {
		span.RecordError(err)
		return token.Pair{}, err
	}
	if !s.signer.VerifyRefreshToken(refreshToken, record.TokenHash) {
		return token.Pair{}, domain.ErrTokenRevoked()
	}

	transitioned, err := s.ledger.Revoke(ctx, record.TokenHash)
	if err != nil {
		span.RecordError(err)
		return token.Pair{}, fmt.Errorf("refresh revoke token: %w", err)
	}
	if !transitioned {
		return token.Pair{}, domain.ErrTokenRevoked()
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if isNotFound(err) {
			return token.Pair{}, domain.ErrAccessDenied()
		}
		span.RecordError(err)
		return token.Pair{}, fmt.Errorf("refresh lookup user: %w", err)
	}

	tokens, err := s.issueAndPersist(ctx, user.ID, user.Email)
	if err != nil {
		span.RecordError(err)
		return token.Pair{}, err
	}

	s.audit("refresh.success", "user_id", user.ID)
	return tokens, nil
}

// LogoutEverywhere revokes every active refresh token owned by the user.
func (s *AuthService) LogoutEverywhere(ctx context.Context, userID string) (int64, error) {
	ctx, span := s.startSpan(ctx, "AuthService.LogoutEverywhere")
	defer span.End()

	count, err := s.ledger.RevokeAllForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("revoke all tokens: %w", err)
	}

	s.audit("logout_all.success", "user_id", userID, "revoked", count)
	return count, nil
}

// Validate checks an access token's signature and expiry without touching
// storage.
func (s *AuthService) Validate(accessToken string) error {
	return s.signer.VerifyAccessTokenPayload(accessToken)
}

// VerifyAccessToken validates an access token and returns its claims. Used
// by the authentication middleware to resolve the current user.
func (s *AuthService) VerifyAccessToken(accessToken string) (token.Claims, error) {
	return s.signer.VerifyAccessToken(accessToken)
}

// Me is a read-through of the user resolved by upstream middleware.
func (s *AuthService) Me(user *domain.User) (domain.User, error) {
	if user == nil {
		return domain.User{}, domain.ErrInvalidCredentials()
	}
	return *user, nil
}

// issueAndPersist generates a token pair and records the refresh token in the
// ledger. The user is re-read just before the write; if it vanished since the
// caller's lookup, the issued pair is abandoned and nothing is persisted.
func (s *AuthService) issueAndPersist(ctx context.Context, userID, email string) (token.Pair, error) {
	tokens, err := s.signer.GenerateTokens(ctx, userID, email)
	if err != nil {
		return token.Pair{}, fmt.Errorf("generate tokens: %w", err)
	}

	hash := s.signer.HashRefreshToken(tokens.RefreshToken)
	claims, err := s.signer.DecodeRefreshToken(tokens.RefreshToken)
	if err != nil {
		// The token was signed by this process; a decode failure here is a bug.
		return token.Pair{}, fmt.Errorf("decode issued refresh token: %w", err)
	}

	persisted, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return token.Pair{}, domain.ErrAccessDenied()
		}
		return token.Pair{}, fmt.Errorf("re-read user: %w", err)
	}

	record := domain.RefreshToken{
		ID:        s.node.Generate().Int64(),
		TokenID:   claims.TokenID,
		TokenHash: hash,
		UserID:    persisted.ID,
	}
	if _, err := s.ledger.Create(ctx, record); err != nil {
		return token.Pair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return tokens, nil
}

// activeRecord loads the ledger record for tokenID, folding "absent" and
// "already revoked" into the same unauthorized error.
func (s *AuthService) activeRecord(ctx context.Context, tokenID string) (domain.RefreshToken, error) {
	record, err := s.ledger.FindByTokenID(ctx, tokenID)
	if err != nil {
		if isNotFound(err) {
			return domain.RefreshToken{}, domain.ErrTokenRevoked()
		}
		return domain.RefreshToken{}, fmt.Errorf("lookup refresh token: %w", err)
	}
	if record.IsRevoked {
		return domain.RefreshToken{}, domain.ErrTokenRevoked()
	}
	return record, nil
}

func (s *AuthService) checkLockout(ctx context.Context, email string) error {
	if s.attempts == nil || s.cfg.LockoutAttempts <= 0 {
		return nil
	}
	count, err := s.attempts.FailureCount(ctx, email)
	if err != nil {
		// The throttle is advisory; a broken store must not lock users out.
		s.log().Warn("login attempt store unavailable", zap.Error(err))
		return nil
	}
	if count >= int64(s.cfg.LockoutAttempts) {
		return domain.ErrTooManyAttempts()
	}
	return nil
}

func (s *AuthService) registerFailure(ctx context.Context, email string) {
	if s.attempts == nil {
		return
	}
	if _, err := s.attempts.RegisterFailure(ctx, email, s.cfg.LockoutWindow); err != nil {
		s.log().Warn("register login failure", zap.Error(err))
	}
}

func (s *AuthService) resetFailures(ctx context.Context, email string) {
	if s.attempts == nil {
		return
	}
	if err := s.attempts.Reset(ctx, email); err != nil {
		s.log().Warn("reset login failures", zap.Error(err))
	}
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

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
